package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/dtos"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/models"
)

type JobService struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewJobService(db *gorm.DB, log *logger.Logger) *JobService {
	return &JobService{DB: db, log: log.With("service", "JobService")}
}

func (s *JobService) Create(ctx context.Context, req *dtos.JobCreateRequest) (*models.Job, error) {
	job := &models.Job{
		CompanyName: req.CompanyName,
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		PostingURL:  req.PostingURL,
		Status:      models.JobStatusTracked,
	}
	if dup := s.findDuplicate(ctx, req.CompanyName, req.Title); dup != nil {
		s.log.Warn("possible duplicate posting", "job_id", dup.ID, "company", dup.CompanyName, "title", dup.Title)
	}
	if err := s.DB.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// findDuplicate looks for an existing job with the same normalized company
// name and title. Very short company names are skipped to avoid false
// positives (a company named "Go" matches everything).
func (s *JobService) findDuplicate(ctx context.Context, companyName, title string) *models.Job {
	company := strings.ToLower(strings.TrimSpace(companyName))
	if len(company) < 3 {
		return nil
	}
	var jobs []models.Job
	if err := s.DB.WithContext(ctx).Find(&jobs).Error; err != nil {
		return nil
	}
	titleLower := strings.ToLower(strings.TrimSpace(title))
	for i := range jobs {
		if strings.ToLower(strings.TrimSpace(jobs[i].CompanyName)) == company &&
			strings.ToLower(strings.TrimSpace(jobs[i].Title)) == titleLower {
			return &jobs[i]
		}
	}
	return nil
}

func (s *JobService) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("job", id)
		}
		return nil, err
	}
	return &job, nil
}

func (s *JobService) List(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := s.DB.WithContext(ctx).Order("created_at desc").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Update edits job fields. When the title, company, or description actually
// changes, both intake analyses are cleared: they were derived from the old
// posting text and must be regenerated on the next visit to step 1.
func (s *JobService) Update(ctx context.Context, id uint, req *dtos.JobUpdateRequest) (*models.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	postingChanged := false
	updates := map[string]interface{}{}
	setStr := func(column string, current string, next *string, affectsPosting bool) {
		if next == nil || *next == current {
			return
		}
		updates[column] = *next
		if affectsPosting {
			postingChanged = true
		}
	}
	setStr("company_name", job.CompanyName, req.CompanyName, true)
	setStr("title", job.Title, req.Title, true)
	setStr("description", job.Description, req.Description, true)
	setStr("location", job.Location, req.Location, false)
	setStr("posting_url", job.PostingURL, req.PostingURL, false)

	if len(updates) == 0 {
		return job, nil
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(job).Updates(updates).Error; err != nil {
			return err
		}
		if postingChanged {
			return tx.Model(&models.IntakeSession{}).
				Where("job_id = ?", id).
				Updates(map[string]interface{}{"gap_analysis": nil, "stakeholder_analysis": nil}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if postingChanged {
		s.log.Info("posting changed, intake analyses invalidated", "job_id", id)
	}
	return s.Get(ctx, id)
}

func (s *JobService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Delete(&models.Job{}, id).Error
}

// MarkApplied stamps the application time and locks the job's documents.
func (s *JobService) MarkApplied(ctx context.Context, id uint) (*models.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsLocked() {
		return nil, apierr.Conflict("job %d is already marked applied", id)
	}
	now := time.Now()
	updates := map[string]interface{}{"status": models.JobStatusApplied, "applied_at": now}
	if err := s.DB.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
		return nil, err
	}
	job.Status = models.JobStatusApplied
	job.AppliedAt = &now
	return job, nil
}
