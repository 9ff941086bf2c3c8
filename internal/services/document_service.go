package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/models"
)

// DocumentService is the versioned artifact store for resumes and cover
// letters. Every save appends an immutable version; only an explicit pin
// promotes a version's content into the canonical row the application uses.
type DocumentService struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewDocumentService(db *gorm.DB, log *logger.Logger) *DocumentService {
	return &DocumentService{DB: db, log: log.With("service", "DocumentService")}
}

func validKind(kind string) bool {
	return kind == models.DocumentKindResume || kind == models.DocumentKindCoverLetter
}

func (s *DocumentService) getJob(ctx context.Context, jobID uint) (*models.Job, error) {
	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("job", jobID)
		}
		return nil, err
	}
	return &job, nil
}

// CreateVersion appends a new immutable version. The next version index is
// computed inside the transaction so it is one greater than the current max
// for (job, kind), starting at 1. The canonical row is never touched here.
func (s *DocumentService) CreateVersion(ctx context.Context, jobID uint, kind, content, templateName string, parentVersionID *uint) (*models.DocumentVersion, error) {
	if !validKind(kind) {
		return nil, apierr.Validation("unknown document kind %q", kind)
	}
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsLocked() {
		return nil, apierr.Locked("job %d has been applied to; its documents are locked", jobID)
	}

	version := &models.DocumentVersion{
		JobID:        jobID,
		Kind:         kind,
		TemplateName: templateName,
		Content:      content,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentVersionID != nil {
			var parent models.DocumentVersion
			if err := tx.Where("id = ? AND job_id = ? AND kind = ?", *parentVersionID, jobID, kind).
				First(&parent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apierr.NotFound("parent version", *parentVersionID)
				}
				return err
			}
			version.ParentVersionID = parentVersionID
		}

		var maxIndex int
		if err := tx.Model(&models.DocumentVersion{}).
			Where("job_id = ? AND kind = ?", jobID, kind).
			Select("COALESCE(MAX(version_index), 0)").
			Scan(&maxIndex).Error; err != nil {
			return err
		}
		version.VersionIndex = maxIndex + 1

		return tx.Create(version).Error
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// ListVersions returns every version for (job, kind), oldest first.
func (s *DocumentService) ListVersions(ctx context.Context, jobID uint, kind string) ([]models.DocumentVersion, error) {
	if !validKind(kind) {
		return nil, apierr.Validation("unknown document kind %q", kind)
	}
	if _, err := s.getJob(ctx, jobID); err != nil {
		return nil, err
	}
	var versions []models.DocumentVersion
	if err := s.DB.WithContext(ctx).
		Where("job_id = ? AND kind = ?", jobID, kind).
		Order("version_index asc").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// GetCanonical returns the pinned document for (job, kind), or not-found if
// nothing is pinned.
func (s *DocumentService) GetCanonical(ctx context.Context, jobID uint, kind string) (*models.Document, error) {
	if !validKind(kind) {
		return nil, apierr.Validation("unknown document kind %q", kind)
	}
	if _, err := s.getJob(ctx, jobID); err != nil {
		return nil, err
	}
	var doc models.Document
	if err := s.DB.WithContext(ctx).
		Where("job_id = ? AND kind = ?", jobID, kind).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("canonical "+kind, jobID)
		}
		return nil, err
	}
	return &doc, nil
}

// Pin copies a version's template and content into the canonical row,
// creating it if absent. Version history is never altered by pinning.
func (s *DocumentService) Pin(ctx context.Context, jobID uint, kind string, versionID uint) (*models.Document, error) {
	if !validKind(kind) {
		return nil, apierr.Validation("unknown document kind %q", kind)
	}
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsLocked() {
		return nil, apierr.Locked("job %d has been applied to; its documents are locked", jobID)
	}

	var version models.DocumentVersion
	if err := s.DB.WithContext(ctx).
		Where("id = ? AND job_id = ? AND kind = ?", versionID, jobID, kind).
		First(&version).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("version", versionID)
		}
		return nil, err
	}

	var doc models.Document
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("job_id = ? AND kind = ?", jobID, kind).First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			doc = models.Document{JobID: jobID, Kind: kind}
			err = nil
		}
		if err != nil {
			return err
		}
		doc.TemplateName = version.TemplateName
		doc.Content = version.Content
		doc.PinnedVersionID = &version.ID
		return tx.Save(&doc).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("version pinned", "job_id", jobID, "kind", kind, "version_index", version.VersionIndex)
	return &doc, nil
}

// Unpin clears the canonical row. Version history is untouched. Unpinning
// when nothing is pinned is a no-op.
func (s *DocumentService) Unpin(ctx context.Context, jobID uint, kind string) error {
	if !validKind(kind) {
		return apierr.Validation("unknown document kind %q", kind)
	}
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsLocked() {
		return apierr.Locked("job %d has been applied to; its documents are locked", jobID)
	}
	return s.DB.WithContext(ctx).
		Where("job_id = ? AND kind = ?", jobID, kind).
		Delete(&models.Document{}).Error
}
