package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/models"
)

// AnalysisGenerator is the slice of the LLM service the intake flow needs.
type AnalysisGenerator interface {
	GenerateGapAnalysis(ctx context.Context, jobTitle, companyName, description, snapshot string) (string, error)
	GenerateStakeholderAnalysis(ctx context.Context, jobTitle, companyName, description string) (string, error)
}

// IntakeService tracks the 3-step onboarding flow for a job:
// 1 confirm job details, 2 refine experiences conversationally, 3 review
// extracted proposals. One session per job; completion is terminal.
type IntakeService struct {
	DB  *gorm.DB
	LLM AnalysisGenerator
	log *logger.Logger
}

func NewIntakeService(db *gorm.DB, llm AnalysisGenerator, log *logger.Logger) *IntakeService {
	return &IntakeService{DB: db, LLM: llm, log: log.With("service", "IntakeService")}
}

func (s *IntakeService) get(ctx context.Context, sessionID uint) (*models.IntakeSession, error) {
	var session models.IntakeSession
	if err := s.DB.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("intake session", sessionID)
		}
		return nil, err
	}
	return &session, nil
}

// Get returns an active session. Completed sessions surface as not-found so
// the caller treats the flow as closed.
func (s *IntakeService) Get(ctx context.Context, sessionID uint) (*models.IntakeSession, error) {
	session, err := s.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CompletedAt != nil {
		return nil, apierr.NotFound("intake session", sessionID)
	}
	return session, nil
}

// GetByJob returns the job's active session, or not-found if none exists or
// the flow already completed.
func (s *IntakeService) GetByJob(ctx context.Context, jobID uint) (*models.IntakeSession, error) {
	var session models.IntakeSession
	if err := s.DB.WithContext(ctx).Where("job_id = ?", jobID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("intake session for job", jobID)
		}
		return nil, err
	}
	if session.CompletedAt != nil {
		return nil, apierr.NotFound("intake session for job", jobID)
	}
	return &session, nil
}

// Open returns the job's active session, creating one at step 1 if none
// exists. A completed session is terminal: opening again is a conflict, not a
// silent restart, because the job's proposals and analyses belong to it.
func (s *IntakeService) Open(ctx context.Context, jobID uint) (*models.IntakeSession, error) {
	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("job", jobID)
		}
		return nil, err
	}

	var session models.IntakeSession
	err := s.DB.WithContext(ctx).Where("job_id = ?", jobID).First(&session).Error
	if err == nil {
		if session.CompletedAt != nil {
			return nil, apierr.Conflict("intake for job %d already completed", jobID)
		}
		return &session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	session = models.IntakeSession{JobID: jobID, CurrentStep: 1}
	if err := s.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusTracked {
		_ = s.DB.WithContext(ctx).Model(&job).Update("status", models.JobStatusIntake).Error
	}
	return &session, nil
}

// AdvanceToStep2 gates the 1 -> 2 transition on the job having non-blank
// title, company, and description. Analysis generation is the caller's
// responsibility (run off the request path; EnsureAnalyses is idempotent).
func (s *IntakeService) AdvanceToStep2(ctx context.Context, sessionID uint) (*models.IntakeSession, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CurrentStep != 1 {
		return nil, apierr.Conflict("session %d is at step %d, not step 1", sessionID, session.CurrentStep)
	}

	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, session.JobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("job", session.JobID)
		}
		return nil, err
	}
	if strings.TrimSpace(job.Title) == "" || strings.TrimSpace(job.CompanyName) == "" || strings.TrimSpace(job.Description) == "" {
		return nil, apierr.Validation("job title, company, and description must be filled in before continuing")
	}

	updates := map[string]interface{}{"current_step": 2, "step1_complete": true}
	if err := s.DB.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
		return nil, err
	}
	session.CurrentStep = 2
	session.Step1Complete = true
	return session, nil
}

// EnsureAnalyses generates the gap and stakeholder analyses, skipping any
// that are already present and non-blank. Safe to call repeatedly; a crashed
// generation resumes on the next call. Quota errors propagate typed.
func (s *IntakeService) EnsureAnalyses(ctx context.Context, sessionID uint) error {
	session, err := s.get(ctx, sessionID)
	if err != nil {
		return err
	}
	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, session.JobID).Error; err != nil {
		return err
	}

	blank := func(p *string) bool { return p == nil || strings.TrimSpace(*p) == "" }

	if blank(session.GapAnalysis) {
		var experiences []models.Experience
		if err := s.DB.WithContext(ctx).
			Where("user_id = ?", job.UserID).
			Preload("Achievements").
			Find(&experiences).Error; err != nil {
			return err
		}
		text, err := s.LLM.GenerateGapAnalysis(ctx, job.Title, job.CompanyName, job.Description, FormatExperienceSnapshot(experiences))
		if err != nil {
			return err
		}
		if err := s.DB.WithContext(ctx).Model(session).Update("gap_analysis", text).Error; err != nil {
			return err
		}
		session.GapAnalysis = &text
	}

	if blank(session.StakeholderAnalysis) {
		text, err := s.LLM.GenerateStakeholderAnalysis(ctx, job.Title, job.CompanyName, job.Description)
		if err != nil {
			return err
		}
		if err := s.DB.WithContext(ctx).Model(session).Update("stakeholder_analysis", text).Error; err != nil {
			return err
		}
		session.StakeholderAnalysis = &text
	}
	return nil
}

// AdvanceToStep3 ends the conversational refinement loop.
func (s *IntakeService) AdvanceToStep3(ctx context.Context, sessionID uint) (*models.IntakeSession, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CurrentStep != 2 {
		return nil, apierr.Conflict("session %d is at step %d, not step 2", sessionID, session.CurrentStep)
	}
	updates := map[string]interface{}{"current_step": 3, "step2_complete": true}
	if err := s.DB.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
		return nil, err
	}
	session.CurrentStep = 3
	session.Step2Complete = true
	return session, nil
}

// Complete stamps the session finished. Terminal: no transition leaves a
// completed session, and it stops surfacing through Get/GetByJob.
func (s *IntakeService) Complete(ctx context.Context, sessionID uint) (*models.IntakeSession, error) {
	session, err := s.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CompletedAt != nil {
		return nil, apierr.Conflict("session %d already completed", sessionID)
	}
	if session.CurrentStep != 3 {
		return nil, apierr.Conflict("session %d is at step %d, not step 3", sessionID, session.CurrentStep)
	}
	now := time.Now()
	updates := map[string]interface{}{"step3_complete": true, "completed_at": now}
	if err := s.DB.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
		return nil, err
	}
	session.Step3Complete = true
	session.CompletedAt = &now
	return session, nil
}

// AddMessage appends a turn to the session transcript.
func (s *IntakeService) AddMessage(ctx context.Context, sessionID uint, role, content string) (*models.IntakeMessage, error) {
	if role != "user" && role != "assistant" {
		return nil, apierr.Validation("message role must be user or assistant, got %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, apierr.Validation("message content must not be blank")
	}
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	msg := &models.IntakeMessage{SessionID: sessionID, Role: role, Content: content}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *IntakeService) ListMessages(ctx context.Context, sessionID uint) ([]models.IntakeMessage, error) {
	if _, err := s.get(ctx, sessionID); err != nil {
		return nil, err
	}
	var messages []models.IntakeMessage
	if err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
