package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/models"
	"github.com/applyforge/applyforge-backend/internal/proposals"
)

// Degradation reasons carried on an ExtractionOutcome. Extraction is
// best-effort: the workflow keeps moving on any of these.
const (
	ReasonEmptyTranscript = "empty_transcript"
	ReasonNoSuggestions   = "no_suggestions"
	ReasonLLMError        = "llm_error"
	ReasonLLMQuota        = "llm_quota"
)

// ExtractionOutcome distinguishes "nothing to extract" from "extraction
// failed" instead of collapsing both to an empty list.
type ExtractionOutcome struct {
	Proposals []models.Proposal `json:"proposals"`
	Degraded  bool              `json:"degraded"`
	Reason    string            `json:"reason,omitempty"`
}

// SuggestionGenerator is the slice of the LLM service extraction needs.
type SuggestionGenerator interface {
	GenerateSuggestions(ctx context.Context, turns []ChatTurn, snapshot string) (*SuggestionBundle, error)
}

type ExtractionService struct {
	DB  *gorm.DB
	LLM SuggestionGenerator
	log *logger.Logger
}

func NewExtractionService(db *gorm.DB, llm SuggestionGenerator, log *logger.Logger) *ExtractionService {
	return &ExtractionService{
		DB:  db,
		LLM: llm,
		log: log.With("service", "ExtractionService"),
	}
}

// ExtractProposals reads the session transcript, asks the model for edit
// suggestions against the user's current experience records, and materializes
// each valid suggestion as a pending Proposal row. Failures downstream of the
// session lookup degrade to an empty outcome rather than erroring: a broken
// extraction must never block the review workflow.
func (s *ExtractionService) ExtractProposals(ctx context.Context, sessionID uint) (*ExtractionOutcome, error) {
	var session models.IntakeSession
	if err := s.DB.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("intake session", sessionID)
		}
		return nil, err
	}

	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, session.JobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("job", session.JobID)
		}
		return nil, err
	}

	var messages []models.IntakeMessage
	if err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		// No transcript means no LLM call at all.
		return &ExtractionOutcome{Proposals: []models.Proposal{}, Degraded: true, Reason: ReasonEmptyTranscript}, nil
	}

	var experiences []models.Experience
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", job.UserID).
		Preload("Achievements").
		Order("start_date desc").
		Find(&experiences).Error; err != nil {
		return nil, err
	}

	turns := make([]ChatTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}

	bundle, err := s.LLM.GenerateSuggestions(ctx, turns, FormatExperienceSnapshot(experiences))
	if err != nil {
		reason := ReasonLLMError
		if apierr.CodeOf(err) == "llm_quota" {
			reason = ReasonLLMQuota
		}
		s.log.Warn("suggestion extraction degraded", "session_id", sessionID, "reason", reason, "err", err)
		return &ExtractionOutcome{Proposals: []models.Proposal{}, Degraded: true, Reason: reason}, nil
	}
	if bundle.Empty() {
		return &ExtractionOutcome{Proposals: []models.Proposal{}, Degraded: true, Reason: ReasonNoSuggestions}, nil
	}

	rows := s.materialize(sessionID, bundle, experiences)
	if len(rows) == 0 {
		return &ExtractionOutcome{Proposals: []models.Proposal{}, Degraded: true, Reason: ReasonNoSuggestions}, nil
	}

	if err := s.DB.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return &ExtractionOutcome{Proposals: rows}, nil
}

// materialize converts bundle items into Proposal rows. Suggestions that
// reference unknown experiences or achievements are dropped and logged, not
// errors: the model occasionally hallucinates ids.
func (s *ExtractionService) materialize(sessionID uint, bundle *SuggestionBundle, experiences []models.Experience) []models.Proposal {
	expByID := make(map[uint]*models.Experience, len(experiences))
	for i := range experiences {
		expByID[experiences[i].ID] = &experiences[i]
	}
	achievementOwner := func(exp *models.Experience, achievementID uint) bool {
		for _, a := range exp.Achievements {
			if a.ID == achievementID {
				return true
			}
		}
		return false
	}

	var rows []models.Proposal
	add := func(pType proposals.Type, experienceID uint, achievementID *uint, content proposals.Content) {
		exp, ok := expByID[experienceID]
		if !ok {
			s.log.Warn("dropping suggestion for unknown experience", "session_id", sessionID, "experience_id", experienceID, "type", pType)
			return
		}
		if achievementID != nil && !achievementOwner(exp, *achievementID) {
			s.log.Warn("dropping suggestion for unknown achievement", "session_id", sessionID, "experience_id", experienceID, "achievement_id", *achievementID)
			return
		}
		if err := content.Validate(pType); err != nil {
			s.log.Warn("dropping malformed suggestion", "session_id", sessionID, "type", pType, "err", err)
			return
		}
		payload, err := proposals.Marshal(content)
		if err != nil {
			s.log.Warn("dropping unserializable suggestion", "session_id", sessionID, "type", pType, "err", err)
			return
		}
		rows = append(rows, models.Proposal{
			SessionID:     sessionID,
			ExperienceID:  experienceID,
			AchievementID: achievementID,
			Type:          string(pType),
			Status:        models.ProposalStatusPending,
			// Both copies start identical; only ProposedContent may change later.
			ProposedContent:         payload,
			OriginalProposedContent: payload,
		})
	}

	for _, sg := range bundle.RoleOverviewUpdates {
		add(proposals.TypeRoleOverviewUpdate, sg.ExperienceID, nil,
			proposals.OverviewUpdate{Cmd: proposals.CommandUpdate, Content: sg.Content})
	}
	for _, sg := range bundle.CompanyOverviewUpdates {
		add(proposals.TypeCompanyOverviewUpdate, sg.ExperienceID, nil,
			proposals.OverviewUpdate{Cmd: proposals.CommandUpdate, Content: sg.Content})
	}
	for _, sg := range bundle.SkillAdditions {
		add(proposals.TypeSkillAdd, sg.ExperienceID, nil,
			proposals.SkillChange{Cmd: proposals.CommandAdd, Skills: sg.Skills})
	}
	for _, sg := range bundle.AchievementChanges {
		switch sg.Command {
		case string(proposals.CommandAdd):
			title := ""
			if sg.Title != nil {
				title = *sg.Title
			}
			add(proposals.TypeAchievementAdd, sg.ExperienceID, nil,
				proposals.AchievementAdd{Cmd: proposals.CommandAdd, Title: title, Content: sg.Content})
		case string(proposals.CommandUpdate):
			if sg.AchievementID == nil {
				s.log.Warn("dropping achievement UPDATE without achievement_id", "session_id", sessionID, "experience_id", sg.ExperienceID)
				continue
			}
			add(proposals.TypeAchievementUpdate, sg.ExperienceID, sg.AchievementID,
				proposals.AchievementUpdate{Cmd: proposals.CommandUpdate, AchievementID: *sg.AchievementID, Title: sg.Title, Content: sg.Content})
		default:
			s.log.Warn("dropping achievement suggestion with unknown command", "session_id", sessionID, "command", sg.Command)
		}
	}
	return rows
}

// FormatExperienceSnapshot renders the user's records with their numeric ids
// so the model can reference them in suggestions.
func FormatExperienceSnapshot(experiences []models.Experience) string {
	if len(experiences) == 0 {
		return "(no experience records yet)"
	}
	var sb strings.Builder
	for _, exp := range experiences {
		end := "present"
		if exp.EndDate != nil {
			end = exp.EndDate.Format("2006-01")
		}
		fmt.Fprintf(&sb, "Experience %d: %s at %s (%s — %s), %s\n",
			exp.ID, exp.Title, exp.Company, exp.StartDate.Format("2006-01"), end, exp.Location)
		if exp.CompanyOverview != nil && *exp.CompanyOverview != "" {
			fmt.Fprintf(&sb, "  Company overview: %s\n", *exp.CompanyOverview)
		}
		if exp.RoleOverview != nil && *exp.RoleOverview != "" {
			fmt.Fprintf(&sb, "  Role overview: %s\n", *exp.RoleOverview)
		}
		if len(exp.Skills) > 0 {
			fmt.Fprintf(&sb, "  Skills: %s\n", strings.Join(exp.Skills, ", "))
		}
		for _, a := range exp.Achievements {
			fmt.Fprintf(&sb, "  Achievement %d: %s — %s\n", a.ID, a.Title, a.Content)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
