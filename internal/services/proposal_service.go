package services

import (
	"context"
	"errors"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/models"
	"github.com/applyforge/applyforge-backend/internal/proposals"
)

// ProposalService drives the per-proposal review lifecycle:
// pending -> accepted or pending -> rejected, both terminal. While pending the
// payload may be edited any number of times and reverted to the AI original.
type ProposalService struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewProposalService(db *gorm.DB, log *logger.Logger) *ProposalService {
	return &ProposalService{DB: db, log: log.With("service", "ProposalService")}
}

func (s *ProposalService) Get(ctx context.Context, id uint) (*models.Proposal, error) {
	var p models.Proposal
	if err := s.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("proposal", id)
		}
		return nil, err
	}
	return &p, nil
}

// ExperienceGroup is the display grouping: proposals bucketed per experience,
// ordered company overview, role overview, skills, then achievements
// (add, update, delete). Presentation parity, not a correctness contract.
type ExperienceGroup struct {
	ExperienceID uint              `json:"experience_id"`
	Proposals    []models.Proposal `json:"proposals"`
}

var categoryRank = map[string]int{
	string(proposals.TypeCompanyOverviewUpdate): 0,
	string(proposals.TypeRoleOverviewUpdate):    1,
	string(proposals.TypeSkillAdd):              2,
	string(proposals.TypeSkillDelete):           3,
	string(proposals.TypeAchievementAdd):        4,
	string(proposals.TypeAchievementUpdate):     5,
	string(proposals.TypeAchievementDelete):     6,
}

func (s *ProposalService) ListGrouped(ctx context.Context, sessionID uint) ([]ExperienceGroup, error) {
	var session models.IntakeSession
	if err := s.DB.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("intake session", sessionID)
		}
		return nil, err
	}

	var rows []models.Proposal
	if err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	byExp := make(map[uint][]models.Proposal)
	var order []uint
	for _, p := range rows {
		if _, seen := byExp[p.ExperienceID]; !seen {
			order = append(order, p.ExperienceID)
		}
		byExp[p.ExperienceID] = append(byExp[p.ExperienceID], p)
	}

	groups := make([]ExperienceGroup, 0, len(order))
	for _, expID := range order {
		ps := byExp[expID]
		sort.SliceStable(ps, func(i, j int) bool {
			return categoryRank[ps[i].Type] < categoryRank[ps[j].Type]
		})
		groups = append(groups, ExperienceGroup{ExperienceID: expID, Proposals: ps})
	}
	return groups, nil
}

// Edit replaces the live payload of a pending proposal. The new payload must
// parse as the proposal's declared type; the frozen original is untouched.
// Concurrent edits are last-write-wins: single-operator product, and the
// write is a single-column UPDATE so rows never interleave.
func (s *ProposalService) Edit(ctx context.Context, id uint, rawContent string) (*models.Proposal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalStatusPending {
		return nil, apierr.Conflict("proposal %d is already %s and can no longer be edited", id, p.Status)
	}
	if _, err := proposals.Parse(proposals.Type(p.Type), rawContent); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(p).Update("proposed_content", rawContent).Error; err != nil {
		return nil, err
	}
	p.ProposedContent = rawContent
	return p, nil
}

// Revert restores the live payload to the frozen AI original.
func (s *ProposalService) Revert(ctx context.Context, id uint) (*models.Proposal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalStatusPending {
		return nil, apierr.Conflict("proposal %d is already %s and can no longer be reverted", id, p.Status)
	}
	if _, err := proposals.Parse(proposals.Type(p.Type), p.OriginalProposedContent); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(p).Update("proposed_content", p.OriginalProposedContent).Error; err != nil {
		return nil, err
	}
	p.ProposedContent = p.OriginalProposedContent
	return p, nil
}

// Reject marks a pending proposal rejected. No side effect on records.
// Rejecting twice is a conflict, not a silent no-op.
func (s *ProposalService) Reject(ctx context.Context, id uint) (*models.Proposal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalStatusPending {
		return nil, apierr.Conflict("proposal %d is already %s", id, p.Status)
	}
	if err := s.DB.WithContext(ctx).Model(p).Update("status", models.ProposalStatusRejected).Error; err != nil {
		return nil, err
	}
	p.Status = models.ProposalStatusRejected
	return p, nil
}

// Accept validates the proposal fully, then applies its mutation to the
// experience/achievement records and flips the status, both in one
// transaction. Any validation failure leaves the proposal pending.
func (s *ProposalService) Accept(ctx context.Context, id uint) (*models.Proposal, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalStatusPending {
		return nil, apierr.Conflict("proposal %d is already %s", id, p.Status)
	}

	content, err := proposals.Parse(proposals.Type(p.Type), p.ProposedContent)
	if err != nil {
		return nil, err
	}

	var exp models.Experience
	if err := s.DB.WithContext(ctx).Preload("Achievements").First(&exp, p.ExperienceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("experience", p.ExperienceID)
		}
		return nil, err
	}

	// Achievement-typed proposals must reference an achievement that still
	// exists and still belongs to this experience.
	var target *models.Achievement
	if proposals.Type(p.Type).RequiresAchievementID() {
		if p.AchievementID == nil {
			return nil, apierr.Validation("proposal %d requires an achievement reference", id)
		}
		for i := range exp.Achievements {
			if exp.Achievements[i].ID == *p.AchievementID {
				target = &exp.Achievements[i]
				break
			}
		}
		if target == nil {
			return nil, apierr.NotFound("achievement", *p.AchievementID)
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.apply(tx, proposals.Type(p.Type), &exp, target, content); err != nil {
			return err
		}
		return tx.Model(p).Update("status", models.ProposalStatusAccepted).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("proposal accepted", "proposal_id", p.ID, "type", p.Type, "experience_id", p.ExperienceID)
	p.Status = models.ProposalStatusAccepted
	return p, nil
}

func (s *ProposalService) apply(tx *gorm.DB, pType proposals.Type, exp *models.Experience, target *models.Achievement, content proposals.Content) error {
	switch c := content.(type) {
	case proposals.OverviewUpdate:
		// Shared payload shape; the proposal type decides which column the
		// replacement text lands in.
		column := "role_overview"
		if pType == proposals.TypeCompanyOverviewUpdate {
			column = "company_overview"
		}
		return tx.Model(exp).Update(column, c.Content).Error
	case proposals.SkillChange:
		current := mapset.NewSet[string](exp.Skills...)
		if c.Cmd == proposals.CommandAdd {
			for _, skill := range c.Skills {
				current.Add(skill)
			}
		} else {
			for _, skill := range c.Skills {
				current.Remove(skill)
			}
		}
		merged := current.ToSlice()
		sort.Strings(merged)
		return tx.Model(exp).Update("skills", datatypes.JSONSlice[string](merged)).Error
	case proposals.AchievementAdd:
		next := 0
		for _, a := range exp.Achievements {
			if a.OrderIndex >= next {
				next = a.OrderIndex + 1
			}
		}
		return tx.Create(&models.Achievement{
			ExperienceID: exp.ID,
			Title:        c.Title,
			Content:      c.Content,
			OrderIndex:   next,
		}).Error
	case proposals.AchievementUpdate:
		updates := map[string]interface{}{"content": c.Content}
		if c.Title != nil {
			updates["title"] = *c.Title
		}
		return tx.Model(target).Updates(updates).Error
	case proposals.AchievementDelete:
		return tx.Delete(target).Error
	default:
		return apierr.Validation("unsupported proposal content %T", content)
	}
}
