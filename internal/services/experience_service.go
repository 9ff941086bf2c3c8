package services

import (
	"context"
	"errors"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/dtos"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/models"
)

// ExperienceService is direct CRUD over work-history records. Direct edits
// bypass the proposal flow and are always allowed: experiences are never
// versioned, they are the current truth.
type ExperienceService struct {
	DB  *gorm.DB
	log *logger.Logger
}

func NewExperienceService(db *gorm.DB, log *logger.Logger) *ExperienceService {
	return &ExperienceService{DB: db, log: log.With("service", "ExperienceService")}
}

// dedupeSkills enforces set semantics on the stored skill slice.
func dedupeSkills(skills []string) datatypes.JSONSlice[string] {
	set := mapset.NewSet[string](skills...)
	out := set.ToSlice()
	sort.Strings(out)
	return datatypes.JSONSlice[string](out)
}

func (s *ExperienceService) Create(ctx context.Context, req *dtos.ExperienceCreateRequest) (*models.Experience, error) {
	exp := &models.Experience{
		UserID:          req.UserID,
		Company:         req.Company,
		Title:           req.Title,
		Location:        req.Location,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CompanyOverview: req.CompanyOverview,
		RoleOverview:    req.RoleOverview,
		Skills:          dedupeSkills(req.Skills),
	}
	if err := s.DB.WithContext(ctx).Create(exp).Error; err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *ExperienceService) Get(ctx context.Context, id uint) (*models.Experience, error) {
	var exp models.Experience
	if err := s.DB.WithContext(ctx).Preload("Achievements", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_index asc")
	}).First(&exp, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("experience", id)
		}
		return nil, err
	}
	return &exp, nil
}

func (s *ExperienceService) List(ctx context.Context) ([]models.Experience, error) {
	var exps []models.Experience
	if err := s.DB.WithContext(ctx).
		Preload("Achievements", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index asc")
		}).
		Order("start_date desc").
		Find(&exps).Error; err != nil {
		return nil, err
	}
	return exps, nil
}

func (s *ExperienceService) Update(ctx context.Context, id uint, req *dtos.ExperienceUpdateRequest) (*models.Experience, error) {
	exp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}
	if req.CompanyOverview != nil {
		updates["company_overview"] = *req.CompanyOverview
	}
	if req.RoleOverview != nil {
		updates["role_overview"] = *req.RoleOverview
	}
	if req.Skills != nil {
		updates["skills"] = dedupeSkills(*req.Skills)
	}
	if len(updates) == 0 {
		return exp, nil
	}
	if err := s.DB.WithContext(ctx).Model(exp).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *ExperienceService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("experience_id = ?", id).Delete(&models.Achievement{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Experience{}, id).Error
	})
}

func (s *ExperienceService) AddAchievement(ctx context.Context, experienceID uint, req *dtos.AchievementCreateRequest) (*models.Achievement, error) {
	exp, err := s.Get(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	next := 0
	for _, a := range exp.Achievements {
		if a.OrderIndex >= next {
			next = a.OrderIndex + 1
		}
	}
	ach := &models.Achievement{
		ExperienceID: experienceID,
		Title:        req.Title,
		Content:      req.Content,
		OrderIndex:   next,
	}
	if err := s.DB.WithContext(ctx).Create(ach).Error; err != nil {
		return nil, err
	}
	return ach, nil
}

func (s *ExperienceService) UpdateAchievement(ctx context.Context, id uint, req *dtos.AchievementUpdateRequest) (*models.Achievement, error) {
	var ach models.Achievement
	if err := s.DB.WithContext(ctx).First(&ach, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("achievement", id)
		}
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.OrderIndex != nil {
		updates["order_index"] = *req.OrderIndex
	}
	if len(updates) == 0 {
		return &ach, nil
	}
	if err := s.DB.WithContext(ctx).Model(&ach).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &ach, nil
}

func (s *ExperienceService) DeleteAchievement(ctx context.Context, id uint) error {
	var ach models.Achievement
	if err := s.DB.WithContext(ctx).First(&ach, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("achievement", id)
		}
		return err
	}
	return s.DB.WithContext(ctx).Delete(&ach).Error
}
