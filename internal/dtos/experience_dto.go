package dtos

import "time"

type ExperienceCreateRequest struct {
	UserID    uint       `json:"user_id"`
	Company   string     `json:"company" binding:"required"`
	Title     string     `json:"title" binding:"required"`
	Location  string     `json:"location"`
	StartDate time.Time  `json:"start_date" binding:"required"`
	EndDate   *time.Time `json:"end_date"`

	CompanyOverview *string  `json:"company_overview"`
	RoleOverview    *string  `json:"role_overview"`
	Skills          []string `json:"skills"`
}

type ExperienceUpdateRequest struct {
	Company   *string     `json:"company"`
	Title     *string     `json:"title"`
	Location  *string     `json:"location"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	CompanyOverview *string   `json:"company_overview"`
	RoleOverview    *string   `json:"role_overview"`
	Skills          *[]string `json:"skills"`
}

type AchievementCreateRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type AchievementUpdateRequest struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	OrderIndex *int    `json:"order_index"`
}
