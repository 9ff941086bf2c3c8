package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job statuses
const (
	JobStatusTracked = "TRACKED"
	JobStatusIntake  = "INTAKE"
	JobStatusApplied = "APPLIED"
)

// Proposal statuses
const (
	ProposalStatusPending  = "pending"
	ProposalStatusAccepted = "accepted"
	ProposalStatusRejected = "rejected"
)

// Document kinds
const (
	DocumentKindResume      = "resume"
	DocumentKindCoverLetter = "cover_letter"
)

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	FullName string `json:"full_name"`
}

type Experience struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID uint `gorm:"index" json:"user_id"`

	Company   string     `gorm:"not null" json:"company"`
	Title     string     `gorm:"not null" json:"title"`
	Location  string     `json:"location"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"` // nil = current role

	CompanyOverview *string `gorm:"type:text" json:"company_overview"`
	RoleOverview    *string `gorm:"type:text" json:"role_overview"`

	// Stored as a JSON array; set semantics are enforced in the service layer.
	Skills datatypes.JSONSlice[string] `json:"skills"`

	// 'omitempty' prevents infinite loops when fetching an Experience -> Achievements -> ...
	Achievements []Achievement `json:"achievements,omitempty"`
}

type Achievement struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ExperienceID uint `gorm:"index;not null" json:"experience_id"`

	Title      string `gorm:"not null" json:"title"`
	Content    string `gorm:"type:text" json:"content"`
	OrderIndex int    `json:"order_index"`
}

type Job struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID uint `gorm:"index" json:"user_id"`

	CompanyName string     `gorm:"not null" json:"company_name"`
	Title       string     `gorm:"not null" json:"title"`
	Location    string     `json:"location"`
	Description string     `gorm:"type:text" json:"description"`
	PostingURL  string     `json:"posting_url"`
	Status      string     `gorm:"default:'TRACKED'" json:"status"`
	AppliedAt   *time.Time `json:"applied_at"`
}

// Applied jobs lock their documents against further edits.
func (j *Job) IsLocked() bool {
	return j.Status == JobStatusApplied
}

type IntakeSession struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	JobID uint `gorm:"uniqueIndex;not null" json:"job_id"`

	CurrentStep   int  `gorm:"default:1" json:"current_step"`
	Step1Complete bool `json:"step1_complete"`
	Step2Complete bool `json:"step2_complete"`
	Step3Complete bool `json:"step3_complete"`

	GapAnalysis         *string `gorm:"type:text" json:"gap_analysis"`
	StakeholderAnalysis *string `gorm:"type:text" json:"stakeholder_analysis"`

	CompletedAt *time.Time `json:"completed_at"`
}

// IntakeMessage is one turn of the step-2 refinement conversation. The
// extraction engine reads these in id order.
type IntakeMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SessionID uint   `gorm:"index;not null" json:"session_id"`
	Role      string `gorm:"not null" json:"role"` // "user" or "assistant"
	Content   string `gorm:"type:text" json:"content"`
}

type Proposal struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	SessionID    uint  `gorm:"index;not null" json:"session_id"`
	ExperienceID uint  `gorm:"index;not null" json:"experience_id"`
	AchievementID *uint `json:"achievement_id"`

	Type   string `gorm:"not null" json:"type"`
	Status string `gorm:"default:'pending'" json:"status"`

	// ProposedContent is the live payload (user-editable while pending);
	// OriginalProposedContent is the AI payload frozen at creation, kept for revert.
	ProposedContent         string `gorm:"type:text" json:"proposed_content"`
	OriginalProposedContent string `gorm:"type:text" json:"original_proposed_content"`
}

// Document is the canonical (pinned) resume or cover letter for a job.
// At most one row per (job, kind); moving the pin rewrites this row only.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	JobID uint   `gorm:"not null;uniqueIndex:idx_documents_job_kind" json:"job_id"`
	Kind  string `gorm:"not null;uniqueIndex:idx_documents_job_kind" json:"kind"`

	TemplateName    string `json:"template_name"`
	Content         string `gorm:"type:text" json:"content"`
	PinnedVersionID *uint  `json:"pinned_version_id"`
}

// DocumentVersion rows are immutable once created. VersionIndex counts from 1
// per (job, kind) and is never reused or renumbered.
type DocumentVersion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	JobID uint   `gorm:"not null;uniqueIndex:idx_document_versions_job_kind_index" json:"job_id"`
	Kind  string `gorm:"not null;uniqueIndex:idx_document_versions_job_kind_index" json:"kind"`

	VersionIndex    int   `gorm:"not null;uniqueIndex:idx_document_versions_job_kind_index" json:"version_index"`
	ParentVersionID *uint `json:"parent_version_id"`

	TemplateName string `json:"template_name"`
	Content      string `gorm:"type:text" json:"content"`
}
