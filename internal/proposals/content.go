package proposals

import (
	"encoding/json"
	"strings"

	"github.com/applyforge/applyforge-backend/internal/apierr"
)

// Command is the operation tag carried inside a payload. It is ambiguous on
// its own (ADD covers both skill-add and achievement-add), so payloads are
// always interpreted jointly with the proposal Type.
type Command string

const (
	CommandAdd    Command = "ADD"
	CommandUpdate Command = "UPDATE"
	CommandDelete Command = "DELETE"
)

// Type is the proposal category stored on the Proposal row.
type Type string

const (
	TypeRoleOverviewUpdate    Type = "role_overview_update"
	TypeCompanyOverviewUpdate Type = "company_overview_update"
	TypeSkillAdd              Type = "skill_add"
	TypeSkillDelete           Type = "skill_delete"
	TypeAchievementAdd        Type = "achievement_add"
	TypeAchievementUpdate     Type = "achievement_update"
	TypeAchievementDelete     Type = "achievement_delete"
)

func (t Type) Valid() bool {
	switch t {
	case TypeRoleOverviewUpdate, TypeCompanyOverviewUpdate,
		TypeSkillAdd, TypeSkillDelete,
		TypeAchievementAdd, TypeAchievementUpdate, TypeAchievementDelete:
		return true
	}
	return false
}

// ExpectedCommand returns the command tag that payloads of this type carry.
func (t Type) ExpectedCommand() Command {
	switch t {
	case TypeSkillAdd, TypeAchievementAdd:
		return CommandAdd
	case TypeSkillDelete, TypeAchievementDelete:
		return CommandDelete
	default:
		return CommandUpdate
	}
}

// RequiresAchievementID reports whether proposals of this type must reference
// an existing achievement belonging to the proposal's experience.
func (t Type) RequiresAchievementID() bool {
	return t == TypeAchievementUpdate || t == TypeAchievementDelete
}

// Content is the closed union of proposal payloads. Every variant carries its
// command tag and only the fields its operation needs.
type Content interface {
	Command() Command
	// Validate checks the fields that must hold before the payload may be
	// stored or applied, independent of database state.
	Validate(t Type) error
}

// OverviewUpdate is the payload for role_overview_update and
// company_overview_update. Content is full replacement text, never a diff.
type OverviewUpdate struct {
	Cmd     Command `json:"command"`
	Content string  `json:"content"`
}

func (p OverviewUpdate) Command() Command { return p.Cmd }

func (p OverviewUpdate) Validate(t Type) error {
	if p.Cmd != CommandUpdate {
		return apierr.Validation("overview payload must carry command UPDATE, got %q", p.Cmd)
	}
	if strings.TrimSpace(p.Content) == "" {
		return apierr.Validation("overview content must not be blank")
	}
	return nil
}

// SkillChange is the payload for skill_add and skill_delete.
type SkillChange struct {
	Cmd    Command  `json:"command"`
	Skills []string `json:"skills"`
}

func (p SkillChange) Command() Command { return p.Cmd }

func (p SkillChange) Validate(t Type) error {
	if p.Cmd != t.ExpectedCommand() {
		return apierr.Validation("skill payload for %s must carry command %s, got %q", t, t.ExpectedCommand(), p.Cmd)
	}
	if len(p.Skills) == 0 {
		return apierr.Validation("skill list must not be empty")
	}
	for _, s := range p.Skills {
		if strings.TrimSpace(s) == "" {
			return apierr.Validation("skill entries must be non-blank strings")
		}
	}
	return nil
}

// AchievementAdd inserts a new achievement under the proposal's experience.
type AchievementAdd struct {
	Cmd     Command `json:"command"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
}

func (p AchievementAdd) Command() Command { return p.Cmd }

func (p AchievementAdd) Validate(t Type) error {
	if p.Cmd != CommandAdd {
		return apierr.Validation("achievement_add payload must carry command ADD, got %q", p.Cmd)
	}
	if strings.TrimSpace(p.Title) == "" {
		return apierr.Validation("achievement title must not be blank")
	}
	return nil
}

// AchievementUpdate overwrites content, and title only when Title is set.
type AchievementUpdate struct {
	Cmd           Command `json:"command"`
	AchievementID uint    `json:"achievement_id"`
	Title         *string `json:"title,omitempty"`
	Content       string  `json:"content"`
}

func (p AchievementUpdate) Command() Command { return p.Cmd }

func (p AchievementUpdate) Validate(t Type) error {
	if p.Cmd != CommandUpdate {
		return apierr.Validation("achievement_update payload must carry command UPDATE, got %q", p.Cmd)
	}
	if p.AchievementID == 0 {
		return apierr.Validation("achievement_update payload requires achievement_id")
	}
	if strings.TrimSpace(p.Content) == "" {
		return apierr.Validation("achievement content must not be blank")
	}
	return nil
}

// AchievementDelete removes the referenced achievement.
type AchievementDelete struct {
	Cmd           Command `json:"command"`
	AchievementID uint    `json:"achievement_id"`
}

func (p AchievementDelete) Command() Command { return p.Cmd }

func (p AchievementDelete) Validate(t Type) error {
	if p.Cmd != CommandDelete {
		return apierr.Validation("achievement_delete payload must carry command DELETE, got %q", p.Cmd)
	}
	if p.AchievementID == 0 {
		return apierr.Validation("achievement_delete payload requires achievement_id")
	}
	return nil
}

// Marshal serializes a payload to the JSON text stored on the Proposal row.
func Marshal(c Content) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", apierr.Validation("cannot serialize proposal content: %v", err)
	}
	return string(data), nil
}

// probe mirrors every field name across the union so Parse can check
// structural hints (which keys are present) before committing to a shape.
type probe struct {
	Command       *Command         `json:"command"`
	Content       *string          `json:"content"`
	Skills        *[]string        `json:"skills"`
	Title         *json.RawMessage `json:"title"`
	AchievementID *uint            `json:"achievement_id"`
}

// Parse deserializes stored payload text. Dispatch keys off the declared
// proposal type plus structural hints in the JSON; the command tag alone
// cannot distinguish skill-add from achievement-add.
func Parse(t Type, raw string) (Content, error) {
	if !t.Valid() {
		return nil, apierr.Validation("unknown proposal type %q", t)
	}

	var pr probe
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		return nil, apierr.Validation("proposal content is not valid JSON: %v", err)
	}
	if pr.Command == nil {
		return nil, apierr.Validation("proposal content is missing its command tag")
	}
	if *pr.Command != t.ExpectedCommand() {
		return nil, apierr.Validation("content command %q does not match proposal type %s", *pr.Command, t)
	}

	var c Content
	switch t {
	case TypeRoleOverviewUpdate, TypeCompanyOverviewUpdate:
		if pr.Skills != nil || pr.AchievementID != nil {
			return nil, apierr.Validation("overview payload carries fields of another shape")
		}
		var p OverviewUpdate
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, apierr.Validation("malformed overview payload: %v", err)
		}
		c = p
	case TypeSkillAdd, TypeSkillDelete:
		if pr.Skills == nil {
			return nil, apierr.Validation("skill payload is missing the skills list")
		}
		var p SkillChange
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, apierr.Validation("malformed skill payload: %v", err)
		}
		c = p
	case TypeAchievementAdd:
		if pr.AchievementID != nil {
			return nil, apierr.Validation("achievement_add payload must not reference an achievement id")
		}
		if pr.Title == nil {
			return nil, apierr.Validation("achievement_add payload is missing its title")
		}
		var p AchievementAdd
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, apierr.Validation("malformed achievement payload: %v", err)
		}
		c = p
	case TypeAchievementUpdate:
		if pr.AchievementID == nil {
			return nil, apierr.Validation("achievement_update payload is missing achievement_id")
		}
		var p AchievementUpdate
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, apierr.Validation("malformed achievement payload: %v", err)
		}
		c = p
	case TypeAchievementDelete:
		if pr.AchievementID == nil {
			return nil, apierr.Validation("achievement_delete payload is missing achievement_id")
		}
		var p AchievementDelete
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, apierr.Validation("malformed achievement payload: %v", err)
		}
		c = p
	}

	if err := c.Validate(t); err != nil {
		return nil, err
	}
	return c, nil
}
