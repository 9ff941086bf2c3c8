package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/logger"
)

// transcriptTokenBudget caps how much conversation we send to the model.
// Oldest turns are dropped first; the snapshot is never truncated.
const transcriptTokenBudget = 6000

// ChatTurn is one turn of the refinement conversation as the model sees it.
type ChatTurn struct {
	Role    string
	Content string
}

// OverviewSuggestion proposes full replacement text for one overview field.
type OverviewSuggestion struct {
	ExperienceID uint   `json:"experience_id"`
	Content      string `json:"content"`
}

// SkillSuggestion proposes skills to add to one experience.
type SkillSuggestion struct {
	ExperienceID uint     `json:"experience_id"`
	Skills       []string `json:"skills"`
}

// AchievementSuggestion is a tagged add-or-update: command is "ADD" for a new
// achievement (achievement_id absent) or "UPDATE" for an existing one.
type AchievementSuggestion struct {
	ExperienceID  uint    `json:"experience_id"`
	Command       string  `json:"command"`
	AchievementID *uint   `json:"achievement_id,omitempty"`
	Title         *string `json:"title,omitempty"`
	Content       string  `json:"content"`
}

// SuggestionBundle is the structured output contract for proposal extraction.
type SuggestionBundle struct {
	RoleOverviewUpdates    []OverviewSuggestion    `json:"role_overview_updates"`
	CompanyOverviewUpdates []OverviewSuggestion    `json:"company_overview_updates"`
	SkillAdditions         []SkillSuggestion       `json:"skill_additions"`
	AchievementChanges     []AchievementSuggestion `json:"achievement_changes"`
}

func (b *SuggestionBundle) Empty() bool {
	return len(b.RoleOverviewUpdates) == 0 &&
		len(b.CompanyOverviewUpdates) == 0 &&
		len(b.SkillAdditions) == 0 &&
		len(b.AchievementChanges) == 0
}

type LLMService struct {
	Client llms.Model
	log    *logger.Logger
}

// NewLLMService initializes the Gemini client via langchaingo.
func NewLLMService(apiKey, model string, log *logger.Logger) *LLMService {
	ctx := context.Background()

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		log.Fatal("Failed to create Gemini client", "err", err)
	}

	return &LLMService{
		Client: llm,
		log:    log.With("service", "LLMService"),
	}
}

// IsQuotaError reports whether an LLM call failed on provider rate/quota
// exhaustion, so callers can surface a 429 instead of a generic failure.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429")
}

// GenerateSuggestions turns a refinement conversation plus the user's current
// experience snapshot into a structured SuggestionBundle.
func (s *LLMService) GenerateSuggestions(ctx context.Context, turns []ChatTurn, snapshot string) (*SuggestionBundle, error) {
	const suggestionPrompt = `
You are an expert career-history editor. You are given (A) the user's current work experience records and (B) a conversation in which the user discussed their work history. Your task is to propose concrete edits to the records based ONLY on what the conversation revealed.

### INSTRUCTIONS:
1. **Compare** the conversation against the current records.
2. **Propose** only edits the conversation actually supports. Do not invent facts.
3. **Reference** experiences and achievements by the numeric ids shown in the records.
4. **Write** overview texts as full replacements, not diffs.
5. **Format** the output as valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{
    "role_overview_updates": [{"experience_id": 1, "content": "Full replacement role overview"}],
    "company_overview_updates": [{"experience_id": 1, "content": "Full replacement company overview"}],
    "skill_additions": [{"experience_id": 1, "skills": ["Go", "PostgreSQL"]}],
    "achievement_changes": [
        {"experience_id": 1, "command": "ADD", "title": "Short headline", "content": "Achievement text"},
        {"experience_id": 1, "command": "UPDATE", "achievement_id": 7, "title": "Optional new title", "content": "Rewritten text"}
    ]
}

### CONSTRAINT:
If the conversation supports no edits at all, return all four lists empty. Omit "title" on UPDATE to keep the existing title. Never emit an id that does not appear in the records.

### CURRENT RECORDS:
%s

### CONVERSATION:
%s
`
	transcript := formatTranscript(truncateTranscript(turns, transcriptTokenBudget))

	prompt := fmt.Sprintf(suggestionPrompt, snapshot, transcript)
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		if IsQuotaError(err) {
			return nil, apierr.Quota(err)
		}
		return nil, err
	}

	var bundle SuggestionBundle
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &bundle); err != nil {
		return nil, fmt.Errorf("model returned unparseable suggestions: %w", err)
	}
	return &bundle, nil
}

// GenerateGapAnalysis writes a markdown gap analysis between the job
// description and the user's experience records.
func (s *LLMService) GenerateGapAnalysis(ctx context.Context, jobTitle, companyName, description, snapshot string) (string, error) {
	const gapPrompt = `
You are a career coach. Compare the candidate's work history against the target job and write a concise gap analysis in markdown.

### INSTRUCTIONS:
1. List the strongest matches between the history and the job requirements.
2. List the genuine gaps, each with one practical suggestion for addressing it in a resume or interview.
3. Keep it under 400 words. Output markdown only, no preamble.

### TARGET JOB:
Title: %s
Company: %s
Description:
%s

### CANDIDATE HISTORY:
%s
`
	prompt := fmt.Sprintf(gapPrompt, jobTitle, companyName, clip(description, 20000), snapshot)
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		if IsQuotaError(err) {
			return "", apierr.Quota(err)
		}
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// GenerateStakeholderAnalysis writes markdown notes on who the role likely
// serves and reports to, inferred from the job description.
func (s *LLMService) GenerateStakeholderAnalysis(ctx context.Context, jobTitle, companyName, description string) (string, error) {
	const stakeholderPrompt = `
You are a career coach. From the job posting below, infer the likely stakeholders of this role (manager, peer teams, customers) and what each will care about in the first 90 days. Write concise markdown.

### INSTRUCTIONS:
1. One short section per stakeholder group.
2. Ground every inference in the posting text; mark speculation as such.
3. Keep it under 300 words. Output markdown only, no preamble.

### JOB POSTING:
Title: %s
Company: %s
Description:
%s
`
	prompt := fmt.Sprintf(stakeholderPrompt, jobTitle, companyName, clip(description, 20000))
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		if IsQuotaError(err) {
			return "", apierr.Quota(err)
		}
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// ExtractJobDetails takes raw posting HTML and returns structured job fields.
func (s *LLMService) ExtractJobDetails(ctx context.Context, rawHTML string) (string, error) {
	const jobExtractionPrompt = `
You are an expert Job Data Extraction Agent. Your task is to analyze the provided raw HTML/Text from a job posting and extract structured data.

### INSTRUCTIONS:
1. **Analyze** the text to identify the core job details.
2. **Ignore** navigation menus, footers, "similar jobs" lists, and site advertisements.
3. **Extract** the following fields strictly.
4. **Format** the output as valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{
    "company_name": "Name of the company (e.g., Google, StartupInc)",
    "role_title": "Job title (e.g., Senior Backend Engineer)",
    "location": "Job location or 'Remote'",
    "description": "A clean summary of the job. Focus on Responsibilities and Requirements. Remove HTML tags."
}

### CONSTRAINT:
If a piece of information is missing, set the value to null. Do not hallucinate or guess.

### RAW CONTENT:
%s
`
	prompt := fmt.Sprintf(jobExtractionPrompt, clip(rawHTML, 20000))
	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		if IsQuotaError(err) {
			return "", apierr.Quota(err)
		}
		return "", err
	}
	return stripCodeFence(resp), nil
}

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// stripCodeFence tolerates models that wrap JSON in markdown fences despite
// the prompt saying not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func formatTranscript(turns []ChatTurn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(strings.ToUpper(t.Role))
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// truncateTranscript drops the oldest turns until the transcript fits the
// token budget. Falls back to a byte heuristic if the encoding is unavailable.
func truncateTranscript(turns []ChatTurn, budget int) []ChatTurn {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	count := func(s string) int {
		if err != nil {
			return len(s) / 4
		}
		return len(enc.Encode(s, nil, nil))
	}

	total := 0
	counts := make([]int, len(turns))
	for i, t := range turns {
		counts[i] = count(t.Content) + 4 // role prefix overhead
		total += counts[i]
	}

	start := 0
	for start < len(turns) && total > budget {
		total -= counts[start]
		start++
	}
	return turns[start:]
}
