package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/models"
	"github.com/applyforge/applyforge-backend/internal/proposals"
)

// fakeGenerator scripts the LLM response for extraction tests.
type fakeGenerator struct {
	calls  int
	bundle *SuggestionBundle
	err    error
}

func (f *fakeGenerator) GenerateSuggestions(ctx context.Context, turns []ChatTurn, snapshot string) (*SuggestionBundle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bundle, nil
}

func seedMessage(t *testing.T, svc *ExtractionService, sessionID uint, role, content string) {
	t.Helper()
	require.NoError(t, svc.DB.Create(&models.IntakeMessage{SessionID: sessionID, Role: role, Content: content}).Error)
}

func TestExtractEmptyTranscriptSkipsLLM(t *testing.T) {
	db := newTestDB(t)
	gen := &fakeGenerator{bundle: &SuggestionBundle{}}
	svc := NewExtractionService(db, gen, testLog())

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)

	outcome, err := svc.ExtractProposals(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Degraded)
	assert.Equal(t, ReasonEmptyTranscript, outcome.Reason)
	assert.Empty(t, outcome.Proposals)
	assert.Zero(t, gen.calls, "LLM must not be called without a transcript")
}

func TestExtractMaterializesPendingProposals(t *testing.T) {
	db := newTestDB(t)

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db, "Go")
	ach := seedAchievement(t, db, exp.ID, "Old", "original", 0)

	newTitle := "Sharper title"
	gen := &fakeGenerator{bundle: &SuggestionBundle{
		RoleOverviewUpdates: []OverviewSuggestion{{ExperienceID: exp.ID, Content: "Led the team."}},
		SkillAdditions:      []SkillSuggestion{{ExperienceID: exp.ID, Skills: []string{"Kubernetes"}}},
		AchievementChanges: []AchievementSuggestion{
			{ExperienceID: exp.ID, Command: "ADD", Title: &newTitle, Content: "Shipped the thing."},
			{ExperienceID: exp.ID, Command: "UPDATE", AchievementID: &ach.ID, Content: "Rewritten."},
		},
	}}
	svc := NewExtractionService(db, gen, testLog())
	seedMessage(t, svc, session.ID, "user", "I also led the migration to Kubernetes.")
	seedMessage(t, svc, session.ID, "assistant", "Great, tell me more.")

	outcome, err := svc.ExtractProposals(context.Background(), session.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Degraded)
	require.Len(t, outcome.Proposals, 4)

	for _, p := range outcome.Proposals {
		assert.Equal(t, models.ProposalStatusPending, p.Status)
		assert.Equal(t, p.OriginalProposedContent, p.ProposedContent, "both payload copies start identical")
		assert.Equal(t, session.ID, p.SessionID)

		// Every stored payload must parse as its declared type.
		_, perr := proposals.Parse(proposals.Type(p.Type), p.ProposedContent)
		assert.NoError(t, perr)
	}

	var count int64
	require.NoError(t, db.Model(&models.Proposal{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.EqualValues(t, 4, count)
}

func TestExtractDropsSuggestionsWithUnknownIDs(t *testing.T) {
	db := newTestDB(t)

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)
	unknownAch := uint(4242)

	gen := &fakeGenerator{bundle: &SuggestionBundle{
		RoleOverviewUpdates: []OverviewSuggestion{
			{ExperienceID: exp.ID, Content: "Valid."},
			{ExperienceID: 999, Content: "Hallucinated experience."},
		},
		AchievementChanges: []AchievementSuggestion{
			{ExperienceID: exp.ID, Command: "UPDATE", AchievementID: &unknownAch, Content: "Hallucinated achievement."},
			{ExperienceID: exp.ID, Command: "UPDATE", Content: "Update without id."},
		},
	}}
	svc := NewExtractionService(db, gen, testLog())
	seedMessage(t, svc, session.ID, "user", "hello")

	outcome, err := svc.ExtractProposals(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, outcome.Proposals, 1)
	assert.Equal(t, string(proposals.TypeRoleOverviewUpdate), outcome.Proposals[0].Type)
}

func TestExtractDegradesOnLLMFailure(t *testing.T) {
	db := newTestDB(t)

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	seedExperience(t, db)

	gen := &fakeGenerator{err: errors.New("connection reset")}
	svc := NewExtractionService(db, gen, testLog())
	seedMessage(t, svc, session.ID, "user", "hello")

	outcome, err := svc.ExtractProposals(context.Background(), session.ID)
	require.NoError(t, err, "extraction failures must not propagate")
	assert.True(t, outcome.Degraded)
	assert.Equal(t, ReasonLLMError, outcome.Reason)
	assert.Empty(t, outcome.Proposals)
}

func TestExtractDegradesDistinctlyOnQuota(t *testing.T) {
	db := newTestDB(t)

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	seedExperience(t, db)

	gen := &fakeGenerator{err: apierr.Quota(errors.New("RESOURCE_EXHAUSTED: quota exceeded"))}
	svc := NewExtractionService(db, gen, testLog())
	seedMessage(t, svc, session.ID, "user", "hello")

	outcome, err := svc.ExtractProposals(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Degraded)
	assert.Equal(t, ReasonLLMQuota, outcome.Reason)
}

func TestExtractEmptyBundleIsNoSuggestions(t *testing.T) {
	db := newTestDB(t)

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	seedExperience(t, db)

	gen := &fakeGenerator{bundle: &SuggestionBundle{}}
	svc := NewExtractionService(db, gen, testLog())
	seedMessage(t, svc, session.ID, "user", "nothing new really")

	outcome, err := svc.ExtractProposals(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Degraded)
	assert.Equal(t, ReasonNoSuggestions, outcome.Reason)
	assert.Equal(t, 1, gen.calls)
}

func TestExtractUnknownSessionIsNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewExtractionService(db, &fakeGenerator{}, testLog())

	_, err := svc.ExtractProposals(context.Background(), 12345)
	require.Error(t, err)
	assert.Equal(t, "not_found", apierr.CodeOf(err))
}
