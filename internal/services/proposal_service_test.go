package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/models"
	"github.com/applyforge/applyforge-backend/internal/proposals"
)

func mustPayload(t *testing.T, c proposals.Content) string {
	t.Helper()
	raw, err := proposals.Marshal(c)
	require.NoError(t, err)
	return raw
}

func seedProposal(t *testing.T, svc *ProposalService, sessionID, experienceID uint, achievementID *uint, pType proposals.Type, content proposals.Content) *models.Proposal {
	t.Helper()
	raw := mustPayload(t, content)
	p := &models.Proposal{
		SessionID:               sessionID,
		ExperienceID:            experienceID,
		AchievementID:           achievementID,
		Type:                    string(pType),
		Status:                  models.ProposalStatusPending,
		ProposedContent:         raw,
		OriginalProposedContent: raw,
	}
	require.NoError(t, svc.DB.Create(p).Error)
	return p
}

func TestAcceptSkillAddUnionsSkills(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db, "Go")

	p := seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeSkillAdd,
		proposals.SkillChange{Cmd: proposals.CommandAdd, Skills: []string{"Rust", "Go"}})

	accepted, err := svc.Accept(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusAccepted, accepted.Status)

	var got models.Experience
	require.NoError(t, db.First(&got, exp.ID).Error)
	assert.ElementsMatch(t, []string{"Go", "Rust"}, []string(got.Skills), "duplicate Go must not be re-added")
}

func TestAcceptSkillDeleteRemovesMatches(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db, "Go", "PHP", "Rust")

	p := seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeSkillDelete,
		proposals.SkillChange{Cmd: proposals.CommandDelete, Skills: []string{"PHP"}})

	_, err := svc.Accept(ctx, p.ID)
	require.NoError(t, err)

	var got models.Experience
	require.NoError(t, db.First(&got, exp.ID).Error)
	assert.ElementsMatch(t, []string{"Go", "Rust"}, []string(got.Skills))
}

func TestAcceptAchievementUpdateKeepsTitleWhenAbsent(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)
	ach := seedAchievement(t, db, exp.ID, "Old", "Original content", 0)

	p := seedProposal(t, svc, session.ID, exp.ID, &ach.ID, proposals.TypeAchievementUpdate,
		proposals.AchievementUpdate{Cmd: proposals.CommandUpdate, AchievementID: ach.ID, Content: "X"})

	_, err := svc.Accept(ctx, p.ID)
	require.NoError(t, err)

	var got models.Achievement
	require.NoError(t, db.First(&got, ach.ID).Error)
	assert.Equal(t, "Old", got.Title, "absent title must keep the existing title")
	assert.Equal(t, "X", got.Content)
}

func TestAcceptAchievementAddAppendsAfterExisting(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)
	seedAchievement(t, db, exp.ID, "First", "a", 0)
	seedAchievement(t, db, exp.ID, "Second", "b", 1)

	p := seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeAchievementAdd,
		proposals.AchievementAdd{Cmd: proposals.CommandAdd, Title: "Third", Content: "c"})

	_, err := svc.Accept(ctx, p.ID)
	require.NoError(t, err)

	var achievements []models.Achievement
	require.NoError(t, db.Where("experience_id = ?", exp.ID).Order("order_index asc").Find(&achievements).Error)
	require.Len(t, achievements, 3)
	assert.Equal(t, "Third", achievements[2].Title)
	assert.Equal(t, 2, achievements[2].OrderIndex)
}

func TestAcceptAchievementDeleteRemovesRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)
	ach := seedAchievement(t, db, exp.ID, "Doomed", "x", 0)

	p := seedProposal(t, svc, session.ID, exp.ID, &ach.ID, proposals.TypeAchievementDelete,
		proposals.AchievementDelete{Cmd: proposals.CommandDelete, AchievementID: ach.ID})

	_, err := svc.Accept(ctx, p.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Achievement{}).Where("id = ?", ach.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAcceptOverviewUpdateReplacesField(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)

	role := seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeRoleOverviewUpdate,
		proposals.OverviewUpdate{Cmd: proposals.CommandUpdate, Content: "Owned the billing pipeline."})
	company := seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeCompanyOverviewUpdate,
		proposals.OverviewUpdate{Cmd: proposals.CommandUpdate, Content: "B2B SaaS, 200 people."})

	_, err := svc.Accept(ctx, role.ID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, company.ID)
	require.NoError(t, err)

	var got models.Experience
	require.NoError(t, db.First(&got, exp.ID).Error)
	require.NotNil(t, got.RoleOverview)
	require.NotNil(t, got.CompanyOverview)
	assert.Equal(t, "Owned the billing pipeline.", *got.RoleOverview)
	assert.Equal(t, "B2B SaaS, 200 people.", *got.CompanyOverview)
}

func TestResolveTwiceIsConflict(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)

	reject := seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeSkillAdd,
		proposals.SkillChange{Cmd: proposals.CommandAdd, Skills: []string{"Go"}})
	_, err := svc.Reject(ctx, reject.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, reject.ID)
	require.Error(t, err)
	assert.Equal(t, "conflict", apierr.CodeOf(err))

	accept := seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeSkillAdd,
		proposals.SkillChange{Cmd: proposals.CommandAdd, Skills: []string{"Go"}})
	_, err = svc.Accept(ctx, accept.ID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, accept.ID)
	require.Error(t, err)
	assert.Equal(t, "conflict", apierr.CodeOf(err))
	_, err = svc.Reject(ctx, accept.ID)
	require.Error(t, err)
	assert.Equal(t, "conflict", apierr.CodeOf(err))
}

func TestAcceptFailureLeavesProposalPending(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)
	other := seedExperience(t, db)
	ach := seedAchievement(t, db, other.ID, "Elsewhere", "x", 0)

	// Achievement belongs to a different experience than the proposal references.
	p := seedProposal(t, svc, session.ID, exp.ID, &ach.ID, proposals.TypeAchievementUpdate,
		proposals.AchievementUpdate{Cmd: proposals.CommandUpdate, AchievementID: ach.ID, Content: "X"})

	_, err := svc.Accept(ctx, p.ID)
	require.Error(t, err)
	assert.Equal(t, "not_found", apierr.CodeOf(err))

	var got models.Proposal
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, models.ProposalStatusPending, got.Status)

	var gotAch models.Achievement
	require.NoError(t, db.First(&gotAch, ach.ID).Error)
	assert.Equal(t, "x", gotAch.Content, "no side effect on validation failure")
}

func TestEditValidatesTypeAndPreservesOriginal(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)

	original := proposals.SkillChange{Cmd: proposals.CommandAdd, Skills: []string{"Go"}}
	p := seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeSkillAdd, original)

	// Payload of the wrong shape is rejected.
	_, err := svc.Edit(ctx, p.ID, `{"command":"UPDATE","content":"nope"}`)
	require.Error(t, err)
	assert.Equal(t, "validation", apierr.CodeOf(err))

	edited := mustPayload(t, proposals.SkillChange{Cmd: proposals.CommandAdd, Skills: []string{"Go", "Kubernetes"}})
	got, err := svc.Edit(ctx, p.ID, edited)
	require.NoError(t, err)
	assert.Equal(t, edited, got.ProposedContent)
	assert.Equal(t, mustPayload(t, original), got.OriginalProposedContent, "original must never change")

	// Revert restores the AI payload.
	reverted, err := svc.Revert(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, reverted.OriginalProposedContent, reverted.ProposedContent)
}

func TestListGroupedOrdersByCategory(t *testing.T) {
	db := newTestDB(t)
	svc := NewProposalService(db, testLog())
	ctx := context.Background()

	job := seedJob(t, db)
	session := seedSession(t, db, job.ID)
	exp := seedExperience(t, db)
	ach := seedAchievement(t, db, exp.ID, "A", "x", 0)

	// Inserted deliberately out of display order.
	seedProposal(t, svc, session.ID, exp.ID, &ach.ID, proposals.TypeAchievementDelete,
		proposals.AchievementDelete{Cmd: proposals.CommandDelete, AchievementID: ach.ID})
	seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeSkillAdd,
		proposals.SkillChange{Cmd: proposals.CommandAdd, Skills: []string{"Go"}})
	seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeRoleOverviewUpdate,
		proposals.OverviewUpdate{Cmd: proposals.CommandUpdate, Content: "Role."})
	seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeCompanyOverviewUpdate,
		proposals.OverviewUpdate{Cmd: proposals.CommandUpdate, Content: "Company."})
	seedProposal(t, svc, session.ID, exp.ID, &ach.ID, proposals.TypeAchievementUpdate,
		proposals.AchievementUpdate{Cmd: proposals.CommandUpdate, AchievementID: ach.ID, Content: "New."})
	seedProposal(t, svc, session.ID, exp.ID, nil, proposals.TypeAchievementAdd,
		proposals.AchievementAdd{Cmd: proposals.CommandAdd, Title: "B", Content: "y"})

	groups, err := svc.ListGrouped(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Proposals, 6)

	gotOrder := make([]string, 0, 6)
	for _, p := range groups[0].Proposals {
		gotOrder = append(gotOrder, p.Type)
	}
	assert.Equal(t, []string{
		string(proposals.TypeCompanyOverviewUpdate),
		string(proposals.TypeRoleOverviewUpdate),
		string(proposals.TypeSkillAdd),
		string(proposals.TypeAchievementAdd),
		string(proposals.TypeAchievementUpdate),
		string(proposals.TypeAchievementDelete),
	}, gotOrder)
}
