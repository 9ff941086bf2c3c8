package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/models"
)

func TestCreateVersionIndexIsMonotonic(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(db, testLog())
	ctx := context.Background()
	job := seedJob(t, db)

	for i := 1; i <= 3; i++ {
		v, err := svc.CreateVersion(ctx, job.ID, models.DocumentKindResume, fmt.Sprintf("content %d", i), "modern", nil)
		require.NoError(t, err)
		assert.Equal(t, i, v.VersionIndex)
	}

	// Pin/unpin churn must not disturb the index sequence.
	versions, err := svc.ListVersions(ctx, job.ID, models.DocumentKindResume)
	require.NoError(t, err)
	_, err = svc.Pin(ctx, job.ID, models.DocumentKindResume, versions[1].ID)
	require.NoError(t, err)
	require.NoError(t, svc.Unpin(ctx, job.ID, models.DocumentKindResume))
	_, err = svc.Pin(ctx, job.ID, models.DocumentKindResume, versions[0].ID)
	require.NoError(t, err)

	v, err := svc.CreateVersion(ctx, job.ID, models.DocumentKindResume, "content 4", "modern", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, v.VersionIndex)

	// Kinds have independent sequences.
	cv, err := svc.CreateVersion(ctx, job.ID, models.DocumentKindCoverLetter, "dear team", "plain", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cv.VersionIndex)
}

func TestPinCopiesContentWithoutAlteringHistory(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(db, testLog())
	ctx := context.Background()
	job := seedJob(t, db)

	v1, err := svc.CreateVersion(ctx, job.ID, models.DocumentKindResume, "draft one", "modern", nil)
	require.NoError(t, err)
	v2, err := svc.CreateVersion(ctx, job.ID, models.DocumentKindResume, "draft two", "classic", &v1.ID)
	require.NoError(t, err)
	require.Equal(t, &v1.ID, v2.ParentVersionID)

	doc, err := svc.Pin(ctx, job.ID, models.DocumentKindResume, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft two", doc.Content)
	assert.Equal(t, "classic", doc.TemplateName)

	// Re-pin the older version; the canonical row moves, history does not.
	doc, err = svc.Pin(ctx, job.ID, models.DocumentKindResume, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft one", doc.Content)

	versions, err := svc.ListVersions(ctx, job.ID, models.DocumentKindResume)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "draft one", versions[0].Content)
	assert.Equal(t, "draft two", versions[1].Content)

	var docCount int64
	require.NoError(t, db.Model(&models.Document{}).Count(&docCount).Error)
	assert.EqualValues(t, 1, docCount, "at most one canonical row per (job, kind)")
}

func TestUnpinClearsCanonicalOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(db, testLog())
	ctx := context.Background()
	job := seedJob(t, db)

	v, err := svc.CreateVersion(ctx, job.ID, models.DocumentKindCoverLetter, "dear team", "plain", nil)
	require.NoError(t, err)
	_, err = svc.Pin(ctx, job.ID, models.DocumentKindCoverLetter, v.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Unpin(ctx, job.ID, models.DocumentKindCoverLetter))

	_, err = svc.GetCanonical(ctx, job.ID, models.DocumentKindCoverLetter)
	require.Error(t, err)
	assert.Equal(t, "not_found", apierr.CodeOf(err))

	versions, err := svc.ListVersions(ctx, job.ID, models.DocumentKindCoverLetter)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestAppliedJobLocksDocuments(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(db, testLog())
	ctx := context.Background()
	job := seedJob(t, db)

	v, err := svc.CreateVersion(ctx, job.ID, models.DocumentKindResume, "draft", "modern", nil)
	require.NoError(t, err)

	require.NoError(t, db.Model(job).Update("status", models.JobStatusApplied).Error)

	_, err = svc.CreateVersion(ctx, job.ID, models.DocumentKindResume, "late edit", "modern", nil)
	require.Error(t, err)
	assert.Equal(t, "job_locked", apierr.CodeOf(err))

	_, err = svc.Pin(ctx, job.ID, models.DocumentKindResume, v.ID)
	require.Error(t, err)
	assert.Equal(t, "job_locked", apierr.CodeOf(err))

	// Reads stay available on a locked job.
	versions, err := svc.ListVersions(ctx, job.ID, models.DocumentKindResume)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestPinRejectsForeignVersion(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(db, testLog())
	ctx := context.Background()

	jobA := seedJob(t, db)
	jobB := seedJob(t, db)

	v, err := svc.CreateVersion(ctx, jobA.ID, models.DocumentKindResume, "draft", "modern", nil)
	require.NoError(t, err)

	_, err = svc.Pin(ctx, jobB.ID, models.DocumentKindResume, v.ID)
	require.Error(t, err)
	assert.Equal(t, "not_found", apierr.CodeOf(err))

	// A version cannot be pinned under the wrong kind either.
	_, err = svc.Pin(ctx, jobA.ID, models.DocumentKindCoverLetter, v.ID)
	require.Error(t, err)
	assert.Equal(t, "not_found", apierr.CodeOf(err))
}

func TestCreateVersionRejectsUnknownKindAndJob(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(db, testLog())
	ctx := context.Background()
	job := seedJob(t, db)

	_, err := svc.CreateVersion(ctx, job.ID, "poem", "x", "modern", nil)
	require.Error(t, err)
	assert.Equal(t, "validation", apierr.CodeOf(err))

	_, err = svc.CreateVersion(ctx, 9999, models.DocumentKindResume, "x", "modern", nil)
	require.Error(t, err)
	assert.Equal(t, "not_found", apierr.CodeOf(err))
}
