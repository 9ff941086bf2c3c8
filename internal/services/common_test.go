package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/applyforge/applyforge-backend/internal/database"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// One named in-memory database per test; shared cache keeps every pooled
	// connection on the same database.
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testLog() *logger.Logger {
	return logger.NewNop()
}

func seedJob(t *testing.T, db *gorm.DB) *models.Job {
	t.Helper()
	job := &models.Job{
		CompanyName: "Stripe",
		Title:       "Senior Backend Engineer",
		Location:    "Remote",
		Description: "Build payment infrastructure in Go.",
		Status:      models.JobStatusTracked,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func seedSession(t *testing.T, db *gorm.DB, jobID uint) *models.IntakeSession {
	t.Helper()
	session := &models.IntakeSession{JobID: jobID, CurrentStep: 1}
	require.NoError(t, db.Create(session).Error)
	return session
}

func seedExperience(t *testing.T, db *gorm.DB, skills ...string) *models.Experience {
	t.Helper()
	exp := &models.Experience{
		Company:   "Initech",
		Title:     "Software Engineer",
		Location:  "Austin, TX",
		StartDate: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
		Skills:    skills,
	}
	require.NoError(t, db.Create(exp).Error)
	return exp
}

func seedAchievement(t *testing.T, db *gorm.DB, experienceID uint, title, content string, order int) *models.Achievement {
	t.Helper()
	ach := &models.Achievement{
		ExperienceID: experienceID,
		Title:        title,
		Content:      content,
		OrderIndex:   order,
	}
	require.NoError(t, db.Create(ach).Error)
	return ach
}
