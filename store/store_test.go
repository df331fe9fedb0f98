package store

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"careleads/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Agency{},
		&models.AgencySuboption{},
		&models.CCU{},
		&models.MCO{},
		&models.Lead{},
		&models.ActivityLog{},
		&models.EmailReminder{},
	))
	return db
}

// setupLeadStore wires a lead store with a fixed clock so date side effects
// are deterministic.
func setupLeadStore(t *testing.T) (*LeadStore, *ActivityStore, *time.Time) {
	t.Helper()
	db := setupTestDB(t)
	logger := testLogger()

	current := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	activity := NewActivityStore(db, logger)
	activity.Now = clock
	leads := NewLeadStore(db, logger, activity)
	leads.Now = clock
	return leads, activity, &current
}

func baseLeadCreate() LeadCreate {
	return LeadCreate{
		StaffName: "alice",
		FirstName: "Pat",
		LastName:  "Jones",
		Source:    models.SourceWeb,
		Phone:     "555-0100",
	}
}
