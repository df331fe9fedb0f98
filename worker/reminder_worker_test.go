package worker

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"careleads/models"
	"careleads/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type sentMail struct {
	To      string
	Subject string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(to, subject, textBody, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

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

// testWorker builds a worker with a controllable clock shared by every
// store, and pacing disabled.
func testWorker(t *testing.T, db *gorm.DB, sender *fakeSender) (*ReminderWorker, *time.Time) {
	t.Helper()
	current := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	w := NewReminderWorker(db, sender, testLogger())
	w.Now = clock
	w.Leads.Now = clock
	w.Users.Now = clock
	w.Activity.Now = clock
	w.Reminders.Now = clock
	w.SendDelay = 0
	w.SendTimeout = 0
	return w, &current
}

func createStaff(t *testing.T, db *gorm.DB, username, email string) *models.User {
	t.Helper()
	user := &models.User{
		Username:       username,
		Email:          email,
		HashedPassword: "x",
		Role:           models.RoleUser,
		IsApproved:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createLead(t *testing.T, db *gorm.DB, lead *models.Lead) *models.Lead {
	t.Helper()
	if lead.StaffName == "" {
		lead.StaffName = lead.CreatedBy
	}
	if lead.Source == "" {
		lead.Source = models.SourceWeb
	}
	if lead.Phone == "" {
		lead.Phone = "555-0100"
	}
	if lead.LastContactStatus == "" {
		lead.LastContactStatus = "Intro Call"
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

func TestFirstReminderIsImmediate(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, _ := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	createLead(t, db, &models.Lead{
		CreatedBy: "alice",
		FirstName: "Pat",
		LastName:  "Jones",
	})

	require.NoError(t, w.RunPass(context.Background()))

	require.Equal(t, 1, sender.count())
	assert.Equal(t, "alice@example.com", sender.last().To)

	var reminders []models.EmailReminder
	require.NoError(t, db.Find(&reminders).Error)
	require.Len(t, reminders, 1)
	assert.Equal(t, models.ReminderGeneral, reminders[0].Kind)
	assert.Equal(t, models.ReminderStatusSent, reminders[0].Status)
	assert.Equal(t, "Pat Jones", reminders[0].LeadName)
}

func TestLeadThresholdIs48Hours(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, clock := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	createLead(t, db, &models.Lead{
		CreatedBy: "alice",
		FirstName: "Pat",
		LastName:  "Jones",
	})

	require.NoError(t, w.RunPass(context.Background()))
	require.Equal(t, 1, sender.count())

	// 47 hours later: still inside the window
	*clock = clock.Add(47 * time.Hour)
	require.NoError(t, w.RunPass(context.Background()))
	assert.Equal(t, 1, sender.count())

	// 49 hours after the first send: due again
	*clock = clock.Add(2 * time.Hour)
	require.NoError(t, w.RunPass(context.Background()))
	assert.Equal(t, 2, sender.count())
}

func TestReferralThresholdIs6Hours(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, clock := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	referralType := models.ReferralRegular
	createLead(t, db, &models.Lead{
		CreatedBy:    "alice",
		FirstName:    "Ray",
		LastName:     "Kim",
		ActiveClient: true,
		ReferralType: &referralType,
	})

	require.NoError(t, w.RunPass(context.Background()))
	require.Equal(t, 1, sender.count())

	*clock = clock.Add(5 * time.Hour)
	require.NoError(t, w.RunPass(context.Background()))
	assert.Equal(t, 1, sender.count())

	*clock = clock.Add(2 * time.Hour)
	require.NoError(t, w.RunPass(context.Background()))
	assert.Equal(t, 2, sender.count())
}

func TestNotStartReferralStaysOnSixHourCadence(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, clock := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	referralType := models.ReferralRegular
	careStatus := models.CareStatusNotStart
	createLead(t, db, &models.Lead{
		CreatedBy:    "alice",
		FirstName:    "Gia",
		LastName:     "Park",
		ActiveClient: true,
		ReferralType: &referralType,
		CareStatus:   &careStatus,
	})

	// "Not Start" does not suppress follow-ups; the first is immediate.
	require.NoError(t, w.RunPass(context.Background()))
	require.Equal(t, 1, sender.count())

	// One minute inside the window: not due
	*clock = clock.Add(5*time.Hour + 59*time.Minute)
	require.NoError(t, w.RunPass(context.Background()))
	assert.Equal(t, 1, sender.count())

	// Exactly six hours after the first send: due
	*clock = clock.Add(time.Minute)
	require.NoError(t, w.RunPass(context.Background()))
	assert.Equal(t, 2, sender.count())
}

func TestCareStartFreezesAllTracks(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, _ := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	referralType := models.ReferralRegular
	careStatus := models.CareStatusStart
	now := time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)
	createLead(t, db, &models.Lead{
		CreatedBy:               "alice",
		FirstName:               "Lee",
		LastName:                "Soto",
		ActiveClient:            true,
		ReferralType:            &referralType,
		AuthorizationReceived:   true,
		AuthorizationReceivedAt: &now,
		CareStatus:              &careStatus,
	})

	require.NoError(t, w.RunPass(context.Background()))
	assert.Equal(t, 0, sender.count())
}

func TestInactiveSuppressesReminders(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, _ := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	createLead(t, db, &models.Lead{
		CreatedBy:         "alice",
		FirstName:         "Dee",
		LastName:          "Ng",
		LastContactStatus: models.ContactStatusInactive,
	})

	require.NoError(t, w.RunPass(context.Background()))
	assert.Equal(t, 0, sender.count())
}

func TestAuthorizedReferralGetsBothTracks(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, _ := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	referralType := models.ReferralRegular
	authorizedAt := time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)
	lead := createLead(t, db, &models.Lead{
		CreatedBy:               "alice",
		FirstName:               "Ana",
		LastName:                "Ruiz",
		ActiveClient:            true,
		ReferralType:            &referralType,
		AuthorizationReceived:   true,
		AuthorizationReceivedAt: &authorizedAt,
	})

	require.NoError(t, w.RunPass(context.Background()))
	require.Equal(t, 2, sender.count())

	general, err := w.Reminders.ByLead(lead.ID, models.ReminderGeneral)
	require.NoError(t, err)
	assert.Len(t, general, 1)

	careStart, err := w.Reminders.ByLead(lead.ID, models.ReminderCareStart)
	require.NoError(t, err)
	require.Len(t, careStart, 1)
	assert.Contains(t, careStart[0].Subject, "Care Start Pending")
}

func TestCareStartSkipsWithoutProvableAuthorizationTime(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, _ := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	referralType := models.ReferralRegular
	lead := createLead(t, db, &models.Lead{
		CreatedBy:             "alice",
		FirstName:             "Bo",
		LastName:              "Tran",
		ActiveClient:          true,
		ReferralType:          &referralType,
		AuthorizationReceived: true,
		// No AuthorizationReceivedAt and no audit history
	})

	require.NoError(t, w.RunPass(context.Background()))

	// The general track still fires; the care-start track must not guess.
	careStart, err := w.Reminders.ByLead(lead.ID, models.ReminderCareStart)
	require.NoError(t, err)
	assert.Empty(t, careStart)

	general, err := w.Reminders.ByLead(lead.ID, models.ReminderGeneral)
	require.NoError(t, err)
	assert.Len(t, general, 1)
}

func TestCareStartRecoversAuthorizationTimeFromHistory(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, _ := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	referralType := models.ReferralRegular
	lead := createLead(t, db, &models.Lead{
		CreatedBy:             "alice",
		FirstName:             "Ira",
		LastName:              "Wolf",
		ActiveClient:          true,
		ReferralType:          &referralType,
		AuthorizationReceived: true,
	})

	// Legacy row: the flip is only visible in the audit trail.
	_, err := w.Activity.Record(db, store.ActivityRecord{
		Username:   "alice",
		ActionType: models.ActionLeadUpdated,
		EntityType: models.EntityLead,
		EntityID:   &lead.ID,
		EntityName: lead.FullName(),
		OldValue:   map[string]interface{}{"authorization_received": false},
		NewValue:   map[string]interface{}{"authorization_received": true},
	})
	require.NoError(t, err)

	require.NoError(t, w.RunPass(context.Background()))

	careStart, err := w.Reminders.ByLead(lead.ID, models.ReminderCareStart)
	require.NoError(t, err)
	assert.Len(t, careStart, 1)
}

func TestFailedSendIsRecordedAndPassContinues(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{err: errors.New("smtp connection refused")}
	w, _ := testWorker(t, db, sender)

	createStaff(t, db, "alice", "alice@example.com")
	lead := createLead(t, db, &models.Lead{
		CreatedBy: "alice",
		FirstName: "Sam",
		LastName:  "Hale",
	})
	createLead(t, db, &models.Lead{
		CreatedBy: "alice",
		FirstName: "Max",
		LastName:  "Dunn",
		Phone:     "555-0101",
	})

	require.NoError(t, w.RunPass(context.Background()))

	// Both leads were attempted despite the failures
	var reminders []models.EmailReminder
	require.NoError(t, db.Order("lead_id").Find(&reminders).Error)
	require.Len(t, reminders, 2)
	for _, r := range reminders {
		assert.Equal(t, models.ReminderStatusFailed, r.Status)
		require.NotNil(t, r.ErrorMessage)
		assert.Contains(t, *r.ErrorMessage, "smtp connection refused")
	}

	rows, err := w.Reminders.ByLead(lead.ID, models.ReminderGeneral)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMissingCreatorEmailSkipsSilently(t *testing.T) {
	db := setupTestDB(t)
	sender := &fakeSender{}
	w, _ := testWorker(t, db, sender)

	// Lead creator has no account at all
	createLead(t, db, &models.Lead{
		CreatedBy: "ghost",
		FirstName: "No",
		LastName:  "Body",
	})

	require.NoError(t, w.RunPass(context.Background()))

	assert.Equal(t, 0, sender.count())
	var count int64
	require.NoError(t, db.Model(&models.EmailReminder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSendTimeout(t *testing.T) {
	db := setupTestDB(t)
	w := NewReminderWorker(db, nil, testLogger())
	w.SendTimeout = 10 * time.Millisecond
	w.Sender = slowSender{delay: time.Second}

	err := w.sendWithTimeout("a@example.com", "s", "t", "h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

type slowSender struct {
	delay time.Duration
}

func (s slowSender) Send(to, subject, textBody, htmlBody string) error {
	time.Sleep(s.delay)
	return nil
}
