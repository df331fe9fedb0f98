package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"careleads/models"
	"careleads/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLeadRejectsDuplicates(t *testing.T) {
	leads, _, _ := setupLeadStore(t)

	first, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	_, err = leads.Create(baseLeadCreate(), "bob", nil)
	var dup *DuplicateLeadError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)

	// Same name with a different phone is a different person
	in := baseLeadCreate()
	in.Phone = "555-0199"
	_, err = leads.Create(in, "bob", nil)
	assert.NoError(t, err)
}

func TestCreateLeadWritesAuditEntry(t *testing.T) {
	leads, activity, _ := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", utils.Pointer(uint(7)))
	require.NoError(t, err)

	history, err := activity.LeadHistory(lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	entry := history[0]
	assert.Equal(t, models.ActionLeadCreated, entry.ActionType)
	assert.Equal(t, "alice", entry.Username)
	assert.Equal(t, "Pat Jones", entry.EntityName)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, uint(7), *entry.UserID)
	require.NotNil(t, entry.NewValue)

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*entry.NewValue), &snapshot))
	assert.Equal(t, models.SourceWeb, snapshot["source"])
}

func TestTransferLeadArrivesInCare(t *testing.T) {
	leads, _, clock := setupLeadStore(t)

	in := baseLeadCreate()
	in.Source = models.SourceTransfer
	lead, err := leads.Create(in, "alice", nil)
	require.NoError(t, err)

	assert.True(t, lead.ActiveClient)
	assert.True(t, lead.AuthorizationReceived)
	require.NotNil(t, lead.AuthorizationReceivedAt)
	assert.True(t, lead.AuthorizationReceivedAt.Equal(*clock))
	require.NotNil(t, lead.ReferralType)
	assert.Equal(t, models.ReferralRegular, *lead.ReferralType)
	require.NotNil(t, lead.CareStatus)
	assert.Equal(t, models.CareStatusStart, *lead.CareStatus)
	require.NotNil(t, lead.SOCDate)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), *lead.SOCDate)
}

func TestMarkReferralRequiresType(t *testing.T) {
	leads, _, _ := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	_, err = leads.Update(lead.ID, LeadUpdate{
		ActiveClient: utils.Pointer(true),
	}, "alice", nil)
	assert.ErrorIs(t, err, models.ErrReferralTypeRequired)

	_, err = leads.Update(lead.ID, LeadUpdate{
		ActiveClient: utils.Pointer(true),
		ReferralType: utils.Pointer("Express"),
	}, "alice", nil)
	assert.ErrorIs(t, err, models.ErrInvalidReferralType)

	updated, err := leads.Update(lead.ID, LeadUpdate{
		ActiveClient: utils.Pointer(true),
		ReferralType: utils.Pointer(models.ReferralInterim),
	}, "alice", nil)
	require.NoError(t, err)
	assert.True(t, updated.ActiveClient)
}

func TestCareStartRequiresAuthorization(t *testing.T) {
	leads, _, _ := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	_, err = leads.Update(lead.ID, LeadUpdate{
		ActiveClient: utils.Pointer(true),
		ReferralType: utils.Pointer(models.ReferralRegular),
		CareStatus:   utils.Pointer(models.CareStatusStart),
	}, "alice", nil)
	assert.ErrorIs(t, err, models.ErrCareStartRequiresAuthorization)
}

func TestAuthorizationStampsReceivedAt(t *testing.T) {
	leads, _, clock := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	updated, err := leads.Update(lead.ID, LeadUpdate{
		ActiveClient:          utils.Pointer(true),
		ReferralType:          utils.Pointer(models.ReferralRegular),
		AuthorizationReceived: utils.Pointer(true),
	}, "alice", nil)
	require.NoError(t, err)
	require.NotNil(t, updated.AuthorizationReceivedAt)
	assert.True(t, updated.AuthorizationReceivedAt.Equal(*clock))

	// Revoking the flag clears the timestamp
	updated, err = leads.Update(lead.ID, LeadUpdate{
		AuthorizationReceived: utils.Pointer(false),
	}, "alice", nil)
	require.NoError(t, err)
	assert.Nil(t, updated.AuthorizationReceivedAt)
}

func TestCareStatusDrivesSOCDate(t *testing.T) {
	leads, _, _ := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	updated, err := leads.Update(lead.ID, LeadUpdate{
		ActiveClient:          utils.Pointer(true),
		ReferralType:          utils.Pointer(models.ReferralRegular),
		AuthorizationReceived: utils.Pointer(true),
		CareStatus:            utils.Pointer(models.CareStatusStart),
	}, "alice", nil)
	require.NoError(t, err)
	require.NotNil(t, updated.SOCDate)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), *updated.SOCDate)

	updated, err = leads.Update(lead.ID, LeadUpdate{
		CareStatus: utils.Pointer(models.CareStatusNotStart),
	}, "alice", nil)
	require.NoError(t, err)
	assert.Nil(t, updated.SOCDate)
}

func TestUnmarkReferralResetsEverything(t *testing.T) {
	leads, activity, _ := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	_, err = leads.Update(lead.ID, LeadUpdate{
		ActiveClient:          utils.Pointer(true),
		ReferralType:          utils.Pointer(models.ReferralRegular),
		AuthorizationReceived: utils.Pointer(true),
		CareStatus:            utils.Pointer(models.CareStatusStart),
	}, "alice", nil)
	require.NoError(t, err)

	updated, err := leads.Update(lead.ID, LeadUpdate{
		ActiveClient: utils.Pointer(false),
	}, "alice", nil)
	require.NoError(t, err)

	assert.False(t, updated.ActiveClient)
	assert.Nil(t, updated.ReferralType)
	assert.False(t, updated.AuthorizationReceived)
	assert.Nil(t, updated.AuthorizationReceivedAt)
	assert.Nil(t, updated.CareStatus)
	assert.Nil(t, updated.SOCDate)

	history, err := activity.LeadHistory(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionReferralUnmarked, history[0].ActionType)
}

func TestUpdateActionTypePriority(t *testing.T) {
	leads, activity, _ := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	// Referral flag and status change together: the referral wins, but the
	// diff keeps both fields.
	_, err = leads.Update(lead.ID, LeadUpdate{
		ActiveClient:      utils.Pointer(true),
		ReferralType:      utils.Pointer(models.ReferralRegular),
		LastContactStatus: utils.Pointer("Follow Up"),
	}, "alice", nil)
	require.NoError(t, err)

	history, err := activity.LeadHistory(lead.ID)
	require.NoError(t, err)
	entry := history[0]
	assert.Equal(t, models.ActionReferralMarked, entry.ActionType)

	var newVals map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*entry.NewValue), &newVals))
	assert.Equal(t, true, newVals["active_client"])
	assert.Equal(t, "Follow Up", newVals["last_contact_status"])

	// A plain status change on its own
	_, err = leads.Update(lead.ID, LeadUpdate{
		LastContactStatus: utils.Pointer("Assessment"),
	}, "alice", nil)
	require.NoError(t, err)

	history, err = activity.LeadHistory(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionStatusChanged, history[0].ActionType)
}

func TestUpdateMissingLeadReturnsNil(t *testing.T) {
	leads, _, _ := setupLeadStore(t)

	lead, err := leads.Update(9999, LeadUpdate{
		LastContactStatus: utils.Pointer("Follow Up"),
	}, "alice", nil)
	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	leads, activity, _ := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	ok, err := leads.Delete(lead.ID, "bob", nil, false)
	require.NoError(t, err)
	require.True(t, ok)

	// Gone from the live view, present in the recycle bin
	got, err := leads.Get(lead.ID, false)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := leads.ListDeleted(0, 10)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.NotNil(t, deleted[0].DeletedBy)
	assert.Equal(t, "bob", *deleted[0].DeletedBy)

	ok, err = leads.Restore(lead.ID, "bob", nil)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = leads.Get(lead.ID, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.DeletedBy)

	history, err := activity.LeadHistory(lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.ActionLeadRestored, history[0].ActionType)
	assert.Equal(t, models.ActionLeadDeleted, history[1].ActionType)
}

func TestPermanentDelete(t *testing.T) {
	leads, _, _ := setupLeadStore(t)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	ok, err := leads.Delete(lead.ID, "alice", nil, true)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := leads.Get(lead.ID, true)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearchFilters(t *testing.T) {
	leads, _, _ := setupLeadStore(t)

	_, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	in := baseLeadCreate()
	in.FirstName = "Morgan"
	in.LastName = "Reyes"
	in.Phone = "555-0200"
	in.Source = models.SourceEvent
	in.EventName = "Health Fair"
	in.Priority = "High"
	second, err := leads.Create(in, "alice", nil)
	require.NoError(t, err)

	_, err = leads.Update(second.ID, LeadUpdate{
		ActiveClient: utils.Pointer(true),
		ReferralType: utils.Pointer(models.ReferralRegular),
	}, "alice", nil)
	require.NoError(t, err)

	// Name search
	found, err := leads.Search(LeadSearchFilter{Query: "Morg"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Morgan", found[0].FirstName)

	// Referrals hidden from the plain leads view
	found, err = leads.Search(LeadSearchFilter{ExcludeClients: true})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Pat", found[0].FirstName)

	// Priority filter with count
	count, err := leads.CountSearch(LeadSearchFilter{Priority: "High"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Source filter
	found, err = leads.Search(LeadSearchFilter{Source: models.SourceEvent})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestListActiveForRemindersExcludesInactiveAndDeleted(t *testing.T) {
	leads, _, _ := setupLeadStore(t)

	active, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	in := baseLeadCreate()
	in.FirstName = "Quiet"
	in.Phone = "555-0201"
	in.LastContactStatus = models.ContactStatusInactive
	_, err = leads.Create(in, "alice", nil)
	require.NoError(t, err)

	in = baseLeadCreate()
	in.FirstName = "Gone"
	in.Phone = "555-0202"
	deleted, err := leads.Create(in, "alice", nil)
	require.NoError(t, err)
	_, err = leads.Delete(deleted.ID, "alice", nil, false)
	require.NoError(t, err)

	got, err := leads.ListActiveForReminders()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)
}

type recordingNotifier struct {
	leads      []uint
	recipients []string
}

func (n *recordingNotifier) SendAuthorizationConfirmation(lead *models.Lead, recipient string) error {
	n.leads = append(n.leads, lead.ID)
	n.recipients = append(n.recipients, recipient)
	return nil
}

func TestAuthorizationTriggersConfirmationEmail(t *testing.T) {
	leads, _, _ := setupLeadStore(t)
	notifier := &recordingNotifier{}
	leads.Notifier = notifier

	require.NoError(t, leads.DB.Create(&models.User{
		Username:       "alice",
		Email:          "alice@example.com",
		HashedPassword: "x",
		IsApproved:     true,
	}).Error)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	_, err = leads.Update(lead.ID, LeadUpdate{
		ActiveClient:          utils.Pointer(true),
		ReferralType:          utils.Pointer(models.ReferralRegular),
		AuthorizationReceived: utils.Pointer(true),
	}, "alice", nil)
	require.NoError(t, err)

	// The notification is fired on a goroutine
	require.Eventually(t, func() bool {
		return len(notifier.leads) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, lead.ID, notifier.leads[0])
	assert.Equal(t, "alice@example.com", notifier.recipients[0])
}

func TestReminderStoreSnapshotsLead(t *testing.T) {
	db := setupTestDB(t)
	logger := testLogger()
	activity := NewActivityStore(db, logger)
	leads := NewLeadStore(db, logger, activity)
	reminders := NewReminderStore(db, logger)

	lead, err := leads.Create(baseLeadCreate(), "alice", nil)
	require.NoError(t, err)

	rec, err := reminders.Create(ReminderCreate{
		LeadID:         lead.ID,
		RecipientEmail: "alice@example.com",
		Subject:        "Follow-Up Reminder: Pat Jones",
		SentBy:         "scheduler",
	})
	require.NoError(t, err)
	assert.Equal(t, "Pat Jones", rec.LeadName)
	assert.Equal(t, "Intro Call", rec.LeadStatus)
	assert.Equal(t, models.SourceWeb, rec.LeadSource)
	assert.Equal(t, models.ReminderGeneral, rec.Kind)
	assert.Equal(t, models.ReminderStatusSent, rec.Status)

	_, err = reminders.Create(ReminderCreate{LeadID: 9999})
	assert.True(t, errors.Is(err, ErrReminderLeadNotFound))

	last, err := reminders.LastSentAt(lead.ID, models.ReminderGeneral)
	require.NoError(t, err)
	require.NotNil(t, last)

	last, err = reminders.LastSentAt(lead.ID, models.ReminderCareStart)
	require.NoError(t, err)
	assert.Nil(t, last)
}
