package worker

import (
	"context"
	"fmt"
	"time"

	"careleads/models"
	"careleads/store"
	"careleads/utils"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reminder thresholds. Referrals get chased every 6 hours, plain leads
// every 48. Authorized-but-not-started referrals escalate on the 6 hour
// cadence as well.
const (
	ReferralReminderThreshold = 6 * time.Hour
	LeadReminderThreshold     = 48 * time.Hour
	CareStartThreshold        = 6 * time.Hour
)

// ReminderWorker drives the two reminder tracks: general follow-up
// reminders for every lead, and care-start escalations for referrals that
// are authorized but not yet receiving care.
type ReminderWorker struct {
	DB     *gorm.DB
	Sender utils.Sender
	Logger *logrus.Logger

	Leads     *store.LeadStore
	Users     *store.UserStore
	Activity  *store.ActivityStore
	Reminders *store.ReminderStore

	// Injected clock, overridden in tests
	Now func() time.Time

	Interval    time.Duration
	SendDelay   time.Duration
	SendTimeout time.Duration
}

func NewReminderWorker(db *gorm.DB, sender utils.Sender, logger *logrus.Logger) *ReminderWorker {
	activity := store.NewActivityStore(db, logger)
	w := &ReminderWorker{
		DB:          db,
		Sender:      sender,
		Logger:      logger,
		Leads:       store.NewLeadStore(db, logger, activity),
		Users:       store.NewUserStore(db, logger, activity),
		Activity:    activity,
		Reminders:   store.NewReminderStore(db, logger),
		Now:         func() time.Time { return time.Now().UTC() },
		Interval:    time.Hour,
		SendDelay:   time.Second,
		SendTimeout: 30 * time.Second,
	}
	return w
}

// Start runs reminder passes until the context is cancelled. One pass runs
// immediately, then one per interval.
func (w *ReminderWorker) Start(ctx context.Context) {
	w.Logger.WithField("interval", w.Interval.String()).Info("Reminder worker started")

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.runPassSafely(ctx)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("Reminder worker shutting down...")
			return
		case <-ticker.C:
			w.runPassSafely(ctx)
		}
	}
}

// runPassSafely isolates a pass so a panic never takes down the process.
func (w *ReminderWorker) runPassSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.Logger.WithField("panic", r).Error("Reminder pass panicked")
			sentry.CurrentHub().Recover(r)
		}
	}()

	if err := w.RunPass(ctx); err != nil {
		w.Logger.WithError(err).Error("Reminder pass failed")
		sentry.CaptureException(err)
	}
}

// RunPass executes one full scheduling pass: the general follow-up sweep
// over every lead, then the care-start sweep. Per-lead failures are
// recorded and skipped; only a failure to load the lead set aborts the pass.
func (w *ReminderWorker) RunPass(ctx context.Context) error {
	now := w.Now()

	leads, err := w.Leads.ListActiveForReminders()
	if err != nil {
		return fmt.Errorf("reminder pass: %w", err)
	}

	w.Logger.WithField("leads", len(leads)).Debug("Starting reminder pass")

	sent := 0
	for i := range leads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.processGeneral(ctx, &leads[i], now) {
			sent++
			w.pause(ctx)
		}
	}

	for i := range leads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.processCareStart(ctx, &leads[i], now) {
			sent++
			w.pause(ctx)
		}
	}

	if sent > 0 {
		w.Logger.WithField("sent", sent).Info("Reminder pass complete")
	}
	return nil
}

// processGeneral handles the follow-up track for one lead. Returns true
// when a send was attempted.
func (w *ReminderWorker) processGeneral(ctx context.Context, lead *models.Lead, now time.Time) bool {
	// Care in progress ends the follow-up track for good.
	if lead.CareStatus != nil && *lead.CareStatus == models.CareStatusStart {
		return false
	}

	threshold := LeadReminderThreshold
	if lead.ActiveClient {
		threshold = ReferralReminderThreshold
	}

	last, err := w.Reminders.LastSentAt(lead.ID, models.ReminderGeneral)
	if err != nil {
		w.Logger.WithError(err).WithField("lead_id", lead.ID).Error("Failed to load last reminder")
		return false
	}
	if last != nil && now.Sub(*last) < threshold {
		return false
	}

	recipient := w.resolveRecipient(lead)
	if recipient == "" {
		return false
	}

	var subject, textBody, htmlBody string
	if lead.ActiveClient {
		subject, textBody, htmlBody, err = utils.ComposeReferralReminder(lead)
	} else {
		subject, textBody, htmlBody, err = utils.ComposeLeadReminder(lead)
	}
	if err != nil {
		w.Logger.WithError(err).WithField("lead_id", lead.ID).Error("Failed to compose reminder")
		return false
	}

	w.deliver(lead, models.ReminderGeneral, recipient, subject, textBody, htmlBody)
	return true
}

// processCareStart handles the escalation track for one lead. Returns true
// when a send was attempted.
func (w *ReminderWorker) processCareStart(ctx context.Context, lead *models.Lead, now time.Time) bool {
	if !lead.ActiveClient || !lead.AuthorizationReceived {
		return false
	}
	if lead.CareStatus != nil && *lead.CareStatus == models.CareStatusStart {
		return false
	}

	authorizedAt := w.authorizationTime(lead)
	if authorizedAt == nil {
		// Flag set but no provable authorization time; never guess.
		w.Logger.WithField("lead_id", lead.ID).Debug("No provable authorization time, skipping care-start reminder")
		return false
	}

	last, err := w.Reminders.LastSentAt(lead.ID, models.ReminderCareStart)
	if err != nil {
		w.Logger.WithError(err).WithField("lead_id", lead.ID).Error("Failed to load last care-start reminder")
		return false
	}
	if last != nil && now.Sub(*last) < CareStartThreshold {
		return false
	}

	recipient := w.resolveRecipient(lead)
	if recipient == "" {
		return false
	}

	subject, textBody, htmlBody, err := utils.ComposeCareStartReminder(lead, *authorizedAt, now)
	if err != nil {
		w.Logger.WithError(err).WithField("lead_id", lead.ID).Error("Failed to compose care-start reminder")
		return false
	}

	w.deliver(lead, models.ReminderCareStart, recipient, subject, textBody, htmlBody)
	return true
}

// authorizationTime returns the lead's provable authorization time: the
// dedicated column when set, otherwise the flag flip recovered from the
// activity log. Legacy rows predate the column.
func (w *ReminderWorker) authorizationTime(lead *models.Lead) *time.Time {
	if lead.AuthorizationReceivedAt != nil {
		return lead.AuthorizationReceivedAt
	}
	recovered, err := w.Activity.RecoverAuthorizationTime(lead.ID)
	if err != nil {
		w.Logger.WithError(err).WithField("lead_id", lead.ID).Error("Failed to recover authorization time")
		return nil
	}
	return recovered
}

// resolveRecipient looks up the creator's email. Leads whose creator has no
// account or no email get no reminders.
func (w *ReminderWorker) resolveRecipient(lead *models.Lead) string {
	user, err := w.Users.GetByUsername(lead.CreatedBy)
	if err != nil {
		w.Logger.WithError(err).WithField("lead_id", lead.ID).Error("Failed to resolve reminder recipient")
		return ""
	}
	if user == nil || user.Email == "" {
		w.Logger.WithFields(logrus.Fields{
			"lead_id": lead.ID,
			"creator": lead.CreatedBy,
		}).Debug("No reminder recipient for lead")
		return ""
	}
	return user.Email
}

// deliver sends one reminder and records the outcome. A failed send is
// recorded with its error and the pass moves on.
func (w *ReminderWorker) deliver(lead *models.Lead, kind, recipient, subject, textBody, htmlBody string) {
	sendErr := w.sendWithTimeout(recipient, subject, textBody, htmlBody)

	rec := store.ReminderCreate{
		LeadID:         lead.ID,
		Kind:           kind,
		RecipientEmail: recipient,
		Subject:        subject,
		SentBy:         "scheduler",
		Status:         models.ReminderStatusSent,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		rec.Status = models.ReminderStatusFailed
		rec.ErrorMessage = &msg
		w.Logger.WithError(sendErr).WithFields(logrus.Fields{
			"lead_id":   lead.ID,
			"kind":      kind,
			"recipient": recipient,
		}).Error("Reminder send failed")
	} else {
		w.Logger.WithFields(logrus.Fields{
			"lead_id":   lead.ID,
			"kind":      kind,
			"recipient": recipient,
		}).Info("Reminder sent")
	}

	if _, err := w.Reminders.Create(rec); err != nil {
		w.Logger.WithError(err).WithField("lead_id", lead.ID).Error("Failed to record reminder")
	}
}

// sendWithTimeout bounds a single SMTP conversation so one hung dial
// cannot stall the whole pass.
func (w *ReminderWorker) sendWithTimeout(to, subject, textBody, htmlBody string) error {
	if w.SendTimeout <= 0 {
		return w.Sender.Send(to, subject, textBody, htmlBody)
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Sender.Send(to, subject, textBody, htmlBody)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(w.SendTimeout):
		return fmt.Errorf("send timed out after %s", w.SendTimeout)
	}
}

// pause spaces sends out so the SMTP relay is not hammered.
func (w *ReminderWorker) pause(ctx context.Context) {
	if w.SendDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(w.SendDelay):
	}
}
