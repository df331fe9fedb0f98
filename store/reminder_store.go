package store

import (
	"errors"
	"fmt"
	"time"

	"careleads/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrReminderLeadNotFound rejects reminder rows for unknown leads.
var ErrReminderLeadNotFound = errors.New("lead not found for reminder record")

// ReminderStore appends to the email reminder log. Rows are never updated;
// the scheduler reads them back to decide when the next reminder is due.
type ReminderStore struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Now    func() time.Time
}

func NewReminderStore(db *gorm.DB, logger *logrus.Logger) *ReminderStore {
	return &ReminderStore{
		DB:     db,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// ReminderCreate carries the parameters for one reminder row.
type ReminderCreate struct {
	LeadID         uint
	Kind           string
	RecipientEmail string
	Subject        string
	SentBy         string
	Status         string
	ErrorMessage   *string
}

// Create appends a reminder row with a point-in-time snapshot of the lead's
// name, status and source.
func (s *ReminderStore) Create(in ReminderCreate) (*models.EmailReminder, error) {
	var lead models.Lead
	if err := s.DB.Unscoped().First(&lead, in.LeadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReminderLeadNotFound
		}
		return nil, fmt.Errorf("failed to load lead for reminder: %w", err)
	}

	kind := in.Kind
	if kind == "" {
		kind = models.ReminderGeneral
	}
	status := in.Status
	if status == "" {
		status = models.ReminderStatusSent
	}

	reminder := models.EmailReminder{
		LeadID:         in.LeadID,
		Kind:           kind,
		RecipientEmail: in.RecipientEmail,
		Subject:        in.Subject,
		SentAt:         s.Now(),
		SentBy:         in.SentBy,
		Status:         status,
		ErrorMessage:   in.ErrorMessage,
		LeadName:       lead.FullName(),
		LeadStatus:     lead.LastContactStatus,
		LeadSource:     lead.Source,
	}

	if err := s.DB.Create(&reminder).Error; err != nil {
		return nil, fmt.Errorf("failed to create reminder record: %w", err)
	}
	return &reminder, nil
}

// ByLead returns a lead's reminders of one kind, newest first. An empty
// kind returns both tracks.
func (s *ReminderStore) ByLead(leadID uint, kind string) ([]models.EmailReminder, error) {
	query := s.DB.Where("lead_id = ?", leadID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var reminders []models.EmailReminder
	if err := query.Order("sent_at DESC, id DESC").Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("failed to load reminders: %w", err)
	}
	return reminders, nil
}

// LastSentAt returns when the most recent reminder of the given kind went
// out for a lead, or nil if none ever has.
func (s *ReminderStore) LastSentAt(leadID uint, kind string) (*time.Time, error) {
	var reminder models.EmailReminder
	err := s.DB.
		Where("lead_id = ? AND kind = ?", leadID, kind).
		Order("sent_at DESC, id DESC").
		First(&reminder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load last reminder: %w", err)
	}
	return &reminder.SentAt, nil
}

// Recent returns the latest reminders across all leads.
func (s *ReminderStore) Recent(limit int) ([]models.EmailReminder, error) {
	if limit <= 0 {
		limit = 50
	}
	var reminders []models.EmailReminder
	if err := s.DB.Order("sent_at DESC, id DESC").Limit(limit).Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent reminders: %w", err)
	}
	return reminders, nil
}

// CountForLead returns the number of reminders ever recorded for a lead.
func (s *ReminderStore) CountForLead(leadID uint) (int64, error) {
	var count int64
	err := s.DB.Model(&models.EmailReminder{}).
		Where("lead_id = ?", leadID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count reminders: %w", err)
	}
	return count, nil
}
