package models

import (
	"time"
)

// Reminder kinds. General reminders nag until a lead goes inactive or starts
// care; care-start reminders target authorized referrals awaiting care start.
const (
	ReminderGeneral   = "general"
	ReminderCareStart = "care_start"
)

// Reminder send outcomes
const (
	ReminderStatusSent   = "sent"
	ReminderStatusFailed = "failed"
)

// EmailReminder is an append-only record of every attempted reminder send.
// The lead_* columns are a point-in-time snapshot so history stays accurate
// even after the lead changes.
type EmailReminder struct {
	ID     uint `gorm:"primarykey" json:"id"`
	LeadID uint `gorm:"not null;index" json:"lead_id"`

	Kind           string    `gorm:"size:20;not null;default:'general';index" json:"kind"`
	RecipientEmail string    `gorm:"size:255;not null" json:"recipient_email"`
	Subject        string    `gorm:"size:255;not null" json:"subject"`
	SentAt         time.Time `gorm:"not null;index" json:"sent_at"`
	SentBy         string    `gorm:"size:100;not null" json:"sent_by"`

	Status       string  `gorm:"size:50;not null;default:'sent'" json:"status"`
	ErrorMessage *string `gorm:"type:text" json:"error_message,omitempty"`

	// Lead snapshot at send time
	LeadName   string `gorm:"size:300;not null" json:"lead_name"`
	LeadStatus string `gorm:"size:50;not null" json:"lead_status"`
	LeadSource string `gorm:"size:150;not null" json:"lead_source"`
}
