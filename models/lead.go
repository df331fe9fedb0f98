package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead sources as collected on the intake form
const (
	SourceHomeHealthNotify = "Home Health Notify"
	SourceWeb              = "Web"
	SourceDirectCCU        = "Direct Through CCU"
	SourceEvent            = "Event"
	SourceWordOfMouth      = "Word of Mouth"
	SourceTransfer         = "Transfer"
	SourceOther            = "Other"
)

// Referral types
const (
	ReferralRegular = "Regular"
	ReferralInterim = "Interim"
)

// Care status values
const (
	CareStatusStart    = "Care Start"
	CareStatusNotStart = "Not Start"
)

// ContactStatusInactive suppresses all reminder emails for a lead.
const ContactStatusInactive = "Inactive"

// Lead represents a prospective client captured from any intake source.
// A lead with ActiveClient=true is a referral routed toward care.
type Lead struct {
	gorm.Model

	// Audit trail
	CreatedBy string  `gorm:"size:100" json:"created_by"`
	UpdatedBy string  `gorm:"size:100" json:"updated_by"`
	DeletedBy *string `gorm:"size:100" json:"deleted_by,omitempty"`
	OwnerID   *uint   `gorm:"index" json:"owner_id,omitempty"`

	// Assigned staff member
	StaffName string `gorm:"size:150;not null" json:"staff_name"`

	// Identity
	FirstName    string `gorm:"size:150;not null;index" json:"first_name"`
	LastName     string `gorm:"size:150;not null;index" json:"last_name"`
	CustomUserID string `gorm:"size:50" json:"custom_user_id"`

	// Source classification with conditional companions
	Source          string `gorm:"size:150;not null" json:"source"`
	EventName       string `gorm:"size:150" json:"event_name,omitempty"`
	WordOfMouthType string `gorm:"size:50" json:"word_of_mouth_type,omitempty"`
	OtherSourceType string `gorm:"size:150" json:"other_source_type,omitempty"`

	// Referral state
	ActiveClient            bool       `gorm:"not null;default:false;index" json:"active_client"`
	ReferralType            *string    `gorm:"size:50" json:"referral_type,omitempty"`
	AuthorizationReceived   bool       `gorm:"not null;default:false" json:"authorization_received"`
	AuthorizationReceivedAt *time.Time `json:"authorization_received_at,omitempty"`
	CareStatus              *string    `gorm:"size:50" json:"care_status,omitempty"`
	SOCDate                 *time.Time `gorm:"type:date" json:"soc_date,omitempty"`
	Priority                string     `gorm:"size:50;default:'Medium'" json:"priority"`

	// Partner links (weak references)
	AgencyID          *uint `gorm:"index" json:"agency_id,omitempty"`
	AgencySuboptionID *uint `gorm:"index" json:"agency_suboption_id,omitempty"`
	CCUID             *uint `gorm:"index" json:"ccu_id,omitempty"`
	MCOID             *uint `gorm:"index" json:"mco_id,omitempty"`

	// Contact and demographics
	Phone      string     `gorm:"size:50;not null" json:"phone"`
	Email      string     `gorm:"size:255" json:"email,omitempty"`
	Address    string     `gorm:"type:text" json:"address,omitempty"`
	City       string     `gorm:"size:100" json:"city,omitempty"`
	State      string     `gorm:"size:2" json:"state,omitempty"`
	ZipCode    string     `gorm:"size:20" json:"zip_code,omitempty"`
	DOB        *time.Time `gorm:"type:date" json:"dob,omitempty"`
	Age        *int       `json:"age,omitempty"`
	SSN        string     `gorm:"size:50" json:"-"`
	MedicaidNo string     `gorm:"size:100" json:"medicaid_no,omitempty"`
	// "yes" or "no" from the intake form
	MedicaidStatus   string `gorm:"size:10" json:"medicaid_status,omitempty"`
	RelationToClient string `gorm:"size:100" json:"relation_to_client,omitempty"`

	// Emergency contact
	EContactName     string `gorm:"size:150" json:"e_contact_name,omitempty"`
	EContactRelation string `gorm:"size:100" json:"e_contact_relation,omitempty"`
	EContactPhone    string `gorm:"size:50" json:"e_contact_phone,omitempty"`

	// Follow-up tracking. "Inactive" suppresses every reminder track.
	LastContactStatus string     `gorm:"size:50;not null;default:'Intro Call'" json:"last_contact_status"`
	LastContactDate   *time.Time `json:"last_contact_date,omitempty"`

	Comments string `gorm:"type:text" json:"comments,omitempty"`

	// Relations
	Agency          *Agency          `json:"agency,omitempty"`
	AgencySuboption *AgencySuboption `json:"agency_suboption,omitempty"`
	CCU             *CCU             `json:"ccu,omitempty"`
	MCO             *MCO             `json:"mco,omitempty"`
}

// FullName returns the display name used in emails and audit entries.
func (l *Lead) FullName() string {
	return l.FirstName + " " + l.LastName
}

// Agency is a payor: the funding source that authorizes care.
type Agency struct {
	gorm.Model
	Name      string `gorm:"size:150;not null;uniqueIndex" json:"name"`
	CreatedBy string `gorm:"size:100" json:"created_by"`
	UpdatedBy string `gorm:"size:100" json:"updated_by"`

	Suboptions []AgencySuboption `gorm:"foreignKey:AgencyID" json:"suboptions,omitempty"`
}

// AgencySuboption is a program code under a payor (e.g. INH2502076 for IDoA).
type AgencySuboption struct {
	gorm.Model
	AgencyID  uint   `gorm:"not null;index" json:"agency_id"`
	Name      string `gorm:"size:150;not null;index" json:"name"`
	CreatedBy string `gorm:"size:100" json:"created_by"`
	UpdatedBy string `gorm:"size:100" json:"updated_by"`
}

// CCU is a Community Care Unit: the partner organization coordinating care
// for referred clients. Its contact details go into referral reminder emails.
type CCU struct {
	gorm.Model
	Name                string `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Address             string `gorm:"size:255" json:"address,omitempty"`
	Phone               string `gorm:"size:50" json:"phone,omitempty"`
	Fax                 string `gorm:"size:50" json:"fax,omitempty"`
	Email               string `gorm:"size:255" json:"email,omitempty"`
	CareCoordinatorName string `gorm:"size:150" json:"care_coordinator_name,omitempty"`
	CreatedBy           string `gorm:"size:100" json:"created_by"`
	UpdatedBy           string `gorm:"size:100" json:"updated_by"`
}

// MCO is a managed care organization.
type MCO struct {
	gorm.Model
	Name      string `gorm:"size:150;not null;uniqueIndex" json:"name"`
	CreatedBy string `gorm:"size:100" json:"created_by"`
	UpdatedBy string `gorm:"size:100" json:"updated_by"`
}
