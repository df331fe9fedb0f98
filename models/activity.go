package models

import (
	"time"
)

// Action types recorded in the audit trail.
const (
	ActionLeadCreated            = "LEAD_CREATED"
	ActionLeadUpdated            = "LEAD_UPDATED"
	ActionLeadDeleted            = "LEAD_DELETED"
	ActionLeadRestored           = "LEAD_RESTORED"
	ActionLeadPermanentlyDeleted = "LEAD_PERMANENTLY_DELETED"
	ActionReferralMarked         = "REFERRAL_MARKED"
	ActionReferralUnmarked       = "REFERRAL_UNMARKED"
	ActionStatusChanged          = "STATUS_CHANGED"
	ActionAgencyAssigned         = "AGENCY_ASSIGNED"
	ActionUserCreated            = "USER_CREATED"
	ActionUserUpdated            = "USER_UPDATED"
	ActionUserApproved           = "USER_APPROVED"
	ActionUserRejected           = "USER_REJECTED"
	ActionUserDeleted            = "USER_DELETED"
	ActionUserRoleUpdated        = "USER_ROLE_UPDATED"
	ActionPasswordChanged        = "PASSWORD_CHANGED"
	ActionPasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	ActionPasswordResetCompleted = "PASSWORD_RESET_COMPLETED"
	ActionAgencyCreated          = "AGENCY_CREATED"
	ActionAgencyUpdated          = "AGENCY_UPDATED"
	ActionAgencyDeleted          = "AGENCY_DELETED"
	ActionCCUCreated             = "CCU_CREATED"
	ActionCCUUpdated             = "CCU_UPDATED"
	ActionCCUDeleted             = "CCU_DELETED"
	ActionMCOCreated             = "MCO_CREATED"
	ActionMCOUpdated             = "MCO_UPDATED"
	ActionMCODeleted             = "MCO_DELETED"
)

// Entity types referenced by audit entries.
const (
	EntityLead   = "Lead"
	EntityUser   = "User"
	EntityAgency = "Agency"
	EntityCCU    = "CCU"
	EntityMCO    = "MCO"
)

// ActivityLog is an append-only audit entry. Rows are never updated or
// deleted; history views and the care-start reminder track read them back.
type ActivityLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`

	// Who performed the action
	UserID   *uint  `json:"user_id,omitempty"`
	Username string `gorm:"size:100;not null;index" json:"username"`

	// What was done and to which entity
	ActionType string `gorm:"size:50;not null;index" json:"action_type"`
	EntityType string `gorm:"size:50;not null;index" json:"entity_type"`
	EntityID   *uint  `gorm:"index" json:"entity_id,omitempty"`
	EntityName string `gorm:"size:200" json:"entity_name,omitempty"`

	Description string `gorm:"type:text;not null" json:"description"`
	// JSON-encoded field snapshots; dates serialized as ISO-8601
	OldValue *string `gorm:"type:text" json:"old_value,omitempty"`
	NewValue *string `gorm:"type:text" json:"new_value,omitempty"`
	// Comma-separated tags for filtering
	Keywords  string `gorm:"size:200;index" json:"keywords,omitempty"`
	IPAddress string `gorm:"size:50" json:"ip_address,omitempty"`
}
