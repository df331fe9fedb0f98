package store

import (
	"fmt"
	"strings"
	"time"

	"careleads/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadUpdate is a partial update: nil fields are left untouched. For
// nullable columns (referral type, care status, partner links) the zero
// value of the pointed-to type clears the column.
type LeadUpdate struct {
	StaffName    *string
	FirstName    *string
	LastName     *string
	CustomUserID *string
	OwnerID      *uint

	Source          *string
	EventName       *string
	WordOfMouthType *string
	OtherSourceType *string

	ActiveClient          *bool
	ReferralType          *string
	AuthorizationReceived *bool
	CareStatus            *string
	Priority              *string

	AgencyID          *uint
	AgencySuboptionID *uint
	CCUID             *uint
	MCOID             *uint

	Phone      *string
	Email      *string
	Address    *string
	City       *string
	State      *string
	ZipCode    *string
	DOB        *time.Time
	Age        *int
	MedicaidNo *string

	MedicaidStatus   *string
	RelationToClient *string

	EContactName     *string
	EContactRelation *string
	EContactPhone    *string

	LastContactStatus *string
	LastContactDate   *time.Time
	Comments          *string
}

// changeSet accumulates the old/new snapshots for the audit entry.
type changeSet struct {
	old map[string]interface{}
	new map[string]interface{}
}

func newChangeSet() *changeSet {
	return &changeSet{
		old: map[string]interface{}{},
		new: map[string]interface{}{},
	}
}

func (c *changeSet) record(field string, oldVal, newVal interface{}) {
	c.old[field] = oldVal
	c.new[field] = newVal
}

func (c *changeSet) has(field string) bool {
	_, ok := c.new[field]
	return ok
}

func (c *changeSet) changed() bool {
	return len(c.new) > 0
}

func applyString(cs *changeSet, field string, target *string, in *string) {
	if in != nil && *in != *target {
		cs.record(field, *target, *in)
		*target = *in
	}
}

func applyBool(cs *changeSet, field string, target *bool, in *bool) {
	if in != nil && *in != *target {
		cs.record(field, *target, *in)
		*target = *in
	}
}

// applyNullString treats an empty input value as clearing the column.
func applyNullString(cs *changeSet, field string, target **string, in *string) {
	if in == nil {
		return
	}
	current := ""
	if *target != nil {
		current = **target
	}
	if *in == current {
		return
	}
	if *in == "" {
		cs.record(field, current, nil)
		*target = nil
		return
	}
	var oldVal interface{}
	if *target != nil {
		oldVal = current
	}
	cs.record(field, oldVal, *in)
	v := *in
	*target = &v
}

// applyNullUint treats zero as clearing the column.
func applyNullUint(cs *changeSet, field string, target **uint, in *uint) {
	if in == nil {
		return
	}
	var current uint
	if *target != nil {
		current = **target
	}
	if *in == current {
		return
	}
	if *in == 0 {
		cs.record(field, current, nil)
		*target = nil
		return
	}
	var oldVal interface{}
	if *target != nil {
		oldVal = current
	}
	cs.record(field, oldVal, *in)
	v := *in
	*target = &v
}

func applyNullTime(cs *changeSet, field string, target **time.Time, in *time.Time) {
	if in == nil {
		return
	}
	if *target != nil && (*target).Equal(*in) {
		return
	}
	var oldVal interface{}
	if *target != nil {
		oldVal = **target
	}
	cs.record(field, oldVal, *in)
	v := *in
	*target = &v
}

func applyNullInt(cs *changeSet, field string, target **int, in *int) {
	if in == nil {
		return
	}
	if *target != nil && **target == *in {
		return
	}
	var oldVal interface{}
	if *target != nil {
		oldVal = **target
	}
	cs.record(field, oldVal, *in)
	v := *in
	*target = &v
}

// Update applies a partial update inside one transaction together with its
// audit entry. Lifecycle side effects are derived here, never supplied by
// the caller: soc_date follows care_status, authorization_received_at
// follows authorization_received, and unmarking a referral resets the whole
// authorization state. Returns nil when no such lead exists.
func (s *LeadStore) Update(id uint, in LeadUpdate, username string, userID *uint) (*models.Lead, error) {
	lead, err := s.Get(id, false)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, nil
	}

	cs := newChangeSet()

	applyString(cs, "staff_name", &lead.StaffName, in.StaffName)
	applyString(cs, "first_name", &lead.FirstName, in.FirstName)
	applyString(cs, "last_name", &lead.LastName, in.LastName)
	applyString(cs, "custom_user_id", &lead.CustomUserID, in.CustomUserID)
	applyNullUint(cs, "owner_id", &lead.OwnerID, in.OwnerID)

	applyString(cs, "source", &lead.Source, in.Source)
	applyString(cs, "event_name", &lead.EventName, in.EventName)
	applyString(cs, "word_of_mouth_type", &lead.WordOfMouthType, in.WordOfMouthType)
	applyString(cs, "other_source_type", &lead.OtherSourceType, in.OtherSourceType)

	applyString(cs, "phone", &lead.Phone, in.Phone)
	applyString(cs, "email", &lead.Email, in.Email)
	applyString(cs, "address", &lead.Address, in.Address)
	applyString(cs, "city", &lead.City, in.City)
	applyString(cs, "state", &lead.State, in.State)
	applyString(cs, "zip_code", &lead.ZipCode, in.ZipCode)
	applyNullTime(cs, "dob", &lead.DOB, in.DOB)
	applyNullInt(cs, "age", &lead.Age, in.Age)
	applyString(cs, "medicaid_no", &lead.MedicaidNo, in.MedicaidNo)
	applyString(cs, "medicaid_status", &lead.MedicaidStatus, in.MedicaidStatus)
	applyString(cs, "relation_to_client", &lead.RelationToClient, in.RelationToClient)

	applyString(cs, "e_contact_name", &lead.EContactName, in.EContactName)
	applyString(cs, "e_contact_relation", &lead.EContactRelation, in.EContactRelation)
	applyString(cs, "e_contact_phone", &lead.EContactPhone, in.EContactPhone)

	applyString(cs, "last_contact_status", &lead.LastContactStatus, in.LastContactStatus)
	applyNullTime(cs, "last_contact_date", &lead.LastContactDate, in.LastContactDate)
	applyString(cs, "comments", &lead.Comments, in.Comments)
	applyString(cs, "priority", &lead.Priority, in.Priority)

	applyNullUint(cs, "agency_id", &lead.AgencyID, in.AgencyID)
	applyNullUint(cs, "agency_suboption_id", &lead.AgencySuboptionID, in.AgencySuboptionID)
	applyNullUint(cs, "ccu_id", &lead.CCUID, in.CCUID)
	applyNullUint(cs, "mco_id", &lead.MCOID, in.MCOID)

	applyBool(cs, "active_client", &lead.ActiveClient, in.ActiveClient)
	applyNullString(cs, "referral_type", &lead.ReferralType, in.ReferralType)
	applyBool(cs, "authorization_received", &lead.AuthorizationReceived, in.AuthorizationReceived)
	applyNullString(cs, "care_status", &lead.CareStatus, in.CareStatus)

	if !cs.changed() {
		return lead, nil
	}

	authorizedNow := false

	// Unmarking a referral resets the whole authorization state so the lead
	// returns cleanly to intake.
	if cs.has("active_client") && !lead.ActiveClient {
		if lead.ReferralType != nil {
			cs.record("referral_type", *lead.ReferralType, nil)
			lead.ReferralType = nil
		}
		if lead.AuthorizationReceived {
			cs.record("authorization_received", true, false)
			lead.AuthorizationReceived = false
		}
		if lead.AuthorizationReceivedAt != nil {
			lead.AuthorizationReceivedAt = nil
		}
		if lead.CareStatus != nil {
			cs.record("care_status", *lead.CareStatus, nil)
			lead.CareStatus = nil
		}
		if lead.SOCDate != nil {
			cs.record("soc_date", *lead.SOCDate, nil)
			lead.SOCDate = nil
		}
	}

	if cs.has("authorization_received") {
		if lead.AuthorizationReceived {
			now := s.Now()
			lead.AuthorizationReceivedAt = &now
			authorizedNow = true
		} else {
			lead.AuthorizationReceivedAt = nil
		}
	}

	if cs.has("care_status") && lead.CareStatus != nil {
		switch *lead.CareStatus {
		case models.CareStatusStart:
			soc := s.today()
			var oldVal interface{}
			if lead.SOCDate != nil {
				oldVal = *lead.SOCDate
			}
			cs.record("soc_date", oldVal, soc)
			lead.SOCDate = &soc
		case models.CareStatusNotStart:
			if lead.SOCDate != nil {
				cs.record("soc_date", *lead.SOCDate, nil)
				lead.SOCDate = nil
			}
		}
	}

	if err := models.ValidateLifecycle(lead); err != nil {
		return nil, err
	}

	lead.UpdatedBy = username

	actionType, keywords := classifyLeadUpdate(cs)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(lead).Error; err != nil {
			return fmt.Errorf("failed to update lead: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  actionType,
			EntityType:  models.EntityLead,
			EntityID:    &lead.ID,
			EntityName:  lead.FullName(),
			Description: fmt.Sprintf("Lead '%s' updated", lead.FullName()),
			OldValue:    cs.old,
			NewValue:    cs.new,
			Keywords:    keywords,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if authorizedNow {
		s.notifyAuthorization(lead)
	}

	return lead, nil
}

// classifyLeadUpdate picks the primary action type when several fields
// change at once: referral flag beats contact status beats agency
// assignment beats a generic update. The full diff is preserved in the
// old/new snapshots regardless.
func classifyLeadUpdate(cs *changeSet) (string, string) {
	keywords := []string{"lead", "update"}
	actionType := models.ActionLeadUpdated

	switch {
	case cs.has("active_client"):
		if v, ok := cs.new["active_client"].(bool); ok && v {
			actionType = models.ActionReferralMarked
		} else {
			actionType = models.ActionReferralUnmarked
		}
		keywords = append(keywords, "referral")
	case cs.has("last_contact_status"):
		actionType = models.ActionStatusChanged
		keywords = append(keywords, "status")
	case cs.has("agency_id"):
		actionType = models.ActionAgencyAssigned
		keywords = append(keywords, "agency")
	}

	return actionType, strings.Join(keywords, ",")
}

// notifyAuthorization fires the confirmation email to the lead's creator.
// Best effort: a failure is logged and the update stands.
func (s *LeadStore) notifyAuthorization(lead *models.Lead) {
	if s.Notifier == nil {
		return
	}

	var user models.User
	err := s.DB.Where("username = ?", lead.CreatedBy).First(&user).Error
	if err != nil || user.Email == "" {
		return
	}

	go func(lead models.Lead, recipient string) {
		if err := s.Notifier.SendAuthorizationConfirmation(&lead, recipient); err != nil {
			s.Logger.WithError(err).WithField("lead_id", lead.ID).
				Warn("authorization confirmation email failed")
		}
	}(*lead, user.Email)
}
