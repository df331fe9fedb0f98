package store

import (
	"errors"
	"fmt"
	"time"

	"careleads/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DuplicateLeadError is returned when a lead with the same first name, last
// name and phone already exists. It carries the existing record's id so the
// caller can redirect to an edit instead.
type DuplicateLeadError struct {
	ExistingID uint
}

func (e *DuplicateLeadError) Error() string {
	return fmt.Sprintf("a lead with the same name and phone already exists (id %d)", e.ExistingID)
}

// AuthorizationNotifier sends the best-effort confirmation email fired when
// a referral's authorization is received. Failures are logged, never
// propagated.
type AuthorizationNotifier interface {
	SendAuthorizationConfirmation(lead *models.Lead, recipient string) error
}

// LeadStore enforces the lead lifecycle: every mutation applies its field
// changes and the matching audit entry in one transaction.
type LeadStore struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Activity *ActivityStore
	Notifier AuthorizationNotifier
	Now      func() time.Time
}

func NewLeadStore(db *gorm.DB, logger *logrus.Logger, activity *ActivityStore) *LeadStore {
	return &LeadStore{
		DB:       db,
		Logger:   logger,
		Activity: activity,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// today truncates the store clock to a date.
func (s *LeadStore) today() time.Time {
	now := s.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// LeadCreate carries the fields accepted at intake.
type LeadCreate struct {
	StaffName    string
	FirstName    string
	LastName     string
	CustomUserID string
	OwnerID      *uint

	Source          string
	EventName       string
	WordOfMouthType string
	OtherSourceType string

	Phone      string
	Email      string
	Address    string
	City       string
	State      string
	ZipCode    string
	DOB        *time.Time
	Age        *int
	SSN        string
	MedicaidNo string

	MedicaidStatus   string
	RelationToClient string

	EContactName     string
	EContactRelation string
	EContactPhone    string

	LastContactStatus string
	Priority          string
	Comments          string

	// Honored only for Transfer-source leads, which arrive already in care
	SOCDate *time.Time
}

// Create inserts a new lead after duplicate detection. Leads from the
// Transfer source arrive already receiving care, so they are created as
// authorized referrals with care started in the same transaction.
func (s *LeadStore) Create(in LeadCreate, username string, userID *uint) (*models.Lead, error) {
	var existing models.Lead
	err := s.DB.
		Where("first_name = ? AND last_name = ? AND phone = ?", in.FirstName, in.LastName, in.Phone).
		First(&existing).Error
	if err == nil {
		return nil, &DuplicateLeadError{ExistingID: existing.ID}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	lead := models.Lead{
		CreatedBy:         username,
		UpdatedBy:         username,
		OwnerID:           in.OwnerID,
		StaffName:         in.StaffName,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		CustomUserID:      in.CustomUserID,
		Source:            in.Source,
		EventName:         in.EventName,
		WordOfMouthType:   in.WordOfMouthType,
		OtherSourceType:   in.OtherSourceType,
		Phone:             in.Phone,
		Email:             in.Email,
		Address:           in.Address,
		City:              in.City,
		State:             in.State,
		ZipCode:           in.ZipCode,
		DOB:               in.DOB,
		Age:               in.Age,
		SSN:               in.SSN,
		MedicaidNo:        in.MedicaidNo,
		MedicaidStatus:    in.MedicaidStatus,
		RelationToClient:  in.RelationToClient,
		EContactName:      in.EContactName,
		EContactRelation:  in.EContactRelation,
		EContactPhone:     in.EContactPhone,
		LastContactStatus: in.LastContactStatus,
		Priority:          in.Priority,
		Comments:          in.Comments,
	}
	if lead.LastContactStatus == "" {
		lead.LastContactStatus = "Intro Call"
	}
	if lead.Priority == "" {
		lead.Priority = "Medium"
	}

	if in.Source == models.SourceTransfer {
		now := s.Now()
		careStatus := models.CareStatusStart
		referralType := models.ReferralRegular
		lead.ActiveClient = true
		lead.ReferralType = &referralType
		lead.AuthorizationReceived = true
		lead.AuthorizationReceivedAt = &now
		lead.CareStatus = &careStatus
		if in.SOCDate != nil {
			lead.SOCDate = in.SOCDate
		} else {
			soc := s.today()
			lead.SOCDate = &soc
		}
	}

	if err := models.ValidateLifecycle(&lead); err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lead).Error; err != nil {
			return fmt.Errorf("failed to create lead: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionLeadCreated,
			EntityType:  models.EntityLead,
			EntityID:    &lead.ID,
			EntityName:  lead.FullName(),
			Description: fmt.Sprintf("Lead '%s' created", lead.FullName()),
			NewValue: map[string]interface{}{
				"staff_name":             lead.StaffName,
				"source":                 lead.Source,
				"phone":                  lead.Phone,
				"active_client":          lead.ActiveClient,
				"authorization_received": lead.AuthorizationReceived,
				"last_contact_status":    lead.LastContactStatus,
				"priority":               lead.Priority,
			},
			Keywords: "lead,create," + lead.Source,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return &lead, nil
}

// Get returns a lead with its partner relations loaded, or nil when no such
// lead exists.
func (s *LeadStore) Get(id uint, includeDeleted bool) (*models.Lead, error) {
	query := s.DB.
		Preload("Agency").
		Preload("AgencySuboption").
		Preload("CCU").
		Preload("MCO")
	if includeDeleted {
		query = query.Unscoped()
	}

	var lead models.Lead
	if err := query.First(&lead, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	return &lead, nil
}

// List returns non-deleted leads newest-first.
func (s *LeadStore) List(offset, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	var leads []models.Lead
	err := s.DB.
		Preload("Agency").
		Preload("AgencySuboption").
		Preload("CCU").
		Preload("MCO").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

// ListDeleted returns the recycle bin, most recently deleted first.
func (s *LeadStore) ListDeleted(offset, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	var leads []models.Lead
	err := s.DB.Unscoped().
		Where("deleted_at IS NOT NULL").
		Order("deleted_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted leads: %w", err)
	}
	return leads, nil
}

// ListActiveForReminders returns every non-deleted lead whose contact status
// is not Inactive. The reminder scheduler works off this set.
func (s *LeadStore) ListActiveForReminders() ([]models.Lead, error) {
	var leads []models.Lead
	err := s.DB.
		Preload("Agency").Preload("AgencySuboption").Preload("CCU").
		Where("last_contact_status <> ?", models.ContactStatusInactive).
		Order("created_at ASC").
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list leads for reminders: %w", err)
	}
	return leads, nil
}

// LeadSearchFilter narrows Search and CountSearch. Zero values are ignored.
type LeadSearchFilter struct {
	// Matched against first and last name
	Query          string
	Staff          string
	Source         string
	Status         string
	Priority       string
	ActiveInactive string // "Active" or "Inactive"
	OwnerID        *uint
	OnlyMyLeads    bool
	// When set, search the recycle bin instead of live leads
	IncludeDeleted bool
	// Hide referrals from the main leads view
	ExcludeClients bool
	AuthReceived   *bool
	Offset         int
	Limit          int
}

func (s *LeadStore) applySearch(filter LeadSearchFilter) *gorm.DB {
	query := s.DB.Model(&models.Lead{})

	if filter.IncludeDeleted {
		query = query.Unscoped().Where("deleted_at IS NOT NULL")
	} else {
		if filter.ExcludeClients {
			query = query.Where("active_client = ?", false)
		}
	}
	if filter.AuthReceived != nil {
		query = query.Where("authorization_received = ?", *filter.AuthReceived)
	}
	if filter.OnlyMyLeads && filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		query = query.Where("first_name LIKE ? OR last_name LIKE ?", pattern, pattern)
	}
	if filter.Staff != "" {
		query = query.Where("staff_name LIKE ?", "%"+filter.Staff+"%")
	}
	if filter.Source != "" {
		query = query.Where("source LIKE ?", "%"+filter.Source+"%")
	}
	if filter.Status != "" && filter.Status != "All" {
		query = query.Where("last_contact_status = ?", filter.Status)
	}
	if filter.Priority != "" && filter.Priority != "All" {
		query = query.Where("priority = ?", filter.Priority)
	}
	switch filter.ActiveInactive {
	case "Active":
		query = query.Where("last_contact_status <> ?", models.ContactStatusInactive)
	case "Inactive":
		query = query.Where("last_contact_status = ?", models.ContactStatusInactive)
	}
	return query
}

// Search returns leads matching the filter, newest-first.
func (s *LeadStore) Search(filter LeadSearchFilter) ([]models.Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var leads []models.Lead
	err := s.applySearch(filter).
		Preload("Agency").
		Preload("AgencySuboption").
		Preload("CCU").
		Preload("MCO").
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search leads: %w", err)
	}
	return leads, nil
}

// CountSearch returns the total match count for pagination.
func (s *LeadStore) CountSearch(filter LeadSearchFilter) (int64, error) {
	var count int64
	if err := s.applySearch(filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}

// Delete moves a lead to the recycle bin, or removes it permanently.
func (s *LeadStore) Delete(id uint, username string, userID *uint, permanent bool) (bool, error) {
	lead, err := s.Get(id, true)
	if err != nil {
		return false, err
	}
	if lead == nil {
		return false, nil
	}

	name := lead.FullName()
	snapshot := map[string]interface{}{
		"name":       name,
		"source":     lead.Source,
		"staff_name": lead.StaffName,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		actionType := models.ActionLeadDeleted
		description := fmt.Sprintf("Lead '%s' moved to recycle bin", name)

		if permanent {
			if err := tx.Unscoped().Delete(&models.Lead{}, id).Error; err != nil {
				return fmt.Errorf("failed to delete lead: %w", err)
			}
			actionType = models.ActionLeadPermanentlyDeleted
			description = fmt.Sprintf("Lead '%s' permanently deleted", name)
		} else {
			if err := tx.Model(&models.Lead{}).Where("id = ?", id).
				Update("deleted_by", username).Error; err != nil {
				return fmt.Errorf("failed to record deleter: %w", err)
			}
			if err := tx.Delete(&models.Lead{}, id).Error; err != nil {
				return fmt.Errorf("failed to delete lead: %w", err)
			}
		}

		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  actionType,
			EntityType:  models.EntityLead,
			EntityID:    &id,
			EntityName:  name,
			Description: description,
			OldValue:    snapshot,
			Keywords:    "lead,delete",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Restore brings a lead back from the recycle bin.
func (s *LeadStore) Restore(id uint, username string, userID *uint) (bool, error) {
	lead, err := s.Get(id, true)
	if err != nil {
		return false, err
	}
	if lead == nil || !lead.DeletedAt.Valid {
		return false, nil
	}

	name := lead.FullName()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Unscoped().Model(&models.Lead{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"deleted_at": nil,
				"deleted_by": nil,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to restore lead: %w", err)
		}

		_, err = s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionLeadRestored,
			EntityType:  models.EntityLead,
			EntityID:    &id,
			EntityName:  name,
			Description: fmt.Sprintf("Lead '%s' restored from recycle bin", name),
			Keywords:    "lead,restore,recycle",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
