package store

import (
	"encoding/json"
	"fmt"
	"time"

	"careleads/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ActivityStore is the single write path for the append-only audit trail.
// Every other store records its mutations through it; rows are never updated
// or deleted.
type ActivityStore struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Now    func() time.Time
}

func NewActivityStore(db *gorm.DB, logger *logrus.Logger) *ActivityStore {
	return &ActivityStore{
		DB:     db,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// ActivityRecord carries the parameters for one audit entry. OldValue and
// NewValue are serialized to JSON; time values end up ISO-8601 encoded.
type ActivityRecord struct {
	UserID      *uint
	Username    string
	ActionType  string
	EntityType  string
	EntityID    *uint
	EntityName  string
	Description string
	OldValue    map[string]interface{}
	NewValue    map[string]interface{}
	Keywords    string
	IPAddress   string
}

// Record appends one audit entry using the given handle, which may be a
// transaction so the entry commits or rolls back together with the mutation
// it describes.
func (s *ActivityStore) Record(db *gorm.DB, rec ActivityRecord) (*models.ActivityLog, error) {
	entry := models.ActivityLog{
		Timestamp:   s.Now(),
		UserID:      rec.UserID,
		Username:    rec.Username,
		ActionType:  rec.ActionType,
		EntityType:  rec.EntityType,
		EntityID:    rec.EntityID,
		EntityName:  rec.EntityName,
		Description: rec.Description,
		Keywords:    rec.Keywords,
		IPAddress:   rec.IPAddress,
	}

	if rec.OldValue != nil {
		encoded, err := json.Marshal(rec.OldValue)
		if err != nil {
			return nil, fmt.Errorf("failed to encode old value: %w", err)
		}
		s := string(encoded)
		entry.OldValue = &s
	}
	if rec.NewValue != nil {
		encoded, err := json.Marshal(rec.NewValue)
		if err != nil {
			return nil, fmt.Errorf("failed to encode new value: %w", err)
		}
		s := string(encoded)
		entry.NewValue = &s
	}

	if err := db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to write activity log: %w", err)
	}
	return &entry, nil
}

// ActivityFilter narrows List and Count results. Zero values are ignored.
type ActivityFilter struct {
	Username   string
	ActionType string
	EntityType string
	StartDate  *time.Time
	EndDate    *time.Time
	// Matched against description, keywords and entity name
	Keywords string
	Limit    int
	Offset   int
}

func (s *ActivityStore) applyFilter(filter ActivityFilter) *gorm.DB {
	query := s.DB.Model(&models.ActivityLog{})
	if filter.Username != "" {
		query = query.Where("username = ?", filter.Username)
	}
	if filter.ActionType != "" {
		query = query.Where("action_type = ?", filter.ActionType)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.StartDate != nil {
		query = query.Where("timestamp >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("timestamp <= ?", *filter.EndDate)
	}
	if filter.Keywords != "" {
		pattern := "%" + filter.Keywords + "%"
		query = query.Where(
			"description LIKE ? OR keywords LIKE ? OR entity_name LIKE ?",
			pattern, pattern, pattern,
		)
	}
	return query
}

// List returns matching entries newest-first with offset/limit pagination.
func (s *ActivityStore) List(filter ActivityFilter) ([]models.ActivityLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var entries []models.ActivityLog
	err := s.applyFilter(filter).
		Order("timestamp DESC, id DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries matching the filter.
func (s *ActivityStore) Count(filter ActivityFilter) (int64, error) {
	var count int64
	if err := s.applyFilter(filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count activity logs: %w", err)
	}
	return count, nil
}

// LeadHistory returns every audit entry for one lead, newest first.
func (s *ActivityStore) LeadHistory(leadID uint) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := s.DB.
		Where("entity_type = ? AND entity_id = ?", models.EntityLead, leadID).
		Order("timestamp DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load lead history: %w", err)
	}
	return entries, nil
}

// Recent returns the latest entries across all entities, for dashboards.
func (s *ActivityStore) Recent(limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []models.ActivityLog
	err := s.DB.Order("timestamp DESC, id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}
	return entries, nil
}

// RecoverAuthorizationTime scans a lead's audit history for the most recent
// entry whose diff shows authorization_received flipping false to true.
// Leads updated since the authorization_received_at column exists carry the
// timestamp directly; this covers rows that predate it. Returns nil when no
// such entry exists, in which case the care-start reminder track must skip
// the lead even if the flag is currently set.
func (s *ActivityStore) RecoverAuthorizationTime(leadID uint) (*time.Time, error) {
	entries, err := s.LeadHistory(leadID)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.OldValue == nil || entry.NewValue == nil {
			continue
		}
		var oldVals, newVals map[string]interface{}
		if err := json.Unmarshal([]byte(*entry.OldValue), &oldVals); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(*entry.NewValue), &newVals); err != nil {
			continue
		}
		oldAuth, oldOK := oldVals["authorization_received"].(bool)
		newAuth, newOK := newVals["authorization_received"].(bool)
		if oldOK && newOK && !oldAuth && newAuth {
			ts := entry.Timestamp
			return &ts, nil
		}
	}
	return nil, nil
}
