package store

import (
	"errors"
	"fmt"
	"time"

	"careleads/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrPartnerNameTaken rejects a duplicate partner name.
var ErrPartnerNameTaken = errors.New("a partner with that name already exists")

// PartnerStore manages payor agencies, their suboptions, CCUs and MCOs.
type PartnerStore struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Activity *ActivityStore
	Now      func() time.Time
}

func NewPartnerStore(db *gorm.DB, logger *logrus.Logger, activity *ActivityStore) *PartnerStore {
	return &PartnerStore{
		DB:       db,
		Logger:   logger,
		Activity: activity,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// --- Agencies ---

func (s *PartnerStore) CreateAgency(name, username string, userID *uint) (*models.Agency, error) {
	var existing models.Agency
	if err := s.DB.Where("name = ?", name).First(&existing).Error; err == nil {
		return nil, ErrPartnerNameTaken
	}

	agency := models.Agency{Name: name, CreatedBy: username, UpdatedBy: username}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&agency).Error; err != nil {
			return fmt.Errorf("failed to create agency: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionAgencyCreated,
			EntityType:  models.EntityAgency,
			EntityID:    &agency.ID,
			EntityName:  agency.Name,
			Description: fmt.Sprintf("Agency '%s' created", agency.Name),
			NewValue:    map[string]interface{}{"name": agency.Name},
			Keywords:    "agency,create",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &agency, nil
}

func (s *PartnerStore) ListAgencies() ([]models.Agency, error) {
	var agencies []models.Agency
	err := s.DB.Preload("Suboptions").Order("name").Find(&agencies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	return agencies, nil
}

func (s *PartnerStore) GetAgency(id uint) (*models.Agency, error) {
	var agency models.Agency
	if err := s.DB.Preload("Suboptions").First(&agency, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load agency: %w", err)
	}
	return &agency, nil
}

func (s *PartnerStore) UpdateAgency(id uint, name, username string, userID *uint) (*models.Agency, error) {
	agency, err := s.GetAgency(id)
	if err != nil || agency == nil {
		return nil, err
	}

	oldName := agency.Name
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(agency).Updates(map[string]interface{}{
			"name":       name,
			"updated_by": username,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update agency: %w", err)
		}
		_, err = s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionAgencyUpdated,
			EntityType:  models.EntityAgency,
			EntityID:    &agency.ID,
			EntityName:  name,
			Description: fmt.Sprintf("Agency renamed from '%s' to '%s'", oldName, name),
			OldValue:    map[string]interface{}{"name": oldName},
			NewValue:    map[string]interface{}{"name": name},
			Keywords:    "agency,update",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	agency.Name = name
	return agency, nil
}

// DeleteAgency removes the agency together with its suboptions. Leads keep
// their agency_id as a dangling reference; the UI treats it as unassigned.
func (s *PartnerStore) DeleteAgency(id uint, username string, userID *uint) (bool, error) {
	agency, err := s.GetAgency(id)
	if err != nil || agency == nil {
		return false, err
	}

	name := agency.Name
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("agency_id = ?", id).Delete(&models.AgencySuboption{}).Error; err != nil {
			return fmt.Errorf("failed to delete agency suboptions: %w", err)
		}
		if err := tx.Delete(&models.Agency{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete agency: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionAgencyDeleted,
			EntityType:  models.EntityAgency,
			EntityID:    &id,
			EntityName:  name,
			Description: fmt.Sprintf("Agency '%s' deleted", name),
			OldValue:    map[string]interface{}{"name": name},
			Keywords:    "agency,delete",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- Agency suboptions ---

func (s *PartnerStore) CreateSuboption(agencyID uint, name, username string, userID *uint) (*models.AgencySuboption, error) {
	agency, err := s.GetAgency(agencyID)
	if err != nil {
		return nil, err
	}
	if agency == nil {
		return nil, fmt.Errorf("agency %d not found", agencyID)
	}

	sub := models.AgencySuboption{
		AgencyID:  agencyID,
		Name:      name,
		CreatedBy: username,
		UpdatedBy: username,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to create suboption: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionAgencyUpdated,
			EntityType:  models.EntityAgency,
			EntityID:    &agencyID,
			EntityName:  agency.Name,
			Description: fmt.Sprintf("Suboption '%s' added to agency '%s'", name, agency.Name),
			NewValue:    map[string]interface{}{"suboption": name},
			Keywords:    "agency,suboption,create",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PartnerStore) ListSuboptions(agencyID uint) ([]models.AgencySuboption, error) {
	var subs []models.AgencySuboption
	err := s.DB.Where("agency_id = ?", agencyID).Order("name").Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list suboptions: %w", err)
	}
	return subs, nil
}

func (s *PartnerStore) DeleteSuboption(id uint, username string, userID *uint) (bool, error) {
	var sub models.AgencySuboption
	if err := s.DB.First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load suboption: %w", err)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.AgencySuboption{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete suboption: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionAgencyUpdated,
			EntityType:  models.EntityAgency,
			EntityID:    &sub.AgencyID,
			EntityName:  sub.Name,
			Description: fmt.Sprintf("Suboption '%s' deleted", sub.Name),
			OldValue:    map[string]interface{}{"suboption": sub.Name},
			Keywords:    "agency,suboption,delete",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- CCUs ---

// CCUInput carries the editable fields of a care coordination unit.
type CCUInput struct {
	Name                string
	Address             string
	Phone               string
	Fax                 string
	Email               string
	CareCoordinatorName string
}

func (s *PartnerStore) CreateCCU(in CCUInput, username string, userID *uint) (*models.CCU, error) {
	var existing models.CCU
	if err := s.DB.Where("name = ?", in.Name).First(&existing).Error; err == nil {
		return nil, ErrPartnerNameTaken
	}

	ccu := models.CCU{
		Name:                in.Name,
		Address:             in.Address,
		Phone:               in.Phone,
		Fax:                 in.Fax,
		Email:               in.Email,
		CareCoordinatorName: in.CareCoordinatorName,
		CreatedBy:           username,
		UpdatedBy:           username,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ccu).Error; err != nil {
			return fmt.Errorf("failed to create CCU: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionCCUCreated,
			EntityType:  models.EntityCCU,
			EntityID:    &ccu.ID,
			EntityName:  ccu.Name,
			Description: fmt.Sprintf("CCU '%s' created", ccu.Name),
			NewValue:    ccuSnapshot(&ccu),
			Keywords:    "ccu,create",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ccu, nil
}

func (s *PartnerStore) ListCCUs() ([]models.CCU, error) {
	var ccus []models.CCU
	if err := s.DB.Order("name").Find(&ccus).Error; err != nil {
		return nil, fmt.Errorf("failed to list CCUs: %w", err)
	}
	return ccus, nil
}

func (s *PartnerStore) GetCCU(id uint) (*models.CCU, error) {
	var ccu models.CCU
	if err := s.DB.First(&ccu, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load CCU: %w", err)
	}
	return &ccu, nil
}

func (s *PartnerStore) UpdateCCU(id uint, in CCUInput, username string, userID *uint) (*models.CCU, error) {
	ccu, err := s.GetCCU(id)
	if err != nil || ccu == nil {
		return nil, err
	}

	old := ccuSnapshot(ccu)
	ccu.Name = in.Name
	ccu.Address = in.Address
	ccu.Phone = in.Phone
	ccu.Fax = in.Fax
	ccu.Email = in.Email
	ccu.CareCoordinatorName = in.CareCoordinatorName
	ccu.UpdatedBy = username

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(ccu).Error; err != nil {
			return fmt.Errorf("failed to update CCU: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionCCUUpdated,
			EntityType:  models.EntityCCU,
			EntityID:    &ccu.ID,
			EntityName:  ccu.Name,
			Description: fmt.Sprintf("CCU '%s' updated", ccu.Name),
			OldValue:    old,
			NewValue:    ccuSnapshot(ccu),
			Keywords:    "ccu,update",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return ccu, nil
}

func (s *PartnerStore) DeleteCCU(id uint, username string, userID *uint) (bool, error) {
	ccu, err := s.GetCCU(id)
	if err != nil || ccu == nil {
		return false, err
	}

	name := ccu.Name
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.CCU{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete CCU: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionCCUDeleted,
			EntityType:  models.EntityCCU,
			EntityID:    &id,
			EntityName:  name,
			Description: fmt.Sprintf("CCU '%s' deleted", name),
			OldValue:    map[string]interface{}{"name": name},
			Keywords:    "ccu,delete",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func ccuSnapshot(ccu *models.CCU) map[string]interface{} {
	return map[string]interface{}{
		"name":                  ccu.Name,
		"address":               ccu.Address,
		"phone":                 ccu.Phone,
		"fax":                   ccu.Fax,
		"email":                 ccu.Email,
		"care_coordinator_name": ccu.CareCoordinatorName,
	}
}

// --- MCOs ---

func (s *PartnerStore) CreateMCO(name, username string, userID *uint) (*models.MCO, error) {
	var existing models.MCO
	if err := s.DB.Where("name = ?", name).First(&existing).Error; err == nil {
		return nil, ErrPartnerNameTaken
	}

	mco := models.MCO{Name: name, CreatedBy: username, UpdatedBy: username}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&mco).Error; err != nil {
			return fmt.Errorf("failed to create MCO: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionMCOCreated,
			EntityType:  models.EntityMCO,
			EntityID:    &mco.ID,
			EntityName:  mco.Name,
			Description: fmt.Sprintf("MCO '%s' created", mco.Name),
			NewValue:    map[string]interface{}{"name": mco.Name},
			Keywords:    "mco,create",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &mco, nil
}

func (s *PartnerStore) ListMCOs() ([]models.MCO, error) {
	var mcos []models.MCO
	if err := s.DB.Order("name").Find(&mcos).Error; err != nil {
		return nil, fmt.Errorf("failed to list MCOs: %w", err)
	}
	return mcos, nil
}

func (s *PartnerStore) UpdateMCO(id uint, name, username string, userID *uint) (*models.MCO, error) {
	var mco models.MCO
	if err := s.DB.First(&mco, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load MCO: %w", err)
	}

	oldName := mco.Name
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&mco).Updates(map[string]interface{}{
			"name":       name,
			"updated_by": username,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update MCO: %w", err)
		}
		_, err = s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionMCOUpdated,
			EntityType:  models.EntityMCO,
			EntityID:    &mco.ID,
			EntityName:  name,
			Description: fmt.Sprintf("MCO renamed from '%s' to '%s'", oldName, name),
			OldValue:    map[string]interface{}{"name": oldName},
			NewValue:    map[string]interface{}{"name": name},
			Keywords:    "mco,update",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	mco.Name = name
	return &mco, nil
}

func (s *PartnerStore) DeleteMCO(id uint, username string, userID *uint) (bool, error) {
	var mco models.MCO
	if err := s.DB.First(&mco, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load MCO: %w", err)
	}

	name := mco.Name
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.MCO{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete MCO: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      userID,
			Username:    username,
			ActionType:  models.ActionMCODeleted,
			EntityType:  models.EntityMCO,
			EntityID:    &id,
			EntityName:  name,
			Description: fmt.Sprintf("MCO '%s' deleted", name),
			OldValue:    map[string]interface{}{"name": name},
			Keywords:    "mco,delete",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
