package controller

import (
	"errors"

	"careleads/models"
	"careleads/store"
	"careleads/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Leads  *store.LeadStore
}

func NewLeadController(db *gorm.DB, logger *logrus.Logger, notifier store.AuthorizationNotifier) *LeadController {
	activity := store.NewActivityStore(db, logger)
	leads := store.NewLeadStore(db, logger, activity)
	leads.Notifier = notifier
	return &LeadController{
		DB:     db,
		Logger: logger,
		Leads:  leads,
	}
}

type leadCreateInput struct {
	StaffName    string `json:"staff_name" validate:"required"`
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	CustomUserID string `json:"custom_user_id"`

	Source          string `json:"source" validate:"required"`
	EventName       string `json:"event_name"`
	WordOfMouthType string `json:"word_of_mouth_type"`
	OtherSourceType string `json:"other_source_type"`

	Phone      string `json:"phone" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
	DOB        string `json:"dob"`
	Age        *int   `json:"age"`
	SSN        string `json:"ssn"`
	MedicaidNo string `json:"medicaid_no"`

	MedicaidStatus   string `json:"medicaid_status"`
	RelationToClient string `json:"relation_to_client"`

	EContactName     string `json:"e_contact_name"`
	EContactRelation string `json:"e_contact_relation"`
	EContactPhone    string `json:"e_contact_phone"`

	LastContactStatus string `json:"last_contact_status"`
	Priority          string `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	Comments          string `json:"comments"`
	SOCDate           string `json:"soc_date"`
}

// CreateLead inserts a new lead. Duplicates come back as 409 with the
// existing record's id.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	user := currentUser(c)

	var input leadCreateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	dob, err := parseDate(input.DOB)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date of birth", err)
	}
	socDate, err := parseDate(input.SOCDate)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid SOC date", err)
	}

	lead, err := lc.Leads.Create(store.LeadCreate{
		StaffName:         input.StaffName,
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		CustomUserID:      input.CustomUserID,
		OwnerID:           &user.ID,
		Source:            input.Source,
		EventName:         input.EventName,
		WordOfMouthType:   input.WordOfMouthType,
		OtherSourceType:   input.OtherSourceType,
		Phone:             input.Phone,
		Email:             input.Email,
		Address:           input.Address,
		City:              input.City,
		State:             input.State,
		ZipCode:           input.ZipCode,
		DOB:               dob,
		Age:               input.Age,
		SSN:               input.SSN,
		MedicaidNo:        input.MedicaidNo,
		MedicaidStatus:    input.MedicaidStatus,
		RelationToClient:  input.RelationToClient,
		EContactName:      input.EContactName,
		EContactRelation:  input.EContactRelation,
		EContactPhone:     input.EContactPhone,
		LastContactStatus: input.LastContactStatus,
		Priority:          input.Priority,
		Comments:          input.Comments,
		SOCDate:           socDate,
	}, user.Username, &user.ID)
	if err != nil {
		var dup *store.DuplicateLeadError
		if errors.As(err, &dup) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success":     false,
				"error":       "A lead with the same name and phone already exists",
				"existing_id": dup.ExistingID,
			})
		}
		if errors.Is(err, models.ErrInvalidCareStatus) || errors.Is(err, models.ErrInvalidReferralType) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		lc.Logger.WithError(err).Error("Lead creation failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLead returns one lead with its partner relations.
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	includeDeleted := c.QueryBool("include_deleted", false)

	lead, err := lc.Leads.Get(id, includeDeleted)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load lead", nil)
	}
	if lead == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

// ListLeads searches leads with filters and pagination.
func (lc *LeadController) ListLeads(c *fiber.Ctx) error {
	user := currentUser(c)

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	filter := store.LeadSearchFilter{
		Query:          c.Query("q"),
		Staff:          c.Query("staff"),
		Source:         c.Query("source"),
		Status:         c.Query("status"),
		Priority:       c.Query("priority"),
		ActiveInactive: c.Query("active"),
		OnlyMyLeads:    c.QueryBool("mine", false),
		ExcludeClients: c.QueryBool("exclude_clients", false),
		Offset:         (page - 1) * limit,
		Limit:          limit,
	}
	if filter.OnlyMyLeads {
		filter.OwnerID = &user.ID
	}
	if c.Query("auth_received") != "" {
		v := c.QueryBool("auth_received", false)
		filter.AuthReceived = &v
	}

	leads, err := lc.Leads.Search(filter)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to search leads", nil)
	}
	total, err := lc.Leads.CountSearch(filter)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", nil)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

type leadUpdateInput struct {
	StaffName    *string `json:"staff_name"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	CustomUserID *string `json:"custom_user_id"`

	Source          *string `json:"source"`
	EventName       *string `json:"event_name"`
	WordOfMouthType *string `json:"word_of_mouth_type"`
	OtherSourceType *string `json:"other_source_type"`

	ActiveClient          *bool   `json:"active_client"`
	ReferralType          *string `json:"referral_type"`
	AuthorizationReceived *bool   `json:"authorization_received"`
	CareStatus            *string `json:"care_status"`
	Priority              *string `json:"priority"`

	AgencyID          *uint `json:"agency_id"`
	AgencySuboptionID *uint `json:"agency_suboption_id"`
	CCUID             *uint `json:"ccu_id"`
	MCOID             *uint `json:"mco_id"`

	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	ZipCode    *string `json:"zip_code"`
	DOB        *string `json:"dob"`
	Age        *int    `json:"age"`
	MedicaidNo *string `json:"medicaid_no"`

	MedicaidStatus   *string `json:"medicaid_status"`
	RelationToClient *string `json:"relation_to_client"`

	EContactName     *string `json:"e_contact_name"`
	EContactRelation *string `json:"e_contact_relation"`
	EContactPhone    *string `json:"e_contact_phone"`

	LastContactStatus *string `json:"last_contact_status"`
	LastContactDate   *string `json:"last_contact_date"`
	Comments          *string `json:"comments"`
}

func (in *leadUpdateInput) toUpdate() (store.LeadUpdate, error) {
	upd := store.LeadUpdate{
		StaffName:             in.StaffName,
		FirstName:             in.FirstName,
		LastName:              in.LastName,
		CustomUserID:          in.CustomUserID,
		Source:                in.Source,
		EventName:             in.EventName,
		WordOfMouthType:       in.WordOfMouthType,
		OtherSourceType:       in.OtherSourceType,
		ActiveClient:          in.ActiveClient,
		ReferralType:          in.ReferralType,
		AuthorizationReceived: in.AuthorizationReceived,
		CareStatus:            in.CareStatus,
		Priority:              in.Priority,
		AgencyID:              in.AgencyID,
		AgencySuboptionID:     in.AgencySuboptionID,
		CCUID:                 in.CCUID,
		MCOID:                 in.MCOID,
		Phone:                 in.Phone,
		Email:                 in.Email,
		Address:               in.Address,
		City:                  in.City,
		State:                 in.State,
		ZipCode:               in.ZipCode,
		Age:                   in.Age,
		MedicaidNo:            in.MedicaidNo,
		MedicaidStatus:        in.MedicaidStatus,
		RelationToClient:      in.RelationToClient,
		EContactName:          in.EContactName,
		EContactRelation:      in.EContactRelation,
		EContactPhone:         in.EContactPhone,
		LastContactStatus:     in.LastContactStatus,
		Comments:              in.Comments,
	}
	if in.DOB != nil {
		dob, err := parseDate(*in.DOB)
		if err != nil {
			return upd, err
		}
		upd.DOB = dob
	}
	if in.LastContactDate != nil {
		d, err := parseDate(*in.LastContactDate)
		if err != nil {
			return upd, err
		}
		upd.LastContactDate = d
	}
	return upd, nil
}

// UpdateLead applies a partial update. Lifecycle rules run in the store;
// violations come back as 400s.
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	var input leadUpdateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	upd, err := input.toUpdate()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date", err)
	}

	lead, err := lc.Leads.Update(id, upd, user.Username, &user.ID)
	if err != nil {
		if errors.Is(err, models.ErrCareStartRequiresAuthorization) ||
			errors.Is(err, models.ErrReferralTypeRequired) ||
			errors.Is(err, models.ErrInvalidReferralType) ||
			errors.Is(err, models.ErrInvalidCareStatus) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		lc.Logger.WithError(err).WithField("lead_id", id).Error("Lead update failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", nil)
	}
	if lead == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// MarkReferral flips a lead into an active referral with the given type.
func (lc *LeadController) MarkReferral(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	var input struct {
		ReferralType string `json:"referral_type" validate:"required,oneof=Regular Interim"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	lead, err := lc.Leads.Update(id, store.LeadUpdate{
		ActiveClient: utils.Pointer(true),
		ReferralType: &input.ReferralType,
	}, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark referral", nil)
	}
	if lead == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

// UnmarkReferral drops a lead back to non-referral status, clearing its
// referral state.
func (lc *LeadController) UnmarkReferral(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	lead, err := lc.Leads.Update(id, store.LeadUpdate{
		ActiveClient: utils.Pointer(false),
	}, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to unmark referral", nil)
	}
	if lead == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

// ListDeletedLeads returns the recycle bin.
func (lc *LeadController) ListDeletedLeads(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	leads, err := lc.Leads.ListDeleted((page-1)*limit, limit)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list deleted leads", nil)
	}

	total, err := lc.Leads.CountSearch(store.LeadSearchFilter{IncludeDeleted: true})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count deleted leads", nil)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// DeleteLead soft deletes by default; ?permanent=true removes the row.
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))
	permanent := c.QueryBool("permanent", false)

	ok, err := lc.Leads.Delete(id, user.Username, &user.ID, permanent)
	if err != nil {
		lc.Logger.WithError(err).WithField("lead_id", id).Error("Lead deletion failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	message := "Lead moved to recycle bin"
	if permanent {
		message = "Lead permanently deleted"
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": message}))
}

// RestoreLead brings a lead back from the recycle bin.
func (lc *LeadController) RestoreLead(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	ok, err := lc.Leads.Restore(id, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to restore lead", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found in recycle bin", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Lead restored"}))
}
