package controller

import (
	"errors"
	"strings"

	"careleads/store"
	"careleads/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IntakeController serves the public intake form. No authentication; the
// submitting staff member is identified by id and name, which must match.
type IntakeController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Leads  *store.LeadStore
	Users  *store.UserStore
}

func NewIntakeController(db *gorm.DB, logger *logrus.Logger) *IntakeController {
	activity := store.NewActivityStore(db, logger)
	return &IntakeController{
		DB:     db,
		Logger: logger,
		Leads:  store.NewLeadStore(db, logger, activity),
		Users:  store.NewUserStore(db, logger, activity),
	}
}

type intakeInput struct {
	UserID    uint   `json:"user_id" validate:"required"`
	StaffName string `json:"staff_name" validate:"required"`

	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	DOB      string `json:"dob"`
	Age      *int   `json:"age"`

	Source          string `json:"source" validate:"required"`
	EventName       string `json:"event_name"`
	WordOfMouthType string `json:"word_of_mouth_type"`
	OtherSourceType string `json:"other_source_type"`

	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`

	SSN            string `json:"ssn"`
	MedicaidNo     string `json:"medicaid_no"`
	MedicaidStatus string `json:"medicaid_status"`

	RelationToClient string `json:"relation_to_client"`
	EContactName     string `json:"e_contact_name"`
	EContactRelation string `json:"e_contact_relation"`
	EContactPhone    string `json:"e_contact_phone"`

	Comments string `json:"comments"`
	SOCDate  string `json:"soc_date"`
}

// splitFullName breaks a display name into first/last. Everything after
// the first word goes into the last name.
func splitFullName(full string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// Submit handles a public intake form submission.
func (ic *IntakeController) Submit(c *fiber.Ctx) error {
	var input intakeInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	// The form sends both the staff id and name; they must belong to the
	// same approved account.
	staff, err := ic.Users.GetByID(input.UserID)
	if err != nil {
		ic.Logger.WithError(err).Error("Intake staff lookup failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Submission failed", nil)
	}
	if staff == nil || !staff.IsApproved ||
		!strings.EqualFold(strings.TrimSpace(input.StaffName), staff.Username) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown staff member", nil)
	}

	firstName, lastName := splitFullName(input.FullName)
	if firstName == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Name is required", nil)
	}

	dob, err := parseDate(input.DOB)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date of birth", err)
	}
	socDate, err := parseDate(input.SOCDate)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid SOC date", err)
	}

	lead, err := ic.Leads.Create(store.LeadCreate{
		StaffName:        staff.Username,
		FirstName:        firstName,
		LastName:         lastName,
		OwnerID:          &staff.ID,
		Source:           input.Source,
		EventName:        input.EventName,
		WordOfMouthType:  input.WordOfMouthType,
		OtherSourceType:  input.OtherSourceType,
		Phone:            input.Phone,
		Email:            input.Email,
		Address:          input.Street,
		City:             input.City,
		State:            input.State,
		ZipCode:          input.ZipCode,
		DOB:              dob,
		Age:              input.Age,
		SSN:              input.SSN,
		MedicaidNo:       input.MedicaidNo,
		MedicaidStatus:   input.MedicaidStatus,
		RelationToClient: input.RelationToClient,
		EContactName:     input.EContactName,
		EContactRelation: input.EContactRelation,
		EContactPhone:    input.EContactPhone,
		Comments:         input.Comments,
		SOCDate:          socDate,
	}, staff.Username, &staff.ID)
	if err != nil {
		var dup *store.DuplicateLeadError
		if errors.As(err, &dup) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success":     false,
				"error":       "This person has already been submitted",
				"existing_id": dup.ExistingID,
			})
		}
		ic.Logger.WithError(err).Error("Intake submission failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Submission failed", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"id":      lead.ID,
		"message": "Submission received",
	}))
}
