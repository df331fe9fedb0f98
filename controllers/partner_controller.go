package controller

import (
	"errors"

	"careleads/store"
	"careleads/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PartnerController struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Partners *store.PartnerStore
}

func NewPartnerController(db *gorm.DB, logger *logrus.Logger) *PartnerController {
	activity := store.NewActivityStore(db, logger)
	return &PartnerController{
		DB:       db,
		Logger:   logger,
		Partners: store.NewPartnerStore(db, logger, activity),
	}
}

type nameInput struct {
	Name string `json:"name" validate:"required,min=2,max=150"`
}

// --- Agencies ---

func (pc *PartnerController) ListAgencies(c *fiber.Ctx) error {
	agencies, err := pc.Partners.ListAgencies()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list agencies", nil)
	}
	return c.JSON(utils.SuccessResponse(agencies))
}

func (pc *PartnerController) CreateAgency(c *fiber.Ctx) error {
	user := currentUser(c)

	var input nameInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	agency, err := pc.Partners.CreateAgency(input.Name, user.Username, &user.ID)
	if err != nil {
		if errors.Is(err, store.ErrPartnerNameTaken) {
			return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create agency", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(agency))
}

func (pc *PartnerController) UpdateAgency(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	var input nameInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	agency, err := pc.Partners.UpdateAgency(id, input.Name, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update agency", nil)
	}
	if agency == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Agency not found", nil)
	}
	return c.JSON(utils.SuccessResponse(agency))
}

func (pc *PartnerController) DeleteAgency(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	ok, err := pc.Partners.DeleteAgency(id, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete agency", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Agency not found", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Agency deleted"}))
}

// --- Agency suboptions ---

func (pc *PartnerController) ListSuboptions(c *fiber.Ctx) error {
	agencyID := utils.ParseUint(c.Params("id"))
	subs, err := pc.Partners.ListSuboptions(agencyID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list suboptions", nil)
	}
	return c.JSON(utils.SuccessResponse(subs))
}

func (pc *PartnerController) CreateSuboption(c *fiber.Ctx) error {
	user := currentUser(c)
	agencyID := utils.ParseUint(c.Params("id"))

	var input nameInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	sub, err := pc.Partners.CreateSuboption(agencyID, input.Name, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create suboption", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sub))
}

func (pc *PartnerController) DeleteSuboption(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("subID"))

	ok, err := pc.Partners.DeleteSuboption(id, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete suboption", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Suboption not found", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Suboption deleted"}))
}

// --- CCUs ---

type ccuInput struct {
	Name                string `json:"name" validate:"required,min=2,max=150"`
	Address             string `json:"address"`
	Phone               string `json:"phone"`
	Fax                 string `json:"fax"`
	Email               string `json:"email" validate:"omitempty,email"`
	CareCoordinatorName string `json:"care_coordinator_name"`
}

func (pc *PartnerController) ListCCUs(c *fiber.Ctx) error {
	ccus, err := pc.Partners.ListCCUs()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list CCUs", nil)
	}
	return c.JSON(utils.SuccessResponse(ccus))
}

func (pc *PartnerController) CreateCCU(c *fiber.Ctx) error {
	user := currentUser(c)

	var input ccuInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ccu, err := pc.Partners.CreateCCU(store.CCUInput{
		Name:                input.Name,
		Address:             input.Address,
		Phone:               input.Phone,
		Fax:                 input.Fax,
		Email:               input.Email,
		CareCoordinatorName: input.CareCoordinatorName,
	}, user.Username, &user.ID)
	if err != nil {
		if errors.Is(err, store.ErrPartnerNameTaken) {
			return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create CCU", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(ccu))
}

func (pc *PartnerController) UpdateCCU(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	var input ccuInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ccu, err := pc.Partners.UpdateCCU(id, store.CCUInput{
		Name:                input.Name,
		Address:             input.Address,
		Phone:               input.Phone,
		Fax:                 input.Fax,
		Email:               input.Email,
		CareCoordinatorName: input.CareCoordinatorName,
	}, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update CCU", nil)
	}
	if ccu == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "CCU not found", nil)
	}
	return c.JSON(utils.SuccessResponse(ccu))
}

func (pc *PartnerController) DeleteCCU(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	ok, err := pc.Partners.DeleteCCU(id, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete CCU", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "CCU not found", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "CCU deleted"}))
}

// --- MCOs ---

func (pc *PartnerController) ListMCOs(c *fiber.Ctx) error {
	mcos, err := pc.Partners.ListMCOs()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list MCOs", nil)
	}
	return c.JSON(utils.SuccessResponse(mcos))
}

func (pc *PartnerController) CreateMCO(c *fiber.Ctx) error {
	user := currentUser(c)

	var input nameInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	mco, err := pc.Partners.CreateMCO(input.Name, user.Username, &user.ID)
	if err != nil {
		if errors.Is(err, store.ErrPartnerNameTaken) {
			return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create MCO", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(mco))
}

func (pc *PartnerController) UpdateMCO(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	var input nameInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	mco, err := pc.Partners.UpdateMCO(id, input.Name, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update MCO", nil)
	}
	if mco == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "MCO not found", nil)
	}
	return c.JSON(utils.SuccessResponse(mco))
}

func (pc *PartnerController) DeleteMCO(c *fiber.Ctx) error {
	user := currentUser(c)
	id := utils.ParseUint(c.Params("id"))

	ok, err := pc.Partners.DeleteMCO(id, user.Username, &user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete MCO", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "MCO not found", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "MCO deleted"}))
}
