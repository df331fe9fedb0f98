package controller

import (
	"careleads/store"
	"careleads/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ReminderController struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Reminders *store.ReminderStore
}

func NewReminderController(db *gorm.DB, logger *logrus.Logger) *ReminderController {
	return &ReminderController{
		DB:        db,
		Logger:    logger,
		Reminders: store.NewReminderStore(db, logger),
	}
}

// LeadReminders returns the reminder history for one lead. ?kind=general
// or ?kind=care_start narrows to a single track.
func (rc *ReminderController) LeadReminders(c *fiber.Ctx) error {
	leadID := utils.ParseUint(c.Params("id"))
	kind := c.Query("kind")

	reminders, err := rc.Reminders.ByLead(leadID, kind)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load reminders", nil)
	}
	total, err := rc.Reminders.CountForLead(leadID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count reminders", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"reminders": reminders,
		"total":     total,
	}))
}

// RecentReminders returns the latest reminders across all leads.
func (rc *ReminderController) RecentReminders(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	reminders, err := rc.Reminders.Recent(limit)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load recent reminders", nil)
	}
	return c.JSON(utils.SuccessResponse(reminders))
}
