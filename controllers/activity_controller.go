package controller

import (
	"careleads/store"
	"careleads/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ActivityController struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Activity *store.ActivityStore
}

func NewActivityController(db *gorm.DB, logger *logrus.Logger) *ActivityController {
	return &ActivityController{
		DB:       db,
		Logger:   logger,
		Activity: store.NewActivityStore(db, logger),
	}
}

// ListActivity returns the activity log, filtered and newest-first.
func (ac *ActivityController) ListActivity(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}

	filter := store.ActivityFilter{
		Username:   c.Query("username"),
		ActionType: c.Query("action_type"),
		EntityType: c.Query("entity_type"),
		Keywords:   c.Query("keywords"),
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}

	if s := c.Query("start_date"); s != "" {
		start, err := parseDate(s)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid start date", err)
		}
		filter.StartDate = start
	}
	if s := c.Query("end_date"); s != "" {
		end, err := parseDate(s)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end date", err)
		}
		filter.EndDate = end
	}

	entries, err := ac.Activity.List(filter)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list activity", nil)
	}
	total, err := ac.Activity.Count(filter)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count activity", nil)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  entries,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// LeadHistory returns the full audit trail for one lead, newest-first.
func (ac *ActivityController) LeadHistory(c *fiber.Ctx) error {
	leadID := utils.ParseUint(c.Params("id"))

	entries, err := ac.Activity.LeadHistory(leadID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load lead history", nil)
	}
	return c.JSON(utils.SuccessResponse(entries))
}

// RecentActivity returns the latest activity entries for the dashboard.
func (ac *ActivityController) RecentActivity(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	entries, err := ac.Activity.Recent(limit)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load recent activity", nil)
	}
	return c.JSON(utils.SuccessResponse(entries))
}
