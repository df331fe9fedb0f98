package controller

import (
	"fmt"
	"strings"
	"time"

	"careleads/models"

	"github.com/gofiber/fiber/v2"
)

// Accepted date layouts, tried in order
var dateLayouts = []string{"2006-01-02", "01/02/2006"}

// parseDate accepts yyyy-mm-dd or mm/dd/yyyy. Empty input is nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q, expected yyyy-mm-dd or mm/dd/yyyy", s)
}

// currentUser returns the user set by the JWT middleware.
func currentUser(c *fiber.Ctx) *models.User {
	return c.Locals("user").(*models.User)
}
