package routes

import (
	controller "careleads/controllers"
	"careleads/middleware"
	"careleads/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SetupRoutes wires every endpoint. The notifier is handed to the lead
// controller so authorization confirmations go out on flag flips.
func SetupRoutes(app *fiber.App, db *gorm.DB, log *logrus.Logger, notifier store.AuthorizationNotifier) {
	authController := controller.NewAuthController(db, log)
	leadController := controller.NewLeadController(db, log, notifier)
	intakeController := controller.NewIntakeController(db, log)
	partnerController := controller.NewPartnerController(db, log)
	activityController := controller.NewActivityController(db, log)
	reminderController := controller.NewReminderController(db, log)

	requestLogger := logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})

	// Public auth endpoints
	auth := app.Group("/auth", requestLogger)
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Post("/forgot-password", authController.RequestPasswordReset)

	// Protected auth endpoints
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", authController.Me)
	protectedAuth.Post("/change-password", authController.ChangePassword)

	// Public intake form, rate limited per IP
	app.Post("/intake", requestLogger, middleware.IntakeRateLimiter(), intakeController.Submit)

	// Everything else requires a valid JWT
	api := app.Group("/api/v1", middleware.Protected(), requestLogger)

	leads := api.Group("/leads")
	leads.Post("/", leadController.CreateLead)
	leads.Get("/", leadController.ListLeads)
	leads.Get("/deleted", leadController.ListDeletedLeads)
	leads.Get("/:id", leadController.GetLead)
	leads.Put("/:id", leadController.UpdateLead)
	leads.Delete("/:id", leadController.DeleteLead)
	leads.Post("/:id/restore", leadController.RestoreLead)
	leads.Post("/:id/mark-referral", leadController.MarkReferral)
	leads.Post("/:id/unmark-referral", leadController.UnmarkReferral)
	leads.Get("/:id/history", activityController.LeadHistory)
	leads.Get("/:id/reminders", reminderController.LeadReminders)

	agencies := api.Group("/agencies")
	agencies.Get("/", partnerController.ListAgencies)
	agencies.Post("/", partnerController.CreateAgency)
	agencies.Put("/:id", partnerController.UpdateAgency)
	agencies.Delete("/:id", partnerController.DeleteAgency)
	agencies.Get("/:id/suboptions", partnerController.ListSuboptions)
	agencies.Post("/:id/suboptions", partnerController.CreateSuboption)
	agencies.Delete("/:id/suboptions/:subID", partnerController.DeleteSuboption)

	ccus := api.Group("/ccus")
	ccus.Get("/", partnerController.ListCCUs)
	ccus.Post("/", partnerController.CreateCCU)
	ccus.Put("/:id", partnerController.UpdateCCU)
	ccus.Delete("/:id", partnerController.DeleteCCU)

	mcos := api.Group("/mcos")
	mcos.Get("/", partnerController.ListMCOs)
	mcos.Post("/", partnerController.CreateMCO)
	mcos.Put("/:id", partnerController.UpdateMCO)
	mcos.Delete("/:id", partnerController.DeleteMCO)

	activity := api.Group("/activity")
	activity.Get("/", activityController.ListActivity)
	activity.Get("/recent", activityController.RecentActivity)

	reminders := api.Group("/reminders")
	reminders.Get("/recent", reminderController.RecentReminders)

	// Admin-only user management
	admin := api.Group("/admin", middleware.AdminOnly())
	admin.Get("/users", authController.ListUsers)
	admin.Get("/users/pending", authController.ListPendingUsers)
	admin.Post("/users/:id/approve", authController.ApproveUser)
	admin.Post("/users/:id/reject", authController.RejectUser)
	admin.Put("/users/:id/role", authController.UpdateUserRole)
	admin.Put("/users/:id", authController.UpdateUserProfile)
	admin.Delete("/users/:id", authController.DeleteUser)
	admin.Get("/password-resets", authController.ListResetRequests)
	admin.Post("/users/:id/reset-password", authController.AdminResetPassword)
}
