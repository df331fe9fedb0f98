package main

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"careleads/config"
	"careleads/middleware"
	"careleads/routes"
	"careleads/utils"
	"careleads/worker"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if config.AppConfig.Environment == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := config.ConnectDB(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Sentry is best effort; the server runs without it
	if dsn := config.AppConfig.SentryDSN; dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: config.AppConfig.Environment,
		})
		if err != nil {
			log.WithError(err).Warn("Sentry initialization failed")
		}
	}

	app := fiber.New()
	app.Use(middleware.CORS())

	mailer := utils.NewMailer(utils.NewSMTPSender())

	// Reminder scheduler
	reminderWorker := worker.NewReminderWorker(config.DB, mailer.Sender, log)
	reminderWorker.Interval = config.AppConfig.ReminderInterval
	reminderWorker.SendDelay = config.AppConfig.ReminderSendDelay
	reminderWorker.SendTimeout = config.AppConfig.ReminderSendTimeout
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reminderWorker.Start(ctx)

	routes.SetupRoutes(app, config.DB, log, mailer)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	log.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
