package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "mailprobe/controllers"
	"mailprobe/middleware"
	"mailprobe/verifier"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, v *verifier.Verifier) {
	controller.InitStripe()

	validateController := controller.NewValidateController(db, v, logrus.WithField("component", "validate"))
	adminController := controller.NewAdminController(db, logrus.WithField("component", "admin"))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth routes
	auth := app.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)
	auth.Post("/logout", middleware.Protected(), controller.Logout)

	// Payment routes
	payment := app.Group("/payment")
	payment.Post("/create-intent", middleware.Protected(), controller.CreatePaymentIntent)
	payment.Post("/webhook", controller.HandlePaymentWebhook)

	api := app.Group("/api", middleware.Protected())
	api.Get("/me", controller.GetCurrentUser)

	// Validation routes
	validate := api.Group("/validate", middleware.ValidateRateLimiter())
	validate.Get("/", validateController.VerifyEmail)
	validate.Post("/", validateController.VerifyEmail)
	validate.Post("/bulk", validateController.BulkVerify)
	validate.Post("/upload", validateController.UploadAndVerify)

	api.Get("/jobs/:id", validateController.GetJob)

	// Websocket progress feed for bulk jobs
	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/jobs/:id", websocket.New(controller.HandleJobProgressWS))

	// Admin routes
	admin := api.Group("/admin", middleware.AdminOnly())
	admin.Get("/validations", adminController.ListValidations)
	admin.Get("/export", adminController.ExportValidations)
	admin.Get("/stats", adminController.Stats)
}
