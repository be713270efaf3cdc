// handlers/payment_routes.go
package handlers

import (
	"tournament-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPaymentRoutes(app *fiber.App, processingService *services.ReferralProcessingService) {
	// Internal webhook — Gateway auth only, the payment service has no user
	// context to forward.
	app.Post("/internal/payments/verified", processingService.VerifiedPaymentEndpoint)
}
