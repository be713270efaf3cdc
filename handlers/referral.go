// handlers/referral_routes.go
package handlers

import (
	"tournament-rewards-system/middleware"
	"tournament-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReferralRoutes(app *fiber.App, referralService *services.ReferralService) {
	// 🔓 Public route — no user context, but still requires Gateway auth.
	// The sign-up form pre-checks codes before an account exists.
	app.Get("/referrals/codes/:code/validate", referralService.ValidateCodeEndpoint)

	// 🔐 Secured routes — require user context (userID), enforced via middleware
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/referrals/code", referralService.GenerateCodeEndpoint)
	secured.Post("/referrals/apply", referralService.ApplyCodeEndpoint)
	secured.Get("/referrals/stats", referralService.StatsEndpoint)
	secured.Get("/referrals", referralService.ListEndpoint)
}
