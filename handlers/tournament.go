// handlers/tournament_routes.go
package handlers

import (
	"tournament-rewards-system/middleware"
	"tournament-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService, settlementService *services.SettlementService) {
	// 🔓 Public routes
	app.Get("/tournaments", tournamentService.GetPublishedTournaments)
	app.Get("/tournaments/:id", tournamentService.GetTournamentByID)

	// 🔐 Secured routes
	secured := app.Group("/s", middleware.UserContextMiddleware())
	secured.Get("/transactions", settlementService.GetTransactionsEndpoint)

	// 🛡️ Admin routes — lifecycle management and manual settlement
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())
	admin.Post("/tournaments", tournamentService.CreateTournament)
	admin.Patch("/tournaments/:id/status", tournamentService.UpdateTournamentStatus)
	admin.Post("/settlements/:type/run", settlementService.RunSettlementEndpoint)
}
