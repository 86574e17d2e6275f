package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swarmdesk/swarmdesk/internal/api/http/handlers"
	"github.com/swarmdesk/swarmdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Tickets         *handlers.TicketsHandler
	Comments        *handlers.CommentsHandler
	BugReports      *handlers.BugReportsHandler
	Stats           *handlers.StatsHandler
	APIKeys         *handlers.APIKeysHandler
	AdminMiddleware *auth.AdminMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	api.Delete("/tickets/:id", cfg.Tickets.DeleteTicket)
	api.Post("/tickets/:id/actions", cfg.Tickets.AddSwarmAction)

	api.Get("/tickets/:id/comments", cfg.Comments.ListComments)
	api.Post("/tickets/:id/comments", cfg.Comments.AddComment)
	api.Patch("/tickets/:id/comments/:commentId", cfg.Comments.UpdateComment)
	api.Delete("/tickets/:id/comments/:commentId", cfg.Comments.DeleteComment)

	api.Get("/stats", cfg.Stats.GetStats)

	api.Post("/bug-reports", cfg.BugReports.CreateBugReport)

	admin := api.Group("/admin", cfg.AdminMiddleware.Handle)
	admin.Post("/keys", cfg.APIKeys.CreateAPIKey)
	admin.Get("/keys", cfg.APIKeys.ListAPIKeys)
	admin.Delete("/keys/:key", cfg.APIKeys.RevokeAPIKey)
}
