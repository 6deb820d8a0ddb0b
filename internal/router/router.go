package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-contest-api/internal/config"
	"github.com/noah-isme/gema-contest-api/internal/handler"
	"github.com/noah-isme/gema-contest-api/internal/middleware"
	"github.com/noah-isme/gema-contest-api/internal/observability"
)

const uploadRateWindow = time.Minute

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TeamHandler        *handler.TeamHandler
	ProblemHandler     *handler.ProblemHandler
	SubmissionHandler  *handler.SubmissionHandler
	GradingHandler     *handler.GradingHandler
	CompetitionHandler *handler.CompetitionHandler
	EventHandler       *handler.EventHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EventHandler != nil {
		deps.EventHandler.Register(api.Group("/events"))
	}

	if deps.CompetitionHandler != nil {
		deps.CompetitionHandler.Register(api.Group("/competition"))
	}
	if deps.TeamHandler != nil {
		deps.TeamHandler.Register(api.Group("/teams"))
	}
	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(api.Group("/problems"))
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		submissions.Post("/",
			middleware.RateLimit("submission-upload", cfg.UploadRateLimit, uploadRateWindow),
			middleware.WithAuth(deps.SubmissionHandler.Upload, middleware.AuthOptions{Role: middleware.AuthRoleTeam}),
		)
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.GradingHandler != nil {
		judge := api.Group("/judge", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleJudge, middleware.AuthRoleAdmin))
		deps.GradingHandler.Register(judge.Group("/submissions"))
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
	if deps.CompetitionHandler != nil {
		deps.CompetitionHandler.RegisterAdmin(admin.Group("/competition"))
	}
	if deps.TeamHandler != nil {
		deps.TeamHandler.RegisterAdmin(admin.Group("/teams"))
	}
	if deps.ProblemHandler != nil {
		deps.ProblemHandler.RegisterAdmin(admin.Group("/problems"))
	}
}
