package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	AssignmentHandler *handler.AssignmentHandler
	CourseHandler     *handler.CourseHandler
	GradingHandler    *handler.GradingHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	assignments := api.Group("/assignments", jwtMiddleware)
	courses := api.Group("/courses", jwtMiddleware)
	submissions := api.Group("/submissions", jwtMiddleware)

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(assignments)
	}

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(assignments)
		deps.AssignmentHandler.RegisterCourseRoutes(courses)
	}

	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(courses)
	}

	if deps.GradingHandler != nil {
		deps.GradingHandler.RegisterAssignmentRoutes(assignments)
		deps.GradingHandler.Register(submissions)
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/activity", jwtMiddleware, middleware.RequireInstructor()))
	}
}
