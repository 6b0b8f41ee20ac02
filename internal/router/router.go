package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mingke-lab/exam-go-api/internal/config"
	"github.com/mingke-lab/exam-go-api/internal/handler"
	"github.com/mingke-lab/exam-go-api/internal/middleware"
	"github.com/mingke-lab/exam-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PaperHandler        *handler.PaperHandler
	QuestionHandler     *handler.QuestionHandler
	SubmissionHandler   *handler.SubmissionHandler
	StudentHandler      *handler.StudentHandler
	AdminBatchHandler   *handler.AdminBatchHandler
	NotificationHandler *handler.NotificationHandler
	UploadHandler       *handler.UploadHandler
	ActivityHandler     *handler.ActivityHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.PaperHandler != nil {
		papers := api.Group("/papers", jwtMiddleware)
		deps.PaperHandler.Register(papers)
	}

	if deps.QuestionHandler != nil {
		questions := api.Group("/questions", jwtMiddleware)
		deps.QuestionHandler.Register(questions)
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.StudentHandler != nil {
		students := api.Group("/students", jwtMiddleware, middleware.RequireRole("admin", "teacher"))
		deps.StudentHandler.Register(students)
	}

	if deps.AdminBatchHandler != nil {
		batch := api.Group("/admin/batch", jwtMiddleware, middleware.RequireRole("admin", "teacher"))
		deps.AdminBatchHandler.Register(batch)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.UploadHandler != nil {
		uploads := api.Group("/uploads", jwtMiddleware, middleware.RequireRole("admin", "teacher"))
		deps.UploadHandler.Register(uploads)
	}

	if deps.ActivityHandler != nil {
		activity := api.Group("/activity", jwtMiddleware, middleware.RequireRole("admin", "teacher"))
		deps.ActivityHandler.Register(activity)
	}
}
