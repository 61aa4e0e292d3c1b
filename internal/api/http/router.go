package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/http/handlers"
	"github.com/spec-kit/service-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health           *handlers.HealthHandler
	Auth             *handlers.AuthHandler
	Submissions      *handlers.SubmissionsHandler
	StaffSubmissions *handlers.StaffSubmissionsHandler
	Reports          *handlers.ReportsHandler
	AuthMiddleware   *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/login", cfg.Auth.LoginUser)
	authGroup.Post("/staff/login", cfg.Auth.LoginStaff)

	app.Get("/categories", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Submissions.ListCategories)

	user := app.Group("/submissions", cfg.AuthMiddleware.Handle, auth.RequireUser())
	user.Post("", cfg.Submissions.CreateSubmission)
	user.Get("", cfg.Submissions.ListSubmissions)
	user.Get("/:id", cfg.Submissions.GetSubmission)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	staff.Get("/submissions/:id", cfg.StaffSubmissions.GetSubmission)
	staff.Post("/submissions/:id/review", cfg.StaffSubmissions.BeginReview)
	staff.Post("/submissions/:id/decision", cfg.StaffSubmissions.Decide)
	staff.Post("/submissions/decisions", cfg.StaffSubmissions.DecideBulk)
	staff.Post("/submissions/:id/transactions", cfg.StaffSubmissions.RecordTransaction)
	staff.Patch("/submissions/:id/status", cfg.StaffSubmissions.UpdateStatus)
	staff.Get("/reports/sla-compliance", cfg.Reports.SLACompliance)
}
