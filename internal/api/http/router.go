package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/repairx/job-service/internal/api/http/handlers"
	"github.com/repairx/job-service/internal/auth"
	"github.com/repairx/job-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Customers      *handlers.CustomersHandler
	Staff          *handlers.StaffHandler
	Jobs           *handlers.JobsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/customers/register", cfg.Customers.Register)
	authGroup.Post("/customers/login", cfg.Customers.Login)
	authGroup.Post("/staff/login", cfg.Staff.Login)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Post("/password/change", cfg.Staff.ChangePassword)

	jobs := app.Group("/jobs", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	jobs.Get("/states", cfg.Jobs.States)
	jobs.Post("/", cfg.Jobs.CreateJob)
	jobs.Get("/", cfg.Jobs.ListJobs)
	jobs.Get("/:id", cfg.Jobs.GetJob)
	jobs.Put("/:id/state", cfg.Jobs.TransitionJob)
	jobs.Get("/:id/history", cfg.Jobs.ListHistory)
	jobs.Put("/:id/technician",
		auth.RequireStaffRole(domain.StaffRoleManager, domain.StaffRoleAdmin),
		cfg.Jobs.AssignTechnician)

	requireAdmin := auth.RequireStaffRole(domain.StaffRoleAdmin)
	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, requireAdmin)
	staff.Post("/members", cfg.Staff.CreateStaffMember)
	staff.Get("/members", cfg.Staff.ListStaffMembers)

	app.Get("/metrics", cfg.AuthMiddleware.Handle, requireAdmin, cfg.Health.Metrics)
}
