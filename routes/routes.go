package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"crmpanel/access"
	controller "crmpanel/controllers"
	"crmpanel/middleware"
	"crmpanel/utils"
)

var requestLogFormat = "[${time}] ${status} - ${latency} ${method} ${path}\n"

// SetupRoutes wires every endpoint. Public endpoints come first; every
// other group runs behind TenantResolver so handlers can trust the
// injected identity headers. The shared LeadHub feeds /leads/stream.
func SetupRoutes(app *fiber.App, db *gorm.DB, hub *controller.LeadHub) {
	authController := controller.NewAuthController(db, log.New(os.Stdout, "AUTH: ", log.LstdFlags))
	navigationController := controller.NewNavigationController(db, log.New(os.Stdout, "NAV: ", log.LstdFlags))
	userController := controller.NewUserController(db, log.New(os.Stdout, "USER: ", log.LstdFlags))
	companyController := controller.NewCompanyController(db, log.New(os.Stdout, "COMPANY: ", log.LstdFlags))
	leadController := controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags), hub)
	statusController := controller.NewStatusController(db, log.New(os.Stdout, "STATUS: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))
	permissionController := controller.NewPermissionController(db, log.New(os.Stdout, "PERMISSION: ", log.LstdFlags))
	archiveController := controller.NewArchiveController(db, log.New(os.Stdout, "ARCHIVE: ", log.LstdFlags))
	webhookController := controller.NewWebhookController(db, log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags))

	// Auth group: public endpoints plus the session-protected tail
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: requestLogFormat,
	}), middleware.LoginRateLimiter())

	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Post("/forgot-password", authController.ForgotPassword)
	auth.Post("/reset-password", authController.ResetPassword)

	// Google OAuth routes
	auth.Get("/google", authController.GoogleOAuth)
	auth.Get("/google/callback", authController.GoogleOAuthCallback)

	// The menu endpoint is public: the dashboard shell loads it before
	// the first protected call
	auth.Get("/navigation", navigationController.GetMenu)

	// Session-protected tail of the auth group. The resolver rides on the
	// individual routes, not the group, so unrouted /auth paths still
	// reach the uniform 404 handler.
	resolver := middleware.TenantResolver(db)
	auth.Post("/logout", resolver, authController.Logout)
	auth.Get("/me", resolver, authController.GetCurrentUser)

	// Menu mutations share the /auth/navigation path but sit behind the
	// resolver: the Super Admin check reads the derived role header
	auth.Post("/navigation", resolver, navigationController.CreateModule)
	auth.Patch("/navigation/:id", resolver, navigationController.UpdateModule)
	auth.Delete("/navigation/:id", resolver, navigationController.DeleteModule)

	// Pipeline stages are seeded lookup data
	app.Get("/statuses", statusController.ListStatuses)

	// External integrations authenticate with a shared secret, not a session
	integrations := app.Group("/integrations", logger.New(logger.Config{
		Format: requestLogFormat,
	}))
	integrations.Post("/leads", webhookController.IntakeLead)

	// Everything below requires a resolved session. The resolver mounts on
	// each protected prefix rather than app-wide so unrouted paths still
	// fall through to the uniform 404 handler.
	protect := func(prefix string) fiber.Router {
		return app.Group(prefix, resolver, logger.New(logger.Config{
			Format: requestLogFormat,
		}))
	}

	dashboard := protect("/dashboard")
	dashboard.Get("/stats", dashboardController.GetStats)

	company := protect("/companies")
	company.Get("/", companyController.ListCompanies)
	company.Post("/", companyController.CreateCompany)
	company.Get("/:token", companyController.GetCompany)
	company.Patch("/:token", companyController.UpdateCompany)
	company.Delete("/:token", companyController.DeleteCompany)

	lead := protect("/leads")
	lead.Get("/", leadController.ListLeads)
	lead.Post("/", leadController.CreateLead)
	lead.Post("/verify-email", leadController.VerifyLeadEmail)
	lead.Get("/stream", streamHandler(hub))
	lead.Get("/:token", leadController.GetLead)
	lead.Patch("/:token", leadController.UpdateLead)
	lead.Delete("/:token", leadController.DeleteLead)

	admin := protect("/admin")
	admin.Get("/roles", userController.ListRoles)
	admin.Get("/users", userController.ListUsers)
	admin.Get("/users/:token", userController.GetUser)
	admin.Put("/users/:token", userController.UpdateUser)
	admin.Delete("/users/:token", userController.DeleteUser)

	admin.Get("/modules", navigationController.ListModules)

	admin.Get("/permissions", permissionController.GetPermissions)
	admin.Post("/permissions", permissionController.ReplacePermissions)

	admin.Get("/archive/:entity", archiveController.ListArchived)
	admin.Post("/archive/:entity", archiveController.HandleAction)

	// Uniform 404 for anything unrouted
	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Not found", nil)
	})
}

// streamHandler upgrades /leads/stream. The subscriber's scope comes
// from the resolved identity headers: tenants see their own events,
// Super Admins see all of them.
func streamHandler(hub *controller.LeadHub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		scope := c.Get(middleware.HeaderCompanyToken)
		if access.IsSuperAdmin(c.Get(middleware.HeaderUserRoleToken)) {
			scope = ""
		} else if scope == "" {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "No company assigned", nil)
		}
		c.Locals("stream_scope", scope)
		return websocket.New(hub.Subscribe)(c)
	}
}
