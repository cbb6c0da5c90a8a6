package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/eventhub/internal/handlers"
	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/middleware"
	"github.com/farellandr/eventhub/internal/models"
	"github.com/farellandr/eventhub/internal/observability"
)

type Options struct {
	CORSOrigins []string
	// UploadDir is served under /uploads when set.
	UploadDir string
}

func NewRouter(deps *handlers.Deps, metrics *observability.Metrics, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(deps.Log),
		middleware.RequestLogger(deps.Log),
		middleware.CORS(opts.CORSOrigins),
	)
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}

	setupRoutes(r, deps)
	return r
}

func setupRoutes(r *gin.Engine, deps *handlers.Deps) {
	api := r.Group("/api")
	api.Use(middleware.PrincipalMiddleware(deps.Auth), handlers.Inject(deps))

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	auth := api.Group("/auth")
	{
		auth.POST("/user/register", handlers.Register)
		auth.POST("/user/login", handlers.UserLogin)
		auth.POST("/admin/login", handlers.AdminLogin)
		auth.POST("/:realm/forgot-password", handlers.ForgotPassword)
		auth.POST("/:realm/reset-password/:token", handlers.ResetPassword)
		auth.GET("/profile", middleware.RequireAuth(), handlers.GetProfile)
	}

	managers := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSubAdmin, models.RoleSuperAdmin)

	events := api.Group("/events")
	{
		events.GET("", handlers.ListEvents)
		events.GET("/:id", handlers.GetEvent)
		events.GET("/:id/is-registered", middleware.RequireAuth(), handlers.IsRegistered)
		events.POST("", managers, handlers.CreateEvent)
		events.PUT("/:id", managers, handlers.UpdateEvent)
		events.DELETE("/:id", managers, handlers.DeleteEvent)
	}

	registrations := api.Group("/register-event", middleware.RequireAuth())
	{
		registrations.POST("", handlers.RegisterForEvent)
		registrations.GET("/mine", handlers.MyRegistrations)
		registrations.PUT("/cancel/:id", handlers.CancelRegistration)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/tickets/check-in", staff, handlers.CheckInTicket)

		managed := admin.Group("", managers)
		managed.GET("/dashboard", handlers.Dashboard)
		managed.GET("/events", handlers.ListEvents)
		managed.POST("/events", handlers.CreateEvent)
		managed.PUT("/events/:id", handlers.UpdateEvent)
		managed.DELETE("/events/:id", handlers.DeleteEvent)
		managed.POST("/events/:id/banner", handlers.UploadBanner)
		managed.GET("/events/:id/participants", handlers.ListParticipants)
		managed.GET("/events/:id/download/:format", handlers.DownloadParticipants)
		managed.GET("/registrations", handlers.RegistrationsOverview)
		managed.GET("/subadmins", handlers.ListStaff)
		managed.POST("/subadmins", handlers.CreateSubAdmin)
		managed.PUT("/subadmins/:id", handlers.UpdateStaff)
		managed.DELETE("/subadmins/:id", handlers.DeleteStaff)
	}

	subadmin := api.Group("/subadmin", middleware.RequireRoles(models.RoleSubAdmin))
	{
		subadmin.GET("/dashboard", handlers.Dashboard)
		subadmin.GET("/my-events", handlers.EventsWithParticipants)
		subadmin.GET("/events/:id/participants", handlers.ListParticipants)
		subadmin.GET("/events/:id/download/:format", handlers.DownloadParticipants)
	}

	superadmin := api.Group("/superadmin", middleware.RequireRoles(models.RoleSuperAdmin))
	{
		superadmin.GET("/dashboard", handlers.Dashboard)
		superadmin.GET("/analytics", handlers.Dashboard)
		superadmin.GET("/events-with-participants", handlers.EventsWithParticipants)
		superadmin.GET("/events/:id/participants", handlers.ListParticipants)
		superadmin.GET("/events/:id/download/:format", handlers.DownloadParticipants)
		superadmin.GET("/registrations", handlers.RegistrationsOverview)
		superadmin.GET("/staff", handlers.ListStaff)
		superadmin.POST("/staff", handlers.CreateStaff)
		superadmin.PUT("/staff/:id", handlers.UpdateStaff)
		superadmin.DELETE("/staff/:id", handlers.DeleteStaff)
	}

	r.NoRoute(func(c *gin.Context) {
		helpers.RespondWithError(c, http.StatusNotFound, "Route not found.")
	})
}
