package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/handler"
	"github.com/noah-isme/internship-api/internal/middleware"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/internal/service"
	"github.com/noah-isme/internship-api/pkg/config"
	"github.com/noah-isme/internship-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/internship-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/internship-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by Setup.
type Handlers struct {
	Period       *handler.PeriodHandler
	Registration *handler.RegistrationHandler
	Allocation   *handler.AllocationHandler
	WeeklyReport *handler.WeeklyReportHandler
	Retake       *handler.RetakeHandler
	Export       *handler.ExportHandler
	File         *handler.FileHandler
	Metrics      *handler.MetricsHandler
}

// Dependencies carries the cross-cutting collaborators of the router.
type Dependencies struct {
	Verifier *service.TokenVerifier
	Metrics  *service.MetricsService
	Audit    middleware.AuditRecorder
	Logger   *zap.Logger
}

// Setup builds the gin engine with global middleware and every API route.
func Setup(cfg *config.Config, h Handlers, deps Dependencies) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, h.Metrics.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Signed tokens authorise file downloads on their own.
	r.GET("/files/:token", h.File.Download)

	admin := middleware.RequireRoles(models.RoleAdmin)
	adminOrLecturer := middleware.RequireRoles(models.RoleAdmin, models.RoleLecturer)
	adminOrStudent := middleware.RequireRoles(models.RoleAdmin, models.RoleStudent)
	lecturer := middleware.RequireRoles(models.RoleLecturer)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.Verifier))
	{
		periods := api.Group("/periods")
		{
			periods.GET("", admin, h.Period.List)
			periods.GET("/visible", h.Period.Visible)
			periods.GET("/active", h.Period.Active)
			periods.GET("/:id", h.Period.Get)
			periods.POST("", admin, h.Period.Create)
			periods.PUT("/:id", admin, h.Period.Update)
			periods.POST("/:id/activate", admin, h.Period.Activate)
			periods.DELETE("/:id", admin, h.Period.Delete)

			periods.GET("/:id/registration-status", adminOrStudent, h.Registration.Status)
			periods.POST("/:id/progress-sync", admin, h.Registration.SyncProgress)

			periods.GET("/:id/allocations", h.Allocation.List)
			periods.PUT("/:id/allocations", admin, h.Allocation.Upsert)
			periods.DELETE("/:id/allocations/:lecturerId", admin, h.Allocation.Delete)
			periods.POST("/:id/auto-assign", admin, h.Allocation.AutoAssign)

			periods.GET("/:id/roster", adminOrLecturer,
				middleware.Audit(deps.Audit, log, models.AuditActionRosterExport, "period", "id"),
				h.Export.Roster)
		}

		registrations := api.Group("/registrations")
		{
			registrations.POST("", adminOrStudent, h.Registration.Register)
			registrations.GET("", h.Registration.List)
			registrations.GET("/:id", h.Registration.Get)
			registrations.POST("/:id/lecturer", adminOrStudent, h.Registration.ChooseLecturer)
			registrations.POST("/:id/defer-lecturer", adminOrStudent, h.Registration.DeferToAutoAssign)
			registrations.POST("/:id/lecturer/confirm", lecturer, h.Registration.ConfirmLecturer)
			registrations.POST("/:id/lecturer/decline", lecturer, h.Registration.DeclineLecturer)
			registrations.PUT("/:id/company", adminOrStudent, h.Registration.SubmitCompany)
			registrations.POST("/:id/review", admin, h.Registration.MarkPendingApproval)
			registrations.POST("/:id/approve", admin, h.Registration.Approve)
			registrations.POST("/:id/reject", admin, h.Registration.Reject)
			registrations.POST("/:id/complete", adminOrLecturer, h.Registration.Complete)
			registrations.PUT("/:id/status", admin, h.Registration.Override)
			registrations.PUT("/:id/assignment", admin, h.Allocation.Assign)
			registrations.DELETE("/:id/assignment", admin, h.Allocation.Unassign)

			registrations.GET("/:id/weekly-reports", h.WeeklyReport.List)
			registrations.GET("/:id/weekly-reports/calendar.ics", h.WeeklyReport.Calendar)
			registrations.POST("/:id/weekly-reports/:week", middleware.RequireRoles(models.RoleStudent), h.WeeklyReport.Submit)
			registrations.POST("/:id/weekly-reports/:week/review", lecturer, h.WeeklyReport.Review)
		}

		retakes := api.Group("/retakes")
		{
			retakes.GET("/eligibility", adminOrStudent, h.Retake.Eligibility)
			retakes.GET("", adminOrStudent, h.Retake.List)
			retakes.POST("", middleware.RequireRoles(models.RoleStudent), h.Retake.Submit)
			retakes.POST("/:id/review", admin, h.Retake.Review)
		}
	}

	return r
}
