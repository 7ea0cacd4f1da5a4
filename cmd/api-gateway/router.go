package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth    middleware.TokenValidator
	audit   middleware.AuditWriter
	metrics *service.MetricsService

	auths      *handler.AuthHandler
	users      *handler.UserHandler
	courses    *handler.CourseHandler
	timetables *handler.TimetableHandler
	exports    *handler.ExportHandler
	batches    *handler.BatchHandler
	scheduler  *handler.SchedulerHandler
	probes     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	r.Use(middleware.Metrics(deps.metrics, "/metrics"))
	r.Use(middleware.ResponseTiming())

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auditLog := logr.Named("audit")
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.audit, auditLog, action, resource)
	}
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleHOD)
	admin := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", deps.auths.Login)
	api.POST("/auth/refresh", deps.auths.Refresh)
	api.GET("/exports/download", deps.exports.Download)

	secured := api.Group("", middleware.JWT(deps.auth))
	secured.POST("/auth/logout", audit(models.AuditActionLogout, "session"), deps.auths.Logout)
	secured.POST("/auth/change-password", audit(models.AuditActionPasswordChange, "user"), deps.auths.ChangePassword)
	secured.GET("/auth/me", deps.auths.Me)
	secured.GET("/scheduler/requirements", deps.scheduler.Requirements)

	users := secured.Group("/users", admin)
	users.GET("", deps.users.List)
	users.POST("", audit(models.AuditActionUserCreate, "user"), deps.users.Create)
	users.GET("/:id", deps.users.Get)
	users.PUT("/:id", audit(models.AuditActionUserUpdate, "user"), deps.users.Update)
	users.DELETE("/:id", audit(models.AuditActionUserDeactivate, "user"), deps.users.Deactivate)

	courses := secured.Group("/courses", staff)
	courses.GET("", deps.courses.List)
	courses.PUT("", audit(models.AuditActionCourseSave, "course"), deps.courses.Save)
	courses.POST("/import", audit(models.AuditActionCourseSave, "course"), deps.courses.Import)
	courses.GET("/:id", deps.courses.Get)
	courses.DELETE("/:id", audit(models.AuditActionCourseDelete, "course"), deps.courses.Delete)
	courses.POST("/:id/timetables", audit(models.AuditActionTimetableCreate, "timetable"), deps.timetables.Generate)
	courses.GET("/:id/timetables", deps.timetables.ListByCourse)

	timetables := secured.Group("/timetables")
	timetables.POST("/batch", admin, audit(models.AuditActionTimetableCreate, "timetable_batch"), deps.batches.Submit)
	timetables.GET("/batch/:id", admin, deps.batches.Status)
	timetables.GET("/:id", staff, deps.timetables.Get)
	timetables.GET("/:id/export", staff, deps.exports.Export)
	timetables.POST("/:id/export-link", staff, deps.exports.CreateLink)
	timetables.POST("/:id/publish", admin, audit(models.AuditActionTimetablePublish, "timetable"), deps.timetables.Publish)
	timetables.DELETE("/:id", admin, audit(models.AuditActionTimetableDelete, "timetable"), deps.timetables.Delete)

	return r
}
