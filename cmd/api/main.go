package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/snchs-registrar/enrollment-api/api/swagger"
	"github.com/snchs-registrar/enrollment-api/internal/handler"
	"github.com/snchs-registrar/enrollment-api/internal/middleware"
	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/repository"
	"github.com/snchs-registrar/enrollment-api/internal/service"
	"github.com/snchs-registrar/enrollment-api/internal/store"
	"github.com/snchs-registrar/enrollment-api/pkg/cache"
	"github.com/snchs-registrar/enrollment-api/pkg/config"
	"github.com/snchs-registrar/enrollment-api/pkg/database"
	"github.com/snchs-registrar/enrollment-api/pkg/fieldcrypt"
	"github.com/snchs-registrar/enrollment-api/pkg/logger"
	corsmiddleware "github.com/snchs-registrar/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/snchs-registrar/enrollment-api/pkg/middleware/requestid"
)

// @title SNCHS Enrollment API
// @version 1.0.0
// @description Enrollment submission and registrar review service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if !cfg.EncryptionKeyUsable() {
		if cfg.Env == config.EnvProduction {
			logr.Fatal("refusing to start with the default encryption key")
		}
		logr.Warn("using the default encryption key, set ENCRYPTION_KEY before going live")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API works without Redis; only rate limiting degrades.
		logr.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		redisClient = nil
	}

	docs := store.New(db)
	watcher, err := store.NewWatcher(database.DSN(cfg.Database), docs, logr)
	if err != nil {
		logr.Warn("change listener unavailable, live streams disabled", zap.Error(err))
		watcher = nil
	} else {
		defer watcher.Close()
	}
	var changeWatcher repository.ChangeWatcher
	if watcher != nil {
		changeWatcher = watcher
	}

	crypt := fieldcrypt.New(cfg.Encryption.Key)
	validate := validator.New()

	enrollmentCache := repository.NewEnrollmentCache(cfg.Enrollment.CacheTTL, nil)
	enrollmentRepo := repository.NewEnrollmentRepository(docs, enrollmentCache, changeWatcher, crypt, logr, cfg.Enrollment.SearchPrefetchCap)
	teacherRepo := repository.NewTeacherRepository(docs)
	newsRepo := repository.NewNewsRepository(docs, logr)
	userRepo := repository.NewUserRepository(docs)
	settingsRepo := repository.NewSettingsRepository(docs, changeWatcher, cfg.Enrollment.SchoolYear)
	auditRepo := repository.NewAuditRepository(docs)

	metricsService := service.NewMetricsService()
	enrollmentRepo.SetMetrics(metricsService)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		Expiry:            cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AdminEmail:        cfg.Admin.Email,
		AdminPasswordHash: cfg.Admin.PasswordHash,
	})
	settingsService := service.NewSettingsService(settingsRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, settingsRepo, crypt, logr, cfg.Enrollment.SchoolYear, cfg.Archive.DeleteOriginal)
	teacherService := service.NewTeacherService(teacherRepo, validate, logr)
	newsService := service.NewNewsService(newsRepo, validate, logr)
	dashboardService := service.NewDashboardService(enrollmentRepo, logr)
	exportService := service.NewExportService(enrollmentRepo, enrollmentService, logr)

	authHandler := handler.NewAuthHandler(authService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, cfg.Enrollment.DefaultPageSize, cfg.Enrollment.MaxPageSize)
	teacherHandler := handler.NewTeacherHandler(teacherService)
	newsHandler := handler.NewNewsHandler(newsService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	limiter := middleware.NewRateLimiter(redisClient, logr, cfg.RateLimit.Enabled)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.Metrics(metricsService))
	r.Use(limiter.Limit("general", cfg.RateLimit.General.Limit, cfg.RateLimit.General.Window))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(limiter.Limit("api", cfg.RateLimit.API.Limit, cfg.RateLimit.API.Window))

	api.POST("/auth/login", limiter.Limit("auth", cfg.RateLimit.Auth.Limit, cfg.RateLimit.Auth.Window), authHandler.Login)

	// Public site.
	api.GET("/teachers", teacherHandler.List)
	api.GET("/teachers/:id", teacherHandler.Get)
	api.GET("/news", newsHandler.Feed)
	api.GET("/news/:id", middleware.OptionalJWT(authService), newsHandler.Get)
	api.GET("/settings/enrollment", settingsHandler.Get)
	api.GET("/settings/enrollment/stream", settingsHandler.Stream)

	// Authenticated students.
	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/enrollments", enrollmentHandler.Submit)
	authed.GET("/enrollments/mine", enrollmentHandler.Mine)
	authed.GET("/enrollments/:id", enrollmentHandler.Get)
	authed.PUT("/enrollments/:id", enrollmentHandler.Update)

	// Registrar panel.
	admin := api.Group("/admin")
	admin.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/enrollments", enrollmentHandler.AdminList)
	admin.GET("/enrollments/search", enrollmentHandler.Search)
	admin.GET("/enrollments/stream", enrollmentHandler.Stream)
	admin.GET("/enrollments/archived", enrollmentHandler.ListArchived)
	admin.GET("/enrollments/export/csv", exportHandler.CSV)
	admin.GET("/enrollments/export/pdf", exportHandler.PDF)
	admin.PUT("/enrollments/:id/status", middleware.Audit(auditRepo, "status", "enrollment"), enrollmentHandler.UpdateStatus)
	admin.POST("/enrollments/:id/archive", middleware.Audit(auditRepo, "archive", "enrollment"), enrollmentHandler.Archive)
	admin.DELETE("/enrollments/:id", middleware.Audit(auditRepo, "delete", "enrollment"), enrollmentHandler.Delete)
	admin.POST("/enrollments/batch/status", middleware.Audit(auditRepo, "batch_status", "enrollment"), enrollmentHandler.BatchStatus)
	admin.POST("/enrollments/batch/delete", middleware.Audit(auditRepo, "batch_delete", "enrollment"), enrollmentHandler.BatchDelete)
	admin.GET("/dashboard/stats", dashboardHandler.Stats)
	admin.GET("/dashboard/activity", dashboardHandler.Activity)
	admin.GET("/dashboard/metrics", metricsHandler.Snapshot)
	admin.POST("/teachers", middleware.Audit(auditRepo, "create", "teacher"), teacherHandler.Create)
	admin.PUT("/teachers/:id", middleware.Audit(auditRepo, "update", "teacher"), teacherHandler.Update)
	admin.DELETE("/teachers/:id", middleware.Audit(auditRepo, "delete", "teacher"), teacherHandler.Delete)
	admin.GET("/news", newsHandler.ListAll)
	admin.POST("/news", middleware.Audit(auditRepo, "create", "news"), newsHandler.Create)
	admin.PUT("/news/:id", middleware.Audit(auditRepo, "update", "news"), newsHandler.Update)
	admin.DELETE("/news/:id", middleware.Audit(auditRepo, "delete", "news"), newsHandler.Delete)
	admin.PUT("/settings/enrollment", middleware.Audit(auditRepo, "update", "settings"), settingsHandler.Update)
	admin.GET("/users", authHandler.ListUsers)
	admin.PUT("/users/:id/role", middleware.Audit(auditRepo, "role", "user"), authHandler.SetRole)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
