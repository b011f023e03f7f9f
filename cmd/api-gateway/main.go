package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/BSSE23008/PHD-Research-Tracking-sub000/api/swagger"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/handler"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/middleware"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/repository"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/service"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/cache"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/config"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/database"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/jobs"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/logger"
	corsmiddleware "github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/middleware/requestid"
)

// @title PhD Research Tracking API
// @version 1.0.0
// @description Workflow and approval engine for PhD candidate progression
// @BasePath /api/v1
// @schemes http

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

	catalog, err := service.DefaultStageCatalog()
	if err != nil {
		logr.Sugar().Fatalw("invalid stage catalog", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	formRepo := repository.NewFormTypeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	examRepo := repository.NewExamRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "phd-research-tracking",
	})

	notificationSvc := service.NewNotificationService(notificationRepo, workflowRepo, service.ReminderConfig{
		ThresholdDays: cfg.Workflow.AttentionThresholdDays,
		DedupDays:     cfg.Workflow.ReminderDedupDays,
	}, logr)

	submissionSvc := service.NewSubmissionService(formRepo, submissionRepo, draftRepo, userRepo,
		notificationSvc, userRepo, metrics, validate, logr)

	workflowSvc := service.NewWorkflowService(catalog, workflowRepo, submissionRepo, examRepo,
		cacheSvc, notificationSvc, userRepo, metrics, service.WorkflowConfig{
			AttentionThresholdDays: cfg.Workflow.AttentionThresholdDays,
			StatusCacheTTL:         cfg.Workflow.StatusCacheTTL,
			AnalyticsCacheTTL:      cfg.Analytics.CacheTTL,
		}, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	workflowHandler := handler.NewWorkflowHandler(workflowSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
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

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		protected := auth.Group("")
		protected.Use(middleware.JWT(authSvc))
		protected.POST("/logout", authHandler.Logout)
		protected.POST("/change-password", authHandler.ChangePassword)
		protected.GET("/me", authHandler.Me)
	}

	workflow := api.Group("/workflow")
	workflow.Use(middleware.JWT(authSvc))
	{
		workflow.GET("/status", workflowHandler.Status)
		workflow.GET("/status/:studentId",
			middleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin), string(models.RoleSupervisor), string(models.RoleGEC), "SELF"),
			workflowHandler.StatusFor)
		workflow.POST("/advance", workflowHandler.Advance)
		workflow.PUT("/semester",
			middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
			workflowHandler.UpdateSemester)

		if cfg.Analytics.Enabled {
			workflow.GET("/analytics", workflowHandler.Analytics)
		}
		workflow.GET("/attention", workflowHandler.Attention)
		if cfg.Exports.Enabled {
			workflow.GET("/report/export", workflowHandler.ExportReport)
		}

		workflow.GET("/forms", submissionHandler.Forms)
		workflow.GET("/prerequisites/:formCode", submissionHandler.Prerequisites)
		workflow.GET("/submissions", submissionHandler.List)
		workflow.POST("/submissions", submissionHandler.Submit)
		workflow.GET("/submissions/:id", submissionHandler.Get)
		workflow.POST("/submissions/:id/decision", submissionHandler.Decide)
		workflow.GET("/drafts/:formCode", submissionHandler.GetDraft)
		workflow.PUT("/drafts/:formCode", submissionHandler.SaveDraft)
	}

	notifications := api.Group("/notifications")
	notifications.Use(middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reminderQueue := jobs.NewQueue("stage-reminders", func(ctx context.Context, job jobs.Job) error {
		return notificationSvc.RemindStaleStages(ctx)
	}, jobs.QueueConfig{
		Workers: cfg.Workflow.ReminderWorkers,
		Logger:  logr,
	})
	reminderQueue.Start(rootCtx)
	defer reminderQueue.Stop()

	go func() {
		ticker := time.NewTicker(cfg.Workflow.ReminderInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				job := jobs.Job{ID: uuid.NewString(), Type: "reminder-sweep"}
				if err := reminderQueue.Enqueue(job); err != nil {
					logr.Sugar().Warnw("failed to enqueue reminder sweep", "error", err)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
