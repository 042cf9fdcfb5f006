package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/nataclub/natation-api/api/swagger"
	"github.com/nataclub/natation-api/internal/handler"
	"github.com/nataclub/natation-api/internal/middleware"
	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/repository"
	"github.com/nataclub/natation-api/internal/service"
	"github.com/nataclub/natation-api/pkg/cache"
	"github.com/nataclub/natation-api/pkg/config"
	"github.com/nataclub/natation-api/pkg/database"
	"github.com/nataclub/natation-api/pkg/jobs"
	"github.com/nataclub/natation-api/pkg/logger"
	corsmiddleware "github.com/nataclub/natation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nataclub/natation-api/pkg/middleware/requestid"
	"github.com/nataclub/natation-api/pkg/pdf"
	"github.com/nataclub/natation-api/pkg/storage"
)

// @title Natation Club API
// @version 1.0.0
// @description Swimming school and club membership platform
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Schedule caching and event publishing degrade to no-ops.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	receiptStore, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Fatal("failed to init receipt storage", zap.Error(err))
	}
	receiptSigner := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)
	receiptRenderer := pdf.NewReceiptRenderer(cfg.Receipts.SchoolName, cfg.Receipts.SchoolAddress)

	location, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logr.Fatal("invalid schedule timezone", zap.String("timezone", cfg.Schedule.Timezone), zap.Error(err))
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	planRepo := repository.NewPlanRepository(db)
	seriesRepo := repository.NewSeriesRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)

	queueCfg := jobs.QueueConfig{
		Workers:    cfg.Queue.Workers,
		BufferSize: cfg.Queue.BufferSize,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		Logger:     logr,
	}
	mailer := service.NewResendMailer(cfg.Notifications)
	notifications := service.NewNotificationService(mailer, cfg.Notifications.Enabled, queueCfg, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notifications.Start(rootCtx)
	defer notifications.Stop()

	metricsService := service.NewMetricsService()
	materializer := service.NewMaterializer(location)
	slotResolver := service.NewSlotResolver()

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "natation-api",
	})
	profileService := service.NewProfileService(profileRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, validate, logr)
	planService := service.NewPlanService(planRepo, validate, logr)
	seriesService := service.NewSeriesService(
		seriesRepo, sessionRepo, courseRepo, enrollmentRepo,
		materializer, cacheRepo, cfg.Schedule.CacheKeyPrefix, cfg.Schedule.CacheTTL,
		validate, logr,
	)
	sessionService := service.NewSessionService(sessionRepo, cacheRepo, cfg.Schedule.CacheKeyPrefix, logr)
	invoiceService := service.NewInvoiceService(invoiceRepo, receiptStore, receiptRenderer, receiptSigner, logr).
		WithMetrics(metricsService).
		WithRenderQueue(queueCfg)
	invoiceService.Start(rootCtx)
	defer invoiceService.Stop()
	enrollmentService := service.NewEnrollmentService(
		enrollmentRepo, sessionRepo, seriesRepo, courseRepo, planRepo, profileRepo,
		slotResolver, notifications, cacheRepo, cfg.Schedule.CacheKeyPrefix,
		validate, logr,
	).WithReceiptJobs(invoiceService)
	membershipService := service.NewMembershipService(membershipRepo, profileRepo, notifications, validate, logr)
	var paymentService *service.PaymentService
	if cfg.Memberships.Enabled {
		paymentService = service.NewPaymentService(
			paymentRepo, invoiceRepo, profileRepo, notifications, cacheRepo,
			membershipService, cfg.Schedule.EventsChannel, validate, logr,
		)
	} else {
		paymentService = service.NewPaymentService(
			paymentRepo, invoiceRepo, profileRepo, notifications, cacheRepo,
			nil, cfg.Schedule.EventsChannel, validate, logr,
		)
	}
	paymentService.WithReceiptJobs(invoiceService)

	authHandler := handler.NewAuthHandler(authService)
	profileHandler := handler.NewProfileHandler(profileService)
	courseHandler := handler.NewCourseHandler(courseService)
	planHandler := handler.NewPlanHandler(planService)
	seriesHandler := handler.NewSeriesHandler(seriesService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, profileService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, profileService)
	paymentHandler := handler.NewPaymentHandler(paymentService, profileService)
	membershipHandler := handler.NewMembershipHandler(membershipService, profileService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	// Receipt downloads authenticate through the signed token itself.
	api.GET("/invoices/receipts/:token", invoiceHandler.DownloadReceipt)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleCoach)

	profiles := protected.Group("/profiles")
	{
		profiles.GET("", staff, profileHandler.List)
		profiles.GET("/me", profileHandler.Me)
		profiles.GET("/:id", profileHandler.Detail)
		profiles.POST("", profileHandler.Create)
		profiles.PUT("/:id", profileHandler.Update)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Detail)
		courses.POST("", adminOnly, courseHandler.Create)
		courses.PUT("/:id", adminOnly, courseHandler.Update)
	}

	plans := protected.Group("/plans")
	{
		plans.GET("", planHandler.List)
		plans.GET("/:id", planHandler.Detail)
		plans.POST("", adminOnly, planHandler.Create)
	}

	series := protected.Group("/series")
	{
		series.GET("", seriesHandler.List)
		series.GET("/:id", seriesHandler.Detail)
		series.POST("", adminOnly, seriesHandler.Create)
		series.PUT("/:id", adminOnly, seriesHandler.Update)
		series.POST("/:id/regenerate", adminOnly, seriesHandler.Regenerate)
		series.DELETE("/:id", adminOnly, seriesHandler.Cancel)
	}

	sessions := protected.Group("/sessions")
	{
		sessions.GET("", sessionHandler.List)
		sessions.GET("/:id", sessionHandler.Detail)
		sessions.DELETE("/:id", adminOnly, sessionHandler.Cancel)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Detail)
		enrollments.POST("/quote", enrollmentHandler.Quote)
		enrollments.POST("", enrollmentHandler.Create)
		enrollments.DELETE("/:id", enrollmentHandler.Cancel)
	}

	invoices := protected.Group("/invoices")
	{
		invoices.GET("", invoiceHandler.List)
		invoices.GET("/:id", invoiceHandler.Detail)
		invoices.POST("/:id/receipt", invoiceHandler.GenerateReceipt)
		invoices.POST("/:id/receipt/unlock", adminOnly, invoiceHandler.UnlockReceipt)
	}

	payments := protected.Group("/payments")
	{
		payments.GET("", paymentHandler.List)
		payments.POST("", paymentHandler.Record)
		payments.POST("/:id/approve", adminOnly, paymentHandler.Approve)
		payments.POST("/:id/reject", adminOnly, paymentHandler.Reject)
	}

	if cfg.Memberships.Enabled {
		memberships := protected.Group("/memberships")
		memberships.GET("", membershipHandler.List)
		memberships.POST("", membershipHandler.Create)
		memberships.DELETE("/:id", adminOnly, membershipHandler.Cancel)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
