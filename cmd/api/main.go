package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-erp-api/api/swagger"
	"github.com/noah-isme/student-erp-api/internal/handler"
	internalmiddleware "github.com/noah-isme/student-erp-api/internal/middleware"
	"github.com/noah-isme/student-erp-api/internal/repository"
	"github.com/noah-isme/student-erp-api/internal/service"
	"github.com/noah-isme/student-erp-api/pkg/cache"
	"github.com/noah-isme/student-erp-api/pkg/config"
	"github.com/noah-isme/student-erp-api/pkg/database"
	"github.com/noah-isme/student-erp-api/pkg/export"
	"github.com/noah-isme/student-erp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-erp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-erp-api/pkg/middleware/requestid"
)

// @title Student ERP API
// @version 1.0.0
// @description Student records, attendance, complaints and performance analytics for schools.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-auth-token

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	mongoClient, mongoDB, err := database.NewMongo(ctx, cfg.Mongo, metrics.StoreMonitor())
	if err != nil {
		logr.Fatal("failed to connect mongo", zap.Error(err))
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(mongoDB)
	attendanceRepo := repository.NewAttendanceRepository(mongoDB)
	complaintRepo := repository.NewComplaintRepository(mongoDB)

	if err := studentRepo.EnsureIndexes(ctx); err != nil {
		logr.Fatal("failed to create student indexes", zap.Error(err))
	}
	if err := attendanceRepo.EnsureIndexes(ctx, cfg.Attendance.UniqueDayIndex); err != nil {
		logr.Fatal("failed to create attendance indexes", zap.Error(err))
	}
	if err := complaintRepo.EnsureIndexes(ctx); err != nil {
		logr.Fatal("failed to create complaint indexes", zap.Error(err))
	}

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"mongo":    func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}

	var (
		cacheRepo    service.CacheRepository
		loginLimiter internalmiddleware.RateLimiter
	)
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled and login limits kept in memory", zap.Error(err))
		loginLimiter = internalmiddleware.NewMemoryRateLimiter(cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow)
	} else {
		defer redisClient.Close()
		redisRepo := repository.NewCacheRepository(redisClient)
		cacheRepo = redisRepo
		checks["redis"] = redisRepo.Ping
		loginLimiter = internalmiddleware.NewRedisRateLimiter(redisClient, "ratelimit:login:", cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow)
	}
	if cfg.Auth.LoginRateLimit <= 0 {
		loginLimiter = nil
	}

	validate := validator.New()

	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && cacheRepo != nil)
	authService := service.NewAuthService(userRepo, validate, logr, metrics, service.AuthConfig{
		AccessTokenSecret:      cfg.JWT.Secret,
		AccessTokenExpiry:      cfg.JWT.Expiration,
		RefreshTokenExpiry:     cfg.JWT.RefreshExpiration,
		Issuer:                 cfg.JWT.Issuer,
		AllowAdminRegistration: cfg.Auth.AllowAdminRegistration,
	})
	performanceService := service.NewPerformanceService(studentRepo, cacheService, cfg.Analytics.CacheTTL, validate, logr)
	studentService := service.NewStudentService(studentRepo, userRepo, performanceService, validate, logr)
	complaintService := service.NewComplaintService(complaintRepo, studentRepo, userRepo, validate, logr)
	reportService := service.NewReportService(performanceService, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	var notifications *service.NotificationService
	if cfg.Notifications.Enabled {
		notifications = service.NewNotificationService(attendanceRepo, studentRepo, userRepo, service.NewLogNotifier(logr), metrics, service.NotificationConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		}, logr)
		notifications.Start(ctx)
		defer notifications.Stop()
	}
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, userRepo, notifications, metrics, validate, logr, cfg.Attendance.Location())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Students:    handler.NewStudentHandler(studentService),
		Attendance:  handler.NewAttendanceHandler(attendanceService),
		Complaints:  handler.NewComplaintHandler(complaintService),
		Performance: handler.NewPerformanceHandler(performanceService, reportService),
		Metrics:     handler.NewMetricsHandler(metrics, checks),
	}, handler.RouteDeps{
		Tokens:       authService,
		Audit:        userRepo,
		LoginLimiter: loginLimiter,
		Logger:       logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
