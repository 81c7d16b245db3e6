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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/handler"
	"github.com/noah-isme/camp-booking-api/internal/repository"
	"github.com/noah-isme/camp-booking-api/internal/service"
	"github.com/noah-isme/camp-booking-api/pkg/cache"
	"github.com/noah-isme/camp-booking-api/pkg/config"
	"github.com/noah-isme/camp-booking-api/pkg/database"
	"github.com/noah-isme/camp-booking-api/pkg/jobs"
	"github.com/noah-isme/camp-booking-api/pkg/logger"
	"github.com/noah-isme/camp-booking-api/pkg/notify"
	"github.com/noah-isme/camp-booking-api/pkg/storage"
)

// @title Camp Booking API
// @version 1.0.0
// @description Camp catalog, enrollments and parent community
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ProgramTTL, logr, cfg.Cache.Enabled)

	mux := jobs.NewMux()
	queue := jobs.NewQueue("background", mux.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})

	userRepo := repository.NewUserRepository(db)
	programRepo := repository.NewProgramRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	txRunner := repository.NewTxRunner(db)

	uploads, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.Dir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	ledgerSvc := service.NewLedgerService(ledgerRepo, txRunner, metricsSvc, logr)
	remover := service.NewAccountRemover(userRepo, enrollmentRepo, programRepo, txRunner, cacheSvc, logr)
	authSvc := service.NewAuthService(userRepo, remover, queue, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.JWT.ResetExpiration,
		Issuer:             cfg.JWT.Issuer,
		ResetURL:           cfg.BaseURL + "/reset-password",
	})
	userSvc := service.NewUserService(userRepo, ledgerSvc, remover, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, programRepo, txRunner, queue, metricsSvc, validate, logr)
	communitySvc := service.NewCommunityService(postRepo, commentRepo, ledgerSvc, ledgerRepo, cacheSvc, uploads, queue, cfg.Uploads, validate, logr)
	notificationSvc := service.NewNotificationService(enrollmentRepo, notify.NewMailer(cfg.Mail, logr), notify.NewAlerter(cfg.Slack), cfg.Mail.AdminInbox, logr)
	contactSvc := service.NewContactService(queue, validate, logr)

	var programSvc *service.ProgramService
	if cfg.Snapshot.Enabled {
		fallback, err := repository.NewFallbackProgramReader(programRepo, logr)
		if err != nil {
			logr.Fatal("failed to load program snapshot", zap.Error(err))
		}
		programSvc = service.NewProgramService(fallback, programRepo, fallback, cacheSvc, validate, logr)
	} else {
		programSvc = service.NewProgramService(programRepo, programRepo, nil, cacheSvc, validate, logr)
	}

	exportSvc := service.NewExportService(userRepo, programRepo, enrollmentRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Users:       userRepo,
		Programs:    programRepo,
		Enrollments: enrollmentRepo,
		Posts:       postRepo,
		Metrics:     metricsSvc,
		Cache:       cacheSvc,
		Logger:      logr,
	})

	notificationSvc.Register(mux)
	communitySvc.Register(mux)
	queue.Start(ctx)
	defer queue.Stop()

	go sweepExports(ctx, exportSvc, cfg.Exports.SignedURLTTL, logr)

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	r := newRouter(cfg, logr, routerDeps{
		auth:        authSvc,
		metrics:     metricsSvc,
		authH:       handler.NewAuthHandler(authSvc, ledgerSvc),
		programH:    handler.NewProgramHandler(programSvc),
		enrollmentH: handler.NewEnrollmentHandler(enrollmentSvc),
		communityH:  handler.NewCommunityHandler(communitySvc),
		userH:       handler.NewUserHandler(userSvc),
		dashboardH:  handler.NewDashboardHandler(dashboardSvc),
		exportH:     handler.NewExportHandler(exportSvc),
		contactH:    handler.NewContactHandler(contactSvc),
		metricsH:    handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// sweepExports removes generated exports once their links have expired.
func sweepExports(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(ttl)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
