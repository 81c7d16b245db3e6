// Command campctl runs maintenance tasks against the camp booking database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/repository"
	"github.com/noah-isme/camp-booking-api/internal/service"
	"github.com/noah-isme/camp-booking-api/pkg/cache"
	"github.com/noah-isme/camp-booking-api/pkg/config"
	"github.com/noah-isme/camp-booking-api/pkg/database"
	"github.com/noah-isme/camp-booking-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	root := newRootCmd(wire(cfg, db, logr))
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// wire builds the services the maintenance commands need. Redis is optional
// here; when it is down the commands still run and cached entries expire on
// their own.
func wire(cfg *config.Config, db *sqlx.DB, logr *zap.Logger) *cli {
	metrics := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		if client, err := cache.NewRedis(cfg.Redis); err == nil {
			cacheRepo = repository.NewCacheRepository(client)
		} else {
			logr.Warn("redis unavailable, cache invalidation skipped", zap.Error(err))
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ProgramTTL, logr, cfg.Cache.Enabled)

	validate := validator.New()
	users := repository.NewUserRepository(db)
	programs := repository.NewProgramRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	tx := repository.NewTxRunner(db)

	ledger := service.NewLedgerService(ledgerRepo, tx, metrics, logr)
	remover := service.NewAccountRemover(users, enrollments, programs, tx, cacheSvc, logr)
	community := service.NewCommunityService(
		repository.NewPostRepository(db),
		repository.NewCommentRepository(db),
		ledger, ledgerRepo, cacheSvc, nil, nil, cfg.Uploads, validate, logr,
	)

	return &cli{
		db:          db.DB,
		admins:      service.NewUserService(users, ledger, remover, validate, logr),
		likes:       community,
		stats:       community,
		enrollments: service.NewEnrollmentService(enrollments, programs, tx, nil, metrics, validate, logr),
		out:         os.Stdout,
	}
}
