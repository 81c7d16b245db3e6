package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

const cacheKeyDashboard = "dashboard:admin"

type userCounter interface {
	Count(ctx context.Context) (int, error)
}

type programCounter interface {
	CountActive(ctx context.Context) (total, active int, err error)
}

type enrollmentCounter interface {
	CountByStatus(ctx context.Context) (map[models.EnrollmentStatus]int, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type postCounter interface {
	Count(ctx context.Context) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	RecentLimit int
}

// DashboardService composes the admin landing page.
type DashboardService struct {
	users       userCounter
	programs    programCounter
	enrollments enrollmentCounter
	posts       postCounter
	metrics     *MetricsService
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users       userCounter
	Programs    programCounter
	Enrollments enrollmentCounter
	Posts       postCounter
	Metrics     *MetricsService
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:       params.Users,
		programs:    params.Programs,
		enrollments: params.Enrollments,
		posts:       params.Posts,
		metrics:     params.Metrics,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Summary returns the admin overview and whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context, actor models.Actor) (*models.DashboardSummary, bool, error) {
	if !actor.IsAdmin() {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "only admins can view the dashboard")
	}
	var cached models.DashboardSummary
	if s.cache.Get(ctx, cacheKeyDashboard, &cached) {
		return &cached, true, nil
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
	}
	s.cache.Set(ctx, cacheKeyDashboard, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// Metrics exposes the process-local collector summary.
func (s *DashboardService) Metrics(actor models.Actor) (models.SystemMetrics, error) {
	if !actor.IsAdmin() {
		return models.SystemMetrics{}, appErrors.Clone(appErrors.ErrForbidden, "only admins can view metrics")
	}
	return s.metrics.Snapshot(), nil
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{GeneratedAt: s.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.users.Count(gctx)
		summary.TotalUsers = n
		return err
	})
	g.Go(func() error {
		total, active, err := s.programs.CountActive(gctx)
		summary.TotalPrograms, summary.ActivePrograms = total, active
		return err
	})
	g.Go(func() error {
		counts, err := s.enrollments.CountByStatus(gctx)
		summary.EnrollmentsByStatus = counts
		return err
	})
	g.Go(func() error {
		n, err := s.posts.Count(gctx)
		summary.TotalPosts = n
		return err
	})
	g.Go(func() error {
		recent, _, err := s.enrollments.List(gctx, models.EnrollmentFilter{Page: 1, PageSize: s.cfg.RecentLimit, SortBy: "created_at", SortOrder: "desc"})
		summary.RecentEnrollments = recent
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard aggregation failed", zap.Error(err))
		return nil, err
	}
	return summary, nil
}
