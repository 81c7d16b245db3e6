package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

// Experience rewards for community actions.
const (
	PointsPostCreated    = 50
	PointsCommentCreated = 10
	PointsLikeReceived   = 5
)

const (
	defaultBadgeLimit = 20
	maxBadgeLimit     = 100
)

// txRunner runs fn in one database transaction.
type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx sqlx.ExtContext) error) error
}

type ledgerStore interface {
	AddExperience(ctx context.Context, exec sqlx.ExtContext, userID string, points int, at time.Time) (int, int, error)
	PromoteLevel(ctx context.Context, exec sqlx.ExtContext, userID string, level int, title string, at time.Time) (bool, error)
	LockLevel(ctx context.Context, exec sqlx.ExtContext, userID string) (int, error)
	SetExperience(ctx context.Context, exec sqlx.ExtContext, userID string, exp, level int, title string, at time.Time) error
	InsertBadge(ctx context.Context, exec sqlx.ExtContext, badge *models.Badge) error
	ListBadges(ctx context.Context, userID string, limit int) ([]models.Badge, error)
	Experience(ctx context.Context, userID string) (int, error)
}

// LedgerService is the sole writer of experience, level and title.
type LedgerService struct {
	store   ledgerStore
	tx      txRunner
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(store ledgerStore, tx txRunner, metrics *MetricsService, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{store: store, tx: tx, metrics: metrics, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// GrantExperience adds points to an account and promotes it when the new total
// crosses a level boundary. The increment and the promotion happen in one
// transaction; of any number of concurrent grants crossing the same boundary
// exactly one observes LevelUp and appends the badge.
func (s *LedgerService) GrantExperience(ctx context.Context, accountID string, points int, reason string) (*models.LevelChange, error) {
	if points <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "points must be positive")
	}

	var change models.LevelChange
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		now := s.now()
		start := time.Now()
		exp, _, err := s.store.AddExperience(ctx, tx, accountID, points, now)
		s.metrics.ObserveDBQuery("users.add_experience", time.Since(start))
		if err != nil {
			return err
		}

		level := models.LevelFor(exp)
		title := models.TitleFor(level)
		change = models.LevelChange{NewLevel: level, NewTitle: title, Experience: exp}

		start = time.Now()
		promoted, err := s.store.PromoteLevel(ctx, tx, accountID, level, title, now)
		s.metrics.ObserveDBQuery("users.promote_level", time.Since(start))
		if err != nil {
			return err
		}
		if !promoted {
			return nil
		}
		change.LevelUp = true
		name, description := models.BadgeFor(level)
		return s.store.InsertBadge(ctx, tx, &models.Badge{UserID: accountID, Name: name, Description: description, EarnedAt: now})
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant experience")
	}

	s.metrics.RecordExperience(reason, points, &change)
	if change.LevelUp {
		s.logger.Info("account levelled up",
			zap.String("account_id", accountID),
			zap.Int("level", change.NewLevel),
			zap.String("reason", reason),
		)
	}
	return &change, nil
}

// SetExperience overwrites an account's experience. Level and title are
// recomputed from the new value; badges already earned stay. An override that
// lifts the account past its stored level appends the badge for the new level.
func (s *LedgerService) SetExperience(ctx context.Context, accountID string, value int) (*models.LevelChange, error) {
	if value < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "experience cannot be negative")
	}

	level := models.LevelFor(value)
	title := models.TitleFor(level)
	change := models.LevelChange{NewLevel: level, NewTitle: title, Experience: value}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		now := s.now()
		previous, err := s.store.LockLevel(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if err := s.store.SetExperience(ctx, tx, accountID, value, level, title, now); err != nil {
			return err
		}
		if level <= previous {
			return nil
		}
		change.LevelUp = true
		name, description := models.BadgeFor(level)
		return s.store.InsertBadge(ctx, tx, &models.Badge{UserID: accountID, Name: name, Description: description, EarnedAt: now})
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set experience")
	}

	s.logger.Info("experience overridden", zap.String("account_id", accountID), zap.Int("experience", value))
	return &change, nil
}

// LevelProgress reports the account's position within its level.
func (s *LedgerService) LevelProgress(ctx context.Context, accountID string) (*models.LevelProgress, error) {
	exp, err := s.store.Experience(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load experience")
	}
	progress := models.LevelProgressFor(exp)
	return &progress, nil
}

// Badges returns the most recent badges, newest first.
func (s *LedgerService) Badges(ctx context.Context, accountID string, limit int) ([]models.Badge, error) {
	if limit <= 0 {
		limit = defaultBadgeLimit
	}
	if limit > maxBadgeLimit {
		limit = maxBadgeLimit
	}
	badges, err := s.store.ListBadges(ctx, accountID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list badges")
	}
	return badges, nil
}
