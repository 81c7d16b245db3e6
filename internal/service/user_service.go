package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/internal/repository"
	"github.com/noah-isme/camp-booking-api/pkg/database"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type experienceSetter interface {
	SetExperience(ctx context.Context, accountID string, value int) (*models.LevelChange, error)
}

type accountDeleter interface {
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type enrollmentPurger interface {
	DeleteByUser(ctx context.Context, exec sqlx.ExtContext, userID string) ([]repository.HeldSeat, error)
}

type seatReleaser interface {
	ReleaseSeat(ctx context.Context, exec sqlx.ExtContext, programID string) error
}

// AccountRemover deletes an account with everything it owns. Enrollments go
// first so each held seat is handed back; posts, comments, likes, badges and
// sessions follow through foreign key cascades. All of it commits together.
type AccountRemover struct {
	users       accountDeleter
	enrollments enrollmentPurger
	seats       seatReleaser
	tx          txRunner
	cache       *CacheService
	logger      *zap.Logger
}

// NewAccountRemover constructs AccountRemover.
func NewAccountRemover(users accountDeleter, enrollments enrollmentPurger, seats seatReleaser, tx txRunner, cache *CacheService, logger *zap.Logger) *AccountRemover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountRemover{users: users, enrollments: enrollments, seats: seats, tx: tx, cache: cache, logger: logger}
}

// Remove deletes userID.
func (r *AccountRemover) Remove(ctx context.Context, userID string) error {
	released := 0
	err := r.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		held, err := r.enrollments.DeleteByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		for _, seat := range held {
			if !seat.CapacityHeld {
				continue
			}
			if err := r.seats.ReleaseSeat(ctx, tx, seat.ProgramID); err != nil {
				return err
			}
			released++
		}
		return r.users.Delete(ctx, tx, userID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete account")
	}

	// Likes on other authors' posts vanished with the account.
	r.cache.Invalidate(ctx, authorStatsKey("*"))
	if released > 0 {
		r.cache.Invalidate(ctx, cacheKeyPrograms+"*")
	}
	r.logger.Info("account deleted", zap.String("user_id", userID), zap.Int("seats_released", released))
	return nil
}

// UserService handles admin account management.
type UserService struct {
	repo      userRepository
	ledger    experienceSetter
	remover   *AccountRemover
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, ledger experienceSetter, remover *AccountRemover, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, ledger: ledger, remover: remover, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// CreateAdmin provisions an admin account. It backs the command line tool;
// the public API never creates admins.
func (s *UserService) CreateAdmin(ctx context.Context, email, name, password string) (*models.User, error) {
	req := models.RegisterRequest{Email: email, Name: name, Password: password}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admin details")
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Email:        strings.ToLower(email),
		Name:         name,
		Role:         models.RoleAdmin,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.logger.Info("admin account created", zap.String("user_id", user.ID))
	return user, nil
}

// Update edits another account's profile and role.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req dto.AdminUpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can edit accounts")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Role != nil && *req.Role != models.RoleAdmin && user.ID == actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admins cannot demote themselves")
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	s.logger.Info("account updated", zap.String("user_id", id), zap.String("admin_id", actor.ID))
	return user, nil
}

// SetExperience is the admin experience override.
func (s *UserService) SetExperience(ctx context.Context, actor models.Actor, id string, req dto.SetExperienceRequest) (*models.LevelChange, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid experience payload")
	}
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can override experience")
	}
	return s.ledger.SetExperience(ctx, id, req.Experience)
}

// Delete removes another account with everything it owns.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete accounts")
	}
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "admins cannot delete their own account")
	}
	return s.remover.Remove(ctx, id)
}
