package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/pkg/database"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	WishlistExists(ctx context.Context, exec sqlx.ExtContext, userID, programID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) error
	Activate(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (bool, error)
	Transition(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.EnrollmentStatus, capacityHeld bool) (bool, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
	UpdatePayment(ctx context.Context, id string, status models.PaymentStatus, method, notes string) error
}

type seatStore interface {
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Program, error)
	ReserveSeat(ctx context.Context, exec sqlx.ExtContext, programID string) (bool, error)
	ReleaseSeat(ctx context.Context, exec sqlx.ExtContext, programID string) error
	ReconcileSeats(ctx context.Context) ([]string, error)
}

type jobSubmitter interface {
	Submit(jobType string, payload interface{}) error
}

// EnrollmentService runs the wishlist and enrollment lifecycle. A program's
// enrolled_count always equals the number of its records holding a seat;
// seats are taken by direct enrollment or approval and given back exactly
// once when a holding record is cancelled or deleted.
type EnrollmentService struct {
	repo      enrollmentStore
	programs  seatStore
	tx        txRunner
	jobs      jobSubmitter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentStore, programs seatStore, tx txRunner, jobs jobSubmitter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, programs: programs, tx: tx, jobs: jobs, metrics: metrics, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, pagination(filter.Page, filter.PageSize, total), nil
}

// ListMine lists the actor's own records, wishlist included.
func (s *EnrollmentService) ListMine(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	filter.UserID = actor.ID
	return s.List(ctx, filter)
}

// Get returns a record visible to its owner or an admin.
func (s *EnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !actor.Owns(enrollment.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another account")
	}
	return enrollment, nil
}

// AddToWishlist saves a program for later. A user holds at most one wishlist
// record per program.
func (s *EnrollmentService) AddToWishlist(ctx context.Context, actor models.Actor, req dto.WishlistRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid wishlist payload")
	}

	enrollment := &models.Enrollment{
		UserID:    actor.ID,
		ProgramID: req.ProgramID,
		Status:    models.EnrollmentStatusWishlist,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		if _, err := s.openProgram(ctx, tx, req.ProgramID); err != nil {
			return err
		}
		exists, err := s.repo.WishlistExists(ctx, tx, actor.ID, req.ProgramID)
		if err != nil {
			return err
		}
		if exists {
			return appErrors.Clone(appErrors.ErrDuplicate, "program is already in your wishlist")
		}
		return s.repo.Create(ctx, tx, enrollment)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			err = appErrors.Clone(appErrors.ErrDuplicate, "program is already in your wishlist")
		}
		return nil, s.fail(models.EventAddWishlist, err, "failed to add to wishlist", false)
	}
	s.metrics.RecordTransition(models.EventAddWishlist, "ok")
	return enrollment, nil
}

// RemoveFromWishlist deletes a wishlist record. Capacity is never involved.
func (s *EnrollmentService) RemoveFromWishlist(ctx context.Context, actor models.Actor, id string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		enrollment, err := s.lockOwned(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		item, ok := enrollment.Record().(models.WishlistItem)
		if !ok {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only wishlist items can be removed from the wishlist")
		}
		deleted, err := s.repo.Delete(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil
	})
	return s.fail(models.EventRemoveWishlist, err, "failed to remove wishlist item", true)
}

// DirectEnroll creates a pending enrollment and reserves its seat in the same
// transaction. A full program yields CapacityError and writes nothing.
func (s *EnrollmentService) DirectEnroll(ctx context.Context, actor models.Actor, req dto.DirectEnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment := &models.Enrollment{
		UserID:           actor.ID,
		ProgramID:        req.ProgramID,
		Status:           models.EnrollmentStatusPending,
		CapacityHeld:     true,
		StudentInfo:      req.Student,
		EmergencyContact: req.EmergencyContact,
		Notes:            req.Notes,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		if _, err := s.openProgram(ctx, tx, req.ProgramID); err != nil {
			return err
		}
		reserved, err := s.reserveSeat(ctx, tx, req.ProgramID)
		if err != nil {
			return err
		}
		if !reserved {
			return appErrors.Clone(appErrors.ErrCapacity, "program is full")
		}
		return s.repo.Create(ctx, tx, enrollment)
	})
	if err != nil {
		return nil, s.fail(models.EventDirectEnroll, err, "failed to create enrollment", false)
	}

	s.metrics.RecordTransition(models.EventDirectEnroll, "ok")
	s.enqueue(JobEnrollmentCreated, EnrollmentNotice{EnrollmentID: enrollment.ID})
	return enrollment, nil
}

// ConvertToEnrollment turns a wishlist record into a pending enrollment with
// the student's details. The program must have room at this moment; the seat
// itself is taken on approval.
func (s *EnrollmentService) ConvertToEnrollment(ctx context.Context, actor models.Actor, id string, req dto.ConvertWishlistRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	var enrollment *models.Enrollment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		current, err := s.lockOwned(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		item, ok := current.Record().(models.WishlistItem)
		if !ok {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only wishlist items can be converted")
		}
		next, _ := models.NextStatus(current.Status, models.EventConvert)
		program, err := s.openProgram(ctx, tx, item.ProgramID)
		if err != nil {
			return err
		}
		if program.IsFull() {
			return appErrors.Clone(appErrors.ErrCapacity, "program is full")
		}

		current.StudentInfo = req.Student
		current.EmergencyContact = req.EmergencyContact
		current.Notes = req.Notes
		activated, err := s.repo.Activate(ctx, tx, current)
		if err != nil {
			return err
		}
		if !activated {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "wishlist item changed concurrently")
		}
		current.Status = next
		enrollment = current
		return nil
	})
	if err != nil {
		return nil, s.fail(models.EventConvert, err, "failed to convert wishlist item", true)
	}

	s.metrics.RecordTransition(models.EventConvert, "ok")
	s.enqueue(JobEnrollmentCreated, EnrollmentNotice{EnrollmentID: enrollment.ID})
	return enrollment, nil
}

// Approve confirms a pending enrollment, taking its seat if it does not hold one.
func (s *EnrollmentService) Approve(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can approve enrollments")
	}

	var enrollment *models.Enrollment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		current, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		next, ok := models.NextStatus(current.Status, models.EventApprove)
		if !ok {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending enrollments can be approved")
		}
		if !current.CapacityHeld {
			reserved, err := s.reserveSeat(ctx, tx, current.ProgramID)
			if err != nil {
				return err
			}
			if !reserved {
				return appErrors.Clone(appErrors.ErrCapacity, "program is full")
			}
		}
		if err := s.transition(ctx, tx, current, next, true); err != nil {
			return err
		}
		enrollment = current
		return nil
	})
	if err != nil {
		return nil, s.fail(models.EventApprove, err, "failed to approve enrollment", true)
	}

	s.metrics.RecordTransition(models.EventApprove, "ok")
	s.enqueue(JobEnrollmentConfirmed, EnrollmentNotice{EnrollmentID: enrollment.ID})
	return enrollment, nil
}

// MarkCompleted closes a confirmed enrollment. The seat stays counted.
func (s *EnrollmentService) MarkCompleted(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can complete enrollments")
	}

	var enrollment *models.Enrollment
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		current, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		next, ok := models.NextStatus(current.Status, models.EventComplete)
		if !ok {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only confirmed enrollments can be completed")
		}
		if err := s.transition(ctx, tx, current, next, current.CapacityHeld); err != nil {
			return err
		}
		enrollment = current
		return nil
	})
	if err != nil {
		return nil, s.fail(models.EventComplete, err, "failed to complete enrollment", true)
	}
	s.metrics.RecordTransition(models.EventComplete, "ok")
	return enrollment, nil
}

// Cancel removes any record that is not completed, giving back its seat if
// it held one.
func (s *EnrollmentService) Cancel(ctx context.Context, actor models.Actor, id string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		current, err := s.lockOwned(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if _, ok := models.NextStatus(current.Status, models.EventCancel); !ok {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "completed enrollments cannot be cancelled")
		}
		return s.delete(ctx, tx, current)
	})
	return s.fail(models.EventCancel, err, "failed to cancel enrollment", true)
}

// AdminDelete force-deletes any record, completed ones included.
func (s *EnrollmentService) AdminDelete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete enrollments")
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx sqlx.ExtContext) error {
		current, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.delete(ctx, tx, current)
	})
	if err != nil {
		return s.fail(models.EventCancel, err, "failed to delete enrollment", true)
	}
	s.logger.Info("enrollment force-deleted", zap.String("enrollment_id", id), zap.String("admin_id", actor.ID))
	return nil
}

// UpdateStatus is the admin status control; it routes to the matching event.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req dto.UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can change enrollment status")
	}
	switch req.Status {
	case models.EnrollmentStatusConfirmed:
		return s.Approve(ctx, actor, id)
	case models.EnrollmentStatusCompleted:
		return s.MarkCompleted(ctx, actor, id)
	default:
		if err := s.Cancel(ctx, actor, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

// UpdatePayment records payment state. It never touches status or seats.
func (s *EnrollmentService) UpdatePayment(ctx context.Context, actor models.Actor, id string, req dto.UpdatePaymentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can update payments")
	}
	if err := s.repo.UpdatePayment(ctx, id, req.PaymentStatus, req.PaymentMethod, req.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
	return s.Get(ctx, actor, id)
}

// ReconcileCapacity rewrites every program's enrolled_count from the records
// holding seats and returns the programs that had drifted.
func (s *EnrollmentService) ReconcileCapacity(ctx context.Context) ([]string, error) {
	ids, err := s.programs.ReconcileSeats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile capacity")
	}
	if len(ids) > 0 {
		s.logger.Warn("enrolled counts corrected", zap.Strings("program_ids", ids))
	}
	return ids, nil
}

func (s *EnrollmentService) openProgram(ctx context.Context, tx sqlx.ExtContext, programID string) (*models.Program, error) {
	program, err := s.programs.FindForUpdate(ctx, tx, programID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, err
	}
	if !program.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "program is not open for enrollment")
	}
	return program, nil
}

func (s *EnrollmentService) lock(ctx context.Context, tx sqlx.ExtContext, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) lockOwned(ctx context.Context, tx sqlx.ExtContext, actor models.Actor, id string) (*models.Enrollment, error) {
	enrollment, err := s.lock(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(enrollment.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another account")
	}
	return enrollment, nil
}

func (s *EnrollmentService) transition(ctx context.Context, tx sqlx.ExtContext, e *models.Enrollment, to models.EnrollmentStatus, held bool) error {
	ok, err := s.repo.Transition(ctx, tx, e.ID, e.Status, to, held)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment changed concurrently")
	}
	e.Status = to
	e.CapacityHeld = held
	return nil
}

func (s *EnrollmentService) delete(ctx context.Context, tx sqlx.ExtContext, e *models.Enrollment) error {
	deleted, err := s.repo.Delete(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if active, ok := e.Record().(models.ActiveEnrollment); ok && active.CapacityHeld {
		return s.releaseSeat(ctx, tx, active.ProgramID)
	}
	return nil
}

func (s *EnrollmentService) reserveSeat(ctx context.Context, tx sqlx.ExtContext, programID string) (bool, error) {
	start := time.Now()
	reserved, err := s.programs.ReserveSeat(ctx, tx, programID)
	s.metrics.ObserveDBQuery("programs.reserve_seat", time.Since(start))
	return reserved, err
}

func (s *EnrollmentService) releaseSeat(ctx context.Context, tx sqlx.ExtContext, programID string) error {
	start := time.Now()
	err := s.programs.ReleaseSeat(ctx, tx, programID)
	s.metrics.ObserveDBQuery("programs.release_seat", time.Since(start))
	return err
}

// fail maps a transaction error to the API taxonomy and counts the outcome.
// With record set, nil passes through and is counted as a success.
func (s *EnrollmentService) fail(event models.EnrollmentEvent, err error, message string, record bool) error {
	if err == nil {
		if record {
			s.metrics.RecordTransition(event, "ok")
		}
		return nil
	}
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		appErr = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
	s.metrics.RecordTransition(event, appErr.Code)
	return appErr
}

func (s *EnrollmentService) enqueue(jobType string, payload interface{}) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Submit(jobType, payload); err != nil {
		s.metrics.RecordJobFailure(jobType)
		s.logger.Warn("failed to enqueue notification", zap.String("type", jobType), zap.Error(err))
	}
}

func pagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
