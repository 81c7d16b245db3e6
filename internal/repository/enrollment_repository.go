package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/camp-booking-api/internal/models"
)

const enrollmentColumns = `e.id, e.user_id, e.program_id, e.status, e.capacity_held,
e.student_name, e.student_age, e.student_gender, e.student_grade, e.student_school, e.student_english_level,
e.student_allergies, e.student_medical_notes, e.emergency_name, e.emergency_relationship, e.emergency_phone,
e.payment_status, e.payment_method, e.notes, e.created_at, e.updated_at`

// HeldSeat identifies a program seat freed by a bulk delete.
type HeldSeat struct {
	ProgramID    string `db:"program_id"`
	CapacityHeld bool   `db:"capacity_held"`
}

// EnrollmentRepository handles persistence of enrollments. Status writes
// are guarded by the expected prior status so a concurrent transition
// cannot be overwritten.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with program and owner details.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN programs p ON p.id = e.program_id
JOIN users u ON u.id = e.user_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("e.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":    "e.created_at",
		"program_start": "p.start_date",
		"student_name":  "e.student_name",
		"status":        "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s, p.title AS program_title, p.start_date AS program_start, u.name AS user_name, u.email AS user_email
%s ORDER BY %s %s LIMIT %d OFFSET %d`, enrollmentColumns, base, orderBy, order, limit, offset)

	enrollments := make([]models.EnrollmentDetail, 0)
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindDetail returns one enrollment joined with its program and owner.
func (r *EnrollmentRepository) FindDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := "SELECT " + enrollmentColumns + `, p.title AS program_title, p.start_date AS program_start, u.name AS user_name, u.email AS user_email
FROM enrollments e
JOIN programs p ON p.id = e.program_id
JOIN users u ON u.id = e.user_id
WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment detail: %w", err)
	}
	return &detail, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return r.find(ctx, nil, id, false)
}

// FindForUpdate locks the row for the rest of the transaction.
func (r *EnrollmentRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	return r.find(ctx, exec, id, true)
}

func (r *EnrollmentRepository) find(ctx context.Context, exec sqlx.ExtContext, id string, lock bool) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments e WHERE e.id = $1"
	if lock {
		query += " FOR UPDATE"
	}
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// WishlistExists reports whether the user already has the program on their wishlist.
func (r *EnrollmentRepository) WishlistExists(ctx context.Context, exec sqlx.ExtContext, userID, programID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND program_id = $2 AND status = 'wishlist')`
	var exists bool
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &exists, query, userID, programID); err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return exists, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.PaymentStatus == "" {
		e.PaymentStatus = models.PaymentPending
	}
	const query = `INSERT INTO enrollments (id, user_id, program_id, status, capacity_held,
student_name, student_age, student_gender, student_grade, student_school, student_english_level,
student_allergies, student_medical_notes, emergency_name, emergency_relationship, emergency_phone,
payment_status, payment_method, notes, created_at, updated_at)
VALUES (:id, :user_id, :program_id, :status, :capacity_held,
:student_name, :student_age, :student_gender, :student_grade, :student_school, :student_english_level,
:student_allergies, :student_medical_notes, :emergency_name, :emergency_relationship, :emergency_phone,
:payment_status, :payment_method, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, e); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Activate moves a wishlist row to pending with its student details.
func (r *EnrollmentRepository) Activate(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) (bool, error) {
	e.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = 'pending',
student_name = :student_name, student_age = :student_age, student_gender = :student_gender, student_grade = :student_grade,
student_school = :student_school, student_english_level = :student_english_level, student_allergies = :student_allergies,
student_medical_notes = :student_medical_notes, emergency_name = :emergency_name,
emergency_relationship = :emergency_relationship, emergency_phone = :emergency_phone, notes = :notes, updated_at = :updated_at
WHERE id = :id AND status = 'wishlist'`
	res, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, e)
	if err != nil {
		return false, fmt.Errorf("activate enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activate enrollment rows: %w", err)
	}
	return n == 1, nil
}

// Transition updates status and the seat flag when the row is still in from.
func (r *EnrollmentRepository) Transition(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.EnrollmentStatus, capacityHeld bool) (bool, error) {
	const query = `UPDATE enrollments SET status = $3, capacity_held = $4, updated_at = $5 WHERE id = $1 AND status = $2`
	res, err := pick(r.db, exec).ExecContext(ctx, query, id, from, to, capacityHeld, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("transition enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition enrollment rows: %w", err)
	}
	return n == 1, nil
}

// Delete hard-deletes the row and reports whether it existed.
func (r *EnrollmentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	res, err := pick(r.db, exec).ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment rows: %w", err)
	}
	return n == 1, nil
}

// DeleteByUser removes all of a user's enrollments and returns what they held.
func (r *EnrollmentRepository) DeleteByUser(ctx context.Context, exec sqlx.ExtContext, userID string) ([]HeldSeat, error) {
	const query = `DELETE FROM enrollments WHERE user_id = $1 RETURNING program_id, capacity_held`
	seats := make([]HeldSeat, 0)
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &seats, query, userID); err != nil {
		return nil, fmt.Errorf("delete user enrollments: %w", err)
	}
	return seats, nil
}

// UpdatePayment records payment state and admin notes.
func (r *EnrollmentRepository) UpdatePayment(ctx context.Context, id string, status models.PaymentStatus, method, notes string) error {
	const query = `UPDATE enrollments SET payment_status = $2, payment_method = $3, notes = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, method, notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus groups enrollments by status.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context) (map[models.EnrollmentStatus]int, error) {
	var rows []struct {
		Status models.EnrollmentStatus `db:"status"`
		Total  int                     `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS total FROM enrollments GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	counts := make(map[models.EnrollmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
