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

const programColumns = `id, title, description, category, location_name, city, country, age_min, age_max,
start_date, end_date, original_price, discount_percent, price, currency, capacity, enrolled_count,
features, photos, featured, is_active, sort_order, created_at, updated_at`

// ProgramRepository persists the camp catalog and owns the seat counter primitives.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs ordered by sort_order then start date.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	base := `FROM programs WHERE 1=1`
	var args []interface{}

	if !filter.IncludeDraft {
		base += " AND is_active = TRUE"
	}
	if filter.Category != "" {
		base += fmt.Sprintf(" AND category = $%d", len(args)+1)
		args = append(args, filter.Category)
	}
	if filter.City != "" {
		base += fmt.Sprintf(" AND LOWER(city) = LOWER($%d)", len(args)+1)
		args = append(args, filter.City)
	}
	if filter.Featured != nil {
		base += fmt.Sprintf(" AND featured = $%d", len(args)+1)
		args = append(args, *filter.Featured)
	}
	if filter.Age != nil {
		base += fmt.Sprintf(" AND age_min <= $%d AND age_max >= $%d", len(args)+1, len(args)+1)
		args = append(args, *filter.Age)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY sort_order ASC, start_date ASC LIMIT %d OFFSET %d", programColumns, base, limit, offset)

	programs := make([]models.Program, 0)
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// ListAll returns every program, including inactive ones, for exports and snapshots.
func (r *ProgramRepository) ListAll(ctx context.Context) ([]models.Program, error) {
	query := "SELECT " + programColumns + " FROM programs ORDER BY sort_order ASC, start_date ASC"
	programs := make([]models.Program, 0)
	if err := r.db.SelectContext(ctx, &programs, query); err != nil {
		return nil, fmt.Errorf("list all programs: %w", err)
	}
	return programs, nil
}

// FindByID returns a program by identifier.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	return r.find(ctx, nil, id, false)
}

// FindForUpdate reads a program under a row lock inside exec.
func (r *ProgramRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Program, error) {
	return r.find(ctx, exec, id, true)
}

func (r *ProgramRepository) find(ctx context.Context, exec sqlx.ExtContext, id string, lock bool) (*models.Program, error) {
	query := "SELECT " + programColumns + " FROM programs WHERE id = $1"
	if lock {
		query += " FOR UPDATE"
	}
	var program models.Program
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &program, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find program: %w", err)
	}
	return &program, nil
}

// Create inserts a program with an empty seat counter.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now
	program.EnrolledCount = 0

	const query = `INSERT INTO programs (id, title, description, category, location_name, city, country, age_min, age_max,
start_date, end_date, original_price, discount_percent, price, currency, capacity, enrolled_count, features, photos,
featured, is_active, sort_order, created_at, updated_at)
VALUES (:id, :title, :description, :category, :location_name, :city, :country, :age_min, :age_max,
:start_date, :end_date, :original_price, :discount_percent, :price, :currency, :capacity, :enrolled_count, :features, :photos,
:featured, :is_active, :sort_order, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update writes catalog fields. enrolled_count is deliberately absent.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET title = :title, description = :description, category = :category,
location_name = :location_name, city = :city, country = :country, age_min = :age_min, age_max = :age_max,
start_date = :start_date, end_date = :end_date, original_price = :original_price, discount_percent = :discount_percent,
price = :price, currency = :currency, capacity = :capacity, features = :features, photos = :photos,
featured = :featured, is_active = :is_active, sort_order = :sort_order, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, program)
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a program. It fails on the foreign key while enrollments reference it.
func (r *ProgramRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReserveSeat increments enrolled_count only while it is below capacity.
// It returns false when the program is full or missing.
func (r *ProgramRepository) ReserveSeat(ctx context.Context, exec sqlx.ExtContext, programID string) (bool, error) {
	const query = `UPDATE programs SET enrolled_count = enrolled_count + 1, updated_at = NOW() WHERE id = $1 AND enrolled_count < capacity`
	res, err := pick(r.db, exec).ExecContext(ctx, query, programID)
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve seat rows: %w", err)
	}
	return n == 1, nil
}

// ReleaseSeat decrements enrolled_count, never below zero.
func (r *ProgramRepository) ReleaseSeat(ctx context.Context, exec sqlx.ExtContext, programID string) error {
	const query = `UPDATE programs SET enrolled_count = enrolled_count - 1, updated_at = NOW() WHERE id = $1 AND enrolled_count > 0`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, programID); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// ReconcileSeats rewrites enrolled_count from the seat-holding enrollments and
// returns the ids of programs whose counter had drifted.
func (r *ProgramRepository) ReconcileSeats(ctx context.Context) ([]string, error) {
	const query = `UPDATE programs p SET enrolled_count = held.n, updated_at = NOW()
FROM (
    SELECT p2.id, COUNT(e.id) AS n
    FROM programs p2
    LEFT JOIN enrollments e ON e.program_id = p2.id AND e.capacity_held
    GROUP BY p2.id
) held
WHERE held.id = p.id AND p.enrolled_count <> held.n
RETURNING p.id`
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("reconcile seats: %w", err)
	}
	return ids, nil
}

// CountActive returns total and active program counts.
func (r *ProgramRepository) CountActive(ctx context.Context) (total, active int, err error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active FROM programs`
	var row struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("count programs: %w", err)
	}
	return row.Total, row.Active, nil
}
