package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/pkg/database"
)

//go:embed seed/programs.json
var programSeed []byte

// ProgramReader is the read side of the catalog.
type ProgramReader interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

// FallbackProgramReader serves catalog reads from the last good snapshot when
// Postgres cannot be reached. The snapshot starts from the embedded seed and
// absorbs every program the primary reader returns. Query errors that are not
// connectivity failures pass through untouched.
type FallbackProgramReader struct {
	next        ProgramReader
	logger      *zap.Logger
	unavailable func(error) bool

	mu       sync.RWMutex
	snapshot map[string]models.Program
}

// NewFallbackProgramReader wraps next with the embedded seed as the initial snapshot.
func NewFallbackProgramReader(next ProgramReader, logger *zap.Logger) (*FallbackProgramReader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var seed []models.Program
	if err := json.Unmarshal(programSeed, &seed); err != nil {
		return nil, fmt.Errorf("decode program seed: %w", err)
	}
	f := &FallbackProgramReader{
		next:        next,
		logger:      logger,
		unavailable: database.IsUnavailable,
		snapshot:    make(map[string]models.Program, len(seed)),
	}
	f.Remember(seed)
	return f, nil
}

// Remember merges programs into the snapshot.
func (f *FallbackProgramReader) Remember(programs []models.Program) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range programs {
		f.snapshot[p.ID] = p
	}
}

// Forget drops a program, used after admin deletion.
func (f *FallbackProgramReader) Forget(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snapshot, id)
}

func (f *FallbackProgramReader) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	programs, total, err := f.next.List(ctx, filter)
	if err == nil {
		f.Remember(programs)
		return programs, total, nil
	}
	if !f.unavailable(err) {
		return nil, 0, err
	}
	f.logger.Warn("program store unavailable, serving snapshot", zap.Error(err))
	list, total := f.fromSnapshot(filter)
	return list, total, nil
}

func (f *FallbackProgramReader) FindByID(ctx context.Context, id string) (*models.Program, error) {
	program, err := f.next.FindByID(ctx, id)
	if err == nil {
		f.Remember([]models.Program{*program})
		return program, nil
	}
	if !f.unavailable(err) {
		return nil, err
	}
	f.logger.Warn("program store unavailable, serving snapshot", zap.String("program_id", id), zap.Error(err))

	f.mu.RLock()
	cached, ok := f.snapshot[id]
	f.mu.RUnlock()
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &cached, nil
}

func (f *FallbackProgramReader) fromSnapshot(filter models.ProgramFilter) ([]models.Program, int) {
	f.mu.RLock()
	matched := make([]models.Program, 0, len(f.snapshot))
	for _, p := range f.snapshot {
		if matchesProgram(p, filter) {
			matched = append(matched, p)
		}
	}
	f.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SortOrder != matched[j].SortOrder {
			return matched[i].SortOrder < matched[j].SortOrder
		}
		return matched[i].StartDate.Before(matched[j].StartDate)
	})

	total := len(matched)
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	if offset >= total {
		return []models.Program{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total
}

func matchesProgram(p models.Program, filter models.ProgramFilter) bool {
	if !filter.IncludeDraft && !p.IsActive {
		return false
	}
	if filter.Category != "" && p.Category != filter.Category {
		return false
	}
	if filter.City != "" && !strings.EqualFold(p.City, filter.City) {
		return false
	}
	if filter.Featured != nil && p.Featured != *filter.Featured {
		return false
	}
	if filter.Age != nil && (p.AgeMin > *filter.Age || p.AgeMax < *filter.Age) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(p.Title), needle) && !strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}
