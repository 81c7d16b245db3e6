package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/internal/repository"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

type memCatalog struct {
	mu           sync.Mutex
	programs     map[string]*models.Program
	lists        int
	down         bool
	fkOnDel      bool
	beforeUpdate func()
}

func newMemCatalog(programs ...models.Program) *memCatalog {
	c := &memCatalog{programs: make(map[string]*models.Program)}
	for i := range programs {
		p := programs[i]
		c.programs[p.ID] = &p
	}
	return c
}

func (c *memCatalog) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	if c.down {
		return nil, 0, driver.ErrBadConn
	}
	out := make([]models.Program, 0)
	for _, p := range c.programs {
		if !p.IsActive && !filter.IncludeDraft {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Age != nil && (*filter.Age < p.AgeMin || *filter.Age > p.AgeMax) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, len(out), nil
}

func (c *memCatalog) FindByID(ctx context.Context, id string) (*models.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return nil, driver.ErrBadConn
	}
	p, ok := c.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (c *memCatalog) Create(ctx context.Context, program *models.Program) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	program.ID = fmt.Sprintf("prog-%d", len(c.programs)+1)
	cp := *program
	c.programs[program.ID] = &cp
	return nil
}

func (c *memCatalog) Update(ctx context.Context, program *models.Program) error {
	if c.beforeUpdate != nil {
		c.beforeUpdate()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.programs[program.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if program.Capacity < current.EnrolledCount {
		return fmt.Errorf("update program: %w", &pq.Error{Code: "23514", Constraint: "programs_enrolled_within_capacity"})
	}
	cp := *program
	cp.EnrolledCount = current.EnrolledCount
	c.programs[program.ID] = &cp
	return nil
}

func (c *memCatalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fkOnDel {
		return fmt.Errorf("delete program: %w", &pq.Error{Code: "23503"})
	}
	if _, ok := c.programs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(c.programs, id)
	return nil
}

func programRequest() dto.ProgramRequest {
	return dto.ProgramRequest{
		Title:           "  Coding Camp ",
		Description:     "Build games in a week",
		Category:        models.CategorySummer,
		LocationName:    "Lakeside Lodge",
		City:            "Austin",
		Country:         "US",
		AgeMin:          8,
		AgeMax:          14,
		StartDate:       time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 7, 7, 0, 0, 0, 0, time.UTC),
		OriginalPrice:   decimal.RequireFromString("1000"),
		DiscountPercent: 15,
		Currency:        "usd",
		Capacity:        20,
	}
}

func newProgramFixture(programs ...models.Program) (*ProgramService, *memCatalog, *memCache) {
	catalog := newMemCatalog(programs...)
	cache := newMemCache()
	svc := NewProgramService(catalog, catalog, nil, NewCacheService(cache, nil, 0, nil, true), nil, nil)
	return svc, catalog, cache
}

func TestProgramListCachesPublicPages(t *testing.T) {
	svc, catalog, _ := newProgramFixture(
		models.Program{ID: "p1", IsActive: true, SortOrder: 2, AgeMin: 6, AgeMax: 12},
		models.Program{ID: "p2", IsActive: true, SortOrder: 1, AgeMin: 13, AgeMax: 17},
		models.Program{ID: "draft", IsActive: false},
	)

	items, page, err := svc.List(context.Background(), parent, models.ProgramFilter{IncludeDraft: true})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].ID)
	assert.Equal(t, 2, page.TotalCount)

	_, _, err = svc.List(context.Background(), parent, models.ProgramFilter{IncludeDraft: true})
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.lists)

	all, _, err := svc.List(context.Background(), admin, models.ProgramFilter{IncludeDraft: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 2, catalog.lists)

	age := 10
	young, _, err := svc.List(context.Background(), parent, models.ProgramFilter{Age: &age})
	require.NoError(t, err)
	require.Len(t, young, 1)
	assert.Equal(t, "p1", young[0].ID)

	bad := -1
	_, _, err = svc.List(context.Background(), parent, models.ProgramFilter{Age: &bad})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProgramFeatured(t *testing.T) {
	svc, _, _ := newProgramFixture(
		models.Program{ID: "p1", IsActive: true, Featured: true},
		models.Program{ID: "p2", IsActive: true},
		models.Program{ID: "p3", IsActive: false, Featured: true},
	)

	items, err := svc.Featured(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
}

func TestProgramGetHidesInactive(t *testing.T) {
	svc, _, _ := newProgramFixture(models.Program{ID: "draft", IsActive: false})

	_, err := svc.Get(context.Background(), parent, "draft")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	p, err := svc.Get(context.Background(), admin, "draft")
	require.NoError(t, err)
	assert.Equal(t, "draft", p.ID)

	_, err = svc.Get(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProgramCreateDerivesPrice(t *testing.T) {
	svc, catalog, cache := newProgramFixture()
	require.NoError(t, cache.Set(context.Background(), "programs:list:stale", "x", time.Minute))

	_, err := svc.Create(context.Background(), parent, programRequest())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	created, err := svc.Create(context.Background(), admin, programRequest())
	require.NoError(t, err)
	assert.Equal(t, "Coding Camp", created.Title)
	assert.True(t, created.Price.Equal(decimal.NewFromInt(850)), created.Price.String())
	assert.Equal(t, "USD", created.Currency)
	assert.True(t, created.IsActive)
	assert.Zero(t, created.EnrolledCount)
	assert.Contains(t, catalog.programs, created.ID)
	assert.False(t, cache.has("programs:list:stale"))

	req := programRequest()
	req.EndDate = req.StartDate.Add(-time.Hour)
	_, err = svc.Create(context.Background(), admin, req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req = programRequest()
	req.OriginalPrice = decimal.NewFromInt(-1)
	_, err = svc.Create(context.Background(), admin, req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProgramUpdateKeepsEnrolledCount(t *testing.T) {
	svc, catalog, _ := newProgramFixture(models.Program{ID: "p1", IsActive: true, Capacity: 30, EnrolledCount: 12})

	req := programRequest()
	req.Capacity = 11
	_, err := svc.Update(context.Background(), admin, "p1", req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	inactive := false
	req.Capacity = 12
	req.IsActive = &inactive
	updated, err := svc.Update(context.Background(), admin, "p1", req)
	require.NoError(t, err)
	assert.Equal(t, 12, updated.EnrolledCount)
	assert.Equal(t, 12, catalog.programs["p1"].EnrolledCount)
	assert.False(t, catalog.programs["p1"].IsActive)

	_, err = svc.Update(context.Background(), admin, "missing", programRequest())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProgramUpdateLosingRaceForSeats(t *testing.T) {
	svc, catalog, _ := newProgramFixture(models.Program{ID: "p1", IsActive: true, Capacity: 30, EnrolledCount: 12})
	catalog.beforeUpdate = func() {
		catalog.mu.Lock()
		catalog.programs["p1"].EnrolledCount = 13
		catalog.mu.Unlock()
	}

	req := programRequest()
	req.Capacity = 12
	_, err := svc.Update(context.Background(), admin, "p1", req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, 30, catalog.programs["p1"].Capacity)
}

func TestProgramDelete(t *testing.T) {
	svc, catalog, _ := newProgramFixture(models.Program{ID: "p1", IsActive: true})

	assert.ErrorIs(t, svc.Delete(context.Background(), parent, "p1"), appErrors.ErrForbidden)

	catalog.fkOnDel = true
	assert.ErrorIs(t, svc.Delete(context.Background(), admin, "p1"), appErrors.ErrConflict)

	catalog.fkOnDel = false
	require.NoError(t, svc.Delete(context.Background(), admin, "p1"))
	assert.ErrorIs(t, svc.Delete(context.Background(), admin, "p1"), appErrors.ErrNotFound)
}

func TestProgramReadsSurviveDatabaseOutage(t *testing.T) {
	catalog := newMemCatalog(models.Program{ID: "live", Title: "Live Camp", IsActive: true})
	fallback, err := repository.NewFallbackProgramReader(catalog, nil)
	require.NoError(t, err)
	svc := NewProgramService(fallback, catalog, fallback, nil, nil, nil)

	items, _, err := svc.List(context.Background(), parent, models.ProgramFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, items)

	catalog.down = true
	p, err := svc.Get(context.Background(), parent, "live")
	require.NoError(t, err)
	assert.Equal(t, "Live Camp", p.Title)

	seeded, _, err := svc.List(context.Background(), parent, models.ProgramFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, seeded)

	catalog.down = false
	require.NoError(t, svc.Delete(context.Background(), admin, "live"))
	catalog.down = true
	_, err = svc.Get(context.Background(), parent, "live")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
