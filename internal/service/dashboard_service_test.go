package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

type countStub struct {
	n     int
	err   error
	calls int
}

func (c *countStub) Count(context.Context) (int, error) {
	c.calls++
	return c.n, c.err
}

type programCountStub struct{ total, active int }

func (p programCountStub) CountActive(context.Context) (int, int, error) {
	return p.total, p.active, nil
}

type enrollmentCountStub struct {
	memEnrollments
	byStatus map[models.EnrollmentStatus]int
}

func (e enrollmentCountStub) CountByStatus(context.Context) (map[models.EnrollmentStatus]int, error) {
	return e.byStatus, nil
}

func newDashboardFixture(users, posts *countStub) (*DashboardService, *memCache) {
	db := newMemDB()
	memEnrollments{db: db}.put(models.Enrollment{ID: "e1", UserID: "u1", ProgramID: programA, Status: models.EnrollmentStatusPending})
	cache := newMemCache()
	svc := NewDashboardService(DashboardServiceParams{
		Users:    users,
		Programs: programCountStub{total: 4, active: 3},
		Enrollments: enrollmentCountStub{
			memEnrollments: memEnrollments{db: db},
			byStatus:       map[models.EnrollmentStatus]int{models.EnrollmentStatusPending: 1},
		},
		Posts:   posts,
		Metrics: NewMetricsService(),
		Cache:   NewCacheService(cache, nil, 0, nil, true),
	})
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc, cache
}

func TestDashboardSummary(t *testing.T) {
	users := &countStub{n: 12}
	svc, cache := newDashboardFixture(users, &countStub{n: 7})

	summary, cached, err := svc.Summary(context.Background(), admin)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 12, summary.TotalUsers)
	assert.Equal(t, 4, summary.TotalPrograms)
	assert.Equal(t, 3, summary.ActivePrograms)
	assert.Equal(t, 7, summary.TotalPosts)
	assert.Equal(t, 1, summary.EnrollmentsByStatus[models.EnrollmentStatusPending])
	require.Len(t, summary.RecentEnrollments, 1)
	assert.True(t, cache.has(cacheKeyDashboard))

	again, cached, err := svc.Summary(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 12, again.TotalUsers)
	assert.Equal(t, 1, users.calls)
}

func TestDashboardSummaryFailure(t *testing.T) {
	svc, cache := newDashboardFixture(&countStub{}, &countStub{err: errors.New("posts table missing")})

	_, _, err := svc.Summary(context.Background(), admin)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.False(t, cache.has(cacheKeyDashboard))
}

func TestDashboardRequiresAdmin(t *testing.T) {
	svc, _ := newDashboardFixture(&countStub{}, &countStub{})

	_, _, err := svc.Summary(context.Background(), parent)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Metrics(parent)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	snapshot, err := svc.Metrics(admin)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snapshot.Goroutines, 1)
}
