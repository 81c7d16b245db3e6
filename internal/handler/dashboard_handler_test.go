package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

type fakeDashboardSrv struct {
	summary *models.DashboardSummary
	hit     bool
	err     error
	actor   models.Actor
}

func (f *fakeDashboardSrv) Summary(_ context.Context, actor models.Actor) (*models.DashboardSummary, bool, error) {
	f.actor = actor
	return f.summary, f.hit, f.err
}

func (f *fakeDashboardSrv) Metrics(actor models.Actor) (models.SystemMetrics, error) {
	if !actor.IsAdmin() {
		return models.SystemMetrics{}, appErrors.ErrForbidden
	}
	return models.SystemMetrics{Goroutines: 9}, nil
}

func TestDashboardHandlerRequiresLogin(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext(http.MethodGet, "/admin/dashboard", nil, models.Actor{})

	handler.Summary(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerSummary(t *testing.T) {
	srv := &fakeDashboardSrv{summary: &models.DashboardSummary{TotalUsers: 12}, hit: true}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/admin/dashboard", nil, adminActor)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(12), envelope.Data["total_users"])
	assert.Equal(t, adminActor, srv.actor)
}

func TestDashboardHandlerSummaryForbidden(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.ErrForbidden})
	c, rec := newTestContext(http.MethodGet, "/admin/dashboard", nil, parentActor)

	handler.Summary(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, rec).Error["code"])
}

func TestDashboardHandlerMetrics(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext(http.MethodGet, "/admin/metrics", nil, adminActor)

	handler.Metrics(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(9), decode(t, rec).Data["goroutines"])
}
