package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/camp-booking-api/internal/middleware"
	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
	"github.com/noah-isme/camp-booking-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, actor models.Actor) (*models.DashboardSummary, bool, error)
	Metrics(actor models.Actor) (models.SystemMetrics, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Metrics godoc
// @Summary Process metrics summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *DashboardHandler) Metrics(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	snapshot, err := h.service.Metrics(actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}
