package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/middleware"
	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
	"github.com/noah-isme/camp-booking-api/pkg/response"
)

type programService interface {
	List(ctx context.Context, actor models.Actor, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error)
	Featured(ctx context.Context) ([]models.Program, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Program, error)
	Create(ctx context.Context, actor models.Actor, req dto.ProgramRequest) (*models.Program, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.ProgramRequest) (*models.Program, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// ProgramHandler serves the camp catalog.
type ProgramHandler struct {
	service programService
}

// NewProgramHandler constructs the handler.
func NewProgramHandler(service programService) *ProgramHandler {
	return &ProgramHandler{service: service}
}

// List godoc
// @Summary List camp programs
// @Tags Programs
// @Produce json
// @Param category query string false "summer, winter, spring or special"
// @Param city query string false "City"
// @Param featured query bool false "Featured only"
// @Param age query int false "Camper age"
// @Param q query string false "Search title and description"
// @Param include_draft query bool false "Admins only: include inactive programs"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /programs [get]
func (h *ProgramHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.ProgramFilter{
		Category: models.ProgramCategory(strings.TrimSpace(c.Query("category"))),
		City:     strings.TrimSpace(c.Query("city")),
		Featured: boolQuery(c, "featured"),
		Search:   strings.TrimSpace(c.Query("q")),
		Page:     page,
		PageSize: size,
	}
	if raw := c.Query("age"); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "age must be a number"))
			return
		}
		filter.Age = &age
	}
	if draft := boolQuery(c, "include_draft"); draft != nil {
		filter.IncludeDraft = *draft
	}

	programs, pagination, err := h.service.List(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programs, pagination)
}

// Featured godoc
// @Summary Featured programs for the landing page
// @Tags Programs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /programs/featured [get]
func (h *ProgramHandler) Featured(c *gin.Context) {
	programs, err := h.service.Featured(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, programs)
}

// Get godoc
// @Summary Program detail
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /programs/{id} [get]
func (h *ProgramHandler) Get(c *gin.Context) {
	program, err := h.service.Get(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, program)
}

// Create godoc
// @Summary Create a program
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body dto.ProgramRequest true "Program"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/programs [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ProgramRequest
	if !bindJSON(c, &req, "invalid program payload") {
		return
	}
	program, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, program)
}

// Update godoc
// @Summary Replace a program
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body dto.ProgramRequest true "Program"
// @Success 200 {object} response.Envelope
// @Router /admin/programs/{id} [put]
func (h *ProgramHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ProgramRequest
	if !bindJSON(c, &req, "invalid program payload") {
		return
	}
	program, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, program)
}

// Delete godoc
// @Summary Delete a program
// @Tags Programs
// @Param id path string true "Program ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /admin/programs/{id} [delete]
func (h *ProgramHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
