package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	ListMine(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error)
	AddToWishlist(ctx context.Context, actor models.Actor, req dto.WishlistRequest) (*models.Enrollment, error)
	RemoveFromWishlist(ctx context.Context, actor models.Actor, id string) error
	DirectEnroll(ctx context.Context, actor models.Actor, req dto.DirectEnrollRequest) (*models.Enrollment, error)
	ConvertToEnrollment(ctx context.Context, actor models.Actor, id string, req dto.ConvertWishlistRequest) (*models.Enrollment, error)
	Approve(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error)
	MarkCompleted(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error)
	Cancel(ctx context.Context, actor models.Actor, id string) error
	AdminDelete(ctx context.Context, actor models.Actor, id string) error
	UpdateStatus(ctx context.Context, actor models.Actor, id string, req dto.UpdateEnrollmentStatusRequest) (*models.Enrollment, error)
	UpdatePayment(ctx context.Context, actor models.Actor, id string, req dto.UpdatePaymentRequest) (*models.Enrollment, error)
	ReconcileCapacity(ctx context.Context) ([]string, error)
}

// EnrollmentHandler exposes wishlist and enrollment workflows.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

func enrollmentFilter(c *gin.Context) models.EnrollmentFilter {
	page, size := pageParams(c)
	return models.EnrollmentFilter{
		ProgramID: strings.TrimSpace(c.Query("program_id")),
		Status:    models.EnrollmentStatus(strings.TrimSpace(c.Query("status"))),
		Page:      page,
		PageSize:  size,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
}

// ListMine godoc
// @Summary Own wishlist and enrollments
// @Tags Enrollments
// @Produce json
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListMine(c.Request.Context(), actor, enrollmentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// List godoc
// @Summary All enrollments
// @Tags Enrollments
// @Produce json
// @Param program_id query string false "Program ID"
// @Param status query string false "Status"
// @Param sort_by query string false "created_at, updated_at or status"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := enrollmentFilter(c)
	filter.UserID = strings.TrimSpace(c.Query("user_id"))
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Enrollment detail
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	enrollment, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// AddToWishlist godoc
// @Summary Save a program to the wishlist
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.WishlistRequest true "Program"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /wishlist [post]
func (h *EnrollmentHandler) AddToWishlist(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.WishlistRequest
	if !bindJSON(c, &req, "invalid wishlist payload") {
		return
	}
	item, err := h.service.AddToWishlist(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// RemoveFromWishlist godoc
// @Summary Remove a wishlist item
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /wishlist/{id} [delete]
func (h *EnrollmentHandler) RemoveFromWishlist(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.RemoveFromWishlist(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Enroll godoc
// @Summary Enroll a student directly
// @Description Reserves a seat immediately; the record starts as pending
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.DirectEnrollRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.DirectEnrollRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	enrollment, err := h.service.DirectEnroll(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Convert godoc
// @Summary Convert a wishlist item into an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.ConvertWishlistRequest true "Student details"
// @Success 200 {object} response.Envelope
// @Router /wishlist/{id}/convert [post]
func (h *EnrollmentHandler) Convert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ConvertWishlistRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	enrollment, err := h.service.ConvertToEnrollment(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Cancel godoc
// @Summary Cancel an enrollment
// @Description Removes the record and releases its seat; completed records cannot be cancelled
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.Cancel(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Approve godoc
// @Summary Confirm a pending enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// Complete godoc
// @Summary Mark a confirmed enrollment as completed
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/{id}/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	h.transition(c, h.service.MarkCompleted)
}

func (h *EnrollmentHandler) transition(c *gin.Context, fn func(context.Context, models.Actor, string) (*models.Enrollment, error)) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	enrollment, err := fn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// UpdateStatus godoc
// @Summary Set enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpdateEnrollmentStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.UpdateEnrollmentStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	enrollment, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if enrollment == nil {
		response.NoContent(c)
		return
	}
	response.OK(c, enrollment)
}

// UpdatePayment godoc
// @Summary Record payment details
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpdatePaymentRequest true "Payment"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/{id}/payment [patch]
func (h *EnrollmentHandler) UpdatePayment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.UpdatePaymentRequest
	if !bindJSON(c, &req, "invalid payment payload") {
		return
	}
	enrollment, err := h.service.UpdatePayment(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// AdminDelete godoc
// @Summary Force-delete an enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /admin/enrollments/{id} [delete]
func (h *EnrollmentHandler) AdminDelete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.AdminDelete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reconcile godoc
// @Summary Recount seats held on every program
// @Tags Enrollments
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/reconcile [post]
func (h *EnrollmentHandler) Reconcile(c *gin.Context) {
	corrected, err := h.service.ReconcileCapacity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if corrected == nil {
		corrected = []string{}
	}
	response.OK(c, gin.H{"corrected": corrected})
}
