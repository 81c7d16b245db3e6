package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/middleware"
	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/internal/service"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
	"github.com/noah-isme/camp-booking-api/pkg/response"
)

type communityService interface {
	ListPosts(ctx context.Context, viewer models.Actor, filter models.PostFilter) ([]models.Post, *models.Pagination, error)
	GetPost(ctx context.Context, viewer models.Actor, id string) (*models.Post, error)
	CreatePost(ctx context.Context, author models.Actor, req dto.PostRequest) (*models.Post, error)
	UpdatePost(ctx context.Context, actor models.Actor, id string, req dto.PostRequest) (*models.Post, error)
	DeletePost(ctx context.Context, actor models.Actor, id string) error
	SetFeatured(ctx context.Context, actor models.Actor, id string, req dto.FeaturePostRequest) error
	UploadImages(ctx context.Context, actor models.Actor, postID string, uploads []service.ImageUpload) ([]string, error)
	ListComments(ctx context.Context, viewer models.Actor, postID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, author models.Actor, postID string, req dto.CommentRequest) (*models.Comment, error)
	DeleteComment(ctx context.Context, actor models.Actor, id string) error
	ToggleLike(ctx context.Context, liker models.Actor, postID string) (*models.LikeResult, error)
	AuthorStatistics(ctx context.Context, authorID string) (*models.ActivityStats, error)
}

// CommunityHandler serves the community board.
type CommunityHandler struct {
	service communityService
}

// NewCommunityHandler constructs the handler.
func NewCommunityHandler(service communityService) *CommunityHandler {
	return &CommunityHandler{service: service}
}

// ListPosts godoc
// @Summary List community posts
// @Description Notices are pinned first. Private posts are only listed for their author and admins.
// @Tags Community
// @Produce json
// @Param category query string false "general, info, notice or qna"
// @Param author_id query string false "Author"
// @Param q query string false "Search"
// @Param featured query bool false "Featured only"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /posts [get]
func (h *CommunityHandler) ListPosts(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.PostFilter{
		Category: models.PostCategory(strings.TrimSpace(c.Query("category"))),
		AuthorID: strings.TrimSpace(c.Query("author_id")),
		Search:   strings.TrimSpace(c.Query("q")),
		Featured: boolQuery(c, "featured"),
		Page:     page,
		PageSize: size,
	}
	posts, pagination, err := h.service.ListPosts(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posts, pagination)
}

// GetPost godoc
// @Summary Read a post
// @Tags Community
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /posts/{id} [get]
func (h *CommunityHandler) GetPost(c *gin.Context) {
	post, err := h.service.GetPost(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, post)
}

// CreatePost godoc
// @Summary Publish a post
// @Tags Community
// @Accept json
// @Produce json
// @Param payload body dto.PostRequest true "Post"
// @Success 201 {object} response.Envelope
// @Router /posts [post]
func (h *CommunityHandler) CreatePost(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.PostRequest
	if !bindJSON(c, &req, "invalid post payload") {
		return
	}
	post, err := h.service.CreatePost(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, post)
}

// UpdatePost godoc
// @Summary Edit a post
// @Tags Community
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param payload body dto.PostRequest true "Post"
// @Success 200 {object} response.Envelope
// @Router /posts/{id} [put]
func (h *CommunityHandler) UpdatePost(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.PostRequest
	if !bindJSON(c, &req, "invalid post payload") {
		return
	}
	post, err := h.service.UpdatePost(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, post)
}

// DeletePost godoc
// @Summary Delete a post
// @Tags Community
// @Param id path string true "Post ID"
// @Success 204
// @Router /posts/{id} [delete]
func (h *CommunityHandler) DeletePost(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.DeletePost(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetFeatured godoc
// @Summary Feature or unfeature a post
// @Tags Community
// @Accept json
// @Param id path string true "Post ID"
// @Param payload body dto.FeaturePostRequest true "Featured flag"
// @Success 204
// @Router /admin/posts/{id}/featured [patch]
func (h *CommunityHandler) SetFeatured(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.FeaturePostRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	if err := h.service.SetFeatured(c.Request.Context(), actor, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadImages godoc
// @Summary Attach images to a post
// @Tags Community
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Post ID"
// @Param images formData file true "Image files"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /posts/{id}/images [post]
func (h *CommunityHandler) UploadImages(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form with images is required"))
		return
	}
	headers := form.File["images"]
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "images are required"))
		return
	}
	uploads := make([]service.ImageUpload, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
			return
		}
		data, err := io.ReadAll(src)
		src.Close() //nolint:errcheck
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
			return
		}
		uploads = append(uploads, service.ImageUpload{Filename: fh.Filename, Data: data})
	}

	paths, err := h.service.UploadImages(c.Request.Context(), actor, c.Param("id"), uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"images": paths})
}

// ListComments godoc
// @Summary Comments on a post
// @Tags Community
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Router /posts/{id}/comments [get]
func (h *CommunityHandler) ListComments(c *gin.Context) {
	comments, err := h.service.ListComments(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, comments)
}

// CreateComment godoc
// @Summary Comment on a post
// @Tags Community
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param payload body dto.CommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /posts/{id}/comments [post]
func (h *CommunityHandler) CreateComment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CommentRequest
	if !bindJSON(c, &req, "invalid comment payload") {
		return
	}
	comment, err := h.service.CreateComment(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Tags Community
// @Param id path string true "Comment ID"
// @Success 204
// @Router /comments/{id} [delete]
func (h *CommunityHandler) DeleteComment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.DeleteComment(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ToggleLike godoc
// @Summary Like or unlike a post
// @Tags Community
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Router /posts/{id}/like [post]
func (h *CommunityHandler) ToggleLike(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	result, err := h.service.ToggleLike(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// AuthorStats godoc
// @Summary Activity statistics for an author
// @Tags Community
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/stats [get]
func (h *CommunityHandler) AuthorStats(c *gin.Context) {
	stats, err := h.service.AuthorStatistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
