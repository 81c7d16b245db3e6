package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/pkg/config"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
	"github.com/noah-isme/camp-booking-api/pkg/jobs"
)

const authorStatsTTL = time.Minute

type postStore interface {
	List(ctx context.Context, filter models.PostFilter) ([]models.Post, int, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	SetFeatured(ctx context.Context, id string, featured bool) error
	AppendImages(ctx context.Context, id string, paths []string) error
	ToggleLike(ctx context.Context, exec sqlx.ExtContext, postID, userID string) (bool, int, error)
	CountPublishedByAuthor(ctx context.Context, authorID string) (int, error)
	CountLikesReceived(ctx context.Context, authorID string) (int, error)
	ResetLikes(ctx context.Context, postID string) (int64, error)
}

type commentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]models.Comment, error)
	SoftDelete(ctx context.Context, id string) error
	CountActiveByAuthor(ctx context.Context, authorID string) (int, error)
}

type experienceGranter interface {
	GrantExperience(ctx context.Context, accountID string, points int, reason string) (*models.LevelChange, error)
}

type activityStatsWriter interface {
	StoreActivityStats(ctx context.Context, userID string, stats models.ActivityStats) error
}

type fileStore interface {
	Save(name string, data []byte) (string, error)
	Delete(name string) error
}

// AuthorStatsRefresh asks the worker to recompute an author's stored counters.
type AuthorStatsRefresh struct {
	AuthorID string
}

// ImageUpload is one file from a multipart upload.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// CommunityService runs the community board and rewards authors through the
// ledger. Rewards are side effects: a failed grant is logged and the content
// action still succeeds.
type CommunityService struct {
	posts     postStore
	comments  commentStore
	ledger    experienceGranter
	stats     activityStatsWriter
	cache     *CacheService
	files     fileStore
	jobs      jobSubmitter
	uploads   config.UploadsConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommunityService constructs CommunityService.
func NewCommunityService(posts postStore, comments commentStore, ledger experienceGranter, stats activityStatsWriter, cache *CacheService, files fileStore, jobs jobSubmitter, uploads config.UploadsConfig, validate *validator.Validate, logger *zap.Logger) *CommunityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if uploads.MaxFiles <= 0 {
		uploads.MaxFiles = 5
	}
	if uploads.MaxFileBytes <= 0 {
		uploads.MaxFileBytes = 5 << 20
	}
	if len(uploads.AllowedMIMEs) == 0 {
		uploads.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	return &CommunityService{
		posts:     posts,
		comments:  comments,
		ledger:    ledger,
		stats:     stats,
		cache:     cache,
		files:     files,
		jobs:      jobs,
		uploads:   uploads,
		validator: validate,
		logger:    logger,
	}
}

// Register binds the stats refresh handler on mux.
func (s *CommunityService) Register(mux *jobs.Mux) {
	mux.Handle(JobAuthorStatsRefresh, s.handleStatsRefresh)
}

// ListPosts returns published posts visible to viewer, notices first.
func (s *CommunityService) ListPosts(ctx context.Context, viewer models.Actor, filter models.PostFilter) ([]models.Post, *models.Pagination, error) {
	filter.ViewerID = viewer.ID
	filter.ViewerAdmin = viewer.IsAdmin()
	posts, total, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list posts")
	}
	return posts, pagination(filter.Page, filter.PageSize, total), nil
}

// GetPost returns a post and counts the view.
func (s *CommunityService) GetPost(ctx context.Context, viewer models.Actor, id string) (*models.Post, error) {
	post, err := s.visiblePost(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if err := s.posts.IncrementViews(ctx, id); err != nil {
		s.logger.Warn("failed to count post view", zap.String("post_id", id), zap.Error(err))
	} else {
		post.Views++
	}
	return post, nil
}

// CreatePost publishes a post and rewards its author.
func (s *CommunityService) CreatePost(ctx context.Context, author models.Actor, req dto.PostRequest) (*models.Post, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}
	category := req.Category
	if category == "" {
		category = models.PostCategoryGeneral
	}
	if category == models.PostCategoryNotice && !author.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can post notices")
	}

	post := &models.Post{
		AuthorID:    author.ID,
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		Category:    category,
		Tags:        pq.StringArray(normalizeTags(req.Tags)),
		YoutubeURL:  req.YoutubeURL,
		IsPublished: req.IsPublished == nil || *req.IsPublished,
		IsPrivate:   req.IsPrivate,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create post")
	}

	s.reward(ctx, author.ID, PointsPostCreated, "post created")
	s.contentChanged(ctx, author.ID)
	return post, nil
}

// UpdatePost edits a post. Only its author or an admin may edit.
func (s *CommunityService) UpdatePost(ctx context.Context, actor models.Actor, id string, req dto.PostRequest) (*models.Post, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}
	post, err := s.ownedPost(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Category == models.PostCategoryNotice && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can post notices")
	}

	post.Title = strings.TrimSpace(req.Title)
	post.Content = req.Content
	if req.Category != "" {
		post.Category = req.Category
	}
	post.Tags = pq.StringArray(normalizeTags(req.Tags))
	post.YoutubeURL = req.YoutubeURL
	if req.IsPublished != nil {
		post.IsPublished = *req.IsPublished
	}
	post.IsPrivate = req.IsPrivate

	if err := s.posts.Update(ctx, post); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update post")
	}
	s.contentChanged(ctx, post.AuthorID)
	return post, nil
}

// DeletePost removes a post with its comments, likes and images.
func (s *CommunityService) DeletePost(ctx context.Context, actor models.Actor, id string) error {
	post, err := s.ownedPost(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete post")
	}
	if s.files != nil {
		for _, image := range post.Images {
			if err := s.files.Delete(image); err != nil {
				s.logger.Warn("failed to remove post image", zap.String("path", image), zap.Error(err))
			}
		}
	}
	s.contentChanged(ctx, post.AuthorID)
	return nil
}

// SetFeatured is the admin featured toggle.
func (s *CommunityService) SetFeatured(ctx context.Context, actor models.Actor, id string, req dto.FeaturePostRequest) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can feature posts")
	}
	if err := s.posts.SetFeatured(ctx, id, req.Featured); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update post")
	}
	return nil
}

// UploadImages stores images for a post and returns their storage paths.
func (s *CommunityService) UploadImages(ctx context.Context, actor models.Actor, postID string, uploads []ImageUpload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no images provided")
	}
	if s.files == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "image storage is not configured")
	}
	post, err := s.ownedPost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	if len(post.Images)+len(uploads) > s.uploads.MaxFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a post can hold at most %d images", s.uploads.MaxFiles))
	}

	names := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		ext, err := s.checkImage(upload)
		if err != nil {
			return nil, err
		}
		names = append(names, path.Join("posts", postID, uuid.NewString()+ext))
	}

	saved := make([]string, 0, len(uploads))
	for i, upload := range uploads {
		name, err := s.files.Save(names[i], upload.Data)
		if err != nil {
			s.discard(saved)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
		}
		saved = append(saved, name)
	}
	if err := s.posts.AppendImages(ctx, postID, saved); err != nil {
		s.discard(saved)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach images")
	}
	return saved, nil
}

// ListComments returns a post's comments, deleted ones as blanked tombstones.
func (s *CommunityService) ListComments(ctx context.Context, viewer models.Actor, postID string) ([]models.Comment, error) {
	if _, err := s.visiblePost(ctx, viewer, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

// CreateComment adds a comment, or a reply to a comment on the same post,
// and rewards the commenter.
func (s *CommunityService) CreateComment(ctx context.Context, author models.Actor, postID string, req dto.CommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	if _, err := s.visiblePost(ctx, author, postID); err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		parent, err := s.comments.FindByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent comment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
		}
		if parent.PostID != postID || parent.IsDeleted {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent comment is not on this post")
		}
	}

	comment := &models.Comment{
		PostID:   postID,
		AuthorID: author.ID,
		ParentID: req.ParentID,
		Content:  strings.TrimSpace(req.Content),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}

	s.reward(ctx, author.ID, PointsCommentCreated, "comment created")
	s.contentChanged(ctx, author.ID)
	return comment, nil
}

// DeleteComment soft-deletes a comment. Experience already granted stays.
func (s *CommunityService) DeleteComment(ctx context.Context, actor models.Actor, id string) error {
	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if !actor.Owns(comment.AuthorID) {
		return appErrors.Clone(appErrors.ErrForbidden, "comment belongs to another account")
	}
	if err := s.comments.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}
	s.contentChanged(ctx, comment.AuthorID)
	return nil
}

// ToggleLike adds the liker's like or removes it. Adding a like to someone
// else's post rewards the post author; removing one takes nothing back.
func (s *CommunityService) ToggleLike(ctx context.Context, liker models.Actor, postID string) (*models.LikeResult, error) {
	post, err := s.visiblePost(ctx, liker, postID)
	if err != nil {
		return nil, err
	}
	liked, count, err := s.posts.ToggleLike(ctx, nil, postID, liker.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle like")
	}
	if liked && post.AuthorID != liker.ID {
		s.reward(ctx, post.AuthorID, PointsLikeReceived, "like received")
	}
	s.contentChanged(ctx, post.AuthorID)
	return &models.LikeResult{Liked: liked, LikesCount: count}, nil
}

// ResetLikes clears likes on one post, or every post when postID is empty.
// Experience already granted for those likes stays.
func (s *CommunityService) ResetLikes(ctx context.Context, postID string) (int64, error) {
	n, err := s.posts.ResetLikes(ctx, postID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset likes")
	}
	s.cache.Invalidate(ctx, authorStatsKey("*"))
	return n, nil
}

// AuthorStatistics aggregates an author's published posts, live comments and
// likes received. Results are cached briefly.
func (s *CommunityService) AuthorStatistics(ctx context.Context, authorID string) (*models.ActivityStats, error) {
	var stats models.ActivityStats
	if s.cache.Get(ctx, authorStatsKey(authorID), &stats) {
		return &stats, nil
	}
	fresh, err := s.aggregate(ctx, authorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute author statistics")
	}
	s.cache.Set(ctx, authorStatsKey(authorID), fresh, authorStatsTTL)
	return fresh, nil
}

// RefreshAuthorStats recomputes an author's counters and stores them on the
// account row.
func (s *CommunityService) RefreshAuthorStats(ctx context.Context, authorID string) error {
	stats, err := s.aggregate(ctx, authorID)
	if err != nil {
		return err
	}
	if err := s.stats.StoreActivityStats(ctx, authorID, *stats); err != nil {
		return err
	}
	s.cache.Set(ctx, authorStatsKey(authorID), stats, authorStatsTTL)
	return nil
}

func (s *CommunityService) handleStatsRefresh(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(AuthorStatsRefresh)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	return s.RefreshAuthorStats(ctx, req.AuthorID)
}

func (s *CommunityService) aggregate(ctx context.Context, authorID string) (*models.ActivityStats, error) {
	var stats models.ActivityStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.posts.CountPublishedByAuthor(gctx, authorID)
		stats.PostsCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.comments.CountActiveByAuthor(gctx, authorID)
		stats.CommentsCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.posts.CountLikesReceived(gctx, authorID)
		stats.LikesReceived = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *CommunityService) reward(ctx context.Context, accountID string, points int, reason string) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.GrantExperience(ctx, accountID, points, reason); err != nil {
		s.logger.Warn("experience grant failed",
			zap.String("account_id", accountID),
			zap.Int("points", points),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// contentChanged drops the cached statistics and schedules a counter refresh.
func (s *CommunityService) contentChanged(ctx context.Context, authorID string) {
	s.cache.Forget(ctx, authorStatsKey(authorID))
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Submit(JobAuthorStatsRefresh, AuthorStatsRefresh{AuthorID: authorID}); err != nil {
		s.logger.Warn("failed to enqueue stats refresh", zap.String("author_id", authorID), zap.Error(err))
	}
}

func (s *CommunityService) visiblePost(ctx context.Context, viewer models.Actor, id string) (*models.Post, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if (!post.IsPublished || post.IsPrivate) && !viewer.Owns(post.AuthorID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
	}
	return post, nil
}

func (s *CommunityService) ownedPost(ctx context.Context, actor models.Actor, id string) (*models.Post, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(post.AuthorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "post belongs to another account")
	}
	return post, nil
}

func (s *CommunityService) loadPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load post")
	}
	return post, nil
}

func (s *CommunityService) checkImage(upload ImageUpload) (string, error) {
	if int64(len(upload.Data)) > s.uploads.MaxFileBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the %d byte limit", upload.Filename, s.uploads.MaxFileBytes))
	}
	mime := http.DetectContentType(upload.Data)
	for _, allowed := range s.uploads.AllowedMIMEs {
		if mime == allowed {
			return imageExtensions[mime], nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not a supported image type", upload.Filename))
}

func (s *CommunityService) discard(names []string) {
	for _, name := range names {
		if err := s.files.Delete(name); err != nil {
			s.logger.Warn("failed to remove orphaned image", zap.String("path", name), zap.Error(err))
		}
	}
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
