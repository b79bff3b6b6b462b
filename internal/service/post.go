package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/BloggingApp/currents-service/internal/metrics"
	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/rabbitmq"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/BloggingApp/currents-service/internal/repository/redisrepo"
	"github.com/BloggingApp/currents-service/pkg/slug"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type postService struct {
	logger    *zap.Logger
	repo      *repository.Repository
	cache     *cache
	publisher Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
	now       func() time.Time
}

func newPostService(logger *zap.Logger, repo *repository.Repository, c *cache, publisher Publisher, m *metrics.Metrics, opts Options) *postService {
	return &postService{
		logger:    logger,
		repo:      repo,
		cache:     c,
		publisher: publisher,
		metrics:   m,
		timeout:   opts.StoreTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *postService) Create(ctx context.Context, authorID uuid.UUID, req dto.CreatePostRequest) (*model.Post, error) {
	if authorID == uuid.Nil {
		return nil, model.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	post := model.Post{
		AuthorID: authorID,
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
		Excerpt:  req.Excerpt,
		Status:   req.PostStatus(),
	}

	if post.Status == model.PostStatusPublished {
		return s.publish(ctx, post)
	}
	return s.createDraft(ctx, post)
}

func (s *postService) Publish(ctx context.Context, authorID uuid.UUID, title string, content string, excerpt *string) (*model.Post, error) {
	status := string(model.PostStatusPublished)
	return s.Create(ctx, authorID, dto.CreatePostRequest{
		Title:   title,
		Content: content,
		Excerpt: excerpt,
		Status:  &status,
	})
}

func (s *postService) uniqueSlug(ctx context.Context, tx repository.PostReader, title string) (string, error) {
	return slug.Resolve(ctx, slug.Make(title), tx.SlugExists)
}

// archiveActive archives the author's active post, if any, and returns it.
func archiveActive(ctx context.Context, tx repository.PostTx, authorID uuid.UUID) (*model.Post, error) {
	current, err := tx.FindActive(ctx, authorID)
	if err != nil {
		if errors.Is(err, model.ErrNoActivePost) {
			return nil, nil
		}
		return nil, err
	}

	if err := tx.Archive(ctx, current.ID); err != nil {
		return nil, err
	}
	return current, nil
}

// withSlugRetry runs fn once more when a concurrent writer inserted the
// resolved slug between the existence check and the insert. fn resolves the
// slug again on the second run.
func (s *postService) withSlugRetry(ctx context.Context, authorID uuid.UUID, fn func(tx repository.PostTx) error) error {
	err := s.repo.Post.WithTx(ctx, fn)
	if errors.Is(err, model.ErrSlugTaken) {
		s.logger.Sugar().Warnf("slug taken concurrently, retrying for user(%s): %s", authorID.String(), err.Error())
		err = s.repo.Post.WithTx(ctx, fn)
	}
	return err
}

func (s *postService) publish(ctx context.Context, post model.Post) (*model.Post, error) {
	if strings.TrimSpace(post.Content) == "" {
		return nil, errContentRequired()
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var created, archived *model.Post
	err := s.withSlugRetry(ctx, post.AuthorID, func(tx repository.PostTx) error {
		if err := tx.LockAuthor(ctx, post.AuthorID); err != nil {
			return err
		}

		postSlug, err := s.uniqueSlug(ctx, tx, post.Title)
		if err != nil {
			return err
		}
		post.Slug = postSlug

		archived, err = archiveActive(ctx, tx, post.AuthorID)
		if err != nil {
			return err
		}

		created, err = tx.Create(ctx, post)
		return err
	})
	if err != nil {
		if model.IsKind(err, model.KindConflict) {
			s.metrics.PublishConflict()
		}
		return nil, internal(s.logger, err, "failed to publish post for user(%s)", post.AuthorID.String())
	}

	s.metrics.PostPublished(archived != nil)
	s.invalidate(ctx, post.AuthorID, created, archived)
	s.notifyPublished(ctx, created)

	return created, nil
}

func (s *postService) createDraft(ctx context.Context, post model.Post) (*model.Post, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var created *model.Post
	err := s.withSlugRetry(ctx, post.AuthorID, func(tx repository.PostTx) error {
		if err := tx.LockAuthor(ctx, post.AuthorID); err != nil {
			return err
		}

		postSlug, err := s.uniqueSlug(ctx, tx, post.Title)
		if err != nil {
			return err
		}
		post.Slug = postSlug

		created, err = tx.Create(ctx, post)
		return err
	})
	if err != nil {
		return nil, internal(s.logger, err, "failed to create draft for user(%s)", post.AuthorID.String())
	}

	s.invalidateHistory(ctx, post.AuthorID)
	return created, nil
}

func (s *postService) Update(ctx context.Context, authorID uuid.UUID, postID int64, req dto.UpdatePostRequest) (*model.Post, error) {
	if authorID == uuid.Nil {
		return nil, model.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	upd := req.ToModel()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		updated  *model.Post
		archived *model.Post
		promoted bool
	)
	err := s.repo.Post.WithTx(ctx, func(tx repository.PostTx) error {
		if err := tx.LockAuthor(ctx, authorID); err != nil {
			return err
		}

		current, err := tx.FindByID(ctx, postID)
		if err != nil {
			return err
		}
		if current.AuthorID != authorID {
			return model.ErrForbidden
		}
		if current.IsArchived() {
			return model.ErrPostNotActive
		}

		next := upd.Apply(*current, s.now())
		if current.Status == model.PostStatusPublished && next.Status == model.PostStatusDraft {
			return model.NewValidationError(map[string]string{"status": "a published post cannot be moved back to draft"})
		}
		if next.Status == model.PostStatusPublished && strings.TrimSpace(next.Content) == "" {
			return errContentRequired()
		}

		if current.Status == model.PostStatusDraft && next.Status == model.PostStatusPublished {
			publishedAt := s.now()
			upd.PublishedAt = &publishedAt
			promoted = true

			archived, err = archiveActive(ctx, tx, authorID)
			if err != nil {
				return err
			}
		}

		updated, err = tx.Update(ctx, postID, upd)
		return err
	})
	if err != nil {
		if promoted && model.IsKind(err, model.KindConflict) {
			s.metrics.PublishConflict()
		}
		return nil, internal(s.logger, err, "failed to update post(%d)", postID)
	}

	s.invalidate(ctx, authorID, updated, archived)
	if promoted {
		s.metrics.PostPublished(archived != nil)
		s.notifyPublished(ctx, updated)
	}

	return updated, nil
}

func (s *postService) Delete(ctx context.Context, authorID uuid.UUID, postID int64) error {
	if authorID == uuid.Nil {
		return model.ErrUnauthorized
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var deleted *model.Post
	err := s.repo.Post.WithTx(ctx, func(tx repository.PostTx) error {
		post, err := tx.FindByID(ctx, postID)
		if err != nil {
			return err
		}
		if post.AuthorID != authorID {
			return model.ErrForbidden
		}
		deleted = post
		return tx.Delete(ctx, postID)
	})
	if err != nil {
		return internal(s.logger, err, "failed to delete post(%d)", postID)
	}

	s.invalidate(ctx, authorID, deleted)
	return nil
}

func (s *postService) FindActive(ctx context.Context, authorID uuid.UUID) (*model.Post, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	post, err := s.repo.Post.FindActive(ctx, authorID)
	if err != nil {
		return nil, internal(s.logger, err, "failed to find active post of user(%s)", authorID.String())
	}
	return post, nil
}

func (s *postService) FindActiveByUsername(ctx context.Context, username string) (*model.FullPost, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, model.NewValidationError(map[string]string{"username": "Username is required"})
	}

	key := redisrepo.ActivePostKey(username)
	if cached, ok := getCached[model.FullPost](ctx, s.cache, key); ok {
		return cached, nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.FindByUsername(ctx, username)
	if err != nil {
		return nil, internal(s.logger, err, "failed to find user(%s)", username)
	}

	post, err := s.repo.Post.FindActive(ctx, user.ID)
	if err != nil {
		return nil, internal(s.logger, err, "failed to find active post of user(%s)", username)
	}

	full := &model.FullPost{Post: *post, Author: user.Author()}
	s.cache.set(ctx, key, full)

	return full, nil
}

// FindBySlug returns published posts only, archived ones included.
func (s *postService) FindBySlug(ctx context.Context, postSlug string) (*model.FullPost, error) {
	key := redisrepo.PostSlugKey(postSlug)
	if cached, ok := getCached[model.FullPost](ctx, s.cache, key); ok {
		return cached, nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	post, err := s.repo.Post.FindBySlug(ctx, postSlug)
	if err != nil {
		return nil, internal(s.logger, err, "failed to find post by slug(%s)", postSlug)
	}
	if post.Status != model.PostStatusPublished {
		return nil, model.ErrPostNotFound
	}

	s.cache.set(ctx, key, post)
	return post, nil
}

func (s *postService) ListActive(ctx context.Context, req dto.ListPostsRequest) (*dto.FeedResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := redisrepo.FeedKey(req.Page, req.PageSize)
	if cached, ok := getCached[dto.FeedResponse](ctx, s.cache, key); ok {
		return cached, nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	// One extra row tells whether another page exists.
	posts, err := s.repo.Post.FindActivePaginated(ctx, req.PageSize+1, req.Offset())
	if err != nil {
		return nil, internal(s.logger, err, "failed to list feed page(%d)", req.Page)
	}

	feed := &dto.FeedResponse{
		Posts:    make([]*model.FullPost, 0, req.PageSize),
		Page:     req.Page,
		PageSize: req.PageSize,
		HasMore:  len(posts) > req.PageSize,
	}
	if feed.HasMore {
		posts = posts[:req.PageSize]
	}
	feed.Posts = append(feed.Posts, posts...)

	s.cache.set(ctx, key, feed)
	return feed, nil
}

func (s *postService) FindAuthorHistory(ctx context.Context, authorID uuid.UUID, req dto.ListPostsRequest) (*dto.PostsResponse, error) {
	if authorID == uuid.Nil {
		return nil, model.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := redisrepo.HistoryKey(authorID.String(), req.Page, req.PageSize)
	posts, ok := getCachedMany[model.Post](ctx, s.cache, key)
	if !ok {
		ctx, cancel := withTimeout(ctx, s.timeout)
		defer cancel()

		var err error
		posts, err = s.repo.Post.FindAuthorPosts(ctx, authorID, req.PageSize+1, req.Offset())
		if err != nil {
			return nil, internal(s.logger, err, "failed to find posts of user(%s)", authorID.String())
		}
		s.cache.set(ctx, key, posts)
	}

	resp := &dto.PostsResponse{
		Posts:    make([]*model.Post, 0, req.PageSize),
		Page:     req.Page,
		PageSize: req.PageSize,
		HasMore:  len(posts) > req.PageSize,
	}
	if resp.HasMore {
		posts = posts[:req.PageSize]
	}
	resp.Posts = append(resp.Posts, posts...)

	return resp, nil
}

// invalidate drops every cached read a write to the author's posts can
// make stale. It runs after commit and only logs failures.
func (s *postService) invalidate(ctx context.Context, authorID uuid.UUID, posts ...*model.Post) {
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	keys := make([]string, 0, len(posts)+1)
	if user, err := s.repo.User.FindByID(ctx, authorID); err == nil {
		keys = append(keys, redisrepo.ActivePostKey(user.Username))
	} else {
		s.logger.Sugar().Errorf("failed to find user(%s) for cache invalidation: %s", authorID.String(), err.Error())
	}
	for _, p := range posts {
		if p != nil {
			keys = append(keys, redisrepo.PostSlugKey(p.Slug))
		}
	}

	s.cache.del(ctx, keys...)
	s.cache.delPattern(ctx, redisrepo.FEED_PATTERN, redisrepo.HistoryPattern(authorID.String()))
}

func (s *postService) invalidateHistory(ctx context.Context, authorID uuid.UUID) {
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.cache.delPattern(ctx, redisrepo.HistoryPattern(authorID.String()))
}

func (s *postService) notifyPublished(ctx context.Context, post *model.Post) {
	if s.publisher == nil || post == nil {
		return
	}

	ctx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	msg := dto.MQPostPublishedMsg{
		PostID:    post.ID,
		UserID:    post.AuthorID,
		PostTitle: post.Title,
		Slug:      post.Slug,
	}
	if post.PublishedAt != nil {
		msg.PublishedAt = *post.PublishedAt
	}

	if err := s.publisher.PublishJSON(ctx, rabbitmq.POST_PUBLISHED_QUEUE, msg); err != nil {
		s.logger.Sugar().Errorf("failed to publish post(%d) to queue(%s): %s", post.ID, rabbitmq.POST_PUBLISHED_QUEUE, err.Error())
		s.metrics.Event(rabbitmq.POST_PUBLISHED_QUEUE, "failed")
		return
	}
	s.metrics.Event(rabbitmq.POST_PUBLISHED_QUEUE, "sent")
}
