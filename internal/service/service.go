package service

import (
	"context"
	"net/http"
	"time"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/BloggingApp/currents-service/internal/metrics"
	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Publisher interface {
	PublishJSON(ctx context.Context, queue string, v any) error
}

type Consumer interface {
	Consume(queue string) (<-chan amqp.Delivery, error)
}

// Broker is implemented by *rabbitmq.MQConn.
type Broker interface {
	Publisher
	Consumer
}

type Options struct {
	// StoreTimeout bounds every store operation.
	StoreTimeout   time.Duration
	CacheTTL       time.Duration
	UserServiceAPI string
	HTTPClient     *http.Client
}

type Post interface {
	// Create stores a draft, or publishes when the requested status is
	// published.
	Create(ctx context.Context, authorID uuid.UUID, req dto.CreatePostRequest) (*model.Post, error)
	// Publish makes a new post the author's only active post, archiving the
	// previous one in the same unit of work.
	Publish(ctx context.Context, authorID uuid.UUID, title string, content string, excerpt *string) (*model.Post, error)
	Update(ctx context.Context, authorID uuid.UUID, postID int64, req dto.UpdatePostRequest) (*model.Post, error)
	Delete(ctx context.Context, authorID uuid.UUID, postID int64) error
	FindActive(ctx context.Context, authorID uuid.UUID) (*model.Post, error)
	FindActiveByUsername(ctx context.Context, username string) (*model.FullPost, error)
	FindBySlug(ctx context.Context, slug string) (*model.FullPost, error)
	ListActive(ctx context.Context, req dto.ListPostsRequest) (*dto.FeedResponse, error)
	FindAuthorHistory(ctx context.Context, authorID uuid.UUID, req dto.ListPostsRequest) (*dto.PostsResponse, error)
}

type UserCache interface {
	// CreateOrGet returns the cached profile of an authenticated user,
	// creating it on first sight.
	CreateOrGet(ctx context.Context, claimed model.CachedUser, accessToken string) (*model.CachedUser, error)
	Create(ctx context.Context, user model.CachedUser) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CachedUser, error)
	FindByUsername(ctx context.Context, username string) (*model.CachedUser, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	// Delete removes the user and every post they wrote.
	Delete(ctx context.Context, id uuid.UUID) error
	StartConsume(ctx context.Context)
}

type Service struct {
	Post      Post
	UserCache UserCache
}

func New(logger *zap.Logger, repo *repository.Repository, broker Broker, m *metrics.Metrics, opts Options) *Service {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	c := &cache{
		logger:  logger,
		store:   repo.Cache,
		ttl:     opts.CacheTTL,
		metrics: m,
	}

	var (
		publisher Publisher
		consumer  Consumer
	)
	if broker != nil {
		publisher = broker
		consumer = broker
	}

	return &Service{
		Post:      newPostService(logger, repo, c, publisher, m, opts),
		UserCache: newUserCacheService(logger, repo, c, consumer, m, opts),
	}
}

// StartConsumeAll blocks until ctx is done.
func (s *Service) StartConsumeAll(ctx context.Context) {
	s.UserCache.StartConsume(ctx)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
