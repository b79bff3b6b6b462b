package repository

import (
	"context"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository/redisrepo"
	"github.com/google/uuid"
)

// PostReader is the read side of the post store.
type PostReader interface {
	FindByID(ctx context.Context, id int64) (*model.Post, error)
	// FindActive returns the author's published, non-archived post.
	FindActive(ctx context.Context, authorID uuid.UUID) (*model.Post, error)
	FindBySlug(ctx context.Context, slug string) (*model.FullPost, error)
	// FindActivePaginated orders by published_at, created_at, id, all descending.
	FindActivePaginated(ctx context.Context, limit int, offset int) ([]*model.FullPost, error)
	FindAuthorPosts(ctx context.Context, authorID uuid.UUID, limit int, offset int) ([]*model.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// PostWriter mutates posts. Implementations validate the row before writing
// and enforce slug uniqueness and the single active post per author.
type PostWriter interface {
	Create(ctx context.Context, post model.Post) (*model.Post, error)
	// Archive sets archived_at once. Archiving an archived post is a no-op.
	Archive(ctx context.Context, id int64) error
	Update(ctx context.Context, id int64, upd model.PostUpdate) (*model.Post, error)
	Delete(ctx context.Context, id int64) error
	// LockAuthor serializes writers of one author until the unit of work ends.
	LockAuthor(ctx context.Context, authorID uuid.UUID) error
}

type PostTx interface {
	PostReader
	PostWriter
}

type Post interface {
	PostTx
	// WithTx runs fn in one atomic unit of work: either everything fn wrote
	// is committed or nothing is.
	WithTx(ctx context.Context, fn func(tx PostTx) error) error
}

type User interface {
	Create(ctx context.Context, user model.CachedUser) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CachedUser, error)
	FindByUsername(ctx context.Context, username string) (*model.CachedUser, error)
	// Delete removes the user and, through the store, all of their posts.
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repository struct {
	Post  Post
	User  User
	Cache redisrepo.Default
}

func New(post Post, user User, cache redisrepo.Default) *Repository {
	return &Repository{
		Post:  post,
		User:  user,
		Cache: cache,
	}
}

// UserUpdatableFields are the columns Update accepts.
var UserUpdatableFields = []string{"username", "display_name", "avatar_url"}

func ValidateUserUpdates(updates map[string]interface{}) error {
	allowed := make(map[string]struct{}, len(UserUpdatableFields))
	for _, field := range UserUpdatableFields {
		allowed[field] = struct{}{}
	}

	for field := range updates {
		if _, ok := allowed[field]; !ok {
			return model.NewValidationError(map[string]string{field: "field is not allowed to update"})
		}
	}
	return nil
}
