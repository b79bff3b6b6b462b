package memory

import (
	"context"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/google/uuid"
)

var _ repository.Post = (*PostRepo)(nil)

type PostRepo struct {
	db *db
}

func (r *PostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.findByID(id)
}

func (r *PostRepo) FindActive(ctx context.Context, authorID uuid.UUID) (*model.Post, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.findActive(authorID)
}

func (r *PostRepo) FindBySlug(ctx context.Context, slug string) (*model.FullPost, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.findBySlug(slug)
}

func (r *PostRepo) FindActivePaginated(ctx context.Context, limit int, offset int) ([]*model.FullPost, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.findActivePaginated(limit, offset), nil
}

func (r *PostRepo) FindAuthorPosts(ctx context.Context, authorID uuid.UUID, limit int, offset int) ([]*model.Post, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.findAuthorPosts(authorID, limit, offset), nil
}

func (r *PostRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.slugExists(slug), nil
}

func (r *PostRepo) Create(ctx context.Context, post model.Post) (*model.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.create(post, nil)
}

func (r *PostRepo) Archive(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.archive(id, nil)
}

func (r *PostRepo) Update(ctx context.Context, id int64, upd model.PostUpdate) (*model.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.update(id, upd, nil)
}

func (r *PostRepo) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.delete(id, nil)
}

func (r *PostRepo) LockAuthor(ctx context.Context, authorID uuid.UUID) error {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if _, ok := r.db.users[authorID]; !ok {
		return model.ErrUserNotFound
	}
	return nil
}

// WithTx holds the store's write lock for the whole of fn, so units of work
// are serialized. Writes are undone if fn or the context fails.
func (r *PostRepo) WithTx(ctx context.Context, fn func(tx repository.PostTx) error) error {
	if err := ctx.Err(); err != nil {
		return model.Unavailable(err)
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx := &postTx{db: r.db, undo: &undoLog{}}
	if err := fn(tx); err != nil {
		tx.undo.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.undo.rollback()
		return model.Unavailable(err)
	}
	return nil
}

// postTx runs with the write lock already held.
type postTx struct {
	db   *db
	undo *undoLog
}

func (t *postTx) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	return t.db.findByID(id)
}

func (t *postTx) FindActive(ctx context.Context, authorID uuid.UUID) (*model.Post, error) {
	return t.db.findActive(authorID)
}

func (t *postTx) FindBySlug(ctx context.Context, slug string) (*model.FullPost, error) {
	return t.db.findBySlug(slug)
}

func (t *postTx) FindActivePaginated(ctx context.Context, limit int, offset int) ([]*model.FullPost, error) {
	return t.db.findActivePaginated(limit, offset), nil
}

func (t *postTx) FindAuthorPosts(ctx context.Context, authorID uuid.UUID, limit int, offset int) ([]*model.Post, error) {
	return t.db.findAuthorPosts(authorID, limit, offset), nil
}

func (t *postTx) SlugExists(ctx context.Context, slug string) (bool, error) {
	return t.db.slugExists(slug), nil
}

func (t *postTx) Create(ctx context.Context, post model.Post) (*model.Post, error) {
	return t.db.create(post, t.undo)
}

func (t *postTx) Archive(ctx context.Context, id int64) error {
	return t.db.archive(id, t.undo)
}

func (t *postTx) Update(ctx context.Context, id int64, upd model.PostUpdate) (*model.Post, error) {
	return t.db.update(id, upd, t.undo)
}

func (t *postTx) Delete(ctx context.Context, id int64) error {
	return t.db.delete(id, t.undo)
}

func (t *postTx) LockAuthor(ctx context.Context, authorID uuid.UUID) error {
	if _, ok := t.db.users[authorID]; !ok {
		return model.ErrUserNotFound
	}
	return nil
}

func (t *postTx) WithTx(ctx context.Context, fn func(tx repository.PostTx) error) error {
	return fn(t)
}
