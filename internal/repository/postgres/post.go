package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postColumns = "p.id, p.author_id, p.title, p.content, p.excerpt, p.slug, p.status, p.created_at, p.updated_at, p.published_at, p.archived_at"

var _ repository.Post = (*postRepo)(nil)

type postRepo struct {
	logger *zap.Logger
	pool   *pgxpool.Pool
	db     DBTX
}

func newPostRepo(logger *zap.Logger, pool *pgxpool.Pool) *postRepo {
	return &postRepo{
		logger: logger,
		pool:   pool,
		db:     pool,
	}
}

func (r *postRepo) WithTx(ctx context.Context, fn func(tx repository.PostTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Error("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(&postRepo{logger: r.logger, pool: r.pool, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner, extra ...any) (*model.Post, error) {
	var post model.Post
	dest := []any{
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Content,
		&post.Excerpt,
		&post.Slug,
		&post.Status,
		&post.CreatedAt,
		&post.UpdatedAt,
		&post.PublishedAt,
		&post.ArchivedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &post, nil
}

func scanFullPost(row rowScanner) (*model.FullPost, error) {
	var author model.UserAuthor
	post, err := scanPost(row, &author.Username, &author.DisplayName, &author.AvatarURL)
	if err != nil {
		return nil, err
	}
	return &model.FullPost{Post: *post, Author: author}, nil
}

func (r *postRepo) Create(ctx context.Context, post model.Post) (*model.Post, error) {
	if err := post.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.ArchivedAt = nil
	if post.Status == model.PostStatusPublished {
		if post.PublishedAt == nil {
			post.PublishedAt = &now
		}
	} else {
		post.PublishedAt = nil
	}

	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO posts(author_id, title, content, excerpt, slug, status, created_at, updated_at, published_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		post.AuthorID,
		post.Title,
		post.Content,
		post.Excerpt,
		post.Slug,
		post.Status,
		post.CreatedAt,
		post.UpdatedAt,
		post.PublishedAt,
	).Scan(&post.ID); err != nil {
		return nil, mapError(err)
	}

	return &post, nil
}

func (r *postRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx, "SELECT "+postColumns+" FROM posts p WHERE p.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPostNotFound
		}
		return nil, mapError(err)
	}
	return post, nil
}

func (r *postRepo) FindActive(ctx context.Context, authorID uuid.UUID) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRow(
		ctx,
		"SELECT "+postColumns+" FROM posts p WHERE p.author_id = $1 AND p.status = 'published' AND p.archived_at IS NULL",
		authorID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNoActivePost
		}
		return nil, mapError(err)
	}
	return post, nil
}

func (r *postRepo) FindBySlug(ctx context.Context, slug string) (*model.FullPost, error) {
	post, err := scanFullPost(r.db.QueryRow(
		ctx,
		`SELECT `+postColumns+`, u.username, u.display_name, u.avatar_url
		FROM posts p
		JOIN users u ON p.author_id = u.id
		WHERE p.slug = $1`,
		slug,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPostNotFound
		}
		return nil, mapError(err)
	}
	return post, nil
}

func (r *postRepo) FindActivePaginated(ctx context.Context, limit int, offset int) ([]*model.FullPost, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+postColumns+`, u.username, u.display_name, u.avatar_url
		FROM posts p
		JOIN users u ON p.author_id = u.id
		WHERE p.status = 'published' AND p.archived_at IS NULL
		ORDER BY COALESCE(p.published_at, p.created_at) DESC, p.created_at DESC, p.id DESC
		LIMIT $1
		OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	posts := make([]*model.FullPost, 0, limit)
	for rows.Next() {
		post, err := scanFullPost(rows)
		if err != nil {
			return nil, mapError(err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return posts, nil
}

func (r *postRepo) FindAuthorPosts(ctx context.Context, authorID uuid.UUID, limit int, offset int) ([]*model.Post, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+postColumns+`
		FROM posts p
		WHERE p.author_id = $1
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2
		OFFSET $3`,
		authorID,
		limit,
		offset,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	posts := make([]*model.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, mapError(err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	return posts, nil
}

func (r *postRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM posts WHERE slug = $1)", slug).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (r *postRepo) Archive(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(
		ctx,
		"UPDATE posts SET archived_at = now(), updated_at = GREATEST(updated_at, now()) WHERE id = $1 AND archived_at IS NULL",
		id,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing changed: either already archived or missing.
	_, err = r.FindByID(ctx, id)
	return err
}

func (r *postRepo) Update(ctx context.Context, id int64, upd model.PostUpdate) (*model.Post, error) {
	current, err := scanPost(r.db.QueryRow(ctx, "SELECT "+postColumns+" FROM posts p WHERE p.id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPostNotFound
		}
		return nil, mapError(err)
	}

	next := upd.Apply(*current, time.Now().UTC())
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if _, err := r.db.Exec(
		ctx,
		`UPDATE posts
		SET title = $1, content = $2, excerpt = $3, status = $4, published_at = $5, updated_at = $6
		WHERE id = $7`,
		next.Title,
		next.Content,
		next.Excerpt,
		next.Status,
		next.PublishedAt,
		next.UpdatedAt,
		id,
	); err != nil {
		return nil, mapError(err)
	}

	return &next, nil
}

func (r *postRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

func (r *postRepo) LockAuthor(ctx context.Context, authorID uuid.UUID) error {
	var id uuid.UUID
	if err := r.db.QueryRow(ctx, "SELECT id FROM users WHERE id = $1 FOR UPDATE", authorID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrUserNotFound
		}
		return mapError(err)
	}
	return nil
}
