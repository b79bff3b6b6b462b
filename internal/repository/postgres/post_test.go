package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRepo connects to CURRENTS_TEST_DATABASE_URL and starts from empty
// tables. Tests are skipped when it is not set.
func newTestRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("CURRENTS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CURRENTS_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE posts, users RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return New(zap.NewNop(), pool)
}

func addUser(t *testing.T, repo *PostgresRepository, username string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, repo.User.Create(context.Background(), model.CachedUser{ID: id, Username: username}))
	return id
}

func published(authorID uuid.UUID, slug string) model.Post {
	return model.Post{
		AuthorID: authorID,
		Title:    "Title " + slug,
		Content:  "content",
		Slug:     slug,
		Status:   model.PostStatusPublished,
	}
}

func TestPostRepo_Constraints(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := addUser(t, repo, "alice")

	first, err := repo.Post.Create(ctx, published(alice, "first"))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = repo.Post.Create(ctx, published(alice, "second"))
	assert.Equal(t, model.KindConflict, model.KindOf(err))

	draft := published(alice, "first")
	draft.Status = model.PostStatusDraft
	_, err = repo.Post.Create(ctx, draft)
	assert.Equal(t, model.KindConflict, model.KindOf(err))

	_, err = repo.Post.Create(ctx, published(uuid.New(), "orphan"))
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	exists, err := repo.Post.SlugExists(ctx, "first")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostRepo_WithTx(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := addUser(t, repo, "alice")

	first, err := repo.Post.Create(ctx, published(alice, "first"))
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = repo.Post.WithTx(ctx, func(tx repository.PostTx) error {
		require.NoError(t, tx.LockAuthor(ctx, alice))
		require.NoError(t, tx.Archive(ctx, first.ID))
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	active, err := repo.Post.FindActive(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	var second *model.Post
	err = repo.Post.WithTx(ctx, func(tx repository.PostTx) error {
		if err := tx.Archive(ctx, first.ID); err != nil {
			return err
		}
		second, err = tx.Create(ctx, published(alice, "second"))
		return err
	})
	require.NoError(t, err)

	active, err = repo.Post.FindActive(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	// Archiving twice is a no-op.
	require.NoError(t, repo.Post.Archive(ctx, first.ID))
	assert.ErrorIs(t, repo.Post.Archive(ctx, 9999), model.ErrPostNotFound)

	assert.ErrorIs(t, repo.Post.LockAuthor(ctx, uuid.New()), model.ErrUserNotFound)
}

func TestPostRepo_FeedAndCascade(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		p, err := repo.Post.Create(ctx, published(addUser(t, repo, name), name))
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	feed, err := repo.Post.FindActivePaginated(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, ids[2], feed[0].ID)
	assert.Equal(t, "c", feed[0].Author.Username)

	feed, err = repo.Post.FindActivePaginated(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, ids[0], feed[0].ID)

	user, err := repo.User.FindByUsername(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, repo.User.Delete(ctx, user.ID))

	_, err = repo.Post.FindByID(ctx, ids[0])
	assert.ErrorIs(t, err, model.ErrPostNotFound)
}

func TestPostRepo_Update(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := addUser(t, repo, "alice")

	post, err := repo.Post.Create(ctx, published(alice, "post"))
	require.NoError(t, err)

	title := "  Renamed  "
	updated, err := repo.Post.Update(ctx, post.ID, model.PostUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "post", updated.Slug)

	empty := " "
	_, err = repo.Post.Update(ctx, post.ID, model.PostUpdate{Title: &empty})
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	require.NoError(t, repo.Post.Delete(ctx, post.ID))
	assert.ErrorIs(t, repo.Post.Delete(ctx, post.ID), model.ErrPostNotFound)
}

func TestUserRepo(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := addUser(t, repo, "alice")
	addUser(t, repo, "bob")

	require.NoError(t, repo.User.Update(ctx, alice, map[string]interface{}{"username": "alicia", "display_name": "Alicia"}))

	user, err := repo.User.FindByID(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alicia", user.Username)
	require.NotNil(t, user.DisplayName)
	assert.Equal(t, "Alicia", *user.DisplayName)

	err = repo.User.Update(ctx, alice, map[string]interface{}{"username": "bob"})
	assert.Equal(t, model.KindConflict, model.KindOf(err))

	err = repo.User.Update(ctx, alice, map[string]interface{}{"email": "x"})
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	assert.ErrorIs(t, repo.User.Update(ctx, uuid.New(), map[string]interface{}{"username": "z"}), model.ErrUserNotFound)
}
