package postgres

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ repository.User = (*userRepo)(nil)

type userRepo struct {
	db DBTX
}

func newUserRepo(db DBTX) *userRepo {
	return &userRepo{
		db: db,
	}
}

func (r *userRepo) Create(ctx context.Context, user model.CachedUser) error {
	_, err := r.db.Exec(
		ctx,
		"INSERT INTO users(id, username, display_name, avatar_url) VALUES($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING",
		user.ID,
		user.Username,
		user.DisplayName,
		user.AvatarURL,
	)
	return mapError(err)
}

func (r *userRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if err := repository.ValidateUserUpdates(updates); err != nil {
		return err
	}

	columns := make([]string, 0, len(updates))
	for column := range updates {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	query := "UPDATE users SET "
	args := make([]interface{}, 0, len(columns)+1)
	for i, column := range columns {
		query += column + " = $" + strconv.Itoa(i+1) + ", "
		args = append(args, updates[column])
	}
	query = query[:len(query)-2] + " WHERE id = $" + strconv.Itoa(len(args)+1)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) find(ctx context.Context, where string, arg any) (*model.CachedUser, error) {
	var user model.CachedUser
	if err := r.db.QueryRow(
		ctx,
		"SELECT u.id, u.username, u.display_name, u.avatar_url FROM users u WHERE "+where,
		arg,
	).Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.AvatarURL,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, mapError(err)
	}

	return &user, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CachedUser, error) {
	return r.find(ctx, "u.id = $1", id)
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.CachedUser, error) {
	return r.find(ctx, "u.username = $1", username)
}

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
