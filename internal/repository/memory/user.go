package memory

import (
	"context"
	"fmt"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/google/uuid"
)

var _ repository.User = (*UserRepo)(nil)

type UserRepo struct {
	db *db
}

func (r *UserRepo) Create(ctx context.Context, user model.CachedUser) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[user.ID]; ok {
		return nil
	}
	if r.usernameTaken(user.Username, user.ID) {
		return model.Conflict(errUsernameUsed)
	}

	r.db.users[user.ID] = &user
	return nil
}

func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if err := repository.ValidateUserUpdates(updates); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.users[id]
	if !ok {
		return model.ErrUserNotFound
	}

	next := *user
	for field, value := range updates {
		switch field {
		case "username":
			username, ok := value.(string)
			if !ok || username == "" {
				return model.NewValidationError(map[string]string{field: "username must be a non-empty string"})
			}
			if r.usernameTaken(username, id) {
				return model.Conflict(errUsernameUsed)
			}
			next.Username = username
		case "display_name":
			s, err := optionalString(field, value)
			if err != nil {
				return err
			}
			next.DisplayName = s
		case "avatar_url":
			s, err := optionalString(field, value)
			if err != nil {
				return err
			}
			next.AvatarURL = s
		}
	}

	r.db.users[id] = &next
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CachedUser, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	user, ok := r.db.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.CachedUser, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, user := range r.db.users {
		if user.Username == username {
			u := *user
			return &u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(r.db.users, id)

	for postID, p := range r.db.posts {
		if p.AuthorID == id {
			delete(r.db.posts, postID)
		}
	}
	return nil
}

func (r *UserRepo) usernameTaken(username string, except uuid.UUID) bool {
	for id, user := range r.db.users {
		if id != except && user.Username == username {
			return true
		}
	}
	return false
}

func optionalString(field string, value interface{}) (*string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	case *string:
		return v, nil
	default:
		return nil, model.NewValidationError(map[string]string{field: fmt.Sprintf("unexpected type %T", value)})
	}
}
