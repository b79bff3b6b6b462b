// Package memory keeps posts and users in process memory. It enforces the
// same constraints as the postgres schema: unique slugs, one active post per
// author and cascading user deletes.
package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/google/uuid"
)

type db struct {
	mu     sync.RWMutex
	nextID int64
	posts  map[int64]*model.Post
	users  map[uuid.UUID]*model.CachedUser
	now    func() time.Time
}

type Store struct {
	Post *PostRepo
	User *UserRepo
}

func New() *Store {
	return NewWithClock(func() time.Time { return time.Now().UTC() })
}

// NewWithClock is New with a custom time source.
func NewWithClock(now func() time.Time) *Store {
	d := &db{
		posts: make(map[int64]*model.Post),
		users: make(map[uuid.UUID]*model.CachedUser),
		now:   now,
	}
	return &Store{
		Post: &PostRepo{db: d},
		User: &UserRepo{db: d},
	}
}

// undoLog collects compensations for writes made inside WithTx.
type undoLog struct {
	steps []func()
}

func (u *undoLog) add(step func()) {
	if u != nil {
		u.steps = append(u.steps, step)
	}
}

func (u *undoLog) rollback() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
	u.steps = nil
}

var (
	errActiveExists = errors.New("duplicate key value violates unique constraint \"posts_one_active_per_author_idx\"")
	errSlugExists   = fmt.Errorf("%w: duplicate key value violates unique constraint \"posts_slug_key\"", model.ErrSlugTaken)
	errUsernameUsed = errors.New("duplicate key value violates unique constraint \"users_username_key\"")
)

func clonePost(p *model.Post) *model.Post {
	c := *p
	return &c
}

func (d *db) fullPost(p *model.Post) *model.FullPost {
	full := &model.FullPost{Post: *p}
	if u, ok := d.users[p.AuthorID]; ok {
		full.Author = u.Author()
	}
	return full
}

func (d *db) findByID(id int64) (*model.Post, error) {
	p, ok := d.posts[id]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	return clonePost(p), nil
}

func (d *db) activeOf(authorID uuid.UUID) *model.Post {
	for _, p := range d.posts {
		if p.AuthorID == authorID && p.IsActive() {
			return p
		}
	}
	return nil
}

func (d *db) findActive(authorID uuid.UUID) (*model.Post, error) {
	p := d.activeOf(authorID)
	if p == nil {
		return nil, model.ErrNoActivePost
	}
	return clonePost(p), nil
}

func (d *db) findBySlug(slug string) (*model.FullPost, error) {
	for _, p := range d.posts {
		if p.Slug == slug {
			return d.fullPost(p), nil
		}
	}
	return nil, model.ErrPostNotFound
}

func feedTime(p *model.Post) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

func (d *db) findActivePaginated(limit int, offset int) []*model.FullPost {
	active := make([]*model.Post, 0)
	for _, p := range d.posts {
		if p.IsActive() {
			active = append(active, p)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if ta, tb := feedTime(a), feedTime(b); !ta.Equal(tb) {
			return ta.After(tb)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	page := paginate(active, limit, offset)
	posts := make([]*model.FullPost, 0, len(page))
	for _, p := range page {
		posts = append(posts, d.fullPost(p))
	}
	return posts
}

func (d *db) findAuthorPosts(authorID uuid.UUID, limit int, offset int) []*model.Post {
	own := make([]*model.Post, 0)
	for _, p := range d.posts {
		if p.AuthorID == authorID {
			own = append(own, p)
		}
	}

	sort.Slice(own, func(i, j int) bool {
		if !own[i].CreatedAt.Equal(own[j].CreatedAt) {
			return own[i].CreatedAt.After(own[j].CreatedAt)
		}
		return own[i].ID > own[j].ID
	})

	page := paginate(own, limit, offset)
	posts := make([]*model.Post, 0, len(page))
	for _, p := range page {
		posts = append(posts, clonePost(p))
	}
	return posts
}

func paginate(posts []*model.Post, limit int, offset int) []*model.Post {
	if offset < 0 || offset >= len(posts) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[offset:end]
}

func (d *db) slugExists(slug string) bool {
	for _, p := range d.posts {
		if p.Slug == slug {
			return true
		}
	}
	return false
}

func (d *db) create(post model.Post, undo *undoLog) (*model.Post, error) {
	if err := post.Validate(); err != nil {
		return nil, err
	}
	if _, ok := d.users[post.AuthorID]; !ok {
		return nil, model.ErrUserNotFound
	}
	if d.slugExists(post.Slug) {
		return nil, model.Conflict(errSlugExists)
	}

	now := d.now()
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

	if post.IsActive() && d.activeOf(post.AuthorID) != nil {
		return nil, model.Conflict(errActiveExists)
	}

	d.nextID++
	post.ID = d.nextID
	d.posts[post.ID] = &post
	undo.add(func() { delete(d.posts, post.ID) })

	return clonePost(&post), nil
}

func (d *db) archive(id int64, undo *undoLog) error {
	p, ok := d.posts[id]
	if !ok {
		return model.ErrPostNotFound
	}
	if p.ArchivedAt != nil {
		return nil
	}

	prev := *p
	now := d.now()
	p.ArchivedAt = &now
	if now.After(p.UpdatedAt) {
		p.UpdatedAt = now
	}
	undo.add(func() { *p = prev })
	return nil
}

func (d *db) update(id int64, upd model.PostUpdate, undo *undoLog) (*model.Post, error) {
	p, ok := d.posts[id]
	if !ok {
		return nil, model.ErrPostNotFound
	}

	next := upd.Apply(*p, d.now())
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if next.IsActive() && !p.IsActive() {
		if other := d.activeOf(p.AuthorID); other != nil && other.ID != p.ID {
			return nil, model.Conflict(errActiveExists)
		}
	}

	prev := *p
	*p = next
	undo.add(func() { *p = prev })
	return clonePost(p), nil
}

func (d *db) delete(id int64, undo *undoLog) error {
	p, ok := d.posts[id]
	if !ok {
		return model.ErrPostNotFound
	}
	delete(d.posts, id)
	undo.add(func() { d.posts[id] = p })
	return nil
}
