package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

const (
	MaxTitleLength   = 255
	MaxExcerptLength = 500
)

func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

type Post struct {
	ID          int64      `json:"id"`
	AuthorID    uuid.UUID  `json:"author_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Excerpt     *string    `json:"excerpt"`
	Slug        string     `json:"slug"`
	Status      PostStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at"`
	ArchivedAt  *time.Time `json:"archived_at"`
}

// IsActive reports whether the post is its author's current post.
func (p *Post) IsActive() bool {
	return p.Status == PostStatusPublished && p.ArchivedAt == nil
}

func (p *Post) IsArchived() bool {
	return p.ArchivedAt != nil
}

// Validate checks the stored-row constraints. It is the last line before a
// write reaches the store, request-level validation lives in dto.
func (p *Post) Validate() error {
	fields := make(map[string]string)

	title := strings.TrimSpace(p.Title)
	switch {
	case title == "":
		fields["title"] = "title is required"
	case utf8.RuneCountInString(title) > MaxTitleLength:
		fields["title"] = "title must be at most 255 characters"
	}
	if p.Excerpt != nil && utf8.RuneCountInString(*p.Excerpt) > MaxExcerptLength {
		fields["excerpt"] = "excerpt must be at most 500 characters"
	}
	if !p.Status.Valid() {
		fields["status"] = "status must be one of: draft, published"
	}
	if p.Slug == "" {
		fields["slug"] = "slug must not be empty"
	}

	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

// PostUpdate carries the mutable fields of a post. Nil means unchanged.
type PostUpdate struct {
	Title       *string
	Content     *string
	Excerpt     *string
	Status      *PostStatus
	PublishedAt *time.Time
}

func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Excerpt == nil && u.Status == nil && u.PublishedAt == nil
}

// Apply returns a copy of p with the update applied and UpdatedAt bumped.
func (u PostUpdate) Apply(p Post, now time.Time) Post {
	if u.Title != nil {
		p.Title = strings.TrimSpace(*u.Title)
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Excerpt != nil {
		p.Excerpt = u.Excerpt
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.PublishedAt != nil {
		p.PublishedAt = u.PublishedAt
	}
	if now.Before(p.CreatedAt) {
		now = p.CreatedAt
	}
	p.UpdatedAt = now
	return p
}

type FullPost struct {
	Post
	Author UserAuthor `json:"author"`
}
