package dto

import (
	"time"

	"github.com/google/uuid"
)

type MQPostPublishedMsg struct {
	PostID      int64     `json:"post_id"`
	UserID      uuid.UUID `json:"user_id"`
	PostTitle   string    `json:"post_title"`
	Slug        string    `json:"slug"`
	PublishedAt time.Time `json:"published_at"`
}

type MQUserDeletedMsg struct {
	UserID uuid.UUID `json:"user_id"`
}
