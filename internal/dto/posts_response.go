package dto

import (
	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/BloggingApp/currents-service/pkg/utils"
)

type GetPostResponse struct {
	Post *model.FullPost `json:"post"`
}

type PostResponse struct {
	Post *model.Post `json:"post"`
}

type FeedResponse struct {
	Posts    []*model.FullPost `json:"posts"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	HasMore  bool              `json:"hasMore"`
}

type PostsResponse struct {
	Posts    []*model.Post `json:"posts"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	HasMore  bool          `json:"hasMore"`
}

const (
	previewTitleLimit   = 60
	previewExcerptLimit = 120
)

// PostPreview holds the plain strings rendered into link previews.
type PostPreview struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	AuthorName string `json:"authorName"`
	Excerpt    string `json:"excerpt"`
}

func NewPostPreview(post *model.FullPost) PostPreview {
	excerpt := post.Content
	if post.Excerpt != nil && *post.Excerpt != "" {
		excerpt = *post.Excerpt
	}

	return PostPreview{
		Title:      utils.Truncate(post.Title, previewTitleLimit, previewTitleLimit-3),
		Author:     post.Author.Username,
		AuthorName: post.Author.Name(),
		Excerpt:    utils.Truncate(excerpt, previewExcerptLimit, previewExcerptLimit-3),
	}
}
