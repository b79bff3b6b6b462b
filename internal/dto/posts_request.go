package dto

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/BloggingApp/currents-service/internal/model"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var statuses = []interface{}{string(model.PostStatusDraft), string(model.PostStatusPublished)}

type CreatePostRequest struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Excerpt *string `json:"excerpt"`
	Status  *string `json:"status"`
}

func (r CreatePostRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.Required.Error("title is required"),
			validation.RuneLength(1, model.MaxTitleLength).Error("title must be at most 255 characters"),
		),
		validation.Field(&r.Excerpt,
			validation.RuneLength(0, model.MaxExcerptLength).Error("excerpt must be at most 500 characters"),
		),
		validation.Field(&r.Status,
			validation.In(statuses...).Error("status must be one of: draft, published"),
		),
	))
}

// PostStatus is the requested status, published when omitted.
func (r CreatePostRequest) PostStatus() model.PostStatus {
	if r.Status == nil || *r.Status == "" {
		return model.PostStatusPublished
	}
	return model.PostStatus(*r.Status)
}

type UpdatePostRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Excerpt *string `json:"excerpt"`
	Status  *string `json:"status"`
}

func (r UpdatePostRequest) Validate() error {
	if r.Title == nil && r.Content == nil && r.Excerpt == nil && r.Status == nil {
		return model.NewValidationError(map[string]string{"request": "nothing to update"})
	}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		r.Title = &title
	}
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.When(r.Title != nil,
				validation.Required.Error("title is required"),
				validation.RuneLength(1, model.MaxTitleLength).Error("title must be at most 255 characters"),
			),
		),
		validation.Field(&r.Excerpt,
			validation.RuneLength(0, model.MaxExcerptLength).Error("excerpt must be at most 500 characters"),
		),
		validation.Field(&r.Status,
			validation.In(statuses...).Error("status must be one of: draft, published"),
		),
	))
}

func (r UpdatePostRequest) ToModel() model.PostUpdate {
	upd := model.PostUpdate{
		Title:   r.Title,
		Content: r.Content,
		Excerpt: r.Excerpt,
	}
	if r.Status != nil && *r.Status != "" {
		status := model.PostStatus(*r.Status)
		upd.Status = &status
	}
	return upd
}

type ListPostsRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// ParseListPostsQuery coerces raw query values. Empty values take the
// defaults, anything else must parse and be in range.
func ParseListPostsQuery(page, pageSize string) (ListPostsRequest, error) {
	req := ListPostsRequest{Page: DefaultPage, PageSize: DefaultPageSize}
	fields := make(map[string]string)

	if page = strings.TrimSpace(page); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil {
			fields["page"] = "page must be an integer"
		}
		req.Page = n
	}
	if pageSize = strings.TrimSpace(pageSize); pageSize != "" {
		n, err := strconv.Atoi(pageSize)
		if err != nil {
			fields["pageSize"] = "pageSize must be an integer"
		}
		req.PageSize = n
	}
	if len(fields) > 0 {
		return req, model.NewValidationError(fields)
	}

	return req, req.Validate()
}

func (r ListPostsRequest) Validate() error {
	// Offset must stay representable.
	maxPage := math.MaxInt
	if r.PageSize > 0 {
		maxPage = math.MaxInt / r.PageSize
	}

	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Page,
			validation.Required.Error("page must be greater than or equal to 1"),
			validation.Min(1).Error("page must be greater than or equal to 1"),
			validation.Max(maxPage).Error("page is out of range"),
		),
		validation.Field(&r.PageSize,
			validation.Required.Error("pageSize must be between 1 and 100"),
			validation.Min(1).Error("pageSize must be between 1 and 100"),
			validation.Max(MaxPageSize).Error("pageSize must be between 1 and 100"),
		),
	))
}

func (r ListPostsRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make(map[string]string, len(errs))
		for field, fieldErr := range errs {
			fields[field] = fieldErr.Error()
		}
		return model.NewValidationError(fields)
	}

	return model.NewValidationError(map[string]string{"request": err.Error()})
}
