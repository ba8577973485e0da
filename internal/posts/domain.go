package posts

import (
	"time"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
)

// TagRef is a tag attached to a post.
type TagRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Post is a stored article.
type Post struct {
	ID          int64
	AuthorID    int64
	CategoryID  int64
	Status      policy.PostStatus
	Title       string
	Description string
	Content     string
	ImageURL    string
	Tags        []TagRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snapshot returns the view of p the policy decides on.
func (p Post) Snapshot() policy.Post {
	return policy.Post{ID: p.ID, AuthorID: p.AuthorID, Status: p.Status}
}

// PostResponse is the public JSON shape of a post.
type PostResponse struct {
	ID          int64     `json:"id"`
	AuthorID    int64     `json:"author_id"`
	CategoryID  int64     `json:"category_id"`
	Status      string    `json:"status"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url,omitempty"`
	Tags        []TagRef  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest is the payload of POST /posts.
type CreateRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=200"`
	Description string  `json:"description" validate:"max=500"`
	Content     string  `json:"content" validate:"required"`
	CategoryID  int64   `json:"category_id" validate:"required,gt=0"`
	TagIDs      []int64 `json:"tag_ids" validate:"omitempty,dive,gt=0"`
}

// UpdateRequest is a general post update. Nil fields are left untouched;
// a non-nil TagIDs replaces the whole tag set. Status is accepted only so
// the request can be refused: it must go through the status route.
type UpdateRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Content     *string  `json:"content" validate:"omitempty,min=1"`
	CategoryID  *int64   `json:"category_id" validate:"omitempty,gt=0"`
	TagIDs      *[]int64 `json:"tag_ids" validate:"omitempty,dive,gt=0"`
	Status      *string  `json:"status"`
}

// Fields reports which field groups the request touches.
func (r UpdateRequest) Fields() policy.PostFields {
	var fields []policy.PostField
	if r.Title != nil {
		fields = append(fields, policy.PostFieldTitle)
	}
	if r.Description != nil {
		fields = append(fields, policy.PostFieldDescription)
	}
	if r.Content != nil {
		fields = append(fields, policy.PostFieldContent)
	}
	if r.CategoryID != nil {
		fields = append(fields, policy.PostFieldCategory)
	}
	if r.TagIDs != nil {
		fields = append(fields, policy.PostFieldTags)
	}
	if r.Status != nil {
		fields = append(fields, policy.PostFieldStatus)
	}
	return policy.NewPostFields(fields...)
}

// StatusRequest is the payload of PATCH /posts/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft pending_review published archived"`
}

// Changes is the set of column updates applied to a post row.
type Changes struct {
	Title       *string
	Description *string
	Content     *string
	CategoryID  *int64
	ImageURL    *string
}

// Empty reports whether no column changes.
func (c Changes) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Content == nil && c.CategoryID == nil && c.ImageURL == nil
}

// Apply copies the non-nil changes onto p.
func (c Changes) Apply(p *Post) {
	if c.Title != nil {
		p.Title = *c.Title
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Content != nil {
		p.Content = *c.Content
	}
	if c.CategoryID != nil {
		p.CategoryID = *c.CategoryID
	}
	if c.ImageURL != nil {
		p.ImageURL = *c.ImageURL
	}
}

// ListFilter narrows a post listing. Visibility is always set by the
// service from the acting user and cannot be widened by query parameters.
type ListFilter struct {
	Status     policy.PostStatus
	CategoryID int64
	TagID      int64
	AuthorID   int64
	Visibility policy.Visibility
	Page       shared.PageRequest
}

// Contact is where status-change emails go.
type Contact struct {
	Username string
	Email    string
	Status   policy.AccountStatus
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
