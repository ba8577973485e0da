// Package comments lets readers discuss published posts.
package comments

import "time"

// Comment is a message left on a post.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest is the payload of POST /posts/{id}/comments.
type CreateRequest struct {
	Message string `json:"message" validate:"required,min=1,max=2000"`
}
