package comments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
)

// Repository persists comments.
type Repository interface {
	PostSnapshot(ctx context.Context, postID int64) (policy.Post, error)
	List(ctx context.Context, postID int64, page shared.PageRequest) ([]Comment, int, error)
	Get(ctx context.Context, postID, id int64) (Comment, error)
	Create(ctx context.Context, c Comment) (Comment, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const commentColumns = `c.id, c.post_id, c.user_id, u.username, c.message, c.created_at, c.updated_at`

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.Message, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, shared.ErrNotFound
		}
		return Comment{}, err
	}
	return c, nil
}

func (r *repository) PostSnapshot(ctx context.Context, postID int64) (policy.Post, error) {
	var p policy.Post
	err := r.pool.QueryRow(ctx, `SELECT id, author_id, status FROM posts WHERE id = $1`, postID).Scan(&p.ID, &p.AuthorID, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.Post{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) List(ctx context.Context, postID int64, page shared.PageRequest) ([]Comment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+commentColumns+` FROM comments c JOIN users u ON u.id = c.user_id
WHERE c.post_id = $1 ORDER BY c.created_at, c.id LIMIT $2 OFFSET $3`, postID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, postID, id int64) (Comment, error) {
	return scanComment(r.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments c JOIN users u ON u.id = c.user_id
WHERE c.post_id = $1 AND c.id = $2`, postID, id))
}

func (r *repository) Create(ctx context.Context, c Comment) (Comment, error) {
	return scanComment(r.pool.QueryRow(ctx, `WITH c AS (
	INSERT INTO comments (post_id, user_id, message) VALUES ($1, $2, $3)
	RETURNING id, post_id, user_id, message, created_at, updated_at
) SELECT `+commentColumns+` FROM c JOIN users u ON u.id = c.user_id`, c.PostID, c.UserID, c.Message))
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
