package tags

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkpress/inkpress/internal/platform/db"
	"github.com/inkpress/inkpress/internal/shared"
)

// Repository persists tags.
type Repository interface {
	List(ctx context.Context, q shared.ListQuery) ([]Tag, int, error)
	Get(ctx context.Context, id int64) (Tag, error)
	Create(ctx context.Context, tag Tag) (Tag, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (Tag, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const tagColumns = `id, name, description, created_at, updated_at`

func scanTag(row pgx.Row) (Tag, error) {
	var t Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tag{}, shared.ErrNotFound
		}
		return Tag{}, err
	}
	return t, nil
}

func (r *repository) List(ctx context.Context, q shared.ListQuery) ([]Tag, int, error) {
	where := ""
	var args []any
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where = ` WHERE name ILIKE $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tags`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tags: %w", err)
	}

	dir := "ASC"
	if q.SortDir == "desc" {
		dir = "DESC"
	}
	order := "name " + dir
	if q.SortBy == "created_at" {
		order = "created_at " + dir + ", id"
	}
	query := `SELECT ` + tagColumns + ` FROM tags` + where + ` ORDER BY ` + order
	args = append(args, q.Page.Limit())
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, q.Page.Offset())
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Tag, error) {
	return scanTag(r.pool.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, t Tag) (Tag, error) {
	created, err := scanTag(r.pool.QueryRow(ctx,
		`INSERT INTO tags (name, description) VALUES ($1, $2) RETURNING `+tagColumns, t.Name, t.Description))
	return created, translate(err)
}

func (r *repository) Update(ctx context.Context, id int64, req UpdateRequest) (Tag, error) {
	updated, err := scanTag(r.pool.QueryRow(ctx, `UPDATE tags
SET name = COALESCE($2, name), description = COALESCE($3, description), updated_at = now()
WHERE id = $1 RETURNING `+tagColumns, id, req.Name, req.Description))
	return updated, translate(err)
}

// Delete removes the tag; post_tags rows cascade.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: tag already exists", shared.ErrConflict)
	}
	return err
}
