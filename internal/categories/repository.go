package categories

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

// Repository persists categories.
type Repository interface {
	List(ctx context.Context, q shared.ListQuery) ([]Category, int, error)
	Get(ctx context.Context, id int64) (Category, error)
	Create(ctx context.Context, category Category) (Category, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (Category, error)
	Delete(ctx context.Context, id int64) error
	// SetImage stores urlPath and returns the image it replaced.
	SetImage(ctx context.Context, id int64, urlPath string) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const categoryColumns = `id, name, description, image_url, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, shared.ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

func (r *repository) List(ctx context.Context, q shared.ListQuery) ([]Category, int, error) {
	where := ""
	var args []any
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where = ` WHERE name ILIKE $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}

	query := `SELECT ` + categoryColumns + ` FROM categories` + where + ` ORDER BY ` + sortOrder(q.SortBy, q.SortDir)
	args = append(args, q.Page.Limit())
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, q.Page.Offset())
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, c Category) (Category, error) {
	created, err := scanCategory(r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING `+categoryColumns,
		c.Name, c.Description))
	return created, translate(err)
}

func (r *repository) Update(ctx context.Context, id int64, req UpdateRequest) (Category, error) {
	updated, err := scanCategory(r.pool.QueryRow(ctx, `UPDATE categories
SET name = COALESCE($2, name), description = COALESCE($3, description), updated_at = now()
WHERE id = $1 RETURNING `+categoryColumns, id, req.Name, req.Description))
	return updated, translate(err)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetImage(ctx context.Context, id int64, urlPath string) (string, error) {
	var previous string
	err := r.pool.QueryRow(ctx, `WITH old AS (SELECT image_url FROM categories WHERE id = $1 FOR UPDATE)
UPDATE categories c SET image_url = $2, updated_at = now() FROM old WHERE c.id = $1 RETURNING old.image_url`,
		id, urlPath).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	return previous, err
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: category name already exists", shared.ErrConflict)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: category is referenced by posts", shared.ErrConflict)
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "created_at":
		return "created_at " + dir + ", id"
	case "id":
		return "id " + dir
	default:
		return "name " + dir + ", id"
	}
}
