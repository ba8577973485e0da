package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkpress/inkpress/internal/platform/db"
	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Post, error)
	List(ctx context.Context, filter ListFilter) ([]Post, int, error)
	AuthorContact(ctx context.Context, userID int64) (Contact, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations that run inside a transaction.
type TxRepository interface {
	Create(ctx context.Context, p Post) (Post, error)
	Lock(ctx context.Context, id int64) (*Post, error)
	Update(ctx context.Context, id int64, changes Changes) error
	SetStatus(ctx context.Context, id int64, status policy.PostStatus) error
	ReplaceTags(ctx context.Context, postID int64, tagIDs []int64) error
	CategoryExists(ctx context.Context, id int64) (bool, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository provides PostgreSQL backed persistence for posts.
type Repository struct {
	pool  *pgxpool.Pool
	audit shared.AuditRecorder
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, audit shared.AuditRecorder) *Repository {
	return &Repository{pool: pool, audit: audit}
}

type txRepo struct {
	tx    pgx.Tx
	audit shared.AuditRecorder
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return translate(db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, audit: r.audit})
	}))
}

const postColumns = `p.id, p.author_id, p.category_id, p.status, p.title, p.description, p.content, p.image_url, p.created_at, p.updated_at`

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.CategoryID, &p.Status, &p.Title, &p.Description,
		&p.Content, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Get fetches a post and its tags regardless of visibility.
func (r *Repository) Get(ctx context.Context, id int64) (*Post, error) {
	p, err := scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}
	tags, err := loadTags(ctx, r.pool, []int64{id})
	if err != nil {
		return nil, err
	}
	p.Tags = tags[id]
	return p, nil
}

// visibilityClause renders policy.Visibility as a SQL predicate over the
// posts alias p, appending its parameters to args.
func visibilityClause(v policy.Visibility, args *[]any) string {
	if v.All {
		return ""
	}
	*args = append(*args, policy.PostPublished)
	published := fmt.Sprintf("p.status = $%d", len(*args))
	if v.OwnerID == 0 {
		return published
	}
	*args = append(*args, v.OwnerID)
	return fmt.Sprintf("(%s OR p.author_id = $%d)", published, len(*args))
}

// List returns one page of visible posts matching filter and the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Post, int, error) {
	var (
		where []string
		args  []any
	)
	if clause := visibilityClause(filter.Visibility, &args); clause != "" {
		where = append(where, clause)
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if filter.AuthorID != 0 {
		args = append(args, filter.AuthorID)
		where = append(where, fmt.Sprintf("p.author_id = $%d", len(args)))
	}
	if filter.TagID != 0 {
		args = append(args, filter.TagID)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = p.id AND pt.tag_id = $%d)", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM posts p%s ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d`,
		postColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var (
		out []Post
		ids []int64
	)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return out, total, nil
	}

	tags, err := loadTags(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, total, nil
}

// AuthorContact returns the email address of a post author.
func (r *Repository) AuthorContact(ctx context.Context, userID int64) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `SELECT username, email, status FROM users WHERE id = $1`, userID).Scan(&c.Username, &c.Email, &c.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, shared.ErrNotFound
	}
	return c, err
}

func loadTags(ctx context.Context, q db.Querier, postIDs []int64) (map[int64][]TagRef, error) {
	rows, err := q.Query(ctx, `SELECT pt.post_id, t.id, t.name FROM post_tags pt
JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = ANY($1) ORDER BY t.name`, postIDs)
	if err != nil {
		return nil, fmt.Errorf("load post tags: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]TagRef, len(postIDs))
	for rows.Next() {
		var (
			postID int64
			tag    TagRef
		)
		if err := rows.Scan(&postID, &tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		out[postID] = append(out[postID], tag)
	}
	return out, rows.Err()
}

func (t *txRepo) Create(ctx context.Context, p Post) (Post, error) {
	created, err := scanPost(t.tx.QueryRow(ctx, `INSERT INTO posts AS p (author_id, category_id, status, title, description, content)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+postColumns,
		p.AuthorID, p.CategoryID, p.Status, p.Title, p.Description, p.Content))
	if err != nil {
		return Post{}, translate(err)
	}
	return *created, nil
}

// Lock reads the row FOR UPDATE so concurrent writers serialize on it.
func (t *txRepo) Lock(ctx context.Context, id int64) (*Post, error) {
	return scanPost(t.tx.QueryRow(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Update(ctx context.Context, id int64, c Changes) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if c.Title != nil {
		add("title", *c.Title)
	}
	if c.Description != nil {
		add("description", *c.Description)
	}
	if c.Content != nil {
		add("content", *c.Content)
	}
	if c.CategoryID != nil {
		add("category_id", *c.CategoryID)
	}
	if c.ImageURL != nil {
		add("image_url", *c.ImageURL)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE posts SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) SetStatus(ctx context.Context, id int64, status policy.PostStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE posts SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplaceTags swaps the post's tag set for tagIDs. Unknown tag ids fail
// with a validation error before anything is written.
func (t *txRepo) ReplaceTags(ctx context.Context, postID int64, tagIDs []int64) error {
	tagIDs = dedupe(tagIDs)
	if len(tagIDs) > 0 {
		var known int
		if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM tags WHERE id = ANY($1)`, tagIDs).Scan(&known); err != nil {
			return fmt.Errorf("check tags: %w", err)
		}
		if known != len(tagIDs) {
			return shared.NewValidationError("tag_ids", "references unknown tags")
		}
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("clear post tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO post_tags (post_id, tag_id) SELECT $1, unnest($2::bigint[])`, postID, tagIDs)
	if err != nil {
		return fmt.Errorf("insert post tags: %w", err)
	}
	return nil
}

func (t *txRepo) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	if t.audit == nil {
		return nil
	}
	return t.audit.Record(ctx, t.tx, log)
}

func translate(err error) error {
	if db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: concurrent update, retry the request", shared.ErrConflict)
	}
	if db.IsForeignKeyViolation(err) {
		return shared.NewValidationError("category_id", "does not exist")
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
