package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkpress/inkpress/internal/platform/db"
	"github.com/inkpress/inkpress/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations that run inside a transaction.
type TxRepository interface {
	Create(ctx context.Context, u User) (User, error)
	Lock(ctx context.Context, id int64) (*User, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error)
	Update(ctx context.Context, id int64, changes Changes) (User, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository provides PostgreSQL backed persistence for users.
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

const userColumns = `id, username, email, phone, password_hash, image_url, role, status, verified, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.ImageURL,
		&u.Role, &u.Status, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Get fetches a user by id, deleted accounts included.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// List returns one page of users matching filter together with the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY id LIMIT $%d OFFSET $%d`, userColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func (t *txRepo) Create(ctx context.Context, u User) (User, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO users (username, email, phone, password_hash, role, status, verified)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+userColumns,
		u.Username, u.Email, u.Phone, u.PasswordHash, u.Role, u.Status, u.Verified)
	created, err := scanUser(row)
	if err != nil {
		return User{}, translate(err)
	}
	return *created, nil
}

// Lock reads the row FOR UPDATE so concurrent writers serialize on it.
func (t *txRepo) Lock(ctx context.Context, id int64) (*User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND status <> 'deleted' AND id <> $2)`,
		email, exceptID).Scan(&taken)
	return taken, err
}

func (t *txRepo) UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`,
		username, exceptID).Scan(&taken)
	return taken, err
}

func (t *txRepo) Update(ctx context.Context, id int64, c Changes) (User, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if c.Username != nil {
		add("username", *c.Username)
	}
	if c.Email != nil {
		add("email", *c.Email)
	}
	if c.Phone != nil {
		add("phone", *c.Phone)
	}
	if c.PasswordHash != nil {
		add("password_hash", *c.PasswordHash)
	}
	if c.ImageURL != nil {
		add("image_url", *c.ImageURL)
	}
	if c.Role != nil {
		add("role", *c.Role)
	}
	if c.Status != nil {
		add("status", *c.Status)
	}
	if c.Verified != nil {
		add("verified", *c.Verified)
	}
	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns
	updated, err := scanUser(t.tx.QueryRow(ctx, query, args...))
	if err != nil {
		return User{}, translate(err)
	}
	return *updated, nil
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
	if db.IsUniqueViolation(err) {
		switch db.ConstraintName(err) {
		case "users_username_key":
			return fmt.Errorf("%w: username already taken", shared.ErrConflict)
		case "users_email_key":
			return fmt.Errorf("%w: email already registered", shared.ErrConflict)
		}
		return fmt.Errorf("%w: %s", shared.ErrConflict, db.ConstraintName(err))
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
