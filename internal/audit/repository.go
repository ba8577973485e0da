package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit rows.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// PGRepository reads audit_logs from Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Window returns at most limit rows after offset, newest first.
func (r *PGRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where, args := whereClause(filters)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`%s %s ORDER BY a.at DESC, a.id DESC LIMIT $%d OFFSET $%d`,
		selectTimeline, where, len(args)-1, len(args))
	return r.query(ctx, query, args)
}

// All returns every row matching filters, newest first.
func (r *PGRepository) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	where, args := whereClause(filters)
	return r.query(ctx, selectTimeline+" "+where+" ORDER BY a.at DESC, a.id DESC", args)
}

const selectTimeline = `SELECT a.id, a.at, COALESCE(a.actor_id, 0), COALESCE(u.username, ''), a.action, a.entity, a.entity_id, a.meta
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id`

func whereClause(f TimelineFilters) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("a.at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		// To is a calendar day; include all of it.
		add("a.at < $%d", f.To.Add(24*time.Hour))
	}
	if f.ActorID != 0 {
		add("a.actor_id = $%d", f.ActorID)
	}
	if f.Entity != "" {
		add("a.entity = $%d", f.Entity)
	}
	if f.EntityID != 0 {
		add("a.entity_id = $%d", f.EntityID)
	}
	if f.Action != "" {
		add("a.action = $%d", f.Action)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (r *PGRepository) query(ctx context.Context, query string, args []any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var out TimelineRow
		var meta []byte
		if err := row.Scan(&out.ID, &out.At, &out.ActorID, &out.ActorName, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &out.Meta); err != nil {
				return TimelineRow{}, fmt.Errorf("audit meta: %w", err)
			}
		}
		return out, nil
	})
}
