package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/inkpress/inkpress/internal/jobs"
)

const (
	// TaskMediaSweep removes uploaded files no row references any more.
	TaskMediaSweep = "media:sweep"

	defaultSweepMinAge = time.Hour
)

// MediaSweepPayload configures a sweep run.
type MediaSweepPayload struct {
	MinAgeSeconds int  `json:"min_age_seconds"`
	DryRun        bool `json:"dry_run"`
}

// NewMediaSweepTask builds a sweep task.
func NewMediaSweepTask(minAge time.Duration, dryRun bool) (*asynq.Task, error) {
	body, err := json.Marshal(MediaSweepPayload{MinAgeSeconds: int(minAge.Seconds()), DryRun: dryRun})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMediaSweep, body, asynq.Queue(QueueDefault)), nil
}

// MediaReferences lists every media URL path still stored on a row.
type MediaReferences interface {
	ReferencedMedia(ctx context.Context) (map[string]struct{}, error)
}

// PGMediaReferences reads image columns from users, posts and categories.
type PGMediaReferences struct {
	pool *pgxpool.Pool
}

// NewPGMediaReferences constructs a Postgres-backed MediaReferences.
func NewPGMediaReferences(pool *pgxpool.Pool) *PGMediaReferences {
	return &PGMediaReferences{pool: pool}
}

// ReferencedMedia implements MediaReferences.
func (p *PGMediaReferences) ReferencedMedia(ctx context.Context) (map[string]struct{}, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT image_url FROM users WHERE image_url <> ''
		UNION SELECT image_url FROM posts WHERE image_url <> ''
		UNION SELECT image_url FROM categories WHERE image_url <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	refs := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		refs[u] = struct{}{}
	}
	return refs, rows.Err()
}

// MediaSweepJob deletes orphaned uploads. Files younger than the minimum
// age are kept so an upload whose row is still being written survives.
type MediaSweepJob struct {
	refs      MediaReferences
	root      string
	urlPrefix string
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
	now       func() time.Time
}

// NewMediaSweepJob constructs the job.
func NewMediaSweepJob(refs MediaReferences, root, urlPrefix string, logger *slog.Logger, metrics *jobmetrics.Metrics) *MediaSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaSweepJob{
		refs:      refs,
		root:      root,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Handle processes TaskMediaSweep tasks.
func (j *MediaSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskMediaSweep)

	var payload MediaSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
		}
	}
	minAge := time.Duration(payload.MinAgeSeconds) * time.Second
	if minAge <= 0 {
		minAge = defaultSweepMinAge
	}
	removed, err := j.Sweep(ctx, minAge, payload.DryRun)
	if err != nil {
		j.logger.Error("media sweep", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddMediaRemoved(removed)
	j.logger.Info("media sweep finished", slog.Int("removed", removed), slog.Bool("dry_run", payload.DryRun))
	return tracker.End(nil)
}

// Sweep walks the media root and removes unreferenced files older than
// minAge. It returns how many files were (or would be) removed.
func (j *MediaSweepJob) Sweep(ctx context.Context, minAge time.Duration, dryRun bool) (int, error) {
	refs, err := j.refs.ReferencedMedia(ctx)
	if err != nil {
		return 0, fmt.Errorf("load media references: %w", err)
	}
	cutoff := j.now().Add(-minAge)
	removed := 0
	err = filepath.WalkDir(j.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		rel, err := filepath.Rel(j.root, p)
		if err != nil {
			return err
		}
		urlPath := path.Join(j.urlPrefix, filepath.ToSlash(rel))
		if _, ok := refs[urlPath]; ok {
			return nil
		}
		removed++
		if dryRun {
			return nil
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
	return removed, err
}
