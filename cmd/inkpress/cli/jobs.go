package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"github.com/inkpress/inkpress/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers against the given Redis options.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// SweepOptions configures a manually triggered media sweep.
type SweepOptions struct {
	MinAge time.Duration
	DryRun bool
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, sweep SweepOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskMediaSweep:
		task, err = jobs.NewMediaSweepTask(sweep.MinAge, sweep.DryRun)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// JobsOptions is the parsed form of `inkpress jobs ...`.
type JobsOptions struct {
	Trigger   string
	Stats     bool
	Scheduled int
	Sweep     SweepOptions
}

// ParseJobsArgs parses the jobs sub-command flags.
func ParseJobsArgs(args []string, stderr io.Writer) (JobsOptions, error) {
	var opts JobsOptions
	fs := pflag.NewFlagSet("inkpress jobs", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Trigger, "trigger", "", "enqueue a job by task type (media:sweep)")
	fs.BoolVar(&opts.Stats, "stats", false, "print default queue statistics")
	fs.IntVar(&opts.Scheduled, "scheduled", 0, "list up to N scheduled tasks")
	fs.DurationVar(&opts.Sweep.MinAge, "min-age", 24*time.Hour, "media sweep: only remove files older than this")
	fs.BoolVar(&opts.Sweep.DryRun, "dry-run", false, "media sweep: report without removing")
	if err := fs.Parse(args); err != nil {
		return JobsOptions{}, err
	}
	if fs.NArg() > 0 {
		return JobsOptions{}, fmt.Errorf("jobs: unexpected arguments %v", fs.Args())
	}
	if opts.Trigger == "" && !opts.Stats && opts.Scheduled <= 0 {
		opts.Stats = true
	}
	return opts, nil
}

// RunJobs executes the jobs sub-command and returns the process exit code.
func RunJobs(ctx context.Context, c *JobsCLI, args []string, stdout, stderr io.Writer) int {
	opts, err := ParseJobsArgs(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if opts.Trigger != "" {
		info, err := c.Trigger(ctx, opts.Trigger, opts.Sweep)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	}
	if opts.Stats {
		stats, err := c.InspectQueue()
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	}
	if opts.Scheduled > 0 {
		tasks, err := c.ListScheduled(opts.Scheduled)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		for _, t := range tasks {
			fmt.Fprintf(stdout, "%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
		}
	}
	return 0
}
