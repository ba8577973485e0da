package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/inkpress/inkpress/internal/jobs"
)

const notifyTimeout = 5 * time.Second

// Enqueuer submits email tasks. *Client satisfies it.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// Notifier is the fire-and-forget email entry point used after a
// transaction commits. Enqueue failures are logged and counted, never
// returned.
type Notifier struct {
	queue   Enqueuer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewNotifier constructs a Notifier. A nil queue turns every call into a no-op.
func NewNotifier(queue Enqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{queue: queue, logger: logger, metrics: metrics}
}

// Notify enqueues payload. The request context's cancellation is ignored
// so a client hanging up right after commit still gets its email.
func (n *Notifier) Notify(ctx context.Context, payload SendEmailPayload) {
	if n == nil || n.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	_, err := n.queue.EnqueueSendEmail(ctx, payload)
	n.metrics.RecordNotification(payload.Template, err)
	if err != nil {
		n.logger.Warn("enqueue email", slog.String("template", payload.Template), slog.Any("error", err))
	}
}
