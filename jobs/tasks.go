package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/inkpress/inkpress/internal/jobs"
	"github.com/inkpress/inkpress/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"

	sendEmailTimeout  = 30 * time.Second
	sendEmailMaxRetry = 5
)

// SendEmailPayload describes the information required to send an email.
// Template names one of the embedded email templates; Data is passed to it.
type SendEmailPayload struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if payload.To == "" || payload.Template == "" {
		return nil, fmt.Errorf("jobs: send email requires recipient and template")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(sendEmailMaxRetry),
		asynq.Timeout(sendEmailTimeout),
	), nil
}

// Renderer turns a template name and data into an HTML body.
type Renderer interface {
	RenderString(name string, data map[string]any) (string, error)
}

// SendEmailJob renders and delivers TaskTypeSendEmail tasks.
type SendEmailJob struct {
	renderer Renderer
	sender   mail.Sender
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewSendEmailJob constructs the handler.
func NewSendEmailJob(renderer Renderer, sender mail.Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendEmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmailJob{renderer: renderer, sender: sender, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeSendEmail tasks. Malformed payloads and unknown
// templates are not retried.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskTypeSendEmail)

	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("send email: decode payload", slog.Any("error", err))
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	body, err := j.renderer.RenderString(payload.Template, payload.Data)
	if err != nil {
		j.logger.Error("send email: render", slog.String("template", payload.Template), slog.Any("error", err))
		return tracker.End(fmt.Errorf("%v: %w", err, asynq.SkipRetry))
	}
	if err := j.sender.Send(ctx, mail.Message{To: payload.To, Subject: payload.Subject, HTML: body}); err != nil {
		j.logger.Warn("send email: deliver", slog.String("template", payload.Template), slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("email sent", slog.String("template", payload.Template))
	return tracker.End(nil)
}
