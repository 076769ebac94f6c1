package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/deliver-app/deliver/internal/jobs"
	"github.com/deliver-app/deliver/internal/mail"
	"github.com/deliver-app/deliver/internal/users"
)

// QueueDefault is the default queue name for background jobs.
const QueueDefault = "default"

// WelcomeMailJob delivers queued welcome messages over SMTP.
type WelcomeMailJob struct {
	Sender  users.Notifier
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewWelcomeMailJob initialises the welcome mail handler.
func NewWelcomeMailJob(sender users.Notifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *WelcomeMailJob {
	return &WelcomeMailJob{Sender: sender, Logger: logger, Metrics: metrics}
}

// Handle decodes the task and sends the message. Malformed payloads are
// dropped; delivery failures are retried by asynq.
func (j *WelcomeMailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sender == nil {
		return errors.New("welcome mail: handler not configured")
	}
	msg, err := mail.DecodeWelcomeTask(t)
	if err != nil {
		j.Metrics.Skip(mail.TaskWelcome)
		j.logger().Warn("dropping welcome mail task", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(mail.TaskWelcome)
	defer func() {
		err = tracker.End(err)
	}()

	if err = j.Sender.SendWelcome(ctx, msg); err != nil {
		j.logger().Warn("welcome mail delivery failed",
			slog.String("username", msg.Username),
			slog.Any("error", err))
		return err
	}
	j.logger().Info("welcome mail delivered", slog.String("username", msg.Username))
	return nil
}

func (j *WelcomeMailJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
