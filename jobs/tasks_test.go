package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/deliver-app/deliver/internal/jobs"
	"github.com/deliver-app/deliver/internal/mail"
	"github.com/deliver-app/deliver/internal/users"
)

type recordingSender struct {
	sent []users.WelcomeMessage
	err  error
}

func (s *recordingSender) SendWelcome(ctx context.Context, msg users.WelcomeMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newJob(sender users.Notifier) *WelcomeMailJob {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWelcomeMailJob(sender, logger, jobmetrics.NewMetrics(prometheus.NewRegistry()))
}

func TestWelcomeMailJobDelivers(t *testing.T) {
	sender := &recordingSender{}
	task, err := mail.NewWelcomeTask(users.WelcomeMessage{Email: "a@example.com", Username: "alice", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, newJob(sender).Handle(context.Background(), task))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice", sender.sent[0].Username)
}

func TestWelcomeMailJobSkipsMalformedPayload(t *testing.T) {
	sender := &recordingSender{}
	err := newJob(sender).Handle(context.Background(), asynq.NewTask(mail.TaskWelcome, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, sender.sent)
}

func TestWelcomeMailJobRetriesDeliveryFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay down")}
	task, err := mail.NewWelcomeTask(users.WelcomeMessage{Email: "a@example.com", Username: "alice", Password: "pw"})
	require.NoError(t, err)

	err = newJob(sender).Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"mail","pending":0}`, rr.Body.String())
}
