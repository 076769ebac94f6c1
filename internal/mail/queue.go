package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/deliver-app/deliver/internal/users"
)

// TaskWelcome is the asynq task type for welcome mail delivery.
const TaskWelcome = "mail:welcome"

// QueueName is the asynq queue carrying mail tasks.
const QueueName = "mail"

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier hands welcome messages to the background worker. Delivery
// retries happen there; only enqueue failures surface to the caller.
type QueueNotifier struct {
	client Enqueuer
}

// NewQueueNotifier constructs a notifier backed by asynq.
func NewQueueNotifier(client Enqueuer) *QueueNotifier {
	return &QueueNotifier{client: client}
}

// NewWelcomeTask encodes msg as an asynq task.
func NewWelcomeTask(msg users.WelcomeMessage) (*asynq.Task, error) {
	if msg.Email == "" {
		return nil, ErrNoRecipient
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWelcome, payload,
		asynq.Queue(QueueName),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// DecodeWelcomeTask reads the message back from a task payload.
func DecodeWelcomeTask(task *asynq.Task) (users.WelcomeMessage, error) {
	var msg users.WelcomeMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return users.WelcomeMessage{}, fmt.Errorf("mail: decode welcome payload: %w", err)
	}
	if msg.Email == "" || msg.Password == "" {
		return users.WelcomeMessage{}, fmt.Errorf("mail: welcome payload incomplete")
	}
	return msg, nil
}

// SendWelcome enqueues the message.
func (n *QueueNotifier) SendWelcome(ctx context.Context, msg users.WelcomeMessage) error {
	task, err := NewWelcomeTask(msg)
	if err != nil {
		return err
	}
	if _, err := n.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("mail: enqueue welcome: %w", err)
	}
	return nil
}
