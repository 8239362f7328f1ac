package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeCancelIntent = "payment_intent:cancel"
	QueuePayments    = "payments"
)

// IntentCancelPayload is the body of a deferred intent cancellation.
type IntentCancelPayload struct {
	IntentID    string    `json:"intentId"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewCancelIntentTask builds a cancellation task for intentID, due after delay.
// The task id is derived from the intent so repeated requests collapse.
func NewCancelIntentTask(intentID string, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	if intentID == "" {
		return nil, nil, errors.New("intent id is required")
	}
	b, err := json.Marshal(IntentCancelPayload{IntentID: intentID, RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeCancelIntent, b)
	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.Queue(QueuePayments),
		asynq.MaxRetry(8),
		asynq.TaskID("cancel:" + intentID),
	}
	return task, opts, nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CancelScheduler enqueues deferred intent cancellations on asynq.
type CancelScheduler struct {
	client enqueuer
	delay  time.Duration
}

func NewCancelScheduler(client *asynq.Client, delay time.Duration) *CancelScheduler {
	return &CancelScheduler{client: client, delay: delay}
}

func (s *CancelScheduler) ScheduleIntentCancel(ctx context.Context, intentID string) error {
	task, opts, err := NewCancelIntentTask(intentID, s.delay)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue cancel for %s: %w", intentID, err)
	}
	return nil
}
