package cron

import (
	"context"
	"errors"
	"testing"

	"cardpresent/services/tasks"
	"cardpresent/services/terminal"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type cancelBackend struct {
	terminal.PaymentBackend
	err      error
	canceled []string
}

func (b *cancelBackend) CancelIntent(ctx context.Context, intentID string) error {
	b.canceled = append(b.canceled, intentID)
	return b.err
}

func TestHandleCancelIntentTask(t *testing.T) {
	task, _, err := tasks.NewCancelIntentTask("pi_1", 0)
	if err != nil {
		t.Fatalf("NewCancelIntentTask: %v", err)
	}

	tests := []struct {
		name      string
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{"canceled", nil, false, false},
		{"network", terminal.NewReaderError(terminal.CodeNetwork, "timeout", nil), true, false},
		{"already captured", terminal.NewReaderError(terminal.CodeInvalidRequest, "unexpected state", nil), true, true},
		{"unclassified", errors.New("boom"), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &cancelBackend{err: tt.err}
			err := HandleCancelIntentTask(backend, zap.NewNop())(context.Background(), task)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if errors.Is(err, asynq.SkipRetry) != tt.skipRetry {
				t.Fatalf("expected skipRetry=%t, got %v", tt.skipRetry, err)
			}
			if len(backend.canceled) != 1 || backend.canceled[0] != "pi_1" {
				t.Fatalf("expected cancel of pi_1, got %v", backend.canceled)
			}
		})
	}

	bad := asynq.NewTask(tasks.TypeCancelIntent, []byte("{"))
	if err := HandleCancelIntentTask(&cancelBackend{}, zap.NewNop())(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected malformed payload to skip retry, got %v", err)
	}
}
