package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cardpresent/services/payments"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

func TestTransitionPublisher(t *testing.T) {
	w := &recordingWriter{}
	p := newPublisher(w, nil)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.OnTransition(context.Background(), payments.TransitionEvent{
		AttemptID:   "att-1",
		Kind:        "payment",
		OrderID:     "42",
		From:        payments.StateCollectingPayment,
		To:          payments.StateFailed,
		At:          at,
		Final:       true,
		FailureCode: "card_declined",
	})

	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "att-1" || !msg.Time.Equal(at) {
		t.Fatalf("unexpected key/time: %q %v", msg.Key, msg.Time)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["to"] != "failed" || decoded["orderId"] != "42" || decoded["failureCode"] != "card_declined" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestTransitionPublisher_WriteErrorIsNotFatal(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := newPublisher(w, nil)
	p.OnTransition(context.Background(), payments.TransitionEvent{AttemptID: "att-1", To: payments.StateIdle})
	if len(w.msgs) != 1 {
		t.Fatal("expected a publish attempt")
	}
}
