package payments

import (
	"context"
	"time"

	"cardpresent/models"
)

// TransitionEvent describes one state change of the session.
type TransitionEvent struct {
	AttemptID    string        `json:"attemptId"`
	Kind         string        `json:"kind"`
	SiteID       string        `json:"siteId,omitempty"`
	OrderID      string        `json:"orderId,omitempty"`
	ReaderID     string        `json:"readerId,omitempty"`
	IntentID     string        `json:"intentId,omitempty"`
	From         State         `json:"from"`
	To           State         `json:"to"`
	At           time.Time     `json:"at"`
	Final        bool          `json:"final"`
	Duration     time.Duration `json:"durationNs,omitempty"`
	FailureClass string        `json:"failureClass,omitempty"`
	FailureCode  string        `json:"failureCode,omitempty"`

	record models.PaymentAttempt
}

// Observer is notified of every transition. Implementations must not block for long.
type Observer interface {
	OnTransition(ctx context.Context, ev TransitionEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev TransitionEvent)

func (f ObserverFunc) OnTransition(ctx context.Context, ev TransitionEvent) { f(ctx, ev) }
