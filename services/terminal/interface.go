// Package terminal defines the boundary between the payment session and the
// card reader / payment backend collaborators. Nothing here depends on a vendor SDK.
package terminal

import (
	"context"

	"cardpresent/models"
)

// ReaderAdapter drives a physical card reader.
type ReaderAdapter interface {
	// DiscoverReaders lists readers that can currently be connected to.
	DiscoverReaders(ctx context.Context) ([]models.Reader, error)
	// Connect makes reader the active reader. It blocks until connected or ctx is done.
	Connect(ctx context.Context, reader models.Reader) error
	Disconnect(ctx context.Context) error
	// CollectPayment asks the active reader to take a card for the intent and
	// blocks until the card has been captured, declined, or ctx is done.
	CollectPayment(ctx context.Context, intentID string) error
	// CancelCollection aborts an in-progress CollectPayment on the reader.
	CancelCollection(ctx context.Context) error
	Status(ctx context.Context) models.CardReaderStatus
}

// PaymentBackend creates and settles payment intents.
type PaymentBackend interface {
	CreateIntent(ctx context.Context, params models.PaymentIntentWireParameters, idempotencyKey string) (*models.PaymentIntent, error)
	// ProcessIntent confirms/captures a collected intent and returns it with card details attached.
	ProcessIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	CancelIntent(ctx context.Context, intentID string) error
	RetrieveIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
}
