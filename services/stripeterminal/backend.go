package stripeterminal

import (
	"context"
	"fmt"
	"time"

	"cardpresent/models"
	"cardpresent/services/terminal"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// Backend is a terminal.PaymentBackend on Stripe PaymentIntents. Intents are
// created with manual capture and captured in ProcessIntent.
type Backend struct {
	intents          intentAPI
	connectedAccount string
	logger           *zap.Logger
}

// NewBackend wires a Backend to sc. When connectedAccount is set, intents are
// created on that account and carry the application fee.
func NewBackend(sc *client.API, connectedAccount string, logger *zap.Logger) *Backend {
	return newBackend(sc.PaymentIntents, connectedAccount, logger)
}

func newBackend(intents intentAPI, connectedAccount string, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{intents: intents, connectedAccount: connectedAccount, logger: logger}
}

func (b *Backend) prepare(ctx context.Context, p *stripe.Params) {
	p.Context = ctx
	if b.connectedAccount != "" {
		p.SetStripeAccount(b.connectedAccount)
	}
}

func (b *Backend) CreateIntent(ctx context.Context, wire models.PaymentIntentWireParameters, idempotencyKey string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(int64(wire.Amount)),
		Currency:           stripe.String(wire.Currency),
		PaymentMethodTypes: stripe.StringSlice(wire.PaymentMethodTypes),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	if wire.ReceiptDescription != "" {
		params.Description = stripe.String(wire.ReceiptDescription)
	}
	if wire.StatementDescriptor != nil {
		params.StatementDescriptor = wire.StatementDescriptor
	}
	if wire.ReceiptEmail != nil {
		params.ReceiptEmail = wire.ReceiptEmail
	}
	if b.connectedAccount != "" && wire.ApplicationFee > 0 {
		params.ApplicationFeeAmount = stripe.Int64(int64(wire.ApplicationFee))
	}
	for k, v := range wire.Metadata {
		params.AddMetadata(k, v)
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	b.prepare(ctx, &params.Params)

	pi, err := b.intents.New(params)
	if err != nil {
		return nil, classify(err, "create payment intent")
	}
	b.logger.Info("Created payment intent",
		zap.String("intent_id", pi.ID),
		zap.Int64("amount", pi.Amount),
		zap.String("currency", string(pi.Currency)))
	return toIntent(pi), nil
}

// ProcessIntent captures a collected intent. An intent that is already
// succeeded is returned as is.
func (b *Backend) ProcessIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	pi, err := b.get(ctx, intentID)
	if err != nil {
		return nil, err
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return toIntent(pi), nil
	case stripe.PaymentIntentStatusRequiresCapture:
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return nil, terminal.NewReaderError(terminal.CodeCardDeclined,
			fmt.Sprintf("intent %s has no usable payment method", intentID), nil)
	default:
		return nil, terminal.NewReaderError(terminal.CodeProcessingError,
			fmt.Sprintf("intent %s cannot be captured in status %s", intentID, pi.Status), nil)
	}

	params := &stripe.PaymentIntentCaptureParams{}
	params.AddExpand("latest_charge")
	b.prepare(ctx, &params.Params)
	captured, err := b.intents.Capture(intentID, params)
	if err != nil {
		return nil, classify(err, "capture payment intent")
	}
	b.logger.Info("Captured payment intent", zap.String("intent_id", intentID))
	return toIntent(captured), nil
}

func (b *Backend) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	b.prepare(ctx, &params.Params)
	if _, err := b.intents.Cancel(intentID, params); err != nil {
		// Cancel is idempotent from the caller's point of view.
		if pi, gerr := b.get(ctx, intentID); gerr == nil && pi.Status == stripe.PaymentIntentStatusCanceled {
			return nil
		}
		return classify(err, "cancel payment intent")
	}
	return nil
}

func (b *Backend) RetrieveIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	pi, err := b.get(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

func (b *Backend) get(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge")
	b.prepare(ctx, &params.Params)
	pi, err := b.intents.Get(intentID, params)
	if err != nil {
		return nil, classify(err, "retrieve payment intent")
	}
	return pi, nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
