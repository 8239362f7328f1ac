package stripeterminal

import (
	"context"
	"sync"
	"time"

	"cardpresent/models"
	"cardpresent/services/terminal"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

const defaultPollInterval = time.Second

// ReaderAdapter drives a server-driven Stripe Terminal reader. "Connecting"
// claims a registered, online reader at the location; collection hands the
// intent to the reader and polls its action until it settles.
type ReaderAdapter struct {
	readers          readerAPI
	registry         Registry
	locationID       string
	connectedAccount string
	pollInterval time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	active *models.Reader
}

// NewReaderAdapter wires a ReaderAdapter to sc. When connectedAccount is set,
// every reader call is made on behalf of that account, like the intents.
func NewReaderAdapter(sc *client.API, registry Registry, locationID, connectedAccount string, pollInterval time.Duration, logger *zap.Logger) *ReaderAdapter {
	return newReaderAdapter(sdkReaders{api: sc}, registry, locationID, connectedAccount, pollInterval, logger)
}

func newReaderAdapter(readers readerAPI, registry Registry, locationID, connectedAccount string, pollInterval time.Duration, logger *zap.Logger) *ReaderAdapter {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReaderAdapter{
		readers:      readers,
		registry:     registry,
		locationID:       locationID,
		connectedAccount: connectedAccount,
		pollInterval:     pollInterval,
		logger:           logger,
	}
}

func (a *ReaderAdapter) prepare(ctx context.Context, p *stripe.Params) {
	p.Context = ctx
	if a.connectedAccount != "" {
		p.SetStripeAccount(a.connectedAccount)
	}
}

func (a *ReaderAdapter) DiscoverReaders(ctx context.Context) ([]models.Reader, error) {
	params := &stripe.TerminalReaderListParams{Status: stripe.String("online")}
	if a.locationID != "" {
		params.Location = stripe.String(a.locationID)
	}
	params.Context = ctx
	if a.connectedAccount != "" {
		params.SetStripeAccount(a.connectedAccount)
	}

	found, err := a.readers.List(params)
	if err != nil {
		return nil, classify(err, "list terminal readers")
	}

	remembered := a.remembered(ctx)
	out := make([]models.Reader, 0, len(found))
	for _, r := range found {
		out = append(out, toReader(r, remembered))
	}
	return out, nil
}

func (a *ReaderAdapter) remembered(ctx context.Context) map[string]bool {
	if a.registry == nil {
		return nil
	}
	ids, err := a.registry.Remembered(ctx)
	if err != nil {
		a.logger.Warn("Failed to load remembered readers", zap.Error(err))
		return nil
	}
	return ids
}

func (a *ReaderAdapter) Connect(ctx context.Context, reader models.Reader) error {
	params := &stripe.TerminalReaderParams{}
	a.prepare(ctx, &params.Params)
	r, err := a.readers.Get(reader.ID, params)
	if err != nil {
		classified := classify(err, "retrieve terminal reader")
		// The reader was deleted or moved out of reach of this account.
		if terminal.CodeOf(classified) == terminal.CodeInvalidRequest {
			a.forget(ctx, reader.ID)
		}
		return classified
	}
	if ReaderType(string(r.DeviceType)) == models.ReaderTypeOther {
		a.forget(ctx, r.ID)
		return terminal.NewReaderError(terminal.CodeUnsupportedReader, "reader "+r.ID+" is a "+string(r.DeviceType), nil)
	}
	if string(r.Status) != "online" {
		return terminal.NewReaderError(terminal.CodeReaderOffline, "reader "+r.ID+" is offline", nil)
	}
	if r.Action != nil && string(r.Action.Status) == "in_progress" {
		return terminal.NewReaderError(terminal.CodeReaderBusy, "reader "+r.ID+" is processing another action", nil)
	}

	connected := toReader(r, map[string]bool{r.ID: true})
	a.mu.Lock()
	a.active = &connected
	a.mu.Unlock()

	if a.registry != nil {
		if err := a.registry.Remember(ctx, r.ID); err != nil {
			a.logger.Warn("Failed to remember reader", zap.String("reader_id", r.ID), zap.Error(err))
		}
	}
	return nil
}

func (a *ReaderAdapter) forget(ctx context.Context, readerID string) {
	if a.registry == nil {
		return
	}
	if err := a.registry.Forget(ctx, readerID); err != nil {
		a.logger.Warn("Failed to forget reader", zap.String("reader_id", readerID), zap.Error(err))
	}
}

func (a *ReaderAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.active = nil
	a.mu.Unlock()
	return nil
}

func (a *ReaderAdapter) activeID() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return "", terminal.NewReaderError(terminal.CodeNotConnected, "no reader connected", nil)
	}
	return a.active.ID, nil
}

// CollectPayment blocks until the reader action for intentID succeeds or fails.
func (a *ReaderAdapter) CollectPayment(ctx context.Context, intentID string) error {
	readerID, err := a.activeID()
	if err != nil {
		return err
	}

	params := &stripe.TerminalReaderProcessPaymentIntentParams{PaymentIntent: stripe.String(intentID)}
	a.prepare(ctx, &params.Params)
	if _, err := a.readers.ProcessPaymentIntent(readerID, params); err != nil {
		return classify(err, "hand payment intent to reader")
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		get := &stripe.TerminalReaderParams{}
		a.prepare(ctx, &get.Params)
		r, err := a.readers.Get(readerID, get)
		if err != nil {
			classified := classify(err, "poll terminal reader")
			if terminal.IsTransient(classified) {
				a.logger.Debug("Reader poll failed, polling again", zap.String("reader_id", readerID), zap.Error(err))
				continue
			}
			return classified
		}
		if r.Action == nil {
			continue
		}
		switch string(r.Action.Status) {
		case "succeeded":
			return nil
		case "failed":
			return actionFailure(r.Action.FailureCode, r.Action.FailureMessage)
		}
	}
}

func (a *ReaderAdapter) CancelCollection(ctx context.Context) error {
	readerID, err := a.activeID()
	if err != nil {
		return err
	}
	params := &stripe.TerminalReaderCancelActionParams{}
	a.prepare(ctx, &params.Params)
	if _, err := a.readers.CancelAction(readerID, params); err != nil {
		return classify(err, "cancel reader action")
	}
	return nil
}

// Status reports Remembered for the connected reader only; with no reader
// connected it tells whether any reader would be reconnected automatically.
func (a *ReaderAdapter) Status(ctx context.Context) models.CardReaderStatus {
	a.mu.Lock()
	var activeID string
	if a.active != nil {
		activeID = a.active.ID
	}
	a.mu.Unlock()

	remembered := a.remembered(ctx)
	if activeID == "" {
		return models.CardReaderStatus{Remembered: len(remembered) > 0}
	}
	return models.CardReaderStatus{Connected: true, Remembered: remembered[activeID]}
}
