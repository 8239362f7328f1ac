package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cardpresent/models"
	"cardpresent/services/intent"
	"cardpresent/services/receipt"
	"cardpresent/services/terminal"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentRequest is what the point-of-sale client asks to charge.
type PaymentRequest struct {
	SiteID              string
	OrderID             string
	Amount              decimal.Decimal
	Currency            string
	StoreName           string
	ReceiptDescription  string
	ReceiptEmail        *string
	StatementDescriptor *string
}

// StartPayment runs one payment attempt to completion, failure or cancel.
// The returned receipt is nil when the processed intent has no card-present
// charge details.
func (o *Orchestrator) StartPayment(ctx context.Context, req PaymentRequest) (*models.PaymentIntent, *models.ReceiptParameters, error) {
	a, err := o.begin(ctx, kindPayment, StateIdle, StateReaderConnected, StateCompleted, StateFailed)
	if err != nil {
		return nil, nil, err
	}
	o.mu.Lock()
	a.record.SiteID = req.SiteID
	a.record.OrderID = req.OrderID
	a.record.Amount = req.Amount.String()
	a.record.Currency = strings.ToUpper(req.Currency)
	o.mu.Unlock()

	o.logger.Info("Starting card present payment",
		zap.String("attempt_id", a.id),
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency))

	pi, err := o.runPayment(a, req)
	if err != nil {
		perr := o.classify(a, err)
		final := StateFailed
		if perr.Class == ClassCanceled {
			final = StateIdle
		}
		o.logger.Warn("Card present payment did not complete",
			zap.String("attempt_id", a.id),
			zap.String("class", string(perr.Class)),
			zap.String("code", perr.Code),
			zap.Error(perr.Err))
		o.finish(a, final, perr)
		return nil, nil, perr
	}

	o.finish(a, StateCompleted, nil)
	return pi, receipt.Parameters(*pi, o.currency), nil
}

func (o *Orchestrator) runPayment(a *attempt, req PaymentRequest) (pi *models.PaymentIntent, err error) {
	cfg, err := o.configuration()
	if err != nil {
		return nil, configurationError(err)
	}

	if err := o.transition(a, StateCheckingEligibility); err != nil {
		return nil, err
	}
	ectx, cancel := o.stepContext(a, o.timeouts.Eligibility)
	_, err = await(ectx, func(ctx context.Context) (models.Eligibility, error) {
		return o.eligibility.Check(ctx, req.OrderID, req.SiteID, cfg)
	}, nil)
	cancel()
	if err != nil {
		return nil, err
	}

	reader, err := o.ensureReader(a, cfg)
	if err != nil {
		return nil, err
	}

	release, err := o.lock.Acquire(a.ctx, reader.ID, a.id)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	a.record.ReaderID = reader.ID
	o.mu.Unlock()
	defer release()
	// Runs before release so the reader is idle when it is handed back.
	defer func() {
		if err == nil {
			return
		}
		if settled := o.reconcile(a); settled != nil {
			pi, err = settled, nil
			return
		}
		o.cleanup(a)
	}()

	if err := o.transition(a, StateCreatingIntent); err != nil {
		return nil, err
	}
	wire, err := o.buildIntent(a, req, reader.ID, cfg)
	if err != nil {
		return nil, err
	}

	pctx, cancel := o.stepContext(a, o.timeouts.Process)
	created, err := await(pctx, func(ctx context.Context) (*models.PaymentIntent, error) {
		return o.backend.CreateIntent(ctx, *wire, a.id)
	}, func(late *models.PaymentIntent, err error) {
		if err == nil && late != nil {
			o.cancelIntent(late.ID)
		}
	})
	cancel()
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	a.intentID = created.ID
	o.mu.Unlock()

	if err := o.transition(a, StateCollectingPayment); err != nil {
		return nil, err
	}
	a.collecting = true
	cctx, cancel := o.stepContext(a, o.timeouts.Collect)
	err = awaitErr(cctx, func(ctx context.Context) error {
		return o.reader.CollectPayment(ctx, created.ID)
	})
	cancel()
	if err != nil {
		return nil, err
	}
	a.collecting = false

	if err := o.transition(a, StateProcessingPayment); err != nil {
		return nil, err
	}
	// The card has been presented, so a cancel no longer interrupts capture.
	pctx, cancel = context.WithTimeout(context.WithoutCancel(a.ctx), o.timeouts.Process)
	processed, err := await(pctx, func(ctx context.Context) (*models.PaymentIntent, error) {
		return o.backend.ProcessIntent(ctx, created.ID)
	}, nil)
	cancel()
	if err != nil {
		return nil, err
	}
	if processed == nil || processed.Status != models.PaymentIntentStatusSucceeded {
		status := models.PaymentIntentStatusUnknown
		if processed != nil {
			status = processed.Status
		}
		return nil, terminal.NewReaderError(terminal.CodeProcessingError,
			fmt.Sprintf("intent %s ended in status %s", created.ID, status), nil)
	}
	a.captured = true

	// A cancel that raced the capture does not undo it.
	if err := o.transition(a, StateCompleted); err != nil && !errors.Is(err, ErrCanceled) {
		return nil, err
	}
	return processed, nil
}

// reconcile asks the backend for the outcome of an intent whose processing
// step failed without a definite answer. A succeeded intent is returned so the
// attempt completes instead of canceling a captured payment.
func (o *Orchestrator) reconcile(a *attempt) *models.PaymentIntent {
	if a.intentID == "" || a.captured || a.stage != StateProcessingPayment {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.timeouts.Cleanup)
	defer cancel()
	pi, err := await(ctx, func(ctx context.Context) (*models.PaymentIntent, error) {
		return o.backend.RetrieveIntent(ctx, a.intentID)
	}, nil)
	if err != nil {
		o.logger.Warn("Could not confirm intent outcome", zap.String("intent_id", a.intentID), zap.Error(err))
		return nil
	}
	if pi == nil || pi.Status != models.PaymentIntentStatusSucceeded {
		return nil
	}
	o.logger.Info("Intent captured despite processing failure or cancel",
		zap.String("attempt_id", a.id), zap.String("intent_id", a.intentID))
	a.captured = true
	return pi
}

// buildIntent validates the request locally; nothing invalid reaches the backend.
func (o *Orchestrator) buildIntent(a *attempt, req PaymentRequest, readerID string, cfg models.CardPresentPaymentsConfiguration) (*models.PaymentIntentWireParameters, error) {
	if req.Currency != "" && !cfg.SupportsCurrency(req.Currency) {
		return nil, intentBuildError(CodeUnsupportedCurrency,
			fmt.Errorf("currency %s is not accepted in %s", req.Currency, cfg.CountryCode))
	}
	if req.Amount.IsPositive() && req.Amount.LessThan(cfg.MinimumAllowedChargeAmount) {
		return nil, intentBuildError(CodeAmountBelowMinimum,
			fmt.Errorf("amount %s is below the minimum of %s", req.Amount, cfg.MinimumAllowedChargeAmount))
	}

	metadata := map[string]string{
		models.MetadataKeyOrderID:     req.OrderID,
		models.MetadataKeySiteID:      req.SiteID,
		models.MetadataKeyReaderID:    readerID,
		models.MetadataKeyPaymentType: models.PaymentTypeSingle,
	}
	if req.StoreName != "" {
		metadata[models.MetadataKeyStoreName] = req.StoreName
	}

	wire := intent.Build(models.PaymentIntentParameters{
		Amount:              req.Amount,
		Currency:            req.Currency,
		PaymentMethods:      cfg.PaymentMethods,
		ReceiptDescription:  req.ReceiptDescription,
		StatementDescriptor: req.StatementDescriptor,
		ReceiptEmail:        req.ReceiptEmail,
		Metadata:            metadata,
	})
	if wire == nil || wire.Amount == 0 {
		return nil, intentBuildError(CodeMalformedRequest,
			fmt.Errorf("attempt %s: amount %s %q cannot be charged", a.id, req.Amount, req.Currency))
	}
	return wire, nil
}

// Receipt rebuilds the receipt parameters of a processed intent. A non-empty
// siteID restricts the lookup to intents created for that site.
func (o *Orchestrator) Receipt(ctx context.Context, intentID, siteID string) (*models.ReceiptParameters, error) {
	pi, err := o.backend.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, classifyAt(StateProcessingPayment, err)
	}
	if siteID != "" && pi.Metadata[models.MetadataKeySiteID] != siteID {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
	}
	if !pi.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: intent %s is still %s", ErrReceiptUnavailable, intentID, pi.Status)
	}
	if pi.Status != models.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent %s was %s", ErrReceiptUnavailable, intentID, pi.Status)
	}
	return receipt.Parameters(*pi, o.currency), nil
}
