package payments

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Cancel stops the active attempt and waits until it has released the reader
// and settled in idle. Late results from the reader or backend are ignored.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	a := o.current
	if a == nil {
		o.mu.Unlock()
		return ErrNoActiveAttempt
	}
	a.canceled = true
	o.mu.Unlock()

	o.logger.Info("Canceling payment attempt", zap.String("attempt_id", a.id), zap.String("kind", string(a.kind)))
	a.cancel()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) classify(a *attempt, err error) *PaymentError {
	if errors.Is(err, ErrCanceled) || o.wasCanceled(a) {
		return canceledError()
	}
	return classifyAt(a.stage, err)
}

// cleanup undoes the side effects of a failed or canceled attempt that holds
// the reader lease. It never uses the attempt context, which may be done.
func (o *Orchestrator) cleanup(a *attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeouts.Cleanup)
	defer cancel()

	if a.collecting {
		if err := awaitErr(ctx, o.reader.CancelCollection); err != nil {
			o.logger.Warn("Failed to cancel collection on reader", zap.String("attempt_id", a.id), zap.Error(err))
		}
		a.collecting = false
	}
	if a.intentID != "" && !a.captured {
		o.cancelIntent(a.intentID)
	}
}

// cancelIntent cancels a backend intent, deferring to the scheduler when the
// inline call fails.
func (o *Orchestrator) cancelIntent(intentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeouts.Cleanup)
	defer cancel()

	err := awaitErr(ctx, func(ctx context.Context) error {
		return o.backend.CancelIntent(ctx, intentID)
	})
	if err == nil {
		o.logger.Info("Canceled payment intent", zap.String("intent_id", intentID))
		return
	}
	o.logger.Warn("Inline intent cancel failed", zap.String("intent_id", intentID), zap.Error(err))
	if o.cancels == nil {
		return
	}
	sctx, scancel := context.WithTimeout(context.Background(), o.timeouts.Cleanup)
	defer scancel()
	if err := o.cancels.ScheduleIntentCancel(sctx, intentID); err != nil {
		o.logger.Error("Failed to schedule intent cancel", zap.String("intent_id", intentID), zap.Error(err))
	}
}
