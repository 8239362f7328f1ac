package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardpresent/models"
	"cardpresent/services/terminal"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ConnectReader discovers and connects a supported reader outside of a payment.
func (o *Orchestrator) ConnectReader(ctx context.Context) (*models.Reader, error) {
	o.mu.Lock()
	already := o.connected != nil
	o.mu.Unlock()
	if already {
		return nil, fmt.Errorf("%w: a reader is already connected", ErrInvalidTransition)
	}

	a, err := o.begin(ctx, kindConnect, StateIdle, StateCompleted, StateFailed)
	if err != nil {
		return nil, err
	}

	cfg, err := o.configuration()
	if err != nil {
		perr := configurationError(err)
		o.finish(a, StateFailed, perr)
		return nil, perr
	}

	reader, err := o.connect(a, cfg)
	if err != nil {
		perr := o.classify(a, err)
		if perr.Class == ClassCanceled {
			o.dropReader(reader)
			o.finish(a, StateIdle, perr)
		} else {
			o.finish(a, StateFailed, perr)
		}
		return nil, perr
	}

	o.finish(a, StateReaderConnected, nil)
	return reader, nil
}

// DisconnectReader disconnects the active reader. It is rejected while an
// attempt is running.
func (o *Orchestrator) DisconnectReader(ctx context.Context) error {
	a, err := o.begin(ctx, kindDisconnect, StateIdle, StateReaderConnected, StateCompleted, StateFailed)
	if err != nil {
		return err
	}

	o.mu.Lock()
	reader := o.connected
	o.connected = nil
	o.mu.Unlock()

	if reader != nil {
		dctx, cancel := o.stepContext(a, o.timeouts.Connect)
		err = awaitErr(dctx, o.reader.Disconnect)
		cancel()
		if err != nil {
			o.logger.Warn("Reader disconnect reported an error", zap.String("reader_id", reader.ID), zap.Error(err))
		}
	}
	o.finish(a, StateIdle, nil)
	return nil
}

// ensureReader returns the connected reader, connecting one if needed.
func (o *Orchestrator) ensureReader(a *attempt, cfg models.CardPresentPaymentsConfiguration) (*models.Reader, error) {
	o.mu.Lock()
	reader := o.connected
	o.mu.Unlock()

	if reader != nil {
		if o.reader.Status(a.ctx).Connected {
			if err := o.transition(a, StateReaderConnected); err != nil {
				return nil, err
			}
			return reader, nil
		}
		o.logger.Info("Reader dropped its connection, reconnecting", zap.String("reader_id", reader.ID))
		o.mu.Lock()
		o.connected = nil
		o.mu.Unlock()
	}
	return o.connect(a, cfg)
}

// connect runs discovery, selection and a bounded, retried connection.
// On success the reader is returned even if a cancel raced the final transition.
func (o *Orchestrator) connect(a *attempt, cfg models.CardPresentPaymentsConfiguration) (*models.Reader, error) {
	if err := o.transition(a, StateDiscoveringReader); err != nil {
		return nil, err
	}

	dctx, cancel := o.stepContext(a, o.timeouts.Discovery)
	readers, err := await(dctx, o.reader.DiscoverReaders, nil)
	cancel()
	if err != nil {
		return nil, err
	}

	candidate, err := selectReader(readers, cfg)
	if err != nil {
		return nil, err
	}

	if err := o.transition(a, StateConnecting); err != nil {
		return nil, err
	}

	tries := 0
	op := func() error {
		tries++
		cctx, cancel := o.stepContext(a, o.timeouts.Connect)
		defer cancel()

		err := awaitErr(cctx, func(ctx context.Context) error {
			return o.reader.Connect(ctx, candidate)
		})
		switch {
		case err == nil:
			return nil
		case a.ctx.Err() != nil:
			return backoff.Permanent(ErrCanceled)
		case errors.Is(err, context.DeadlineExceeded):
			return backoff.Permanent(terminal.NewReaderError(terminal.CodeReaderUnreachable, "reader did not connect in time", err))
		case terminal.IsTransient(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	notify := func(err error, wait time.Duration) {
		o.logger.Warn("Reader connection failed, retrying",
			zap.String("attempt_id", a.id),
			zap.String("reader_id", candidate.ID),
			zap.Int("try", tries),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, o.connectBackOff(a.ctx), notify); err != nil {
		return nil, err
	}

	reader := candidate
	reader.Online = true
	o.mu.Lock()
	o.connected = &reader
	a.record.ReaderID = reader.ID
	o.mu.Unlock()

	if err := o.transition(a, StateReaderConnected); err != nil {
		return &reader, err
	}
	o.logger.Info("Reader connected", zap.String("attempt_id", a.id), zap.String("reader_id", reader.ID), zap.Int("tries", tries))
	return &reader, nil
}

func (o *Orchestrator) connectBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retry.InitialInterval
	b.MaxInterval = o.retry.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, o.retry.MaxRetries), ctx)
}

// dropReader forgets and disconnects reader after a canceled connection.
func (o *Orchestrator) dropReader(reader *models.Reader) {
	if reader == nil {
		return
	}
	o.mu.Lock()
	if o.connected != nil && o.connected.ID == reader.ID {
		o.connected = nil
	}
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), o.timeouts.Cleanup)
	defer cancel()
	if err := awaitErr(ctx, o.reader.Disconnect); err != nil {
		o.logger.Warn("Failed to disconnect reader after cancel", zap.String("reader_id", reader.ID), zap.Error(err))
	}
}

// selectReader prefers a remembered reader, then the first supported one.
func selectReader(readers []models.Reader, cfg models.CardPresentPaymentsConfiguration) (models.Reader, error) {
	if len(readers) == 0 {
		return models.Reader{}, terminal.NewReaderError(terminal.CodeNoReaderFound, "no readers discovered", nil)
	}
	for _, r := range readers {
		if r.Remembered && cfg.SupportsReader(r.Type) {
			return r, nil
		}
	}
	for _, r := range readers {
		if cfg.SupportsReader(r.Type) {
			return r, nil
		}
	}
	return models.Reader{}, terminal.NewReaderError(terminal.CodeUnsupportedReader,
		"no discovered reader is supported in "+cfg.CountryCode, nil)
}
