// Package payments runs the card-present payment session: one attempt at a
// time, moving from eligibility through reader acquisition, intent creation,
// collection and processing to a receipt.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cardpresent/models"
	"cardpresent/services/terminal"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfigurationProvider yields the store's card-present configuration.
type ConfigurationProvider func() (models.CardPresentPaymentsConfiguration, error)

// EligibilityChecker is satisfied by eligibility.Gate.
type EligibilityChecker interface {
	Check(ctx context.Context, orderID, siteID string, cfg models.CardPresentPaymentsConfiguration) (models.Eligibility, error)
}

// AttemptRecorder persists the audit record of an attempt after each transition.
type AttemptRecorder interface {
	SaveAttempt(ctx context.Context, attempt models.PaymentAttempt) error
}

// CancelScheduler retries a backend intent cancellation out of band.
type CancelScheduler interface {
	ScheduleIntentCancel(ctx context.Context, intentID string) error
}

// Timeouts bound each step that waits on hardware or the network.
type Timeouts struct {
	Eligibility time.Duration
	Discovery   time.Duration
	Connect     time.Duration
	Collect     time.Duration
	Process     time.Duration
	Cleanup     time.Duration
}

// RetryPolicy bounds reader connection retries on transient errors.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Options wires an Orchestrator. Reader, Backend, Eligibility and
// Configuration are required.
type Options struct {
	Configuration ConfigurationProvider
	Eligibility   EligibilityChecker
	Reader        terminal.ReaderAdapter
	Backend       terminal.PaymentBackend
	Lock          terminal.ReaderLock
	Recorder      AttemptRecorder
	Observers     []Observer
	Cancels       CancelScheduler
	Currency      models.CurrencySettings
	Timeouts      Timeouts
	Retry         RetryPolicy
	Logger        *zap.Logger
	Now           func() time.Time
}

var defaultTimeouts = Timeouts{
	Eligibility: 10 * time.Second,
	Discovery:   15 * time.Second,
	Connect:     30 * time.Second,
	Collect:     2 * time.Minute,
	Process:     30 * time.Second,
	Cleanup:     10 * time.Second,
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	State     State                   `json:"state"`
	AttemptID string                  `json:"attemptId,omitempty"`
	Reader    *models.Reader          `json:"reader,omitempty"`
	Status    models.CardReaderStatus `json:"readerStatus"`
}

type attemptKind string

const (
	kindConnect    attemptKind = "connect"
	kindDisconnect attemptKind = "disconnect"
	kindPayment    attemptKind = "payment"
)

// attempt is one run of a session operation. Only the goroutine that began it
// mutates it, except canceled which is guarded by Orchestrator.mu.
type attempt struct {
	id         string
	kind       attemptKind
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	started    time.Time
	stage      State
	canceled   bool
	collecting bool
	intentID   string
	captured   bool
	record     models.PaymentAttempt
}

// Orchestrator owns the payment session state machine.
type Orchestrator struct {
	configuration ConfigurationProvider
	eligibility   EligibilityChecker
	reader        terminal.ReaderAdapter
	backend       terminal.PaymentBackend
	lock          terminal.ReaderLock
	recorder      AttemptRecorder
	observers     []Observer
	cancels       CancelScheduler
	currency      models.CurrencySettings
	timeouts      Timeouts
	retry         RetryPolicy
	logger        *zap.Logger
	now           func() time.Time

	mu        sync.Mutex
	state     State
	connected *models.Reader
	current   *attempt
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Reader == nil || opts.Backend == nil {
		return nil, errors.New("payments: reader adapter and payment backend are required")
	}
	if opts.Eligibility == nil || opts.Configuration == nil {
		return nil, errors.New("payments: eligibility checker and configuration provider are required")
	}
	o := &Orchestrator{
		configuration: opts.Configuration,
		eligibility:   opts.Eligibility,
		reader:        opts.Reader,
		backend:       opts.Backend,
		lock:          opts.Lock,
		recorder:      opts.Recorder,
		observers:     opts.Observers,
		cancels:       opts.Cancels,
		currency:      opts.Currency,
		timeouts:      withDefaults(opts.Timeouts),
		retry:         opts.Retry,
		logger:        opts.Logger,
		now:           opts.Now,
		state:         StateIdle,
	}
	if o.lock == nil {
		o.lock = terminal.NewLocalReaderLock()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.retry.InitialInterval <= 0 {
		o.retry.InitialInterval = 500 * time.Millisecond
	}
	if o.retry.MaxInterval <= 0 {
		o.retry.MaxInterval = 5 * time.Second
	}
	return o, nil
}

func withDefaults(t Timeouts) Timeouts {
	pick := func(v, d time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return d
	}
	return Timeouts{
		Eligibility: pick(t.Eligibility, defaultTimeouts.Eligibility),
		Discovery:   pick(t.Discovery, defaultTimeouts.Discovery),
		Connect:     pick(t.Connect, defaultTimeouts.Connect),
		Collect:     pick(t.Collect, defaultTimeouts.Collect),
		Process:     pick(t.Process, defaultTimeouts.Process),
		Cleanup:     pick(t.Cleanup, defaultTimeouts.Cleanup),
	}
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot reports the session state together with the reader status.
func (o *Orchestrator) Snapshot(ctx context.Context) Snapshot {
	o.mu.Lock()
	snap := Snapshot{State: o.state}
	if o.current != nil {
		snap.AttemptID = o.current.id
	}
	if o.connected != nil {
		r := *o.connected
		snap.Reader = &r
	}
	o.mu.Unlock()

	snap.Status = o.reader.Status(ctx)
	return snap
}

// begin registers a new attempt if the session is quiescent and in one of allowed.
func (o *Orchestrator) begin(ctx context.Context, kind attemptKind, allowed ...State) (*attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		return nil, fmt.Errorf("%w: %s attempt %s is active in state %s", ErrInvalidTransition, o.current.kind, o.current.id, o.state)
	}
	if !o.state.quiescent() || !stateIn(o.state, allowed) {
		return nil, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, kind, o.state)
	}

	actx, cancel := context.WithCancel(ctx)
	now := o.now()
	a := &attempt{
		id:      uuid.New().String(),
		kind:    kind,
		ctx:     actx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: now,
		stage:   o.state,
	}
	a.record = models.PaymentAttempt{
		ID:        a.id,
		State:     string(o.state),
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.current = a
	return a, nil
}

// transition moves the session forward on behalf of a. It fails with
// ErrCanceled when a is no longer the active attempt, so results that arrive
// after a cancel are dropped.
func (o *Orchestrator) transition(a *attempt, to State) error {
	o.mu.Lock()
	if o.current != a || a.canceled {
		o.mu.Unlock()
		return ErrCanceled
	}
	from := o.state
	if !canTransition(from, to) {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	o.state = to
	a.stage = to
	ev := o.recordLocked(a, from, to, nil)
	o.mu.Unlock()

	o.emit(a, ev)
	return nil
}

// finish ends a with the exit state to and wakes any Cancel waiting on it.
func (o *Orchestrator) finish(a *attempt, to State, perr *PaymentError) {
	o.mu.Lock()
	from := o.state
	if o.current == a {
		o.state = to
		o.current = nil
	}
	ev := o.recordLocked(a, from, to, perr)
	ev.Final = true
	ev.Duration = ev.At.Sub(a.started)
	o.mu.Unlock()

	a.cancel()
	close(a.done)
	o.emit(a, ev)
}

func (o *Orchestrator) recordLocked(a *attempt, from, to State, perr *PaymentError) TransitionEvent {
	at := o.now()
	a.record.State = string(to)
	a.record.UpdatedAt = at
	a.record.History = append(a.record.History, models.StateChange{From: string(from), To: string(to), At: at})
	a.record.IntentID = a.intentID
	ev := TransitionEvent{
		AttemptID: a.id,
		Kind:      string(a.kind),
		SiteID:    a.record.SiteID,
		OrderID:   a.record.OrderID,
		ReaderID:  a.record.ReaderID,
		IntentID:  a.intentID,
		From:      from,
		To:        to,
		At:        at,
	}
	if perr != nil {
		a.record.FailureClass = string(perr.Class)
		a.record.FailureCode = perr.Code
		a.record.FailureMessage = perr.Error()
		ev.FailureClass = string(perr.Class)
		ev.FailureCode = perr.Code
	}
	ev.record = a.record
	ev.record.History = append([]models.StateChange(nil), a.record.History...)
	return ev
}

func (o *Orchestrator) emit(a *attempt, ev TransitionEvent) {
	o.logger.Info("Payment session transition",
		zap.String("attempt_id", ev.AttemptID),
		zap.String("kind", ev.Kind),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
		zap.String("failure_code", ev.FailureCode))

	// Observers get a context that outlives a canceled attempt.
	ctx, cancel := context.WithTimeout(context.Background(), o.timeouts.Cleanup)
	defer cancel()
	for _, obs := range o.observers {
		obs.OnTransition(ctx, ev)
	}
	if o.recorder != nil && a.kind == kindPayment {
		if err := o.recorder.SaveAttempt(ctx, ev.record); err != nil {
			o.logger.Warn("Failed to record payment attempt", zap.String("attempt_id", a.id), zap.Error(err))
		}
	}
}

func (o *Orchestrator) wasCanceled(a *attempt) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return a.canceled || a.ctx.Err() != nil
}

// stepContext bounds one step of a.
func (o *Orchestrator) stepContext(a *attempt, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.ctx, d)
}

// await runs fn and stops waiting when ctx is done, even if fn ignores ctx.
// A result that arrives after that is handed to late, if set.
func await[T any](ctx context.Context, fn func(context.Context) (T, error), late func(T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		select {
		case r := <-ch:
			return r.v, r.err
		default:
		}
		if late != nil {
			go func() {
				r := <-ch
				late(r.v, r.err)
			}()
		}
		var zero T
		return zero, ctx.Err()
	}
}

func awaitErr(ctx context.Context, fn func(context.Context) error) error {
	_, err := await(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, nil)
	return err
}
