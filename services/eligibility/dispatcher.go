package eligibility

import (
	"context"
	"sync"

	"cardpresent/models"
)

// CheckEligibilityAction requests an eligibility check; OnCompletion is called
// exactly once with the outcome.
type CheckEligibilityAction struct {
	OrderID       string
	SiteID        string
	Configuration models.CardPresentPaymentsConfiguration
	OnCompletion  func(models.Eligibility, error)
}

// Dispatcher runs eligibility actions in the background.
type Dispatcher struct {
	gate   *Gate
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(gate *Gate) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{gate: gate, ctx: ctx, cancel: cancel}
}

// Dispatch starts the check and returns immediately.
func (d *Dispatcher) Dispatch(action CheckEligibilityAction) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		result, err := d.gate.Check(d.ctx, action.OrderID, action.SiteID, action.Configuration)
		if action.OnCompletion != nil {
			action.OnCompletion(result, err)
		}
	}()
}

// Close cancels in-flight checks and waits for their completions to run.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
