package payments

// State is a step of the card-present payment session.
type State string

const (
	StateIdle                State = "idle"
	StateCheckingEligibility State = "checking_eligibility"
	StateDiscoveringReader   State = "discovering_reader"
	StateConnecting          State = "connecting"
	StateReaderConnected     State = "reader_connected"
	StateCreatingIntent      State = "creating_intent"
	StateCollectingPayment   State = "collecting_payment"
	StateProcessingPayment   State = "processing_payment"
	StateCompleted           State = "completed"
	StateFailed              State = "failed"
)

// forward lists the non-exit transitions. Exits to idle or failed are allowed
// from every state and are applied by finish, not by transition.
var forward = map[State][]State{
	StateIdle:                {StateCheckingEligibility, StateDiscoveringReader},
	StateCheckingEligibility: {StateDiscoveringReader, StateReaderConnected},
	StateDiscoveringReader:   {StateConnecting},
	StateConnecting:          {StateReaderConnected},
	StateReaderConnected:     {StateCheckingEligibility, StateCreatingIntent},
	StateCreatingIntent:      {StateCollectingPayment},
	StateCollectingPayment:   {StateProcessingPayment},
	StateProcessingPayment:   {StateCompleted},
	StateCompleted:           {StateCheckingEligibility, StateDiscoveringReader},
	StateFailed:              {StateCheckingEligibility, StateDiscoveringReader},
}

func canTransition(from, to State) bool {
	for _, s := range forward[from] {
		if s == to {
			return true
		}
	}
	return false
}

// quiescent reports whether no hardware or network work is pending in s.
func (s State) quiescent() bool {
	switch s {
	case StateIdle, StateReaderConnected, StateCompleted, StateFailed:
		return true
	}
	return false
}

func stateIn(s State, allowed []State) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
