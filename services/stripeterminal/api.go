// Package stripeterminal implements the terminal collaborators on top of
// Stripe PaymentIntents and server-driven Stripe Terminal readers.
package stripeterminal

import (
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// intentAPI is the subset of the PaymentIntents client the backend uses.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// readerAPI is the subset of the Terminal Readers client the adapter uses.
type readerAPI interface {
	List(params *stripe.TerminalReaderListParams) ([]*stripe.TerminalReader, error)
	Get(id string, params *stripe.TerminalReaderParams) (*stripe.TerminalReader, error)
	ProcessPaymentIntent(id string, params *stripe.TerminalReaderProcessPaymentIntentParams) (*stripe.TerminalReader, error)
	CancelAction(id string, params *stripe.TerminalReaderCancelActionParams) (*stripe.TerminalReader, error)
}

// sdkReaders drains the SDK list iterator so readerAPI can be faked.
type sdkReaders struct {
	api *client.API
}

func (s sdkReaders) List(params *stripe.TerminalReaderListParams) ([]*stripe.TerminalReader, error) {
	var out []*stripe.TerminalReader
	it := s.api.TerminalReaders.List(params)
	for it.Next() {
		out = append(out, it.TerminalReader())
	}
	return out, it.Err()
}

func (s sdkReaders) Get(id string, params *stripe.TerminalReaderParams) (*stripe.TerminalReader, error) {
	return s.api.TerminalReaders.Get(id, params)
}

func (s sdkReaders) ProcessPaymentIntent(id string, params *stripe.TerminalReaderProcessPaymentIntentParams) (*stripe.TerminalReader, error) {
	return s.api.TerminalReaders.ProcessPaymentIntent(id, params)
}

func (s sdkReaders) CancelAction(id string, params *stripe.TerminalReaderCancelActionParams) (*stripe.TerminalReader, error) {
	return s.api.TerminalReaders.CancelAction(id, params)
}

// NewClient returns a Stripe API client for secretKey.
func NewClient(secretKey string) *client.API {
	return client.New(secretKey, nil)
}
