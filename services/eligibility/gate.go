// Package eligibility decides whether an order may be paid with a card reader
// before any reader interaction starts.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cardpresent/models"
	"cardpresent/services/commerce"

	"go.uber.org/zap"
)

var (
	// ErrIneligible means the backend (or the store configuration) refused the order.
	ErrIneligible = errors.New("order cannot be paid by card here")
	// ErrNetwork and ErrUnauthorized are the two transport-level outcomes.
	ErrNetwork      = commerce.ErrNetwork
	ErrUnauthorized = commerce.ErrUnauthorized
)

// Checker is the commerce backend call behind the gate.
type Checker interface {
	CheckOrderEligibility(ctx context.Context, siteID, orderID string) (*commerce.EligibilityResponse, error)
}

// Gate runs the eligibility round trip.
type Gate struct {
	checker Checker
	timeout time.Duration
	logger  *zap.Logger
}

func NewGate(checker Checker, timeout time.Duration, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{checker: checker, timeout: timeout, logger: logger}
}

// Check returns the eligibility of the order. Exactly one of three outcomes is
// reported: eligible (nil error), ineligible (ErrIneligible), or a transport
// failure (ErrNetwork / ErrUnauthorized). Results are never retried here.
func (g *Gate) Check(ctx context.Context, orderID, siteID string, cfg models.CardPresentPaymentsConfiguration) (models.Eligibility, error) {
	result := models.Eligibility{OrderID: orderID, SiteID: siteID}
	if orderID == "" || siteID == "" {
		result.Reason = "missing order or site id"
		return result, fmt.Errorf("%w: %s", ErrIneligible, result.Reason)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.checker.CheckOrderEligibility(ctx, siteID, orderID)
	if err != nil {
		var se *commerce.StatusError
		switch {
		case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNetwork):
		case errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusUnprocessableEntity):
			result.Reason = se.Body
			if result.Reason == "" {
				result.Reason = "order not found"
			}
			err = fmt.Errorf("%w: %s", ErrIneligible, result.Reason)
		default:
			err = fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		g.logger.Warn("Eligibility check failed",
			zap.String("order_id", orderID),
			zap.String("site_id", siteID),
			zap.Error(err),
		)
		return result, err
	}

	if !resp.Eligible {
		result.Reason = resp.Reason
		return result, fmt.Errorf("%w: %s", ErrIneligible, resp.Reason)
	}
	if resp.Currency != "" && !cfg.SupportsCurrency(resp.Currency) {
		result.Reason = fmt.Sprintf("currency %s is not supported for in-person payments in %s", resp.Currency, cfg.CountryCode)
		return result, fmt.Errorf("%w: %s", ErrIneligible, result.Reason)
	}

	result.Eligible = true
	return result, nil
}
