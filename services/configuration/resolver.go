package configuration

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"cardpresent/models"

	"github.com/shopspring/decimal"
)

// ErrConfigurationMissing is returned for a country/capability combination that
// cannot take in-person payments.
var ErrConfigurationMissing = errors.New("card present configuration missing")

const (
	countryUS = "US"
	countryCA = "CA"
)

var minimumChargeAmount = decimal.RequireFromString("0.50")

// MakeConfiguration derives the in-person payments configuration for a store.
// It never falls back to a default: unknown combinations return ErrConfigurationMissing.
func MakeConfiguration(country string, stripeEnabled, canadaEnabled bool) (models.CardPresentPaymentsConfiguration, error) {
	code := strings.ToUpper(strings.TrimSpace(country))

	switch {
	case code == countryUS:
		gateways := []string{models.GatewayPrimary}
		if stripeEnabled {
			gateways = append(gateways, models.GatewayStripe)
		}
		return models.CardPresentPaymentsConfiguration{
			CountryCode:                countryUS,
			PaymentMethods:             []models.PaymentMethod{models.PaymentMethodCardPresent},
			Currencies:                 []string{"USD"},
			PaymentGateways:            gateways,
			SupportedReaders:           []models.ReaderType{models.ReaderTypeChipper2X, models.ReaderTypeStripeM2, models.ReaderTypeWisePOSE},
			MinimumAllowedChargeAmount: minimumChargeAmount,
		}, nil
	case code == countryCA && canadaEnabled:
		return models.CardPresentPaymentsConfiguration{
			CountryCode:                countryCA,
			PaymentMethods:             []models.PaymentMethod{models.PaymentMethodCardPresent, models.PaymentMethodInteracPresent},
			Currencies:                 []string{"CAD"},
			PaymentGateways:            []string{models.GatewayPrimary},
			SupportedReaders:           []models.ReaderType{models.ReaderTypeWisePad3, models.ReaderTypeWisePOSE},
			MinimumAllowedChargeAmount: minimumChargeAmount,
		}, nil
	default:
		return models.CardPresentPaymentsConfiguration{}, fmt.Errorf("%w: country %q (stripe=%t, canada=%t)", ErrConfigurationMissing, country, stripeEnabled, canadaEnabled)
	}
}

type cacheKey struct {
	country       string
	stripeEnabled bool
	canadaEnabled bool
}

type cacheEntry struct {
	cfg models.CardPresentPaymentsConfiguration
	err error
}

// Resolver memoizes MakeConfiguration per (country, flags) tuple.
type Resolver struct {
	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
}

func NewResolver() *Resolver {
	return &Resolver{cache: make(map[cacheKey]cacheEntry)}
}

// Resolve returns the cached configuration for the tuple, computing it on first
// use. Callers get their own copy of the slices.
func (r *Resolver) Resolve(country string, stripeEnabled, canadaEnabled bool) (models.CardPresentPaymentsConfiguration, error) {
	key := cacheKey{strings.ToUpper(strings.TrimSpace(country)), stripeEnabled, canadaEnabled}

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return entry.cfg.Clone(), entry.err
	}

	cfg, err := MakeConfiguration(country, stripeEnabled, canadaEnabled)
	r.mu.Lock()
	r.cache[key] = cacheEntry{cfg: cfg, err: err}
	r.mu.Unlock()
	return cfg.Clone(), err
}
