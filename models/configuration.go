package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod is a card-present payment method kind accepted by a reader.
type PaymentMethod string

const (
	PaymentMethodCardPresent    PaymentMethod = "card_present"
	PaymentMethodInteracPresent PaymentMethod = "interac_present"
)

// Payment gateway identifiers as reported by the commerce backend.
const (
	GatewayPrimary = "woocommerce-payments"
	GatewayStripe  = "woocommerce-gateway-stripe"
)

// CardPresentPaymentsConfiguration describes what a store in a given country can
// accept in person. Values are built by the configuration resolver and never mutated.
type CardPresentPaymentsConfiguration struct {
	CountryCode                string          `json:"countryCode"`
	PaymentMethods             []PaymentMethod `json:"paymentMethods"`
	Currencies                 []string        `json:"currencies"`
	PaymentGateways            []string        `json:"paymentGateways"`
	SupportedReaders           []ReaderType    `json:"supportedReaders"`
	MinimumAllowedChargeAmount decimal.Decimal `json:"minimumAllowedChargeAmount"`
}

// Clone returns a copy that shares no slices with c.
func (c CardPresentPaymentsConfiguration) Clone() CardPresentPaymentsConfiguration {
	c.PaymentMethods = append([]PaymentMethod(nil), c.PaymentMethods...)
	c.Currencies = append([]string(nil), c.Currencies...)
	c.PaymentGateways = append([]string(nil), c.PaymentGateways...)
	c.SupportedReaders = append([]ReaderType(nil), c.SupportedReaders...)
	return c
}

// SupportsCurrency reports whether code (case-insensitive) is accepted.
func (c CardPresentPaymentsConfiguration) SupportsCurrency(code string) bool {
	for _, cur := range c.Currencies {
		if strings.EqualFold(cur, code) {
			return true
		}
	}
	return false
}

// SupportsReader reports whether the reader model can take payments for this store.
func (c CardPresentPaymentsConfiguration) SupportsReader(t ReaderType) bool {
	for _, r := range c.SupportedReaders {
		if r == t {
			return true
		}
	}
	return false
}

// HasGateway reports whether id is one of the eligible gateways.
func (c CardPresentPaymentsConfiguration) HasGateway(id string) bool {
	for _, g := range c.PaymentGateways {
		if g == id {
			return true
		}
	}
	return false
}
