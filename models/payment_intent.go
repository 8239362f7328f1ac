package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metadata keys written on every card-present payment intent.
const (
	MetadataKeyOrderID     = "order_id"
	MetadataKeyStoreName   = "paymentintent.storename"
	MetadataKeySiteID      = "site_id"
	MetadataKeyReaderID    = "reader_id"
	MetadataKeyPaymentType = "payment_type"

	PaymentTypeSingle = "single"
)

// PaymentIntentParameters is the domain-level request to charge an amount in
// person. A fresh value is built for every attempt.
type PaymentIntentParameters struct {
	Amount              decimal.Decimal   // major units
	Currency            string
	PaymentMethods      []PaymentMethod
	ReceiptDescription  string
	StatementDescriptor *string
	ReceiptEmail        *string
	Metadata            map[string]string
}

// PaymentIntentWireParameters is what gets submitted to the payment backend.
// Amount and ApplicationFee are in the currency's smallest unit.
type PaymentIntentWireParameters struct {
	Amount              uint64            `json:"amount"`
	ApplicationFee      uint64            `json:"applicationFee"`
	Currency            string            `json:"currency"`
	PaymentMethodTypes  []string          `json:"paymentMethodTypes"`
	ReceiptDescription  string            `json:"receiptDescription,omitempty"`
	StatementDescriptor *string           `json:"statementDescriptor,omitempty"`
	ReceiptEmail        *string           `json:"receiptEmail,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// PaymentIntentStatus mirrors the backend lifecycle of an intent.
type PaymentIntentStatus string

const (
	PaymentIntentStatusRequiresPaymentMethod PaymentIntentStatus = "requires_payment_method"
	PaymentIntentStatusRequiresConfirmation  PaymentIntentStatus = "requires_confirmation"
	PaymentIntentStatusRequiresAction        PaymentIntentStatus = "requires_action"
	PaymentIntentStatusProcessing            PaymentIntentStatus = "processing"
	PaymentIntentStatusRequiresCapture       PaymentIntentStatus = "requires_capture"
	PaymentIntentStatusCanceled              PaymentIntentStatus = "canceled"
	PaymentIntentStatusSucceeded             PaymentIntentStatus = "succeeded"
	PaymentIntentStatusUnknown               PaymentIntentStatus = "unknown"
)

// PaymentIntent is the backend record of one charge attempt.
type PaymentIntent struct {
	ID       string              `json:"id"`
	Amount   int64               `json:"amount"` // minor units
	Currency string              `json:"currency"`
	Created  time.Time           `json:"created"`
	Status   PaymentIntentStatus `json:"status"`
	Metadata map[string]string   `json:"metadata,omitempty"`
	Charges  []Charge            `json:"charges,omitempty"`
}

// Charge is a single capture attempt against an intent.
type Charge struct {
	ID            string              `json:"id"`
	Amount        int64               `json:"amount"`
	Description   string              `json:"description,omitempty"`
	PaymentMethod *CardPresentDetails `json:"paymentMethod,omitempty"`
}

// CardPresentDetails is what the reader captured from the presented card.
type CardPresentDetails struct {
	Brand          CardBrand                 `json:"brand"`
	Last4          string                    `json:"last4"`
	ExpMonth       int64                     `json:"expMonth"`
	ExpYear        int64                     `json:"expYear"`
	CardholderName string                    `json:"cardholderName,omitempty"`
	Funding        string                    `json:"funding,omitempty"`
	Receipt        CardPresentReceiptDetails `json:"receipt"`
}

// CardPresentReceiptDetails holds the EMV fields that must be printed on a receipt.
type CardPresentReceiptDetails struct {
	AccountType                  string `json:"accountType,omitempty"`
	ApplicationPreferredName     string `json:"applicationPreferredName,omitempty"`
	DedicatedFileName            string `json:"dedicatedFileName,omitempty"`
	AuthorizationCode            string `json:"authorizationCode,omitempty"`
	AuthorizationResponseCode    string `json:"authorizationResponseCode,omitempty"`
	CardholderVerificationMethod string `json:"cardholderVerificationMethod,omitempty"`
	TerminalVerificationResults  string `json:"terminalVerificationResults,omitempty"`
	TransactionStatusInformation string `json:"transactionStatusInformation,omitempty"`
}

// CardPresentDetails returns the first card-present details attached to the
// intent's charges, or nil when the payment did not use a card reader.
func (p PaymentIntent) CardPresentDetails() *CardPresentDetails {
	for _, ch := range p.Charges {
		if ch.PaymentMethod != nil {
			return ch.PaymentMethod
		}
	}
	return nil
}

// IsTerminal reports whether the backend will not move the intent any further.
func (s PaymentIntentStatus) IsTerminal() bool {
	return s == PaymentIntentStatusSucceeded || s == PaymentIntentStatusCanceled
}
