package models

import "time"

// ReceiptParameters is the printable/emailable content of a card-present receipt.
type ReceiptParameters struct {
	Amount          int64              `json:"amount"` // minor units
	FormattedAmount string             `json:"formattedAmount"`
	Currency        string             `json:"currency"`
	Date            time.Time          `json:"date"`
	StoreName       *string            `json:"storeName,omitempty"`
	OrderID         *string            `json:"orderId,omitempty"`
	CardDetails     CardPresentDetails `json:"cardDetails"`
}

// CurrencyPosition is where the currency symbol sits relative to the number.
type CurrencyPosition string

const (
	CurrencyPositionLeft       CurrencyPosition = "left"
	CurrencyPositionRight      CurrencyPosition = "right"
	CurrencyPositionLeftSpace  CurrencyPosition = "left_space"
	CurrencyPositionRightSpace CurrencyPosition = "right_space"
)

// CurrencySettings are the store's currency display preferences.
type CurrencySettings struct {
	Code              string           `json:"code" mapstructure:"code"`
	Position          CurrencyPosition `json:"position" mapstructure:"position"`
	ThousandSeparator string           `json:"thousandSeparator" mapstructure:"thousand_separator"`
	DecimalSeparator  string           `json:"decimalSeparator" mapstructure:"decimal_separator"`
	Decimals          int32            `json:"decimals" mapstructure:"decimals"`
}
