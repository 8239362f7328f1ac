// Package receipt derives receipt content from completed card-present payments.
package receipt

import (
	"strings"

	"cardpresent/models"
)

// Parameters builds receipt data for a completed intent. It returns nil when
// the intent carries no card-present details, since there is nothing a card
// receipt could be printed from.
func Parameters(intent models.PaymentIntent, settings models.CurrencySettings) *models.ReceiptParameters {
	details := intent.CardPresentDetails()
	if details == nil {
		return nil
	}

	if settings.Code == "" {
		settings = DefaultSettings(intent.Currency)
	}
	formatter := NewFormatter(settings)

	return &models.ReceiptParameters{
		Amount:          intent.Amount,
		FormattedAmount: formatter.Format(intent.Amount, intent.Currency),
		Currency:        strings.ToUpper(intent.Currency),
		Date:            intent.Created,
		StoreName:       metadataValue(intent.Metadata, models.MetadataKeyStoreName),
		OrderID:         metadataValue(intent.Metadata, models.MetadataKeyOrderID),
		CardDetails:     *details,
	}
}

func metadataValue(metadata map[string]string, key string) *string {
	v, ok := metadata[key]
	if !ok || v == "" {
		return nil
	}
	return &v
}
