package intent

import (
	"strings"

	"cardpresent/models"
	"cardpresent/services/currency"

	"github.com/shopspring/decimal"
)

var applicationFeeRate = decimal.RequireFromString("0.10")

// Build maps domain payment parameters to the wire parameters sent to the
// payment backend. It returns nil when a mandatory field (currency or at least
// one payment method) is missing, or the amount is negative.
func Build(params models.PaymentIntentParameters) *models.PaymentIntentWireParameters {
	code := strings.TrimSpace(params.Currency)
	if code == "" || len(params.PaymentMethods) == 0 {
		return nil
	}
	if params.Amount.IsNegative() {
		return nil
	}

	minor := currency.ToMinorUnits(params.Amount, code)
	fee := minor.Mul(applicationFeeRate).Floor()

	methods := make([]string, 0, len(params.PaymentMethods))
	for _, m := range params.PaymentMethods {
		methods = append(methods, string(m))
	}

	wire := &models.PaymentIntentWireParameters{
		Amount:             uint64(minor.IntPart()),
		ApplicationFee:     uint64(fee.IntPart()),
		Currency:           strings.ToLower(code),
		PaymentMethodTypes: methods,
		ReceiptDescription: params.ReceiptDescription,
		ReceiptEmail:       params.ReceiptEmail,
		Metadata:           copyMetadata(params.Metadata),
	}

	descriptor := ""
	if params.StatementDescriptor != nil {
		descriptor = *params.StatementDescriptor
	}
	if descriptor != "" {
		wire.StatementDescriptor = &descriptor
	}
	return wire
}

// ApplicationFee returns the platform fee charged on a minor-unit amount.
func ApplicationFee(minorAmount uint64) uint64 {
	return uint64(decimal.NewFromInt(int64(minorAmount)).Mul(applicationFeeRate).Floor().IntPart())
}

func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
