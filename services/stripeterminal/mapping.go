package stripeterminal

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cardpresent/models"
	"cardpresent/services/terminal"

	"github.com/stripe/stripe-go/v76"
)

var deviceTypes = map[string]models.ReaderType{
	"bbpos_chipper2x":     models.ReaderTypeChipper2X,
	"stripe_m2":           models.ReaderTypeStripeM2,
	"bbpos_wisepad3":      models.ReaderTypeWisePad3,
	"bbpos_wisepos_e":     models.ReaderTypeWisePOSE,
	"simulated_wisepos_e": models.ReaderTypeWisePOSE,
}

// ReaderType maps a Stripe device type to a reader model.
func ReaderType(deviceType string) models.ReaderType {
	if t, ok := deviceTypes[strings.ToLower(deviceType)]; ok {
		return t
	}
	return models.ReaderTypeOther
}

var brands = map[string]models.CardBrand{
	"visa":             models.CardBrandVisa,
	"mastercard":       models.CardBrandMastercard,
	"amex":             models.CardBrandAmex,
	"american_express": models.CardBrandAmex,
	"discover":         models.CardBrandDiscover,
	"diners":           models.CardBrandDiners,
	"diners_club":      models.CardBrandDiners,
	"jcb":              models.CardBrandJCB,
	"unionpay":         models.CardBrandUnionPay,
	"interac":          models.CardBrandInterac,
}

// CardBrand maps a Stripe card brand to models.CardBrand.
func CardBrand(brand string) models.CardBrand {
	if b, ok := brands[strings.ToLower(brand)]; ok {
		return b
	}
	return models.CardBrandUnknown
}

// failureCodes maps Stripe error and reader action failure codes.
var failureCodes = map[string]terminal.ReaderErrorCode{
	"terminal_reader_busy":            terminal.CodeReaderBusy,
	"terminal_reader_offline":         terminal.CodeReaderOffline,
	"terminal_reader_timeout":         terminal.CodeReaderUnreachable,
	"terminal_reader_hardware_fault":  terminal.CodeHardwareDeclined,
	"card_declined":                   terminal.CodeCardDeclined,
	"expired_card":                    terminal.CodeCardDeclined,
	"incorrect_pin":                   terminal.CodeCardDeclined,
	"pin_try_exceeded":                terminal.CodeCardDeclined,
	"insufficient_funds":              terminal.CodeCardDeclined,
	"card_read_timed_out":             terminal.CodeCardReadFailed,
	"card_read_failed":                terminal.CodeCardReadFailed,
	"customer_canceled":               terminal.CodeCollectionCanceled,
	"processing_error":                terminal.CodeProcessingError,
	"payment_intent_unexpected_state": terminal.CodeInvalidRequest,
	"resource_missing":                terminal.CodeInvalidRequest,
	"rate_limit":                      terminal.CodeNetwork,
}

// classify turns a Stripe SDK error into a terminal.ReaderError. Context
// errors pass through unchanged.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return terminal.NewReaderError(terminal.CodeNetwork, msg, err)
	}
	if code, ok := failureCodes[string(se.Code)]; ok {
		return terminal.NewReaderError(code, msg, err)
	}

	switch {
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		return terminal.NewReaderError(terminal.CodeAuthentication, msg, err)
	case se.HTTPStatusCode == http.StatusTooManyRequests:
		return terminal.NewReaderError(terminal.CodeNetwork, msg, err)
	case se.Type == stripe.ErrorTypeCard:
		return terminal.NewReaderError(terminal.CodeCardDeclined, msg, err)
	case se.Type == stripe.ErrorTypeInvalidRequest:
		return terminal.NewReaderError(terminal.CodeInvalidRequest, msg, err)
	default:
		return terminal.NewReaderError(terminal.CodeBackend, msg, err)
	}
}

// actionFailure classifies a failed reader action.
func actionFailure(code, message string) error {
	rc, ok := failureCodes[code]
	if !ok {
		rc = terminal.CodeProcessingError
	}
	return terminal.NewReaderError(rc, "reader action failed: "+code+": "+message, nil)
}

func toReader(r *stripe.TerminalReader, remembered map[string]bool) models.Reader {
	return models.Reader{
		ID:              r.ID,
		SerialNumber:    r.SerialNumber,
		Label:           r.Label,
		Type:            ReaderType(string(r.DeviceType)),
		SoftwareVersion: r.DeviceSwVersion,
		Online:          string(r.Status) == "online",
		Remembered:      remembered[r.ID],
	}
}

// toIntent converts a Stripe intent, reading card details from its latest charge.
func toIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	out := &models.PaymentIntent{
		ID:       pi.ID,
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Status:   models.PaymentIntentStatus(pi.Status),
		Metadata: pi.Metadata,
	}
	if pi.Created > 0 {
		out.Created = unixTime(pi.Created)
	}
	if ch := pi.LatestCharge; ch != nil && ch.ID != "" {
		out.Charges = []models.Charge{{
			ID:            ch.ID,
			Amount:        ch.Amount,
			Description:   ch.Description,
			PaymentMethod: cardDetails(ch.PaymentMethodDetails),
		}}
	}
	return out
}

func cardDetails(d *stripe.ChargePaymentMethodDetails) *models.CardPresentDetails {
	if d == nil {
		return nil
	}
	if cp := d.CardPresent; cp != nil {
		out := &models.CardPresentDetails{
			Brand:          CardBrand(string(cp.Brand)),
			Last4:          cp.Last4,
			ExpMonth:       cp.ExpMonth,
			ExpYear:        cp.ExpYear,
			CardholderName: cp.CardholderName,
			Funding:        string(cp.Funding),
		}
		if r := cp.Receipt; r != nil {
			out.Receipt = models.CardPresentReceiptDetails{
				AccountType:                  string(r.AccountType),
				ApplicationPreferredName:     r.ApplicationPreferredName,
				DedicatedFileName:            r.DedicatedFileName,
				AuthorizationCode:            r.AuthorizationCode,
				AuthorizationResponseCode:    r.AuthorizationResponseCode,
				CardholderVerificationMethod: r.CardholderVerificationMethod,
				TerminalVerificationResults:  r.TerminalVerificationResults,
				TransactionStatusInformation: r.TransactionStatusInformation,
			}
		}
		return out
	}
	if ip := d.InteracPresent; ip != nil {
		out := &models.CardPresentDetails{
			Brand:          models.CardBrandInterac,
			Last4:          ip.Last4,
			ExpMonth:       ip.ExpMonth,
			ExpYear:        ip.ExpYear,
			CardholderName: ip.CardholderName,
			Funding:        string(ip.Funding),
		}
		if r := ip.Receipt; r != nil {
			out.Receipt = models.CardPresentReceiptDetails{
				AccountType:                  string(r.AccountType),
				ApplicationPreferredName:     r.ApplicationPreferredName,
				DedicatedFileName:            r.DedicatedFileName,
				AuthorizationCode:            r.AuthorizationCode,
				AuthorizationResponseCode:    r.AuthorizationResponseCode,
				CardholderVerificationMethod: r.CardholderVerificationMethod,
				TerminalVerificationResults:  r.TerminalVerificationResults,
				TransactionStatusInformation: r.TransactionStatusInformation,
			}
		}
		return out
	}
	return nil
}
