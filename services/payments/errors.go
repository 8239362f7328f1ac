package payments

import (
	"context"
	"errors"
	"fmt"

	"cardpresent/services/eligibility"
	"cardpresent/services/terminal"
)

var (
	// ErrInvalidTransition rejects an action that does not fit the current state,
	// including any second action while an attempt is active.
	ErrInvalidTransition = errors.New("invalid payment session transition")
	// ErrCanceled ends an attempt that the caller canceled.
	ErrCanceled = errors.New("payment attempt canceled")
	// ErrNoActiveAttempt is returned by Cancel when there is nothing to cancel.
	ErrNoActiveAttempt = errors.New("no active payment attempt")
	// ErrReceiptUnavailable is returned for an intent that has not succeeded.
	ErrReceiptUnavailable = errors.New("no receipt for an unsettled payment intent")
	// ErrIntentNotFound hides intents that belong to another site.
	ErrIntentNotFound = errors.New("payment intent not found")
)

// ErrorClass groups failures by what the caller has to do about them.
type ErrorClass string

const (
	ClassConfiguration ErrorClass = "configuration"
	ClassEligibility   ErrorClass = "eligibility"
	ClassConnection    ErrorClass = "connection"
	ClassIntentBuild   ErrorClass = "intent_build"
	ClassCollection    ErrorClass = "collection"
	ClassProcessing    ErrorClass = "processing"
	ClassCanceled      ErrorClass = "canceled"
)

// NextAction is the recovery the point-of-sale client should offer.
type NextAction string

const (
	ActionRetry          NextAction = "retry"
	ActionTryAnotherCard NextAction = "try_another_card"
	ActionResolveReader  NextAction = "resolve_reader"
	ActionAbort          NextAction = "abort"
	ActionNone           NextAction = "none"
)

// Codes produced locally rather than by a collaborator.
const (
	CodeConfigurationMissing = "configuration_missing"
	CodeIneligible           = "ineligible"
	CodeUnauthorized         = "unauthorized"
	CodeNetwork              = "network"
	CodeMalformedRequest     = "malformed_request"
	CodeAmountBelowMinimum   = "amount_below_minimum"
	CodeUnsupportedCurrency  = "unsupported_currency"
	CodeCanceled             = "canceled"
	CodeUnknown              = "unknown"
)

// PaymentError is the classified failure of a payment attempt.
type PaymentError struct {
	Class      ErrorClass
	Code       string
	Retryable  bool
	NextAction NextAction
	Err        error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s error (%s): %v", e.Class, e.Code, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

var nextActions = map[terminal.ReaderErrorCode]NextAction{
	terminal.CodeBluetoothTimeout:       ActionRetry,
	terminal.CodeReaderBusy:             ActionRetry,
	terminal.CodeReaderOffline:          ActionRetry,
	terminal.CodeReaderUnreachable:      ActionRetry,
	terminal.CodeNoReaderFound:          ActionRetry,
	terminal.CodeNetwork:                ActionRetry,
	terminal.CodeHardwareDeclined:       ActionRetry,
	terminal.CodeCardReadFailed:         ActionRetry,
	terminal.CodeCollectionTimeout:      ActionRetry,
	terminal.CodeProcessingTimeout:      ActionRetry,
	terminal.CodeCardDeclined:           ActionTryAnotherCard,
	terminal.CodeBluetoothUnavailable:   ActionResolveReader,
	terminal.CodeFirmwareUpdateRequired: ActionResolveReader,
	terminal.CodeUnsupportedReader:      ActionResolveReader,
	terminal.CodeNotConnected:           ActionResolveReader,
}

func canceledError() *PaymentError {
	return &PaymentError{Class: ClassCanceled, Code: CodeCanceled, NextAction: ActionNone, Err: ErrCanceled}
}

func configurationError(err error) *PaymentError {
	return &PaymentError{Class: ClassConfiguration, Code: CodeConfigurationMissing, NextAction: ActionAbort, Err: err}
}

func intentBuildError(code string, err error) *PaymentError {
	return &PaymentError{Class: ClassIntentBuild, Code: code, NextAction: ActionAbort, Err: err}
}

func eligibilityError(err error) *PaymentError {
	switch {
	case errors.Is(err, eligibility.ErrIneligible):
		return &PaymentError{Class: ClassEligibility, Code: CodeIneligible, NextAction: ActionAbort, Err: err}
	case errors.Is(err, eligibility.ErrUnauthorized):
		return &PaymentError{Class: ClassEligibility, Code: CodeUnauthorized, NextAction: ActionAbort, Err: err}
	default:
		return &PaymentError{Class: ClassEligibility, Code: CodeNetwork, Retryable: true, NextAction: ActionRetry, Err: err}
	}
}

// collaboratorError classifies a reader or backend failure. A deadline on the
// step context is reported with timeoutCode.
func collaboratorError(class ErrorClass, err error, timeoutCode terminal.ReaderErrorCode) *PaymentError {
	code := terminal.CodeOf(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && code == "":
		code = timeoutCode
	case errors.Is(err, terminal.ErrReaderInUse):
		code = terminal.CodeReaderBusy
	}
	if code == "" {
		return &PaymentError{Class: class, Code: CodeUnknown, NextAction: ActionAbort, Err: err}
	}

	action, ok := nextActions[code]
	if !ok {
		action = ActionAbort
	}
	return &PaymentError{
		Class:      class,
		Code:       string(code),
		Retryable:  action == ActionRetry || action == ActionTryAnotherCard,
		NextAction: action,
		Err:        err,
	}
}

// classifyAt maps an unclassified error to the class of the stage it happened in.
func classifyAt(stage State, err error) *PaymentError {
	var perr *PaymentError
	if errors.As(err, &perr) {
		return perr
	}
	switch stage {
	case StateCheckingEligibility:
		return eligibilityError(err)
	case StateDiscoveringReader:
		return collaboratorError(ClassConnection, err, terminal.CodeNoReaderFound)
	case StateConnecting, StateReaderConnected:
		return collaboratorError(ClassConnection, err, terminal.CodeReaderUnreachable)
	case StateCollectingPayment:
		return collaboratorError(ClassCollection, err, terminal.CodeCollectionTimeout)
	default:
		return collaboratorError(ClassProcessing, err, terminal.CodeProcessingTimeout)
	}
}
