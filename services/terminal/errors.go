package terminal

import (
	"errors"
	"fmt"
)

// ReaderErrorCode classifies failures reported by a reader or the backend.
type ReaderErrorCode string

const (
	// Connection.
	CodeBluetoothUnavailable   ReaderErrorCode = "bluetooth_unavailable"
	CodeBluetoothTimeout       ReaderErrorCode = "bluetooth_timeout"
	CodeReaderBusy             ReaderErrorCode = "reader_busy"
	CodeReaderOffline          ReaderErrorCode = "reader_offline"
	CodeReaderUnreachable      ReaderErrorCode = "reader_unreachable"
	CodeFirmwareUpdateRequired ReaderErrorCode = "firmware_update_required"
	CodeUnsupportedReader      ReaderErrorCode = "unsupported_reader"
	CodeNoReaderFound          ReaderErrorCode = "no_reader_found"
	CodeNotConnected           ReaderErrorCode = "not_connected"

	// Collection and processing.
	CodeCardDeclined       ReaderErrorCode = "card_declined"
	CodeHardwareDeclined   ReaderErrorCode = "hardware_declined"
	CodeCardReadFailed     ReaderErrorCode = "card_read_failed"
	CodeCollectionTimeout  ReaderErrorCode = "collection_timeout"
	CodeProcessingTimeout  ReaderErrorCode = "processing_timeout"
	CodeProcessingError    ReaderErrorCode = "processing_error"
	CodeCollectionCanceled ReaderErrorCode = "collection_canceled"

	// Backend.
	CodeAuthentication ReaderErrorCode = "authentication"
	CodeInvalidRequest ReaderErrorCode = "invalid_request"
	CodeBackend        ReaderErrorCode = "backend"
	CodeNetwork        ReaderErrorCode = "network"
)

// transient codes are worth retrying without user action.
var transient = map[ReaderErrorCode]bool{
	CodeBluetoothTimeout: true,
	CodeReaderBusy:       true,
	CodeReaderOffline:    true,
	CodeNetwork:          true,
}

// ReaderError is a classified collaborator failure.
type ReaderError struct {
	Code    ReaderErrorCode
	Message string
	Err     error
}

func NewReaderError(code ReaderErrorCode, msg string, err error) *ReaderError {
	return &ReaderError{Code: code, Message: msg, Err: err}
}

func (e *ReaderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReaderError) Unwrap() error { return e.Err }

// Transient reports whether the failure may clear up on its own.
func (e *ReaderError) Transient() bool { return transient[e.Code] }

// CodeOf returns the classification of err, or "" when err is not a ReaderError.
func CodeOf(err error) ReaderErrorCode {
	var re *ReaderError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsTransient reports whether err is a ReaderError with a transient code.
func IsTransient(err error) bool {
	var re *ReaderError
	return errors.As(err, &re) && re.Transient()
}
