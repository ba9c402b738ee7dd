package api

import (
	"errors"
	"fmt"
)

// ErrorCode is the kind of failure reported by every public SDK operation.
type ErrorCode string

const (
	ErrorSDKNotInitialized       ErrorCode = "sdk_not_initialized"
	ErrorMissingPurchase         ErrorCode = "missing_purchase"
	ErrorPendingPurchase         ErrorCode = "pending_purchase"
	ErrorPurchasing              ErrorCode = "purchasing"
	ErrorStoreError              ErrorCode = "store_error"
	ErrorUserCancelPurchase      ErrorCode = "user_cancel_purchase"
	ErrorProductAlreadyOwned     ErrorCode = "product_already_owned"
	ErrorServerError             ErrorCode = "server_error"
	ErrorInternetConnection      ErrorCode = "internet_connection"
	ErrorIOException             ErrorCode = "io_exception"
	ErrorHttpException           ErrorCode = "http_exception"
	ErrorNotFoundOnGlassfy       ErrorCode = "not_found_on_glassfy"
	ErrorNotFoundOnStore         ErrorCode = "not_found_on_store"
	ErrorLicenseAlreadyConnected ErrorCode = "license_already_connected"
	ErrorLicenseNotFound         ErrorCode = "license_not_found"
	ErrorCouldNotBuildPaywall    ErrorCode = "could_not_build_paywall"
	ErrorUnknown                 ErrorCode = "unknown_error"
)

// Server-side error codes carried in the remote error payload.
const (
	ServerCodeLicenseAlreadyConnected       = 1050
	ServerCodeLicenseNotFound               = 1051
	ServerCodeUniversalCodeAlreadyConnected = 1060
	ServerCodeUniversalCodeNotFound         = 1061
)

var descriptions = map[ErrorCode]string{
	ErrorSDKNotInitialized:       "SDK not initialized",
	ErrorMissingPurchase:         "Purchase",
	ErrorPendingPurchase:         "Purchase is pending",
	ErrorPurchasing:              "Purchasing",
	ErrorStoreError:              "Store error",
	ErrorUserCancelPurchase:      "User cancel purchase",
	ErrorProductAlreadyOwned:     "Product already owned",
	ErrorServerError:             "Server error",
	ErrorInternetConnection:      "Check your internet connection",
	ErrorIOException:             "IOException",
	ErrorHttpException:           "HttpException",
	ErrorNotFoundOnGlassfy:       "Product not found on Glassfy. Did you add to the dashboard?",
	ErrorNotFoundOnStore:         "Product not found on Store",
	ErrorLicenseAlreadyConnected: "License already connected to another subscriber",
	ErrorLicenseNotFound:         "License not found",
	ErrorCouldNotBuildPaywall:    "Could not build paywall",
	ErrorUnknown:                 "Unexpected error",
}

// Error is the only error type that crosses a component boundary.
type Error struct {
	Code        ErrorCode `json:"code"`
	Description string    `json:"description"`
	Debug       string    `json:"debug,omitempty"`
}

func (e *Error) Error() string {
	if e.Debug == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Description, e.Debug)
}

// Is matches on code so errors.Is(err, api.NewError(code)) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError builds an Error of the given code. The optional debug string
// carries the low-level diagnostic (store debug message, HTTP status...).
func NewError(code ErrorCode, debug ...string) *Error {
	var d string
	if len(debug) > 0 {
		d = debug[0]
	}
	desc, ok := descriptions[code]
	if !ok {
		desc = descriptions[ErrorUnknown]
	}
	return &Error{Code: code, Description: desc, Debug: d}
}

func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of err, ErrorUnknown for foreign errors and ""
// for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var t *Error
	if errors.As(err, &t) {
		return t.Code
	}
	return ErrorUnknown
}

func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Wrap converts any error into an *Error. Already typed errors are returned
// as is, anything else becomes ErrorUnknown carrying the original message.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var t *Error
	if errors.As(err, &t) {
		return t
	}
	return NewError(ErrorUnknown, err.Error())
}
