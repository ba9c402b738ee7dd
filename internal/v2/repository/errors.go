package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"glassfy/pkg/api"
)

// serverErrorMapper turns the error payload of a failed response into an
// SDK error. Endpoints with dedicated error codes supply their own.
type serverErrorMapper func(e *ErrorDto) *api.Error

func defaultServerError(e *ErrorDto) *api.Error {
	return api.NewError(api.ErrorServerError, e.Description)
}

func licenseServerError(e *ErrorDto) *api.Error {
	switch e.Code {
	case api.ServerCodeLicenseAlreadyConnected:
		return api.NewError(api.ErrorLicenseAlreadyConnected, e.Description)
	case api.ServerCodeLicenseNotFound:
		return api.NewError(api.ErrorLicenseNotFound, e.Description)
	default:
		return defaultServerError(e)
	}
}

func universalCodeServerError(e *ErrorDto) *api.Error {
	switch e.Code {
	case api.ServerCodeUniversalCodeAlreadyConnected:
		return api.NewError(api.ErrorLicenseAlreadyConnected, e.Description)
	case api.ServerCodeUniversalCodeNotFound:
		return api.NewError(api.ErrorLicenseNotFound, e.Description)
	default:
		return defaultServerError(e)
	}
}

// mapTransportError classifies a failure to talk to the server at all
func mapTransportError(err error) *api.Error {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		return api.NewError(api.ErrorInternetConnection, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return api.NewError(api.ErrorIOException, err.Error())
	case errors.As(err, &netErr):
		return api.NewError(api.ErrorIOException, err.Error())
	default:
		return api.NewError(api.ErrorUnknown, err.Error())
	}
}

func httpStatusError(status int, msg string) *api.Error {
	if msg == "" {
		return api.NewError(api.ErrorHttpException, fmt.Sprintf("HTTP %d", status))
	}
	return api.NewError(api.ErrorHttpException, fmt.Sprintf("HTTP %d %s", status, msg))
}
