package store

import "fmt"

// ResponseCode mirrors the platform billing response codes
type ResponseCode int

const (
	ResponseServiceTimeout      ResponseCode = -3
	ResponseFeatureNotSupported ResponseCode = -2
	ResponseServiceDisconnected ResponseCode = -1
	ResponseOK                  ResponseCode = 0
	ResponseUserCanceled        ResponseCode = 1
	ResponseServiceUnavailable  ResponseCode = 2
	ResponseBillingUnavailable  ResponseCode = 3
	ResponseItemUnavailable     ResponseCode = 4
	ResponseDeveloperError      ResponseCode = 5
	ResponseError               ResponseCode = 6
	ResponseItemAlreadyOwned    ResponseCode = 7
	ResponseItemNotOwned        ResponseCode = 8
	ResponseNetworkError        ResponseCode = 12

	// ResponsePurchasing is never produced by the platform. It marks a
	// purchase rejected because one is already in flight for the product.
	ResponsePurchasing ResponseCode = 1001
)

var responseCodeNames = map[ResponseCode]string{
	ResponseServiceTimeout:      "SERVICE_TIMEOUT",
	ResponseFeatureNotSupported: "FEATURE_NOT_SUPPORTED",
	ResponseServiceDisconnected: "SERVICE_DISCONNECTED",
	ResponseOK:                  "OK",
	ResponseUserCanceled:        "USER_CANCELED",
	ResponseServiceUnavailable:  "SERVICE_UNAVAILABLE",
	ResponseBillingUnavailable:  "BILLING_UNAVAILABLE",
	ResponseItemUnavailable:     "ITEM_UNAVAILABLE",
	ResponseDeveloperError:      "DEVELOPER_ERROR",
	ResponseError:               "ERROR",
	ResponseItemAlreadyOwned:    "ITEM_ALREADY_OWNED",
	ResponseItemNotOwned:        "ITEM_NOT_OWNED",
	ResponseNetworkError:        "NETWORK_ERROR",
	ResponsePurchasing:          "PURCHASING",
}

func (c ResponseCode) String() string {
	if n, ok := responseCodeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(c))
}

// Result is the outcome of every store call
type Result struct {
	Code         ResponseCode
	DebugMessage string
}

func OK() Result {
	return Result{Code: ResponseOK}
}

func NewResult(code ResponseCode, debug string) Result {
	return Result{Code: code, DebugMessage: debug}
}

func (r Result) IsOK() bool {
	return r.Code == ResponseOK
}

func (r Result) String() string {
	if r.DebugMessage == "" {
		return r.Code.String()
	}
	return fmt.Sprintf("%s: %s", r.Code, r.DebugMessage)
}
