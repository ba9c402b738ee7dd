package billing

import (
	"glassfy/pkg/api"
	"glassfy/pkg/v2/store"
)

var resultMessages = map[store.ResponseCode]string{
	store.ResponseItemNotOwned:        "Action on the item failed since it is not owned by the user. (ITEM_NOT_OWNED)",
	store.ResponseServiceTimeout:      "The request has reached the maximum timeout before the store responds. (SERVICE_TIMEOUT)",
	store.ResponseServiceDisconnected: "Store service is not connected now. (SERVICE_DISCONNECTED)",
	store.ResponseServiceUnavailable:  "The service is currently unavailable. (SERVICE_UNAVAILABLE)",
	store.ResponseBillingUnavailable:  "A user billing error occurred during processing. (BILLING_UNAVAILABLE)",
	store.ResponseItemUnavailable:     "Requested product is not available for purchase. (ITEM_UNAVAILABLE)",
	store.ResponseDeveloperError:      "The store does not recognize the configuration. Check product ids and app signing. (DEVELOPER_ERROR)",
	store.ResponseError:               "Internal store error. (ERROR)",
	store.ResponseFeatureNotSupported: "The requested feature is not supported on the current device. (FEATURE_NOT_SUPPORTED)",
	store.ResponseNetworkError:        "A network error occurred during the operation. (NETWORK_ERROR)",
}

// ConvertResult maps a store result onto the SDK error taxonomy. It returns
// nil for an OK result.
func ConvertResult(res store.Result) error {
	switch res.Code {
	case store.ResponseOK:
		return nil
	case store.ResponsePurchasing:
		return api.NewError(api.ErrorPurchasing, "Purchase already in progress...")
	case store.ResponseItemAlreadyOwned:
		return api.NewError(api.ErrorProductAlreadyOwned, "The purchase failed because the item is already owned. (ITEM_ALREADY_OWNED)")
	case store.ResponseUserCanceled:
		return api.NewError(api.ErrorUserCancelPurchase, "Transaction was canceled by the user. (USER_CANCELED)")
	}

	msg, ok := resultMessages[res.Code]
	if !ok {
		msg = "Unknown error"
	}
	if res.DebugMessage != "" {
		msg += " " + res.DebugMessage
	}
	return api.NewError(api.ErrorStoreError, msg)
}
