package store

import (
	"context"

	"glassfy/pkg/v2/types"
)

// Activity is the opaque host handle the purchase UI is attached to
type Activity interface{}

// Feature names a capability probed through IsFeatureSupported
type Feature string

const (
	FeatureProductDetails      Feature = "fff"
	FeatureSubscriptions       Feature = "subscriptions"
	FeatureSubscriptionsUpdate Feature = "subscriptionsUpdate"
)

// ConnectionListener receives the outcome of StartConnection. Exactly one of
// the two methods is called per attempt.
type ConnectionListener interface {
	OnBillingSetupFinished(res Result)
	OnBillingServiceDisconnected()
}

// PurchasesUpdatedListener is the single global purchase callback. It
// receives the result of every purchase flow, including purchases made
// outside the SDK.
type PurchasesUpdatedListener func(res Result, purchases []*types.PurchaseRecord)

// FlowParams describes one purchase UI launch
type FlowParams struct {
	Product   *types.StoreProduct
	Update    *types.SubscriptionUpdate
	AccountID string
}

// Client is the platform billing connection. Query methods are synchronous
// from the caller's point of view and may only be called while IsReady.
type Client interface {
	IsReady() bool
	StartConnection(listener ConnectionListener)
	EndConnection()
	SetPurchasesUpdatedListener(listener PurchasesUpdatedListener)

	QueryPurchaseHistory(ctx context.Context, kind types.ProductKind) ([]*types.PurchaseHistoryRecord, Result)
	QueryPurchases(ctx context.Context, kind types.ProductKind) ([]*types.PurchaseRecord, Result)
	QueryProductDetails(ctx context.Context, productIDs []string, kind types.ProductKind) ([]*types.ProductDetails, Result)
	// QuerySkuDetails is the pre-5.0 catalog API. It returns already
	// resolved products for both kinds and knows nothing about plans.
	QuerySkuDetails(ctx context.Context, productIDs []string) ([]*types.StoreProduct, Result)

	// LaunchBillingFlow must be called on the main thread. The purchase
	// outcome is delivered to the PurchasesUpdatedListener.
	LaunchBillingFlow(activity Activity, params FlowParams) Result
	Consume(ctx context.Context, purchaseToken string) Result
	Acknowledge(ctx context.Context, purchaseToken string) Result

	IsFeatureSupported(feature Feature) Result
	LibraryVersion() string
}

// FlowCanceler is implemented by clients able to dismiss an open purchase UI
type FlowCanceler interface {
	CancelBillingFlow(activity Activity, productID string)
}
