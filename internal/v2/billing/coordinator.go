package billing

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"glassfy/pkg/api"
	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

type purchaseOutcome struct {
	purchase *types.PurchaseRecord
	err      error
}

// inFlightPurchase guards one product id while its purchase UI is open
type inFlightPurchase struct {
	kind types.ProductKind
	ch   chan purchaseOutcome // buffered, written once
}

type delegateBox struct {
	d types.PurchaseDelegate
}

// PurchaseCoordinator runs purchase flows and dispatches the store's global
// purchase callback to reconciliation, the delegate and the waiting callers.
type PurchaseCoordinator struct {
	client      store.Client
	gate        *ConnectionGate
	main        store.MainThread
	reconciler  *Reconciler
	watcherMode bool

	delegate atomic.Pointer[delegateBox]
	inFlight sync.Map // product id -> *inFlightPurchase
}

func NewPurchaseCoordinator(client store.Client, gate *ConnectionGate, reconciler *Reconciler, main store.MainThread, watcherMode bool) *PurchaseCoordinator {
	if main == nil {
		main = store.Inline{}
	}
	c := &PurchaseCoordinator{
		client:      client,
		gate:        gate,
		main:        main,
		reconciler:  reconciler,
		watcherMode: watcherMode,
	}
	client.SetPurchasesUpdatedListener(c.HandlePurchasesUpdated)
	return c
}

// SetDelegate replaces the delegate notified of completed purchases
func (c *PurchaseCoordinator) SetDelegate(d types.PurchaseDelegate) {
	c.delegate.Store(&delegateBox{d: d})
}

// IsPurchasing reports whether a purchase flow is open for productID
func (c *PurchaseCoordinator) IsPurchasing(productID string) bool {
	_, ok := c.inFlight.Load(productID)
	return ok
}

// Purchase launches the store purchase UI for product and waits for the
// store to report the outcome. A second call for a product already in
// flight fails immediately with a Purchasing error.
func (c *PurchaseCoordinator) Purchase(ctx context.Context, activity store.Activity, product *types.StoreProduct, update *types.SubscriptionUpdate, accountID string) (*types.PurchaseRecord, error) {
	if update != nil && update.PurchaseToken == "" {
		return nil, ConvertResult(store.NewResult(store.ResponseItemNotOwned, ""))
	}

	entry := &inFlightPurchase{kind: product.Kind, ch: make(chan purchaseOutcome, 1)}
	if _, loaded := c.inFlight.LoadOrStore(product.ProductID, entry); loaded {
		glog.V(2).Infof("purchase %s rejected, already purchasing", product.ProductID)
		return nil, ConvertResult(store.NewResult(store.ResponsePurchasing, "Already Purchasing..."))
	}
	defer c.inFlight.CompareAndDelete(product.ProductID, entry)

	if err := c.gate.Connect(ctx); err != nil {
		return nil, err
	}

	params := store.FlowParams{Product: product, AccountID: accountID}
	if update != nil && product.Kind == types.ProductKindSubscription {
		params.Update = update
	}

	res, err := c.launch(ctx, activity, params)
	if err != nil {
		return nil, err
	}
	if !res.IsOK() {
		glog.V(2).Infof("purchase %s - launch failed: %s", product.ProductID, res)
		return nil, ConvertResult(res)
	}

	select {
	case out := <-entry.ch:
		glog.V(2).Infof("purchase %s - resolved", product.ProductID)
		return out.purchase, out.err
	case <-ctx.Done():
		if fc, ok := c.client.(store.FlowCanceler); ok {
			c.main.Post(func() { fc.CancelBillingFlow(activity, product.ProductID) })
		}
		return nil, api.NewError(api.ErrorUserCancelPurchase, "purchase flow abandoned: "+ctx.Err().Error())
	}
}

// launch opens the purchase UI on the main thread. Waiting is bounded by
// ctx, so a caller already on the main thread gets UserCancelPurchase
// instead of blocking the queue it waits on. A launch still queued when ctx
// ends never runs.
func (c *PurchaseCoordinator) launch(ctx context.Context, activity store.Activity, params store.FlowParams) (store.Result, error) {
	var claimed atomic.Bool
	launched := make(chan store.Result, 1)
	c.main.Post(func() {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		glog.V(2).Infof("purchase %s - launching billing flow", params.Product.ProductID)
		launched <- c.client.LaunchBillingFlow(activity, params)
	})

	select {
	case res := <-launched:
		return res, nil
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			glog.V(2).Infof("purchase %s - abandoned before launch", params.Product.ProductID)
			return store.Result{}, api.NewError(api.ErrorUserCancelPurchase, "purchase flow abandoned: "+ctx.Err().Error())
		}
		// the launch is already running, let it report
		return <-launched, nil
	}
}

// HandlePurchasesUpdated is the store's global purchase callback. For each
// purchased record it reconciles, schedules the delegate, then resolves the
// callers waiting on any of the record's products. An error result aborts
// every purchase in flight.
func (c *PurchaseCoordinator) HandlePurchasesUpdated(res store.Result, purchases []*types.PurchaseRecord) {
	if !res.IsOK() {
		glog.V(2).Infof("purchases updated with error: %s", res)
		c.abortAll(ConvertResult(res))
		return
	}

	ctx := context.Background()
	for _, p := range purchases {
		if p.State == types.PurchaseStatePurchased {
			kind := c.kindOf(ctx, p.ProductIDs)
			if kind.IsStoreKind() {
				if !c.watcherMode {
					if err := c.reconciler.Reconcile(ctx, p, kind); err != nil {
						glog.Warningf("reconcile purchase %v failed, will retry on next start: %v", p.ProductIDs, err)
					}
				}
				c.notify(p, kind == types.ProductKindSubscription)
			} else {
				glog.Warningf("purchase %v has unknown product kind", p.ProductIDs)
			}
		}
		c.resolve(p.ProductIDs, purchaseOutcome{purchase: p})
	}
}

func (c *PurchaseCoordinator) kindOf(ctx context.Context, productIDs []string) types.ProductKind {
	for _, id := range productIDs {
		if v, ok := c.inFlight.Load(id); ok {
			if k := v.(*inFlightPurchase).kind; k.IsStoreKind() {
				return k
			}
		}
	}
	return c.reconciler.ResolveKind(ctx, productIDs)
}

func (c *PurchaseCoordinator) notify(p *types.PurchaseRecord, isSubscription bool) {
	box := c.delegate.Load()
	if box == nil || box.d == nil {
		return
	}
	d := box.d
	c.main.Post(func() { d.OnProductPurchase(p, isSubscription) })
}

// Notify schedules the delegate for a purchase handled outside a flow
func (c *PurchaseCoordinator) Notify(p *types.PurchaseRecord, isSubscription bool) {
	c.notify(p, isSubscription)
}

func (c *PurchaseCoordinator) resolve(productIDs []string, out purchaseOutcome) {
	for _, id := range productIDs {
		if v, ok := c.inFlight.LoadAndDelete(id); ok {
			v.(*inFlightPurchase).ch <- out
		}
	}
}

func (c *PurchaseCoordinator) abortAll(err error) {
	c.inFlight.Range(func(k, v interface{}) bool {
		if c.inFlight.CompareAndDelete(k, v) {
			v.(*inFlightPurchase).ch <- purchaseOutcome{err: err}
		}
		return true
	})
}
