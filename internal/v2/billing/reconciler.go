package billing

import (
	"context"
	"sort"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/sync/singleflight"

	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

// Reconciler finalizes purchases at the store: consumables are consumed,
// subscriptions acknowledged. In watcher mode it finalizes nothing.
type Reconciler struct {
	gate        *ConnectionGate
	client      store.Client
	watcherMode bool
	lookups     singleflight.Group
}

func NewReconciler(gate *ConnectionGate, client store.Client, watcherMode bool) *Reconciler {
	return &Reconciler{gate: gate, client: client, watcherMode: watcherMode}
}

// Reconcile finalizes p according to kind. Only purchased records are
// touched. An unknown kind is looked up in the store catalog first; if it
// stays unknown the purchase is left alone.
func (r *Reconciler) Reconcile(ctx context.Context, p *types.PurchaseRecord, kind types.ProductKind) error {
	if r.watcherMode {
		glog.V(2).Infof("reconcile purchase %v - watcher mode, skipped", p.ProductIDs)
		return nil
	}
	if p.State != types.PurchaseStatePurchased {
		glog.V(2).Infof("reconcile purchase %v - state %s, skipped", p.ProductIDs, p.State)
		return nil
	}
	if kind == types.ProductKindUnknown {
		kind = r.ResolveKind(ctx, p.ProductIDs)
	}

	glog.V(2).Infof("reconcile purchase %v - kind:%s state:%s ack:%t", p.ProductIDs, kind, p.State, p.Acknowledged)

	switch kind {
	case types.ProductKindConsumable:
		return r.Consume(ctx, p.PurchaseToken)
	case types.ProductKindSubscription:
		if p.Acknowledged {
			return nil
		}
		if err := r.Acknowledge(ctx, p.PurchaseToken); err != nil {
			return err
		}
		p.Acknowledged = true
		return nil
	default:
		glog.Warningf("unknown product kind for %v, purchase not finalized", p.ProductIDs)
		return nil
	}
}

func (r *Reconciler) Consume(ctx context.Context, token string) error {
	_, err := WithConnection(ctx, r.gate, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, ConvertResult(r.client.Consume(ctx, token))
	})
	if err != nil {
		glog.Warningf("consume token failed: %v", err)
	}
	return err
}

func (r *Reconciler) Acknowledge(ctx context.Context, token string) error {
	_, err := WithConnection(ctx, r.gate, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, ConvertResult(r.client.Acknowledge(ctx, token))
	})
	if err != nil {
		glog.Warningf("acknowledge token failed: %v", err)
	}
	return err
}

// ResolveKind asks the store which kind the products belong to, trying
// subscriptions before one-time products. Concurrent lookups for the same
// ids share one query.
func (r *Reconciler) ResolveKind(ctx context.Context, productIDs []string) types.ProductKind {
	if len(productIDs) == 0 {
		return types.ProductKindUnknown
	}
	ids := append([]string(nil), productIDs...)
	sort.Strings(ids)

	v, _, _ := r.lookups.Do(strings.Join(ids, ","), func() (interface{}, error) {
		for _, kind := range []types.ProductKind{types.ProductKindSubscription, types.ProductKindConsumable} {
			details, err := queryProductDetails(ctx, r.gate, r.client, ids, kind)
			if err != nil {
				glog.Warningf("product kind lookup for %v failed: %v", ids, err)
				continue
			}
			if len(details) > 0 {
				return kind, nil
			}
		}
		return types.ProductKindUnknown, nil
	})
	return v.(types.ProductKind)
}
