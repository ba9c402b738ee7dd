package billing

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

type ServiceConfig struct {
	Gate        GateConfig
	MainThread  store.MainThread
	WatcherMode bool
}

// Service is the billing facade used by the SDK. Every call reaching the
// store goes through the connection gate and returns errors already mapped
// onto the SDK taxonomy.
type Service struct {
	client      store.Client
	gate        *ConnectionGate
	reconciler  *Reconciler
	coordinator *PurchaseCoordinator

	catalogOnce sync.Once
	catalog     Catalog
}

func NewService(client store.Client, cfg ServiceConfig) *Service {
	gate := NewConnectionGate(client, cfg.Gate)
	reconciler := NewReconciler(gate, client, cfg.WatcherMode)
	return &Service{
		client:      client,
		gate:        gate,
		reconciler:  reconciler,
		coordinator: NewPurchaseCoordinator(client, gate, reconciler, cfg.MainThread, cfg.WatcherMode),
	}
}

func (s *Service) Gate() *ConnectionGate             { return s.gate }
func (s *Service) Reconciler() *Reconciler           { return s.reconciler }
func (s *Service) Coordinator() *PurchaseCoordinator { return s.coordinator }

func (s *Service) SetDelegate(d types.PurchaseDelegate) {
	s.coordinator.SetDelegate(d)
}

// Catalog returns the catalog strategy, probing the client on first use
func (s *Service) Catalog(ctx context.Context) Catalog {
	s.catalogOnce.Do(func() {
		s.catalog = SelectCatalog(ctx, s.gate, s.client)
		glog.Infof("billing catalog selected, version %d", s.catalog.Version())
	})
	return s.catalog
}

func (s *Service) PurchaseHistory(ctx context.Context, kind types.ProductKind) ([]*types.PurchaseHistoryRecord, error) {
	return WithConnection(ctx, s.gate, func(ctx context.Context) ([]*types.PurchaseHistoryRecord, error) {
		records, res := s.client.QueryPurchaseHistory(ctx, kind)
		if err := ConvertResult(res); err != nil {
			return nil, err
		}
		return records, nil
	})
}

// Histories fetches the in-app and subscription histories concurrently
func (s *Service) Histories(ctx context.Context) (inApp, subs []*types.PurchaseHistoryRecord, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inApp, err = s.PurchaseHistory(gctx, types.ProductKindConsumable)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.PurchaseHistory(gctx, types.ProductKindSubscription)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return inApp, subs, nil
}

func (s *Service) Purchases(ctx context.Context, kind types.ProductKind) ([]*types.PurchaseRecord, error) {
	return WithConnection(ctx, s.gate, func(ctx context.Context) ([]*types.PurchaseRecord, error) {
		records, res := s.client.QueryPurchases(ctx, kind)
		if err := ConvertResult(res); err != nil {
			return nil, err
		}
		return records, nil
	})
}

// AllPurchases returns the owned in-app purchases followed by subscriptions
func (s *Service) AllPurchases(ctx context.Context) ([]*types.PurchaseRecord, error) {
	inApp, err := s.Purchases(ctx, types.ProductKindConsumable)
	if err != nil {
		return nil, err
	}
	subs, err := s.Purchases(ctx, types.ProductKindSubscription)
	if err != nil {
		return nil, err
	}
	return append(inApp, subs...), nil
}

// ResolveSkus attaches the store product to every sku the store knows and
// returns those skus. Skus the store does not return are dropped.
func (s *Service) ResolveSkus(ctx context.Context, skus []*types.Sku) ([]*types.Sku, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	descs := make([]types.ProductDescriptor, 0, len(skus)*2)
	for _, sku := range skus {
		descs = append(descs, sku.Params)
		if sku.Fallback != nil {
			descs = append(descs, *sku.Fallback)
		}
	}

	candidates, err := s.Catalog(ctx).Query(ctx, descs)
	if err != nil {
		return nil, err
	}

	resolved := make([]*types.Sku, 0, len(skus))
	for _, sku := range skus {
		p := candidates.Resolve(sku.Params, sku.Fallback)
		if p == nil {
			glog.V(2).Infof("sku %s (%s) not available on store", sku.SkuID, sku.Params.ProductID)
			continue
		}
		sku.Product = p
		resolved = append(resolved, sku)
	}
	return resolved, nil
}

func (s *Service) Purchase(ctx context.Context, activity store.Activity, product *types.StoreProduct, update *types.SubscriptionUpdate, accountID string) (*types.PurchaseRecord, error) {
	return s.coordinator.Purchase(ctx, activity, product, update, accountID)
}

func (s *Service) Consume(ctx context.Context, token string) error {
	return s.reconciler.Consume(ctx, token)
}

func (s *Service) Acknowledge(ctx context.Context, token string) error {
	return s.reconciler.Acknowledge(ctx, token)
}

func (s *Service) Close() {
	s.gate.EndConnection()
}
