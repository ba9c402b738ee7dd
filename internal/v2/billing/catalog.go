package billing

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/golang/glog"
	"github.com/thoas/go-funk"

	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

// Catalog queries the store for the products behind a set of descriptors
type Catalog interface {
	Version() int
	Query(ctx context.Context, descs []types.ProductDescriptor) (*Candidates, error)
}

// productDetailsMinVersion is the first billing library with plans and offers
const productDetailsMinVersion = ">= 5.0.0"

// SelectCatalog probes the client and returns the catalog strategy it
// supports. A failed probe keeps the product details strategy.
func SelectCatalog(ctx context.Context, gate *ConnectionGate, client store.Client) Catalog {
	details := &productDetailsCatalog{gate: gate, client: client}
	legacy := &skuDetailsCatalog{gate: gate, client: client}

	if !libraryAtLeast(client.LibraryVersion(), productDetailsMinVersion) {
		glog.Infof("billing library %q predates product details, using sku details catalog", client.LibraryVersion())
		return legacy
	}

	supported, err := WithConnection(ctx, gate, func(context.Context) (bool, error) {
		return client.IsFeatureSupported(store.FeatureProductDetails).IsOK(), nil
	})
	if err != nil {
		glog.Warningf("product details probe failed, keeping default catalog: %v", err)
		return details
	}
	if !supported {
		glog.Infof("product details not supported on this device, using sku details catalog")
		return legacy
	}
	return details
}

func libraryAtLeast(version, constraint string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		glog.Warningf("invalid billing library version:%s %s", version, err.Error())
		return false
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		glog.Warningf("invalid version constraint:%s %s", constraint, err.Error())
		return false
	}
	return c.Check(v)
}

type productDetailsCatalog struct {
	gate   *ConnectionGate
	client store.Client
}

func (c *productDetailsCatalog) Version() int { return 6 }

// Query splits the descriptors: subscriptions without a base plan can only
// be answered by the sku details API, everything else goes through product
// details grouped by kind.
func (c *productDetailsCatalog) Query(ctx context.Context, descs []types.ProductDescriptor) (*Candidates, error) {
	var legacyIDs, inAppIDs, subsIDs []string
	for _, d := range descs {
		if d.PlanID == "" && d.Kind != types.ProductKindConsumable {
			legacyIDs = append(legacyIDs, d.ProductID)
			continue
		}
		if d.Kind == types.ProductKindConsumable || d.Kind == types.ProductKindUnknown {
			inAppIDs = append(inAppIDs, d.ProductID)
		}
		if d.Kind == types.ProductKindSubscription || d.Kind == types.ProductKindUnknown {
			subsIDs = append(subsIDs, d.ProductID)
		}
	}

	out := &Candidates{}
	if len(legacyIDs) > 0 {
		legacy, err := querySkuDetails(ctx, c.gate, c.client, legacyIDs)
		if err != nil {
			return nil, err
		}
		out.Legacy = legacy
	}

	for _, q := range []struct {
		ids  []string
		kind types.ProductKind
	}{
		{inAppIDs, types.ProductKindConsumable},
		{subsIDs, types.ProductKindSubscription},
	} {
		if len(q.ids) == 0 {
			continue
		}
		details, err := queryProductDetails(ctx, c.gate, c.client, q.ids, q.kind)
		if err != nil {
			return nil, err
		}
		out.Details = append(out.Details, details...)
	}
	return out, nil
}

type skuDetailsCatalog struct {
	gate   *ConnectionGate
	client store.Client
}

func (c *skuDetailsCatalog) Version() int { return 4 }

func (c *skuDetailsCatalog) Query(ctx context.Context, descs []types.ProductDescriptor) (*Candidates, error) {
	ids := funk.Map(descs, func(d types.ProductDescriptor) string { return d.ProductID }).([]string)
	legacy, err := querySkuDetails(ctx, c.gate, c.client, ids)
	if err != nil {
		return nil, err
	}
	return &Candidates{Legacy: legacy}, nil
}

func queryProductDetails(ctx context.Context, gate *ConnectionGate, client store.Client, ids []string, kind types.ProductKind) ([]*types.ProductDetails, error) {
	ids = funk.UniqString(ids)
	return WithConnection(ctx, gate, func(ctx context.Context) ([]*types.ProductDetails, error) {
		details, res := client.QueryProductDetails(ctx, ids, kind)
		if err := ConvertResult(res); err != nil {
			return nil, err
		}
		return details, nil
	})
}

func querySkuDetails(ctx context.Context, gate *ConnectionGate, client store.Client, ids []string) ([]*types.StoreProduct, error) {
	ids = funk.UniqString(ids)
	products, err := WithConnection(ctx, gate, func(ctx context.Context) ([]*types.StoreProduct, error) {
		products, res := client.QuerySkuDetails(ctx, ids)
		if err := ConvertResult(res); err != nil {
			return nil, err
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}

	returned := funk.Map(products, func(p *types.StoreProduct) string { return p.ProductID }).([]string)
	if missing, _ := funk.DifferenceString(ids, returned); len(missing) > 0 {
		glog.V(2).Infof("store did not return details for the following products: %v", missing)
	}
	return products, nil
}
