package glassfy

import (
	"context"

	"github.com/golang/glog"
	"github.com/thoas/go-funk"

	"glassfy/internal/v2/repository"
	"glassfy/pkg/api"
	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

// Offerings returns the remote offerings with store products attached.
// Skus the store does not sell are dropped from their offering.
func (s *SDK) Offerings(ctx context.Context) (*types.Offerings, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	offerings, err := d.repo.Offerings(ctx, d.billing.Catalog(ctx).Version())
	if err != nil {
		return nil, err
	}
	if offerings == nil {
		return nil, api.NewError(api.ErrorNotFoundOnGlassfy)
	}

	var skus []*types.Sku
	for _, o := range offerings.All {
		skus = append(skus, o.Skus...)
	}
	if _, err := d.billing.ResolveSkus(ctx, skus); err != nil {
		return nil, err
	}
	for _, o := range offerings.All {
		o.Skus = funk.Filter(o.Skus, func(sku *types.Sku) bool {
			return sku.Product != nil
		}).([]*types.Sku)
	}
	return offerings, nil
}

// Purchase buys sku. With update set, the owned purchase of
// update.OriginalSku is replaced. The purchase is registered with the
// server and the resulting permissions are returned.
func (s *SDK) Purchase(ctx context.Context, activity store.Activity, sku *types.Sku, update *types.SubscriptionUpdate) (*types.Transaction, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if sku == nil {
		return nil, api.NewError(api.ErrorNotFoundOnGlassfy, "missing sku")
	}

	product := sku.Product
	if product == nil {
		resolved, err := s.resolve(ctx, d, sku)
		if err != nil {
			return nil, err
		}
		product = resolved.Product
	}

	var upgrade *types.SubscriptionUpdate
	if update != nil {
		token, err := s.upgradeToken(ctx, d, update.OriginalSku)
		if err != nil {
			return nil, err
		}
		upgrade = &types.SubscriptionUpdate{
			OriginalSku:   update.OriginalSku,
			Replacement:   update.Replacement,
			PurchaseToken: token,
		}
		if upgrade.Replacement == types.ReplacementUnknown {
			upgrade.Replacement = types.DefaultReplacementMode
		}
	}

	p, err := d.billing.Purchase(ctx, activity, product, upgrade, d.cache.SubscriberID())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, api.NewError(api.ErrorMissingPurchase)
	}
	if p.State != types.PurchaseStatePurchased {
		return nil, api.NewError(api.ErrorPendingPurchase)
	}

	req := repository.TokenFromPurchase(p, product.Kind == types.ProductKindSubscription)
	req.OfferingID = sku.OfferingID
	tx, err := d.repo.Token(ctx, req)
	if err != nil {
		glog.Errorf("register purchase %v failed: %v", p.ProductIDs, err)
		return nil, err
	}
	tx.Purchase = p
	if tx.Permissions != nil {
		tx.Permissions.InstallationID = d.cache.InstallationID()
	}
	return tx, nil
}

// upgradeToken finds the owned purchase of the sku being replaced
func (s *SDK) upgradeToken(ctx context.Context, d *components, originalSku string) (string, error) {
	original, err := d.repo.SkuByIdentifier(ctx, originalSku)
	if err != nil {
		return "", err
	}
	owned, err := d.billing.AllPurchases(ctx)
	if err != nil {
		return "", err
	}
	ids := original.ProductIDs()
	for _, p := range owned {
		if p.HasProduct(ids...) {
			return p.PurchaseToken, nil
		}
	}
	return "", api.Errorf(api.ErrorMissingPurchase, "purchaseToken not found for %s", originalSku)
}

// Restore sends the whole store purchase history to the server
func (s *SDK) Restore(ctx context.Context) (*types.Permissions, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	inApp, subs, err := d.billing.Histories(ctx)
	if err != nil {
		return nil, err
	}
	perms, err := d.repo.RestoreTokens(ctx, repository.HistoryTokens(subs, inApp))
	if err != nil {
		return nil, err
	}
	perms.InstallationID = d.cache.InstallationID()
	return perms, nil
}

func (s *SDK) Permissions(ctx context.Context) (*types.Permissions, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	perms, err := d.repo.Permissions(ctx)
	if err != nil {
		return nil, err
	}
	perms.InstallationID = d.cache.InstallationID()
	return perms, nil
}

// Sku returns the Play Store sku with the given identifier
func (s *SDK) Sku(ctx context.Context, identifier string) (*types.Sku, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	sku, err := d.repo.SkuByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, d, sku)
}

// SkuBase returns the sku sold on st. Play Store skus come back resolved.
func (s *SDK) SkuBase(ctx context.Context, identifier string, st types.Store) (types.SkuVariant, error) {
	if st == types.StorePlayStore {
		return s.Sku(ctx, identifier)
	}
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	v, err := d.repo.SkuByIdentifierAndStore(ctx, identifier, st)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, api.NewError(api.ErrorNotFoundOnGlassfy)
	}
	return v, nil
}

func (s *SDK) SkuWithProductID(ctx context.Context, productID string) (*types.Sku, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	sku, err := d.repo.SkuByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, d, sku)
}

func (s *SDK) resolve(ctx context.Context, d *components, sku *types.Sku) (*types.Sku, error) {
	if sku == nil {
		return nil, api.NewError(api.ErrorNotFoundOnGlassfy)
	}
	resolved, err := d.billing.ResolveSkus(ctx, []*types.Sku{sku})
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return nil, api.Errorf(api.ErrorNotFoundOnStore, "%s not available on store", sku.Params.ProductID)
	}
	return resolved[0], nil
}

// Paywall fetches the paywall and resolves its skus on the store
func (s *SDK) Paywall(ctx context.Context, identifier, locale string) (*types.Paywall, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	pw, err := d.repo.Paywall(ctx, identifier, locale)
	if err != nil {
		if api.IsCode(err, api.ErrorServerError) {
			return nil, api.NewError(api.ErrorCouldNotBuildPaywall, err.Error())
		}
		return nil, err
	}
	skus, err := d.billing.ResolveSkus(ctx, pw.Skus)
	if err != nil {
		return nil, api.NewError(api.ErrorCouldNotBuildPaywall, err.Error())
	}
	pw.Skus = skus
	return pw, nil
}

// ConnectCustomSubscriber links the subscriber to customID. A nil id
// removes the link.
func (s *SDK) ConnectCustomSubscriber(ctx context.Context, customID *string) error {
	d, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return d.repo.ConnectCustomSubscriber(ctx, customID)
}

func (s *SDK) ConnectPaddleLicenseKey(ctx context.Context, licenseKey string, force bool) error {
	d, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return d.repo.ConnectPaddleLicense(ctx, licenseKey, force)
}

func (s *SDK) ConnectUniversalCode(ctx context.Context, code string, force bool) error {
	d, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return d.repo.ConnectUniversalCode(ctx, code, force)
}

func (s *SDK) StoreInfo(ctx context.Context) (*types.StoresInfo, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return d.repo.StoreInfo(ctx)
}

func (s *SDK) SetDeviceToken(ctx context.Context, token *string) error {
	return s.setProperty(ctx, repository.TokenProperty(token))
}

func (s *SDK) SetEmailUserProperty(ctx context.Context, email *string) error {
	return s.setProperty(ctx, repository.EmailProperty(email))
}

func (s *SDK) SetExtraUserProperty(ctx context.Context, extra map[string]string) error {
	return s.setProperty(ctx, repository.ExtraProperty(extra))
}

func (s *SDK) setProperty(ctx context.Context, req repository.UserPropertyRequest) error {
	d, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return d.repo.SetUserProperty(ctx, req)
}

func (s *SDK) GetUserProperties(ctx context.Context) (*types.UserProperties, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return d.repo.UserProperties(ctx)
}

// SetAttribution sets one attribution id, a nil value clears it
func (s *SDK) SetAttribution(ctx context.Context, t types.AttributionType, value *string) error {
	return s.SetAttributions(ctx, []types.AttributionItem{{Type: t, Value: value}})
}

func (s *SDK) SetAttributions(ctx context.Context, items []types.AttributionItem) error {
	d, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return d.repo.SetAttributions(ctx, items)
}

// PurchaseHistory returns the purchase events recorded by the server
func (s *SDK) PurchaseHistory(ctx context.Context) (*types.PurchasesHistory, error) {
	d, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return d.repo.PurchaseHistory(ctx)
}

// NotifyResumed tells the server the host app came to the foreground
func (s *SDK) NotifyResumed(ctx context.Context) error {
	d, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return d.repo.LastSeen(ctx)
}
