package glassfy

import (
	"context"
	"sync"
	"time"

	"glassfy/internal/v2/cache"
	"glassfy/internal/v2/repository"
	"glassfy/internal/v2/storesim"
	"glassfy/pkg/api"
	"glassfy/pkg/v2/types"
)

// fakeRepo records every call and answers from canned data
type fakeRepo struct {
	mu sync.Mutex

	subscriberID string
	initErrs     []error
	initBlock    chan struct{}
	initReqs     []repository.InitializeRequest

	tokens      []repository.TokenRequest
	restored    [][]repository.TokenRequest
	permissions int
	lastSeen    int

	offeringsVersion int
	offerings        []*types.Offering
	skus             map[string]types.SkuVariant
	paywall          *types.Paywall
	paywallErr       error

	connects   []string
	properties []repository.UserPropertyRequest
	attributes []types.AttributionItem
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{subscriberID: "subscriber-1", skus: map[string]types.SkuVariant{}}
}

func (r *fakeRepo) initCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.initReqs)
}

func (r *fakeRepo) Initialize(ctx context.Context, req repository.InitializeRequest) (*repository.ServerInfo, error) {
	r.mu.Lock()
	r.initReqs = append(r.initReqs, req)
	block := r.initBlock
	var err error
	if len(r.initErrs) > 0 {
		err, r.initErrs = r.initErrs[0], r.initErrs[1:]
	}
	sid := r.subscriberID
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, api.NewError(api.ErrorIOException, ctx.Err().Error())
		}
	}
	if err != nil {
		return nil, err
	}
	return &repository.ServerInfo{SubscriberID: sid}, nil
}

func (r *fakeRepo) perms() *types.Permissions {
	return &types.Permissions{
		SubscriberID: r.subscriberID,
		All:          []types.Permission{{PermissionID: "premium", Entitlement: types.EntitlementAutoRenewOn}},
	}
}

func (r *fakeRepo) Token(_ context.Context, req repository.TokenRequest) (*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, req)
	return &types.Transaction{ProductID: req.ProductIDs[0], ReceiptValidated: true, Permissions: r.perms()}, nil
}

func (r *fakeRepo) Permissions(context.Context) (*types.Permissions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permissions++
	return r.perms(), nil
}

func (r *fakeRepo) RestoreTokens(_ context.Context, tokens []repository.TokenRequest) (*types.Permissions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored = append(r.restored, tokens)
	return r.perms(), nil
}

func (r *fakeRepo) LastSeen(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen++
	return nil
}

func (r *fakeRepo) Offerings(_ context.Context, billingVersion int) (*types.Offerings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offeringsVersion = billingVersion
	// hand out copies, the SDK filters the sku lists in place
	out := &types.Offerings{}
	for _, o := range r.offerings {
		cp := &types.Offering{OfferingID: o.OfferingID}
		for _, s := range o.Skus {
			sku := *s
			cp.Skus = append(cp.Skus, &sku)
		}
		out.All = append(out.All, cp)
	}
	return out, nil
}

func (r *fakeRepo) lookup(key string) (types.SkuVariant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.skus[key]
	if !ok {
		return nil, api.NewError(api.ErrorNotFoundOnGlassfy)
	}
	if sku, ok := v.(*types.Sku); ok {
		cp := *sku
		return &cp, nil
	}
	return v, nil
}

func (r *fakeRepo) playSku(key string) (*types.Sku, error) {
	v, err := r.lookup(key)
	if err != nil {
		return nil, err
	}
	sku, ok := v.(*types.Sku)
	if !ok {
		return nil, api.NewError(api.ErrorServerError, "not a play store sku")
	}
	return sku, nil
}

func (r *fakeRepo) SkuByIdentifier(_ context.Context, id string) (*types.Sku, error) {
	return r.playSku(id)
}

func (r *fakeRepo) SkuByIdentifierAndStore(_ context.Context, id string, _ types.Store) (types.SkuVariant, error) {
	return r.lookup(id)
}

func (r *fakeRepo) SkuByProductID(_ context.Context, productID string) (*types.Sku, error) {
	return r.playSku("product:" + productID)
}

func (r *fakeRepo) Paywall(context.Context, string, string) (*types.Paywall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paywallErr != nil {
		return nil, r.paywallErr
	}
	pw := *r.paywall
	pw.Skus = nil
	for _, s := range r.paywall.Skus {
		sku := *s
		pw.Skus = append(pw.Skus, &sku)
	}
	return &pw, nil
}

func (r *fakeRepo) connect(what string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects = append(r.connects, what)
	return nil
}

func (r *fakeRepo) ConnectCustomSubscriber(_ context.Context, customID *string) error {
	if customID == nil {
		return r.connect("custom:<nil>")
	}
	return r.connect("custom:" + *customID)
}

func (r *fakeRepo) ConnectPaddleLicense(_ context.Context, licenseKey string, _ bool) error {
	if licenseKey == "taken" {
		return api.NewError(api.ErrorLicenseAlreadyConnected)
	}
	return r.connect("paddle:" + licenseKey)
}

func (r *fakeRepo) ConnectUniversalCode(_ context.Context, code string, _ bool) error {
	return r.connect("code:" + code)
}

func (r *fakeRepo) StoreInfo(context.Context) (*types.StoresInfo, error) {
	return &types.StoresInfo{All: []types.StoreInfo{{Store: types.StorePaddle, RawData: map[string]interface{}{"userid": "u1"}}}}, nil
}

func (r *fakeRepo) SetUserProperty(_ context.Context, req repository.UserPropertyRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties = append(r.properties, req)
	return nil
}

func (r *fakeRepo) UserProperties(context.Context) (*types.UserProperties, error) {
	return &types.UserProperties{Email: "a@b.c"}, nil
}

func (r *fakeRepo) SetAttributions(_ context.Context, items []types.AttributionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attributes = append(r.attributes, items...)
	return nil
}

func (r *fakeRepo) PurchaseHistory(context.Context) (*types.PurchasesHistory, error) {
	return &types.PurchasesHistory{SubscriberID: r.subscriberID}, nil
}

var _ repository.Repository = (*fakeRepo)(nil)

// syncThread runs both Run and Post on the caller
type syncThread struct{}

func (syncThread) Run(fn func())  { fn() }
func (syncThread) Post(fn func()) { fn() }

type delegateCall struct {
	purchase       *types.PurchaseRecord
	isSubscription bool
}

type recordingDelegate struct {
	mu    sync.Mutex
	calls []delegateCall
}

func (d *recordingDelegate) OnProductPurchase(p *types.PurchaseRecord, isSubscription bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, delegateCall{purchase: p, isSubscription: isSubscription})
}

func (d *recordingDelegate) recorded() []delegateCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delegateCall(nil), d.calls...)
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.PackageName = "io.glassfy.test"
	cfg.InitializedTimeout = 2 * time.Second
	return cfg
}

func newTestSDK(sim *storesim.Store, repo *fakeRepo) *SDK {
	return New(sim,
		WithRepository(repo),
		WithCacheStore(cache.NewMemoryStore()),
		WithMainThread(syncThread{}),
		WithGateSleep(noSleep),
	)
}

var (
	coinsSku = types.Sku{
		SkuID:  "coins-100",
		Params: types.ProductDescriptor{ProductID: "coins", Kind: types.ProductKindConsumable},
	}
	premiumSku = types.Sku{
		SkuID:      "premium-monthly",
		OfferingID: "premium",
		Params:     types.ProductDescriptor{ProductID: "sub1", PlanID: "monthly", Kind: types.ProductKindSubscription},
	}
)

func premiumSim(opts ...storesim.Option) *storesim.Store {
	sim := storesim.New(opts...)
	sim.AddProduct(storesim.SubscriptionProduct("sub1", "Premium", storesim.BasePlan("monthly", "P1M", 4_990_000, "EUR")))
	sim.AddProduct(storesim.InAppProduct("coins", "100 coins", 990_000, "EUR"))
	return sim
}

func initialized(ctx context.Context, sim *storesim.Store, repo *fakeRepo) (*SDK, error) {
	sdk := newTestSDK(sim, repo)
	_, err := sdk.Initialize(ctx, testConfig())
	return sdk, err
}
