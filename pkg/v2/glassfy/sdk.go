// Package glassfy is the SDK entry point. An SDK owns the store connection,
// the remote repository and the cached identity of one host application.
// Every operation except Initialize waits for initialization to finish and
// retries it once when the previous attempt failed.
package glassfy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"glassfy/internal/v2/billing"
	"glassfy/internal/v2/cache"
	"glassfy/internal/v2/repository"
	"glassfy/pkg/api"
	"glassfy/pkg/v2/notify"
	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

// components are built by the first Initialize and reused by retries
type components struct {
	cfg     Config
	billing *billing.Service
	repo    repository.Repository
	cache   *cache.Manager
	sender  *notify.DataSender
}

type delegateBox struct {
	d types.PurchaseDelegate
}

type SDK struct {
	client store.Client
	opts   options
	life   *lifecycle

	mu   sync.Mutex
	cfg  *Config
	deps *components

	delegate atomic.Pointer[delegateBox]
}

func New(client store.Client, opts ...Option) *SDK {
	s := &SDK{client: client, life: newLifecycle()}
	for _, o := range opts {
		o(&s.opts)
	}
	return s
}

func (s *SDK) State() State {
	return s.life.load()
}

// Initialize runs the cold start sequence. It returns true when this call
// performed the initialization, false when another call already did or is
// doing it. A call made while the state is Failed starts a new attempt.
// Zero tuning fields in cfg take their DefaultConfig values.
func (s *SDK) Initialize(ctx context.Context, cfg Config) (bool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return false, api.NewError(api.ErrorSDKNotInitialized, err.Error())
	}
	if !s.life.compareAndSwap(NotInitialized, Initializing) && !s.life.compareAndSwap(Failed, Initializing) {
		return false, s.joinAttempt(ctx, cfg.InitializedTimeout)
	}

	s.mu.Lock()
	if s.cfg == nil {
		s.cfg = &cfg
	}
	s.mu.Unlock()

	if err := s.run(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SDK) joinAttempt(ctx context.Context, timeout time.Duration) error {
	if s.life.load() == Initialized {
		glog.V(2).Infof("sdk already initialized")
		return nil
	}
	glog.V(2).Infof("sdk in initializing state")
	switch s.life.awaitTerminal(ctx, timeout) {
	case Initialized:
		return nil
	case Failed:
		if err := s.life.err(); err != nil {
			return err
		}
	}
	return api.NewError(api.ErrorSDKNotInitialized)
}

// run performs one attempt. The caller owns the Initializing state.
func (s *SDK) run(ctx context.Context) error {
	d, err := s.setup()
	if err == nil {
		err = s.bootstrap(ctx, d)
	}
	if err != nil {
		err = api.Wrap(err)
		glog.Errorf("sdk initialization failed: %v", err)
		s.life.fail(err)
		return err
	}
	s.life.succeed()
	glog.Infof("sdk initialized, subscriberid:%s installationid:%s", d.cache.SubscriberID(), d.cache.InstallationID())
	return nil
}

func (s *SDK) setup() (*components, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deps != nil {
		return s.deps, nil
	}
	cfg := *s.cfg

	kv := s.opts.cacheStore
	if kv == nil {
		var err error
		if kv, err = cache.Open(cfg.Cache); err != nil {
			return nil, api.NewError(api.ErrorSDKNotInitialized, "open cache: "+err.Error())
		}
	}
	manager := cache.NewManager(kv)

	repo := s.opts.repo
	if repo == nil {
		repo = repository.New(cfg.repository(), manager)
	}

	sender, err := notify.NewDataSender(cfg.Notify, manager)
	if err != nil {
		glog.Warningf("purchase publisher unavailable, continuing without it: %v", err)
		sender, _ = notify.NewDataSender(notify.Config{}, nil)
	}

	svc := billing.NewService(s.client, billing.ServiceConfig{
		Gate: billing.GateConfig{
			MaxRetries:  cfg.MaxRetries,
			BackoffUnit: cfg.BackoffUnit,
			Sleep:       s.opts.sleep,
		},
		MainThread:  s.opts.mainThread,
		WatcherMode: cfg.WatcherMode,
	})
	svc.SetDelegate(notify.Chain{types.PurchaseDelegateFunc(s.forward), sender})

	s.deps = &components{cfg: cfg, billing: svc, repo: repo, cache: manager, sender: sender}
	return s.deps, nil
}

// bootstrap fetches the store history and owned purchases, registers them
// with the server and finalizes the owned purchases at the store.
func (s *SDK) bootstrap(ctx context.Context, d *components) error {
	inApp, subs, err := d.billing.Histories(ctx)
	if err != nil {
		return err
	}
	ownedInApp := s.owned(ctx, d, types.ProductKindConsumable)
	ownedSubs := s.owned(ctx, d, types.ProductKindSubscription)

	installTime := d.cache.InstallTime()
	info, err := d.repo.Initialize(ctx, repository.InitializeRequest{
		PackageName: d.cfg.PackageName,
		Tokens:      repository.HistoryTokens(subs, inApp),
		InstallTime: &installTime,
	})
	if err != nil {
		return err
	}
	if info == nil || info.SubscriberID == "" {
		return api.NewError(api.ErrorSDKNotInitialized, "SubscriberId cannot be found")
	}
	d.cache.SetSubscriberID(info.SubscriberID)

	if !d.cfg.WatcherMode {
		s.finalize(ctx, d, ownedInApp, types.ProductKindConsumable)
		s.finalize(ctx, d, ownedSubs, types.ProductKindSubscription)
	}
	return nil
}

func (s *SDK) owned(ctx context.Context, d *components, kind types.ProductKind) []*types.PurchaseRecord {
	purchases, err := d.billing.Purchases(ctx, kind)
	if err != nil {
		glog.Warningf("query owned %s purchases failed: %v", kind, err)
		return nil
	}
	return purchases
}

// finalize consumes owned in-app purchases and acknowledges subscriptions
// not yet acknowledged, notifying the delegate for each.
func (s *SDK) finalize(ctx context.Context, d *components, purchases []*types.PurchaseRecord, kind types.ProductKind) {
	isSubscription := kind == types.ProductKindSubscription
	for _, p := range purchases {
		if p.State != types.PurchaseStatePurchased {
			glog.V(2).Infof("owned purchase %v is %s, skipped", p.ProductIDs, p.State)
			continue
		}
		if isSubscription && p.Acknowledged {
			continue
		}
		if err := d.billing.Reconciler().Reconcile(ctx, p, kind); err != nil {
			glog.Warningf("finalize purchase %v failed: %v", p.ProductIDs, err)
		}
		d.billing.Coordinator().Notify(p, isSubscription)
	}
}

// ready waits for the SDK to be initialized, retrying a failed attempt once
func (s *SDK) ready(ctx context.Context) (*components, error) {
	timeout := s.initializedTimeout()
	if s.life.compareAndSwap(Failed, Initializing) {
		glog.Infof("previous initialization failed, retrying")
		rctx, cancel := context.WithTimeout(ctx, timeout)
		_ = s.run(rctx)
		cancel()
	}

	switch s.life.awaitTerminal(ctx, timeout) {
	case Initialized:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.deps, nil
	case Failed:
		if err := s.life.err(); err != nil {
			return nil, api.NewError(api.ErrorSDKNotInitialized, err.Error())
		}
	}
	return nil, api.NewError(api.ErrorSDKNotInitialized)
}

func (s *SDK) initializedTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil || s.cfg.InitializedTimeout <= 0 {
		return DefaultInitializedTimeout
	}
	return s.cfg.InitializedTimeout
}

// SetPurchaseDelegate sets the host callback for completed purchases. It
// may be called before Initialize so purchases finalized at start up are
// delivered too.
func (s *SDK) SetPurchaseDelegate(d types.PurchaseDelegate) {
	s.delegate.Store(&delegateBox{d: d})
}

func (s *SDK) forward(p *types.PurchaseRecord, isSubscription bool) {
	if box := s.delegate.Load(); box != nil && box.d != nil {
		box.d.OnProductPurchase(p, isSubscription)
	}
}

// Close ends the store connection and releases the cache and publisher
func (s *SDK) Close() error {
	s.mu.Lock()
	d := s.deps
	s.mu.Unlock()
	if d == nil {
		return nil
	}
	d.billing.Close()
	d.sender.Close()
	return d.cache.Close()
}
