package billing

import (
	"context"
	"sync"
	"time"

	"glassfy/internal/v2/storesim"
	"glassfy/pkg/v2/types"
)

// sleepRecorder replaces the backoff sleep and records the requested delays
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// syncThread runs everything on the caller and logs posted work in order
type syncThread struct {
	mu  sync.Mutex
	log []string
}

func (s *syncThread) Run(fn func()) { fn() }

func (s *syncThread) Post(fn func()) {
	s.mu.Lock()
	s.log = append(s.log, "post")
	s.mu.Unlock()
	fn()
}

type delegateCall struct {
	purchase       *types.PurchaseRecord
	isSubscription bool
	consumedBefore []string
	ackedBefore    []string
}

type recordingDelegate struct {
	mu    sync.Mutex
	sim   *storesim.Store
	calls []delegateCall
}

func (d *recordingDelegate) OnProductPurchase(p *types.PurchaseRecord, isSubscription bool) {
	call := delegateCall{purchase: p, isSubscription: isSubscription}
	if d.sim != nil {
		call.consumedBefore = d.sim.Consumed()
		call.ackedBefore = d.sim.Acknowledged()
	}
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *recordingDelegate) recorded() []delegateCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delegateCall(nil), d.calls...)
}

func newTestService(sim *storesim.Store, watcherMode bool) (*Service, *sleepRecorder) {
	rec := &sleepRecorder{}
	svc := NewService(sim, ServiceConfig{
		Gate: GateConfig{
			MaxRetries:  DefaultMaxReconnectionRetries,
			BackoffUnit: DefaultBackoffUnit,
			Sleep:       rec.sleep,
		},
		MainThread:  &syncThread{},
		WatcherMode: watcherMode,
	})
	return svc, rec
}

func premiumSim() *storesim.Store {
	sim := storesim.New()
	sim.AddProduct(storesim.SubscriptionProduct("sub1", "Premium", storesim.BasePlan("monthly", "P1M", 4_990_000, "EUR")))
	sim.AddProduct(storesim.InAppProduct("coins", "100 coins", 990_000, "EUR"))
	return sim
}
