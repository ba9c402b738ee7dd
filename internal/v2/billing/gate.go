package billing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"glassfy/pkg/api"
	"glassfy/pkg/v2/store"
)

const (
	DefaultMaxReconnectionRetries = 5
	DefaultBackoffUnit            = 2000 * time.Millisecond
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type GateConfig struct {
	MaxRetries  int
	BackoffUnit time.Duration
	Sleep       SleepFunc
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxRetries:  DefaultMaxReconnectionRetries,
		BackoffUnit: DefaultBackoffUnit,
		Sleep:       sleepContext,
	}
}

// ConnectionGate owns the lifecycle of the single store connection. Only
// one connection attempt runs at a time; IsReady reads stay lock-free.
type ConnectionGate struct {
	client store.Client
	cfg    GateConfig

	mu       sync.Mutex
	attempts atomic.Int64
}

func NewConnectionGate(client store.Client, cfg GateConfig) *ConnectionGate {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxReconnectionRetries
	}
	if cfg.BackoffUnit < 0 {
		cfg.BackoffUnit = 0
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &ConnectionGate{client: client, cfg: cfg}
}

// Attempts returns how many StartConnection calls the gate has issued
func (g *ConnectionGate) Attempts() int64 {
	return g.attempts.Load()
}

// Connect makes sure the store connection is ready. Attempt k (0-based)
// waits k times the backoff unit before starting.
func (g *ConnectionGate) Connect(ctx context.Context) error {
	if g.client.IsReady() {
		return nil
	}

	var res store.Result
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if err := g.cfg.Sleep(ctx, g.cfg.BackoffUnit*time.Duration(attempt)); err != nil {
			return api.NewError(api.ErrorStoreError, "store connection aborted: "+err.Error())
		}
		var err error
		res, err = g.connectOnce(ctx)
		if err != nil {
			return api.NewError(api.ErrorStoreError, "store connection aborted: "+err.Error())
		}
		if res.IsOK() {
			return nil
		}
		glog.Warningf("store connection attempt %d/%d failed: %s", attempt+1, g.cfg.MaxRetries, res)
	}

	glog.Errorf("store connection failed after %d attempts: %s", g.cfg.MaxRetries, res)
	return ConvertResult(res)
}

func (g *ConnectionGate) connectOnce(ctx context.Context) (store.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// another caller may have connected while we were waiting for the lock
	if g.client.IsReady() {
		return store.OK(), nil
	}

	g.attempts.Add(1)
	l := newSetupListener()
	g.client.StartConnection(l)

	select {
	case res := <-l.ch:
		glog.V(2).Infof("store connection setup finished: %s", res)
		return res, nil
	case <-ctx.Done():
		return store.Result{}, ctx.Err()
	}
}

// EndConnection closes the store connection
func (g *ConnectionGate) EndConnection() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.client.EndConnection()
}

// WithConnection runs op once the store connection is ready. op is never
// invoked when the connection cannot be established.
func WithConnection[T any](ctx context.Context, g *ConnectionGate, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.Connect(ctx); err != nil {
		return zero, err
	}
	return op(ctx)
}

// setupListener resolves the first callback of one StartConnection call
type setupListener struct {
	ch   chan store.Result
	once sync.Once
}

func newSetupListener() *setupListener {
	return &setupListener{ch: make(chan store.Result, 1)}
}

func (l *setupListener) resolve(res store.Result) {
	l.once.Do(func() { l.ch <- res })
}

func (l *setupListener) OnBillingSetupFinished(res store.Result) {
	l.resolve(res)
}

func (l *setupListener) OnBillingServiceDisconnected() {
	glog.V(2).Infof("store service disconnected")
	l.resolve(store.NewResult(store.ResponseServiceDisconnected, ""))
}
