package glassfy

import (
	"glassfy/internal/v2/billing"
	"glassfy/internal/v2/cache"
	"glassfy/internal/v2/repository"
	"glassfy/pkg/v2/store"
)

type options struct {
	mainThread store.MainThread
	repo       repository.Repository
	cacheStore cache.Store
	sleep      billing.SleepFunc
}

type Option func(*options)

// WithMainThread sets where purchase UI launches and delegate callbacks run.
// Without it they run inline or on a fresh goroutine.
func WithMainThread(m store.MainThread) Option {
	return func(o *options) { o.mainThread = m }
}

// WithRepository replaces the REST repository built from Config
func WithRepository(r repository.Repository) Option {
	return func(o *options) { o.repo = r }
}

// WithCacheStore replaces the store selected by Config.Cache
func WithCacheStore(s cache.Store) Option {
	return func(o *options) { o.cacheStore = s }
}

// WithGateSleep replaces the wait used between store reconnection attempts
func WithGateSleep(fn billing.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}
