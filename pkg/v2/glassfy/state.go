package glassfy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State is the SDK lifecycle state
type State int32

const (
	NotInitialized State = iota
	Initializing
	Initialized
	Failed
)

func (s State) String() string {
	switch s {
	case NotInitialized:
		return "not_initialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// lifecycle holds the state word and wakes waiters on every change.
// Transitions into Initializing only happen through compareAndSwap.
type lifecycle struct {
	state atomic.Int32

	mu      sync.Mutex
	changed chan struct{}
	lastErr error
}

func newLifecycle() *lifecycle {
	return &lifecycle{changed: make(chan struct{})}
}

func (l *lifecycle) load() State {
	return State(l.state.Load())
}

func (l *lifecycle) compareAndSwap(from, to State) bool {
	if !l.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	l.mu.Lock()
	l.notifyLocked()
	l.mu.Unlock()
	return true
}

func (l *lifecycle) succeed() {
	l.settle(Initialized, nil)
}

func (l *lifecycle) fail(err error) {
	l.settle(Failed, err)
}

// settle records err before publishing the terminal state so a reader that
// observes Failed also observes its cause.
func (l *lifecycle) settle(s State, err error) {
	l.mu.Lock()
	l.lastErr = err
	l.state.Store(int32(s))
	l.notifyLocked()
	l.mu.Unlock()
}

func (l *lifecycle) notifyLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// err is the failure of the last finished attempt. It survives the move
// back to Initializing and is cleared on success.
func (l *lifecycle) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// awaitTerminal blocks while an attempt is running. It returns the state
// once it is Initialized or Failed, or the current state when ctx or the
// timeout expires first.
func (l *lifecycle) awaitTerminal(ctx context.Context, timeout time.Duration) State {
	return l.await(ctx, timeout, func(s State) bool { return s == Initialized || s == Failed })
}

func (l *lifecycle) await(ctx context.Context, timeout time.Duration, done func(State) bool) State {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		l.mu.Lock()
		ch := l.changed
		l.mu.Unlock()

		s := l.load()
		if done(s) {
			return s
		}
		select {
		case <-ch:
		case <-timer.C:
			return l.load()
		case <-ctx.Done():
			return l.load()
		}
	}
}
