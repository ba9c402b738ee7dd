package store

import (
	"sync"

	"github.com/golang/glog"
)

// MainThread marshals work onto the single thread owning the host UI
type MainThread interface {
	// Run executes fn on the main thread and waits for it to return. It
	// must not be called from the main thread itself.
	Run(fn func())
	// Post schedules fn on the main thread without waiting
	Post(fn func())
}

// Inline runs everything on the calling goroutine. Suitable for hosts
// without a UI thread.
type Inline struct{}

func (Inline) Run(fn func())  { fn() }
func (Inline) Post(fn func()) { go fn() }

// Looper is a MainThread backed by one dedicated goroutine draining a queue
// in order.
type Looper struct {
	queue   chan func()
	stop    chan struct{}
	done    chan struct{}
	closeMu sync.Once
}

func NewLooper(size int) *Looper {
	if size <= 0 {
		size = 64
	}
	l := &Looper{
		queue: make(chan func(), size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.loop()
	return l
}

func (l *Looper) loop() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.queue:
			l.exec(fn)
		case <-l.stop:
			// drain what was queued before Close
			for {
				select {
				case fn := <-l.queue:
					l.exec(fn)
				default:
					return
				}
			}
		}
	}
}

func (l *Looper) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("main thread task panicked: %v", r)
		}
	}()
	fn()
}

// Run blocks until fn has run. Called from a task of the same Looper it
// never returns; use Post there.
func (l *Looper) Run(fn func()) {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
	case <-l.done:
	}
}

func (l *Looper) Post(fn func()) {
	select {
	case <-l.stop:
		glog.Warningf("main thread closed, dropping task")
		return
	default:
	}
	select {
	case <-l.stop:
		glog.Warningf("main thread closed, dropping task")
	case l.queue <- fn:
	}
}

// Close stops the looper after running queued tasks
func (l *Looper) Close() {
	l.closeMu.Do(func() { close(l.stop) })
	<-l.done
}
