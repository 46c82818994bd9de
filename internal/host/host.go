// Package host is the cooperative loop every player runs on. One goroutine
// owns the loop and calls RunFrame once per display refresh; anything else
// hands work to it through Post.
package host

import (
	"context"
	"sync"
	"time"
)

// Scheduler is what the player needs from its host.
type Scheduler interface {
	// Post queues fn to run on the host goroutine. Safe from any goroutine.
	Post(fn func())
	// RequestFrame runs fn on the next refresh with that refresh's timestamp.
	RequestFrame(fn func(ts time.Duration))
	// Now is the host's monotonic clock, on the same scale as frame timestamps.
	Now() time.Duration
}

type Loop struct {
	mu     sync.Mutex
	posted []func()
	wake   chan struct{}

	frames []func(time.Duration)

	start time.Time
	// Clock overrides the monotonic clock; tests drive time through it.
	Clock func() time.Duration
}

func NewLoop() *Loop {
	return &Loop{
		wake:  make(chan struct{}, 1),
		start: time.Now(),
	}
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) RequestFrame(fn func(ts time.Duration)) {
	l.frames = append(l.frames, fn)
}

func (l *Loop) Now() time.Duration {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Since(l.start)
}

// Drain runs every posted function, including ones posted while draining,
// and returns how many ran.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.posted
		l.posted = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
		}
		n += len(batch)
	}
}

// RunFrame drains posted work, then runs the frame callbacks that were
// requested before this refresh. Callbacks requested during it wait for the
// next one.
func (l *Loop) RunFrame(ts time.Duration) {
	l.Drain()
	batch := l.frames
	l.frames = nil
	for _, fn := range batch {
		fn(ts)
	}
}

// Pending reports how many frame callbacks wait for the next refresh.
func (l *Loop) Pending() int { return len(l.frames) }

// Wait blocks until something is posted or ctx is done.
func (l *Loop) Wait(ctx context.Context) error {
	l.mu.Lock()
	ready := len(l.posted) > 0
	l.mu.Unlock()
	if ready {
		return nil
	}
	select {
	case <-l.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunUntil drains posted work until done reports true or ctx expires.
func (l *Loop) RunUntil(ctx context.Context, done func() bool) error {
	for !done() {
		if err := l.Wait(ctx); err != nil {
			return err
		}
		l.Drain()
	}
	return nil
}
