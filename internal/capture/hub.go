package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/snapnotify/internal/resilience"
)

const (
	// DefaultBufferSize is the hub queue length when none is given.
	DefaultBufferSize = 64
	// DefaultPublishTimeout bounds how long Publish waits on a full queue.
	DefaultPublishTimeout = 2 * time.Second
)

// Handler consumes a capture event. A returned error counts against the
// subscriber's circuit breaker.
type Handler func(ctx context.Context, ev Event) error

type subscriber struct {
	name    string
	handler Handler
	breaker *resilience.Breaker
}

// Hub fans capture events out to subscribers on a single dispatch goroutine.
// Publish waits up to the publish timeout for queue space, then drops the
// event and counts it.
type Hub struct {
	queue   chan Event
	timeout time.Duration
	dropped atomic.Uint64

	mu   sync.RWMutex
	subs []*subscriber

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// NewHub creates a hub with the given queue size.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		queue:   make(chan Event, bufferSize),
		timeout: DefaultPublishTimeout,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// WithPublishTimeout sets how long Publish waits on a full queue.
// Zero or negative drops immediately. Call before Start.
func (h *Hub) WithPublishTimeout(d time.Duration) *Hub {
	h.timeout = d
	return h
}

// Dropped returns how many events were lost to a full queue.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Subscribe registers a named handler. Handlers run in registration order.
func (h *Hub) Subscribe(name string, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, &subscriber{
		name:    name,
		handler: fn,
		breaker: resilience.New(resilience.SubscriberConfig(name)),
	})
}

// Publish implements Publisher.
func (h *Hub) Publish(ev Event) {
	select {
	case <-h.stopCh:
		slog.Debug("capture hub stopped, dropping event", "path", ev.Path)
		return
	default:
	}

	select {
	case h.queue <- ev:
		return
	default:
	}

	if h.timeout > 0 {
		timer := time.NewTimer(h.timeout)
		defer timer.Stop()
		select {
		case h.queue <- ev:
			return
		case <-h.stopCh:
			slog.Debug("capture hub stopped, dropping event", "path", ev.Path)
			return
		case <-timer.C:
		}
	}

	h.dropped.Add(1)
	slog.Warn("capture queue full, dropping event",
		"path", ev.Path, "capacity", cap(h.queue), "dropped", h.dropped.Load())
}

// Start launches the dispatch loop. Calling it more than once is a no-op.
func (h *Hub) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		go h.run(ctx)
	})
}

// Stop halts dispatch after draining queued events. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.startOnce.Do(func() { close(h.done) })
	<-h.done
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case ev := <-h.queue:
			h.dispatch(ctx, ev)
		case <-ctx.Done():
			return
		case <-h.stopCh:
			for {
				select {
				case ev := <-h.queue:
					h.dispatch(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev Event) {
	h.mu.RLock()
	subs := make([]*subscriber, len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, s := range subs {
		err := s.breaker.Execute(func() error { return s.call(ctx, ev) })
		switch {
		case err == resilience.ErrOpen:
			slog.Debug("subscriber skipped, breaker open", "subscriber", s.name, "path", ev.Path)
		case err != nil:
			slog.Warn("subscriber failed", "subscriber", s.name, "path", ev.Path, "error", err)
		}
	}
}

func (s *subscriber) call(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return s.handler(ctx, ev)
}
