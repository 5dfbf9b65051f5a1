package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("event bus closed")

const memoryBuffer = 256

// MemoryBus delivers events in-process. Each subscriber has its own buffered channel;
// when it is full the event is dropped for that subscriber.
type MemoryBus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

type memorySub struct {
	accept  func(Name) bool
	ch      chan Event
	handler Handler
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{
		logger: logger,
		subs:   make(map[*memorySub]struct{}),
		done:   make(chan struct{}),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for sub := range b.subs {
		if !sub.accept(evt.Name) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.logger.Warn("Subscriber buffer full, dropping event",
				zap.String("event", string(evt.Name)),
				zap.String("event_id", evt.ID),
			)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler, names ...Name) error {
	sub := &memorySub{
		accept:  nameFilter(names),
		ch:      make(chan Event, memoryBuffer),
		handler: handler,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer b.unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case evt := <-sub.ch:
				deliver(ctx, b.logger, handler, evt)
			}
		}
	}()
	return nil
}

func (b *MemoryBus) unsubscribe(sub *memorySub) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Close stops every subscriber and waits for in-flight handlers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// deliver runs handler and recovers from a panic so one bad event cannot kill a subscriber.
func deliver(ctx context.Context, logger *zap.Logger, handler Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event handler panicked",
				zap.String("event", string(evt.Name)),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, evt)
}
