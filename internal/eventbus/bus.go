package eventbus

import (
	"sync"

	"github.com/pkg/errors"

	"nefi-engine/internal/logger"
)

// Handler receives events of the kinds it was subscribed to.
type Handler interface {
	Handle(event Event)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(event Event)

func (f HandlerFunc) Handle(event Event) {
	f(event)
}

// Subscription identifies one registration and is used to unsubscribe.
type Subscription struct {
	kind Kind
	id   uint64
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Publisher is the write side of the bus, as seen by the cache, pipeline and worker.
type Publisher interface {
	Publish(event Event)
}

// Bus delivers events from a single dispatch goroutine. Publishing appends to an
// unbounded queue and never blocks on listeners; events are delivered in publish
// order, and handlers of one kind in registration order.
type Bus struct {
	mu          sync.Mutex
	cond        *sync.Cond
	queue       []Event
	subscribers map[Kind][]subscriber
	nextID      uint64
	dispatching bool
	closed      bool
	done        chan struct{}
	logger      logger.Logger
}

func New(log logger.Logger) *Bus {
	b := &Bus{
		subscribers: make(map[Kind][]subscriber),
		done:        make(chan struct{}),
		logger:      log,
	}
	b.cond = sync.NewCond(&b.mu)

	go b.loop()
	return b
}

func (b *Bus) Subscribe(kind Kind, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subscribers[kind] = append(b.subscribers[kind], subscriber{id: b.nextID, handler: handler})
	return Subscription{kind: kind, id: b.nextID}
}

// SubscribeFunc is Subscribe for plain functions.
func (b *Bus) SubscribeFunc(kind Kind, fn func(Event)) Subscription {
	return b.Subscribe(kind, HandlerFunc(fn))
}

func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.kind]
	for i, s := range subs {
		if s.id == sub.id {
			b.subscribers[sub.kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish enqueues event. Events published after Shutdown are dropped.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.logger.Debug("EventBus", "event dropped after shutdown", map[string]interface{}{
			"kind": string(event.Kind()),
		})
		return
	}

	b.queue = append(b.queue, event)
	b.cond.Broadcast()
}

// Flush blocks until every event published before the call has been handled.
// It must not be called from inside a handler.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.queue) > 0 || b.dispatching {
		b.cond.Wait()
	}
}

// Shutdown delivers what is already queued and stops the dispatch goroutine.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()

	<-b.done
}

func (b *Bus) loop() {
	defer close(b.done)

	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}

		event := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		subs := append([]subscriber(nil), b.subscribers[event.Kind()]...)
		b.dispatching = true
		b.mu.Unlock()

		for _, s := range subs {
			b.deliver(s, event)
		}

		b.mu.Lock()
		b.dispatching = false
		b.cond.Broadcast()
		b.mu.Unlock()
	}
}

func (b *Bus) deliver(s subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("EventBus", errors.Errorf("handler panic: %v", r), map[string]interface{}{
				"kind":       string(event.Kind()),
				"subscriber": s.id,
			})
		}
	}()
	s.handler.Handle(event)
}
