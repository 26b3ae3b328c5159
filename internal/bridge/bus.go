// internal/bridge/bus.go
package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// subscription is one consumer's mailbox. done is closed on unsubscribe so a
// poster blocked on a full buffer gives up instead of hanging.
type subscription struct {
	ch   chan schemas.EngineEvent
	done chan struct{}
	once sync.Once
}

// EventBus fans engine events out to subscribers by kind. Each subscriber
// receives events in posting order.
type EventBus struct {
	logger *zap.Logger

	subscribers map[schemas.EventKind][]*subscription
	mu          sync.RWMutex
	bufferSize  int

	// activePostsWg tracks Post calls that are delivering.
	activePostsWg sync.WaitGroup

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	isShutdown   bool
	shutdownMu   sync.Mutex
}

// NewEventBus initializes the EventBus.
func NewEventBus(logger *zap.Logger, bufferSize int) *EventBus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		logger:       logger.Named("event_bus"),
		subscribers:  make(map[schemas.EventKind][]*subscription),
		bufferSize:   bufferSize,
		shutdownChan: make(chan struct{}),
	}
}

// Post delivers an event to every subscriber of its kind. It blocks while a
// subscriber's buffer is full, until the context ends or the bus shuts down.
func (eb *EventBus) Post(ctx context.Context, ev schemas.EngineEvent) error {
	eb.shutdownMu.Lock()
	if eb.isShutdown {
		eb.shutdownMu.Unlock()
		return fmt.Errorf("cannot post event: EventBus is shut down")
	}
	eb.activePostsWg.Add(1)
	eb.shutdownMu.Unlock()
	defer eb.activePostsWg.Done()

	eb.mu.RLock()
	subs := eb.subscribers[ev.Kind]
	if len(subs) == 0 {
		eb.mu.RUnlock()
		return nil
	}
	// Copy so the lock is not held during channel sends.
	subsCopy := make([]*subscription, len(subs))
	copy(subsCopy, subs)
	eb.mu.RUnlock()

	for _, sub := range subsCopy {
		select {
		case sub.ch <- ev:
		case <-sub.done:
			// Unsubscribed while we were delivering.
		case <-ctx.Done():
			return ctx.Err()
		case <-eb.shutdownChan:
			return fmt.Errorf("failed to post event: bus is shutting down")
		}
	}
	return nil
}

// Subscribe returns a channel receiving the given kinds and a function that
// ends the subscription. The channel is closed on Shutdown only.
func (eb *EventBus) Subscribe(kinds ...schemas.EventKind) (<-chan schemas.EngineEvent, func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.isShutdownLocked() {
		closed := make(chan schemas.EngineEvent)
		close(closed)
		return closed, func() {}
	}
	if len(kinds) == 0 {
		kinds = schemas.AllEventKinds
	}

	sub := &subscription{
		ch:   make(chan schemas.EngineEvent, eb.bufferSize),
		done: make(chan struct{}),
	}
	subscribed := make([]schemas.EventKind, len(kinds))
	copy(subscribed, kinds)
	for _, k := range subscribed {
		eb.subscribers[k] = append(eb.subscribers[k], sub)
	}

	unsubscribe := func() {
		sub.once.Do(func() { close(sub.done) })

		eb.mu.Lock()
		defer eb.mu.Unlock()
		for _, k := range subscribed {
			list := eb.subscribers[k]
			for i, s := range list {
				if s == sub {
					copy(list[i:], list[i+1:])
					list[len(list)-1] = nil
					eb.subscribers[k] = list[:len(list)-1]
					break
				}
			}
			if len(eb.subscribers[k]) == 0 {
				delete(eb.subscribers, k)
			}
		}
	}
	return sub.ch, unsubscribe
}

// SubscriberCount reports how many subscriptions receive the kind.
func (eb *EventBus) SubscriberCount(kind schemas.EventKind) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[kind])
}

func (eb *EventBus) isShutdownLocked() bool {
	eb.shutdownMu.Lock()
	defer eb.shutdownMu.Unlock()
	return eb.isShutdown
}

// Shutdown stops accepting posts, waits for in-flight posts and closes every
// subscriber channel.
func (eb *EventBus) Shutdown() {
	eb.shutdownOnce.Do(func() {
		eb.logger.Debug("Shutting down EventBus")

		eb.shutdownMu.Lock()
		eb.isShutdown = true
		eb.shutdownMu.Unlock()

		close(eb.shutdownChan)
		eb.activePostsWg.Wait()

		eb.mu.Lock()
		unique := make(map[*subscription]struct{})
		for _, subs := range eb.subscribers {
			for _, s := range subs {
				unique[s] = struct{}{}
			}
		}
		for s := range unique {
			close(s.ch)
		}
		eb.subscribers = make(map[schemas.EventKind][]*subscription)
		eb.mu.Unlock()
	})
}
