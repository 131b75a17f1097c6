package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mudler/xlog"
)

// DefaultHistorySize bounds the retained event history.
const DefaultHistorySize = 1000

// Handler is invoked for every published event a subscription matches.
type Handler func(Event)

// Predicate filters events within a subscription.
type Predicate func(Event) bool

type subscription struct {
	id        string
	eventType EventType
	handler   Handler
	predicate Predicate
}

// HistoryFilter selects retained events. Zero values mean no constraint.
type HistoryFilter struct {
	EventType EventType
	Source    string
	Target    string
	Limit     int
}

// Bus is a typed publish/subscribe dispatcher with a bounded event history.
// Publish blocks until every matching subscriber has been invoked; a
// failing subscriber is logged and never fails the publish.
type Bus struct {
	mu          sync.RWMutex
	subs        map[EventType][]subscription
	history     []Event
	historySize int
	now         func() time.Time
}

type Option func(*Bus)

// WithHistorySize overrides the history bound.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.historySize = n
		}
	}
}

// WithClock injects a time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

func New(opts ...Option) *Bus {
	b := &Bus{
		subs:        make(map[EventType][]subscription),
		historySize: DefaultHistorySize,
		now:         time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers a handler for an event type, optionally gated by
// predicates (all must accept). Returns the subscription id.
func (b *Bus) Subscribe(eventType EventType, handler Handler, predicates ...Predicate) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{
		id:        uuid.New().String(),
		eventType: eventType,
		handler:   handler,
	}
	if len(predicates) > 0 {
		sub.predicate = func(e Event) bool {
			for _, p := range predicates {
				if !p(e) {
					return false
				}
			}
			return true
		}
	}
	b.subs[eventType] = append(b.subs[eventType], sub)

	xlog.Debug("Subscription added", "type", eventType, "subscription", sub.id)
	return sub.id
}

// Unsubscribe removes a subscription. Returns false if the id is unknown.
func (b *Bus) Unsubscribe(subscriptionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		for i, sub := range subs {
			if sub.id != subscriptionID {
				continue
			}
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subs[eventType]) == 0 {
				delete(b.subs, eventType)
			}
			return true
		}
	}
	return false
}

// Publish records the event and invokes every matching subscriber, then
// returns once all of them have finished. Subscribers run concurrently;
// a panicking subscriber is recovered and logged.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}
	b.history = append(b.history, event)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
	matching := make([]subscription, 0, len(b.subs[event.Type]))
	for _, sub := range b.subs[event.Type] {
		if sub.predicate == nil || sub.predicate(event) {
			matching = append(matching, sub)
		}
	}
	b.mu.Unlock()

	xlog.Debug("Publishing event", "type", event.Type, "source", event.Source, "subscribers", len(matching))

	var wg sync.WaitGroup
	for _, sub := range matching {
		wg.Add(1)
		go func(sub subscription) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					xlog.Error("Subscriber panicked", "subscription", sub.id, "type", event.Type, "recover", r)
				}
			}()
			sub.handler(event)
		}(sub)
	}
	wg.Wait()
}

// History returns retained events matching the filter, oldest first.
func (b *Bus) History(f HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, e := range b.history {
		if f.EventType != "" && e.Type != f.EventType {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		if f.Target != "" && e.Target != f.Target {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Clear drops all subscriptions and history.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[EventType][]subscription)
	b.history = nil
	xlog.Info("Event bus cleared")
}
