package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind is the event vocabulary. It is fixed: subscribers switch on it and
// new kinds require coordinated changes on both sides.
type Kind string

const (
	DataCollected Kind = "DATA_COLLECTED"
	ManualRefresh Kind = "MANUAL_REFRESH"
	ConfigChanged Kind = "CONFIG_CHANGED"
)

// Event is what subscribers receive. Range and Environment identify the
// snapshot key the event concerns; they may be empty for CONFIG_CHANGED.
type Event struct {
	Kind        Kind
	Range       string
	Environment string
	At          time.Time
}

// Handler processes one event. Delivery is synchronous in the publisher's
// goroutine, so handlers must not block on network I/O.
type Handler func(Event)

// Bus is a minimal in-process pub/sub registry.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish delivers the event to every subscriber of its kind, in
// registration order, before returning.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers[event.Kind]
	b.mu.RUnlock()

	log.Debug().
		Str("kind", string(event.Kind)).
		Str("range", event.Range).
		Str("env", event.Environment).
		Int("subscribers", len(handlers)).
		Msg("Publishing event")

	for _, h := range handlers {
		h(event)
	}
}
