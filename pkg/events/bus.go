// Package events carries state transitions from the environment manager and
// the size checker to whoever presents them.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source identifies the component that emitted an event
type Source string

const (
	SourceEnvironment Source = "environment"
	SourceCheck       Source = "check"
)

// Event is one state transition
type Event struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Source  Source    `json:"source"`
	State   string    `json:"state"`
	Package string    `json:"package,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	logger *slog.Logger
}

// NewBus creates an empty bus
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a subscriber with the given buffer. The returned
// function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish stamps e with an ID and time when missing and delivers it
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"subscriber", id,
				"source", e.Source,
				"state", e.State,
			)
		}
	}
}

// Subscribers returns the number of active subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
