package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"audio-digest/internal/domain"
)

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeLog      EventType = "log"
	EventTypeProgress EventType = "progress"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
)

// Event is a sequenced payload consumed by log mirrors and the --events dump.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	JobID     string           `json:"jobId"`
	Type      EventType        `json:"type"`
	Status    domain.JobStatus `json:"status,omitempty"`
	Message   string           `json:"message,omitempty"`
	File      string           `json:"file,omitempty"`
	Done      int              `json:"done,omitempty"`
	Total     int              `json:"total,omitempty"`
	Command   string           `json:"command,omitempty"`
	Args      []string         `json:"args,omitempty"`
	ExitCode  int              `json:"exitCode,omitempty"`
	Stdout    string           `json:"stdout,omitempty"`
	Stderr    string           `json:"stderr,omitempty"`
	Path      string           `json:"path,omitempty"`
}

// EventBus keeps the most recent events in a fixed ring and fans each
// published event out to subscribers.
type EventBus struct {
	mu      sync.RWMutex
	ring    []Event
	head    int
	size    int
	lastSeq int64
	subs    map[int]func(Event)
	nextSub int
	now     func() time.Time
}

// NewEventBus creates a bus that retains at most capacity events.
func NewEventBus(capacity int) *EventBus {
	if capacity <= 0 {
		capacity = 500
	}
	return &EventBus{
		ring: make([]Event, capacity),
		subs: make(map[int]func(Event)),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers fn for every later event and returns a function that
// removes it. fn runs on the publisher's goroutine and must not publish.
func (b *EventBus) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish stamps the event with the next sequence number, stores it and
// delivers it to subscribers in registration order.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	b.lastSeq++
	event.Seq = b.lastSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}

	slot := (b.head + b.size) % len(b.ring)
	b.ring[slot] = event
	if b.size < len(b.ring) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.ring)
	}

	ids := lo.Keys(b.subs)
	sort.Ints(ids)
	fns := lo.Map(ids, func(id int, _ int) func(Event) { return b.subs[id] })
	b.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
	return event
}

// Since returns retained events newer than seq, oldest first. When types
// are given only events of those types are returned.
func (b *EventBus) Since(seq int64, types ...EventType) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for i := 0; i < b.size; i++ {
		event := b.ring[(b.head+i)%len(b.ring)]
		if event.Seq <= seq {
			continue
		}
		if len(types) > 0 && !lo.Contains(types, event.Type) {
			continue
		}
		out = append(out, event)
	}
	return out
}

// Dropped reports how many events fell out of the ring.
func (b *EventBus) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSeq - int64(b.size)
}
