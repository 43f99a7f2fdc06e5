package history

import (
	"sync"
	"time"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// DefaultCapacity is the number of alarms the log retains.
const DefaultCapacity = 100

// Resolution is the granularity of assigned timestamps; it matches the wire format.
const Resolution = time.Millisecond

// Clock returns the current time. Tests inject a controllable one.
type Clock func() time.Time

// Log is an append-only, capacity-bounded sequence of alarm events.
// All methods are safe for concurrent use.
type Log struct {
	// now supplies event timestamps.
	now Clock
	// ring stores events; head is the index of the oldest one.
	ring []domain.Event
	// head is the index of the oldest event in ring.
	head int
	// size is the number of stored events.
	size int
	// last is the timestamp of the most recently appended event.
	last time.Time
	// mu protects all fields above.
	mu sync.RWMutex
}

// NewLog creates an empty log. Non-positive capacity defaults to DefaultCapacity,
// a nil clock defaults to time.Now.
func NewLog(capacity int, now Clock) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	if now == nil {
		now = time.Now
	}

	return &Log{
		now:  now,
		ring: make([]domain.Event, capacity),
	}
}

// Append stores the event at the tail and returns it with its assigned timestamp.
// Timestamps are truncated to Resolution and strictly increase across appends,
// so a reader filtering on "greater than watermark" never drops an event that
// landed in the same millisecond as its predecessor.
// When the log is full the oldest event is evicted.
func (l *Log) Append(event domain.Event) domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().Truncate(Resolution)
	if !l.last.IsZero() && !ts.After(l.last) {
		ts = l.last.Add(Resolution)
	}

	event.Timestamp = ts
	l.last = ts

	capacity := len(l.ring)
	if l.size < capacity {
		l.ring[(l.head+l.size)%capacity] = event
		l.size++
	} else {
		l.ring[l.head] = event
		l.head = (l.head + 1) % capacity
	}

	return event
}

// Tail returns the last n events, oldest first.
func (l *Log) Tail(n int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > l.size {
		n = l.size
	}

	if n <= 0 {
		return []domain.Event{}
	}

	out := make([]domain.Event, 0, n)
	for i := l.size - n; i < l.size; i++ {
		out = append(out, l.at(i))
	}

	return out
}

// Since returns, in insertion order, every event newer than watermark
// whose sender is not excludeSender.
func (l *Log) Since(watermark time.Time, excludeSender string) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Event, 0)

	for i := range l.size {
		event := l.at(i)
		if !event.Timestamp.After(watermark) {
			continue
		}

		if excludeSender != "" && event.SenderID == excludeSender {
			continue
		}

		out = append(out, event)
	}

	return out
}

// Len returns the number of stored events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.size
}

// Capacity returns the maximum number of stored events.
func (l *Log) Capacity() int {
	return len(l.ring)
}

// at returns the i-th oldest event. Callers hold the lock.
func (l *Log) at(i int) domain.Event {
	return l.ring[(l.head+i)%len(l.ring)]
}
