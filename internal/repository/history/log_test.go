package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// frozenClock always returns the same instant, the worst case for ordering.
func frozenClock() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}

// TestLog_BoundedCapacity appends 150 events and expects the newest 100, oldest first.
func TestLog_BoundedCapacity(t *testing.T) {
	t.Parallel()

	l := NewLog(0, nil)
	require.Equal(t, DefaultCapacity, l.Capacity())

	for i := range 150 {
		l.Append(domain.Event{ID: fmt.Sprint(i), Type: domain.TypeSound, SenderID: "a"})
	}

	require.Equal(t, 100, l.Len())

	all := l.Tail(1_000)
	require.Len(t, all, 100)

	for i, event := range all {
		require.Equal(t, fmt.Sprint(i+50), event.ID)
	}
}

// TestLog_TimestampsStrictlyIncrease verifies server-side stamping with a frozen clock.
func TestLog_TimestampsStrictlyIncrease(t *testing.T) {
	t.Parallel()

	l := NewLog(10, frozenClock)

	first := l.Append(domain.Event{ID: "1"})
	second := l.Append(domain.Event{ID: "2", Timestamp: time.Unix(1, 0)})

	require.Equal(t, frozenClock(), first.Timestamp)
	require.Equal(t, first.Timestamp.Add(Resolution), second.Timestamp)
}

// TestLog_Tail returns the requested suffix in insertion order.
func TestLog_Tail(t *testing.T) {
	t.Parallel()

	l := NewLog(5, frozenClock)
	require.Empty(t, l.Tail(3))

	for i := range 7 {
		l.Append(domain.Event{ID: fmt.Sprint(i)})
	}

	tail := l.Tail(3)
	require.Len(t, tail, 3)
	require.Equal(t, "4", tail[0].ID)
	require.Equal(t, "6", tail[2].ID)
	require.Empty(t, l.Tail(0))
	require.Empty(t, l.Tail(-1))
}

// TestLog_SinceNeverDuplicatesAndExcludesSelf polls with an advancing watermark.
func TestLog_SinceNeverDuplicatesAndExcludesSelf(t *testing.T) {
	t.Parallel()

	l := NewLog(DefaultCapacity, frozenClock)

	var (
		watermark time.Time
		seen      []string
	)

	poll := func() {
		for _, event := range l.Since(watermark, "b") {
			require.NotEqual(t, "b", event.SenderID)
			require.True(t, event.Timestamp.After(watermark))
			seen = append(seen, event.ID)
			watermark = event.Timestamp
		}
	}

	for i := range 20 {
		sender := "a"
		if i%5 == 0 {
			sender = "b"
		}

		l.Append(domain.Event{ID: fmt.Sprint(i), SenderID: sender})

		if i%3 == 0 {
			poll()
		}
	}

	poll()
	poll()

	require.Len(t, seen, 16)

	unique := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		unique[id] = struct{}{}
	}

	require.Len(t, unique, len(seen))
}

// TestLog_ConcurrentAppend fires 50 concurrent appends and checks nothing is lost or reordered.
func TestLog_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	l := NewLog(DefaultCapacity, nil)

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Go(func() {
			l.Append(domain.Event{ID: fmt.Sprint(i), SenderID: fmt.Sprintf("device_%d", i)})
		})
	}

	wg.Wait()

	events := l.Tail(DefaultCapacity)
	require.Len(t, events, 50)

	ids := make(map[string]struct{}, 50)
	for i, event := range events {
		ids[event.ID] = struct{}{}

		if i > 0 {
			require.True(t, event.Timestamp.After(events[i-1].Timestamp))
		}
	}

	require.Len(t, ids, 50)
}
