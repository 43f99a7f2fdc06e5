package device

import (
	"slices"
	"strings"
	"sync"
	"time"

	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// Clock returns the current time. Tests inject a controllable one.
type Clock func() time.Time

// Snapshot is a point-in-time view of the registry.
type Snapshot struct {
	// All holds every registered device, sorted by ID.
	All []domain.Device
	// Active holds the devices seen within the requested window, sorted by ID.
	Active []domain.Device
	// TakenAt is the time the activity filter was evaluated against.
	TakenAt time.Time
}

// Registry tracks which devices claim to be connected.
// All methods are safe for concurrent use.
type Registry struct {
	// now supplies timestamps for lastSeen updates.
	now Clock
	// devices maps device ID to its entry.
	devices map[string]*domain.Device
	// mu protects devices.
	mu sync.RWMutex
}

// NewRegistry creates an empty registry. A nil clock defaults to time.Now.
func NewRegistry(now Clock) *Registry {
	if now == nil {
		now = time.Now
	}

	return &Registry{
		now:     now,
		devices: make(map[string]*domain.Device),
	}
}

// Register inserts or overwrites the device and sets its lastSeen to now.
// Re-registering an existing ID refreshes it; there are never duplicates.
func (r *Registry) Register(id string, metadata domain.Metadata) domain.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := &domain.Device{
		ID:       id,
		LastSeen: r.now(),
		Metadata: metadata.Clone(),
	}
	r.devices[id] = d

	return *d.Clone()
}

// Touch refreshes lastSeen for a registered device.
// It reports whether the device was present; absent IDs are a no-op.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return false
	}

	d.LastSeen = r.now()

	return true
}

// Remove deletes the device and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.devices[id]
	delete(r.devices, id)

	return ok
}

// Get returns a copy of the device entry.
func (r *Registry) Get(id string) (domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return domain.Device{}, false
	}

	return *d.Clone(), true
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.devices)
}

// IDs returns the sorted IDs of all registered devices except the excluded one.
func (r *Registry) IDs(exclude string) []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.devices))

	for id := range r.devices {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	slices.Sort(ids)

	return ids
}

// Snapshot returns all entries plus those active within window. It has no side effects.
func (r *Registry) Snapshot(window time.Duration) Snapshot {
	r.mu.RLock()
	now := r.now()
	all := make([]domain.Device, 0, len(r.devices))

	for _, d := range r.devices {
		all = append(all, *d.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b domain.Device) int {
		return strings.Compare(a.ID, b.ID)
	})

	active := make([]domain.Device, 0, len(all))

	for i := range all {
		if all[i].ActiveAt(now, window) {
			active = append(active, all[i])
		}
	}

	return Snapshot{
		All:     all,
		Active:  active,
		TakenAt: now,
	}
}

// Sweep removes devices whose lastSeen is at least grace old and returns their IDs.
// A non-positive grace removes nothing.
func (r *Registry) Sweep(grace time.Duration) []string {
	if grace <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	var removed []string

	for id, d := range r.devices {
		if now.Sub(d.LastSeen) >= grace {
			delete(r.devices, id)
			removed = append(removed, id)
		}
	}

	slices.Sort(removed)

	return removed
}
