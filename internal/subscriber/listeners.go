package subscriber

import (
	"sync"

	"github.com/rzbill/feedsub/internal/feed"
)

// EventFunc handles one event. The event and its payload are shared with
// other listeners and must not be modified.
type EventFunc func(feed.Event) error

// CloseFunc is told about each stream termination, exactly once per stream.
type CloseFunc func(Termination)

// Listener is a registration handle. Close removes it; later events are not
// delivered to it. Close is idempotent and safe from inside a callback.
type Listener struct {
	id     uint64
	once   sync.Once
	remove func(uint64)
}

// Close unregisters the listener.
func (l *Listener) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() { l.remove(l.id) })
}

type registryEntry[F any] struct {
	id uint64
	fn F
}

// registry keeps callbacks in registration order. The entries slice is
// copy-on-write, so a snapshot stays valid while callbacks add or remove
// listeners.
type registry[F any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []registryEntry[F]
}

func (r *registry[F]) add(fn F) *Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	next := make([]registryEntry[F], len(r.entries), len(r.entries)+1)
	copy(next, r.entries)
	r.entries = append(next, registryEntry[F]{id: id, fn: fn})
	return &Listener{id: id, remove: r.remove}
}

func (r *registry[F]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id != id {
			continue
		}
		next := make([]registryEntry[F], 0, len(r.entries)-1)
		next = append(next, r.entries[:i]...)
		r.entries = append(next, r.entries[i+1:]...)
		return
	}
}

func (r *registry[F]) snapshot() []registryEntry[F] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries
}

func (r *registry[F]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
