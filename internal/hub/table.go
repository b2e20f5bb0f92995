package hub

import (
	"sync"

	"github.com/samber/lo"
)

// Table maps rooms to their live subscribers. Register and Unregister only
// touch the map and never wait on a subscriber's queue.
type Table struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{rooms: make(map[string]map[*Subscriber]struct{})}
}

// Register adds sub to the set of its room.
func (t *Table) Register(sub *Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.rooms[sub.Room()]
	if !ok {
		set = make(map[*Subscriber]struct{})
		t.rooms[sub.Room()] = set
	}
	set[sub] = struct{}{}
}

// Unregister removes sub and reports whether it was present.
func (t *Table) Unregister(sub *Subscriber) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.rooms[sub.Room()]
	if !ok {
		return false
	}
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(t.rooms, sub.Room())
	}
	return true
}

// Snapshot returns a copy of the room's subscribers.
func (t *Table) Snapshot(roomID string) []*Subscriber {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Keys(t.rooms[roomID])
}

// All returns a copy of every subscriber across all rooms.
func (t *Table) All() []*Subscriber {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make([]*Subscriber, 0, len(t.rooms))
	for _, set := range t.rooms {
		all = append(all, lo.Keys(set)...)
	}
	return all
}

// Count returns the number of subscribers registered to the room.
func (t *Table) Count(roomID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[roomID])
}

// Len returns the total number of subscribers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := 0
	for _, set := range t.rooms {
		total += len(set)
	}
	return total
}
