// Package room holds the process-wide registry of chat rooms and their
// participants. Every mutation is serialized by a single registry lock so
// concurrent joins and leaves on the same room never lose an update.
package room

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	// ErrInvalidRequest is returned when a room id, username or name is blank.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRoomNotFound is returned by administrative mutations on unknown rooms.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when an administrator creates a room whose id is taken.
	ErrRoomExists = errors.New("room already exists")
)

// Summary is an immutable snapshot of a room as exposed to callers and
// serialized into rooms-list events.
type Summary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Creator          string    `json:"creator"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
	Retained         bool      `json:"retained,omitempty"`
}

// JoinResult reports what a Join call changed.
type JoinResult struct {
	// Added is true when the username was not a participant before the call.
	Added bool
	// Room is the state after the join.
	Room Summary
}

// LeaveResult reports what a Leave call changed.
type LeaveResult struct {
	// Left is true when the username is no longer a participant after the call.
	Left bool
	// Deleted is true when the leave emptied the room and the room was removed.
	Deleted bool
	// Room is the state after the leave. It is the zero value when Deleted is true.
	Room Summary
}

type room struct {
	id        string
	name      string
	creator   string
	createdAt time.Time
	retained  bool
	// participants counts live connections per username; a username is a
	// participant while its count is positive.
	participants map[string]int
}

func (r *room) summary() Summary {
	return Summary{
		ID:               r.id,
		Name:             r.name,
		Creator:          r.creator,
		ParticipantCount: len(r.participants),
		CreatedAt:        r.createdAt,
		Retained:         r.retained,
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetainCreated keeps rooms created through Create alive after their
// last participant leaves.
func WithRetainCreated(retain bool) Option {
	return func(r *Registry) { r.retainCreated = retain }
}

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry is the authoritative set of rooms. The zero value is not usable;
// construct one with NewRegistry.
type Registry struct {
	mu            sync.RWMutex
	rooms         map[string]*room
	retainCreated bool
	now           func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms: make(map[string]*room),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureRoom returns the room with the given id, creating an empty one when
// absent. A room created here counts as explicitly created: it is retained
// when emptied and only goes away through Delete.
func (r *Registry) EnsureRoom(id string) (Summary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Summary{}, fmt.Errorf("%w: room id is required", ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.rooms[id]; ok {
		return existing.summary(), nil
	}
	created := r.ensureLocked(id, "")
	created.retained = true
	return created.summary(), nil
}

func (r *Registry) ensureLocked(id, creator string) *room {
	if existing, ok := r.rooms[id]; ok {
		return existing
	}
	created := &room{
		id:           id,
		name:         id,
		creator:      creator,
		createdAt:    r.now(),
		participants: make(map[string]int),
	}
	r.rooms[id] = created
	return created
}

// Join adds username to the room, creating the room with username as its
// creator when it does not exist yet. Joining twice with the same username
// keeps a single participant entry; only the first join reports Added.
func (r *Registry) Join(id, username string) (JoinResult, error) {
	id = strings.TrimSpace(id)
	username = strings.TrimSpace(username)
	if id == "" || username == "" {
		return JoinResult{}, fmt.Errorf("%w: room and username are required", ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.ensureLocked(id, username)
	target.participants[username]++
	return JoinResult{
		Added: target.participants[username] == 1,
		Room:  target.summary(),
	}, nil
}

// IsParticipant reports whether username currently has a connection in the
// room.
func (r *Registry) IsParticipant(id, username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, ok := r.rooms[strings.TrimSpace(id)]
	if !ok {
		return false
	}
	return target.participants[strings.TrimSpace(username)] > 0
}

// Leave removes one connection of username from the room. The username stops
// being a participant once its last connection leaves, and a non-retained room
// with no participants left is deleted. Leaving an unknown room is a no-op.
func (r *Registry) Leave(id, username string) LeaveResult {
	id = strings.TrimSpace(id)
	username = strings.TrimSpace(username)

	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.rooms[id]
	if !ok {
		return LeaveResult{}
	}

	count, member := target.participants[username]
	if !member {
		return LeaveResult{Room: target.summary()}
	}
	if count > 1 {
		target.participants[username] = count - 1
		return LeaveResult{Room: target.summary()}
	}

	delete(target.participants, username)
	if len(target.participants) == 0 && !target.retained {
		delete(r.rooms, id)
		return LeaveResult{Left: true, Deleted: true}
	}
	return LeaveResult{Left: true, Room: target.summary()}
}

// Create registers a room explicitly. An empty id gets a generated one and an
// empty name defaults to the id.
func (r *Registry) Create(id, name, creator string) (Summary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrRoomExists, id)
	}
	created := r.ensureLocked(id, creator)
	created.name = name
	created.retained = r.retainCreated
	return created.summary(), nil
}

// Rename changes the display name of a room.
func (r *Registry) Rename(id, name string) (Summary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Summary{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.rooms[strings.TrimSpace(id)]
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	target.name = name
	return target.summary(), nil
}

// Delete removes a room regardless of its participants.
func (r *Registry) Delete(id string) error {
	id = strings.TrimSpace(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	delete(r.rooms, id)
	return nil
}

// Get returns the summary of a single room.
func (r *Registry) Get(id string) (Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, ok := r.rooms[strings.TrimSpace(id)]
	if !ok {
		return Summary{}, false
	}
	return target.summary(), true
}

// Participants returns the sorted usernames currently in the room.
func (r *Registry) Participants(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, ok := r.rooms[strings.TrimSpace(id)]
	if !ok {
		return nil
	}
	names := lo.Keys(target.participants)
	sort.Strings(names)
	return names
}

// List returns every room ordered by creation time, then id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	summaries := lo.MapToSlice(r.rooms, func(_ string, rm *room) Summary {
		return rm.summary()
	})
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

// Len reports the number of rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
