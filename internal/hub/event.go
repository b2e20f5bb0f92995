// Package hub fans events out to live subscribers grouped by room. It owns
// the subscriber table and the single ordered publish point; it knows nothing
// about participants or room metadata.
package hub

import (
	"encoding/json"
	"time"
)

// Kind tags the payload carried by an Event.
type Kind string

// Event kinds pushed to clients.
const (
	KindChatMessage Kind = "chat-message"
	KindUserJoined  Kind = "user-joined"
	KindUserLeft    Kind = "user-left"
	KindRoomsList   Kind = "rooms-list"
)

// Event is the envelope written to every subscriber. Seq increases by one
// for every event the Broadcaster publishes, across all rooms.
type Event struct {
	Type      Kind      `json:"type"`
	Room      string    `json:"room,omitempty"`
	Seq       uint64    `json:"seq"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode serializes the event once so the same bytes can be queued on every
// subscriber.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
