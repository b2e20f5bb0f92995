package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/roomchat/internal/room"
)

var (
	// ErrInvalidRequest is returned for blank or malformed join and message parameters.
	ErrInvalidRequest = room.ErrInvalidRequest
	// ErrRoomNotFound is returned by administrative actions on unknown rooms.
	ErrRoomNotFound = room.ErrRoomNotFound
	// ErrRoomExists is returned when creating a room whose id is taken.
	ErrRoomExists = room.ErrRoomExists
	// ErrMessageTooLarge is returned when content exceeds the configured size.
	ErrMessageTooLarge = fmt.Errorf("%w: message too large", ErrInvalidRequest)
	// ErrNotParticipant is returned when the sender has no open connection in the room.
	ErrNotParticipant = fmt.Errorf("%w: sender is not a participant of the room", ErrInvalidRequest)
	// ErrRateLimited is returned when a sender submits faster than allowed.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrRoomDeleted closes the subscribers of a room removed by an administrator.
	ErrRoomDeleted = errors.New("room deleted")
	// ErrShuttingDown is returned to joins arriving after Shutdown.
	ErrShuttingDown = errors.New("service shutting down")
)

// Message is the payload of a chat-message event.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Presence is the payload of user-joined and user-left events.
type Presence struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomsList is the payload of a rooms-list event.
type RoomsList struct {
	Rooms []room.Summary `json:"rooms"`
}

// RoomDetail is a room summary together with its participants.
type RoomDetail struct {
	room.Summary
	Participants []string `json:"participants"`
}

// Submission is an inbound chat message.
type Submission struct {
	Room    string `json:"room" validate:"required,max=128"`
	Sender  string `json:"sender" validate:"required,max=64"`
	Content string `json:"content" validate:"required"`
}

type joinRequest struct {
	Room     string `validate:"required,max=128"`
	Username string `validate:"required,max=64"`
}

// State is the lifecycle stage of a Session.
type State int32

// Session states. Transitions only move forward.
const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
