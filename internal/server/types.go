package server

import (
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Frame types a WebSocket client may send.
const (
	frameSendMessage = "send-message"
	frameListRooms   = "list-rooms"
	frameLeave       = "leave"
)

// clientFrame is the JSON frame read from a WebSocket client.
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type messageAccepted struct {
	ID string `json:"id"`
}

type roomsResponse struct {
	Rooms []room.Summary `json:"rooms"`
}

type loginRequest struct {
	Secret string `json:"secret" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type createRoomRequest struct {
	ID   string `json:"id" validate:"omitempty,max=128"`
	Name string `json:"name" validate:"omitempty,max=128"`
}

type renameRoomRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
