package chat

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/roomchat/internal/hub"
)

// Session is one participant connection to one room. It starts Joined once
// Service.Join returns and ends Closed after Close; a reconnect is a new
// Session.
type Session struct {
	svc      *Service
	sub      *hub.Subscriber
	room     string
	username string

	state     atomic.Int32
	closeOnce sync.Once
}

// Room returns the room id.
func (s *Session) Room() string { return s.room }

// Username returns the participant identity.
func (s *Session) Username() string { return s.username }

// ID returns the id of the session's subscriber.
func (s *Session) ID() string { return s.sub.ID() }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Messages returns the queue of encoded events to write to the client.
func (s *Session) Messages() <-chan []byte { return s.sub.Messages() }

// Done is closed when the session must stop delivering: the client left,
// a delivery failed, the room was deleted or the service is shutting down.
func (s *Session) Done() <-chan struct{} { return s.sub.Done() }

// Err returns why the session's subscriber was closed, or nil while open.
func (s *Session) Err() error { return s.sub.Err() }

// Send submits a chat message on behalf of the session's participant.
func (s *Session) Send(content string) (Message, error) {
	return s.svc.Submit(Submission{Room: s.room, Sender: s.username, Content: content})
}

// Close unregisters the session, removes the participant from the room and
// notifies the remaining members. Calling Close more than once is a no-op.
func (s *Session) Close() {
	s.closeOnce.Do(s.close)
}

func (s *Session) close() {
	svc := s.svc
	s.state.Store(int32(StateClosed))

	// DeleteRoom closes subscribers under the write lock, so the cause read
	// here and the Leave below cannot interleave with a deletion
	svc.lifecycle.RLock()
	svc.table.Unregister(s.sub)
	s.sub.Close(hub.ErrTransportClosed)

	// the administrator already removed the room; a room with the same id
	// may exist by now and must not lose this username
	if errors.Is(s.sub.Err(), ErrRoomDeleted) {
		svc.lifecycle.RUnlock()
		svc.log.Info("Session closed after room deletion", "room", s.room, "username", s.username)
		return
	}

	result := svc.registry.Leave(s.room, s.username)
	if result.Left {
		svc.limiters.forget(s.room, s.username)
	}
	svc.lifecycle.RUnlock()

	svc.log.Info("Participant left",
		"room", s.room,
		"username", s.username,
		"subscriber", s.sub.ID(),
		"cause", s.sub.Err(),
		"room_deleted", result.Deleted)

	if svc.closing.Load() || !result.Left {
		return
	}
	if !result.Deleted {
		svc.broadcaster.Publish(s.room, hub.KindUserLeft, Presence{
			Username:  s.username,
			Timestamp: svc.now(),
		})
	}
	svc.publishDirectory()
}
