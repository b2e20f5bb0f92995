// Package chat implements the room chat service: the join/leave lifecycle of
// connections, chat message ingress, the room directory and administrative
// room management. Transports call into a Service and drain the Session it
// hands back.
package chat

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/roomchat/internal/hub"
	"github.com/Tyrowin/roomchat/internal/room"
)

// Config tunes a Service.
type Config struct {
	// SubscriberBuffer is the per-connection event queue length.
	SubscriberBuffer int
	// Directory enables rooms-list pushes on every room change.
	Directory bool
	// RetainCreatedRooms keeps administrator-created rooms once emptied.
	RetainCreatedRooms bool
	// MaxContentLength caps message content in bytes; zero means unlimited.
	MaxContentLength int
	// RateLimit bounds message submissions per room and sender.
	RateLimit RateLimit
}

// Service owns the room registry, the subscriber table and the broadcaster.
type Service struct {
	cfg         Config
	log         *slog.Logger
	registry    *room.Registry
	table       *hub.Table
	broadcaster *hub.Broadcaster
	limiters    *senderLimiters
	validate    *validator.Validate
	now         func() time.Time

	messageSeq atomic.Uint64

	// lifecycle orders Join's registration against the subscriber snapshots
	// taken by Shutdown and DeleteRoom.
	lifecycle sync.RWMutex
	closing   atomic.Bool
}

// NewService creates a Service with empty state.
func NewService(cfg Config, log *slog.Logger) *Service {
	table := hub.NewTable()
	return &Service{
		cfg:         cfg,
		log:         log,
		registry:    room.NewRegistry(room.WithRetainCreated(cfg.RetainCreatedRooms)),
		table:       table,
		broadcaster: hub.NewBroadcaster(table, log),
		limiters:    newSenderLimiters(cfg.RateLimit),
		validate:    validator.New(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Join admits username into roomID, creating the room when needed, and
// returns the live session. The caller must Close the session when its
// transport ends.
func (s *Service) Join(roomID, username string) (*Session, error) {
	req := joinRequest{
		Room:     strings.TrimSpace(roomID),
		Username: strings.TrimSpace(username),
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.lifecycle.RLock()
	if s.closing.Load() {
		s.lifecycle.RUnlock()
		return nil, ErrShuttingDown
	}

	sess := &Session{svc: s, room: req.Room, username: req.Username}

	joined, err := s.registry.Join(req.Room, req.Username)
	if err != nil {
		s.lifecycle.RUnlock()
		return nil, err
	}
	sess.sub = hub.NewSubscriber(req.Room, req.Username, s.cfg.SubscriberBuffer)
	s.table.Register(sess.sub)
	sess.state.Store(int32(StateJoined))
	s.lifecycle.RUnlock()

	s.log.Info("Participant joined",
		"room", req.Room,
		"username", req.Username,
		"subscriber", sess.sub.ID(),
		"participants", joined.Room.ParticipantCount,
		"new_participant", joined.Added)

	// another connection of the same username is already announced
	if !joined.Added {
		return sess, nil
	}
	s.broadcaster.Publish(req.Room, hub.KindUserJoined, Presence{
		Username:  req.Username,
		Timestamp: s.now(),
	})
	s.publishDirectory()

	return sess, nil
}

// Submit validates a chat message, stamps it and publishes it to its room.
// The sender must hold an open connection in the room. Submit returns once
// the message is queued for the room's subscribers.
func (s *Service) Submit(sub Submission) (Message, error) {
	sub.Room = strings.TrimSpace(sub.Room)
	sub.Sender = strings.TrimSpace(sub.Sender)
	if strings.TrimSpace(sub.Content) == "" {
		sub.Content = ""
	}
	if err := s.validate.Struct(sub); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if s.cfg.MaxContentLength > 0 && len(sub.Content) > s.cfg.MaxContentLength {
		return Message{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrMessageTooLarge, len(sub.Content), s.cfg.MaxContentLength)
	}
	if !s.registry.IsParticipant(sub.Room, sub.Sender) {
		s.log.Warn("Message rejected from non-participant", "room", sub.Room, "sender", sub.Sender)
		return Message{}, ErrNotParticipant
	}

	now := s.now()
	if !s.limiters.allow(sub.Room, sub.Sender, now) {
		s.log.Warn("Message rejected by rate limit", "room", sub.Room, "sender", sub.Sender)
		return Message{}, ErrRateLimited
	}

	msg := Message{
		ID:        strconv.FormatUint(s.messageSeq.Add(1), 10),
		Content:   sub.Content,
		Sender:    sub.Sender,
		Timestamp: now,
	}
	s.broadcaster.Publish(sub.Room, hub.KindChatMessage, msg)
	return msg, nil
}

// DirectoryEnabled reports whether rooms-list events are pushed.
func (s *Service) DirectoryEnabled() bool {
	return s.cfg.Directory
}

// Rooms returns every room ordered by creation.
func (s *Service) Rooms() []room.Summary {
	return s.registry.List()
}

// Room returns one room with its participants.
func (s *Service) Room(id string) (RoomDetail, bool) {
	summary, ok := s.registry.Get(id)
	if !ok {
		return RoomDetail{}, false
	}
	return RoomDetail{Summary: summary, Participants: s.registry.Participants(id)}, true
}

// SendDirectory pushes the current room list to a single session.
func (s *Service) SendDirectory(sess *Session) {
	s.broadcaster.Direct(sess.sub, hub.KindRoomsList, RoomsList{Rooms: s.registry.List()})
}

func (s *Service) publishDirectory() {
	if !s.cfg.Directory {
		return
	}
	s.broadcaster.PublishAllFunc(hub.KindRoomsList, func() any {
		return RoomsList{Rooms: s.registry.List()}
	})
}

// CreateRoom registers a room on behalf of an administrator.
func (s *Service) CreateRoom(id, name, creator string) (room.Summary, error) {
	summary, err := s.registry.Create(id, name, creator)
	if err != nil {
		return room.Summary{}, err
	}
	s.log.Info("Room created", "room", summary.ID, "name", summary.Name, "creator", creator)
	s.publishDirectory()
	return summary, nil
}

// RenameRoom changes a room's display name.
func (s *Service) RenameRoom(id, name string) (room.Summary, error) {
	summary, err := s.registry.Rename(id, name)
	if err != nil {
		return room.Summary{}, err
	}
	s.log.Info("Room renamed", "room", summary.ID, "name", summary.Name)
	s.publishDirectory()
	return summary, nil
}

// DeleteRoom removes a room and closes every session connected to it.
func (s *Service) DeleteRoom(id string) error {
	id = strings.TrimSpace(id)

	// subscribers are closed under the lock so a session closing
	// concurrently sees ErrRoomDeleted before it touches the registry
	s.lifecycle.Lock()
	if err := s.registry.Delete(id); err != nil {
		s.lifecycle.Unlock()
		return err
	}
	subs := s.table.Snapshot(id)
	for _, sub := range subs {
		s.table.Unregister(sub)
		sub.Close(ErrRoomDeleted)
	}
	s.lifecycle.Unlock()

	s.log.Info("Room deleted", "room", id, "closed_subscribers", len(subs))
	s.publishDirectory()
	return nil
}

// Shutdown refuses new joins and closes every live subscriber. It returns the
// number of subscribers closed.
func (s *Service) Shutdown() int {
	s.lifecycle.Lock()
	s.closing.Store(true)
	subs := s.table.All()
	s.lifecycle.Unlock()

	for _, sub := range subs {
		sub.Close(ErrShuttingDown)
	}
	s.log.Info("Closed all subscribers", "count", len(subs))
	return len(subs)
}

// Subscribers returns the number of live subscribers.
func (s *Service) Subscribers() int {
	return s.table.Len()
}
