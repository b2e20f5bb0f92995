package hub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrSubscriberClosed is returned when delivering to a closed subscriber.
	ErrSubscriberClosed = errors.New("subscriber closed")
	// ErrSlowSubscriber is returned when a subscriber's queue is full.
	ErrSlowSubscriber = errors.New("subscriber send buffer full")
	// ErrTransportClosed marks a subscriber whose connection went away.
	ErrTransportClosed = errors.New("transport closed")
)

// DefaultBufferSize is the queue length used when a non-positive size is given.
const DefaultBufferSize = 64

// Subscriber is a delivery queue bound to one room and one username. The
// transport that owns it drains Messages and stops once Done is closed.
type Subscriber struct {
	id       string
	room     string
	username string
	send     chan []byte
	done     chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

// NewSubscriber creates an open subscriber with a queue of bufferSize events.
func NewSubscriber(roomID, username string, bufferSize int) *Subscriber {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Subscriber{
		id:       uuid.NewString(),
		room:     roomID,
		username: username,
		send:     make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() string { return s.id }

// Room returns the room the subscriber is bound to.
func (s *Subscriber) Room() string { return s.room }

// Username returns the participant the subscriber belongs to.
func (s *Subscriber) Username() string { return s.username }

// Messages returns the queue of encoded events waiting to be written.
func (s *Subscriber) Messages() <-chan []byte { return s.send }

// Done is closed when the subscriber is closed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Deliver queues payload without blocking.
func (s *Subscriber) Deliver(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSubscriberClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

// Close marks the subscriber closed with the given cause. Only the first call
// has an effect.
func (s *Subscriber) Close(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.err = cause
	close(s.done)
}

// Err returns the cause passed to Close, or nil while open.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Closed reports whether Close has been called.
func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
