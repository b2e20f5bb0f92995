package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// eventStream writes one chat session as a text/event-stream response.
type eventStream struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	sess      *chat.Session
	log       *slog.Logger
	heartbeat time.Duration
}

func newEventStream(w http.ResponseWriter, sess *chat.Session, heartbeat time.Duration, log *slog.Logger) *eventStream {
	return &eventStream{
		w:         w,
		rc:        http.NewResponseController(w),
		sess:      sess,
		log:       log,
		heartbeat: heartbeat,
	}
}

// open sends the stream headers. The server write timeout would cut the
// stream, so the deadline is lifted first.
func (s *eventStream) open() error {
	if err := s.rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("clear write deadline: %w", err)
	}

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	return s.rc.Flush()
}

// run pumps events until the client goes away or the session is closed.
func (s *eventStream) run(done <-chan struct{}) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			s.log.Info("Event stream closed by client")
			return
		case payload := <-s.sess.Messages():
			if err := s.writeEvent(payload); err != nil {
				s.log.Warn("Error writing event", "error", err)
				return
			}
		case <-s.sess.Done():
			s.flushPending()
			s.log.Info("Event stream ended", "cause", s.sess.Err())
			return
		case <-ticker.C:
			if err := s.writeRaw(": ping\n\n"); err != nil {
				s.log.Warn("Error writing heartbeat", "error", err)
				return
			}
		}
	}
}

func (s *eventStream) flushPending() {
	for {
		select {
		case payload := <-s.sess.Messages():
			if err := s.writeEvent(payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *eventStream) writeEvent(payload []byte) error {
	return s.writeRaw("data: " + string(payload) + "\n\n")
}

func (s *eventStream) writeRaw(chunk string) error {
	if _, err := fmt.Fprint(s.w, chunk); err != nil {
		return err
	}
	return s.rc.Flush()
}
