package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
)

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Code: status, Message: message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrRoomExists):
		return http.StatusConflict
	case errors.Is(err, chat.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, chat.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrInvalidCredential), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAdminDisabled):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// readJSON decodes a bounded request body into v and validates it.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxMessageSize+1024)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", chat.ErrInvalidRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrInvalidRequest, err)
	}
	return nil
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

// handleEvents joins the requested room and streams its events as SSE.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.conns.add(1) {
		writeError(w, http.StatusServiceUnavailable, chat.ErrShuttingDown.Error())
		return
	}
	defer s.conns.done()

	query := r.URL.Query()
	sess, err := s.svc.Join(query.Get("room"), query.Get("username"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer sess.Close()

	log := s.log.With("transport", "sse", "room", sess.Room(), "username", sess.Username(), "subscriber", sess.ID())
	stream := newEventStream(w, sess, s.cfg.HeartbeatInterval, log)
	if err := stream.open(); err != nil {
		log.Warn("Event stream setup failed", "error", err)
		return
	}
	stream.run(r.Context().Done())
}

// handleWebSocket joins the requested room and hands the upgraded
// connection to a Client's read and write pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("room") == "" || query.Get("username") == "" {
		writeError(w, http.StatusBadRequest, "room and username are required")
		return
	}
	if !s.origins.checkOrigin(r) {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return
	}
	if !s.conns.add(2) {
		writeError(w, http.StatusServiceUnavailable, chat.ErrShuttingDown.Error())
		return
	}

	sess, err := s.svc.Join(query.Get("room"), query.Get("username"))
	if err != nil {
		s.conns.done()
		s.conns.done()
		s.writeServiceError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		sess.Close()
		s.conns.done()
		s.conns.done()
		return
	}

	client := NewClient(conn, sess, s.svc, s.cfg, r.RemoteAddr, s.log.With("transport", "websocket"))
	client.log.Info("WebSocket client connected")

	go func() {
		defer s.conns.done()
		client.writePump()
	}()
	go func() {
		defer s.conns.done()
		client.readPump()
	}()
}

// handleSubmit accepts a chat message for a room from a sender connected
// to it over a stream or socket.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub chat.Submission
	if err := s.readJSON(w, r, &sub); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	msg, err := s.svc.Submit(sub)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageAccepted{ID: msg.ID})
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	if !s.svc.DirectoryEnabled() {
		writeError(w, http.StatusNotFound, "room directory disabled")
		return
	}
	writeJSON(w, http.StatusOK, roomsResponse{Rooms: s.svc.Rooms()})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, ok := s.svc.Room(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("room %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.secret.Enabled() {
		s.writeServiceError(w, r, auth.ErrAdminDisabled)
		return
	}

	var req loginRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.secret.Verify(req.Secret); err != nil {
		s.log.Warn("Admin login rejected", "remote", r.RemoteAddr, "error", err)
		s.writeServiceError(w, r, err)
		return
	}

	token, expiresAt, err := s.tokens.Issue("admin")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.log.Info("Admin logged in", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	summary, err := s.svc.CreateRoom(req.ID, req.Name, adminSubject(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleRenameRoom(w http.ResponseWriter, r *http.Request) {
	var req renameRoomRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	summary, err := s.svc.RenameRoom(chi.URLParam(r, "id"), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteRoom(chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
