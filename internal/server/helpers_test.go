package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const testOrigin = "http://localhost:8080"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RoomDirectory = false
	cfg.RateLimit.Burst = 0
	return cfg
}

type testEnv struct {
	srv *Server
	svc *chat.Service
	ts  *httptest.Server
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	cfg = cfg.Sanitize()

	svc := chat.NewService(cfg.ChatConfig(), testLogger())
	srv, err := New(cfg, svc, testLogger())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		svc.Shutdown()
		ts.Close()
	})
	return &testEnv{srv: srv, svc: svc, ts: ts}
}

// do sends a JSON request and returns the response with its body read.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type wireEvent struct {
	Type string          `json:"type"`
	Room string          `json:"room"`
	Seq  uint64          `json:"seq"`
	Data json.RawMessage `json:"data"`
}

func (e wireEvent) field(t *testing.T, name string) any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal(e.Data, &data))
	return data[name]
}

func joinQuery(roomID, username string) string {
	return url.Values{"room": {roomID}, "username": {username}}.Encode()
}

// sseClient reads data events from an open event stream.
type sseClient struct {
	events chan wireEvent
	pings  atomic.Int32
}

func openStream(t *testing.T, e *testEnv, roomID, username string) *sseClient {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.ts.URL+"/api/events?"+joinQuery(roomID, username), http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &sseClient{events: make(chan wireEvent, 128)}
	go func() {
		defer close(c.events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, ": ping") {
				c.pings.Add(1)
				continue
			}
			payload, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var evt wireEvent
			if json.Unmarshal([]byte(payload), &evt) == nil {
				c.events <- evt
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		_ = resp.Body.Close()
	})
	return c
}

func (c *sseClient) next(t *testing.T) wireEvent {
	t.Helper()
	select {
	case evt, ok := <-c.events:
		require.True(t, ok, "event stream closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return wireEvent{}
	}
}

func (c *sseClient) nextOfType(t *testing.T, kind string) wireEvent {
	t.Helper()
	for {
		if evt := c.next(t); evt.Type == kind {
			return evt
		}
	}
}

// waitClosed drains the stream until the server ends it.
func (c *sseClient) waitClosed(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event stream still open")
		}
	}
}

func wsURL(e *testEnv, roomID, username string) string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws?" + joinQuery(roomID, username)
}

func dialWebSocket(t *testing.T, e *testEnv, roomID, username string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", testOrigin)

	conn, resp, err := dialer.Dial(wsURL(e, roomID, username), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt wireEvent
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func readEventOfType(t *testing.T, conn *websocket.Conn, kind string) wireEvent {
	t.Helper()
	for {
		if evt := readEvent(t, conn); evt.Type == kind {
			return evt
		}
	}
}

// readUntilClosed discards events until the server closes the connection
// and returns the close error.
func readUntilClosed(t *testing.T, conn *websocket.Conn) error {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func sendFrame(t *testing.T, conn *websocket.Conn, frameType, content string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(clientFrame{Type: frameType, Content: content}))
}
