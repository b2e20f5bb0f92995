// Package server exposes the chat service over HTTP.
//
// Clients join a room either with a Server-Sent Events stream
// (GET /api/events) or a WebSocket (GET /ws) and post messages with
// POST /api/messages or, on a WebSocket, with send-message frames. The
// room directory and the token-protected admin API live under /api.
//
// The implementation is organized into files for configuration, origin
// checks, transports, routing, and HTTP handlers.
package server
