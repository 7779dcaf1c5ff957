// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// startTestServer runs the hub and an upgrading HTTP server, returning a
// dialer-ready ws:// URL.
func startTestServer(t *testing.T, h *Hub) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(h, conn)
		h.Register <- client
		client.Start()
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTestServer(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return env
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// connectAndAuth dials, consumes the connected ack, authenticates with
// the given token, and asserts the authenticated reply.
func connectAndAuth(t *testing.T, url, token, wantUserID string) *websocket.Conn {
	t.Helper()
	conn := dialTestServer(t, url)
	if env := readEnvelope(t, conn); env.Type != MessageTypeConnected {
		t.Fatalf("first message type = %q, want %q", env.Type, MessageTypeConnected)
	}
	writeJSON(t, conn, map[string]string{"type": "authenticate", "token": token})
	env := readEnvelope(t, conn)
	if env.Type != MessageTypeAuthenticated {
		t.Fatalf("auth reply type = %q, want %q", env.Type, MessageTypeAuthenticated)
	}
	if env.UserID != wantUserID {
		t.Fatalf("authenticated userId = %q, want %q", env.UserID, wantUserID)
	}
	return conn
}

func TestAuthenticateValidToken(t *testing.T) {
	h := newTestHub(map[string]string{"good-token": "u1"})
	url := startTestServer(t, h)

	connectAndAuth(t, url, "good-token", "u1")
	waitFor(t, func() bool { return h.UserConnectionCount("u1") == 1 })
}

func TestAuthenticateInvalidTokenClosesConnection(t *testing.T) {
	h := newTestHub(map[string]string{"good-token": "u1"})
	url := startTestServer(t, h)

	conn := dialTestServer(t, url)
	if env := readEnvelope(t, conn); env.Type != MessageTypeConnected {
		t.Fatalf("first message type = %q, want connected", env.Type)
	}

	writeJSON(t, conn, map[string]string{"type": "authenticate", "token": "garbage"})
	env := readEnvelope(t, conn)
	if env.Type != MessageTypeAuthError {
		t.Fatalf("reply type = %q, want %q", env.Type, MessageTypeAuthError)
	}

	// The transport must close next, with a policy violation.
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("connection should be closed after invalid token")
	}
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("close error = %v, want policy violation", err)
	}
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestAuthenticateMissingTokenIsRetryable(t *testing.T) {
	h := newTestHub(map[string]string{"good-token": "u1"})
	url := startTestServer(t, h)

	conn := dialTestServer(t, url)
	readEnvelope(t, conn) // connected

	writeJSON(t, conn, map[string]string{"type": "authenticate"})
	if env := readEnvelope(t, conn); env.Type != MessageTypeAuthError {
		t.Fatalf("reply type = %q, want %q", env.Type, MessageTypeAuthError)
	}

	// Same socket, second attempt with a real token.
	writeJSON(t, conn, map[string]string{"type": "authenticate", "token": "good-token"})
	env := readEnvelope(t, conn)
	if env.Type != MessageTypeAuthenticated || env.UserID != "u1" {
		t.Fatalf("retry reply = %+v, want authenticated u1", env)
	}
}

func TestReauthenticationIgnored(t *testing.T) {
	h := newTestHub(map[string]string{"token-1": "u1", "token-2": "u2"})
	url := startTestServer(t, h)

	conn := connectAndAuth(t, url, "token-1", "u1")

	// A second authenticate must not rebind identity and gets no reply;
	// a ping afterwards proves the session is alive and unchanged.
	writeJSON(t, conn, map[string]string{"type": "authenticate", "token": "token-2"})
	writeJSON(t, conn, map[string]string{"type": "ping"})
	if env := readEnvelope(t, conn); env.Type != MessageTypePong {
		t.Fatalf("reply type = %q, want pong (no reply to re-auth)", env.Type)
	}
	if n := h.UserConnectionCount("u1"); n != 1 {
		t.Errorf("u1 connections = %d, want 1", n)
	}
	if n := h.UserConnectionCount("u2"); n != 0 {
		t.Errorf("u2 connections = %d, want 0 (identity must not rebind)", n)
	}
}

func TestPingPong(t *testing.T) {
	h := newTestHub(nil)
	url := startTestServer(t, h)

	conn := dialTestServer(t, url)
	readEnvelope(t, conn) // connected

	writeJSON(t, conn, map[string]string{"type": "ping"})
	env := readEnvelope(t, conn)
	if env.Type != MessageTypePong {
		t.Fatalf("reply type = %q, want pong", env.Type)
	}
	if env.Timestamp == "" {
		t.Error("pong should carry a timestamp")
	}
}

func TestSubscribeAcknowledges(t *testing.T) {
	h := newTestHub(nil)
	url := startTestServer(t, h)

	conn := dialTestServer(t, url)
	readEnvelope(t, conn) // connected

	writeJSON(t, conn, map[string]string{"type": "subscribe", "topic": "forum"})
	env := readEnvelope(t, conn)
	if env.Type != MessageTypeSubscribed {
		t.Fatalf("reply type = %q, want subscribed", env.Type)
	}
	data, ok := env.Data.(map[string]interface{})
	if !ok || data["topic"] != "forum" {
		t.Errorf("data = %#v, want topic=forum", env.Data)
	}
}

func TestMalformedMessageKeepsConnectionAlive(t *testing.T) {
	h := newTestHub(nil)
	url := startTestServer(t, h)

	conn := dialTestServer(t, url)
	readEnvelope(t, conn) // connected

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != MessageTypeError {
		t.Fatalf("reply type = %q, want error", env.Type)
	}
	if env.Message != "Invalid message format" {
		t.Errorf("message = %q, want invalid-format notice", env.Message)
	}

	// Connection survives a protocol error.
	writeJSON(t, conn, map[string]string{"type": "ping"})
	if env := readEnvelope(t, conn); env.Type != MessageTypePong {
		t.Fatalf("reply type = %q, want pong after recovery", env.Type)
	}
}

func TestUnrecognizedTypeGetsNoReply(t *testing.T) {
	h := newTestHub(nil)
	url := startTestServer(t, h)

	conn := dialTestServer(t, url)
	readEnvelope(t, conn) // connected

	writeJSON(t, conn, map[string]string{"type": "mystery"})
	writeJSON(t, conn, map[string]string{"type": "ping"})
	// The next reply is the pong; the unknown type produced nothing.
	if env := readEnvelope(t, conn); env.Type != MessageTypePong {
		t.Fatalf("reply type = %q, want pong only", env.Type)
	}
}

// TestChatMessageEndToEnd binds a student and a counselor on live
// sockets and checks both, and only both, receive the chat envelope.
func TestChatMessageEndToEnd(t *testing.T) {
	h := newTestHub(map[string]string{
		"student-token":   "student1",
		"counselor-token": "counselor1",
		"other-token":     "bystander",
	})
	url := startTestServer(t, h)

	student := connectAndAuth(t, url, "student-token", "student1")
	counselor := connectAndAuth(t, url, "counselor-token", "counselor1")
	bystander := connectAndAuth(t, url, "other-token", "bystander")

	NewChatEvents(h).BroadcastChatMessage("student1", "counselor1", map[string]string{"text": "hi"})

	for name, conn := range map[string]*websocket.Conn{"student": student, "counselor": counselor} {
		env := readEnvelope(t, conn)
		if env.Type != MessageTypeChatMessage {
			t.Fatalf("%s got type %q, want chat_message", name, env.Type)
		}
		data, ok := env.Data.(map[string]interface{})
		if !ok || data["text"] != "hi" {
			t.Errorf("%s payload = %#v, want text=hi", name, env.Data)
		}
	}

	// The bystander must see nothing; a pong fencepost proves the quiet
	// socket is still being served.
	writeJSON(t, bystander, map[string]string{"type": "ping"})
	if env := readEnvelope(t, bystander); env.Type != MessageTypePong {
		t.Fatalf("bystander got %q, want only the pong", env.Type)
	}
}
