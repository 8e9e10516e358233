package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/hub"
	"chatrelay/internal/moderation"
	"chatrelay/internal/store"
	"chatrelay/pkg/types"
)

func startTestServer(t *testing.T, allowedOrigin string) (*hub.Hub, string) {
	t.Helper()

	st := store.NewMessageStore(store.DefaultCapacity)
	h := hub.New(st, moderation.NewBanList(), moderation.NewRateLimiter(100, 10*time.Second), hub.Options{AnnounceLeave: true})
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}
	t.Cleanup(func() { h.Stop() })

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewHandler(h, allowedOrigin).HandleWebSocket)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return h, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) types.Event {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline failed: %v", err)
	}
	var ev types.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return ev
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestHandler_HistoryOnConnect(t *testing.T) {
	_, wsURL := startTestServer(t, "")
	conn := dial(t, wsURL)

	ev := readEvent(t, conn)
	if ev.Type != types.EventHistory {
		t.Fatalf("first event should be history, got %q", ev.Type)
	}
	if len(ev.Messages) != 0 {
		t.Errorf("fresh server should have empty history, got %d messages", len(ev.Messages))
	}
}

func TestHandler_JoinAndBroadcast(t *testing.T) {
	_, wsURL := startTestServer(t, "")

	alice := dial(t, wsURL)
	readEvent(t, alice) // history

	bob := dial(t, wsURL)
	readEvent(t, bob) // history

	sendJSON(t, alice, types.Inbound{Type: "join", User: "alice"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		if ev.Type != types.EventMessage || ev.Message == nil {
			t.Fatalf("expected join broadcast, got %+v", ev)
		}
		if !ev.Message.System || !strings.Contains(ev.Message.Text, "alice joined") {
			t.Errorf("unexpected join announcement: %+v", ev.Message)
		}
	}

	sendJSON(t, alice, types.Inbound{Type: "message", Text: "hello everyone"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		if ev.Type != types.EventMessage || ev.Message == nil {
			t.Fatalf("expected chat broadcast, got %+v", ev)
		}
		if ev.Message.User != "alice" || ev.Message.Text != "hello everyone" {
			t.Errorf("unexpected broadcast: %+v", ev.Message)
		}
	}
}

func TestHandler_TypingGoesToOthersOnly(t *testing.T) {
	_, wsURL := startTestServer(t, "")

	alice := dial(t, wsURL)
	readEvent(t, alice)
	sendJSON(t, alice, types.Inbound{Type: "join", User: "alice"})
	readEvent(t, alice) // own join announcement

	bob := dial(t, wsURL)
	readEvent(t, bob) // history (includes alice's join)

	sendJSON(t, alice, types.Inbound{Type: "typing", Typing: true})

	ev := readEvent(t, bob)
	if ev.Type != types.EventTyping || ev.User != "alice" || ev.Typing == nil || !*ev.Typing {
		t.Fatalf("expected typing event at bob, got %+v", ev)
	}

	// Alice must not see her own indicator; the next frame she receives
	// should be bob's subsequent join, not a typing event.
	sendJSON(t, bob, types.Inbound{Type: "join", User: "bob"})
	got := readEvent(t, alice)
	if got.Type == types.EventTyping {
		t.Error("typing indicator echoed back to sender")
	}
}

func TestHandler_MalformedJSONIgnored(t *testing.T) {
	_, wsURL := startTestServer(t, "")
	conn := dial(t, wsURL)
	readEvent(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// Connection survives; a valid join still works
	sendJSON(t, conn, types.Inbound{Type: "join", User: "alice"})
	ev := readEvent(t, conn)
	if ev.Type != types.EventMessage || !strings.Contains(ev.Message.Text, "alice joined") {
		t.Errorf("connection should survive malformed input, got %+v", ev)
	}
}

func TestHandler_UnknownEventTypeIgnored(t *testing.T) {
	_, wsURL := startTestServer(t, "")
	conn := dial(t, wsURL)
	readEvent(t, conn)

	sendJSON(t, conn, map[string]any{"type": "evil", "payload": 42})
	sendJSON(t, conn, types.Inbound{Type: "join", User: "alice"})

	ev := readEvent(t, conn)
	if ev.Type != types.EventMessage || !strings.Contains(ev.Message.Text, "alice joined") {
		t.Errorf("unknown event should be skipped, got %+v", ev)
	}
}

func TestHandler_OriginRestriction(t *testing.T) {
	_, wsURL := startTestServer(t, "https://chat.example.com")

	// Mismatched browser origin is refused at handshake
	dialer := websocket.Dialer{}
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if conn, _, err := dialer.Dial(wsURL, header); err == nil {
		conn.Close()
		t.Fatal("expected handshake rejection for foreign origin")
	}

	// The configured origin is accepted
	header = http.Header{"Origin": []string{"https://chat.example.com"}}
	conn, _, err := dialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("expected handshake success for allowed origin: %v", err)
	}
	conn.Close()

	// Non-browser clients without an Origin header are accepted
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("expected handshake success without origin: %v", err)
	}
	conn2.Close()
}

func TestHandler_DisconnectAnnounced(t *testing.T) {
	h, wsURL := startTestServer(t, "")

	alice := dial(t, wsURL)
	readEvent(t, alice)
	sendJSON(t, alice, types.Inbound{Type: "join", User: "alice"})
	readEvent(t, alice)

	bob := dial(t, wsURL)
	readEvent(t, bob)

	alice.Close()

	ev := readEvent(t, bob)
	if ev.Type != types.EventMessage || !strings.Contains(ev.Message.Text, "alice left") {
		t.Errorf("expected leave announcement, got %+v", ev)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Stats().Connections == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Errorf("expected 1 live connection after disconnect, got %d", h.Stats().Connections)
}
