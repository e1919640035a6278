package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"nightcourt/apps/server/internal/lobby"
	"nightcourt/apps/server/wire"
)

type staticSessions map[string]uint64

func (s staticSessions) ResolveSession(token string) (uint64, string, bool) {
	id, ok := s[token]
	return id, "player", ok
}

func newTestServer(t *testing.T) (*httptest.Server, *lobby.Lobby) {
	t.Helper()
	lby := lobby.New(lobby.Config{}, nil)
	gw := New(lby, staticSessions{"tok-1": 1, "tok-2": 2}, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		lby.Close()
	})
	return srv, lby
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, msg *wire.ClientMessage) {
	t.Helper()
	data, err := wire.EncodeClient(msg, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil returns the first frame of type typ, failing after two seconds.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) *wire.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		var env *wire.Envelope
		if messageType == websocket.TextMessage {
			env, err = wire.DecodeJSON(data)
		} else {
			env, err = wire.Decode(data)
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Type == typ {
			return env
		}
	}
}

func TestRejectsUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestQuickStartOverTextFrames(t *testing.T) {
	srv, lby := newTestServer(t)
	conn := dial(t, srv, "tok-1")

	sendText(t, conn, &wire.ClientMessage{Type: wire.ClientQuickStart})
	snap := readUntil(t, conn, wire.TypeSnapshot)
	if snap.RoomID == "" {
		t.Fatalf("snapshot missing room id")
	}
	if lby.GetRoom(snap.RoomID) == nil {
		t.Fatalf("room %s not registered in the lobby", snap.RoomID)
	}
	info, _ := snap.Payload["room"].(map[string]any)
	if info["host_user_id"] != float64(1) {
		t.Fatalf("expected user 1 as host, got %v", info["host_user_id"])
	}

	// the second player lands in the same public room
	other := dial(t, srv, "tok-2")
	sendText(t, other, &wire.ClientMessage{Type: wire.ClientQuickStart})
	if got := readUntil(t, other, wire.TypeSnapshot); got.RoomID != snap.RoomID {
		t.Fatalf("expected room %s, got %s", snap.RoomID, got.RoomID)
	}

	// dealing with two seats is a capacity error
	sendText(t, conn, &wire.ClientMessage{Type: wire.ClientDeal})
	errFrame := readUntil(t, conn, wire.TypeError)
	if errFrame.Payload["kind"] != "capacity" {
		t.Fatalf("expected a capacity error, got %v", errFrame.Payload)
	}
}

func TestBinaryFramesAndErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "tok-1")

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xff, 0x01}); err != nil {
		t.Fatal(err)
	}
	errFrame := readUntil(t, conn, wire.TypeError)
	if errFrame.Payload["code"] != float64(codeMalformed) {
		t.Fatalf("expected malformed error, got %v", errFrame.Payload)
	}

	data, err := wire.EncodeClient(&wire.ClientMessage{Type: wire.ClientDeal}, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatal(err)
	}
	errFrame = readUntil(t, conn, wire.TypeError)
	if errFrame.Payload["code"] != float64(codeNoRoom) {
		t.Fatalf("expected not-in-room error, got %v", errFrame.Payload)
	}
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		origin, host string
		allowed      []string
		want         bool
	}{
		{"", "a.test", []string{"https://b.test"}, true},
		{"https://x.test", "a.test", nil, true},
		{"https://a.test", "a.test", []string{"https://b.test"}, true},
		{"https://b.test", "a.test", []string{"https://b.test/"}, true},
		{"https://c.test", "a.test", []string{"https://b.test"}, false},
		{"https://c.test", "a.test", []string{"*"}, true},
	}
	for _, tc := range cases {
		if got := originAllowed(tc.origin, tc.host, tc.allowed); got != tc.want {
			t.Fatalf("originAllowed(%q, %q, %v) = %v, want %v", tc.origin, tc.host, tc.allowed, got, tc.want)
		}
	}
}
