package lobby

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nightcourt/apps/server/internal/room"
	"nightcourt/game"
)

func newTestLobby(t *testing.T, cfg Config) *Lobby {
	t.Helper()
	l := New(cfg, nil)
	t.Cleanup(l.Close)
	return l
}

func TestCreateAndListRooms(t *testing.T) {
	l := newTestLobby(t, Config{})

	a, err := l.CreateRoom("  Friday  ", "", nil)
	if err != nil {
		t.Fatalf("create public room: %v", err)
	}
	b, err := l.CreateRoom("", "hunter2", nil)
	if err != nil {
		t.Fatalf("create private room: %v", err)
	}
	if a.Name != "Friday" || b.Name != b.ID {
		t.Fatalf("unexpected names %q and %q", a.Name, b.Name)
	}
	if len(a.ID) != 6 {
		t.Fatalf("expected a six character room code, got %q", a.ID)
	}

	infos := l.ListRooms()
	if len(infos) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(infos))
	}
	if infos[0].ID > infos[1].ID {
		t.Fatalf("rooms should be listed by id")
	}
	private := 0
	for _, info := range infos {
		if info.Private {
			private++
		}
	}
	if private != 1 {
		t.Fatalf("expected one private room, got %d", private)
	}
}

func TestJoinRoomChecksPassword(t *testing.T) {
	l := newTestLobby(t, Config{})
	r, err := l.CreateRoom("secret", "hunter2", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := l.JoinRoom(r.ID, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if got, err := l.JoinRoom(r.ID, "hunter2"); err != nil || got != r {
		t.Fatalf("expected the room back, got %v %v", got, err)
	}
	if _, err := l.JoinRoom("NOPE", ""); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestQuickStartFillsThenCreates(t *testing.T) {
	l := newTestLobby(t, Config{})
	if _, err := l.CreateRoom("private", "pw", nil); err != nil {
		t.Fatal(err)
	}

	first, err := l.QuickStart(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Info().Private {
		t.Fatalf("quick start must skip private rooms")
	}
	for i := uint64(1); i <= game.SeatCount; i++ {
		if err := first.SubmitEvent(room.Event{Type: room.EventJoin, UserID: i}); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	again, err := l.QuickStart(10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again == first {
		t.Fatalf("a full room must not be offered")
	}
	if len(l.ListRooms()) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(l.ListRooms()))
	}
}

func TestMaxRooms(t *testing.T) {
	l := newTestLobby(t, Config{MaxRooms: 1})
	if _, err := l.CreateRoom("", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CreateRoom("", "", nil); !errors.Is(err, ErrTooManyRooms) {
		t.Fatalf("expected ErrTooManyRooms, got %v", err)
	}
}

func TestReapIdle(t *testing.T) {
	l := newTestLobby(t, Config{IdleTTL: time.Millisecond})
	idle, err := l.CreateRoom("", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	busy, err := l.CreateRoom("", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := busy.SubmitEvent(room.Event{Type: room.EventJoin, UserID: 1}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if n := l.ReapIdle(); n != 1 {
		t.Fatalf("expected one reaped room, got %d", n)
	}
	if l.GetRoom(idle.ID) != nil || !idle.IsClosed() {
		t.Fatalf("idle room should be gone")
	}
	if l.GetRoom(busy.ID) == nil {
		t.Fatalf("room with an online member must survive")
	}
}

func TestHTTPListAndQR(t *testing.T) {
	l := newTestLobby(t, Config{})
	r, err := l.CreateRoom("qr", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewHTTPHandler(l, "https://night.example/").RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var list struct {
		Rooms []room.Info `json:"rooms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Rooms) != 1 || list.Rooms[0].ID != r.ID {
		t.Fatalf("unexpected list %+v", list.Rooms)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/"+r.ID+"/qr.png", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr status %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("qr body is not a png")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/NOPE/qr.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", rec.Code)
	}
}

func TestJoinURL(t *testing.T) {
	h := NewHTTPHandler(nil, "")
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/AB12CD/qr.png", nil)
	req.Host = "play.local:8080"
	if got := h.joinURL(req, "AB12CD"); got != "http://play.local:8080/?room=AB12CD" {
		t.Fatalf("unexpected join url %q", got)
	}
	h = NewHTTPHandler(nil, "https://night.example/")
	if got := h.joinURL(req, "AB12CD"); got != "https://night.example/?room=AB12CD" {
		t.Fatalf("unexpected join url %q", got)
	}
}
