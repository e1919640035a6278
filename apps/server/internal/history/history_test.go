package history

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"nightcourt/apps/server/wire"
)

func newTestSQLite(t *testing.T) *SQLService {
	t.Helper()
	s, err := NewSQLiteService(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteEventsAreOrderedAndDeduplicated(t *testing.T) {
	s := newTestSQLite(t)

	for _, seq := range []uint64{3, 1, 2, 2} {
		env := wire.NewEnvelope("room-a", seq, 1000+int64(seq), wire.TypeVoteCast, map[string]any{"voter": 1, "target": 2})
		s.AppendEvent("game-1", env, nil)
	}
	s.AppendEvent("game-2", wire.NewEnvelope("room-a", 1, 5, wire.TypeSnapshot, nil), nil)

	events, err := s.GetGameEvents(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, e.Seq)
		}
		if e.EventType != wire.TypeVoteCast || e.ServerTsMs != 1000+int64(e.Seq) {
			t.Fatalf("unexpected event %+v", e)
		}
	}
}

func TestSQLiteMissingGame(t *testing.T) {
	s := newTestSQLite(t)
	if _, err := s.GetGameEvents(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetGame(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRecordGameAndListRecent(t *testing.T) {
	s := newTestSQLite(t)
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	s.RecordGame(GameRecord{GameID: "g-old", RoomID: "r1", Winner: "good", Days: 2, StartedAt: base, EndedAt: base.Add(time.Hour)})
	s.RecordGame(GameRecord{
		GameID: "g-new", RoomID: "r1", Winner: "bad", Reason: "good_eliminated", Days: 4,
		StartedAt: base, EndedAt: base.Add(2 * time.Hour),
		Seats: []SeatRecord{{Seat: 1, UserID: 7, Role: "killer", Alive: true}},
	})
	// second write for the same game replaces the verdict
	s.RecordGame(GameRecord{GameID: "g-old", RoomID: "r1", Winner: "draw", Days: 3, StartedAt: base, EndedAt: base.Add(30 * time.Minute)})

	items, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 records, got %d", len(items))
	}
	if items[0].GameID != "g-new" || items[1].GameID != "g-old" {
		t.Fatalf("unexpected order: %s, %s", items[0].GameID, items[1].GameID)
	}
	if items[1].Winner != "draw" || items[1].Days != 3 {
		t.Fatalf("expected overwritten verdict, got %+v", items[1])
	}
	if len(items[0].Seats) != 1 || items[0].Seats[0].Role != "killer" {
		t.Fatalf("seats not round-tripped: %+v", items[0].Seats)
	}
	if !items[0].EndedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("ended_at mismatch: %v", items[0].EndedAt)
	}

	rec, err := s.GetGame(context.Background(), "g-new")
	if err != nil || rec.Reason != "good_eliminated" {
		t.Fatalf("get game: %+v %v", rec, err)
	}
}

func TestNewServiceModes(t *testing.T) {
	svc, mode, err := NewService(Options{Mode: ""})
	if err != nil || mode != ModeMemory {
		t.Fatalf("default mode: %q %v", mode, err)
	}
	if _, ok := svc.(*MemoryService); !ok {
		t.Fatalf("memory mode should keep records, got %T", svc)
	}

	svc, mode, err = NewService(Options{Mode: "noop"})
	if err != nil || mode != ModeNoop {
		t.Fatalf("noop mode: %q %v", mode, err)
	}
	svc.RecordGame(GameRecord{GameID: "x"})
	if _, err := svc.GetGame(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("noop should report ErrNotFound, got %v", err)
	}

	if _, _, err := NewService(Options{Mode: "cassandra"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if _, _, err := NewService(Options{Mode: ModePGX}); err == nil {
		t.Fatalf("expected error for pgx without dsn")
	}

	svc, mode, err = NewService(Options{Mode: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x", "h.db")})
	if err != nil || mode != ModeSQLite {
		t.Fatalf("sqlite mode: %q %v", mode, err)
	}
	_ = svc.Close()
}

func TestMemoryServiceKeepsGames(t *testing.T) {
	s := NewMemoryService()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	for _, seq := range []uint64{2, 1, 2} {
		s.AppendEvent("g1", wire.NewEnvelope("r1", seq, 100+int64(seq), wire.TypeVoteCast, map[string]any{"voter": 1}), nil)
	}
	events, err := s.GetGameEvents(ctx, "g1")
	if err != nil || len(events) != 2 || events[0].Seq != 1 || events[1].ServerTsMs != 102 {
		t.Fatalf("unexpected events %+v %v", events, err)
	}
	if _, err := wire.Decode(mustB64(t, events[0].EnvelopeB64)); err != nil {
		t.Fatalf("stored envelope does not decode: %v", err)
	}

	s.RecordGame(GameRecord{GameID: "g1", RoomID: "r1", Winner: "good", StartedAt: base, EndedAt: base.Add(time.Hour)})
	s.RecordGame(GameRecord{GameID: "g2", RoomID: "r2", Winner: "bad", StartedAt: base, EndedAt: base.Add(2 * time.Hour),
		Seats: []SeatRecord{{Seat: 1, UserID: 7, Role: "killer"}}})
	s.RecordGame(GameRecord{GameID: "g1", RoomID: "other", Winner: "draw", StartedAt: base.Add(time.Minute), EndedAt: base.Add(30 * time.Minute)})

	items, err := s.ListRecent(ctx, 10)
	if err != nil || len(items) != 2 {
		t.Fatalf("list recent: %+v %v", items, err)
	}
	if items[0].GameID != "g2" || items[1].Winner != "draw" || items[1].RoomID != "r1" || !items[1].StartedAt.Equal(base) {
		t.Fatalf("unexpected records %+v", items)
	}
	items[0].Seats[0].Role = "mutated"
	if rec, _ := s.GetGame(ctx, "g2"); rec.Seats[0].Role != "killer" {
		t.Fatalf("callers must not share seat slices with the store")
	}
	if only, _ := s.ListRecent(ctx, 1); len(only) != 1 {
		t.Fatalf("limit ignored: %d", len(only))
	}
	if _, err := s.GetGame(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func mustB64(t *testing.T, s string) []byte {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

type staticResolver map[string]uint64

func (r staticResolver) ResolveSession(token string) (uint64, string, bool) {
	id, ok := r[token]
	return id, "", ok
}

func TestHTTPHandler(t *testing.T) {
	s := newTestSQLite(t)
	s.AppendEvent("g1", wire.NewEnvelope("r1", 1, 10, wire.TypeSnapshot, nil), nil)
	s.RecordGame(GameRecord{GameID: "g1", RoomID: "r1", Winner: "good", Days: 1, StartedAt: time.Unix(1, 0), EndedAt: time.Unix(2, 0)})

	mux := http.NewServeMux()
	NewHTTPHandler(staticResolver{"tok": 100001}, s).RegisterRoutes(mux)

	do := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("/api/history/recent", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec := do("/api/history/recent?limit=5", "tok")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var recent struct {
		Items []GameRecord `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &recent); err != nil || len(recent.Items) != 1 {
		t.Fatalf("decode recent: %v %+v", err, recent)
	}

	rec = do("/api/history/games/g1", "tok")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var game struct {
		Events []EventItem `json:"events"`
		Game   *GameRecord `json:"game"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &game); err != nil {
		t.Fatal(err)
	}
	if len(game.Events) != 1 || game.Game == nil || game.Game.Winner != "good" {
		t.Fatalf("unexpected game response %s", rec.Body.String())
	}

	if rec := do("/api/history/games/missing", "tok"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int{"": 20, "abc": 20, "-3": 20, "7": 7, "1000": 100}
	for raw, want := range cases {
		if got := parseLimit(raw); got != want {
			t.Fatalf("parseLimit(%q) = %d, want %d", raw, got, want)
		}
	}
}
