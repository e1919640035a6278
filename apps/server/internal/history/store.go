package history

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"nightcourt/apps/server/wire"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLService is the database/sql archive shared by the sqlite and postgres backends.
type SQLService struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func (s *SQLService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLService) bind(pos int) string {
	if s.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *SQLService) binds(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.bind(i + 1)
	}
	return strings.Join(ph, ", ")
}

// AppendEvent stores one frame. Replays of the same (game, seq) are ignored.
func (s *SQLService) AppendEvent(gameID string, env *wire.Envelope, encoded []byte) {
	if strings.TrimSpace(gameID) == "" || env == nil {
		return
	}
	if encoded == nil {
		raw, err := wire.Encode(env)
		if err != nil {
			log.Printf("[History] marshal event failed: game=%s err=%v", gameID, err)
			return
		}
		encoded = raw
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO game_event_stream (
    room_id, game_id, seq, event_type, envelope_b64, server_ts_ms, created_at_ms
)
VALUES (`+s.binds(7)+`)
ON CONFLICT (game_id, seq) DO NOTHING
`, env.RoomID, gameID, int64(env.Seq), env.Type, base64.StdEncoding.EncodeToString(encoded), nullableInt64(env.TsMs), s.now().UTC().UnixMilli())
	if err != nil {
		log.Printf("[History] append event failed: game=%s seq=%d err=%v", gameID, env.Seq, err)
	}
}

// RecordGame writes the verdict row. A second call for the same game overwrites it.
func (s *SQLService) RecordGame(rec GameRecord) {
	if strings.TrimSpace(rec.GameID) == "" {
		return
	}
	seats := rec.Seats
	if seats == nil {
		seats = []SeatRecord{}
	}
	seatsJSON, err := json.Marshal(seats)
	if err != nil {
		log.Printf("[History] marshal seats failed: game=%s err=%v", rec.GameID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO game_record (
    game_id, room_id, winner, reason, days, started_at_ms, ended_at_ms, seats_json
)
VALUES (`+s.binds(8)+`)
ON CONFLICT (game_id) DO UPDATE SET
    winner = excluded.winner,
    reason = excluded.reason,
    days = excluded.days,
    ended_at_ms = excluded.ended_at_ms,
    seats_json = excluded.seats_json
`, rec.GameID, rec.RoomID, rec.Winner, rec.Reason, rec.Days,
		rec.StartedAt.UTC().UnixMilli(), rec.EndedAt.UTC().UnixMilli(), string(seatsJSON))
	if err != nil {
		log.Printf("[History] record game failed: game=%s err=%v", rec.GameID, err)
	}
}

func (s *SQLService) ListRecent(ctx context.Context, limit int) ([]GameRecord, error) {
	limit = clampLimit(limit)
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT game_id, room_id, winner, reason, days, started_at_ms, ended_at_ms, seats_json
FROM game_record
ORDER BY ended_at_ms DESC, game_id DESC
LIMIT `+s.bind(1), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]GameRecord, 0, limit)
	for rows.Next() {
		var rec GameRecord
		var startedMs, endedMs int64
		var seatsRaw string
		if err := rows.Scan(&rec.GameID, &rec.RoomID, &rec.Winner, &rec.Reason, &rec.Days, &startedMs, &endedMs, &seatsRaw); err != nil {
			return nil, err
		}
		rec.StartedAt = time.UnixMilli(startedMs).UTC()
		rec.EndedAt = time.UnixMilli(endedMs).UTC()
		if seatsRaw != "" {
			_ = json.Unmarshal([]byte(seatsRaw), &rec.Seats)
		}
		if rec.Seats == nil {
			rec.Seats = []SeatRecord{}
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (s *SQLService) GetGameEvents(ctx context.Context, gameID string) ([]EventItem, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, ErrNotFound
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, event_type, envelope_b64, server_ts_ms
FROM game_event_stream
WHERE game_id = `+s.bind(1)+`
ORDER BY seq ASC
`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]EventItem, 0, 128)
	for rows.Next() {
		var e EventItem
		var seq int64
		var serverTs sql.NullInt64
		if err := rows.Scan(&seq, &e.EventType, &e.EnvelopeB64, &serverTs); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		if serverTs.Valid {
			e.ServerTsMs = serverTs.Int64
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

// GetGame loads one verdict row.
func (s *SQLService) GetGame(ctx context.Context, gameID string) (GameRecord, error) {
	var rec GameRecord
	var startedMs, endedMs int64
	var seatsRaw string
	if strings.TrimSpace(gameID) == "" {
		return rec, ErrNotFound
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.db.QueryRowContext(ctx, `
SELECT game_id, room_id, winner, reason, days, started_at_ms, ended_at_ms, seats_json
FROM game_record
WHERE game_id = `+s.bind(1), gameID).
		Scan(&rec.GameID, &rec.RoomID, &rec.Winner, &rec.Reason, &rec.Days, &startedMs, &endedMs, &seatsRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, ErrNotFound
		}
		return rec, err
	}
	rec.StartedAt = time.UnixMilli(startedMs).UTC()
	rec.EndedAt = time.UnixMilli(endedMs).UTC()
	_ = json.Unmarshal([]byte(seatsRaw), &rec.Seats)
	return rec, nil
}

func (s *SQLService) ensureSchema(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS game_event_stream (
    ` + idColumn + `,
    room_id TEXT NOT NULL,
    game_id TEXT NOT NULL,
    seq BIGINT NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL DEFAULT '',
    server_ts_ms BIGINT,
    created_at_ms BIGINT NOT NULL,
    UNIQUE (game_id, seq)
)`,
		`CREATE INDEX IF NOT EXISTS idx_game_event_stream_room ON game_event_stream(room_id, created_at_ms)`,
		`
CREATE TABLE IF NOT EXISTS game_record (
    game_id TEXT PRIMARY KEY,
    room_id TEXT NOT NULL,
    winner TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    days INTEGER NOT NULL,
    started_at_ms BIGINT NOT NULL,
    ended_at_ms BIGINT NOT NULL,
    seats_json TEXT NOT NULL DEFAULT '[]'
)`,
		`CREATE INDEX IF NOT EXISTS idx_game_record_ended ON game_record(ended_at_ms DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
