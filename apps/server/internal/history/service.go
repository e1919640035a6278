package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nightcourt/apps/server/wire"
)

const (
	ModeMemory   = "memory"
	ModeNoop     = "noop"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
	ModePGX      = "pgx"

	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

var ErrNotFound = errors.New("not found")

// Service archives finished and running games. Writes are fire-and-log so a
// slow database never stalls a room.
type Service interface {
	Close() error
	AppendEvent(gameID string, env *wire.Envelope, encoded []byte)
	RecordGame(rec GameRecord)
	ListRecent(ctx context.Context, limit int) ([]GameRecord, error)
	GetGame(ctx context.Context, gameID string) (GameRecord, error)
	GetGameEvents(ctx context.Context, gameID string) ([]EventItem, error)
}

type EventItem struct {
	Seq         uint64 `json:"seq"`
	EventType   string `json:"event_type"`
	EnvelopeB64 string `json:"envelope_b64"`
	ServerTsMs  int64  `json:"server_ts_ms,omitempty"`
}

// GameRecord is the row written once a game reaches a verdict.
type GameRecord struct {
	GameID    string       `json:"game_id"`
	RoomID    string       `json:"room_id"`
	Winner    string       `json:"winner"`
	Reason    string       `json:"reason"`
	Days      int          `json:"days"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
	Seats     []SeatRecord `json:"seats"`
}

type SeatRecord struct {
	Seat   uint8  `json:"seat"`
	UserID uint64 `json:"user_id"`
	Role   string `json:"role"`
	Alive  bool   `json:"alive"`
}

// Options selects the backend. DSN is only read for the postgres modes.
type Options struct {
	Mode       string
	SQLitePath string
	DSN        string
}

// noopService discards everything; ModeNoop turns the archive off.
type noopService struct{}

func (noopService) Close() error { return nil }
func (noopService) AppendEvent(_ string, _ *wire.Envelope, _ []byte) {}
func (noopService) RecordGame(_ GameRecord) {}

func (noopService) ListRecent(_ context.Context, _ int) ([]GameRecord, error) {
	return []GameRecord{}, nil
}

func (noopService) GetGame(_ context.Context, _ string) (GameRecord, error) {
	return GameRecord{}, ErrNotFound
}

func (noopService) GetGameEvents(_ context.Context, _ string) ([]EventItem, error) {
	return nil, ErrNotFound
}

// NewService opens the backend named by opts.Mode and reports the mode it settled on.
func NewService(opts Options) (Service, string, error) {
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	switch mode {
	case "", ModeMemory, "mem":
		return NewMemoryService(), ModeMemory, nil
	case ModeNoop, "off":
		return noopService{}, ModeNoop, nil
	case ModeSQLite, "local":
		s, err := NewSQLiteService(opts.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return s, ModeSQLite, nil
	case ModePostgres, "postgresql":
		s, err := NewPostgresService(driverPQ, opts.DSN)
		if err != nil {
			return nil, "", err
		}
		return s, ModePostgres, nil
	case ModePGX:
		s, err := NewPostgresService(driverPGX, opts.DSN)
		if err != nil {
			return nil, "", err
		}
		return s, ModePGX, nil
	default:
		return nil, "", fmt.Errorf("invalid history mode %q (supported: %s, %s, %s, %s, %s)", mode, ModeMemory, ModeNoop, ModeSQLite, ModePostgres, ModePGX)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
