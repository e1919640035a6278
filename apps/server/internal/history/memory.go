package history

import (
	"context"
	"encoding/base64"
	"log"
	"sort"
	"strings"
	"sync"

	"nightcourt/apps/server/wire"
)

// MemoryService keeps the archive in process. It follows the SQL backends:
// (game, seq) is unique and a second verdict for a game replaces the first.
type MemoryService struct {
	mu      sync.RWMutex
	events  map[string]map[uint64]EventItem
	records map[string]GameRecord
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		events:  make(map[string]map[uint64]EventItem),
		records: make(map[string]GameRecord),
	}
}

func (s *MemoryService) Close() error { return nil }

func (s *MemoryService) AppendEvent(gameID string, env *wire.Envelope, encoded []byte) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	byseq := s.events[gameID]
	if byseq == nil {
		byseq = make(map[uint64]EventItem)
		s.events[gameID] = byseq
	}
	if _, dup := byseq[env.Seq]; dup {
		return
	}
	byseq[env.Seq] = EventItem{
		Seq:         env.Seq,
		EventType:   env.Type,
		EnvelopeB64: base64.StdEncoding.EncodeToString(encoded),
		ServerTsMs:  env.TsMs,
	}
}

func (s *MemoryService) RecordGame(rec GameRecord) {
	if strings.TrimSpace(rec.GameID) == "" {
		return
	}
	rec.Seats = append([]SeatRecord{}, rec.Seats...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.records[rec.GameID]; ok {
		// started_at and room stay with the first write, as in the SQL upsert
		rec.RoomID, rec.StartedAt = prev.RoomID, prev.StartedAt
	}
	s.records[rec.GameID] = rec
}

func (s *MemoryService) ListRecent(_ context.Context, limit int) ([]GameRecord, error) {
	limit = clampLimit(limit)
	s.mu.RLock()
	items := make([]GameRecord, 0, len(s.records))
	for _, rec := range s.records {
		items = append(items, rec)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].GameID > items[j].GameID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	for i := range items {
		items[i].Seats = append([]SeatRecord{}, items[i].Seats...)
	}
	return items, nil
}

func (s *MemoryService) GetGame(_ context.Context, gameID string) (GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[gameID]
	if !ok {
		return GameRecord{}, ErrNotFound
	}
	rec.Seats = append([]SeatRecord{}, rec.Seats...)
	return rec, nil
}

func (s *MemoryService) GetGameEvents(_ context.Context, gameID string) ([]EventItem, error) {
	s.mu.RLock()
	byseq := s.events[gameID]
	events := make([]EventItem, 0, len(byseq))
	for _, e := range byseq {
		events = append(events, e)
	}
	s.mu.RUnlock()

	if len(events) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, nil
}
