package lobby

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"nightcourt/apps/server/internal/history"
	"nightcourt/apps/server/internal/room"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrTooManyRooms  = errors.New("room limit reached")
	ErrWrongPassword = errors.New("wrong room password")
)

const reapInterval = time.Minute

// Config is the template every new room starts from.
type Config struct {
	Room     room.Config
	IdleTTL  time.Duration
	MaxRooms int
}

type entry struct {
	room         *room.Room
	passwordHash []byte
}

// Lobby manages all rooms.
type Lobby struct {
	mu    sync.RWMutex
	rooms map[string]*entry
	cfg   Config

	history history.Service
}

func New(cfg Config, historyService history.Service) *Lobby {
	if cfg.MaxRooms <= 0 {
		cfg.MaxRooms = 200
	}
	return &Lobby{
		rooms:   make(map[string]*entry),
		cfg:     cfg,
		history: historyService,
	}
}

// CreateRoom opens a new room. A non-empty password makes it private.
func (l *Lobby) CreateRoom(name, password string, broadcastFn func(userID uint64, data []byte)) (*room.Room, error) {
	var hash []byte
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		hash = h
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createLocked(name, hash, broadcastFn)
}

func (l *Lobby) createLocked(name string, passwordHash []byte, broadcastFn func(userID uint64, data []byte)) (*room.Room, error) {
	if len(l.rooms) >= l.cfg.MaxRooms {
		return nil, ErrTooManyRooms
	}
	id := l.newRoomIDLocked()
	cfg := l.cfg.Room
	cfg.Private = passwordHash != nil
	r, err := room.New(id, strings.TrimSpace(name), cfg, broadcastFn, l.history)
	if err != nil {
		return nil, err
	}
	l.rooms[id] = &entry{room: r, passwordHash: passwordHash}
	log.Printf("[Lobby] Room %s created (private=%v, rooms=%d)", id, cfg.Private, len(l.rooms))
	return r, nil
}

// JoinRoom looks up a room and checks its password. The caller still has to
// submit the join event.
func (l *Lobby) JoinRoom(roomID, password string) (*room.Room, error) {
	l.mu.RLock()
	e := l.rooms[roomID]
	l.mu.RUnlock()
	if e == nil || e.room.IsClosed() {
		return nil, ErrRoomNotFound
	}
	if e.passwordHash != nil && bcrypt.CompareHashAndPassword(e.passwordHash, []byte(password)) != nil {
		return nil, ErrWrongPassword
	}
	return e.room, nil
}

// QuickStart finds a public room with a free seat or creates one.
func (l *Lobby) QuickStart(userID uint64, broadcastFn func(userID uint64, data []byte)) (*room.Room, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.sortedIDsLocked() {
		e := l.rooms[id]
		if e.passwordHash != nil || !e.room.HasFreeSeat() {
			continue
		}
		log.Printf("[Lobby] QuickStart: user %d joining existing room %s", userID, id)
		return e.room, nil
	}

	r, err := l.createLocked("", nil, broadcastFn)
	if err != nil {
		return nil, err
	}
	log.Printf("[Lobby] QuickStart: user %d created new room %s", userID, r.ID)
	return r, nil
}

// GetRoom returns a room by ID, or nil.
func (l *Lobby) GetRoom(roomID string) *room.Room {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e := l.rooms[roomID]; e != nil {
		return e.room
	}
	return nil
}

// ListRooms returns every open room ordered by id.
func (l *Lobby) ListRooms() []room.Info {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]room.Info, 0, len(l.rooms))
	for _, id := range l.sortedIDsLocked() {
		e := l.rooms[id]
		if e.room.IsClosed() {
			continue
		}
		out = append(out, e.room.Info())
	}
	return out
}

// ReapIdle stops and removes rooms nobody has been online in for IdleTTL.
func (l *Lobby) ReapIdle() int {
	if l.cfg.IdleTTL <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	reaped := 0
	for id, e := range l.rooms {
		if !e.room.IsIdleFor(l.cfg.IdleTTL) {
			continue
		}
		e.room.Stop()
		delete(l.rooms, id)
		reaped++
		log.Printf("[Lobby] Room %s reaped after %s idle", id, l.cfg.IdleTTL)
	}
	return reaped
}

// Run reaps idle rooms until ctx is done.
func (l *Lobby) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.ReapIdle()
		}
	}
}

// Close stops every room.
func (l *Lobby) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.rooms {
		e.room.Stop()
		delete(l.rooms, id)
	}
}

func (l *Lobby) sortedIDsLocked() []string {
	ids := make([]string, 0, len(l.rooms))
	for id := range l.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// newRoomIDLocked returns a short upper-case code that is easy to read aloud.
func (l *Lobby) newRoomIDLocked() string {
	for {
		id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		if _, taken := l.rooms[id]; !taken {
			return id
		}
	}
}
