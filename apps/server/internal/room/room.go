package room

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nightcourt/apps/server/internal/history"
	"nightcourt/game"
)

// Room is one table of nine seats driven by a single actor goroutine.
// Every state change arrives as an Event; the ticker drives deadlines.
type Room struct {
	ID   string
	Name string

	cfg Config

	mu       sync.RWMutex
	game     *game.Game
	members  map[uint64]*Member
	hostID   uint64
	closed   bool
	stopOnce sync.Once

	events chan Event
	done   chan struct{}

	seq uint64

	// last phase and day announced to clients
	phase game.Phase
	day   int

	// deadline for the current night, speaker or vote; zero when untimed
	deadline   time.Time
	emptySince time.Time

	broadcast func(userID uint64, data []byte)
	history   history.Service
	gameID    string
	startedAt time.Time

	now   func() time.Time
	spawn func(fn func())
}

// Config holds per-room rules and timers. Zero durations disable the timer.
type Config struct {
	Rules          game.Config
	NightDeadline  time.Duration
	SpeechDeadline time.Duration
	VoteDeadline   time.Duration
	Private        bool
}

// Member is anyone who joined the room, seated or watching.
type Member struct {
	UserID   uint64
	Name     string
	Seat     game.Seat
	Online   bool
	LastSeen time.Time
}

type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventSitDown
	EventStandUp
	EventDeal
	EventNightAction
	EventResolveNight
	EventNextSpeaker
	EventOpenVote
	EventDayVote
	EventResolveDay
	EventReset
	EventConnLost
	EventConnResume
	EventClose
)

var eventNames = map[EventType]string{
	EventJoin:         "join",
	EventLeave:        "leave",
	EventSitDown:      "sitDown",
	EventStandUp:      "standUp",
	EventDeal:         "deal",
	EventNightAction:  "nightAction",
	EventResolveNight: "resolveNight",
	EventNextSpeaker:  "nextSpeaker",
	EventOpenVote:     "openVote",
	EventDayVote:      "dayVote",
	EventResolveDay:   "resolveDay",
	EventReset:        "reset",
	EventConnLost:     "connLost",
	EventConnResume:   "connResume",
	EventClose:        "close",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is a message to the room actor. Seat is the requested seat for
// SitDown; Target and Secondary carry night action and vote targets.
type Event struct {
	Type      EventType
	UserID    uint64
	Name      string
	Seat      game.Seat
	Role      game.Role
	Target    game.Seat
	Secondary game.Seat
	Timestamp time.Time
	Response  chan error
}

var (
	ErrRoomClosed = errors.New("room closed")
	ErrNotHost    = errors.New("only the host can do that")
	ErrNotMember  = errors.New("not in this room")
	ErrNotSeated  = errors.New("not seated")
)

const offlineSeatTTL = 30 * time.Second

// New creates a room and starts its actor.
func New(id, name string, cfg Config, broadcastFn func(userID uint64, data []byte), historyService history.Service) (*Room, error) {
	r, err := newRoom(id, name, cfg, broadcastFn, historyService)
	if err != nil {
		return nil, err
	}
	go r.run()
	log.Printf("[Room %s] Created (name=%q private=%v)", id, name, cfg.Private)
	return r, nil
}

func newRoom(id, name string, cfg Config, broadcastFn func(userID uint64, data []byte), historyService history.Service) (*Room, error) {
	g, err := game.NewGame(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", id, err)
	}
	if broadcastFn == nil {
		broadcastFn = func(uint64, []byte) {}
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	return &Room{
		ID:         id,
		Name:       name,
		cfg:        cfg,
		game:       g,
		members:    make(map[uint64]*Member),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		broadcast:  broadcastFn,
		history:    historyService,
		emptySince: time.Now(),
		now:        time.Now,
		spawn:      func(fn func()) { go fn() },
	}, nil
}

func (r *Room) run() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event := <-r.events:
			err := r.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			r.tick()
		case <-r.done:
			log.Printf("[Room %s] Actor stopped", r.ID)
			return
		}
	}
}

func (r *Room) handleEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.Type != EventClose {
		return ErrRoomClosed
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}

	switch e.Type {
	case EventJoin:
		return r.handleJoin(e.UserID, e.Name, e.Timestamp)
	case EventLeave:
		return r.handleLeave(e.UserID, e.Timestamp)
	case EventSitDown:
		return r.handleSitDown(e.UserID, e.Seat, e.Timestamp)
	case EventStandUp:
		return r.handleStandUp(e.UserID, e.Timestamp)
	case EventDeal:
		return r.handleDeal(e.UserID, e.Timestamp)
	case EventNightAction:
		return r.handleNightAction(e.UserID, e.Role, e.Target, e.Secondary, e.Timestamp)
	case EventResolveNight:
		return r.hostOnly(e.UserID, func() error { return r.resolveNightLocked(e.Timestamp) })
	case EventNextSpeaker:
		return r.handleNextSpeaker(e.UserID, e.Timestamp)
	case EventOpenVote:
		return r.hostOnly(e.UserID, func() error { return r.openVoteLocked(e.Timestamp) })
	case EventDayVote:
		return r.handleDayVote(e.UserID, e.Target, e.Timestamp)
	case EventResolveDay:
		return r.hostOnly(e.UserID, func() error { return r.resolveDayLocked(e.Timestamp) })
	case EventReset:
		return r.hostOnly(e.UserID, func() error { return r.resetLocked() })
	case EventConnLost:
		return r.handleConnLost(e.UserID, e.Timestamp)
	case EventConnResume:
		return r.handleConnResume(e.UserID, e.Name, e.Timestamp)
	case EventClose:
		r.stopLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (r *Room) hostOnly(userID uint64, fn func() error) error {
	if _, ok := r.members[userID]; !ok {
		return ErrNotMember
	}
	if userID != r.hostID {
		return ErrNotHost
	}
	return fn()
}

// SubmitEvent hands e to the actor and waits for its result.
func (r *Room) SubmitEvent(e Event) error {
	e.Timestamp = r.now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return ErrRoomClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Stop shuts down the actor.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Room) stopLocked() {
	r.closed = true
	r.deadline = time.Time{}
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// IsIdleFor reports whether nobody has been online for ttl.
func (r *Room) IsIdleFor(ttl time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return true
	}
	if r.emptySince.IsZero() {
		return false
	}
	return r.now().Sub(r.emptySince) >= ttl
}

// Info is the lobby listing view of a room.
type Info struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Private bool   `json:"private"`
	Phase   string `json:"phase"`
	Day     int    `json:"day"`
	Seated  int    `json:"seated"`
	Members int    `json:"members"`
	Host    uint64 `json:"host_user_id"`
}

func (r *Room) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := Info{
		ID:      r.ID,
		Name:    r.Name,
		Private: r.cfg.Private,
		Phase:   r.game.Phase().String(),
		Day:     r.game.Day(),
		Members: len(r.members),
		Host:    r.hostID,
	}
	for _, m := range r.members {
		if m.Seat != game.NoSeat {
			info.Seated++
		}
	}
	return info
}

// HasFreeSeat reports whether a newcomer could sit down right now.
func (r *Room) HasFreeSeat() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed || r.game.Phase() != game.PhaseLobby {
		return false
	}
	return r.freeSeatLocked() != game.NoSeat
}

// Snapshot returns the unfiltered engine state.
func (r *Room) Snapshot() game.Snapshot {
	return r.game.Snapshot()
}

func (r *Room) freeSeatLocked() game.Seat {
	taken := make(map[game.Seat]bool, len(r.members))
	for _, m := range r.members {
		if m.Seat != game.NoSeat {
			taken[m.Seat] = true
		}
	}
	for _, s := range game.AllSeats() {
		if !taken[s] {
			return s
		}
	}
	return game.NoSeat
}

func (r *Room) userAtSeatLocked(seat game.Seat) uint64 {
	for id, m := range r.members {
		if m.Seat == seat {
			return id
		}
	}
	return 0
}

// sortedMembersLocked orders seated members by seat, then watchers by user id.
func (r *Room) sortedMembersLocked() []*Member {
	out := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Seat == game.NoSeat) != (b.Seat == game.NoSeat) {
			return a.Seat != game.NoSeat
		}
		if a.Seat != b.Seat {
			return a.Seat < b.Seat
		}
		return a.UserID < b.UserID
	})
	return out
}

func (r *Room) updateEmptySinceLocked(now time.Time) {
	for _, m := range r.members {
		if m.Online {
			r.emptySince = time.Time{}
			return
		}
	}
	if r.emptySince.IsZero() {
		r.emptySince = now
	}
}

func newGameID() string {
	return uuid.NewString()
}

func normalizeName(raw string, userID uint64) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return fmt.Sprintf("user_%d", userID)
	}
	return name
}
