package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Game is one nine-seat table. Every exported method is a single critical section.
type Game struct {
	cfg Config
	rng *rand.Rand

	mu sync.Mutex

	players [SeatCount + 1]*Player // index 0 unused

	phase Phase
	day   int

	actions   actionLedger
	votes     voteList
	darkVotes map[Seat]int

	speakers   []Seat
	speakerIdx int

	nights []NightOutcome
	days   []DayOutcome
	result *GameResult
}

func NewGame(cfg Config) (*Game, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Game{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		phase:   PhaseLobby,
		actions: newActionLedger(),
		votes:   newVoteList(),
	}
	for s := Seat(1); s <= SeatCount; s++ {
		g.players[s] = &Player{Seat: s}
	}
	return g, nil
}

func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Game) Day() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.day
}

// SitDown binds userID to seat. Lobby only.
func (g *Game) SitDown(seat Seat, userID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return &PhaseError{Op: "SitDown", Phase: g.phase}
	}
	if !seat.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSeat, seat)
	}
	if userID == 0 {
		return fmt.Errorf("%w: user id must be non-zero", ErrInvalidSeat)
	}
	if g.players[seat].Occupied() {
		return fmt.Errorf("%w: %d", ErrSeatOccupied, seat)
	}
	if other := g.seatOfLocked(userID); other != NoSeat {
		return fmt.Errorf("%w: user %d already at seat %d", ErrSeatOccupied, userID, other)
	}
	g.players[seat].UserID = userID
	return nil
}

// StandUp frees a seat. Lobby only.
func (g *Game) StandUp(seat Seat) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return &PhaseError{Op: "StandUp", Phase: g.phase}
	}
	if !seat.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSeat, seat)
	}
	if !g.players[seat].Occupied() {
		return fmt.Errorf("%w: %d", ErrSeatEmpty, seat)
	}
	g.players[seat].UserID = 0
	return nil
}

// SeatOf returns the seat bound to userID, or NoSeat.
func (g *Game) SeatOf(userID uint64) Seat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seatOfLocked(userID)
}

func (g *Game) seatOfLocked(userID uint64) Seat {
	if userID == 0 {
		return NoSeat
	}
	for s := Seat(1); s <= SeatCount; s++ {
		if g.players[s].UserID == userID {
			return s
		}
	}
	return NoSeat
}

// RoleOf returns the current role at seat (RoleNone before the deal).
func (g *Game) RoleOf(seat Seat) Role {
	if !seat.Valid() {
		return RoleNone
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.players[seat].role
}

// DealRoles shuffles the seat list and zips it with DealOrder, then opens night 1.
func (g *Game) DealRoles() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return &PhaseError{Op: "DealRoles", Phase: g.phase}
	}
	occupied := 0
	for s := Seat(1); s <= SeatCount; s++ {
		if g.players[s].Occupied() {
			occupied++
		}
	}
	if occupied != SeatCount {
		return fmt.Errorf("%w: have %d", ErrSeatCount, occupied)
	}

	if g.cfg.ForcedRoles != nil {
		for i, r := range g.cfg.ForcedRoles {
			g.players[i+1].deal(r)
		}
	} else {
		seats := AllSeats()
		for i := len(seats) - 1; i > 0; i-- {
			j := g.rng.Intn(i + 1)
			seats[i], seats[j] = seats[j], seats[i]
		}
		for i, s := range seats {
			g.players[s].deal(DealOrder[i])
		}
	}

	g.day = 1
	g.nights = nil
	g.days = nil
	g.result = nil
	g.darkVotes = nil
	g.enterNightLocked()
	return nil
}

func (g *Game) enterNightLocked() {
	g.actions.clear()
	g.votes.clear()
	g.speakers = nil
	g.speakerIdx = 0
	for s := Seat(1); s <= SeatCount; s++ {
		g.players[s].muted = false
		g.players[s].voted = false
	}
	g.phase = PhaseNightActions
}

// SubmitNightAction records role's action for tonight, replacing any earlier one.
func (g *Game) SubmitNightAction(role Role, actor, target, secondary Seat) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseNightActions {
		return &PhaseError{Op: "SubmitNightAction", Phase: g.phase}
	}
	p, err := g.livingPlayerLocked(actor)
	if err != nil {
		return err
	}
	if p.role != role {
		return fmt.Errorf("%w: seat %d is not %s", ErrRoleMismatch, actor, role)
	}
	if !role.HasAbility() {
		return fmt.Errorf("%w: %s", ErrNoAbility, role)
	}
	if err := g.checkTargetLocked(target); err != nil {
		return err
	}
	if secondary != NoSeat {
		if role.Ability() != AbilityScheme {
			return fmt.Errorf("%w: %s takes no secondary target", ErrInvalidTarget, role)
		}
		if err := g.checkTargetLocked(secondary); err != nil {
			return err
		}
	}
	g.actions.put(NightAction{
		Role:        role,
		Actor:       actor,
		Target:      target,
		Secondary:   secondary,
		SubmittedAt: g.cfg.Now(),
	})
	return nil
}

func (g *Game) livingPlayerLocked(seat Seat) (*Player, error) {
	if !seat.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeat, seat)
	}
	p := g.players[seat]
	if !p.Occupied() {
		return nil, fmt.Errorf("%w: %d", ErrSeatEmpty, seat)
	}
	if !p.alive {
		return nil, fmt.Errorf("%w: %d", ErrNotAlive, seat)
	}
	return p, nil
}

func (g *Game) checkTargetLocked(target Seat) error {
	if target == NoSeat {
		return nil
	}
	if !target.Valid() || !g.players[target].alive {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	return nil
}

// ResolveNight runs the night pipeline, applies its outcome and checks for a winner.
func (g *Game) ResolveNight() (NightOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseNightActions {
		return NightOutcome{}, &PhaseError{Op: "ResolveNight", Phase: g.phase}
	}

	in := NightInput{
		Night:              g.day,
		Actions:            g.actions.copyMap(),
		NeedleThreshold:    g.cfg.NeedleThreshold,
		DelayedNeedleDeath: g.cfg.DelayedNeedleDeath,
		DarkVoteWeight:     g.cfg.DarkVoteWeight,
	}
	for s := Seat(1); s <= SeatCount; s++ {
		in.Seats[s-1] = g.players[s].state()
	}
	out := ResolveNight(in)
	g.applyNightLocked(&out)
	g.nights = append(g.nights, *out.Clone())

	if res := g.evaluateLocked(); res != nil {
		return out, nil
	}
	g.enterDayLocked()
	return out, nil
}

func (g *Game) applyNightLocked(out *NightOutcome) {
	for _, d := range out.Deaths {
		if g.players[d.Seat].role == RoleNone {
			panic(InvalidStateError(fmt.Sprintf("night death on undealt seat %d", d.Seat)))
		}
		g.players[d.Seat].kill()
	}
	for seat, n := range out.NeedleCounts {
		g.players[seat].needles = n
	}
	for _, d := range out.Scheduled {
		g.players[d.Seat].pending = d.Cause
	}
	for _, s := range out.Successions {
		g.players[s.Seat].role = s.To
	}
	for _, s := range out.Muted {
		g.players[s].muted = true
	}
	g.darkVotes = copySeatInts(out.DarkVotes)
}

func (g *Game) rolesAndAliveLocked() ([SeatCount + 1]Role, [SeatCount + 1]bool) {
	var roles [SeatCount + 1]Role
	var alive [SeatCount + 1]bool
	for s := Seat(1); s <= SeatCount; s++ {
		roles[s] = g.players[s].role
		alive[s] = g.players[s].alive
	}
	return roles, alive
}

func (g *Game) evaluateLocked() *GameResult {
	res := EvaluateWin(g.rolesAndAliveLocked())
	if res == nil {
		return nil
	}
	res.Day = g.day
	g.result = res
	g.phase = PhaseGameOver
	return res
}

func (g *Game) enterDayLocked() {
	g.speakers = g.speakingOrderLocked()
	g.speakerIdx = 0
	if g.cfg.SkipDiscussion || len(g.speakers) == 0 {
		g.phase = PhaseDayVote
		return
	}
	g.phase = PhaseDayDiscussion
}

// speakingOrderLocked lists living, un-muted seats rotated so day N starts at the Nth candidate.
func (g *Game) speakingOrderLocked() []Seat {
	var order []Seat
	for s := Seat(1); s <= SeatCount; s++ {
		if p := g.players[s]; p.alive && !p.muted {
			order = append(order, s)
		}
	}
	if len(order) == 0 {
		return nil
	}
	shift := (g.day - 1) % len(order)
	return append(order[shift:], order[:shift]...)
}

// CurrentSpeaker returns whose turn it is during day_discussion, else NoSeat.
func (g *Game) CurrentSpeaker() Seat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentSpeakerLocked()
}

func (g *Game) currentSpeakerLocked() Seat {
	if g.phase != PhaseDayDiscussion || g.speakerIdx >= len(g.speakers) {
		return NoSeat
	}
	return g.speakers[g.speakerIdx]
}

// NextSpeaker passes the floor. It returns NoSeat once the order is exhausted and voting opens.
func (g *Game) NextSpeaker() (Seat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseDayDiscussion {
		return NoSeat, &PhaseError{Op: "NextSpeaker", Phase: g.phase}
	}
	g.speakerIdx++
	if g.speakerIdx >= len(g.speakers) {
		g.phase = PhaseDayVote
		return NoSeat, nil
	}
	return g.speakers[g.speakerIdx], nil
}

// OpenVote ends discussion early.
func (g *Game) OpenVote() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseDayDiscussion {
		return &PhaseError{Op: "OpenVote", Phase: g.phase}
	}
	g.phase = PhaseDayVote
	return nil
}

// SubmitDayVote records voter's public vote, replacing any earlier one.
func (g *Game) SubmitDayVote(voter, target Seat) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseDayVote && !(g.phase == PhaseDayDiscussion && g.cfg.EarlyVoting) {
		return &PhaseError{Op: "SubmitDayVote", Phase: g.phase}
	}
	p, err := g.livingPlayerLocked(voter)
	if err != nil {
		return err
	}
	if p.muted {
		return fmt.Errorf("%w: %d", ErrMuted, voter)
	}
	if !target.Valid() || !g.players[target].alive {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	g.votes.put(VoteEntry{Voter: voter, Target: target, At: g.cfg.Now()})
	p.voted = true
	return nil
}

// ResolveDayVote tallies the day, executes the unique leader if any and checks for a winner.
func (g *Game) ResolveDayVote() (DayOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseDayVote {
		return DayOutcome{}, &PhaseError{Op: "ResolveDayVote", Phase: g.phase}
	}
	_, alive := g.rolesAndAliveLocked()
	out := ResolveDayVote(DayInput{
		Day:       g.day,
		Alive:     alive,
		Votes:     g.votes.list(),
		DarkVotes: g.darkVotes,
	})
	if out.Executed != NoSeat {
		g.players[out.Executed].kill()
	}
	g.days = append(g.days, *out.Clone())
	g.darkVotes = nil
	g.votes.clear()
	for s := Seat(1); s <= SeatCount; s++ {
		g.players[s].voted = false
	}

	if res := g.evaluateLocked(); res != nil {
		return out, nil
	}
	g.day++
	g.enterNightLocked()
	return out, nil
}

// ResetToLobby discards the round and its history. Seat occupancy survives.
func (g *Game) ResetToLobby() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for s := Seat(1); s <= SeatCount; s++ {
		g.players[s].resetForRound()
	}
	g.actions.clear()
	g.votes.clear()
	g.darkVotes = nil
	g.speakers = nil
	g.speakerIdx = 0
	g.nights = nil
	g.days = nil
	g.result = nil
	g.day = 0
	g.phase = PhaseLobby
}

type History struct {
	Nights []NightOutcome
	Days   []DayOutcome
}

// History returns copies of every outcome since the deal.
func (g *Game) History() History {
	g.mu.Lock()
	defer g.mu.Unlock()

	h := History{}
	for i := range g.nights {
		h.Nights = append(h.Nights, *g.nights[i].Clone())
	}
	for i := range g.days {
		h.Days = append(h.Days, *g.days[i].Clone())
	}
	return h
}

func (g *Game) Result() *GameResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.result == nil {
		return nil
	}
	r := *g.result
	return &r
}

// ActionableSeats lists living seats whose current role has a night ability.
func (g *Game) ActionableSeats() []Seat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.actionableSeatsLocked()
}

func (g *Game) actionableSeatsLocked() []Seat {
	if g.phase != PhaseNightActions {
		return nil
	}
	var seats []Seat
	for s := Seat(1); s <= SeatCount; s++ {
		if p := g.players[s]; p.alive && p.role.HasAbility() {
			seats = append(seats, s)
		}
	}
	return seats
}

func (g *Game) AllNightActionsSubmitted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	seats := g.actionableSeatsLocked()
	if len(seats) == 0 {
		return g.phase == PhaseNightActions
	}
	for _, s := range seats {
		a, ok := g.actions.get(g.players[s].role)
		if !ok || a.Actor != s {
			return false
		}
	}
	return true
}

// EligibleVoters lists living, un-muted seats.
func (g *Game) EligibleVoters() []Seat {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eligibleVotersLocked()
}

func (g *Game) eligibleVotersLocked() []Seat {
	var seats []Seat
	for s := Seat(1); s <= SeatCount; s++ {
		if p := g.players[s]; p.alive && !p.muted {
			seats = append(seats, s)
		}
	}
	return seats
}

func (g *Game) AllVotesSubmitted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseDayVote {
		return false
	}
	for _, s := range g.eligibleVotersLocked() {
		if !g.players[s].voted {
			return false
		}
	}
	return true
}
