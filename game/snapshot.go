package game

type SeatSnapshot struct {
	Seat         Seat
	UserID       uint64
	Role         Role
	Alive        bool
	Muted        bool
	Voted        bool
	Needles      int
	PendingDeath DeathCause
	Submitted    bool // has a night action on the ledger tonight
}

// Snapshot is a value copy of the whole table. Filtering per viewer happens in the server.
type Snapshot struct {
	Phase   Phase
	Day     int
	Speaker Seat

	SpeakingOrder []Seat
	Seats         []SeatSnapshot
	Actions       []NightAction
	Votes         []VoteEntry
	DarkVotes     map[Seat]int

	LastNight *NightOutcome
	LastDay   *DayOutcome
	Result    *GameResult
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Phase:         g.phase,
		Day:           g.day,
		Speaker:       g.currentSpeakerLocked(),
		SpeakingOrder: append([]Seat(nil), g.speakers...),
		Actions:       g.actions.list(),
		Votes:         g.votes.list(),
		DarkVotes:     copySeatInts(g.darkVotes),
	}
	for seat := Seat(1); seat <= SeatCount; seat++ {
		p := g.players[seat]
		s.Seats = append(s.Seats, SeatSnapshot{
			Seat:         seat,
			UserID:       p.UserID,
			Role:         p.role,
			Alive:        p.alive,
			Muted:        p.muted,
			Voted:        p.voted,
			Needles:      p.needles,
			PendingDeath: p.pending,
			Submitted:    g.phase == PhaseNightActions && g.actions.submittedBy(seat),
		})
	}
	if n := len(g.nights); n > 0 {
		s.LastNight = g.nights[n-1].Clone()
	}
	if n := len(g.days); n > 0 {
		s.LastDay = g.days[n-1].Clone()
	}
	if g.result != nil {
		r := *g.result
		s.Result = &r
	}
	return s
}
