package game

// Player is one seat's record in the registry.
type Player struct {
	Seat   Seat
	UserID uint64 // 0 => empty seat

	role    Role
	alive   bool
	muted   bool
	voted   bool
	needles int
	pending DeathCause // delayed death carried into the next night
}

func (p *Player) Occupied() bool { return p.UserID != 0 }
func (p *Player) Role() Role     { return p.role }
func (p *Player) Alive() bool    { return p.alive }
func (p *Player) Muted() bool    { return p.muted }
func (p *Player) Voted() bool    { return p.voted }
func (p *Player) Needles() int   { return p.needles }

func (p *Player) PendingDeath() DeathCause { return p.pending }

// resetForRound clears everything dealt or earned during a game, keeping occupancy.
func (p *Player) resetForRound() {
	p.role = RoleNone
	p.alive = false
	p.muted = false
	p.voted = false
	p.needles = 0
	p.pending = CauseNone
}

func (p *Player) deal(r Role) {
	p.resetForRound()
	p.role = r
	p.alive = true
}

func (p *Player) kill() {
	p.alive = false
	p.muted = false
	p.pending = CauseNone
}

func (p *Player) state() SeatState {
	return SeatState{
		Seat:         p.Seat,
		Role:         p.role,
		Alive:        p.alive,
		Needles:      p.needles,
		PendingDeath: p.pending,
	}
}
