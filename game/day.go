package game

type DayInput struct {
	Day       int
	Alive     [SeatCount + 1]bool // indexed by seat
	Votes     []VoteEntry
	DarkVotes map[Seat]int
}

// DayOutcome is the result of one day vote. Executed is NoSeat on a tie or an empty tally.
type DayOutcome struct {
	Day      int
	Tally    map[Seat]int
	Executed Seat
	Tie      bool
	Tied     []Seat
}

func (o *DayOutcome) Clone() *DayOutcome {
	if o == nil {
		return nil
	}
	c := *o
	c.Tally = copySeatInts(o.Tally)
	c.Tied = append([]Seat(nil), o.Tied...)
	return &c
}

// ResolveDayVote tallies dark and public votes for living seats and picks the unique maximum.
func ResolveDayVote(in DayInput) DayOutcome {
	out := DayOutcome{Day: in.Day, Tally: make(map[Seat]int)}
	for seat, n := range in.DarkVotes {
		if seat.Valid() && in.Alive[seat] && n > 0 {
			out.Tally[seat] += n
		}
	}
	for _, v := range in.Votes {
		if !v.Voter.Valid() || !in.Alive[v.Voter] {
			continue
		}
		if v.Target.Valid() && in.Alive[v.Target] {
			out.Tally[v.Target]++
		}
	}

	best := 0
	for seat := Seat(1); seat <= SeatCount; seat++ {
		n := out.Tally[seat]
		switch {
		case n == 0:
		case n > best:
			best = n
			out.Tied = append(out.Tied[:0], seat)
		case n == best:
			out.Tied = append(out.Tied, seat)
		}
	}
	switch len(out.Tied) {
	case 0:
	case 1:
		out.Executed = out.Tied[0]
		out.Tied = nil
	default:
		out.Tie = true
	}
	return out
}
