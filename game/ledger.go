package game

import (
	"sort"
	"time"
)

// NightAction is one role's secret submission for the current night.
type NightAction struct {
	Role        Role
	Actor       Seat
	Target      Seat
	Secondary   Seat // Schemer dark vote target
	SubmittedAt time.Time
}

// VoteEntry is one public day vote.
type VoteEntry struct {
	Voter  Seat
	Target Seat
	At     time.Time
}

// actionLedger keeps at most one action per role; put overwrites.
type actionLedger struct {
	byRole map[Role]NightAction
}

func newActionLedger() actionLedger {
	return actionLedger{byRole: make(map[Role]NightAction, SeatCount)}
}

func (l *actionLedger) put(a NightAction) { l.byRole[a.Role] = a }

func (l *actionLedger) get(r Role) (NightAction, bool) {
	a, ok := l.byRole[r]
	return a, ok
}

func (l *actionLedger) clear() {
	for r := range l.byRole {
		delete(l.byRole, r)
	}
}

func (l *actionLedger) submittedBy(seat Seat) bool {
	for _, a := range l.byRole {
		if a.Actor == seat {
			return true
		}
	}
	return false
}

func (l *actionLedger) copyMap() map[Role]NightAction {
	out := make(map[Role]NightAction, len(l.byRole))
	for r, a := range l.byRole {
		out[r] = a
	}
	return out
}

// list returns actions in role order so snapshots compare stably.
func (l *actionLedger) list() []NightAction {
	out := make([]NightAction, 0, len(l.byRole))
	for _, a := range l.byRole {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// voteList keeps at most one vote per voter; put overwrites.
type voteList struct {
	byVoter map[Seat]VoteEntry
}

func newVoteList() voteList {
	return voteList{byVoter: make(map[Seat]VoteEntry, SeatCount)}
}

func (v *voteList) put(e VoteEntry) { v.byVoter[e.Voter] = e }

func (v *voteList) clear() {
	for s := range v.byVoter {
		delete(v.byVoter, s)
	}
}

func (v *voteList) list() []VoteEntry {
	out := make([]VoteEntry, 0, len(v.byVoter))
	for _, e := range v.byVoter {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Voter < out[j].Voter })
	return out
}
