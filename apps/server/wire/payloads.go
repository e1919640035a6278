package wire

import (
	"strconv"

	"nightcourt/game"
)

// SnapshotPayload projects a table snapshot for one viewer. Other seats' roles
// and secret counters stay hidden until game over; viewer NoSeat is a spectator.
func SnapshotPayload(s game.Snapshot, viewer game.Seat) map[string]any {
	over := s.Phase == game.PhaseGameOver
	seats := make([]any, 0, len(s.Seats))
	for _, ss := range s.Seats {
		entry := map[string]any{
			"seat":    int(ss.Seat),
			"user_id": float64(ss.UserID),
			"alive":   ss.Alive,
			"muted":   ss.Muted,
			"voted":   ss.Voted,
		}
		if over || ss.Seat == viewer {
			entry["role"] = ss.Role.String()
			entry["needles"] = ss.Needles
		}
		if ss.Seat == viewer {
			entry["submitted"] = ss.Submitted
		}
		seats = append(seats, entry)
	}

	out := map[string]any{
		"phase":          s.Phase.String(),
		"day":            s.Day,
		"speaker":        int(s.Speaker),
		"speaking_order": seatList(s.SpeakingOrder),
		"seats":          seats,
		"votes":          voteList(s.Votes),
	}
	for _, a := range s.Actions {
		if a.Actor == viewer {
			out["my_action"] = actionPayload(a)
		}
	}
	if s.LastNight != nil {
		out["last_night"] = NightSummaryPayload(*s.LastNight)
	}
	if s.LastDay != nil {
		out["last_day"] = DayOutcomePayload(*s.LastDay)
	}
	if s.Result != nil {
		out["result"] = ResultPayload(*s.Result, s.Seats)
	}
	return out
}

// NightSummaryPayload is the public part of a night: who died and who is silenced.
func NightSummaryPayload(o game.NightOutcome) map[string]any {
	return map[string]any{
		"night":  o.Night,
		"deaths": deathList(o.Deaths),
		"muted":  seatList(o.Muted),
	}
}

// NightReviewPayload carries every detail of a night for post-game review and the archive.
func NightReviewPayload(o game.NightOutcome) map[string]any {
	out := NightSummaryPayload(o)
	if r := o.Redirect; r != nil {
		out["redirect"] = map[string]any{"from": int(r.From), "to": int(r.To), "neutralized": r.Neutralized}
	}
	if b := o.Block; b != nil {
		out["block"] = map[string]any{
			"blocker":     int(b.Blocker),
			"target":      int(b.Target),
			"absorbed":    b.Absorbed,
			"neutralized": b.Neutralized,
		}
	}
	if g := o.Guard; g != nil {
		out["guard"] = map[string]any{"guard": int(g.Guard), "target": int(g.Target), "result": g.Result.String()}
	}
	inspections := make([]any, 0, len(o.Inspections))
	for _, r := range o.Inspections {
		inspections = append(inspections, InspectionPayload(r))
	}
	out["inspections"] = inspections
	successions := make([]any, 0, len(o.Successions))
	for _, s := range o.Successions {
		successions = append(successions, map[string]any{"seat": int(s.Seat), "from": s.From.String(), "to": s.To.String()})
	}
	out["successions"] = successions
	out["dark_votes"] = seatCounts(o.DarkVotes)
	out["needles"] = seatCounts(o.NeedleCounts)
	out["scheduled"] = deathList(o.Scheduled)
	notes := make([]any, 0, len(o.Notes))
	for _, n := range o.Notes {
		notes = append(notes, map[string]any{"kind": string(n.Kind), "role": n.Role.String(), "seats": seatList(n.Seats)})
	}
	out["notes"] = notes
	return out
}

// InspectionPayload is sent to the inspecting seat only.
func InspectionPayload(r game.InspectionReport) map[string]any {
	return map[string]any{
		"inspector": int(r.Inspector),
		"target":    int(r.Target),
		"result":    r.Result.String(),
	}
}

func DayOutcomePayload(o game.DayOutcome) map[string]any {
	return map[string]any{
		"day":      o.Day,
		"tally":    seatCounts(o.Tally),
		"executed": int(o.Executed),
		"tie":      o.Tie,
		"tied":     seatList(o.Tied),
	}
}

// ResultPayload reveals every role alongside the verdict.
func ResultPayload(r game.GameResult, seats []game.SeatSnapshot) map[string]any {
	roles := make([]any, 0, len(seats))
	for _, ss := range seats {
		roles = append(roles, map[string]any{
			"seat":    int(ss.Seat),
			"role":    ss.Role.String(),
			"faction": ss.Role.Faction().String(),
			"alive":   ss.Alive,
		})
	}
	return map[string]any{
		"winner": r.Winner.String(),
		"reason": string(r.Reason),
		"day":    r.Day,
		"roles":  roles,
	}
}

func RoleAssignedPayload(seat game.Seat, role game.Role) map[string]any {
	return map[string]any{
		"seat":    int(seat),
		"role":    role.String(),
		"faction": role.Faction().String(),
		"ability": role.HasAbility(),
	}
}

func PhaseChangePayload(phase game.Phase, day int, deadlineMs int64) map[string]any {
	out := map[string]any{"phase": phase.String(), "day": day}
	if deadlineMs > 0 {
		out["deadline_ms"] = float64(deadlineMs)
	}
	return out
}

func SpeakerPayload(seat game.Seat, deadlineMs int64) map[string]any {
	return map[string]any{"seat": int(seat), "deadline_ms": float64(deadlineMs)}
}

func VoteCastPayload(v game.VoteEntry) map[string]any {
	return map[string]any{"voter": int(v.Voter), "target": int(v.Target)}
}

func ActionAckPayload(a game.NightAction) map[string]any { return actionPayload(a) }

func SeatUpdatePayload(seat game.Seat, userID uint64, name string, online bool) map[string]any {
	return map[string]any{
		"seat":    int(seat),
		"user_id": float64(userID),
		"name":    name,
		"online":  online,
	}
}

// ErrorPayload tags a rejected request with the engine's error kind.
func ErrorPayload(code int, msg string, err error) map[string]any {
	out := map[string]any{"code": code, "message": msg}
	if kind := game.ErrorKindOf(err); kind != game.KindNone {
		out["kind"] = string(kind)
	}
	return out
}

func actionPayload(a game.NightAction) map[string]any {
	out := map[string]any{
		"role":   a.Role.String(),
		"actor":  int(a.Actor),
		"target": int(a.Target),
	}
	if a.Secondary != game.NoSeat {
		out["secondary"] = int(a.Secondary)
	}
	return out
}

func voteList(votes []game.VoteEntry) []any {
	out := make([]any, 0, len(votes))
	for _, v := range votes {
		out = append(out, VoteCastPayload(v))
	}
	return out
}

func deathList(deaths []game.Death) []any {
	out := make([]any, 0, len(deaths))
	for _, d := range deaths {
		out = append(out, map[string]any{"seat": int(d.Seat), "cause": d.Cause.String()})
	}
	return out
}

func seatList(seats []game.Seat) []any {
	out := make([]any, 0, len(seats))
	for _, s := range seats {
		out = append(out, int(s))
	}
	return out
}

// seatCounts keys by decimal seat number since Struct keys are strings.
func seatCounts(m map[game.Seat]int) map[string]any {
	out := make(map[string]any, len(m))
	for s, n := range m {
		out[strconv.Itoa(int(s))] = n
	}
	return out
}
