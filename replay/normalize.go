package replay

import (
	"fmt"
	"strings"

	"nightcourt/game"
)

type normalizedSeat struct {
	seat   game.Seat
	userID uint64
	name   string
}

type normalizedStep struct {
	kind      string
	role      game.Role
	seat      game.Seat
	target    game.Seat
	secondary game.Seat
}

type normalizedScript struct {
	roomID string
	cfg    game.Config
	seats  [game.SeatCount]normalizedSeat
	hero   game.Seat
	steps  []normalizedStep
}

func normalizeScript(script GameScript) (normalizedScript, error) {
	var out normalizedScript
	out.roomID = strings.TrimSpace(script.RoomID)
	if out.roomID == "" {
		out.roomID = defaultRoomID
	}

	out.cfg = game.Config{
		Seed:               script.Seed,
		NeedleThreshold:    script.Rules.NeedleThreshold,
		DelayedNeedleDeath: script.Rules.DelayedNeedleDeath,
		DarkVoteWeight:     script.Rules.DarkVoteWeight,
		SkipDiscussion:     script.Rules.SkipDiscussion,
		EarlyVoting:        script.Rules.EarlyVoting,
	}
	if out.cfg.Seed == 0 && len(script.Roles) == 0 {
		// replays must never fall back to a time-based deal
		out.cfg.Seed = 1
	}
	if len(script.Roles) > 0 {
		if len(script.Roles) != game.SeatCount {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_roles", Message: fmt.Sprintf("roles must list %d entries", game.SeatCount)}
		}
		for i, name := range script.Roles {
			r, err := parseRoleName(name)
			if err != nil {
				return out, &ReplayError{StepIndex: -1, Reason: "invalid_roles", Message: fmt.Sprintf("roles[%d]: %v", i, err)}
			}
			out.cfg.ForcedRoles = append(out.cfg.ForcedRoles, r)
		}
	}

	for i := range out.seats {
		seat := game.Seat(i + 1)
		out.seats[i] = normalizedSeat{seat: seat, userID: 100000 + uint64(seat), name: fmt.Sprintf("P%d", seat)}
	}
	seen := make(map[uint8]struct{}, len(script.Seats))
	for i, s := range script.Seats {
		if !game.Seat(s.Seat).Valid() {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_seat", Message: fmt.Sprintf("seats[%d]: seat %d out of range", i, s.Seat)}
		}
		if _, dup := seen[s.Seat]; dup {
			return out, &ReplayError{StepIndex: -1, Reason: "duplicate_seat", Message: fmt.Sprintf("duplicate seat %d", s.Seat)}
		}
		seen[s.Seat] = struct{}{}
		ns := &out.seats[s.Seat-1]
		if s.UserID != 0 {
			ns.userID = s.UserID
		}
		if name := strings.TrimSpace(s.Name); name != "" {
			ns.name = name
		}
	}

	out.hero = game.Seat(script.HeroSeat)
	if out.hero == game.NoSeat {
		out.hero = 1
	}
	if !out.hero.Valid() {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_hero", Message: fmt.Sprintf("hero seat %d out of range", script.HeroSeat)}
	}

	out.steps = make([]normalizedStep, 0, len(script.Steps))
	for i, st := range script.Steps {
		ns, err := normalizeStep(st)
		if err != nil {
			return out, &ReplayError{StepIndex: int32(i), Reason: "invalid_step", Message: err.Error()}
		}
		out.steps = append(out.steps, ns)
	}
	return out, nil
}

func normalizeStep(st StepSpec) (normalizedStep, error) {
	ns := normalizedStep{
		kind:      strings.ToLower(strings.TrimSpace(st.Kind)),
		seat:      game.Seat(st.Seat),
		target:    game.Seat(st.Target),
		secondary: game.Seat(st.Secondary),
	}
	switch ns.kind {
	case StepNightAction:
		r, err := parseRoleName(st.Role)
		if err != nil {
			return ns, err
		}
		ns.role = r
		if !ns.seat.Valid() {
			return ns, fmt.Errorf("night action needs an actor seat, got %d", st.Seat)
		}
	case StepVote:
		if !ns.seat.Valid() || !ns.target.Valid() {
			return ns, fmt.Errorf("vote needs voter and target seats, got %d -> %d", st.Seat, st.Target)
		}
	case StepResolveNight, StepNextSpeaker, StepOpenVote, StepResolveDay:
	default:
		return ns, fmt.Errorf("unknown step kind %q", st.Kind)
	}
	return ns, nil
}

func parseRoleName(name string) (game.Role, error) {
	r, ok := game.ParseRole(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return game.RoleNone, fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}

// expectedPhase is the phase a step kind must run in.
func expectedPhase(kind string, early bool, current game.Phase) game.Phase {
	switch kind {
	case StepNightAction, StepResolveNight:
		return game.PhaseNightActions
	case StepNextSpeaker, StepOpenVote:
		return game.PhaseDayDiscussion
	case StepVote:
		if early && current == game.PhaseDayDiscussion {
			return game.PhaseDayDiscussion
		}
		return game.PhaseDayVote
	default:
		return game.PhaseDayVote
	}
}
