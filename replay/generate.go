package replay

import (
	"encoding/base64"
	"fmt"
	"time"

	"nightcourt/apps/server/wire"
	"nightcourt/game"
)

const defaultRoomID = "replay_local"

// replayEpoch keeps submission timestamps fixed so two runs produce identical tapes.
var replayEpoch = time.Unix(1_700_000_000, 0).UTC()

// GenerateReplayTape runs script through the engine and records every frame the
// hero seat would have received.
func GenerateReplayTape(script GameScript) (*ReplayTape, error) {
	ns, err := normalizeScript(script)
	if err != nil {
		return nil, err
	}
	cfg := ns.cfg
	cfg.Now = func() time.Time { return replayEpoch }

	g, err := game.NewGame(cfg)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "engine_init_failed", Message: err.Error()}
	}
	b := newTapeBuilder(ns.roomID, ns.hero)
	for _, s := range ns.seats {
		if err := g.SitDown(s.seat, s.userID); err != nil {
			return nil, &ReplayError{StepIndex: -1, Reason: "seat_init_failed", Message: err.Error()}
		}
		b.push(wire.TypeSeatUpdate, wire.SeatUpdatePayload(s.seat, s.userID, s.name, true))
	}
	b.push(wire.TypeSnapshot, wire.SnapshotPayload(g.Snapshot(), ns.hero))

	if err := g.DealRoles(); err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "deal_failed", Message: err.Error()}
	}
	b.push(wire.TypeRoleAssigned, wire.RoleAssignedPayload(ns.hero, g.RoleOf(ns.hero)))
	b.addPhaseChange(g.Phase(), g.Day())
	if err := b.encodeError(-1); err != nil {
		return nil, err
	}

	for i, st := range ns.steps {
		idx := int32(i)
		phase := g.Phase()
		if phase == game.PhaseGameOver {
			return nil, &ReplayError{
				StepIndex: idx,
				Reason:    "game_over",
				Message:   "game is already decided; no further steps are allowed",
				Expected:  &ExpectedState{Phase: phase.String()},
			}
		}
		if want := expectedPhase(st.kind, ns.cfg.EarlyVoting, phase); want != phase {
			return nil, &ReplayError{
				StepIndex: idx,
				Reason:    "phase_mismatch",
				Message:   fmt.Sprintf("step %s needs phase %s, game is in %s", st.kind, want, phase),
				Expected:  expectedState(g, nil),
			}
		}
		if err := applyStep(g, b, st); err != nil {
			return nil, &ReplayError{
				StepIndex: idx,
				Reason:    "step_rejected",
				Message:   err.Error(),
				Expected:  expectedState(g, err),
			}
		}
		if err := b.encodeError(idx); err != nil {
			return nil, err
		}
	}

	return &ReplayTape{
		TapeVersion: 1,
		RoomID:      b.roomID,
		HeroSeat:    uint8(ns.hero),
		Events:      b.events,
	}, nil
}

func applyStep(g *game.Game, b *tapeBuilder, st normalizedStep) error {
	switch st.kind {
	case StepNightAction:
		if err := g.SubmitNightAction(st.role, st.seat, st.target, st.secondary); err != nil {
			return err
		}
		if st.seat == b.hero {
			b.push(wire.TypeActionAck, wire.ActionAckPayload(game.NightAction{
				Role: st.role, Actor: st.seat, Target: st.target, Secondary: st.secondary,
			}))
		}
	case StepResolveNight:
		out, err := g.ResolveNight()
		if err != nil {
			return err
		}
		b.push(wire.TypeNightSummary, wire.NightSummaryPayload(out))
		for _, r := range out.Inspections {
			if r.Inspector == b.hero {
				b.push(wire.TypeInspection, wire.InspectionPayload(r))
			}
		}
		b.addPhaseTransition(g)
	case StepNextSpeaker:
		if _, err := g.NextSpeaker(); err != nil {
			return err
		}
		b.addPhaseTransition(g)
	case StepOpenVote:
		if err := g.OpenVote(); err != nil {
			return err
		}
		b.addPhaseTransition(g)
	case StepVote:
		if err := g.SubmitDayVote(st.seat, st.target); err != nil {
			return err
		}
		b.push(wire.TypeVoteCast, wire.VoteCastPayload(game.VoteEntry{Voter: st.seat, Target: st.target}))
	case StepResolveDay:
		out, err := g.ResolveDayVote()
		if err != nil {
			return err
		}
		b.push(wire.TypeDayOutcome, wire.DayOutcomePayload(out))
		b.addPhaseTransition(g)
	}
	return nil
}

func expectedState(g *game.Game, err error) *ExpectedState {
	snap := g.Snapshot()
	exp := &ExpectedState{
		Phase:     snap.Phase.String(),
		Day:       snap.Day,
		Speaker:   uint8(snap.Speaker),
		ErrorKind: string(game.ErrorKindOf(err)),
	}
	var seats []game.Seat
	switch snap.Phase {
	case game.PhaseNightActions:
		seats = g.ActionableSeats()
	case game.PhaseDayDiscussion, game.PhaseDayVote:
		seats = g.EligibleVoters()
	}
	for _, s := range seats {
		exp.Seats = append(exp.Seats, uint8(s))
	}
	return exp
}

type tapeBuilder struct {
	roomID string
	hero   game.Seat
	seq    uint64
	phase  game.Phase
	day    int
	events []ReplayEvent
	err    error // first envelope that failed to encode
}

func newTapeBuilder(roomID string, hero game.Seat) *tapeBuilder {
	return &tapeBuilder{
		roomID: roomID,
		hero:   hero,
		events: make([]ReplayEvent, 0, 64),
	}
}

// addPhaseTransition emits the frames a client sees after the phase tag moves.
func (b *tapeBuilder) addPhaseTransition(g *game.Game) {
	snap := g.Snapshot()
	if snap.Phase == game.PhaseGameOver {
		if snap.Result != nil {
			b.push(wire.TypeGameResult, wire.ResultPayload(*snap.Result, snap.Seats))
		}
		for _, night := range g.History().Nights {
			b.push(wire.TypeNightReview, wire.NightReviewPayload(night))
		}
		return
	}
	if snap.Phase != b.phase || snap.Day != b.day {
		b.addPhaseChange(snap.Phase, snap.Day)
	}
	if snap.Phase == game.PhaseDayDiscussion {
		b.push(wire.TypeSpeaker, wire.SpeakerPayload(snap.Speaker, 0))
	}
}

func (b *tapeBuilder) addPhaseChange(phase game.Phase, day int) {
	b.phase, b.day = phase, day
	b.push(wire.TypePhaseChange, wire.PhaseChangePayload(phase, day, 0))
}

func (b *tapeBuilder) push(typ string, payload map[string]any) {
	b.seq++
	env := wire.NewEnvelope(b.roomID, b.seq, int64(b.seq), typ, payload)
	bin, err := wire.Encode(env)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("encode %s seq=%d: %w", typ, b.seq, err)
		}
		return
	}
	b.events = append(b.events, ReplayEvent{
		Type:        typ,
		Seq:         b.seq,
		Value:       payload,
		EnvelopeB64: base64.StdEncoding.EncodeToString(bin),
	})
}

func (b *tapeBuilder) encodeError(step int32) *ReplayError {
	if b.err == nil {
		return nil
	}
	return &ReplayError{StepIndex: step, Reason: "encode_failed", Message: b.err.Error()}
}
