package replay

import (
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"

	"nightcourt/apps/server/wire"
)

func TestGenerateReplayTape_IsDeterministic(t *testing.T) {
	script := baseScript()

	tapeA, err := GenerateReplayTape(script)
	if err != nil {
		t.Fatalf("GenerateReplayTape A failed: %v", err)
	}
	tapeB, err := GenerateReplayTape(script)
	if err != nil {
		t.Fatalf("GenerateReplayTape B failed: %v", err)
	}

	if !reflect.DeepEqual(tapeA, tapeB) {
		t.Fatalf("expected deterministic replay tape for the same GameScript")
	}

	seen := map[string]bool{}
	for _, e := range tapeA.Events {
		seen[e.Type] = true
	}
	for _, typ := range []string{wire.TypeRoleAssigned, wire.TypeNightSummary, wire.TypeInspection, wire.TypeDayOutcome, wire.TypeSpeaker} {
		if !seen[typ] {
			t.Fatalf("expected a %s event on the tape", typ)
		}
	}
}

func TestGenerateReplayTape_EnvelopesDecode(t *testing.T) {
	tape, err := GenerateReplayTape(baseScript())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range tape.Events {
		bin, err := base64.StdEncoding.DecodeString(e.EnvelopeB64)
		if err != nil {
			t.Fatalf("seq %d: bad base64: %v", e.Seq, err)
		}
		env, err := wire.Decode(bin)
		if err != nil {
			t.Fatalf("seq %d: decode: %v", e.Seq, err)
		}
		if env.Type != e.Type || env.Seq != e.Seq || env.RoomID != defaultRoomID {
			t.Fatalf("seq %d: header mismatch %+v", e.Seq, env)
		}
	}
}

func TestGenerateReplayTape_HeroOnlySeesOwnInspection(t *testing.T) {
	script := baseScript()
	script.HeroSeat = 9
	tape, err := GenerateReplayTape(script)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range tape.Events {
		if e.Type == wire.TypeInspection {
			t.Fatalf("civilian hero must not receive the police report")
		}
	}
}

func TestGenerateReplayTape_PhaseMismatch(t *testing.T) {
	script := baseScript()
	script.Steps = append([]StepSpec{{Kind: StepVote, Seat: 1, Target: 2}}, script.Steps...)

	_, err := GenerateReplayTape(script)
	var replayErr *ReplayError
	if !errors.As(err, &replayErr) {
		t.Fatalf("expected ReplayError, got %T", err)
	}
	if replayErr.Reason != "phase_mismatch" || replayErr.StepIndex != 0 {
		t.Fatalf("unexpected error %+v", replayErr)
	}
	if replayErr.Expected == nil || replayErr.Expected.Phase != "night_actions" || len(replayErr.Expected.Seats) != 7 {
		t.Fatalf("expected night state with 7 actionable seats, got %+v", replayErr.Expected)
	}
}

func TestGenerateReplayTape_RejectedStepCarriesKind(t *testing.T) {
	script := baseScript()
	// seat 6 was silenced during night 1
	script.Steps[6] = StepSpec{Kind: StepVote, Seat: 6, Target: 1}

	_, err := GenerateReplayTape(script)
	var replayErr *ReplayError
	if !errors.As(err, &replayErr) {
		t.Fatalf("expected ReplayError, got %v", err)
	}
	if replayErr.Reason != "step_rejected" || replayErr.StepIndex != 6 || replayErr.Expected.ErrorKind != "identity" {
		t.Fatalf("unexpected error %+v / %+v", replayErr, replayErr.Expected)
	}
}

func TestGenerateReplayTape_StepsAfterGameOver(t *testing.T) {
	script := GameScript{
		Roles: baseRoles(),
		Rules: RulesSpec{SkipDiscussion: true},
		Steps: []StepSpec{
			{Kind: StepNightAction, Role: "sniper", Seat: 8, Target: 1},
			{Kind: StepNightAction, Role: "killer", Seat: 1, Target: 9},
			{Kind: StepResolveNight},
			{Kind: StepVote, Seat: 5, Target: 2},
			{Kind: StepVote, Seat: 6, Target: 2},
			{Kind: StepResolveDay},
			{Kind: StepNightAction, Role: "sniper", Seat: 8, Target: 3},
			{Kind: StepResolveNight},
			{Kind: StepResolveDay},
		},
	}
	_, err := GenerateReplayTape(script)
	var replayErr *ReplayError
	if !errors.As(err, &replayErr) || replayErr.Reason != "game_over" || replayErr.StepIndex != 8 {
		t.Fatalf("expected game_over at step 8, got %v", err)
	}
}

func TestNormalizeScript_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GameScript)
		reason string
	}{
		{"short roles", func(s *GameScript) { s.Roles = s.Roles[:4] }, "invalid_roles"},
		{"unknown role", func(s *GameScript) { s.Roles[0] = "werewolf" }, "invalid_roles"},
		{"bad hero", func(s *GameScript) { s.HeroSeat = 12 }, "invalid_hero"},
		{"unknown step", func(s *GameScript) { s.Steps[0].Kind = "dance" }, "invalid_step"},
		{"duplicate seat", func(s *GameScript) { s.Seats = []SeatSpec{{Seat: 2}, {Seat: 2}} }, "duplicate_seat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script := baseScript()
			tc.mutate(&script)
			_, err := GenerateReplayTape(script)
			var replayErr *ReplayError
			if !errors.As(err, &replayErr) || replayErr.Reason != tc.reason {
				t.Fatalf("expected %s, got %v", tc.reason, err)
			}
		})
	}
}

func baseRoles() []string {
	return []string{"killer", "mage", "schemer", "thug", "police", "doctor", "butterfly", "sniper", "civilian"}
}

func baseScript() GameScript {
	return GameScript{
		Roles:    baseRoles(),
		HeroSeat: 5,
		Seats:    []SeatSpec{{Seat: 5, Name: "YOU"}},
		Steps: []StepSpec{
			{Kind: StepNightAction, Role: "killer", Seat: 1, Target: 9},
			{Kind: StepNightAction, Role: "police", Seat: 5, Target: 1},
			{Kind: StepNightAction, Role: "schemer", Seat: 3, Target: 6, Secondary: 8},
			{Kind: StepResolveNight},
			{Kind: StepNextSpeaker},
			{Kind: StepOpenVote},
			{Kind: StepVote, Seat: 5, Target: 1},
			{Kind: StepVote, Seat: 7, Target: 1},
			{Kind: StepVote, Seat: 2, Target: 4},
			{Kind: StepResolveDay},
			{Kind: StepResolveNight},
		},
	}
}

func TestTapeBuilder_KeepsFirstEncodeError(t *testing.T) {
	b := newTapeBuilder(defaultRoomID, 1)
	b.push(wire.TypeSpeaker, map[string]any{"seat": 1.0})
	b.push(wire.TypeSpeaker, map[string]any{"seat": make(chan int)})
	b.push(wire.TypeSpeaker, map[string]any{"seat": struct{}{}})

	if len(b.events) != 1 {
		t.Fatalf("unencodable frames must not reach the tape, got %d events", len(b.events))
	}
	rerr := b.encodeError(4)
	if rerr == nil {
		t.Fatalf("expected the encode failure to be kept")
	}
	if rerr.StepIndex != 4 || rerr.Reason != "encode_failed" {
		t.Fatalf("unexpected error %+v", rerr)
	}
	if !strings.Contains(rerr.Message, "seq=2") {
		t.Fatalf("expected the first failing frame in %q", rerr.Message)
	}
}
