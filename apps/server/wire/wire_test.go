package wire

import (
	"errors"
	"testing"

	"nightcourt/game"
)

func TestEncodeDecode_Binary(t *testing.T) {
	env := NewEnvelope("room_1", 7, 1234, TypeNightSummary, NightSummaryPayload(game.NightOutcome{
		Night:  2,
		Deaths: []game.Death{{Seat: 4, Cause: game.CauseKnife}},
		Muted:  []game.Seat{6},
	}))
	env.GameID = "g1"

	data, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode err: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode err: %v", err)
	}
	if got.RoomID != "room_1" || got.GameID != "g1" || got.Seq != 7 || got.TsMs != 1234 || got.Type != TypeNightSummary {
		t.Fatalf("header mismatch: %+v", got)
	}
	deaths, _ := got.Payload["deaths"].([]any)
	if len(deaths) != 1 {
		t.Fatalf("expected one death, got %v", got.Payload["deaths"])
	}
	d := deaths[0].(map[string]any)
	if d["seat"].(float64) != 4 || d["cause"] != "knife" {
		t.Fatalf("unexpected death entry %v", d)
	}
}

func TestEncode_IsDeterministic(t *testing.T) {
	payload := DayOutcomePayload(game.DayOutcome{Day: 1, Tally: map[game.Seat]int{1: 2, 5: 1, 9: 3}, Executed: 9})
	a, err := Encode(NewEnvelope("r", 1, 1, TypeDayOutcome, payload))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(NewEnvelope("r", 1, 1, TypeDayOutcome, payload))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("binary encoding must be deterministic")
	}
}

func TestEncodeJSON_RoundTrip(t *testing.T) {
	env := NewEnvelope("room_2", 3, 99, TypeError, ErrorPayload(4, "nope", game.ErrMuted))
	data, err := EncodeJSON(env)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Payload["kind"] != "identity" || got.Payload["message"] != "nope" {
		t.Fatalf("unexpected error payload %v", got.Payload)
	}
}

func TestDecodeClient(t *testing.T) {
	for _, binary := range []bool{true, false} {
		data, err := EncodeClient(&ClientMessage{
			Type:    ClientNightAction,
			RoomID:  "abc",
			Payload: map[string]any{"role": "Schemer", "target": 5, "secondary": 8},
		}, binary)
		if err != nil {
			t.Fatal(err)
		}
		msg, err := DecodeClient(data, binary)
		if err != nil {
			t.Fatalf("binary=%v: DecodeClient err: %v", binary, err)
		}
		role, ok := msg.Role("role")
		if !ok || role != game.RoleSchemer {
			t.Fatalf("binary=%v: expected schemer, got %v", binary, role)
		}
		if msg.Seat("target") != 5 || msg.Seat("secondary") != 8 || msg.Seat("missing") != game.NoSeat {
			t.Fatalf("binary=%v: unexpected seats", binary)
		}
	}
}

func TestDecodeClient_RejectsGarbage(t *testing.T) {
	if _, err := DecodeClient([]byte("{not json"), false); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := DecodeClient([]byte(`{"room_id":"x"}`), false); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected missing type to be rejected, got %v", err)
	}
}

func TestDecodeClient_SeatOutOfRange(t *testing.T) {
	msg := &ClientMessage{Payload: map[string]any{"a": float64(10), "b": float64(2.5), "c": float64(0)}}
	for _, k := range []string{"a", "b", "c"} {
		if msg.Seat(k) != game.NoSeat {
			t.Fatalf("%s: expected NoSeat", k)
		}
	}
}

func TestSnapshotPayload_HidesOtherRoles(t *testing.T) {
	snap := game.Snapshot{
		Phase: game.PhaseNightActions,
		Day:   1,
		Seats: []game.SeatSnapshot{
			{Seat: 1, UserID: 11, Role: game.RoleKiller, Alive: true, Submitted: true},
			{Seat: 2, UserID: 12, Role: game.RoleDoctor, Alive: true, Needles: 1},
		},
		Actions: []game.NightAction{{Role: game.RoleKiller, Actor: 1, Target: 2}},
	}

	p := SnapshotPayload(snap, 2)
	seats := p["seats"].([]any)
	if _, ok := seats[0].(map[string]any)["role"]; ok {
		t.Fatalf("seat 1 role leaked to seat 2")
	}
	if _, ok := seats[0].(map[string]any)["submitted"]; ok {
		t.Fatalf("seat 1 submission flag leaked to seat 2")
	}
	if seats[1].(map[string]any)["role"] != "doctor" {
		t.Fatalf("viewer must see own role")
	}
	if _, ok := p["my_action"]; ok {
		t.Fatalf("killer action leaked to seat 2")
	}

	own := SnapshotPayload(snap, 1)
	if own["my_action"] == nil {
		t.Fatalf("actor must see own action")
	}

	snap.Phase = game.PhaseGameOver
	over := SnapshotPayload(snap, game.NoSeat)
	if over["seats"].([]any)[0].(map[string]any)["role"] != "killer" {
		t.Fatalf("roles must be revealed at game over")
	}
}

func TestNightSummaryPayload_OmitsSecrets(t *testing.T) {
	p := NightSummaryPayload(game.NightOutcome{
		Night:       1,
		Successions: []game.Succession{{Seat: 2, From: game.RoleMage, To: game.RoleKiller}},
		Inspections: []game.InspectionReport{{Inspector: 5, Target: 1, Result: game.InspectDangerous}},
		DarkVotes:   map[game.Seat]int{3: 1},
	})
	for _, k := range []string{"successions", "inspections", "dark_votes", "redirect", "guard"} {
		if _, ok := p[k]; ok {
			t.Fatalf("public summary leaked %q", k)
		}
	}
}
