package game

import "testing"

func TestEvaluateWin(t *testing.T) {
	var roles [SeatCount + 1]Role
	for i, r := range DealOrder {
		roles[i+1] = r
	}
	// seats by DealOrder: 1 killer, 2 mage, 3 schemer, 4 thug, 5 police, 6 doctor, 7 butterfly, 8 sniper, 9 civilian
	cases := []struct {
		name  string
		alive []Seat
		want  Winner
		why   WinReason
	}{
		{name: "nobody alive", alive: nil, want: WinnerDraw, why: ReasonNoSurvivors},
		{name: "only thug", alive: []Seat{4}, want: WinnerDraw, why: ReasonOnlyThug},
		{name: "civilian and thug", alive: []Seat{4, 9}, want: WinnerDraw, why: ReasonCivilianThug},
		{name: "only civilian", alive: []Seat{9}, want: WinnerGood, why: ReasonBadEliminated},
		{name: "bad specials left", alive: []Seat{1, 4}, want: WinnerBad, why: ReasonGoodEliminated},
		{name: "thug with good specials", alive: []Seat{4, 5, 6}, want: WinnerGood, why: ReasonBadEliminated},
		{name: "mixed continues", alive: []Seat{2, 9}, want: WinnerNone},
		{name: "full table continues", alive: AllSeats(), want: WinnerNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var alive [SeatCount + 1]bool
			for _, s := range tc.alive {
				alive[s] = true
			}
			res := EvaluateWin(roles, alive)
			if tc.want == WinnerNone {
				if res != nil {
					t.Fatalf("expected game to continue, got %+v", res)
				}
				return
			}
			if res == nil {
				t.Fatalf("expected %s, game continued", tc.want)
			}
			if res.Winner != tc.want || res.Reason != tc.why {
				t.Fatalf("expected %s/%s, got %s/%s", tc.want, tc.why, res.Winner, res.Reason)
			}
		})
	}
}
