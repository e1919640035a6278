package game

type Winner byte

const (
	WinnerNone Winner = 0
	WinnerGood Winner = 1
	WinnerBad  Winner = 2
	WinnerDraw Winner = 3
)

var WinnerDictionary = map[Winner]string{
	WinnerNone: "none",
	WinnerGood: "good",
	WinnerBad:  "bad",
	WinnerDraw: "draw",
}

func (w Winner) String() string { return WinnerDictionary[w] }

type WinReason string

const (
	ReasonNoSurvivors    WinReason = "no_survivors"
	ReasonOnlyThug       WinReason = "only_thug"
	ReasonCivilianThug   WinReason = "civilian_and_thug"
	ReasonGoodEliminated WinReason = "good_eliminated"
	ReasonBadEliminated  WinReason = "bad_specials_eliminated"
)

// GameResult is terminal once set.
type GameResult struct {
	Winner Winner
	Reason WinReason
	Day    int
}

// EvaluateWin checks terminal conditions in precedence order, draws first.
// roles and alive are indexed by seat. Returns nil while the game continues.
func EvaluateWin(roles [SeatCount + 1]Role, alive [SeatCount + 1]bool) *GameResult {
	var living []Role
	good, badSpecial := 0, 0
	for seat := Seat(1); seat <= SeatCount; seat++ {
		if !alive[seat] || roles[seat] == RoleNone {
			continue
		}
		r := roles[seat]
		living = append(living, r)
		if r.Faction() == FactionGood {
			good++
		}
		if r.BadSpecial() {
			badSpecial++
		}
	}

	switch {
	case len(living) == 0:
		return &GameResult{Winner: WinnerDraw, Reason: ReasonNoSurvivors}
	case len(living) == 1 && living[0] == RoleThug:
		return &GameResult{Winner: WinnerDraw, Reason: ReasonOnlyThug}
	case len(living) == 2 && onlyRoles(living, RoleCivilian, RoleThug):
		return &GameResult{Winner: WinnerDraw, Reason: ReasonCivilianThug}
	case good == 0:
		return &GameResult{Winner: WinnerBad, Reason: ReasonGoodEliminated}
	case badSpecial == 0:
		return &GameResult{Winner: WinnerGood, Reason: ReasonBadEliminated}
	}
	return nil
}

func onlyRoles(living []Role, a, b Role) bool {
	var sawA, sawB bool
	for _, r := range living {
		switch r {
		case a:
			sawA = true
		case b:
			sawB = true
		default:
			return false
		}
	}
	return sawA && sawB
}
