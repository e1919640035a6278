package game

import "fmt"

// Seat is a stable 1..9 slot. NoSeat doubles as "no target".
type Seat uint8

const (
	NoSeat    Seat = 0
	SeatCount      = 9
)

func (s Seat) Valid() bool { return s >= 1 && s <= SeatCount }

// AllSeats lists every seat in ascending order.
func AllSeats() []Seat {
	seats := make([]Seat, 0, SeatCount)
	for s := Seat(1); s <= SeatCount; s++ {
		seats = append(seats, s)
	}
	return seats
}

// Phase is the round state machine tag.
type Phase byte

const (
	PhaseLobby         Phase = 0
	PhaseNightActions  Phase = 1
	PhaseDayDiscussion Phase = 2
	PhaseDayVote       Phase = 3
	PhaseGameOver      Phase = 4
)

var PhaseDictionary = map[Phase]string{
	PhaseLobby:         "lobby",
	PhaseNightActions:  "night_actions",
	PhaseDayDiscussion: "day_discussion",
	PhaseDayVote:       "day_vote",
	PhaseGameOver:      "game_over",
}

func (p Phase) String() string {
	if name, ok := PhaseDictionary[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", byte(p))
}

type Role byte

const (
	RoleNone Role = iota
	RoleKiller
	RoleMage
	RoleSchemer
	RoleThug
	RolePolice
	RoleDoctor
	RoleButterfly
	RoleSniper
	RoleCivilian
)

var RoleDictionary = map[Role]string{
	RoleNone:      "none",
	RoleKiller:    "killer",
	RoleMage:      "mage",
	RoleSchemer:   "schemer",
	RoleThug:      "thug",
	RolePolice:    "police",
	RoleDoctor:    "doctor",
	RoleButterfly: "butterfly",
	RoleSniper:    "sniper",
	RoleCivilian:  "civilian",
}

func (r Role) String() string {
	if name, ok := RoleDictionary[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", byte(r))
}

// ParseRole is the inverse of RoleDictionary.
func ParseRole(name string) (Role, bool) {
	for r, n := range RoleDictionary {
		if n == name && r != RoleNone {
			return r, true
		}
	}
	return RoleNone, false
}

// DealOrder is the fixed role set, zipped with the shuffled seat list at deal time.
var DealOrder = [SeatCount]Role{
	RoleKiller, RoleMage, RoleSchemer, RoleThug,
	RolePolice, RoleDoctor, RoleButterfly, RoleSniper, RoleCivilian,
}

type Faction byte

const (
	FactionNone Faction = 0
	FactionGood Faction = 1
	FactionBad  Faction = 2
)

var FactionDictionary = map[Faction]string{
	FactionNone: "none",
	FactionGood: "good",
	FactionBad:  "bad",
}

func (f Faction) String() string { return FactionDictionary[f] }

// Ability is what a role does at night.
type Ability byte

const (
	AbilityNone     Ability = 0
	AbilityKill     Ability = 1
	AbilityBlock    Ability = 2
	AbilityRedirect Ability = 3
	AbilityGuard    Ability = 4
	AbilityInspect  Ability = 5
	AbilityScheme   Ability = 6 // silence primary target, dark vote on secondary
)

type AttackType byte

const (
	AttackNone  AttackType = 0
	AttackKnife AttackType = 1
	AttackSnipe AttackType = 2
)

// AttackPriority decides the death cause when several attack types overwhelm a guard.
var AttackPriority = []AttackType{AttackKnife, AttackSnipe}

type DeathCause byte

const (
	CauseNone    DeathCause = 0
	CauseKnife   DeathCause = 1
	CauseSnipe   DeathCause = 2
	CauseNeedles DeathCause = 3
	CauseVote    DeathCause = 4
)

var DeathCauseDictionary = map[DeathCause]string{
	CauseNone:    "none",
	CauseKnife:   "knife",
	CauseSnipe:   "snipe",
	CauseNeedles: "needles",
	CauseVote:    "vote",
}

func (c DeathCause) String() string { return DeathCauseDictionary[c] }

func (a AttackType) Cause() DeathCause {
	switch a {
	case AttackKnife:
		return CauseKnife
	case AttackSnipe:
		return CauseSnipe
	default:
		return CauseNone
	}
}

type InspectionResult byte

const (
	InspectInconclusive InspectionResult = 0
	InspectDangerous    InspectionResult = 1
	InspectNotDangerous InspectionResult = 2
)

var InspectionResultDictionary = map[InspectionResult]string{
	InspectInconclusive: "inconclusive",
	InspectDangerous:    "dangerous",
	InspectNotDangerous: "not_dangerous",
}

func (r InspectionResult) String() string { return InspectionResultDictionary[r] }

type roleInfo struct {
	faction    Faction
	badSpecial bool
	ability    Ability
	attack     AttackType
}

// roleTable is the single source for faction and category checks.
var roleTable = map[Role]roleInfo{
	RoleKiller:    {faction: FactionBad, badSpecial: true, ability: AbilityKill, attack: AttackKnife},
	RoleMage:      {faction: FactionBad, badSpecial: true, ability: AbilityBlock},
	RoleSchemer:   {faction: FactionBad, badSpecial: true, ability: AbilityScheme},
	RoleThug:      {faction: FactionBad},
	RolePolice:    {faction: FactionGood, ability: AbilityInspect},
	RoleDoctor:    {faction: FactionGood, ability: AbilityGuard},
	RoleButterfly: {faction: FactionGood, ability: AbilityRedirect},
	RoleSniper:    {faction: FactionGood, ability: AbilityKill, attack: AttackSnipe},
	RoleCivilian:  {faction: FactionGood},
}

func (r Role) Faction() Faction   { return roleTable[r].faction }
func (r Role) BadSpecial() bool   { return roleTable[r].badSpecial }
func (r Role) Ability() Ability   { return roleTable[r].ability }
func (r Role) Attack() AttackType { return roleTable[r].attack }
func (r Role) HasAbility() bool   { return roleTable[r].ability != AbilityNone }

// successionChains maps a faction's primary kill role to the roles that inherit it, in precedence order.
var successionChains = []struct {
	heir  Role
	chain []Role
}{
	{heir: RoleKiller, chain: []Role{RoleMage, RoleSchemer}},
}
