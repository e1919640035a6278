package replay

// GameScript describes one scripted game: the deal, the rules and every step
// the players take, in order.
type GameScript struct {
	RoomID   string     `json:"room_id,omitempty"`
	Seed     int64      `json:"seed"`
	Roles    []string   `json:"roles,omitempty"` // Roles[i] is dealt to seat i+1
	Rules    RulesSpec  `json:"rules"`
	Seats    []SeatSpec `json:"seats,omitempty"`
	HeroSeat uint8      `json:"hero_seat,omitempty"`
	Steps    []StepSpec `json:"steps"`
}

type RulesSpec struct {
	NeedleThreshold    int  `json:"needle_threshold,omitempty"`
	DelayedNeedleDeath bool `json:"delayed_needle_death,omitempty"`
	DarkVoteWeight     int  `json:"dark_vote_weight,omitempty"`
	SkipDiscussion     bool `json:"skip_discussion,omitempty"`
	EarlyVoting        bool `json:"early_voting,omitempty"`
}

type SeatSpec struct {
	Seat   uint8  `json:"seat"`
	Name   string `json:"name,omitempty"`
	UserID uint64 `json:"user_id,omitempty"`
}

// StepSpec is one scripted call. Kind is one of the Step* constants.
type StepSpec struct {
	Kind      string `json:"kind"`
	Role      string `json:"role,omitempty"`
	Seat      uint8  `json:"seat,omitempty"` // actor or voter
	Target    uint8  `json:"target,omitempty"`
	Secondary uint8  `json:"secondary,omitempty"`
}

const (
	StepNightAction  = "night_action"
	StepResolveNight = "resolve_night"
	StepNextSpeaker  = "next_speaker"
	StepOpenVote     = "open_vote"
	StepVote         = "vote"
	StepResolveDay   = "resolve_day"
)

type ReplayTape struct {
	TapeVersion int           `json:"tape_version"`
	RoomID      string        `json:"room_id"`
	HeroSeat    uint8         `json:"hero_seat"`
	Events      []ReplayEvent `json:"events"`
}

type ReplayEvent struct {
	Type        string         `json:"type"`
	Seq         uint64         `json:"seq"`
	Value       map[string]any `json:"value,omitempty"`
	EnvelopeB64 string         `json:"envelope_b64,omitempty"`
}
