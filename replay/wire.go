package replay

// WireReplayTape is the compact form handed to the browser: frames stay base64 protobuf.
type WireReplayTape struct {
	TapeVersion int               `json:"tapeVersion"`
	RoomID      string            `json:"roomId"`
	HeroSeat    uint8             `json:"heroSeat"`
	Events      []WireReplayEvent `json:"events"`
}

type WireReplayEvent struct {
	Type        string `json:"type"`
	Seq         uint64 `json:"seq"`
	EnvelopeB64 string `json:"envelopeB64"`
}

func ToWireReplayTape(tape *ReplayTape) *WireReplayTape {
	if tape == nil {
		return nil
	}
	out := &WireReplayTape{
		TapeVersion: tape.TapeVersion,
		RoomID:      tape.RoomID,
		HeroSeat:    tape.HeroSeat,
		Events:      make([]WireReplayEvent, 0, len(tape.Events)),
	}
	for _, e := range tape.Events {
		out.Events = append(out.Events, WireReplayEvent{
			Type:        e.Type,
			Seq:         e.Seq,
			EnvelopeB64: e.EnvelopeB64,
		})
	}
	return out
}
