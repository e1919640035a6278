package wire

import (
	"fmt"
	"strings"

	"nightcourt/game"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client frame types.
const (
	ClientQuickStart   = "quickStart"
	ClientCreateRoom   = "createRoom"
	ClientJoinRoom     = "joinRoom"
	ClientLeaveRoom    = "leaveRoom"
	ClientSitDown      = "sitDown"
	ClientStandUp      = "standUp"
	ClientDeal         = "deal"
	ClientNightAction  = "nightAction"
	ClientResolveNight = "resolveNight"
	ClientNextSpeaker  = "nextSpeaker"
	ClientOpenVote     = "openVote"
	ClientDayVote      = "dayVote"
	ClientResolveDay   = "resolveDay"
	ClientReset        = "reset"
	ClientResume       = "resume"
)

// ClientMessage is one client-to-server frame.
type ClientMessage struct {
	Type    string
	RoomID  string
	Payload map[string]any
}

// DecodeClient accepts binary protobuf frames and protojson text frames.
func DecodeClient(data []byte, binary bool) (*ClientMessage, error) {
	var s structpb.Struct
	var err error
	if binary {
		err = proto.Unmarshal(data, &s)
	} else {
		err = protojson.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m := s.AsMap()
	msg := &ClientMessage{}
	msg.Type, _ = m["type"].(string)
	msg.RoomID, _ = m["room_id"].(string)
	msg.Payload, _ = m["payload"].(map[string]any)
	if strings.TrimSpace(msg.Type) == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return msg, nil
}

// EncodeClient is the inverse of DecodeClient, used by tests and tooling.
func EncodeClient(msg *ClientMessage, binary bool) ([]byte, error) {
	fields := map[string]any{"type": msg.Type}
	if msg.RoomID != "" {
		fields["room_id"] = msg.RoomID
	}
	if msg.Payload != nil {
		fields["payload"] = msg.Payload
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	if binary {
		return proto.Marshal(s)
	}
	return protojson.Marshal(s)
}

func (m *ClientMessage) String(key string) string {
	v, _ := m.Payload[key].(string)
	return v
}

// Seat reads a seat number; missing or out-of-range values yield NoSeat.
func (m *ClientMessage) Seat(key string) game.Seat {
	v, ok := m.Payload[key].(float64)
	if !ok || v < 1 || v > game.SeatCount || v != float64(int(v)) {
		return game.NoSeat
	}
	return game.Seat(v)
}

// Role reads a role by name.
func (m *ClientMessage) Role(key string) (game.Role, bool) {
	return game.ParseRole(strings.ToLower(m.String(key)))
}

func (m *ClientMessage) Bool(key string) bool {
	v, _ := m.Payload[key].(bool)
	return v
}
