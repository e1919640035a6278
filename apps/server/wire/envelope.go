// Package wire is the frame format shared by the websocket gateway, the
// history archive and the replay generator. Frames are protobuf Struct
// messages so they travel as binary protobuf or as protojson text.
package wire

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server frame types.
const (
	TypeSnapshot     = "snapshot"
	TypeSeatUpdate   = "seatUpdate"
	TypePhaseChange  = "phaseChange"
	TypeRoleAssigned = "roleAssigned"
	TypeActionAck    = "actionAck"
	TypeNightSummary = "nightSummary"
	TypeInspection   = "inspection"
	TypeSpeaker      = "speaker"
	TypeVoteCast     = "voteCast"
	TypeDayOutcome   = "dayOutcome"
	TypeGameResult   = "gameResult"
	TypeNightReview  = "nightReview"
	TypeError        = "error"
)

var ErrMalformed = errors.New("malformed frame")

// Envelope is one server-to-client frame.
type Envelope struct {
	RoomID  string
	GameID  string
	Seq     uint64
	TsMs    int64
	Type    string
	Payload map[string]any
}

// NewEnvelope stamps a payload with room and sequence data. A zero ts uses the wall clock.
func NewEnvelope(roomID string, seq uint64, tsMs int64, typ string, payload map[string]any) *Envelope {
	if tsMs == 0 {
		tsMs = time.Now().UnixMilli()
	}
	return &Envelope{RoomID: roomID, Seq: seq, TsMs: tsMs, Type: typ, Payload: payload}
}

func (e *Envelope) toStruct() (*structpb.Struct, error) {
	fields := map[string]any{
		"room_id": e.RoomID,
		"seq":     float64(e.Seq),
		"ts_ms":   float64(e.TsMs),
		"type":    e.Type,
	}
	if e.GameID != "" {
		fields["game_id"] = e.GameID
	}
	if e.Payload != nil {
		fields["payload"] = e.Payload
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", e.Type, err)
	}
	return s, nil
}

// Encode renders the binary protobuf form.
func Encode(e *Envelope) ([]byte, error) {
	s, err := e.toStruct()
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

// EncodeJSON renders the protojson form used for text frames and HTTP.
func EncodeJSON(e *Envelope) ([]byte, error) {
	s, err := e.toStruct()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

// Decode parses a binary server frame.
func Decode(data []byte) (*Envelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return envelopeFromMap(s.AsMap())
}

// DecodeJSON parses a protojson server frame.
func DecodeJSON(data []byte) (*Envelope, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return envelopeFromMap(s.AsMap())
}

func envelopeFromMap(m map[string]any) (*Envelope, error) {
	typ, _ := m["type"].(string)
	if typ == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	e := &Envelope{Type: typ}
	e.RoomID, _ = m["room_id"].(string)
	e.GameID, _ = m["game_id"].(string)
	if v, ok := m["seq"].(float64); ok {
		e.Seq = uint64(v)
	}
	if v, ok := m["ts_ms"].(float64); ok {
		e.TsMs = int64(v)
	}
	e.Payload, _ = m["payload"].(map[string]any)
	return e, nil
}
