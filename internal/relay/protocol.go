package relay

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MessageType is the first byte of every frame on the relay channel
type MessageType byte

const (
	// MessageInit is the join acknowledgment, carrying catch-up content
	MessageInit MessageType = 0

	// MessageUpdate is a broadcast delta
	MessageUpdate MessageType = 1
)

// Init acknowledges a join and carries the room's retained updates so a
// late joiner catches up. Room keys never travel on this channel.
type Init struct {
	RoomID  string   `cbor:"room_id"`
	Updates [][]byte `cbor:"updates,omitempty"`
}

// Update is one broadcast delta
type Update struct {
	RoomID  string `cbor:"room_id"`
	Payload []byte `cbor:"payload"`
}

// Frame bodies use deterministic CBOR: same logical message, same bytes
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("relay: CBOR encoder initialization failed: " + err.Error())
	}
}

func encodeFrame(t MessageType, v interface{}) ([]byte, error) {
	body, err := encMode.Marshal(v)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, 1+len(body))
	frame = append(frame, byte(t))
	return append(frame, body...), nil
}

// EncodeInit builds an INIT frame
func EncodeInit(msg Init) ([]byte, error) {
	return encodeFrame(MessageInit, msg)
}

// EncodeUpdate builds an UPDATE frame
func EncodeUpdate(msg Update) ([]byte, error) {
	return encodeFrame(MessageUpdate, msg)
}

// ParseType extracts and validates the frame's message type
func ParseType(frame []byte) (MessageType, error) {
	if len(frame) < 2 {
		return 0, fmt.Errorf("frame too short: %d bytes", len(frame))
	}
	t := MessageType(frame[0])
	if t != MessageInit && t != MessageUpdate {
		return 0, fmt.Errorf("unknown message type: %d", frame[0])
	}
	return t, nil
}

// DecodeInit parses an INIT frame
func DecodeInit(frame []byte) (*Init, error) {
	if t, err := ParseType(frame); err != nil {
		return nil, err
	} else if t != MessageInit {
		return nil, fmt.Errorf("expected INIT frame, got type %d", t)
	}
	var msg Init
	if err := cbor.Unmarshal(frame[1:], &msg); err != nil {
		return nil, fmt.Errorf("decode INIT: %w", err)
	}
	return &msg, nil
}

// DecodeUpdate parses an UPDATE frame
func DecodeUpdate(frame []byte) (*Update, error) {
	if t, err := ParseType(frame); err != nil {
		return nil, err
	} else if t != MessageUpdate {
		return nil, fmt.Errorf("expected UPDATE frame, got type %d", t)
	}
	var msg Update
	if err := cbor.Unmarshal(frame[1:], &msg); err != nil {
		return nil, fmt.Errorf("decode UPDATE: %w", err)
	}
	return &msg, nil
}
