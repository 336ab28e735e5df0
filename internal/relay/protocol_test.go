package relay

import (
	"bytes"
	"testing"
)

func TestUpdateFrameRoundTrip(t *testing.T) {
	frame, err := EncodeUpdate(Update{RoomID: "room-1", Payload: []byte("delta")})
	if err != nil {
		t.Fatalf("EncodeUpdate failed: %v", err)
	}

	if got, err := ParseType(frame); err != nil || got != MessageUpdate {
		t.Fatalf("ParseType: got %v, %v", got, err)
	}

	msg, err := DecodeUpdate(frame)
	if err != nil {
		t.Fatalf("DecodeUpdate failed: %v", err)
	}
	if msg.RoomID != "room-1" || !bytes.Equal(msg.Payload, []byte("delta")) {
		t.Errorf("Round trip mismatch: %+v", msg)
	}
}

func TestInitFrameRoundTrip(t *testing.T) {
	updates := [][]byte{[]byte("u1"), []byte("u2")}
	frame, err := EncodeInit(Init{RoomID: "room-1", Updates: updates})
	if err != nil {
		t.Fatalf("EncodeInit failed: %v", err)
	}

	msg, err := DecodeInit(frame)
	if err != nil {
		t.Fatalf("DecodeInit failed: %v", err)
	}
	if msg.RoomID != "room-1" || len(msg.Updates) != 2 {
		t.Fatalf("Round trip mismatch: %+v", msg)
	}
	if !bytes.Equal(msg.Updates[0], []byte("u1")) || !bytes.Equal(msg.Updates[1], []byte("u2")) {
		t.Error("Catch-up updates out of order or corrupted")
	}
}

func TestParseTypeRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0},
		{99, 1, 2, 3},
	}
	for _, frame := range cases {
		if _, err := ParseType(frame); err == nil {
			t.Errorf("ParseType(%v) should fail", frame)
		}
	}
}

func TestDecodeRejectsWrongType(t *testing.T) {
	initFrame, err := EncodeInit(Init{RoomID: "room-1"})
	if err != nil {
		t.Fatalf("EncodeInit failed: %v", err)
	}
	if _, err := DecodeUpdate(initFrame); err == nil {
		t.Error("DecodeUpdate should reject an INIT frame")
	}

	updateFrame, err := EncodeUpdate(Update{RoomID: "room-1", Payload: []byte("x")})
	if err != nil {
		t.Fatalf("EncodeUpdate failed: %v", err)
	}
	if _, err := DecodeInit(updateFrame); err == nil {
		t.Error("DecodeInit should reject an UPDATE frame")
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	msg := Update{RoomID: "room-1", Payload: []byte("delta")}
	a, err := EncodeUpdate(msg)
	if err != nil {
		t.Fatalf("EncodeUpdate failed: %v", err)
	}
	b, err := EncodeUpdate(msg)
	if err != nil {
		t.Fatalf("EncodeUpdate failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Same message should encode to identical bytes")
	}
}
