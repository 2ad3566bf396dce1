package wire

import (
	"bytes"
	"io"
	"testing"

	"ringscoop/internal/flavor"
	"ringscoop/internal/token"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	want := Envelope{
		Type:    KindToken,
		RobotID: 3,
		Token:   &token.Flavor{ID: flavor.Vanilla, Amount: 500},
	}
	if err := enc.Encode(want); err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewDecoder(&buf)
	got, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != want.Type || got.RobotID != want.RobotID {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", got, want)
	}
	if got.Token == nil || got.Token.ID != flavor.Vanilla || got.Token.Amount != 500 {
		t.Fatalf("expected token payload preserved, got %+v", got.Token)
	}
}

func TestDecodeReturnsEOFOnCleanClose(t *testing.T) {
	dec := NewDecoder(bytes.NewReader(nil))
	if _, err := dec.Decode(); err != io.EOF {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}

func TestMultipleEnvelopesFrameSeparately(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	_ = enc.Encode(Envelope{Type: KindNewOrder, OrderID: "a"})
	_ = enc.Encode(Envelope{Type: KindOrderComplete, OrderID: "b"})

	dec := NewDecoder(&buf)
	first, err := dec.Decode()
	if err != nil || first.OrderID != "a" {
		t.Fatalf("expected first envelope order a, got %+v err=%v", first, err)
	}
	second, err := dec.Decode()
	if err != nil || second.OrderID != "b" {
		t.Fatalf("expected second envelope order b, got %+v err=%v", second, err)
	}
}

func TestRoleByteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRole(&buf, RoleLeaderAnnounce, 5); err != nil {
		t.Fatalf("write role: %v", err)
	}
	role, leaderID, err := ReadRole(&buf)
	if err != nil {
		t.Fatalf("read role: %v", err)
	}
	if role != RoleLeaderAnnounce || leaderID != 5 {
		t.Fatalf("expected leader-announce role with id 5, got role=%v id=%d", role, leaderID)
	}
}

func TestRoleByteNextAndPrevHaveNoTrailer(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRole(&buf, RoleNextRobot, 0); err != nil {
		t.Fatalf("write role: %v", err)
	}
	if buf.Len() != 1 {
		t.Fatalf("expected exactly one byte written for next-robot role, got %d", buf.Len())
	}
}

func TestRegisterRolesRoundTrip(t *testing.T) {
	for _, role := range []Role{RoleRobotRegister, RoleScreenRegister} {
		var buf bytes.Buffer
		if err := WriteRole(&buf, role, 0); err != nil {
			t.Fatalf("write role %v: %v", role, err)
		}
		got, _, err := ReadRole(&buf)
		if err != nil {
			t.Fatalf("read role %v: %v", role, err)
		}
		if got != role {
			t.Fatalf("expected role %v, got %v", role, got)
		}
	}
}
