package binfmt

import "testing"

func TestU16RoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	PutU16(buf, 2, 0xBEEF)
	if got := GetU16(buf, 2); got != 0xBEEF {
		t.Fatalf("got %#x, want %#x", got, 0xBEEF)
	}
	// Confirm big-endian byte order explicitly.
	if buf[2] != 0xBE || buf[3] != 0xEF {
		t.Fatalf("expected big-endian bytes, got % x", buf[2:4])
	}
}

func TestU32RoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	PutU32(buf, 0, 0xDEADBEEF)
	if got := GetU32(buf, 0); got != 0xDEADBEEF {
		t.Fatalf("got %#x, want %#x", got, 0xDEADBEEF)
	}
	if buf[0] != 0xDE || buf[1] != 0xAD || buf[2] != 0xBE || buf[3] != 0xEF {
		t.Fatalf("expected big-endian bytes, got % x", buf[0:4])
	}
}

func TestZeroValues(t *testing.T) {
	buf := make([]byte, 4)
	if GetU16(buf, 0) != 0 {
		t.Fatalf("expected zero u16")
	}
	if GetU32(buf, 0) != 0 {
		t.Fatalf("expected zero u32")
	}
}
