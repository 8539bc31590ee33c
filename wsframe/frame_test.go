package wsframe

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 64, 125} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		encoded, err := Encode(payload, 125)
		if err != nil {
			t.Fatalf("Encode(%d bytes): %v", n, err)
		}

		// Client framing: mask the same payload with an arbitrary key and
		// prepend a masked header, to exercise Decode as the server would
		// see an inbound frame.
		key := [4]byte{0x11, 0x22, 0x33, 0x44}
		masked := append([]byte(nil), payload...)
		unmask(masked, key)
		var hdr [2]byte
		hdr[0] = finBit | opCodeBinary
		hdr[1] = maskBit | byte(n)
		in := append(append(hdr[:], key[:]...), masked...)

		got, err := Decode(bytes.NewReader(in), 125)
		if err != nil {
			t.Fatalf("Decode(%d bytes): %v", n, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch for %d bytes: got %x want %x", n, got, payload)
		}
		_ = encoded
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(make([]byte, 126), 125)
	if err != ErrPayloadTooBig {
		t.Fatalf("expected ErrPayloadTooBig, got %v", err)
	}
}

// S3 from spec §8: the exact bytes of a BREAKPOINT_HIT frame.
func TestEncodeKnownBreakpointHitFrame(t *testing.T) {
	payload := []byte{0x10, 0x34, 0x12, 0x07, 0x00, 0x00, 0x00}
	got, err := Encode(payload, 125)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x82, 0x07, 0x10, 0x34, 0x12, 0x07, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X want % X", got, want)
	}
}

func TestDecodeRejectsUnmaskedFrame(t *testing.T) {
	in := []byte{0x82, 0x03, 0x01, 0x02, 0x03}
	_, err := Decode(bytes.NewReader(in), 125)
	if err != ErrNotMasked {
		t.Fatalf("expected ErrNotMasked, got %v", err)
	}
}

// S6 from spec §8: a text frame instead of binary must be rejected.
func TestDecodeRejectsTextFrame(t *testing.T) {
	in := []byte{0x81, 0x82, 0, 0, 0, 0}
	_, err := Decode(bytes.NewReader(in), 125)
	if err != ErrNotBinary {
		t.Fatalf("expected ErrNotBinary, got %v", err)
	}
}

func TestDecodeRejectsMissingFIN(t *testing.T) {
	in := []byte{0x02, 0x80, 0, 0, 0, 0}
	_, err := Decode(bytes.NewReader(in), 125)
	if err != ErrFINNotSet {
		t.Fatalf("expected ErrFINNotSet, got %v", err)
	}
}

func TestDecodeRejectsOversizedLength(t *testing.T) {
	in := make([]byte, 2+4+100)
	in[0] = finBit | opCodeBinary
	in[1] = maskBit | 100
	_, err := Decode(bytes.NewReader(in), 64)
	if err != ErrPayloadTooBig {
		t.Fatalf("expected ErrPayloadTooBig, got %v", err)
	}
}

func TestTryDecodeAccumulatesAcrossCalls(t *testing.T) {
	key := [4]byte{0x01, 0x02, 0x03, 0x04}
	payload := []byte("continue")
	masked := append([]byte(nil), payload...)
	unmask(masked, key)
	full := append([]byte{finBit | opCodeBinary, maskBit | byte(len(payload))}, key[:]...)
	full = append(full, masked...)

	// First call gets only the header; should report ErrIncomplete, not a
	// protocol violation, and must not consume anything.
	_, consumed, err := TryDecode(full[:2], 125)
	if err != ErrIncomplete || consumed != 0 {
		t.Fatalf("partial header: got consumed=%d err=%v", consumed, err)
	}

	// Second call has the whole frame plus one leftover byte of the next one.
	buf := append(append([]byte(nil), full...), 0xAA)
	got, consumed, err := TryDecode(buf, 125)
	if err != nil {
		t.Fatalf("TryDecode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q want %q", got, payload)
	}
	if consumed != len(full) {
		t.Fatalf("consumed = %d, want %d", consumed, len(full))
	}
}

func TestMaskInvolution(t *testing.T) {
	key := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := []byte("the quick brown fox jumps over the lazy dog")
	masked := append([]byte(nil), data...)
	unmask(masked, key)
	roundtrip := append([]byte(nil), masked...)
	unmask(roundtrip, key)
	if !bytes.Equal(roundtrip, data) {
		t.Fatalf("mask is not its own inverse: got %q want %q", roundtrip, data)
	}
}
