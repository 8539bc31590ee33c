package wsframe

import (
	"bytes"
	"strings"
	"testing"
)

// S1 from spec §8: a known key/accept pair from RFC 6455's own example.
func TestAcceptKnownVector(t *testing.T) {
	req := "GET /jerry-debugger HTTP/1.1\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"
	resp, err := Accept(strings.NewReader(req))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !bytes.HasPrefix(resp, []byte("HTTP/1.1 101 Switching Protocols")) {
		t.Fatalf("response does not start with 101: %q", resp)
	}
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if !bytes.Contains(resp, []byte(want)) {
		t.Fatalf("response missing expected accept token %q: %q", want, resp)
	}
}

func TestAcceptWrongPath(t *testing.T) {
	req := "GET /other HTTP/1.1\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"
	_, err := Accept(strings.NewReader(req))
	if err != ErrMalformedHandshake {
		t.Fatalf("expected ErrMalformedHandshake, got %v", err)
	}
}

func TestAcceptMissingKey(t *testing.T) {
	req := "GET /jerry-debugger HTTP/1.1\r\nHost: x\r\n\r\n"
	_, err := Accept(strings.NewReader(req))
	if err != ErrMalformedHandshake {
		t.Fatalf("expected ErrMalformedHandshake, got %v", err)
	}
}

func TestAcceptOversizedRequest(t *testing.T) {
	req := "GET /jerry-debugger HTTP/1.1\r\n" + strings.Repeat("X-Pad: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\r\n", 20)
	_, err := Accept(strings.NewReader(req))
	if err == nil {
		t.Fatal("expected an error for an oversized, never-terminated request")
	}
}
