package transport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func dialAndHandshake(t *testing.T, addr string) net.Conn {
	t.Helper()
	client, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	req := "GET /jerry-debugger HTTP/1.1\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"
	if _, err := client.Write([]byte(req)); err != nil {
		t.Fatalf("write request: %v", err)
	}
	return client
}

func TestAcceptHandshakeRoundTrip(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	sessCh := make(chan *Session, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := Accept(l, DefaultConfig(), zerolog.Nop())
		if err != nil {
			errCh <- err
			return
		}
		sessCh <- s
	}()

	client := dialAndHandshake(t, l.Addr().String())
	defer client.Close()

	buf := make([]byte, 256)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("reading handshake response: %v", err)
	}
	resp := string(buf[:n])
	if want := "101 Switching Protocols"; !contains(resp, want) {
		t.Fatalf("response missing %q: %q", want, resp)
	}

	select {
	case s := <-sessCh:
		if !s.Open() {
			t.Fatal("expected session to be open after handshake")
		}
		s.Close()
	case err := <-errCh:
		t.Fatalf("Accept returned error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Accept")
	}
}

func TestSendProducesOneFramePerCall(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	sessCh := make(chan *Session, 1)
	go func() {
		s, err := Accept(l, DefaultConfig(), zerolog.Nop())
		if err == nil {
			sessCh <- s
		}
	}()
	client := dialAndHandshake(t, l.Addr().String())
	defer client.Close()

	discard := make([]byte, 256)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Read(discard); err != nil {
		t.Fatalf("reading handshake response: %v", err)
	}

	s := <-sessCh
	defer s.Close()

	payload := []byte{0x10, 0x34, 0x12, 0x07, 0x00, 0x00, 0x00}
	if err := s.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := []byte{0x82, 0x07, 0x10, 0x34, 0x12, 0x07, 0x00, 0x00, 0x00}
	got := make([]byte, len(want))
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(client, got); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame mismatch at %d: got % X want % X", i, got, want)
		}
	}
}

func TestReceiveReturnsNoDataWithoutInput(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	sessCh := make(chan *Session, 1)
	go func() {
		s, err := Accept(l, DefaultConfig(), zerolog.Nop())
		if err == nil {
			sessCh <- s
		}
	}()
	client := dialAndHandshake(t, l.Addr().String())
	defer client.Close()

	discard := make([]byte, 256)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	client.Read(discard)

	s := <-sessCh
	defer s.Close()

	outcome, payload := s.Receive(10 * time.Millisecond)
	if outcome != NoData {
		t.Fatalf("expected NoData, got %v (%v)", outcome, payload)
	}
}

func TestReceiveDetectsProtocolViolation(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	sessCh := make(chan *Session, 1)
	go func() {
		s, err := Accept(l, DefaultConfig(), zerolog.Nop())
		if err == nil {
			sessCh <- s
		}
	}()
	client := dialAndHandshake(t, l.Addr().String())
	defer client.Close()

	discard := make([]byte, 256)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	client.Read(discard)

	// Text frame (opcode 1) instead of binary, per S6.
	client.Write([]byte{0x81, 0x82, 0, 0, 0, 0})

	s := <-sessCh
	defer s.Close()

	var outcome Outcome
	for i := 0; i < 20; i++ {
		outcome, _ = s.Receive(50 * time.Millisecond)
		if outcome != NoData {
			break
		}
	}
	if outcome != ProtocolError {
		t.Fatalf("expected ProtocolError, got %v", outcome)
	}
	if s.Open() {
		t.Fatal("session should be closed after a protocol violation")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
