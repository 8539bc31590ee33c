// Package transport owns the single TCP socket for a debug session: accept,
// handshake, the non-blocking send/receive loop, and lifecycle. It is
// grounded in the teacher's Handler/Conn pair (betamos-Go-Websocket's
// src/websocket/websocket.go ServeHTTP/loop/close/Send), generalized from a
// net/http.Hijacker-based accept to a raw net.Listener accept since the
// debug channel is not an HTTP server — it upgrades exactly one fixed-path
// request per spec §4.2 and then owns the socket outright.
package transport

import (
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimmy-huang/jerryscript/wsframe"
)

// Config carries the negotiated transmit sizes from
// jerry_debugger_set_transmit_sizes (see SPEC_FULL.md §3): payload sizes
// are kept independent for send and receive. Header sizes are not
// configurable: both are fixed at 2 (wsframe's FIN+opcode byte and
// mask/length byte) plus the 4-byte mask on the receive side.
type Config struct {
	MaxSendPayload    int
	MaxReceivePayload int
	PollTimeout       time.Duration
}

// DefaultConfig matches spec §8 S2: a 128-byte buffer, which after the
// 2-byte outbound header leaves 126; the wire payload cap is 125 either
// way since that is the largest value the one-byte length field can hold
// without extended lengths.
func DefaultConfig() Config {
	return Config{
		MaxSendPayload:    125,
		MaxReceivePayload: 125,
		PollTimeout:       100 * time.Millisecond,
	}
}

// Outcome is the result of a non-blocking Receive call.
type Outcome int

const (
	// NoData means no complete frame is available yet; the caller should
	// resume whatever it was doing and poll again later.
	NoData Outcome = iota
	// FrameReceived means payload holds one complete, validated frame.
	FrameReceived
	// ProtocolError means the peer sent something wsframe rejects; the
	// session must be closed without a response.
	ProtocolError
	// PeerClosed means the TCP connection was closed or reset.
	PeerClosed
)

func (o Outcome) String() string {
	switch o {
	case NoData:
		return "NoData"
	case FrameReceived:
		return "FrameReceived"
	case ProtocolError:
		return "ProtocolError"
	case PeerClosed:
		return "PeerClosed"
	default:
		return "Unknown"
	}
}

// recvBufCap is the accumulation buffer for in-progress frames: header (2)
// + mask (4) + the largest payload this protocol ever negotiates (125).
const recvBufCap = 2 + 4 + wsframe.MaxPayload

// Session is the live debug connection: the single TCP socket, its send and
// receive buffers, and the negotiated sizes. Every field here is owned
// exclusively by the session and is only ever touched from the single
// engine goroutine (spec §5's "no locks" rule).
type Session struct {
	conn   net.Conn
	logger zerolog.Logger
	cfg    Config

	recvBuf [recvBufCap]byte
	recvLen int

	open bool
}

// Accept performs one blocking accept on l, the handshake, and returns an
// open Session. The accepted connection is closed and an error returned if
// the handshake is malformed (spec §4.2, §7: "close socket without
// response").
func Accept(l net.Listener, cfg Config, logger zerolog.Logger) (*Session, error) {
	conn, err := l.Accept()
	if err != nil {
		return nil, err
	}

	resp, err := wsframe.Accept(conn)
	if err != nil {
		logger.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("malformed debugger handshake")
		conn.Close()
		return nil, err
	}
	if _, err := conn.Write(resp); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Session{
		conn:   conn,
		logger: logger.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		cfg:    cfg,
		open:   true,
	}
	s.logger.Debug().Msg("debugger client connected")
	return s, nil
}

// Send frames payload and writes it to the socket, retrying on a transient
// write timeout (the closest Go equivalent of a WouldBlock busy loop on a
// genuinely non-blocking socket — see spec §5 "back-pressure") until it
// fully lands or a hard error occurs, which closes the session.
func (s *Session) Send(payload []byte) error {
	if !s.open {
		return net.ErrClosed
	}
	frame, err := wsframe.Encode(payload, s.cfg.MaxSendPayload)
	if err != nil {
		return err
	}

	for {
		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.PollTimeout))
		n, err := s.conn.Write(frame)
		if err == nil {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			frame = frame[n:]
			continue
		}
		s.closeLocked()
		return err
	}
}

// Receive performs one non-blocking poll of the socket: it reads whatever
// bytes are currently available (bounded by pollTimeout, the Go idiom for a
// non-blocking read — see spec §9's note on replacing the sleep-based poll
// loop) into the session's persistent receive buffer, and tries to parse a
// complete frame out of it. A partially-received frame is retained across
// calls, matching spec §3's "persistent offset for in-progress frames".
func (s *Session) Receive(pollTimeout time.Duration) (Outcome, []byte) {
	if !s.open {
		return PeerClosed, nil
	}

	s.conn.SetReadDeadline(time.Now().Add(pollTimeout))
	n, err := s.conn.Read(s.recvBuf[s.recvLen:])
	s.recvLen += n
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// No new bytes this poll; fall through to see if a previously
			// buffered partial frame is now complete (it never will be
			// without new bytes, but re-running the parser costs nothing
			// and keeps this function's control flow single-path).
		} else {
			s.closeLocked()
			return PeerClosed, nil
		}
	}

	payload, consumed, derr := wsframe.TryDecode(s.recvBuf[:s.recvLen], s.cfg.MaxReceivePayload)
	switch {
	case derr == nil:
		remaining := s.recvLen - consumed
		copy(s.recvBuf[:remaining], s.recvBuf[consumed:s.recvLen])
		s.recvLen = remaining
		return FrameReceived, payload
	case errors.Is(derr, wsframe.ErrIncomplete):
		return NoData, nil
	default:
		s.logger.Error().Err(derr).Msg("frame protocol violation")
		s.closeLocked()
		return ProtocolError, nil
	}
}

// Close tears down the TCP connection. Idempotent, matching the teacher's
// Conn.close contract.
func (s *Session) Close() {
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if !s.open {
		return
	}
	s.open = false
	s.conn.Close()
	s.logger.Debug().Msg("debugger session closed")
}

// Open reports whether the session still owns a live TCP connection.
func (s *Session) Open() bool {
	return s.open
}

// RemoteAddr returns the peer's address for logging by higher layers.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
