// Package wsframe implements the restricted WebSocket frame codec used by
// the debugger transport: FIN+Binary only, no extended length fields, no
// continuation frames, no ping/pong/close frames, payloads bounded by the
// negotiated buffer size (never more than 125 bytes). It is grounded in the
// teacher's frame header (src/websocket/frame-header.go) and frame
// (src/websocket/frame.go) types, trimmed to the one opcode and one length
// encoding this protocol ever uses.
package wsframe

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	finBit  = byte(0x80)
	rsvMask = byte(0x70)
	opMask  = byte(0x0F)

	opCodeBinary = byte(0x02)

	maskBit    = byte(0x80)
	lengthMask = byte(0x7F)

	// MaxPayload is the hard ceiling the wire format can express without
	// extended length fields: a 7-bit length byte.
	MaxPayload = 125
)

// Errors returned by Decode. Every one of them is a frame protocol
// violation per spec §7 and is fatal to the session: the caller closes the
// connection without responding.
var (
	ErrShortHeader   = errors.New("wsframe: short frame header")
	ErrReservedBits  = errors.New("wsframe: reserved bits set")
	ErrFINNotSet     = errors.New("wsframe: FIN bit not set (fragmentation unsupported)")
	ErrNotBinary     = errors.New("wsframe: opcode is not binary")
	ErrNotMasked     = errors.New("wsframe: inbound frame is not masked")
	ErrPayloadTooBig = errors.New("wsframe: payload exceeds negotiated receive size")
	ErrShortPayload  = errors.New("wsframe: short frame payload")
)

// Encode builds one outbound frame: FIN=1, opcode=Binary, one-byte length,
// followed by the unmasked payload. The server never masks outbound frames
// (RFC 6455 forbids masking from the server-to-client direction).
//
// len(payload) must not exceed maxSend, which itself must not exceed
// MaxPayload; callers that need to send more must fragment at the message
// layer (protocol package), not here — WebSocket-level fragmentation is
// deliberately unsupported.
func Encode(payload []byte, maxSend int) ([]byte, error) {
	if maxSend > MaxPayload {
		maxSend = MaxPayload
	}
	if len(payload) > maxSend {
		return nil, ErrPayloadTooBig
	}
	out := make([]byte, 2+len(payload))
	out[0] = finBit | opCodeBinary
	out[1] = byte(len(payload))
	copy(out[2:], payload)
	return out, nil
}

// Decode reads one inbound frame from r and returns its unmasked payload.
// It enforces every restriction spec §4.1 names: FIN set, opcode Binary,
// length ≤ maxReceive, mask bit set. Any other combination is reported as
// one of the Err* sentinels above and the session must be torn down.
func Decode(r io.Reader, maxReceive int) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, ErrShortHeader
	}

	if hdr[0]&rsvMask != 0 {
		return nil, ErrReservedBits
	}
	if hdr[0]&finBit == 0 {
		return nil, ErrFINNotSet
	}
	if hdr[0]&opMask != opCodeBinary {
		return nil, ErrNotBinary
	}
	if hdr[1]&maskBit == 0 {
		return nil, ErrNotMasked
	}

	length := int(hdr[1] & lengthMask)
	if maxReceive > MaxPayload {
		maxReceive = MaxPayload
	}
	if length > maxReceive {
		return nil, ErrPayloadTooBig
	}

	var maskKey [4]byte
	if _, err := io.ReadFull(r, maskKey[:]); err != nil {
		return nil, ErrShortPayload
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, ErrShortPayload
		}
		unmask(payload, maskKey)
	}
	return payload, nil
}

// ErrIncomplete means buf does not yet hold a full frame; the caller should
// keep accumulating bytes (e.g. from a non-blocking socket read) and retry.
// It is not a protocol violation.
var ErrIncomplete = errors.New("wsframe: incomplete frame")

// TryDecode attempts to parse one frame out of buf without blocking. It
// supports the session's persistent-offset receive buffer (spec §3): the
// transport appends whatever bytes a non-blocking read produced to buf and
// calls TryDecode again, until it returns something other than
// ErrIncomplete.
//
// On success it returns the unmasked payload and the number of bytes of buf
// the frame consumed, so the caller can shift any trailing bytes (the start
// of the next frame) down to the front of its buffer. On ErrIncomplete,
// consumed is always 0. Any other error is a frame protocol violation.
func TryDecode(buf []byte, maxReceive int) (payload []byte, consumed int, err error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}
	if buf[0]&rsvMask != 0 {
		return nil, 0, ErrReservedBits
	}
	if buf[0]&finBit == 0 {
		return nil, 0, ErrFINNotSet
	}
	if buf[0]&opMask != opCodeBinary {
		return nil, 0, ErrNotBinary
	}
	if buf[1]&maskBit == 0 {
		return nil, 0, ErrNotMasked
	}

	length := int(buf[1] & lengthMask)
	if maxReceive > MaxPayload {
		maxReceive = MaxPayload
	}
	if length > maxReceive {
		return nil, 0, ErrPayloadTooBig
	}

	total := 2 + 4 + length
	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}

	var key [4]byte
	copy(key[:], buf[2:6])
	payload = make([]byte, length)
	copy(payload, buf[6:total])
	unmask(payload, key)
	return payload, total, nil
}

// unmask XORs b in place with the cyclic 4-byte key, per RFC 6455 §5.3.
func unmask(b []byte, key [4]byte) {
	for i := range b {
		b[i] ^= key[i%4]
	}
}

// PutUint32LE / Uint32LE and their 16-bit counterparts sit here rather than
// in the protocol package: they operate on raw frame payload bytes at
// arbitrary offsets, which is a framing concern (spec §9's "manually
// unrolled send/recv of multi-byte integers" note), not a message-semantics
// one.

// PutUint32LE writes v little-endian at b[0:4]. b must have length ≥ 4.
func PutUint32LE(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// Uint32LE reads a little-endian uint32 from b[0:4]. b must have length ≥ 4.
func Uint32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// PutUint16LE writes v little-endian at b[0:2]. b must have length ≥ 2.
func PutUint16LE(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
}

// Uint16LE reads a little-endian uint16 from b[0:2]. b must have length ≥ 2.
func Uint16LE(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}
