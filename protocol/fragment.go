package protocol

import "errors"

// StreamKind identifies which inbound multi-fragment stream is open.
type StreamKind int

const (
	StreamNone StreamKind = iota
	StreamClientSource
	StreamEval
	StreamThrow
)

// ErrStreamOverflow is returned when more bytes arrive than the stream's
// announced total_size.
var ErrStreamOverflow = errors.New("protocol: fragment stream exceeded its announced size")

// Assembler accumulates an inbound fragmented payload (spec §4.4: "the
// engine records that a continuation stream ... is expected; any other
// inbound type while a stream is open is a protocol error"). One Assembler
// lives on the session for its whole lifetime; Open/Append/Reset mutate it
// in place so the engine never has to special-case "no stream yet".
type Assembler struct {
	kind  StreamKind
	total uint32
	buf   []byte
}

// Open starts a new stream. Any previously buffered data is discarded.
func (a *Assembler) Open(kind StreamKind, hdr FragmentHeader) error {
	a.kind = kind
	a.total = hdr.TotalSize
	a.buf = a.buf[:0]
	return a.Append(hdr.Chunk)
}

// Append adds chunk to the in-progress stream.
func (a *Assembler) Append(chunk []byte) error {
	if uint32(len(a.buf)+len(chunk)) > a.total {
		return ErrStreamOverflow
	}
	a.buf = append(a.buf, chunk...)
	return nil
}

// Active reports whether a stream is currently open.
func (a *Assembler) Active() bool {
	return a.kind != StreamNone
}

// Kind returns which stream is open (StreamNone if none is).
func (a *Assembler) Kind() StreamKind {
	return a.kind
}

// Complete reports whether every announced byte has arrived.
func (a *Assembler) Complete() bool {
	return a.kind != StreamNone && uint32(len(a.buf)) == a.total
}

// Data returns the assembled payload. Only meaningful once Complete
// reports true.
func (a *Assembler) Data() []byte {
	return a.buf
}

// Reset closes the stream, whether or not it completed (used both on
// normal completion and on session teardown mid-stream).
func (a *Assembler) Reset() {
	a.kind = StreamNone
	a.total = 0
	a.buf = a.buf[:0]
}
