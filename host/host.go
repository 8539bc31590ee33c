// Package host declares the contracts the protocol engine needs from its
// two embedders (spec §2): the JavaScript parser/interpreter (stack walking,
// source coordinates, expression evaluation, byte-code pointer resolution)
// and the platform port layer (socket, sleep, logging primitives). Neither
// is implemented here; this package is the seam the engine is written
// against, the Go analogue of the original's thin C function-pointer table.
package host

import "context"

// WaitForSourceStatus is the result of a client-source wait cycle.
type WaitForSourceStatus int

const (
	ReceiveFailed WaitForSourceStatus = iota
	Received
	End
	ContextReset
)

func (s WaitForSourceStatus) String() string {
	switch s {
	case ReceiveFailed:
		return "ReceiveFailed"
	case Received:
		return "Received"
	case End:
		return "End"
	case ContextReset:
		return "ContextReset"
	default:
		return "unknown"
	}
}

// SourceCallback is invoked once a CLIENT_SOURCE stream has been fully
// reassembled. Its return value is surfaced back to whatever caller is
// blocked in Engine.WaitForClientSource.
type SourceCallback func(resourceName string, source []byte, user any) (result any, err error)

// Engine is the JavaScript interpreter side of the embedder surface (spec
// §6.4). The protocol engine calls these; it never touches interpreter
// internals directly.
type Engine interface {
	// Backtrace returns up to maxDepth stack frames, innermost first.
	// maxDepth == 0 means unlimited.
	Backtrace(maxDepth uint32) []BacktraceFrame

	// Eval evaluates expr in the current paused context (or, outside a
	// breakpoint, the global context) and returns its string form, or an
	// error if evaluation threw.
	Eval(ctx context.Context, expr string) (result string, err error)

	// ResolveBreakpoint reports whether cp still identifies a live,
	// not-yet-freed compiled function.
	ResolveBreakpoint(cp uint16) bool

	// SetBreakpointEnabled toggles the enabled bit on the breakpoint at
	// (cp, offset). Returns false if cp is unknown.
	SetBreakpointEnabled(cp uint16, offset uint32, enable bool) bool
}

// BacktraceFrame is one stack frame as reported by the host interpreter.
type BacktraceFrame struct {
	CP     uint16
	Offset uint32
}

// Port is the platform primitive surface (spec §6.4): socket lifecycle,
// stop/continue signaling, and output forwarding. An embedder wires this to
// its runtime loop; the protocol engine is the only caller.
type Port interface {
	// IsConnected reports whether a client is currently attached.
	IsConnected() bool

	// Stop requests the interpreter break at its next opportunity.
	Stop()

	// Continue resumes a stopped interpreter.
	Continue()

	// StopAtBreakpoint sets or clears whether hitting an enabled
	// breakpoint should actually pause execution (VmIgnore in the mode
	// flags).
	StopAtBreakpoint(enable bool)

	// SendOutput forwards program output (console.log and friends) to the
	// client as OUTPUT_RESULT, tagged with subtype.
	SendOutput(data []byte, subtype OutputSubtype) error
}

// OutputSubtype mirrors protocol.OutputSubtype without importing protocol,
// keeping this package's dependency surface to the standard library only.
type OutputSubtype byte

const (
	OutputLog     OutputSubtype = 1
	OutputWarning OutputSubtype = 2
	OutputError   OutputSubtype = 3
	OutputTrace   OutputSubtype = 4
	OutputDebug   OutputSubtype = 5
)
