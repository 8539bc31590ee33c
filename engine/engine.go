// Package engine is the protocol engine (spec §4.5): the mode state
// machine that sits between the host interpreter and the wire. It is the
// only component the host calls directly; everything below it (message
// codec, frame codec, transport) is reached only through this package.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimmy-huang/jerryscript/bytecode"
	"github.com/jimmy-huang/jerryscript/host"
	"github.com/jimmy-huang/jerryscript/modeflags"
	"github.com/jimmy-huang/jerryscript/protocol"
	"github.com/jimmy-huang/jerryscript/transport"
)

// MessageFrequency is how many interpreter instructions elapse between
// Poll calls, mirroring the original's message_delay countdown (spec §5).
const MessageFrequency = 5

// BreakpointPollInterval is the read deadline each poll of the BREAKPOINT,
// PARSER_WAIT and CLIENT_SOURCE idle loops waits for input, bounding
// worst-case response latency at 100ms as spec §5 requires.
const BreakpointPollInterval = 100 * time.Millisecond

// ErrProtocolViolation is returned whenever a client message is disallowed
// in the engine's current mode or unknown (spec §7 "Message protocol
// violation"); a truncated payload surfaces as protocol.ErrTruncated
// instead. Either way the caller must close the session.
var ErrProtocolViolation = errors.New("engine: message protocol violation")

// Engine drives one debug session: mode flags, the pending-free byte-code
// table, the in-progress fragment assembler, and the transport session
// underneath. One Engine per TCP connection, created fresh on every accept.
type Engine struct {
	sess   *transport.Session
	logger zerolog.Logger

	flags modeflags.Flags
	codes *bytecode.Table
	asm   protocol.Assembler

	hostEngine host.Engine
	port       host.Port

	cpointerSize uint8

	// pendingClientSource holds a just-completed CLIENT_SOURCE stream,
	// handed off from dispatchFragment (inside Poll) to whichever call to
	// WaitForClientSource is blocked waiting for it.
	pendingClientSource []byte
}

// New wires a freshly accepted session to the host contracts and sends the
// initial CONFIGURATION message (spec §8 S2). The returned Engine has
// Connected set and is ready for Poll/BreakpointHit/WaitForClientSource.
func New(sess *transport.Session, he host.Engine, port host.Port, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		sess:         sess,
		logger:       logger,
		codes:        bytecode.NewTable(),
		hostEngine:   he,
		port:         port,
		cpointerSize: 2,
	}
	e.flags.Insert(modeflags.Connected)

	// All currently supported embedder targets (amd64, arm64) are little-
	// endian; the flag is carried on the wire rather than hardcoded at the
	// client because the original protocol predates those being the only
	// realistic targets.
	const hostIsLittleEndian = true

	cfg := protocol.EncodeConfiguration(byte(protocol.MaxPayload), e.cpointerSize, hostIsLittleEndian, 2)
	if err := e.sess.Send(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Flags exposes the mode bitset for logging and tests.
func (e *Engine) Flags() *modeflags.Flags {
	return &e.flags
}

// ByteCodes exposes the pending-free table for tests and for the embedder's
// own byte-code-free hook (IssueByteCode/ReleaseByteCode below wrap it).
func (e *Engine) ByteCodes() *bytecode.Table {
	return e.codes
}

// SendMemstats replies to a client MEMSTATS request with current allocation
// counters. The embedder gathers these from the host engine and passes them
// in; the engine itself has no visibility into allocator internals.
func (e *Engine) SendMemstats(m protocol.Memstats) error {
	return e.sess.Send(protocol.EncodeMemstats(m))
}

// SendOutput forwards program output (console.log and friends) to the
// client as OUTPUT_RESULT[_END] (spec §6.4 send_output).
func (e *Engine) SendOutput(data []byte, subtype host.OutputSubtype) error {
	for _, chunk := range protocol.EncodeOutputResult(data, protocol.OutputSubtype(subtype), protocol.MaxPayload) {
		if err := e.sess.Send(chunk); err != nil {
			return err
		}
	}
	return nil
}

// ParseFunctionInfo carries one compiled function's parse-notification
// payload (spec §2/§4.5's "parse events" host-engine integration point;
// §6.2 types 2, 4, 5, 6, 7-12, 13). The host calls ParseFunction once per
// function it finishes compiling.
type ParseFunctionInfo struct {
	Line, Column      uint32
	SourceName        []byte // resource name; omitted (no frame sent) if empty
	Source            []byte // full source text; omitted (no frame sent) if empty
	FunctionName      []byte
	ByteCode          bytecode.Ref
	BreakpointLines   []uint32
	BreakpointOffsets []uint32
}

// ParseFunction emits the parse-notification sequence spec §2/§4.5 name as
// a mandatory host-engine integration point: PARSE_FUNCTION, optionally
// SOURCE_CODE_NAME[_END] and SOURCE_CODE[_END], FUNCTION_NAME[_END],
// BYTE_CODE_CP, BREAKPOINT_LIST, BREAKPOINT_OFFSET_LIST, and finally
// WAITING_AFTER_PARSE if the client has requested PARSER_CONFIG(wait=true).
// When WAITING_AFTER_PARSE is sent, ParseFunction sets ParserWaitMode and
// blocks until the client sends PARSER_RESUME, the resolution of spec §9's
// previously write-only ParserWait flag.
func (e *Engine) ParseFunction(ctx context.Context, info ParseFunctionInfo) error {
	if err := e.sess.Send(protocol.EncodeParseFunction(info.Line, info.Column)); err != nil {
		return err
	}
	if len(info.SourceName) > 0 {
		for _, chunk := range protocol.EncodeSourceCodeName(info.SourceName, protocol.MaxPayload) {
			if err := e.sess.Send(chunk); err != nil {
				return err
			}
		}
	}
	if len(info.Source) > 0 {
		for _, chunk := range protocol.EncodeSourceCode(info.Source, protocol.MaxPayload) {
			if err := e.sess.Send(chunk); err != nil {
				return err
			}
		}
	}
	for _, chunk := range protocol.EncodeFunctionName(info.FunctionName, protocol.MaxPayload) {
		if err := e.sess.Send(chunk); err != nil {
			return err
		}
	}
	if err := e.IssueByteCode(info.ByteCode); err != nil {
		return err
	}
	for _, chunk := range protocol.EncodeBreakpointList(info.BreakpointLines, protocol.MaxPayload) {
		if err := e.sess.Send(chunk); err != nil {
			return err
		}
	}
	for _, chunk := range protocol.EncodeBreakpointOffsetList(info.BreakpointOffsets, protocol.MaxPayload) {
		if err := e.sess.Send(chunk); err != nil {
			return err
		}
	}

	if !e.flags.Has(modeflags.ParserWait) {
		return nil
	}
	if err := e.sess.Send(protocol.EncodeWaitingAfterParse()); err != nil {
		return err
	}
	e.flags.Insert(modeflags.ParserWaitMode)
	return e.idleUntilParserResume(ctx)
}

// ParseError notifies the client that the host failed to parse a resource
// (spec §6.2 type 2, PARSE_ERROR).
func (e *Engine) ParseError() error {
	return e.sess.Send(protocol.EncodeParseError())
}

// idleUntilParserResume blocks in ParserWaitMode, polling on the same
// 100ms-bounded cadence as idleUntilResume (spec §5), until the client
// sends PARSER_RESUME, which clears ParserWaitMode in dispatch.
func (e *Engine) idleUntilParserResume(ctx context.Context) error {
	for e.flags.Has(modeflags.ParserWaitMode) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !e.poll(BreakpointPollInterval) {
			return nil
		}
	}
	return nil
}

// IssueByteCode records a newly compiled function's CP and notifies the
// client (spec §4.6, BYTE_CODE_CP).
func (e *Engine) IssueByteCode(ref bytecode.Ref) error {
	e.codes.Issue(ref)
	return e.sess.Send(protocol.EncodeByteCodeCP(uint16(ref)))
}

// ReleaseByteCode is called by the host when it is done with a compiled
// function whose CP was ever exported. It notifies the client and enqueues
// the pending-free node; actual release waits for Acknowledge via a
// FREE_BYTE_CODE_CP message (spec §4.6, scenario S5).
func (e *Engine) ReleaseByteCode(ref bytecode.Ref, size uint32) error {
	if err := e.codes.MarkPendingFree(ref, size); err != nil {
		return err
	}
	return e.sess.Send(protocol.EncodeReleaseByteCodeCP(uint16(ref)))
}

// allowedInRun is the command set legal in RUN mode (spec §4.5).
var allowedInRun = map[protocol.In]bool{
	protocol.InFreeByteCodeCP:   true,
	protocol.InUpdateBreakpoint: true,
	protocol.InExceptionConfig:  true,
	protocol.InParserConfig:     true,
	protocol.InMemstats:         true,
	protocol.InStop:             true,
	protocol.InClientSource:     true,
	protocol.InClientSourcePart: true,
	protocol.InNoMoreSources:    true,
	protocol.InContextReset:     true,
}

// breakpointExtra is added to allowedInRun while BreakpointMode is set.
var breakpointExtra = map[protocol.In]bool{
	protocol.InContinue:     true,
	protocol.InStep:         true,
	protocol.InNext:         true,
	protocol.InFinish:       true,
	protocol.InGetBacktrace: true,
	protocol.InEval:         true,
	protocol.InEvalPart:     true,
	protocol.InThrow:        true,
	protocol.InThrowPart:    true,
}

// allowedSet computes the admissible command set for the engine's current
// mode. ClientSourceMode and BreakpointMode are mutually exclusive by
// construction (spec §8 invariant 4); when ParserWaitMode and
// ClientSourceMode could otherwise both apply, ClientSourceMode is treated
// as dominant per spec §9's open question resolution: its legal set is
// exactly the RUN-mode set, so while it is set PARSER_RESUME is not
// accepted even if ParserWaitMode is also set.
func (e *Engine) allowedSet() map[protocol.In]bool {
	switch {
	case e.flags.Has(modeflags.BreakpointMode):
		return union(allowedInRun, breakpointExtra)
	case e.flags.Has(modeflags.ParserWaitMode) && !e.flags.Has(modeflags.ClientSourceMode):
		return union(allowedInRun, map[protocol.In]bool{protocol.InParserResume: true})
	default:
		return allowedInRun
	}
}

func union(a, b map[protocol.In]bool) map[protocol.In]bool {
	out := make(map[protocol.In]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// Poll performs one non-blocking check of the transport and dispatches at
// most one complete inbound message. The host interpreter calls this every
// MessageFrequency instructions (spec §5). Returns false once the session
// has been closed (by a protocol violation, transport error, or explicit
// disconnect), at which point the caller must stop polling this Engine.
func (e *Engine) Poll() bool {
	return e.poll(0)
}

func (e *Engine) poll(timeout time.Duration) bool {
	if !e.sess.Open() {
		e.teardown()
		return false
	}
	outcome, payload := e.sess.Receive(timeout)
	switch outcome {
	case transport.NoData:
		return true
	case transport.PeerClosed, transport.ProtocolError:
		e.teardown()
		return false
	case transport.FrameReceived:
		if err := e.dispatch(payload); err != nil {
			e.logger.Error().Err(err).Msg("closing session after message protocol violation")
			e.sess.Close()
			e.teardown()
			return false
		}
		return e.sess.Open()
	default:
		return true
	}
}

func (e *Engine) teardown() {
	released := e.codes.ReleaseAll()
	if len(released) > 0 {
		e.logger.Debug().Int("count", len(released)).Msg("released pending byte-code on disconnect")
	}
	e.asm.Reset()
	e.flags.Reset()
}

func (e *Engine) dispatch(frame []byte) error {
	if len(frame) < 1 {
		return ErrProtocolViolation
	}
	msgType := protocol.In(frame[0])
	body := frame[1:]

	if e.asm.Active() {
		return e.dispatchFragment(msgType, body)
	}

	if !e.allowedSet()[msgType] {
		return ErrProtocolViolation
	}

	switch msgType {
	case protocol.InFreeByteCodeCP:
		cp, err := protocol.FreeByteCodeCP(body)
		if err != nil {
			return err
		}
		if err := e.codes.Acknowledge(bytecode.Ref(cp)); err != nil {
			return err
		}
		return nil

	case protocol.InUpdateBreakpoint:
		enable, cp, offset, err := protocol.UpdateBreakpoint(body)
		if err != nil {
			return err
		}
		if !e.codes.IsValid(bytecode.Ref(cp)) {
			return ErrProtocolViolation
		}
		if !e.hostEngine.SetBreakpointEnabled(cp, offset, enable) {
			return ErrProtocolViolation
		}
		return nil

	case protocol.InExceptionConfig:
		enable, err := protocol.ExceptionConfig(body)
		if err != nil {
			return err
		}
		e.flags.Set(modeflags.VmIgnoreException, !enable)
		return nil

	case protocol.InParserConfig:
		wait, err := protocol.ParserConfig(body)
		if err != nil {
			return err
		}
		e.flags.Set(modeflags.ParserWait, wait)
		return nil

	case protocol.InMemstats:
		return nil // embedder fills in via a separate SendMemstats call

	case protocol.InStop:
		e.port.Stop()
		return nil

	case protocol.InParserResume:
		e.flags.Remove(modeflags.ParserWaitMode)
		return nil

	case protocol.InClientSource:
		hdr, err := protocol.ClientSourceOpen(body)
		if err != nil {
			return err
		}
		return e.asm.Open(protocol.StreamClientSource, hdr)

	case protocol.InNoMoreSources:
		e.flags.Insert(modeflags.ClientNoSource)
		return nil

	case protocol.InContextReset:
		e.flags.Insert(modeflags.ContextResetMode)
		return nil

	case protocol.InContinue, protocol.InStep, protocol.InNext, protocol.InFinish:
		return e.handleResume(msgType)

	case protocol.InGetBacktrace:
		maxDepth, err := protocol.GetBacktrace(body)
		if err != nil {
			return err
		}
		return e.sendBacktrace(maxDepth)

	case protocol.InEval:
		hdr, err := protocol.EvalOpen(body)
		if err != nil {
			return err
		}
		return e.asm.Open(protocol.StreamEval, hdr)

	case protocol.InThrow:
		hdr, err := protocol.ThrowOpen(body)
		if err != nil {
			return err
		}
		return e.asm.Open(protocol.StreamThrow, hdr)

	default:
		return ErrProtocolViolation
	}
}

func (e *Engine) dispatchFragment(msgType protocol.In, body []byte) error {
	kind := e.asm.Kind()
	wantPart := map[protocol.StreamKind]protocol.In{
		protocol.StreamClientSource: protocol.InClientSourcePart,
		protocol.StreamEval:         protocol.InEvalPart,
		protocol.StreamThrow:        protocol.InThrowPart,
	}[kind]
	if msgType != wantPart {
		return ErrProtocolViolation
	}
	if err := e.asm.Append(body); err != nil {
		return err
	}
	if !e.asm.Complete() {
		return nil
	}

	data := append([]byte(nil), e.asm.Data()...)
	e.asm.Reset()

	switch kind {
	case protocol.StreamClientSource:
		e.pendingClientSource = data
		return nil // the blocking WaitForClientSource loop picks this up
	case protocol.StreamEval:
		return e.runEval(data, protocol.EvalSubtypeEval)
	case protocol.StreamThrow:
		return e.runEval(data, protocol.EvalSubtypeThrow)
	default:
		return ErrProtocolViolation
	}
}

func (e *Engine) runEval(expr []byte, subtype protocol.EvalSubtype) error {
	result, err := e.hostEngine.Eval(context.Background(), string(expr))
	resultSubtype := protocol.EvalResultOK
	out := result
	if err != nil {
		resultSubtype = protocol.EvalResultError
		out = err.Error()
	}
	for _, chunk := range protocol.EncodeEvalResult([]byte(out), resultSubtype, protocol.MaxPayload) {
		if err := e.sess.Send(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) handleResume(msgType protocol.In) error {
	switch msgType {
	case protocol.InContinue:
		e.flags.Remove(modeflags.VmStop)
	case protocol.InStep:
		e.flags.Insert(modeflags.VmStop)
	case protocol.InNext:
		e.flags.Insert(modeflags.VmStop)
		// Stack-depth-aware suppression of nested breakpoints lives in the
		// host interpreter, which is handed VmStop and does its own depth
		// bookkeeping; the engine only conveys the flag (spec §4.5).
	case protocol.InFinish:
		e.flags.Insert(modeflags.VmStop)
	}
	e.flags.Remove(modeflags.BreakpointMode)
	return nil
}

func (e *Engine) sendBacktrace(maxDepth uint32) error {
	frames := e.hostEngine.Backtrace(maxDepth)
	converted := make([]protocol.BacktraceFrame, len(frames))
	for i, f := range frames {
		converted[i] = protocol.BacktraceFrame{CP: f.CP, Offset: f.Offset}
	}
	for _, chunk := range protocol.EncodeBacktrace(converted, protocol.MaxPayload) {
		if err := e.sess.Send(chunk); err != nil {
			return err
		}
	}
	return nil
}

// BreakpointHit is called by the host interpreter when execution reaches an
// enabled breakpoint (ExceptionHit is the counterpart for an uncaught,
// non-ignored exception). It emits the
// hit notification, enters BreakpointMode, and blocks in a poll/sleep loop
// until a resuming command clears BreakpointMode (spec §4.5 "Breakpoint
// arrival", scenario S3).
func (e *Engine) BreakpointHit(ctx context.Context, cp uint16, offset uint32) error {
	if err := e.sess.Send(protocol.EncodeBreakpointHit(cp, offset)); err != nil {
		return err
	}
	return e.idleUntilResume(ctx)
}

// ExceptionHit mirrors BreakpointHit for an uncaught, non-ignored exception:
// it fragments the exception's string form first (spec §4.5).
func (e *Engine) ExceptionHit(ctx context.Context, cp uint16, offset uint32, message string) error {
	for _, chunk := range protocol.EncodeExceptionStr([]byte(message), protocol.MaxPayload) {
		if err := e.sess.Send(chunk); err != nil {
			return err
		}
	}
	if err := e.sess.Send(protocol.EncodeExceptionHit(cp, offset)); err != nil {
		return err
	}
	return e.idleUntilResume(ctx)
}

// idleUntilResume blocks in BreakpointMode, polling with a 100ms read
// deadline each iteration (spec §5's sleep-based poll loop, replaced by the
// read-deadline idiom transport.Session already uses for non-blocking
// polling) until a resuming command clears BreakpointMode.
func (e *Engine) idleUntilResume(ctx context.Context) error {
	e.flags.Insert(modeflags.BreakpointMode)
	for e.flags.Has(modeflags.BreakpointMode) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !e.poll(BreakpointPollInterval) {
			return nil
		}
	}
	return nil
}

// WaitForClientSource drives the client-source loop (spec §4.5): it sends
// WAIT_FOR_SOURCE, sets ClientSourceMode, and idles until a CLIENT_SOURCE
// stream completes, NO_MORE_SOURCES arrives, or CONTEXT_RESET arrives.
func (e *Engine) WaitForClientSource(ctx context.Context, cb host.SourceCallback, user any) (host.WaitForSourceStatus, any, error) {
	if err := e.sess.Send(protocol.EncodeWaitForSource()); err != nil {
		return host.ReceiveFailed, nil, err
	}
	e.flags.Insert(modeflags.ClientSourceMode)
	defer e.flags.Remove(modeflags.ClientSourceMode)

	for {
		select {
		case <-ctx.Done():
			return host.ReceiveFailed, nil, ctx.Err()
		default:
		}
		if e.flags.Has(modeflags.ClientNoSource) {
			e.flags.Remove(modeflags.ClientNoSource)
			return host.End, nil, nil
		}
		if e.flags.Has(modeflags.ContextResetMode) {
			return host.ContextReset, nil, nil
		}
		if data, name, ok := e.takeCompletedClientSource(); ok {
			result, err := cb(name, data, user)
			if err != nil {
				return host.ReceiveFailed, nil, err
			}
			return host.Received, result, nil
		}
		if !e.poll(BreakpointPollInterval) {
			return host.ReceiveFailed, nil, nil
		}
	}
}

// takeCompletedClientSource drains pendingClientSource, split into its
// resource name and source text, if dispatchFragment finished one since the
// last check.
func (e *Engine) takeCompletedClientSource() (data []byte, name string, ok bool) {
	if e.pendingClientSource == nil {
		return nil, "", false
	}
	raw := e.pendingClientSource
	e.pendingClientSource = nil
	name, source := protocol.SplitClientSource(raw)
	return source, name, true
}
