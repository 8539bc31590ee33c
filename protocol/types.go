// Package protocol is the binary message codec: the translation between
// on-wire typed records (spec §6.2) and in-process events, in both
// directions, including the multi-fragment payloads the frame layer alone
// cannot carry (names, source text, eval expressions — anything over one
// frame's ~124 usable bytes).
//
// wsframe owns the frame; protocol owns what's inside it. Every encoder here
// returns one or more frame-sized payloads (≤ wsframe.MaxPayload bytes,
// including the leading type byte); every decoder takes exactly one
// already-framed payload.
package protocol

// Out is an engine→client message type (spec §6.2, 1..26).
type Out byte

const (
	OutConfiguration        Out = 1
	OutParseError           Out = 2
	OutByteCodeCP           Out = 3
	OutParseFunction        Out = 4
	OutBreakpointList       Out = 5
	OutBreakpointOffsetList Out = 6
	OutSourceCode           Out = 7
	OutSourceCodeEnd        Out = 8
	OutSourceCodeName       Out = 9
	OutSourceCodeNameEnd    Out = 10
	OutFunctionName         Out = 11
	OutFunctionNameEnd      Out = 12
	OutWaitingAfterParse    Out = 13
	OutReleaseByteCodeCP    Out = 14
	OutMemstatsReceive      Out = 15
	OutBreakpointHit        Out = 16
	OutExceptionHit         Out = 17
	OutExceptionStr         Out = 18
	OutExceptionStrEnd      Out = 19
	OutBacktrace            Out = 20
	OutBacktraceEnd         Out = 21
	OutEvalResult           Out = 22
	OutEvalResultEnd        Out = 23
	OutWaitForSource        Out = 24
	OutOutputResult         Out = 25
	OutOutputResultEnd      Out = 26
)

// In is a client→engine message type (spec §6.2, 1..20).
type In byte

const (
	InFreeByteCodeCP   In = 1
	InUpdateBreakpoint In = 2
	InExceptionConfig  In = 3
	InParserConfig     In = 4
	InMemstats         In = 5
	InStop             In = 6
	InParserResume     In = 7
	InClientSource     In = 8
	InClientSourcePart In = 9
	InNoMoreSources    In = 10
	InContextReset     In = 11
	InContinue         In = 12
	InStep             In = 13
	InNext             In = 14
	InFinish           In = 15
	InGetBacktrace     In = 16
	InEval             In = 17
	InEvalPart         In = 18
	InThrow            In = 19
	InThrowPart        In = 20
)

// EvalSubtype tells an EVAL stream from a THROW stream. It is not carried
// on the wire: the engine derives it from which message type (EVAL or
// THROW) opened the stream. EVAL_RESULT_END's tag is EvalResultSubtype.
type EvalSubtype byte

const (
	EvalSubtypeEval  EvalSubtype = 1
	EvalSubtypeThrow EvalSubtype = 2
)

// EvalResultSubtype is EVAL_RESULT_END's trailing byte.
type EvalResultSubtype byte

const (
	EvalResultOK    EvalResultSubtype = 1
	EvalResultError EvalResultSubtype = 2
)

// OutputSubtype is OUTPUT_RESULT[_END]'s trailing byte (spec §6.2: 1..5).
type OutputSubtype byte

const (
	OutputLog     OutputSubtype = 1
	OutputWarning OutputSubtype = 2
	OutputError   OutputSubtype = 3
	OutputTrace   OutputSubtype = 4
	OutputDebug   OutputSubtype = 5
)

// BacktraceFrame is one { cp, offset } pair in a GET_BACKTRACE reply.
type BacktraceFrame struct {
	CP     uint16
	Offset uint32
}
