package protocol

import (
	"errors"

	"github.com/jimmy-huang/jerryscript/wsframe"
)

// ErrTruncated is returned by any decoder when payload is shorter than its
// message type requires. Per spec §7 this is a message protocol violation:
// the session must be closed.
var ErrTruncated = errors.New("protocol: truncated message payload")

// ErrUnknownType names a leading byte that doesn't match any known inbound
// message type. No decoder in this package returns it: the engine rejects
// unknown types itself, with engine.ErrProtocolViolation.
var ErrUnknownType = errors.New("protocol: unknown message type")

// FreeByteCodeCP decodes FREE_BYTE_CODE_CP's payload (type byte already
// consumed by the caller).
func FreeByteCodeCP(body []byte) (cp uint16, err error) {
	if len(body) < 2 {
		return 0, ErrTruncated
	}
	return wsframe.Uint16LE(body), nil
}

// UpdateBreakpoint decodes UPDATE_BREAKPOINT's payload.
func UpdateBreakpoint(body []byte) (enable bool, cp uint16, offset uint32, err error) {
	if len(body) < 7 {
		return false, 0, 0, ErrTruncated
	}
	enable = body[0] != 0
	cp = wsframe.Uint16LE(body[1:3])
	offset = wsframe.Uint32LE(body[3:7])
	return enable, cp, offset, nil
}

// ExceptionConfig decodes EXCEPTION_CONFIG's payload.
func ExceptionConfig(body []byte) (enable bool, err error) {
	if len(body) < 1 {
		return false, ErrTruncated
	}
	return body[0] != 0, nil
}

// ParserConfig decodes PARSER_CONFIG's payload.
func ParserConfig(body []byte) (wait bool, err error) {
	if len(body) < 1 {
		return false, ErrTruncated
	}
	return body[0] != 0, nil
}

// GetBacktrace decodes GET_BACKTRACE's payload. maxDepth == 0 means
// unlimited, per spec §6.2.
func GetBacktrace(body []byte) (maxDepth uint32, err error) {
	if len(body) < 4 {
		return 0, ErrTruncated
	}
	return wsframe.Uint32LE(body), nil
}

// FragmentHeader is the (total_size, first_chunk) pair every stream-opening
// inbound message (CLIENT_SOURCE, EVAL, THROW) carries.
type FragmentHeader struct {
	TotalSize uint32
	Chunk     []byte
}

// decodeFragmentHeader parses the common "u32 total_size then bytes" shape
// shared by CLIENT_SOURCE, EVAL and THROW.
func decodeFragmentHeader(body []byte) (FragmentHeader, error) {
	if len(body) < 4 {
		return FragmentHeader{}, ErrTruncated
	}
	return FragmentHeader{
		TotalSize: wsframe.Uint32LE(body[:4]),
		Chunk:     body[4:],
	}, nil
}

// ClientSourceOpen decodes the first CLIENT_SOURCE message.
func ClientSourceOpen(body []byte) (FragmentHeader, error) {
	return decodeFragmentHeader(body)
}

// SplitClientSource separates a fully reassembled CLIENT_SOURCE stream into
// its resource name and source text. The wire format carries both as one
// blob (spec §6.2 only documents the outer total_size/bytes shape); this
// follows the embedder's own convention of a NUL-terminated resource name
// ahead of the source buffer, the same layout jerry_debugger_wait_for_client_source's
// callback receives as two separate C string arguments. A blob with no NUL
// is treated as an anonymous resource: the whole thing is source text.
func SplitClientSource(data []byte) (name string, source []byte) {
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), data[i+1:]
		}
	}
	return "", data
}

// EvalOpen decodes the first EVAL message.
func EvalOpen(body []byte) (FragmentHeader, error) {
	return decodeFragmentHeader(body)
}

// ThrowOpen decodes the first THROW message.
func ThrowOpen(body []byte) (FragmentHeader, error) {
	return decodeFragmentHeader(body)
}
