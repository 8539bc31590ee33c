package protocol

import "github.com/jimmy-huang/jerryscript/wsframe"

// MaxPayload is the largest a single frame's payload may be, inherited from
// wsframe. Every encoder in this file keeps each returned chunk at or under
// this size, type byte included.
const MaxPayload = wsframe.MaxPayload

// EncodeConfiguration builds the CONFIGURATION message the engine sends
// immediately after the handshake (spec §8 S2).
func EncodeConfiguration(maxMessageSize, cpointerSize byte, littleEndian bool, protocolVersion byte) []byte {
	le := byte(0)
	if littleEndian {
		le = 1
	}
	return []byte{byte(OutConfiguration), maxMessageSize, cpointerSize, le, protocolVersion}
}

// EncodeParseError builds the empty PARSE_ERROR message.
func EncodeParseError() []byte {
	return []byte{byte(OutParseError)}
}

// EncodeByteCodeCP builds BYTE_CODE_CP(cp).
func EncodeByteCodeCP(cp uint16) []byte {
	b := make([]byte, 3)
	b[0] = byte(OutByteCodeCP)
	wsframe.PutUint16LE(b[1:], cp)
	return b
}

// EncodeParseFunction builds PARSE_FUNCTION(line, column).
func EncodeParseFunction(line, column uint32) []byte {
	b := make([]byte, 9)
	b[0] = byte(OutParseFunction)
	wsframe.PutUint32LE(b[1:5], line)
	wsframe.PutUint32LE(b[5:9], column)
	return b
}

// chunkUint32List packs a repeated-u32 payload (BREAKPOINT_LIST,
// BREAKPOINT_OFFSET_LIST) into as many same-typed frames as needed. Neither
// message has a dedicated _END counterpart in spec §6.2 — the client
// recognizes the list is complete when a different message type follows,
// the same convention the original engine uses for these two record kinds.
func chunkUint32List(t Out, values []uint32, maxPayload int) [][]byte {
	if maxPayload > MaxPayload {
		maxPayload = MaxPayload
	}
	perFrame := (maxPayload - 1) / 4
	if perFrame < 1 {
		perFrame = 1
	}
	if len(values) == 0 {
		return [][]byte{{byte(t)}}
	}
	var chunks [][]byte
	for i := 0; i < len(values); i += perFrame {
		end := i + perFrame
		if end > len(values) {
			end = len(values)
		}
		b := make([]byte, 1+4*(end-i))
		b[0] = byte(t)
		for j, v := range values[i:end] {
			wsframe.PutUint32LE(b[1+4*j:5+4*j], v)
		}
		chunks = append(chunks, b)
	}
	return chunks
}

// EncodeBreakpointList builds one or more BREAKPOINT_LIST frames.
func EncodeBreakpointList(lines []uint32, maxPayload int) [][]byte {
	return chunkUint32List(OutBreakpointList, lines, maxPayload)
}

// EncodeBreakpointOffsetList builds one or more BREAKPOINT_OFFSET_LIST
// frames.
func EncodeBreakpointOffsetList(offsets []uint32, maxPayload int) [][]byte {
	return chunkUint32List(OutBreakpointOffsetList, offsets, maxPayload)
}

// fragmentBytes splits data across primaryType frames, the final one tagged
// endType, each frame holding at most maxPayload-1 data bytes (1 byte
// reserved for the leading type byte). An empty data still yields one
// endType-only frame, so the client always gets a terminator.
func fragmentBytes(primaryType, endType Out, data []byte, maxPayload int) [][]byte {
	if maxPayload > MaxPayload {
		maxPayload = MaxPayload
	}
	chunkSize := maxPayload - 1
	if chunkSize < 1 {
		chunkSize = 1
	}
	if len(data) == 0 {
		return [][]byte{{byte(endType)}}
	}
	var chunks [][]byte
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		t := primaryType
		if end >= len(data) {
			end = len(data)
			t = endType
		}
		b := make([]byte, 1+(end-i))
		b[0] = byte(t)
		copy(b[1:], data[i:end])
		chunks = append(chunks, b)
	}
	return chunks
}

// EncodeSourceCode fragments a source blob as SOURCE_CODE/SOURCE_CODE_END.
func EncodeSourceCode(source []byte, maxPayload int) [][]byte {
	return fragmentBytes(OutSourceCode, OutSourceCodeEnd, source, maxPayload)
}

// EncodeSourceCodeName fragments a resource name as SOURCE_CODE_NAME[_END].
func EncodeSourceCodeName(name []byte, maxPayload int) [][]byte {
	return fragmentBytes(OutSourceCodeName, OutSourceCodeNameEnd, name, maxPayload)
}

// EncodeFunctionName fragments a function name as FUNCTION_NAME[_END].
func EncodeFunctionName(name []byte, maxPayload int) [][]byte {
	return fragmentBytes(OutFunctionName, OutFunctionNameEnd, name, maxPayload)
}

// EncodeWaitingAfterParse builds the empty WAITING_AFTER_PARSE message.
func EncodeWaitingAfterParse() []byte {
	return []byte{byte(OutWaitingAfterParse)}
}

// EncodeReleaseByteCodeCP builds RELEASE_BYTE_CODE_CP(cp).
func EncodeReleaseByteCodeCP(cp uint16) []byte {
	b := make([]byte, 3)
	b[0] = byte(OutReleaseByteCodeCP)
	wsframe.PutUint16LE(b[1:], cp)
	return b
}

// Memstats holds the MEMSTATS_RECEIVE fields.
type Memstats struct {
	Allocated  uint32
	ByteCode   uint32
	Strings    uint32
	Objects    uint32
	Properties uint32
}

// EncodeMemstats builds MEMSTATS_RECEIVE.
func EncodeMemstats(m Memstats) []byte {
	b := make([]byte, 21)
	b[0] = byte(OutMemstatsReceive)
	wsframe.PutUint32LE(b[1:5], m.Allocated)
	wsframe.PutUint32LE(b[5:9], m.ByteCode)
	wsframe.PutUint32LE(b[9:13], m.Strings)
	wsframe.PutUint32LE(b[13:17], m.Objects)
	wsframe.PutUint32LE(b[17:21], m.Properties)
	return b
}

func encodeHit(t Out, cp uint16, offset uint32) []byte {
	b := make([]byte, 7)
	b[0] = byte(t)
	wsframe.PutUint16LE(b[1:3], cp)
	wsframe.PutUint32LE(b[3:7], offset)
	return b
}

// EncodeBreakpointHit builds BREAKPOINT_HIT(cp, offset) (spec §8 S3).
func EncodeBreakpointHit(cp uint16, offset uint32) []byte {
	return encodeHit(OutBreakpointHit, cp, offset)
}

// EncodeExceptionHit builds EXCEPTION_HIT(cp, offset).
func EncodeExceptionHit(cp uint16, offset uint32) []byte {
	return encodeHit(OutExceptionHit, cp, offset)
}

// EncodeExceptionStr fragments the exception's string form as
// EXCEPTION_STR[_END].
func EncodeExceptionStr(s []byte, maxPayload int) [][]byte {
	return fragmentBytes(OutExceptionStr, OutExceptionStrEnd, s, maxPayload)
}

// EncodeBacktrace fragments a sequence of {cp, offset} frames as
// BACKTRACE[_END]. Each frame entry is 6 bytes (2-byte cp + 4-byte offset)
// and is never split across two wire frames.
func EncodeBacktrace(frames []BacktraceFrame, maxPayload int) [][]byte {
	if maxPayload > MaxPayload {
		maxPayload = MaxPayload
	}
	const entrySize = 6
	perFrame := (maxPayload - 1) / entrySize
	if perFrame < 1 {
		perFrame = 1
	}
	if len(frames) == 0 {
		return [][]byte{{byte(OutBacktraceEnd)}}
	}
	var chunks [][]byte
	for i := 0; i < len(frames); i += perFrame {
		end := i + perFrame
		t := OutBacktrace
		if end >= len(frames) {
			end = len(frames)
			t = OutBacktraceEnd
		}
		b := make([]byte, 1+entrySize*(end-i))
		b[0] = byte(t)
		for j, f := range frames[i:end] {
			off := 1 + entrySize*j
			wsframe.PutUint16LE(b[off:off+2], f.CP)
			wsframe.PutUint32LE(b[off+2:off+6], f.Offset)
		}
		chunks = append(chunks, b)
	}
	return chunks
}

// EncodeEvalResult fragments an eval/throw result as EVAL_RESULT[_END],
// with the final chunk's trailing byte set to subtype.
func EncodeEvalResult(result []byte, subtype EvalResultSubtype, maxPayload int) [][]byte {
	return fragmentWithTrailingByte(OutEvalResult, OutEvalResultEnd, result, byte(subtype), maxPayload)
}

// EncodeWaitForSource builds the empty WAIT_FOR_SOURCE message.
func EncodeWaitForSource() []byte {
	return []byte{byte(OutWaitForSource)}
}

// EncodeOutputResult fragments program output as OUTPUT_RESULT[_END], with
// the final chunk's trailing byte set to subtype.
func EncodeOutputResult(data []byte, subtype OutputSubtype, maxPayload int) [][]byte {
	return fragmentWithTrailingByte(OutOutputResult, OutOutputResultEnd, data, byte(subtype), maxPayload)
}

// fragmentWithTrailingByte is fragmentBytes, but the last byte of the whole
// logical payload is a subtype tag rather than data: the fragmenter treats
// data+trailer as one blob so the tag always lands in the final frame
// (spec §6.2: "last fragment's trailing byte = subtype").
func fragmentWithTrailingByte(primaryType, endType Out, data []byte, trailer byte, maxPayload int) [][]byte {
	combined := make([]byte, len(data)+1)
	copy(combined, data)
	combined[len(data)] = trailer
	return fragmentBytes(primaryType, endType, combined, maxPayload)
}
