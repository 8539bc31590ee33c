// Package bytecode implements the deferred byte-code reclamation scheme
// from spec §4.6: a compiled function's memory is not released the moment
// the host is done with it if its CP was ever exported to the client —
// release waits for the client's FREE_BYTE_CODE_CP acknowledgement, so a
// breakpoint set or backtrace cache keyed by CP on the client side never
// silently points at a reused handle.
//
// The teacher's frame header (wsframe) shows the idiom this package reuses:
// a small fixed-shape value plus explicit state transitions, no locks,
// because everything here runs on the single engine goroutine (spec §5).
package bytecode

import "errors"

// Ref is the opaque compressed-pointer handle identifying a compiled
// function. It is a 2-byte value on the wire (CONFIGURATION's
// cpointer_size), carried here as a plain uint16.
type Ref uint16

type state int

const (
	stateLive state = iota
	statePendingFree
)

type entry struct {
	state state
	size  uint32
}

// node is one link in the pending-free list: the teacher's frame-header
// style of a small, self-contained value, here threaded by ref instead of
// by pointer, since the "byte-code header" the original source reuses for
// the link doesn't exist as a Go value we can alias over.
type node struct {
	ref  Ref
	size uint32
	next *node
}

// ErrUnknownRef is returned when an operation names a Ref the table never
// issued, or one it already finished freeing.
var ErrUnknownRef = errors.New("bytecode: unknown or already-freed reference")

// ErrNotPendingFree is returned by Acknowledge when the client sends
// FREE_BYTE_CODE_CP for a Ref the host never released.
var ErrNotPendingFree = errors.New("bytecode: reference is not pending free")

// Table tracks every CP issued during a session, and the singly-linked
// pending-free list of those the host has released but the client has not
// yet acknowledged.
type Table struct {
	entries map[Ref]*entry
	head    *node
	tail    *node
}

// NewTable returns an empty reference table for one debug session.
func NewTable() *Table {
	return &Table{entries: make(map[Ref]*entry)}
}

// Issue records a new CP as live, right before the engine emits its
// BYTE_CODE_CP notification.
func (t *Table) Issue(ref Ref) {
	t.entries[ref] = &entry{state: stateLive}
}

// MarkPendingFree moves ref from live to pending-free and appends it to the
// list in O(1) (tail-linked), per spec §9. size is the aligned byte-code
// header size the embedder reports; it travels with the node only so a
// future memstats accounting pass can use it, it plays no role in the
// reclamation logic itself.
func (t *Table) MarkPendingFree(ref Ref, size uint32) error {
	e, ok := t.entries[ref]
	if !ok || e.state != stateLive {
		return ErrUnknownRef
	}
	e.state = statePendingFree
	e.size = size

	n := &node{ref: ref, size: size}
	if t.tail == nil {
		t.head, t.tail = n, n
	} else {
		t.tail.next = n
		t.tail = n
	}
	return nil
}

// Acknowledge handles a client FREE_BYTE_CODE_CP: it unlinks ref's node and
// removes it from the table, making the ref permanently invalid. Returns
// ErrNotPendingFree if ref was never released by the host, or
// ErrUnknownRef if the session never issued it — both are message protocol
// violations (spec §7) and the caller should close the session.
func (t *Table) Acknowledge(ref Ref) error {
	e, ok := t.entries[ref]
	if !ok {
		return ErrUnknownRef
	}
	if e.state != statePendingFree {
		return ErrNotPendingFree
	}
	if !t.unlink(ref) {
		// Table and list disagree; treat as unknown rather than panic.
		return ErrUnknownRef
	}
	delete(t.entries, ref)
	return nil
}

func (t *Table) unlink(ref Ref) bool {
	var prev *node
	for n := t.head; n != nil; n = n.next {
		if n.ref == ref {
			if prev == nil {
				t.head = n.next
			} else {
				prev.next = n.next
			}
			if n == t.tail {
				t.tail = prev
			}
			return true
		}
		prev = n
	}
	return false
}

// IsValid reports whether ref still names a live mapping: issued, and
// either still live or pending-free-but-not-yet-acknowledged. Callers use
// this to reject commands (e.g. UPDATE_BREAKPOINT) that name a CP whose
// backing memory has already been released — spec §8 scenario S5.
func (t *Table) IsValid(ref Ref) bool {
	_, ok := t.entries[ref]
	return ok
}

// ReleaseAll unconditionally empties the pending-free list and the table,
// for session teardown (spec §4.6: "On disconnect, all pending nodes are
// released unconditionally"). It returns the refs that were still pending,
// in list order, purely for diagnostics/logging.
func (t *Table) ReleaseAll() []Ref {
	var released []Ref
	for n := t.head; n != nil; n = n.next {
		released = append(released, n.ref)
		delete(t.entries, n.ref)
	}
	for ref, e := range t.entries {
		if e.state == stateLive {
			delete(t.entries, ref)
		}
	}
	t.head, t.tail = nil, nil
	return released
}

// Pending returns the refs currently awaiting client acknowledgement, head
// to tail, for tests and diagnostics.
func (t *Table) Pending() []Ref {
	var out []Ref
	for n := t.head; n != nil; n = n.next {
		out = append(out, n.ref)
	}
	return out
}
