package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S5 from spec §8: issue, release, ack, then reject a reference to the
// freed CP.
func TestDeferredReclamationLifecycle(t *testing.T) {
	tbl := NewTable()
	ref := Ref(0xABCD)

	tbl.Issue(ref)
	assert.True(t, tbl.IsValid(ref))

	require.NoError(t, tbl.MarkPendingFree(ref, 32))
	assert.True(t, tbl.IsValid(ref), "memory must stay live until the client acks")
	assert.Equal(t, []Ref{ref}, tbl.Pending())

	require.NoError(t, tbl.Acknowledge(ref))
	assert.False(t, tbl.IsValid(ref))
	assert.Empty(t, tbl.Pending())
}

func TestAcknowledgeUnknownRefIsRejected(t *testing.T) {
	tbl := NewTable()
	err := tbl.Acknowledge(Ref(0x1111))
	assert.ErrorIs(t, err, ErrUnknownRef)
}

func TestAcknowledgeLiveButNotReleasedIsRejected(t *testing.T) {
	tbl := NewTable()
	ref := Ref(0x2222)
	tbl.Issue(ref)
	err := tbl.Acknowledge(ref)
	assert.ErrorIs(t, err, ErrNotPendingFree)
}

func TestPendingFreeListIsFIFO(t *testing.T) {
	tbl := NewTable()
	refs := []Ref{1, 2, 3}
	for _, r := range refs {
		tbl.Issue(r)
		require.NoError(t, tbl.MarkPendingFree(r, 16))
	}
	assert.Equal(t, refs, tbl.Pending())

	require.NoError(t, tbl.Acknowledge(2))
	assert.Equal(t, []Ref{1, 3}, tbl.Pending())
}

func TestReleaseAllOnDisconnect(t *testing.T) {
	tbl := NewTable()
	tbl.Issue(1)
	tbl.Issue(2)
	require.NoError(t, tbl.MarkPendingFree(1, 8))

	released := tbl.ReleaseAll()
	assert.Equal(t, []Ref{1}, released)
	assert.False(t, tbl.IsValid(1))
	assert.False(t, tbl.IsValid(2))
	assert.Empty(t, tbl.Pending())
}
