package encoding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/models"
)

func padded(name string) [32]byte {
	var b [32]byte
	copy(b[:], name+strings.Repeat(" ", 32-len(name)))
	return b
}

func TestEncodeTicketWorkflow(t *testing.T) {
	w := domain.NewWorkflow("Ticket")
	submit := w.AddActivity("Submit")
	closeT := w.AddActivity("Close")
	w.Activity(submit).Included = true
	require.NoError(t, w.AddRelation(submit, closeT, domain.RelationInclude))

	args, err := Encode(w)
	require.NoError(t, err)

	require.Len(t, args.Names, 3)
	assert.Equal(t, padded("Ticket"), args.Names[0])
	assert.Equal(t, padded("Submit"), args.Names[1])
	assert.Equal(t, padded("Close"), args.Names[2])

	assert.Equal(t, []uint8{0}, args.RelationTypes)
	assert.Equal(t, []uint32{1}, args.RelationActivityIDs)

	// the include is anchored at its source, so Submit carries it
	require.Len(t, args.ActivityData, 2)
	assert.Equal(t, [2]uint32{1, 0}, args.ActivityData[0])
	assert.Equal(t, [2]uint32{0, 0}, args.ActivityData[1])

	assert.Equal(t, [][3]bool{{true, false, false}, {false, false, false}}, args.ActivityStates)
	assert.Equal(t, []bool{true, true}, args.AuthDisabled)
	assert.Empty(t, args.AccountWhitelist)
}

func TestEncodeCompactsTombstones(t *testing.T) {
	w := domain.NewWorkflow("Compact")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	c := w.AddActivity("C")
	require.NoError(t, w.AddRelation(a, b, domain.RelationInclude))
	require.NoError(t, w.AddRelation(b, c, domain.RelationResponse))

	w.RemoveActivity(a)

	args, err := Encode(w)
	require.NoError(t, err)

	// B and C are renumbered 0 and 1; only the surviving response remains
	require.Len(t, args.Names, 3)
	assert.Equal(t, padded("B"), args.Names[1])
	assert.Equal(t, padded("C"), args.Names[2])
	assert.Equal(t, []uint8{uint8(domain.RelationResponse)}, args.RelationTypes)
	assert.Equal(t, []uint32{1}, args.RelationActivityIDs)
	assert.Equal(t, [2]uint32{1, 0}, args.ActivityData[0])
	assert.Equal(t, [2]uint32{0, 0}, args.ActivityData[1])
}

func TestEncodeAnchorsConditionAtConstrainedEnd(t *testing.T) {
	w := domain.NewWorkflow("Anchors")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	require.NoError(t, w.AddRelation(a, b, domain.RelationCondition))
	require.NoError(t, w.AddRelation(b, a, domain.RelationExclude))

	args, err := Encode(w)
	require.NoError(t, err)

	// Neither relation is anchored at A: the condition belongs to its
	// constrained end B, the exclude to its source B.
	assert.Equal(t, [2]uint32{0, 0}, args.ActivityData[0])
	assert.Equal(t, [2]uint32{2, 0}, args.ActivityData[1])
	assert.Equal(t, []uint32{a, a}, args.RelationActivityIDs)
}

func TestEncodeGroupsRelationsByAnchorStably(t *testing.T) {
	w := domain.NewWorkflow("Stable")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	c := w.AddActivity("C")
	require.NoError(t, w.AddRelation(b, c, domain.RelationResponse))
	require.NoError(t, w.AddRelation(a, c, domain.RelationInclude))
	require.NoError(t, w.AddRelation(b, a, domain.RelationExclude))

	args, err := Encode(w)
	require.NoError(t, err)

	// anchor order a, b, b; b's two relations keep insertion order
	assert.Equal(t, []uint8{
		uint8(domain.RelationInclude),
		uint8(domain.RelationResponse),
		uint8(domain.RelationExclude),
	}, args.RelationTypes)
	assert.Equal(t, []uint32{c, c, a}, args.RelationActivityIDs)
	assert.Equal(t, [2]uint32{1, 0}, args.ActivityData[0])
	assert.Equal(t, [2]uint32{2, 0}, args.ActivityData[1])
	assert.Equal(t, [2]uint32{0, 0}, args.ActivityData[2])
}

func TestEncodeWhitelistFlattening(t *testing.T) {
	w := domain.NewWorkflow("Auth")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	w.Activity(a).Whitelist = []domain.Address{"0x01", "0x02"}
	_ = b

	args, err := Encode(w)
	require.NoError(t, err)

	assert.Equal(t, []domain.Address{"0x01", "0x02"}, args.AccountWhitelist)
	assert.Equal(t, [2]uint32{0, 2}, args.ActivityData[0])
	assert.Equal(t, []bool{false, true}, args.AuthDisabled)
}

func TestEncodeRejectsOverlongNames(t *testing.T) {
	w := domain.NewWorkflow(strings.Repeat("x", 33))
	w.AddActivity("A")
	_, err := Encode(w)
	assert.ErrorIs(t, err, ErrNameTooLong)

	w = domain.NewWorkflow("ok")
	w.AddActivity(strings.Repeat("y", 33))
	_, err = Encode(w)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	w := domain.NewWorkflow("Round trip")
	a := w.AddActivity("First")
	b := w.AddActivity("Second")
	c := w.AddActivity("Third")
	w.Activity(a).Included = true
	w.Activity(b).Executed = true
	w.Activity(c).Pending = true
	w.Activity(c).Whitelist = []domain.Address{"0xaa", "0xbb"}
	require.NoError(t, w.AddRelation(a, b, domain.RelationCondition))
	require.NoError(t, w.AddRelation(b, c, domain.RelationMilestone))
	require.NoError(t, w.AddRelation(c, a, domain.RelationInclude))

	args, err := Encode(w)
	require.NoError(t, err)

	got, err := Decode(args)
	require.NoError(t, err)

	assert.Equal(t, w.Name, got.Name)
	require.Equal(t, w.LiveCount(), got.LiveCount())
	for _, want := range w.Activities() {
		have := got.Activity(want.ID)
		require.NotNil(t, have)
		assert.Equal(t, want.Name, have.Name)
		assert.Equal(t, want.Included, have.Included)
		assert.Equal(t, want.Executed, have.Executed)
		assert.Equal(t, want.Pending, have.Pending)
		assert.Equal(t, want.Whitelist, have.Whitelist)
	}
	assert.ElementsMatch(t, w.Relations(), got.Relations())
}

func TestDecodeRejectsInconsistentLayouts(t *testing.T) {
	w := domain.NewWorkflow("Bad")
	w.AddActivity("A")
	args, err := Encode(w)
	require.NoError(t, err)

	broken := *args
	broken.ActivityStates = nil
	_, err = Decode(&broken)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	broken = *args
	broken.RelationTypes = []uint8{0}
	_, err = Decode(&broken)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	broken = *args
	broken.ActivityData = [][2]uint32{{5, 0}}
	_, err = Decode(&broken)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	broken = *args
	broken.ActivityData = [][2]uint32{{0, 3}}
	_, err = Decode(&broken)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	_, err = Decode(&models.CreateWorkflowArgs{})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestDecodeRejectsOverflowingCounts(t *testing.T) {
	w := domain.NewWorkflow("Bad")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	require.NoError(t, w.AddRelation(a, b, domain.RelationInclude))
	w.Activity(a).Whitelist = []domain.Address{"0x01"}
	args, err := Encode(w)
	require.NoError(t, err)

	// A count large enough to wrap the running offset in uint32 must still
	// be rejected, not panic.
	broken := *args
	broken.ActivityData = [][2]uint32{{1, 1}, {0xFFFFFFFF, 0}}
	_, err = Decode(&broken)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	broken = *args
	broken.ActivityData = [][2]uint32{{1, 1}, {0, 0xFFFFFFFF}}
	_, err = Decode(&broken)
	assert.ErrorIs(t, err, ErrInvalidArgs)
}
