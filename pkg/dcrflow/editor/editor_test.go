package editor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
)

func TestSpatialHintIsConsumedOnce(t *testing.T) {
	d := NewDraft("Hints")
	type point struct{ X, Y int }
	id := d.AddActivity("A", point{X: 10, Y: 20})

	h := d.TakeHint(id)
	require.Equal(t, point{X: 10, Y: 20}, h)

	assert.Nil(t, d.TakeHint(id))
}

func TestRemoveActivityDropsHint(t *testing.T) {
	d := NewDraft("Hints")
	id := d.AddActivity("A", "somewhere")
	d.RemoveActivity(id)
	assert.Nil(t, d.TakeHint(id))
}

func TestWhitelistBounds(t *testing.T) {
	d := NewDraft("Auth")
	id := d.AddActivity("A", nil)

	for i := 0; i < domain.MaxWhitelist; i++ {
		require.NoError(t, d.AddWhitelist(id, domain.Address(fmt.Sprintf("0x%02d", i))))
	}
	err := d.AddWhitelist(id, "0xoverflow")
	assert.ErrorIs(t, err, ErrWhitelistOverflow)

	// shrinking frees a slot again
	require.NoError(t, d.RemoveWhitelistLast(id))
	assert.NoError(t, d.AddWhitelist(id, "0xlast"))

	wl := d.Activity(id).Whitelist
	assert.Equal(t, domain.Address("0xlast"), wl[len(wl)-1])
}

func TestRemoveWhitelistLastOnEmptyIsNoop(t *testing.T) {
	d := NewDraft("Auth")
	id := d.AddActivity("A", nil)
	assert.NoError(t, d.RemoveWhitelistLast(id))
}

func TestWhitelistUnknownActivity(t *testing.T) {
	d := NewDraft("Auth")
	assert.ErrorIs(t, d.AddWhitelist(9, "0x01"), domain.ErrUnknownActivity)
	assert.ErrorIs(t, d.RemoveWhitelistLast(9), domain.ErrUnknownActivity)
	assert.ErrorIs(t, d.SetIncluded(9, true), domain.ErrUnknownActivity)
}

func TestEncodeIsCachedUntilMutation(t *testing.T) {
	d := NewDraft("Cache")
	id := d.AddActivity("A", nil)

	first, err := d.Encode()
	require.NoError(t, err)
	again, err := d.Encode()
	require.NoError(t, err)
	assert.Same(t, first, again)

	require.NoError(t, d.SetIncluded(id, true))
	third, err := d.Encode()
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.True(t, third.ActivityStates[0][0])
}

func TestStateFlagsReachEncoding(t *testing.T) {
	d := NewDraft("Flags")
	id := d.AddActivity("A", nil)
	require.NoError(t, d.SetIncluded(id, true))
	require.NoError(t, d.SetExecuted(id, true))
	require.NoError(t, d.SetPending(id, true))

	args, err := d.Encode()
	require.NoError(t, err)
	assert.Equal(t, [3]bool{true, true, true}, args.ActivityStates[0])
}

func TestDraftRelationsRoundThroughModel(t *testing.T) {
	d := NewDraft("Relations")
	a := d.AddActivity("A", nil)
	b := d.AddActivity("B", nil)
	require.NoError(t, d.AddRelation(a, b, domain.RelationResponse))

	removed := d.RemoveRelations(func(r domain.Relation) bool { return r.Type == domain.RelationResponse })
	assert.Equal(t, 1, removed)
	assert.Empty(t, d.Relations())
}
