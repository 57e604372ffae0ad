package hierarchy

import (
	"testing"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds A -> B -> C plus a lone root R.
func chain(t *testing.T) *graph.Forest {
	t.Helper()
	f, err := graph.Load([]api.NodeRecord{
		{ID: "A", Order: 1},
		{ID: "B", ParentID: "A", Level: 1, Order: 1},
		{ID: "C", ParentID: "B", Level: 2, Order: 1},
		{ID: "R", Order: 2},
	})
	require.NoError(t, err)
	return f
}

func requireBlocked(t *testing.T, err error, reason Reason, rule string) {
	t.Helper()
	require.Error(t, err)
	var be *BlockedError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, reason, be.Reason)
	assert.Equal(t, rule, be.Rule)
}

func TestValidate_ChildAllowedBetweenRoots(t *testing.T) {
	f := chain(t)
	assert.NoError(t, Validate(f, "R", "A", Child))
	assert.NoError(t, Validate(f, "R", "C", Child))
}

func TestValidate_ChildIntoOwnSubtreeIsCycle(t *testing.T) {
	f := chain(t)
	requireBlocked(t, Validate(f, "A", "C", Child), CycleDetected, "cycle")
	requireBlocked(t, Validate(f, "A", "B", Child), CycleDetected, "cycle")
}

func TestValidate_ChildOntoAncestorIsBlocked(t *testing.T) {
	f := chain(t)
	// Checked in both directions: C already descends from A.
	requireBlocked(t, Validate(f, "C", "A", Child), CycleDetected, "cycle")
}

func TestValidate_SelfTarget(t *testing.T) {
	f := chain(t)
	for _, op := range []Op{Before, After, Child} {
		requireBlocked(t, Validate(f, "B", "B", op), SelfTarget, "self")
	}
}

func TestValidate_NoOpIsBlocked(t *testing.T) {
	f := chain(t)
	requireBlocked(t, Validate(f, "A", "R", NoOp), SelfTarget, "noop")
}

func TestValidate_RootIntoNonRootSlotIsDemotion(t *testing.T) {
	f := chain(t)
	requireBlocked(t, Validate(f, "R", "B", Before), InvalidDemotion, "demotion")
	requireBlocked(t, Validate(f, "A", "B", After), InvalidDemotion, "demotion")
}

func TestValidate_DescendantConflictWithCorruptLevels(t *testing.T) {
	// B claims level 0 although it hangs under A; only the descendant rule
	// catches A being placed beside it.
	f, err := graph.Load([]api.NodeRecord{
		{ID: "A"},
		{ID: "B", ParentID: "A", Level: 0},
	})
	require.NoError(t, err)
	requireBlocked(t, Validate(f, "A", "B", Before), InvalidDemotion, "descendant-conflict")
}

func TestValidate_PromotionAllowed(t *testing.T) {
	f := chain(t)
	assert.NoError(t, Validate(f, "B", "A", Before))
	assert.NoError(t, Validate(f, "C", "R", After))
}

func TestValidate_NonRootBesideOwnDescendantIsCycle(t *testing.T) {
	f, err := graph.Load([]api.NodeRecord{
		{ID: "A"},
		{ID: "B", ParentID: "A", Level: 1},
		{ID: "C", ParentID: "B", Level: 2},
		{ID: "D", ParentID: "C", Level: 3},
	})
	require.NoError(t, err)
	requireBlocked(t, Validate(f, "B", "D", Before), CycleDetected, "nesting")
}

func TestValidate_RootAlwaysAllowed(t *testing.T) {
	f := chain(t)
	assert.NoError(t, Validate(f, "C", "", Root))
	assert.NoError(t, Validate(f, "A", "", Root))
}

func TestValidate_UnknownIDs(t *testing.T) {
	f := chain(t)
	assert.ErrorIs(t, Validate(f, "nope", "A", Child), graph.ErrNotFound)
	assert.ErrorIs(t, Validate(f, "A", "nope", Child), graph.ErrNotFound)
	assert.ErrorIs(t, Validate(f, "nope", "", Root), graph.ErrNotFound)
}

func TestParseOp(t *testing.T) {
	for _, o := range []Op{NoOp, Before, After, Child, Root} {
		got, err := ParseOp(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err := ParseOp("sideways")
	assert.Error(t, err)
}
