package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualFlow_NoPropagation(t *testing.T) {
	t.Parallel()

	f := New("t", nil)
	src := newSource(9)
	sum := newSum()
	mustAdd(t, f, src, sum)
	mustConnect(t, f, src.Outputs()[0], sum.Inputs()[0])
	require.True(t, f.SetMode(ModeManual))

	src.Update(-1)

	assert.Zero(t, sum.updates, "manual mode never propagates on its own")
	assert.Equal(t, int64(9), intval(t, src.Outputs()[0].Value()), "the value is still recorded")
}

func TestManualFlow_PendingUpdateQueries(t *testing.T) {
	t.Parallel()

	f := New("t", nil)
	src := newSource(4)
	sum := newSum()
	mustAdd(t, f, src, sum)
	mustConnect(t, f, src.Outputs()[0], sum.Inputs()[0])
	manual := NewManualFlow(f)
	f.SetExecutor(manual)

	assert.False(t, manual.ShouldInputUpdate(sum.Inputs()[0]))
	assert.False(t, manual.HasUpdatedOutputs(src))

	src.Update(-1)

	assert.True(t, manual.ShouldInputUpdate(sum.Inputs()[0]))
	assert.False(t, manual.ShouldInputUpdate(sum.Inputs()[1]), "unconnected input never pends")
	assert.True(t, manual.HasUpdatedOutputs(src))

	manual.ClearUpdates()

	assert.False(t, manual.ShouldInputUpdate(sum.Inputs()[0]))
	assert.False(t, manual.HasUpdatedOutputs(src))
	assert.Equal(t, int64(4), intval(t, src.Outputs()[0].Value()), "clearing flags keeps values")
}

func TestManualFlow_DrivenUpdateReadsUpstream(t *testing.T) {
	t.Parallel()

	f := New("t", nil)
	src := newSource(4)
	sum := newSum()
	mustAdd(t, f, src, sum)
	mustConnect(t, f, src.Outputs()[0], sum.Inputs()[0])
	manual := NewManualFlow(f)
	f.SetExecutor(manual)

	// A driver (the player) fires nodes itself; values still resolve over
	// the adjacency.
	manual.UpdateNode(src, -1)
	manual.UpdateNode(sum, 0)

	assert.Equal(t, 1, sum.updates)
	assert.Equal(t, int64(4), intval(t, sum.Outputs()[0].Value()))
}
