package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/HeftyCoder/ryvencore/flow"
	"github.com/HeftyCoder/ryvencore/player"
)

type constNode struct {
	flow.NodeBase
	value cty.Value
}

func newConst() flow.Node {
	n := &constNode{value: cty.NumberIntVal(1)}
	n.CreateOutput(flow.PortConfig{Label: "out", Type: cty.Number})
	return n
}

func (n *constNode) UpdateEvent(inp int) error {
	return n.SetOutput(0, n.value)
}

type collectNode struct {
	flow.NodeBase
	got []cty.Value
}

func newCollect() flow.Node {
	n := &collectNode{}
	n.CreateInput(flow.PortConfig{Label: "in", Type: cty.Number, Default: cty.Zero})
	return n
}

func (n *collectNode) UpdateEvent(inp int) error {
	n.got = append(n.got, n.Input(0))
	return nil
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := New(nil)
	s.RegisterNodeType("test.const", newConst)
	s.RegisterNodeType("test.collect", newCollect)
	return s
}

func TestSession_Registry(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	assert.Equal(t, []string{"test.collect", "test.const"}, s.NodeTypes())

	// Double registration is a wiring mistake.
	assert.Panics(t, func() { s.RegisterNodeType("test.const", newConst) })

	n, err := s.NewNode("test.const")
	require.NoError(t, err)
	assert.IsType(t, &constNode{}, n)

	_, err = s.NewNode("test.missing")
	require.Error(t, err)
}

func TestSession_Flows(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	f, err := s.CreateFlow("main")
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = s.CreateFlow("main")
	require.Error(t, err, "flow names are unique")

	got, ok := s.Flow("main")
	require.True(t, ok)
	assert.Same(t, f, got)
	assert.Equal(t, []string{"main"}, s.Flows())

	require.NoError(t, s.RemoveFlow("main"))
	require.Error(t, s.RemoveFlow("main"))
	assert.Empty(t, s.Flows())
}

func TestSession_SharedIdentityCounter(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	a, err := s.CreateFlow("a")
	require.NoError(t, err)
	b, err := s.CreateFlow("b")
	require.NoError(t, err)

	assert.NotEqual(t, a.GID(), b.GID())

	na, err := s.NewNode("test.const")
	require.NoError(t, err)
	nb, err := s.NewNode("test.const")
	require.NoError(t, err)
	require.NoError(t, a.AddNode(na))
	require.NoError(t, b.AddNode(nb))

	ids := map[int64]bool{a.GID(): true, b.GID(): true, flow.NodeGID(na): true, flow.NodeGID(nb): true}
	assert.Len(t, ids, 4, "identities are unique across flows")
}

func TestSession_PlayerActions(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)

	// Unknown flows always answer "no graph".
	assert.Equal(t, player.ResponseNoGraph, s.Play(context.Background(), "missing"))
	assert.Equal(t, player.ResponseNoGraph, s.Pause("missing"))
	assert.Equal(t, player.ResponseNoGraph, s.Resume("missing"))
	assert.Equal(t, player.ResponseNoGraph, s.Stop("missing"))

	f, err := s.CreateFlow("main")
	require.NoError(t, err)
	src, err := s.NewNode("test.const")
	require.NoError(t, err)
	sink, err := s.NewNode("test.collect")
	require.NoError(t, err)
	require.NoError(t, f.AddNode(src))
	require.NoError(t, f.AddNode(sink))
	valid, err := f.Connect(src.(*constNode).Outputs()[0], sink.(*collectNode).Inputs()[0])
	require.NoError(t, err)
	require.Equal(t, flow.ConnValid, valid)

	assert.Equal(t, player.ResponseNotAllowed, s.Pause("main"), "nothing is playing yet")
	assert.Equal(t, player.ResponseSuccess, s.Play(context.Background(), "main"))
	assert.Len(t, sink.(*collectNode).got, 1)
}

func TestSession_NewPlayer(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	_, err := s.NewPlayer("missing", 60)
	require.Error(t, err)

	_, err = s.CreateFlow("main")
	require.NoError(t, err)
	p, err := s.NewPlayer("main", 60)
	require.NoError(t, err)

	got, ok := s.Player("main")
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestSession_SaveLoad(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	f, err := s.CreateFlow("main")
	require.NoError(t, err)
	src, err := s.NewNode("test.const")
	require.NoError(t, err)
	sink, err := s.NewNode("test.collect")
	require.NoError(t, err)
	require.NoError(t, f.AddNode(src))
	require.NoError(t, f.AddNode(sink))
	valid, err := f.Connect(src.(*constNode).Outputs()[0], sink.(*collectNode).Inputs()[0])
	require.NoError(t, err)
	require.Equal(t, flow.ConnValid, valid)

	data, err := s.Save()
	require.NoError(t, err)
	require.Len(t, data.Flows, 1)

	// Load into a second session; saved identities resolve through the
	// remap to freshly identified objects.
	s2 := newTestSession(t)
	remap, err := s2.Load(data)
	require.NoError(t, err)

	loaded, ok := s2.Flow("main")
	require.True(t, ok)
	assert.Len(t, loaded.Nodes(), 2)
	assert.Len(t, loaded.Connections(), 1)

	obj, ok := remap.Lookup(f.GID())
	require.True(t, ok)
	assert.Same(t, loaded, obj)
	obj, ok = remap.Lookup(flow.NodeGID(src))
	require.True(t, ok)
	assert.Same(t, loaded.Nodes()[0], obj)

	// Loading the same snapshot again collides on the flow name.
	_, err = s2.Load(data)
	require.Error(t, err)
}
