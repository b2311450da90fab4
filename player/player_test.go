package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/HeftyCoder/ryvencore/flow"
)

// Test node types.

type srcNode struct {
	flow.NodeBase
	value   cty.Value
	updates int
}

func newSrc(v int64) *srcNode {
	n := &srcNode{value: cty.NumberIntVal(v)}
	n.CreateOutput(flow.PortConfig{Label: "out", Type: cty.Number})
	return n
}

func (n *srcNode) UpdateEvent(inp int) error {
	n.updates++
	return n.SetOutput(0, n.value)
}

type relayNode struct {
	flow.NodeBase
	updates int
}

func newRelay() *relayNode {
	n := &relayNode{}
	n.CreateInput(flow.PortConfig{Label: "in", Type: cty.Number, Default: cty.Zero})
	n.CreateOutput(flow.PortConfig{Label: "out", Type: cty.Number})
	return n
}

func (n *relayNode) UpdateEvent(inp int) error {
	n.updates++
	return n.SetOutput(0, n.Input(0))
}

type sinkNode struct {
	flow.NodeBase
	mu      sync.Mutex
	updates int
	got     []int64
}

func newSink() *sinkNode {
	n := &sinkNode{}
	n.CreateInput(flow.PortConfig{Label: "a", Type: cty.Number, Default: cty.Zero})
	n.CreateInput(flow.PortConfig{Label: "b", Type: cty.Number, Default: cty.Zero})
	return n
}

func (n *sinkNode) UpdateEvent(inp int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates++
	v, _ := n.Input(0).AsBigFloat().Int64()
	n.got = append(n.got, v)
	return nil
}

func (n *sinkNode) snapshot() (int, []int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updates, append([]int64(nil), n.got...)
}

// tickerNode emits the frame number each frame and finishes after limit
// frames (0 means never). onFrame, when set, runs inside the frame
// callback.
type tickerNode struct {
	flow.FrameNodeBase
	limit   int64
	count   int64
	onFrame func(count int64)
}

func newTicker(limit int64) *tickerNode {
	n := &tickerNode{limit: limit}
	n.CreateOutput(flow.PortConfig{Label: "frame", Type: cty.Number})
	return n
}

func (n *tickerNode) Init() {
	n.count = 0
	n.ClearFinished()
}

func (n *tickerNode) FrameUpdateEvent() error {
	n.count++
	if err := n.SetOutput(0, cty.NumberIntVal(n.count)); err != nil {
		return err
	}
	if n.onFrame != nil {
		n.onFrame(n.count)
	}
	if n.limit > 0 && n.count >= n.limit {
		n.SetFinished()
	}
	return nil
}

func TestFlowPlayer_FramelessFlowRunsOnePass(t *testing.T) {
	t.Parallel()

	f := flow.New("t", nil)
	src := newSrc(5)
	sink := newSink()
	require.NoError(t, f.AddNode(src))
	require.NoError(t, f.AddNode(sink))
	valid, err := f.Connect(src.Outputs()[0], sink.Inputs()[0])
	require.NoError(t, err)
	require.Equal(t, flow.ConnValid, valid)

	p := NewFlowPlayer(f, 60)
	resp := p.Play(context.Background())

	assert.Equal(t, ResponseSuccess, resp)
	assert.Equal(t, StateStopped, p.State())
	updates, got := sink.snapshot()
	assert.Equal(t, 1, updates)
	assert.Equal(t, []int64{5}, got)
	assert.Equal(t, flow.ModeData, f.Mode(), "previous executor restored")
}

func TestFlowPlayer_PassFiresEachNodeOnce(t *testing.T) {
	t.Parallel()

	// Diamond: src -> (left, right) -> sink. A pass must fire the sink once
	// even with two incoming branches.
	f := flow.New("t", nil)
	src := newSrc(1)
	left := newRelay()
	right := newRelay()
	sink := newSink()
	for _, n := range []flow.Node{src, left, right, sink} {
		require.NoError(t, f.AddNode(n))
	}
	connect := func(out, in *flow.Port) {
		valid, err := f.Connect(out, in)
		require.NoError(t, err)
		require.Equal(t, flow.ConnValid, valid)
	}
	connect(src.Outputs()[0], left.Inputs()[0])
	connect(src.Outputs()[0], right.Inputs()[0])
	connect(left.Outputs()[0], sink.Inputs()[0])
	connect(right.Outputs()[0], sink.Inputs()[1])

	p := NewFlowPlayer(f, 60)
	require.Equal(t, ResponseSuccess, p.Play(context.Background()))

	assert.Equal(t, 1, src.updates)
	assert.Equal(t, 1, left.updates)
	assert.Equal(t, 1, right.updates)
	updates, _ := sink.snapshot()
	assert.Equal(t, 1, updates)
}

func TestFlowPlayer_DisconnectedNodesStayIdle(t *testing.T) {
	t.Parallel()

	f := flow.New("t", nil)
	src := newSrc(1)
	idle := newSrc(2)
	sink := newSink()
	require.NoError(t, f.AddNode(src))
	require.NoError(t, f.AddNode(idle))
	require.NoError(t, f.AddNode(sink))
	valid, err := f.Connect(src.Outputs()[0], sink.Inputs()[0])
	require.NoError(t, err)
	require.Equal(t, flow.ConnValid, valid)

	p := NewFlowPlayer(f, 60)
	require.Equal(t, ResponseSuccess, p.Play(context.Background()))

	assert.Equal(t, 1, src.updates)
	assert.Zero(t, idle.updates, "a node without connections takes no part")
}

func TestFlowPlayer_FrameNodesDriveTheGraph(t *testing.T) {
	t.Parallel()

	f := flow.New("t", nil)
	ticker := newTicker(10)
	sink := newSink()
	require.NoError(t, f.AddNode(ticker))
	require.NoError(t, f.AddNode(sink))
	valid, err := f.Connect(ticker.Outputs()[0], sink.Inputs()[0])
	require.NoError(t, err)
	require.Equal(t, flow.ConnValid, valid)

	p := NewFlowPlayer(f, 250)
	require.Equal(t, ResponseSuccess, p.Play(context.Background()))

	assert.Equal(t, 10, p.Time().FrameCount(), "play ends when every frame node is finished")
	updates, got := sink.snapshot()
	assert.Equal(t, 10, updates)
	require.Len(t, got, 10)
	assert.Equal(t, int64(1), got[0])
	assert.Equal(t, int64(10), got[9])
	assert.Greater(t, p.Time().Elapsed(), time.Duration(0))
}

func TestFlowPlayer_StopFromInsideFrameCallback(t *testing.T) {
	t.Parallel()

	f := flow.New("t", nil)
	ticker := newTicker(0)
	require.NoError(t, f.AddNode(ticker))

	p := NewFlowPlayer(f, 250)
	ticker.onFrame = func(count int64) {
		if count == 4 {
			require.Equal(t, ResponseSuccess, p.Stop())
		}
	}
	require.Equal(t, ResponseSuccess, p.Play(context.Background()))

	assert.Equal(t, 4, p.Time().FrameCount(), "stop lands at the end of the frame that requested it")
	assert.Equal(t, StateStopped, p.State())
}

func TestFlowPlayer_IllegalTransitions(t *testing.T) {
	t.Parallel()

	f := flow.New("t", nil)
	require.NoError(t, f.AddNode(newTicker(1)))
	p := NewFlowPlayer(f, 250)

	assert.Equal(t, ResponseNotAllowed, p.Pause(), "pause while stopped")
	assert.Equal(t, ResponseNotAllowed, p.Resume(), "resume while stopped")
	assert.Equal(t, ResponseNotAllowed, p.Stop(), "stop while stopped")

	require.Equal(t, ResponseSuccess, p.Play(context.Background()))
	assert.Equal(t, ResponseNotAllowed, p.Resume(), "resume after the play ended")
}

func TestFlowPlayer_NoFlow(t *testing.T) {
	t.Parallel()

	p := NewFlowPlayer(nil, 60)
	assert.Equal(t, ResponseNoGraph, p.Play(context.Background()))
}

func TestFlowPlayer_PauseResumeStop(t *testing.T) {
	t.Parallel()

	f := flow.New("t", nil)
	ticker := newTicker(0)
	require.NoError(t, f.AddNode(ticker))
	p := NewFlowPlayer(f, 250)

	var mu sync.Mutex
	var changes []StateChange
	p.StateChanged.Sub(0, func(c StateChange) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	done := make(chan Response, 1)
	go func() { done <- p.Play(context.Background()) }()

	require.Eventually(t, func() bool { return p.State() == StatePlaying }, time.Second, time.Millisecond)
	assert.Equal(t, flow.ModeManual, f.Mode(), "the player drives a manual executor while playing")
	assert.Equal(t, ResponseNotAllowed, p.Play(context.Background()), "no second play on the same player")

	require.Equal(t, ResponseSuccess, p.Pause())
	assert.Equal(t, StatePaused, p.State())
	time.Sleep(30 * time.Millisecond)
	c1 := p.Time().FrameCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, c1, p.Time().FrameCount(), "no frames advance while paused")

	require.Equal(t, ResponseSuccess, p.Resume())
	require.Eventually(t, func() bool { return p.Time().FrameCount() > c1 }, time.Second, time.Millisecond)

	require.Equal(t, ResponseSuccess, p.Stop())
	select {
	case resp := <-done:
		assert.Equal(t, ResponseSuccess, resp)
	case <-time.After(time.Second):
		t.Fatal("play did not wind down after stop")
	}
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, flow.ModeData, f.Mode(), "previous executor restored")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []StateChange{
		{Old: StateStopped, New: StatePlaying},
		{Old: StatePlaying, New: StatePaused},
		{Old: StatePaused, New: StatePlaying},
		{Old: StatePlaying, New: StateStopped},
	}, changes)
}

func TestFlowPlayer_ContextCancellation(t *testing.T) {
	t.Parallel()

	f := flow.New("t", nil)
	require.NoError(t, f.AddNode(newTicker(0)))
	p := NewFlowPlayer(f, 250)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Response, 1)
	go func() { done <- p.Play(ctx) }()
	require.Eventually(t, func() bool { return p.State() == StatePlaying }, time.Second, time.Millisecond)

	cancel()
	select {
	case resp := <-done:
		assert.Equal(t, ResponseSuccess, resp)
	case <-time.After(time.Second):
		t.Fatal("play did not wind down after cancellation")
	}
}
