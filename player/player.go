package player

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HeftyCoder/ryvencore/base"
	"github.com/HeftyCoder/ryvencore/flow"
)

// State is the player lifecycle state.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// Response reports the outcome of a player action request.
type Response int

const (
	// ResponseSuccess: the action was applied.
	ResponseSuccess Response = iota
	// ResponseNoGraph: the player has no flow to act on.
	ResponseNoGraph
	// ResponseNotAllowed: the action is illegal in the current state.
	ResponseNotAllowed
)

func (r Response) String() string {
	switch r {
	case ResponseSuccess:
		return "success"
	case ResponseNoGraph:
		return "no graph"
	case ResponseNotAllowed:
		return "not allowed"
	}
	return "unknown"
}

// StateChange describes one lifecycle transition.
type StateChange struct {
	Old State
	New State
}

// GraphPlayer is the lifecycle contract of anything that can run a graph.
type GraphPlayer interface {
	State() State
	Time() *GraphTime
	Play(ctx context.Context) Response
	Pause() Response
	Resume() Response
	Stop() Response
}

// DefaultFrameRate is used when a player is built with a non-positive rate.
const DefaultFrameRate = 30

// FlowPlayer runs one flow. Play blocks on the calling goroutine until the
// play ends: a player run completes when every frame node reports finished,
// when Stop is requested (from any goroutine, including a node callback),
// or when the context is cancelled. Graphs without frame nodes complete
// after a single update pass over the root nodes.
//
// While playing, the flow's executor is replaced by a manual one and the
// player performs its own wait-counted traversal, so each node fires at
// most once per pass regardless of fan-in. The previous executor is
// restored on stop.
type FlowPlayer struct {
	flow      *flow.Flow
	logger    *slog.Logger
	frameRate int

	mu     sync.Mutex
	state  State
	active []flow.Node
	frames []flow.FrameNode

	stop atomic.Bool
	time GraphTime

	// StateChanged fires on every lifecycle transition, from the goroutine
	// that drove it.
	StateChanged base.Event[StateChange]
}

// NewFlowPlayer builds a player for the flow. A non-positive frame rate
// falls back to DefaultFrameRate.
func NewFlowPlayer(f *flow.Flow, frameRate int) *FlowPlayer {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	logger := slog.Default()
	if f != nil {
		logger = f.Logger()
	}
	return &FlowPlayer{flow: f, logger: logger, frameRate: frameRate}
}

// State returns the current lifecycle state.
func (p *FlowPlayer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Time returns the player's clock. Safe to read while playing.
func (p *FlowPlayer) Time() *GraphTime { return &p.time }

// Play runs the flow, blocking until the play ends. Only legal while
// stopped.
func (p *FlowPlayer) Play(ctx context.Context) Response {
	p.mu.Lock()
	if p.flow == nil {
		p.mu.Unlock()
		return ResponseNoGraph
	}
	if p.state != StateStopped {
		p.mu.Unlock()
		return ResponseNotAllowed
	}
	p.stop.Store(false)
	p.active, p.frames = p.gather()

	prev := p.flow.Executor()
	manual := flow.NewManualFlow(p.flow)
	p.flow.SetExecutor(manual)
	p.time.reset(p.frameRate)
	p.state = StatePlaying
	active := p.active
	p.mu.Unlock()
	p.StateChanged.Emit(StateChange{Old: StateStopped, New: StatePlaying})

	p.logger.Info("play started.", "flow", p.flow.Name(), "frame_rate", p.frameRate, "active_nodes", len(active))
	p.run(ctx, manual)

	for _, n := range active {
		n.Stop()
	}

	p.mu.Lock()
	p.flow.SetExecutor(prev)
	old := p.state
	p.state = StateStopped
	p.active = nil
	p.frames = nil
	p.mu.Unlock()
	p.StateChanged.Emit(StateChange{Old: old, New: StateStopped})
	p.logger.Info("play stopped.", "flow", p.flow.Name(), "frames", p.time.FrameCount())
	return ResponseSuccess
}

// Pause suspends frame ticking. Only legal while playing, and only on
// graphs with frame nodes; a frameless play has nothing to suspend.
func (p *FlowPlayer) Pause() Response {
	p.mu.Lock()
	if p.state != StatePlaying || len(p.frames) == 0 {
		p.mu.Unlock()
		return ResponseNotAllowed
	}
	p.state = StatePaused
	active := p.active
	p.mu.Unlock()

	for _, n := range active {
		n.Pause()
	}
	p.StateChanged.Emit(StateChange{Old: StatePlaying, New: StatePaused})
	return ResponseSuccess
}

// Resume continues a paused play.
func (p *FlowPlayer) Resume() Response {
	p.mu.Lock()
	if p.state != StatePaused {
		p.mu.Unlock()
		return ResponseNotAllowed
	}
	p.state = StatePlaying
	p.mu.Unlock()
	p.StateChanged.Emit(StateChange{Old: StatePaused, New: StatePlaying})
	return ResponseSuccess
}

// Stop requests the end of the current play. It returns as soon as the
// request is recorded; the play loop winds down on its own goroutine.
// Legal while playing or paused, including from inside a node callback.
func (p *FlowPlayer) Stop() Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateStopped {
		return ResponseNotAllowed
	}
	p.stop.Store(true)
	return ResponseSuccess
}

// gather partitions the flow's nodes for one play: active nodes take part
// at all (at least one connection, or a frame node), frame nodes tick every
// frame, and roots seed the initial pass (active non-frame nodes without
// incoming connections).
func (p *FlowPlayer) gather() (active []flow.Node, frames []flow.FrameNode) {
	for _, n := range p.flow.Nodes() {
		fn, isFrame := n.(flow.FrameNode)
		if !isFrame && !p.connected(n) {
			continue
		}
		active = append(active, n)
		if isFrame {
			frames = append(frames, fn)
		}
	}
	return active, frames
}

func (p *FlowPlayer) roots(active []flow.Node) []flow.Node {
	var roots []flow.Node
	for _, n := range active {
		if _, isFrame := n.(flow.FrameNode); isFrame {
			continue
		}
		if !p.inputConnected(n) {
			roots = append(roots, n)
		}
	}
	return roots
}

func (p *FlowPlayer) connected(n flow.Node) bool {
	if p.inputConnected(n) {
		return true
	}
	for _, out := range flow.NodeOutputs(n) {
		if len(p.flow.ConnectedInputs(out)) > 0 {
			return true
		}
	}
	return false
}

func (p *FlowPlayer) inputConnected(n flow.Node) bool {
	for _, in := range flow.NodeInputs(n) {
		if p.flow.ConnectedOutput(in) != nil {
			return true
		}
	}
	return false
}

func (p *FlowPlayer) run(ctx context.Context, manual *flow.ManualFlow) {
	p.mu.Lock()
	active, frames := p.active, p.frames
	p.mu.Unlock()

	for _, n := range active {
		n.Init()
	}

	p.pass(manual, p.roots(active), true)

	if len(frames) == 0 {
		return
	}
	frameDur := time.Second / time.Duration(p.frameRate)

	for {
		if p.stop.Load() || ctx.Err() != nil {
			return
		}
		if p.State() == StatePaused {
			time.Sleep(frameDur)
			continue
		}

		unfinished := frames[:0:0]
		for _, fn := range frames {
			if !fn.Finished() {
				unfinished = append(unfinished, fn)
			}
		}
		if len(unfinished) == 0 {
			return
		}

		start := time.Now()
		p.time.beginFrame()

		var tickRoots []flow.Node
		for _, fn := range unfinished {
			if err := fn.FrameUpdateEvent(); err != nil {
				p.logger.Warn("frame update failed.", "flow", p.flow.Name(), "node", flow.NodeGID(fn), "error", err)
			}
			if manual.HasUpdatedOutputs(fn) {
				tickRoots = append(tickRoots, fn)
			}
		}
		p.pass(manual, tickRoots, false)

		if rest := frameDur - time.Since(start); rest > 0 {
			time.Sleep(rest)
		}
		p.time.endFrame(time.Since(start))
	}
}

// pass performs one wait-counted traversal from the given roots: every
// reachable node fires at most once, after all of its reachable
// predecessors. Frame-seeded passes skip firing the roots themselves, since
// their frame callback already ran.
func (p *FlowPlayer) pass(manual *flow.ManualFlow, roots []flow.Node, fireRoots bool) {
	defer manual.ClearUpdates()
	if len(roots) == 0 {
		return
	}
	if err := p.flow.BeginTraversal(); err != nil {
		p.logger.Warn("pass skipped, topology locked.", "flow", p.flow.Name(), "error", err)
		return
	}
	defer p.flow.EndTraversal()

	rootSet := make(map[flow.Node]bool, len(roots))
	reachable := make(map[flow.Node]bool)
	var queue []flow.Node
	for _, r := range roots {
		rootSet[r] = true
		if !reachable[r] {
			reachable[r] = true
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, s := range p.flow.NodeSuccessors(n) {
			if !reachable[s] {
				reachable[s] = true
				queue = append(queue, s)
			}
		}
	}

	wait := make(map[flow.Node]int, len(reachable))
	for n := range reachable {
		if rootSet[n] {
			continue
		}
		preds := map[flow.Node]bool{}
		for _, in := range flow.NodeInputs(n) {
			out := p.flow.ConnectedOutput(in)
			if out == nil || !reachable[out.Node()] || out.Node() == n {
				continue
			}
			preds[out.Node()] = true
		}
		wait[n] = len(preds)
	}

	ready := append([]flow.Node(nil), roots...)
	for i := 0; i < len(ready); i++ {
		n := ready[i]
		if fireRoots || !rootSet[n] {
			manual.UpdateNode(n, p.triggerIndex(manual, n))
		}
		seen := map[flow.Node]bool{}
		for _, s := range p.flow.NodeSuccessors(n) {
			if seen[s] || rootSet[s] || !reachable[s] {
				continue
			}
			seen[s] = true
			wait[s]--
			if wait[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
}

// triggerIndex picks the input index reported to a fired node: the lowest
// input whose upstream output holds a pending update, or -1.
func (p *FlowPlayer) triggerIndex(manual *flow.ManualFlow, n flow.Node) int {
	for i, in := range flow.NodeInputs(n) {
		if manual.ShouldInputUpdate(in) {
			return i
		}
	}
	return -1
}
