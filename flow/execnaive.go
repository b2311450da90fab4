package flow

import "github.com/zclconf/go-cty/cty"

// execFlowNaive implements control-flow semantics: exec outputs push
// triggers forward, while data moves only on demand. Reading a data input
// pulls the connected predecessor, asking it to recompute before the value
// is taken. SetOutput stores silently and never propagates.
type execFlowNaive struct {
	flow *Flow

	// pulling guards against recursive pulls: a node whose recomputation is
	// already in progress is not pulled again from inside itself.
	pulling map[Node]bool
}

func newExecFlowNaive(f *Flow) *execFlowNaive {
	return &execFlowNaive{flow: f, pulling: make(map[Node]bool)}
}

func (e *execFlowNaive) Mode() AlgorithmMode { return ModeExec }

func (e *execFlowNaive) UpdateNode(n Node, inp int) {
	invokeNode(e.flow, n, inp)
}

// Input pulls: when the input is connected, the producing node recomputes
// first, then the output's value is read. Cyclic pulls are cut short with a
// warning, returning the output's last value instead of recursing.
func (e *execFlowNaive) Input(n Node, index int) cty.Value {
	in := n.base().InputPort(index)
	out := e.flow.ConnectedOutput(in)
	if out == nil {
		return in.def
	}

	src := out.node
	if e.pulling[src] {
		e.flow.logger.Warn("recursive pull cut short, using last value",
			"flow", e.flow.name, "node", src.base().gid)
		return out.val
	}
	e.pulling[src] = true
	invokeNode(e.flow, src, -1)
	delete(e.pulling, src)
	return out.val
}

func (e *execFlowNaive) SetOutput(n Node, index int, val cty.Value) {
	n.base().OutputPort(index).val = val
}

// ExecOutput pushes the trigger to every connected node, depth-first.
func (e *execFlowNaive) ExecOutput(n Node, index int) {
	out := n.base().OutputPort(index)
	targets := append([]*Port(nil), e.flow.adj[out]...)
	for _, in := range targets {
		e.flow.ConnectionActivated.Emit(Connection{Out: out, In: in})
		invokeNode(e.flow, in.node, in.node.base().InputIndex(in))
	}
}

func (e *execFlowNaive) ConnAdded(out, in *Port)   {}
func (e *execFlowNaive) ConnRemoved(out, in *Port) {}
func (e *execFlowNaive) Invalidate()               {}
