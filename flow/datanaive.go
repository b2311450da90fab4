package flow

import "github.com/zclconf/go-cty/cty"

// dataFlowNaive forward-propagates data on change, eagerly and depth-first:
// SetOutput synchronously invokes every connected node before returning.
//
// Correct for graphs without non-terminating feedback. At reconvergent
// fan-in (diamond patterns) a sink fed by two branches from a common
// ancestor is evaluated once per incoming branch rather than once overall;
// that is documented, expected behavior of this variant, not a defect.
type dataFlowNaive struct {
	flow *Flow
}

func newDataFlowNaive(f *Flow) *dataFlowNaive {
	return &dataFlowNaive{flow: f}
}

func (e *dataFlowNaive) Mode() AlgorithmMode { return ModeData }

func (e *dataFlowNaive) UpdateNode(n Node, inp int) {
	invokeNode(e.flow, n, inp)
}

func (e *dataFlowNaive) Input(n Node, index int) cty.Value {
	return resolveInput(e.flow, n, index)
}

func (e *dataFlowNaive) SetOutput(n Node, index int, val cty.Value) {
	out := n.base().OutputPort(index)
	out.val = val
	// Snapshot: callbacks triggered below may alter the adjacency.
	targets := append([]*Port(nil), e.flow.adj[out]...)
	for _, in := range targets {
		e.flow.ConnectionActivated.Emit(Connection{Out: out, In: in})
		invokeNode(e.flow, in.node, in.node.base().InputIndex(in))
	}
}

func (e *dataFlowNaive) ExecOutput(n Node, index int) {
	out := n.base().OutputPort(index)
	targets := append([]*Port(nil), e.flow.adj[out]...)
	for _, in := range targets {
		e.flow.ConnectionActivated.Emit(Connection{Out: out, In: in})
		invokeNode(e.flow, in.node, in.node.base().InputIndex(in))
	}
}

// ConnAdded delivers the output's existing value across a new data edge, so
// wiring an already-producing source immediately updates the consumer.
func (e *dataFlowNaive) ConnAdded(out, in *Port) {
	if out.kind == KindData && out.val != cty.NilVal {
		e.flow.ConnectionActivated.Emit(Connection{Out: out, In: in})
		invokeNode(e.flow, in.node, in.node.base().InputIndex(in))
	}
}

func (e *dataFlowNaive) ConnRemoved(out, in *Port) {}
func (e *dataFlowNaive) Invalidate()               {}
