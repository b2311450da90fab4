package flow

import "github.com/zclconf/go-cty/cty"

// ManualFlow performs no propagation at all. SetOutput records the value
// and flags the port as updated; UpdateNode just invokes the node. It is
// the substrate a player drives: the player performs its own traversal and
// uses the pending-update queries instead of automatic propagation.
type ManualFlow struct {
	flow    *Flow
	updated map[*Port]bool
}

// NewManualFlow builds a manual executor for the flow.
func NewManualFlow(f *Flow) *ManualFlow {
	return &ManualFlow{flow: f, updated: make(map[*Port]bool)}
}

func (e *ManualFlow) Mode() AlgorithmMode { return ModeManual }

func (e *ManualFlow) UpdateNode(n Node, inp int) {
	invokeNode(e.flow, n, inp)
}

func (e *ManualFlow) Input(n Node, index int) cty.Value {
	return resolveInput(e.flow, n, index)
}

func (e *ManualFlow) SetOutput(n Node, index int, val cty.Value) {
	out := n.base().OutputPort(index)
	out.val = val
	e.updated[out] = true
}

func (e *ManualFlow) ExecOutput(n Node, index int) {
	e.updated[n.base().OutputPort(index)] = true
}

func (e *ManualFlow) ConnAdded(out, in *Port)   {}
func (e *ManualFlow) ConnRemoved(out, in *Port) {}
func (e *ManualFlow) Invalidate()               {}

// ShouldInputUpdate reports whether the input's connected output received
// new data since the pending flags were last cleared.
func (e *ManualFlow) ShouldInputUpdate(in *Port) bool {
	out := e.flow.ConnectedOutput(in)
	return out != nil && e.updated[out]
}

// HasUpdatedOutputs reports whether any of the node's outputs holds a
// pending update.
func (e *ManualFlow) HasUpdatedOutputs(n Node) bool {
	for _, out := range n.base().outputs {
		if e.updated[out] {
			return true
		}
	}
	return false
}

// ClearUpdates resets all pending-update flags, marking everything
// consumed.
func (e *ManualFlow) ClearUpdates() {
	clear(e.updated)
}
