package flow

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Node is the contract every computational unit fulfills. Implementations
// embed NodeBase, which provides the port machinery and no-op versions of
// every hook, and supply UpdateEvent themselves.
//
// UpdateEvent is invoked by the flow's executor whenever the node is
// activated: inp is the index of the input that received a signal, or -1
// when the node was triggered directly or asked to produce output on demand
// (exec mode pulls). Returning an error reports the failure through the
// flow's NodeErrored event without aborting the surrounding pass.
type Node interface {
	UpdateEvent(inp int) error

	// Optional lifecycle hooks, all no-ops on NodeBase.
	PlaceEvent()
	RemoveEvent()
	Init()
	Pause()
	Stop()

	base() *NodeBase
}

// FrameNode is a node evaluated once per player tick in addition to the
// regular update mechanism. FrameUpdateEvent is called every frame until
// Finished reports true.
type FrameNode interface {
	Node
	FrameUpdateEvent() error
	Finished() bool
}

// Configurable is implemented by nodes that accept a configuration object,
// e.g. decoded from a flow definition file.
type Configurable interface {
	Configure(args map[string]cty.Value) error
}

// Factory creates a fresh, unplaced node instance. The flow reference is
// wired when the node is added to a flow.
type Factory func() Node

// NodeBase carries the state shared by all nodes: the owning flow while
// placed, the identity, and the ordered input and output port lists. It is
// meant to be embedded.
type NodeBase struct {
	self   Node
	flow   *Flow
	gid    int64
	typeID string

	inputs  []*Port
	outputs []*Port
}

func (b *NodeBase) base() *NodeBase { return b }

// Default no-op hooks.

func (b *NodeBase) PlaceEvent()  {}
func (b *NodeBase) RemoveEvent() {}
func (b *NodeBase) Init()        {}
func (b *NodeBase) Pause()       {}
func (b *NodeBase) Stop()        {}

// Flow returns the flow the node is currently placed in, or nil.
func (b *NodeBase) Flow() *Flow { return b.flow }

// GID returns the node's identity. It is zero until the node is first
// placed in a flow and stable across remove/re-add cycles afterwards.
func (b *NodeBase) GID() int64 { return b.gid }

// TypeID returns the registered node type identifier, if any.
func (b *NodeBase) TypeID() string { return b.typeID }

// SetTypeID records the registered node type identifier. Called by the
// registry that created the node.
func (b *NodeBase) SetTypeID(id string) { b.typeID = id }

// Inputs returns the ordered input ports. The slice is owned by the node
// and must not be modified.
func (b *NodeBase) Inputs() []*Port { return b.inputs }

// Outputs returns the ordered output ports. The slice is owned by the node
// and must not be modified.
func (b *NodeBase) Outputs() []*Port { return b.outputs }

// InputPort returns the input at the given index.
func (b *NodeBase) InputPort(index int) *Port {
	if index < 0 || index >= len(b.inputs) {
		panic(fmt.Sprintf("input index %d out of range (node has %d inputs)", index, len(b.inputs)))
	}
	return b.inputs[index]
}

// OutputPort returns the output at the given index.
func (b *NodeBase) OutputPort(index int) *Port {
	if index < 0 || index >= len(b.outputs) {
		panic(fmt.Sprintf("output index %d out of range (node has %d outputs)", index, len(b.outputs)))
	}
	return b.outputs[index]
}

// InputIndex returns the position of the given input port.
func (b *NodeBase) InputIndex(p *Port) int {
	for i, in := range b.inputs {
		if in == p {
			return i
		}
	}
	return -1
}

// OutputIndex returns the position of the given output port.
func (b *NodeBase) OutputIndex(p *Port) int {
	for i, out := range b.outputs {
		if out == p {
			return i
		}
	}
	return -1
}

// CreateInput appends a new input port. Legal both before and after
// placement; the flow's adjacency is kept in sync while placed.
func (b *NodeBase) CreateInput(cfg PortConfig) *Port {
	// b.self is nil for static ports created in a constructor before the
	// first placement; ownership is fixed up at attach time.
	p := newPort(b.self, DirIn, cfg)
	b.inputs = append(b.inputs, p)
	if b.flow != nil {
		b.flow.addNodePort(p)
	}
	return p
}

// CreateOutput appends a new output port.
func (b *NodeBase) CreateOutput(cfg PortConfig) *Port {
	p := newPort(b.self, DirOut, cfg)
	b.outputs = append(b.outputs, p)
	if b.flow != nil {
		b.flow.addNodePort(p)
	}
	return p
}

// DeleteInput disconnects and removes the input at the given index.
func (b *NodeBase) DeleteInput(index int) error {
	p := b.InputPort(index)
	if b.flow != nil {
		if err := b.flow.removeNodePort(p); err != nil {
			return err
		}
	}
	b.inputs = append(b.inputs[:index], b.inputs[index+1:]...)
	return nil
}

// DeleteOutput disconnects and removes the output at the given index.
func (b *NodeBase) DeleteOutput(index int) error {
	p := b.OutputPort(index)
	if b.flow != nil {
		if err := b.flow.removeNodePort(p); err != nil {
			return err
		}
	}
	b.outputs = append(b.outputs[:index], b.outputs[index+1:]...)
	return nil
}

// Update activates the node through the flow's current executor, as if the
// input at the given index had received a signal. Pass -1 for a direct
// trigger. A no-op while the node is not placed in a flow.
func (b *NodeBase) Update(inp int) {
	if b.flow == nil {
		return
	}
	b.flow.executor.UpdateNode(b.self, inp)
}

// Input resolves the value present at the data input of the given index:
// the connected output's value, or the input's default while unconnected.
// In exec mode this pulls the predecessor first. Do not call on exec
// inputs.
func (b *NodeBase) Input(index int) cty.Value {
	if b.flow == nil {
		return b.InputPort(index).def
	}
	return b.flow.executor.Input(b.self, index)
}

// SetOutput records a value on the data output of the given index, with
// propagation semantics defined by the flow's current executor. The value
// is converted to the port's declared type first; a value the declaration
// rejects is an error and nothing is recorded.
func (b *NodeBase) SetOutput(index int, val cty.Value) error {
	out := b.OutputPort(index)
	if out.kind != KindData {
		return fmt.Errorf("output %d of node %d is an exec port; use ExecOutput", index, b.gid)
	}
	if out.typ != cty.NilType {
		converted, err := convert.Convert(val, out.typ)
		if err != nil {
			return fmt.Errorf("output %d of node %d declares %s: %w", index, b.gid, out.typ.FriendlyName(), err)
		}
		val = converted
	}
	if b.flow == nil {
		out.val = val
		return nil
	}
	b.flow.executor.SetOutput(b.self, index, val)
	return nil
}

// ExecOutput fires a trigger signal on the exec output of the given index.
// Do not call on data outputs.
func (b *NodeBase) ExecOutput(index int) error {
	out := b.OutputPort(index)
	if out.kind != KindExec {
		return fmt.Errorf("output %d of node %d is a data port; use SetOutput", index, b.gid)
	}
	if b.flow != nil {
		b.flow.executor.ExecOutput(b.self, index)
	}
	return nil
}

// InputConnected reports whether the input at the given index has an
// incoming connection.
func (b *NodeBase) InputConnected(index int) bool {
	if b.flow == nil || index < 0 || index >= len(b.inputs) {
		return false
	}
	return b.flow.ConnectedOutput(b.inputs[index]) != nil
}

// OutputConnected reports whether the output at the given index has any
// outgoing connection.
func (b *NodeBase) OutputConnected(index int) bool {
	if b.flow == nil || index < 0 || index >= len(b.outputs) {
		return false
	}
	return len(b.flow.ConnectedInputs(b.outputs[index])) > 0
}

// AnyInputConnected reports whether any input has an incoming connection.
func (b *NodeBase) AnyInputConnected() bool {
	for i := range b.inputs {
		if b.InputConnected(i) {
			return true
		}
	}
	return false
}

// AnyOutputConnected reports whether any output has an outgoing connection.
func (b *NodeBase) AnyOutputConnected() bool {
	for i := range b.outputs {
		if b.OutputConnected(i) {
			return true
		}
	}
	return false
}

// NodeInputs returns a node's ordered input ports through the interface,
// for callers such as players that hold nodes as Node values.
func NodeInputs(n Node) []*Port { return n.base().inputs }

// NodeOutputs returns a node's ordered output ports through the interface.
func NodeOutputs(n Node) []*Port { return n.base().outputs }

// NodeGID returns a node's identity through the interface.
func NodeGID(n Node) int64 { return n.base().gid }

// SetNodeTypeID stamps the registered type identifier on a freshly created
// instance. Called by registries right after the factory runs.
func SetNodeTypeID(n Node, id string) { n.base().typeID = id }

// attach wires the node into a flow and fixes up port ownership for ports
// created before the first placement.
func (b *NodeBase) attach(self Node, f *Flow) {
	b.self = self
	b.flow = f
	for _, p := range b.inputs {
		p.node = self
	}
	for _, p := range b.outputs {
		p.node = self
	}
}

func (b *NodeBase) detach() {
	b.flow = nil
}

// resetPorts drops all ports. Only legal while unplaced; used when
// rebuilding a node from saved data.
func (b *NodeBase) resetPorts() {
	if b.flow != nil {
		panic("resetPorts on a placed node")
	}
	b.inputs = nil
	b.outputs = nil
}

// FrameNodeBase extends NodeBase with the finished flag of a frame-driven
// node. It also supplies a no-op UpdateEvent so that pure frame nodes only
// need to implement FrameUpdateEvent.
type FrameNodeBase struct {
	NodeBase
	finished bool
}

func (b *FrameNodeBase) UpdateEvent(inp int) error { return nil }

// Finished reports whether the node completed its work; the player stops
// ticking it and, once every frame node is finished, stops playing.
func (b *FrameNodeBase) Finished() bool { return b.finished }

// SetFinished marks the node complete.
func (b *FrameNodeBase) SetFinished() { b.finished = true }

// ClearFinished re-arms the node, typically from Init when a new play
// starts.
func (b *FrameNodeBase) ClearFinished() { b.finished = false }
