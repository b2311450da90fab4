package flow

import (
	"github.com/zclconf/go-cty/cty"
)

// Kind distinguishes data ports, which carry values, from exec ports, which
// carry bare trigger signals.
type Kind int

const (
	KindData Kind = iota
	KindExec
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindExec:
		return "exec"
	}
	return "unknown"
}

// Direction tells whether a port receives or emits.
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirOut {
		return "output"
	}
	return "input"
}

// PortConfig describes a port to be created on a node, either statically in
// the node's constructor or dynamically at runtime.
type PortConfig struct {
	Label string
	Kind  Kind

	// Type is the declared data type constraint. cty.NilType accepts
	// anything. Ignored for exec ports.
	Type cty.Type

	// Default is the value resolved at an input while it has no incoming
	// connection. Ignored for outputs and exec ports.
	Default cty.Value
}

// Port is a connection terminal owned by a node. Inputs accept at most one
// incoming connection; outputs fan out to any number of connections.
type Port struct {
	node  Node
	dir   Direction
	kind  Kind
	label string
	typ   cty.Type

	// def is the unconnected-input fallback; val is the last value set on
	// an output.
	def cty.Value
	val cty.Value
}

func newPort(node Node, dir Direction, cfg PortConfig) *Port {
	return &Port{
		node:  node,
		dir:   dir,
		kind:  cfg.Kind,
		label: cfg.Label,
		typ:   cfg.Type,
		def:   cfg.Default,
	}
}

// Node returns the owning node.
func (p *Port) Node() Node { return p.node }

// Direction returns whether this is an input or an output.
func (p *Port) Direction() Direction { return p.dir }

// Kind returns whether this is a data or an exec port.
func (p *Port) Kind() Kind { return p.kind }

// Label returns the port's display label.
func (p *Port) Label() string { return p.label }

// SetLabel renames the port.
func (p *Port) SetLabel(label string) { p.label = label }

// Type returns the declared data type constraint. cty.NilType means the
// port accepts anything.
func (p *Port) Type() cty.Type { return p.typ }

// Default returns the fallback value of an unconnected input.
func (p *Port) Default() cty.Value { return p.def }

// Value returns the last value set on an output, or cty.NilVal if it never
// produced one.
func (p *Port) Value() cty.Value { return p.val }

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	Out *Port
	In  *Port
}
