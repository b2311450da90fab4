// Package std ships a small set of built-in node types: enough to express
// useful flows from a definition file without writing Go, and a reference
// for implementing custom nodes.
package std

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/HeftyCoder/ryvencore/flow"
	"github.com/HeftyCoder/ryvencore/session"
)

// Register adds all built-in node types to the session.
func Register(s *session.Session) {
	s.RegisterNodeType("std.const", NewConst)
	s.RegisterNodeType("std.add", NewAdd)
	s.RegisterNodeType("std.log", NewLog)
	s.RegisterNodeType("std.tick", NewTick)
}

// Const emits a configured constant on its single output whenever it is
// updated. Without a configured value it stays silent.
type Const struct {
	flow.NodeBase
	value cty.Value
}

func NewConst() flow.Node {
	n := &Const{value: cty.NilVal}
	n.CreateOutput(flow.PortConfig{Label: "value"})
	return n
}

func (n *Const) Configure(args map[string]cty.Value) error {
	for key, v := range args {
		switch key {
		case "value":
			n.value = v
		default:
			return fmt.Errorf("const: unknown argument %q", key)
		}
	}
	return nil
}

func (n *Const) UpdateEvent(inp int) error {
	if n.value == cty.NilVal {
		return nil
	}
	return n.SetOutput(0, n.value)
}

// Add sums its two number inputs. Unconnected inputs count as zero.
type Add struct {
	flow.NodeBase
}

func NewAdd() flow.Node {
	n := &Add{}
	n.CreateInput(flow.PortConfig{Label: "a", Type: cty.Number, Default: cty.Zero})
	n.CreateInput(flow.PortConfig{Label: "b", Type: cty.Number, Default: cty.Zero})
	n.CreateOutput(flow.PortConfig{Label: "sum", Type: cty.Number})
	return n
}

func (n *Add) UpdateEvent(inp int) error {
	a, err := number(n.Input(0))
	if err != nil {
		return fmt.Errorf("add: input a: %w", err)
	}
	b, err := number(n.Input(1))
	if err != nil {
		return fmt.Errorf("add: input b: %w", err)
	}
	return n.SetOutput(0, a.Add(b))
}

// number coerces an input value to cty.Number, treating a never-produced
// upstream value as zero.
func number(v cty.Value) (cty.Value, error) {
	if v == cty.NilVal {
		return cty.Zero, nil
	}
	return convert.Convert(v, cty.Number)
}

// Log writes every value arriving at its input to the flow's logger.
type Log struct {
	flow.NodeBase
	label string
}

func NewLog() flow.Node {
	n := &Log{label: "log"}
	n.CreateInput(flow.PortConfig{Label: "value"})
	return n
}

func (n *Log) Configure(args map[string]cty.Value) error {
	for key, v := range args {
		switch key {
		case "label":
			if v.Type() != cty.String {
				return fmt.Errorf("log: label must be a string")
			}
			n.label = v.AsString()
		default:
			return fmt.Errorf("log: unknown argument %q", key)
		}
	}
	return nil
}

func (n *Log) UpdateEvent(inp int) error {
	v := n.Input(0)
	if v == cty.NilVal {
		return nil
	}
	n.Flow().Logger().Info("node output.", "label", n.label, "value", v.GoString())
	return nil
}

// Tick is a frame node that emits the running frame number on its output
// each frame and finishes after a configured limit (0 means never).
type Tick struct {
	flow.FrameNodeBase
	limit int64
	count int64
}

func NewTick() flow.Node {
	n := &Tick{}
	n.CreateOutput(flow.PortConfig{Label: "frame", Type: cty.Number})
	return n
}

func (n *Tick) Configure(args map[string]cty.Value) error {
	for key, v := range args {
		switch key {
		case "limit":
			num, err := convert.Convert(v, cty.Number)
			if err != nil {
				return fmt.Errorf("tick: limit: %w", err)
			}
			limit, _ := num.AsBigFloat().Int64()
			n.limit = limit
		default:
			return fmt.Errorf("tick: unknown argument %q", key)
		}
	}
	return nil
}

func (n *Tick) Init() {
	n.count = 0
	n.ClearFinished()
}

func (n *Tick) FrameUpdateEvent() error {
	n.count++
	if err := n.SetOutput(0, cty.NumberIntVal(n.count)); err != nil {
		return err
	}
	if n.limit > 0 && n.count >= n.limit {
		n.SetFinished()
	}
	return nil
}
