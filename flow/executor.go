package flow

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// AlgorithmMode selects the executor variant governing a flow's propagation
// semantics.
type AlgorithmMode int

const (
	ModeManual AlgorithmMode = iota
	ModeData
	ModeDataOpt
	ModeExec
)

func (m AlgorithmMode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeData:
		return "data"
	case ModeDataOpt:
		return "data-opt"
	case ModeExec:
		return "exec"
	}
	return "unknown"
}

// ParseMode resolves an algorithm mode name.
func ParseMode(s string) (AlgorithmMode, error) {
	switch s {
	case "manual":
		return ModeManual, nil
	case "data":
		return ModeData, nil
	case "data-opt":
		return ModeDataOpt, nil
	case "exec":
		return ModeExec, nil
	}
	return ModeManual, fmt.Errorf("unknown algorithm mode %q (want manual, data, data-opt or exec)", s)
}

// Executor mediates every node/port interaction of a flow and decides its
// propagation semantics. Executors are strategy objects; all variants but
// the optimized one are stateless beyond the flow reference.
type Executor interface {
	// Mode identifies the variant.
	Mode() AlgorithmMode

	// UpdateNode invokes the node's UpdateEvent with the given trigger
	// input index (-1 for a direct trigger).
	UpdateNode(n Node, inp int)

	// Input resolves the value present at the data input of the given
	// index.
	Input(n Node, index int) cty.Value

	// SetOutput records a node's output value; whether and when it
	// propagates is up to the variant.
	SetOutput(n Node, index int, val cty.Value)

	// ExecOutput fires a trigger signal on an exec output.
	ExecOutput(n Node, index int)

	// ConnAdded and ConnRemoved let stateful variants react to topology
	// changes.
	ConnAdded(out, in *Port)
	ConnRemoved(out, in *Port)

	// Invalidate discards any bookkeeping derived from the topology.
	Invalidate()
}

// NewExecutor builds the executor for an algorithm mode, operating on the
// given flow's adjacency indices.
func NewExecutor(m AlgorithmMode, f *Flow) Executor {
	switch m {
	case ModeManual:
		return NewManualFlow(f)
	case ModeData:
		return newDataFlowNaive(f)
	case ModeDataOpt:
		return newDataFlowOptimized(f)
	case ModeExec:
		return newExecFlowNaive(f)
	}
	panic(fmt.Sprintf("no executor for algorithm mode %d", m))
}

// invokeNode runs a node's UpdateEvent, catching both returned errors and
// panics at the executor boundary so one failing callback cannot abort the
// remainder of the current pass.
func invokeNode(f *Flow, n Node, inp int) {
	defer func() {
		if r := recover(); r != nil {
			f.reportNodeError(n, inp, fmt.Errorf("panic in update event: %v", r))
		}
	}()
	if err := n.UpdateEvent(inp); err != nil {
		f.reportNodeError(n, inp, err)
	}
}

// resolveInput reads the value at a data input: the connected output's last
// value, or the input's default while unconnected.
func resolveInput(f *Flow, n Node, index int) cty.Value {
	in := n.base().InputPort(index)
	if out := f.ConnectedOutput(in); out != nil {
		return out.val
	}
	return in.def
}
