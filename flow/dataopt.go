package flow

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// dataFlowOptimized implements the same forward-propagation semantics as
// the naive data executor but guarantees that each connection activates at
// most once per triggered execution.
//
// On a trigger (an explicit UpdateNode call or a root SetOutput) it
// computes the subgraph reachable from the trigger and, in one linear pass,
// a wait count per node: the number of distinct reachable predecessors that
// can still feed it fresh data in this execution. SetOutput calls made
// inside callbacks only mark the output dirty; once a node is fully
// updated, its dirty values are delivered and every reachable successor's
// wait count drops by one. A successor whose count reaches zero is updated
// exactly once, recursively. On graphs with reconvergent paths this yields
// asymptotic savings over the naive variant.
//
// The wait-count computation assumes the reachable subgraph is acyclic; a
// trigger from which a cycle is reachable fails fast through the error hook
// and performs no node invocations. The topology is locked for the duration
// of an execution, so re-entrant connection changes are rejected by the
// flow.
type dataFlowOptimized struct {
	flow *Flow

	// Transient per-execution bookkeeping, cleared between executions.
	inflight  bool
	reachable map[Node]bool
	wait      map[Node]int
	dirty     map[*Port]bool
	fresh     map[*Port]bool
}

func newDataFlowOptimized(f *Flow) *dataFlowOptimized {
	return &dataFlowOptimized{flow: f}
}

func (e *dataFlowOptimized) Mode() AlgorithmMode { return ModeDataOpt }

func (e *dataFlowOptimized) UpdateNode(n Node, inp int) {
	if e.inflight {
		// Nested direct activation from inside a callback; run it within
		// the current execution without fresh bookkeeping.
		invokeNode(e.flow, n, inp)
		return
	}
	if !e.begin(n) {
		return
	}
	defer e.end()

	invokeNode(e.flow, n, inp)
	e.finish(n)
}

func (e *dataFlowOptimized) Input(n Node, index int) cty.Value {
	return resolveInput(e.flow, n, index)
}

func (e *dataFlowOptimized) SetOutput(n Node, index int, val cty.Value) {
	out := n.base().OutputPort(index)
	if e.inflight {
		out.val = val
		e.dirty[out] = true
		return
	}

	// A root SetOutput triggers an execution of its own.
	if !e.begin(n) {
		return
	}
	defer e.end()

	out.val = val
	e.dirty[out] = true
	e.finish(n)
}

// ExecOutput keeps the naive trigger semantics for exec connections mixed
// into a data-opt flow: connected nodes fire synchronously, depth-first.
func (e *dataFlowOptimized) ExecOutput(n Node, index int) {
	out := n.base().OutputPort(index)
	targets := append([]*Port(nil), e.flow.adj[out]...)
	for _, in := range targets {
		e.flow.ConnectionActivated.Emit(Connection{Out: out, In: in})
		invokeNode(e.flow, in.node, in.node.base().InputIndex(in))
	}
}

// ConnAdded delivers the output's existing value across the new edge by
// triggering an execution rooted at the consumer.
func (e *dataFlowOptimized) ConnAdded(out, in *Port) {
	if out.kind != KindData || out.val == cty.NilVal {
		return
	}
	e.UpdateNode(in.node, in.node.base().InputIndex(in))
}

func (e *dataFlowOptimized) ConnRemoved(out, in *Port) {}

func (e *dataFlowOptimized) Invalidate() {
	if !e.inflight {
		e.reachable = nil
		e.wait = nil
		e.dirty = nil
		e.fresh = nil
	}
}

// begin prepares one execution triggered at start: it locks the topology,
// collects the reachable subgraph, rejects reachable cycles and computes
// the wait counts. Returns false if the execution must not run.
func (e *dataFlowOptimized) begin(start Node) bool {
	if err := e.flow.BeginTraversal(); err != nil {
		e.flow.reportNodeError(start, -1, err)
		return false
	}

	e.reachable = map[Node]bool{}
	queue := []Node{start}
	e.reachable[start] = true
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, s := range e.flow.succ[n] {
			if !e.reachable[s] {
				e.reachable[s] = true
				queue = append(queue, s)
			}
		}
	}

	if cyclic := e.findCycle(start); cyclic != nil {
		e.flow.EndTraversal()
		e.flow.reportNodeError(cyclic, -1,
			fmt.Errorf("cycle reachable from trigger node %d; optimized data flow requires an acyclic reachable subgraph", start.base().gid))
		e.reset()
		return false
	}

	// One linear pass: a node waits for each distinct reachable
	// predecessor, since each of those can still produce fresh data.
	e.wait = make(map[Node]int, len(e.reachable))
	for n := range e.reachable {
		preds := map[Node]bool{}
		for _, in := range n.base().inputs {
			out := e.flow.adjRev[in]
			if out == nil || !e.reachable[out.node] || out.node == n {
				continue
			}
			preds[out.node] = true
		}
		e.wait[n] = len(preds)
	}

	e.dirty = map[*Port]bool{}
	e.fresh = map[*Port]bool{}
	e.inflight = true
	return true
}

func (e *dataFlowOptimized) end() {
	e.flow.EndTraversal()
	e.reset()
}

func (e *dataFlowOptimized) reset() {
	e.inflight = false
	e.reachable = nil
	e.wait = nil
	e.dirty = nil
	e.fresh = nil
}

// findCycle runs a three-color depth-first search over the reachable
// subgraph and returns a node on a cycle, or nil.
func (e *dataFlowOptimized) findCycle(start Node) Node {
	permanent := map[Node]bool{}
	temporary := map[Node]bool{}

	var visit func(n Node) Node
	visit = func(n Node) Node {
		if permanent[n] {
			return nil
		}
		if temporary[n] {
			return n
		}
		temporary[n] = true
		for _, s := range e.flow.succ[n] {
			if !e.reachable[s] {
				continue
			}
			if hit := visit(s); hit != nil {
				return hit
			}
		}
		delete(temporary, n)
		permanent[n] = true
		return nil
	}

	for n := range e.reachable {
		if hit := visit(n); hit != nil {
			return hit
		}
	}
	return nil
}

// finish is called once node n is fully updated. Its dirty outputs are
// delivered across each outgoing connection exactly once, every distinct
// reachable successor's wait count drops, and successors that become ready
// update in turn. A node whose callback failed contributes its decrements
// all the same: its outputs stay at their last value, stale but not
// blocking downstream readiness.
func (e *dataFlowOptimized) finish(n Node) {
	nb := n.base()

	for _, out := range nb.outputs {
		if !e.dirty[out] {
			continue
		}
		for _, in := range e.flow.adj[out] {
			e.flow.ConnectionActivated.Emit(Connection{Out: out, In: in})
			e.fresh[in] = true
		}
	}

	seen := map[Node]bool{}
	for _, s := range e.flow.succ[n] {
		if seen[s] || !e.reachable[s] {
			continue
		}
		seen[s] = true
		e.wait[s]--
		if e.wait[s] > 0 {
			continue
		}
		invokeNode(e.flow, s, e.freshInputIndex(s))
		e.finish(s)
	}
}

// freshInputIndex picks the trigger index reported to a node that became
// ready: the lowest input that received fresh data, or -1 when none did.
func (e *dataFlowOptimized) freshInputIndex(n Node) int {
	for i, in := range n.base().inputs {
		if e.fresh[in] {
			return i
		}
	}
	return -1
}
