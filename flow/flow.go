package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/HeftyCoder/ryvencore/base"
)

// ErrTraversalInFlight rejects topology mutations requested while an
// executor or player traversal is running. Wait-count bookkeeping assumes a
// stable reachable subgraph for the duration of one execution, so such
// requests are refused rather than applied mid-traversal.
var ErrTraversalInFlight = errors.New("flow topology is locked by an in-flight traversal")

// NodeError describes a failed node callback, reported through the flow's
// NodeErrored event. Callback failures never abort the surrounding pass.
type NodeError struct {
	Node Node
	Inp  int
	Err  error
}

// Flow is the graph container. It owns the node set, the connection set,
// forward and reverse adjacency indices, and exactly one active Executor at
// a time. All node/port interaction is mediated by that executor.
//
// A flow follows a cooperative, single-logical-context scheduling model: it
// never has two concurrent traversals in flight, and topology mutations are
// rejected while one runs.
type Flow struct {
	name    string
	gid     int64
	ids     *base.IDCounter
	logger  *slog.Logger
	checker TypeChecker

	nodes []Node
	// succ holds one successor entry per connection, so a node connected
	// through two edges appears twice.
	succ   map[Node][]Node
	adj    map[*Port][]*Port
	adjRev map[*Port]*Port

	executor Executor
	locked   atomic.Bool

	// Events. Negative subscription priorities are reserved for the engine.
	NodeAdded           base.Event[Node]
	NodeRemoved         base.Event[Node]
	ConnectionAdded     base.Event[Connection]
	ConnectionRemoved   base.Event[Connection]
	ConnectionActivated base.Event[Connection]
	ModeChanged         base.Event[AlgorithmMode]
	NodeErrored         base.Event[NodeError]
}

// New creates an empty flow. The id counter may be shared across flows (a
// session injects a process-wide one); pass nil to let the flow own a
// private counter. The initial algorithm mode is data (naive).
func New(name string, ids *base.IDCounter) *Flow {
	if ids == nil {
		ids = base.NewIDCounter()
	}
	f := &Flow{
		name:    name,
		ids:     ids,
		gid:     ids.Next(),
		logger:  slog.Default(),
		checker: DefaultTypeChecker,
		succ:    make(map[Node][]Node),
		adj:     make(map[*Port][]*Port),
		adjRev:  make(map[*Port]*Port),
	}
	f.executor = newDataFlowNaive(f)
	return f
}

// Name returns the flow's title.
func (f *Flow) Name() string { return f.name }

// GID returns the flow's identity.
func (f *Flow) GID() int64 { return f.gid }

// Logger returns the flow's logger.
func (f *Flow) Logger() *slog.Logger { return f.logger }

// SetLogger injects the logger used for executor and player diagnostics.
func (f *Flow) SetLogger(l *slog.Logger) {
	if l != nil {
		f.logger = l
	}
}

// SetTypeChecker injects the capability function consulted for data port
// compatibility, e.g. from an external type registry. A nil checker
// restores the default.
func (f *Flow) SetTypeChecker(c TypeChecker) {
	if c == nil {
		c = DefaultTypeChecker
	}
	f.checker = c
}

// Nodes returns the flow's nodes in stable placement order. The slice is a
// copy.
func (f *Flow) Nodes() []Node {
	out := make([]Node, len(f.nodes))
	copy(out, f.nodes)
	return out
}

// NodeSuccessors returns the successor nodes of n, one entry per outgoing
// connection.
func (f *Flow) NodeSuccessors(n Node) []Node {
	return f.succ[n]
}

// ConnectedInputs returns all inputs connected to the given output port.
func (f *Flow) ConnectedInputs(out *Port) []*Port {
	return f.adj[out]
}

// ConnectedOutput returns the output connected to the given input port, or
// nil while it is unconnected.
func (f *Flow) ConnectedOutput(in *Port) *Port {
	return f.adjRev[in]
}

// Connections enumerates every edge in stable (node order, port order)
// order.
func (f *Flow) Connections() []Connection {
	var conns []Connection
	for _, n := range f.nodes {
		for _, out := range n.base().outputs {
			for _, in := range f.adj[out] {
				conns = append(conns, Connection{Out: out, In: in})
			}
		}
	}
	return conns
}

// AddNode places a node in the graph. The node's PlaceEvent hook fires and
// the flow starts indexing its ports. A node removed earlier may be added
// again; it keeps its identity (undo/redo support).
func (f *Flow) AddNode(n Node) error {
	if f.locked.Load() {
		return ErrTraversalInFlight
	}
	nb := n.base()
	if nb.flow == f {
		return fmt.Errorf("node %d is already placed in this flow", nb.gid)
	}
	if nb.flow != nil {
		return fmt.Errorf("node %d is placed in another flow", nb.gid)
	}

	nb.attach(n, f)
	if nb.gid == 0 {
		nb.gid = f.ids.Next()
	}
	f.nodes = append(f.nodes, n)
	f.succ[n] = nil
	for _, out := range nb.outputs {
		f.adj[out] = nil
	}

	n.PlaceEvent()
	f.flowChanged()
	f.NodeAdded.Emit(n)
	return nil
}

// RemoveNode detaches a node from the graph without destroying it,
// disconnecting its incident edges first. The node can be added again with
// AddNode.
func (f *Flow) RemoveNode(n Node) error {
	if f.locked.Load() {
		return ErrTraversalInFlight
	}
	nb := n.base()
	if nb.flow != f {
		return fmt.Errorf("node %d is not placed in this flow", nb.gid)
	}

	n.RemoveEvent()

	for _, in := range nb.inputs {
		if out := f.adjRev[in]; out != nil {
			f.removeConnection(out, in)
		}
		delete(f.adjRev, in)
	}
	for _, out := range nb.outputs {
		for _, in := range append([]*Port(nil), f.adj[out]...) {
			f.removeConnection(out, in)
		}
		delete(f.adj, out)
	}

	for i, cur := range f.nodes {
		if cur == n {
			f.nodes = append(f.nodes[:i], f.nodes[i+1:]...)
			break
		}
	}
	delete(f.succ, n)
	nb.detach()

	f.flowChanged()
	f.NodeRemoved.Emit(n)
	return nil
}

// addNodePort indexes a dynamically created port of a placed node.
func (f *Flow) addNodePort(p *Port) {
	if p.dir == DirOut {
		f.adj[p] = nil
	}
	f.flowChanged()
}

// removeNodePort drops a port from the indices, disconnecting its incident
// edges first.
func (f *Flow) removeNodePort(p *Port) error {
	if f.locked.Load() {
		return ErrTraversalInFlight
	}
	if p.dir == DirIn {
		if out := f.adjRev[p]; out != nil {
			f.removeConnection(out, p)
		}
		delete(f.adjRev, p)
	} else {
		for _, in := range append([]*Port(nil), f.adj[p]...) {
			f.removeConnection(p, in)
		}
		delete(f.adj, p)
	}
	f.flowChanged()
	return nil
}

// CheckConn checks whether a considered connect action is structurally
// legal, without consulting the current adjacency.
func (f *Flow) CheckConn(out, in *Port) ConnValidType {
	return checkConn(out, in, f.checker)
}

// CanConnect checks a connect request including occupancy: redundant
// requests yield ALREADY_CONNECTED and inputs with another incoming edge
// yield INPUT_TAKEN.
func (f *Flow) CanConnect(out, in *Port) ConnValidType {
	valid := checkConn(out, in, f.checker)
	if valid != ConnValid {
		return valid
	}
	if cur := f.adjRev[in]; cur != nil {
		if cur == out {
			return ConnAlreadyConnected
		}
		return ConnInputTaken
	}
	return ConnValid
}

// CanDisconnect checks a disconnect request, yielding
// ALREADY_DISCONNECTED for edges that do not exist.
func (f *Flow) CanDisconnect(out, in *Port) ConnValidType {
	if f.adjRev[in] != out {
		return ConnAlreadyDisconnected
	}
	return checkConn(out, in, f.checker)
}

// Connect adds an edge between an output and an input port. An invalid
// request is not an error; the returned code says why no edge was created.
// The error return covers topology locking only. Referencing ports not
// owned by this flow is a programmer error and panics.
func (f *Flow) Connect(out, in *Port) (ConnValidType, error) {
	f.assertOwned(out)
	f.assertOwned(in)
	if f.locked.Load() {
		return ConnValid, ErrTraversalInFlight
	}

	valid := f.CanConnect(out, in)
	if valid != ConnValid {
		f.logger.Debug("connect request rejected", "flow", f.name, "reason", valid.String())
		return valid, nil
	}

	f.adj[out] = append(f.adj[out], in)
	f.adjRev[in] = out
	f.succ[out.node] = append(f.succ[out.node], in.node)
	f.flowChanged()

	f.executor.ConnAdded(out, in)
	f.ConnectionAdded.Emit(Connection{Out: out, In: in})
	return ConnValid, nil
}

// Disconnect removes the edge between an output and an input port. Like
// Connect, invalid requests return a code instead of failing.
func (f *Flow) Disconnect(out, in *Port) (ConnValidType, error) {
	f.assertOwned(out)
	f.assertOwned(in)
	if f.locked.Load() {
		return ConnValid, ErrTraversalInFlight
	}

	valid := f.CanDisconnect(out, in)
	if valid != ConnValid {
		f.logger.Debug("disconnect request rejected", "flow", f.name, "reason", valid.String())
		return valid, nil
	}

	f.removeConnection(out, in)
	return ConnValid, nil
}

func (f *Flow) removeConnection(out, in *Port) {
	for i, cur := range f.adj[out] {
		if cur == in {
			f.adj[out] = append(f.adj[out][:i], f.adj[out][i+1:]...)
			break
		}
	}
	delete(f.adjRev, in)
	for i, cur := range f.succ[out.node] {
		if cur == in.node {
			f.succ[out.node] = append(f.succ[out.node][:i], f.succ[out.node][i+1:]...)
			break
		}
	}
	f.flowChanged()

	f.executor.ConnRemoved(out, in)
	f.ConnectionRemoved.Emit(Connection{Out: out, In: in})
}

func (f *Flow) assertOwned(p *Port) {
	if p == nil || p.node == nil || p.node.base().flow != f {
		panic("port is not owned by this flow")
	}
}

// Executor returns the flow's current executor.
func (f *Flow) Executor() Executor { return f.executor }

// SetExecutor replaces the active executor. The graph is preserved; the
// previous executor's per-execution bookkeeping is discarded and nothing is
// re-run.
func (f *Flow) SetExecutor(e Executor) {
	if e == nil {
		panic("flow executor must not be nil")
	}
	prev := f.executor.Mode()
	f.executor = e
	if prev != e.Mode() {
		f.ModeChanged.Emit(e.Mode())
	}
}

// Mode returns the flow's current algorithm mode.
func (f *Flow) Mode() AlgorithmMode { return f.executor.Mode() }

// SetMode switches the algorithm mode, replacing the active executor with a
// compatible instance operating on the same adjacency indices. Returns
// false if the flow was already in that mode.
func (f *Flow) SetMode(m AlgorithmMode) bool {
	if m == f.Mode() {
		return false
	}
	f.SetExecutor(NewExecutor(m, f))
	return true
}

// BeginTraversal locks the topology for one traversal. At most one
// traversal may be in flight per flow; a second request fails with
// ErrTraversalInFlight.
func (f *Flow) BeginTraversal() error {
	if !f.locked.CompareAndSwap(false, true) {
		return ErrTraversalInFlight
	}
	return nil
}

// EndTraversal unlocks the topology.
func (f *Flow) EndTraversal() {
	f.locked.Store(false)
}

// flowChanged invalidates executor bookkeeping after a topology change.
func (f *Flow) flowChanged() {
	if f.executor != nil {
		f.executor.Invalidate()
	}
}

// reportNodeError funnels a failed or panicked node callback into the log
// and the NodeErrored event. The surrounding pass continues.
func (f *Flow) reportNodeError(n Node, inp int, err error) {
	f.logger.Warn("node update failed", "flow", f.name, "node", n.base().gid, "inp", inp, "error", err)
	f.NodeErrored.Emit(NodeError{Node: n, Inp: inp, Err: err})
}
