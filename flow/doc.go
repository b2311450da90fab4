// Package flow implements the graph container at the heart of the engine:
// nodes with typed input/output ports, directed connections between them,
// and the family of executors that decide when and how often a node's
// outputs propagate.
//
// A flow is a directed, usually but not necessarily acyclic multi-graph.
// Nodes are the computational units; connections carry either data values
// or exec trigger signals between their ports. All data and control
// propagation is delegated to the flow's current Executor, selected through
// an algorithm mode:
//
//   - manual: no propagation at all; a caller (typically a player) performs
//     its own traversal and queries which ports hold pending updates.
//   - data: eager depth-first push propagation on every output update.
//     Correct for graphs without non-terminating feedback, but re-evaluates
//     reconvergent fan-in once per incoming branch.
//   - data-opt: guarantees each connection activates at most once per
//     triggered execution by counting, for every node reachable from the
//     trigger, how many distinct predecessors can still feed it fresh data.
//   - exec: control-flow triggers on exec connections with pull-based data
//     retrieval; values are produced on demand rather than pushed on change.
//
// Port values are cty values (github.com/zclconf/go-cty). A port may carry a
// declared cty type; connection requests between data ports are checked
// against those declarations at connect time, and output writes are
// converted at set time.
package flow
