// Package player drives a flow as a running program. A player owns the
// play/pause/stop lifecycle, ticks frame nodes at a configured rate, and
// performs topology-aware update passes over the graph: while playing it
// swaps the flow's executor for a manual one, traverses the graph itself in
// dependency order, and restores the previous executor when it stops.
package player
