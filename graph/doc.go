// Package graph builds the dependency DAG for a pipeline. Edges are
// never declared by hand: an edge A -> B exists exactly when some output
// name of A matches an input name of B. Validation surfaces every fault
// in one pass (missing producers, duplicate producers, self-loops,
// cycles) and the topological sort is deterministic, breaking ties by
// node insertion order.
package graph
