// Package orchestrator drives full pipeline runs: it validates the
// step graph, walks execution units in topological order, evaluates
// conditional branches against live outputs, checkpoints progress and
// resumes interrupted runs.
package orchestrator
