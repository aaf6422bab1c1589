// Package step defines the unit of work the engine schedules: a named
// callable with declared inputs and outputs, a cache policy, a retry
// limit, and optional execution-group, resource and guard metadata.
// Steps are immutable once constructed.
//
// Callables declare their parameter names explicitly; the engine binds
// arguments by name at execution time, so no reflection is involved.
package step
