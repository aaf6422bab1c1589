// Package grouping partitions steps that share an execution-group tag
// into maximal runs that can be batched into one shared environment
// without breaking topological order. A batch must be able to run as a
// single unit at the position of its first member, so a tagged step is
// split off whenever a non-member standing between it and the current
// batch is dependency-entangled with either side. Mutually-independent
// members may share a batch even when unrelated steps sit between them
// in the flat order.
//
// Each group also carries the pointwise maximum of its members' resource
// requests: the shared environment must fit the hungriest member.
package grouping
