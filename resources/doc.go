// Package resources models the compute requirements a step may declare
// (CPU, memory, storage, GPU, node affinity) and their aggregation when
// steps are batched into a shared execution group. Aggregation is a
// pointwise maximum: the group environment must fit its hungriest member.
package resources
