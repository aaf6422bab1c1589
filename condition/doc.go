// Package condition implements mid-run conditional branching: a branch
// couples a predicate over the outputs accumulated so far with a "then"
// and an "else" step. Branches become evaluable as soon as every output
// they reference exists, and a selected step executes at most once per
// run no matter how often control flow is re-evaluated.
package condition
