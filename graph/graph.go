package graph

import (
	"sort"
	"strings"

	"github.com/kbukum/flowkit/errors"
)

// Node is a unit placed in the dependency graph: a named step together
// with its declared input and output names.
type Node interface {
	Name() string
	Inputs() []string
	Outputs() []string
}

// Edge represents a derived dependency: To consumes an output of From.
type Edge struct {
	From   string
	To     string
	Output string
}

// Graph holds nodes and their derived dependency edges.
type Graph struct {
	nodes []Node
	index map[string]Node

	built      bool
	edges      []Edge
	deps       map[string][]string // node -> unique producer names
	dependents map[string][]string // node -> unique consumer names
	unbound    map[string][]string // node -> inputs with no producer
	selfLoops  []string            // nodes producing one of their own inputs
	duplicates []Edge              // second-producer conflicts: From=first owner, To=offender
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{index: make(map[string]Node)}
}

// AddNode adds a node to the graph. Node names must be unique.
func (g *Graph) AddNode(n Node) error {
	if _, exists := g.index[n.Name()]; exists {
		return errors.Newf(errors.ErrCodeDuplicateStep, "step %q is already in the graph", n.Name())
	}
	g.nodes = append(g.nodes, n)
	g.index[n.Name()] = n
	g.built = false
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node { return append([]Node(nil), g.nodes...) }

// Node looks up a node by name.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.index[name]
	return n, ok
}

// BuildEdges derives dependency edges by matching each node's declared
// inputs against other nodes' declared outputs. Idempotent; called
// implicitly by Validate and TopologicalSort.
func (g *Graph) BuildEdges() {
	if g.built {
		return
	}
	g.edges = nil
	g.deps = make(map[string][]string, len(g.nodes))
	g.dependents = make(map[string][]string, len(g.nodes))
	g.unbound = make(map[string][]string)
	g.selfLoops = nil
	g.duplicates = nil

	producers := make(map[string]string)
	for _, n := range g.nodes {
		for _, out := range n.Outputs() {
			if first, taken := producers[out]; taken {
				g.duplicates = append(g.duplicates, Edge{From: first, To: n.Name(), Output: out})
				continue
			}
			producers[out] = n.Name()
		}
	}

	for _, n := range g.nodes {
		seen := make(map[string]bool)
		for _, input := range n.Inputs() {
			producer, ok := producers[input]
			if !ok {
				g.unbound[n.Name()] = append(g.unbound[n.Name()], input)
				continue
			}
			if producer == n.Name() {
				g.selfLoops = append(g.selfLoops, n.Name())
				continue
			}
			g.edges = append(g.edges, Edge{From: producer, To: n.Name(), Output: input})
			if !seen[producer] {
				seen[producer] = true
				g.deps[n.Name()] = append(g.deps[n.Name()], producer)
				g.dependents[producer] = append(g.dependents[producer], n.Name())
			}
		}
	}
	g.built = true
}

// Edges returns the derived edges.
func (g *Graph) Edges() []Edge {
	g.BuildEdges()
	return append([]Edge(nil), g.edges...)
}

// Dependencies returns the unique producers a node directly depends on.
func (g *Graph) Dependencies(name string) []string {
	g.BuildEdges()
	return append([]string(nil), g.deps[name]...)
}

// TransitiveDependencies returns every node the named node depends on,
// directly or through intermediates.
func (g *Graph) TransitiveDependencies(name string) map[string]bool {
	g.BuildEdges()
	out := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for _, dep := range g.deps[n] {
			if !out[dep] {
				out[dep] = true
				walk(dep)
			}
		}
	}
	walk(name)
	return out
}

// UnboundInputs returns, per node, the inputs no node produces. These
// must be covered by the run's external inputs.
func (g *Graph) UnboundInputs() map[string][]string {
	g.BuildEdges()
	out := make(map[string][]string, len(g.unbound))
	for k, v := range g.unbound {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Validate checks the graph and returns every fault found, not just the
// first: duplicate producers, self-loops, inputs with no producer that
// the given external inputs do not cover, and cycles.
func (g *Graph) Validate(externalInputs []string) []error {
	g.BuildEdges()
	var errs []error

	for _, dup := range g.duplicates {
		errs = append(errs, errors.DuplicateProducer(dup.Output, dup.From, dup.To))
	}

	for _, name := range g.selfLoops {
		errs = append(errs, errors.Newf(errors.ErrCodeGraphCycle,
			"step %q consumes its own output", name))
	}

	external := make(map[string]bool, len(externalInputs))
	for _, in := range externalInputs {
		external[in] = true
	}
	for _, n := range g.nodes {
		for _, input := range g.unbound[n.Name()] {
			if !external[input] {
				errs = append(errs, errors.MissingProducer(n.Name(), input))
			}
		}
	}

	for _, cycle := range g.findCycles() {
		errs = append(errs, errors.GraphCycle(cycle))
	}

	return errs
}

// TopologicalSort returns the nodes in dependency order. Ties between
// independent nodes are broken by insertion order, so the result is
// stable across runs. Fails with a graph-cycle error when the graph is
// not acyclic.
func (g *Graph) TopologicalSort() ([]Node, error) {
	g.BuildEdges()

	inDegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n.Name()] = len(g.deps[n.Name()])
	}

	out := make([]Node, 0, len(g.nodes))
	emitted := make(map[string]bool, len(g.nodes))

	for len(out) < len(g.nodes) {
		progressed := false
		for _, n := range g.nodes {
			name := n.Name()
			if emitted[name] || inDegree[name] != 0 {
				continue
			}
			emitted[name] = true
			out = append(out, n)
			for _, dep := range g.dependents[name] {
				inDegree[dep]--
			}
			progressed = true
			break
		}
		if !progressed {
			cycles := g.findCycles()
			if len(cycles) > 0 {
				return nil, errors.GraphCycle(cycles[0])
			}
			return nil, errors.GraphCycle(nil)
		}
	}
	return out, nil
}

// findCycles runs a depth-first search and returns each distinct cycle
// found as the list of step names along it.
func (g *Graph) findCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycles [][]string
	seen := make(map[string]bool)

	var visit func(string)
	visit = func(name string) {
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range g.deps[name] {
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				// Back edge: extract the cycle from the stack.
				var cycle []string
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append([]string{stack[i]}, cycle...)
					if stack[i] == dep {
						break
					}
				}
				key := cycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
	}

	for _, n := range g.nodes {
		if color[n.Name()] == white {
			visit(n.Name())
		}
	}
	return cycles
}

// cycleKey canonicalizes a cycle's membership so the same cycle reached
// from different entry points is reported once.
func cycleKey(cycle []string) string {
	names := append([]string(nil), cycle...)
	sort.Strings(names)
	return strings.Join(names, "\x00")
}
