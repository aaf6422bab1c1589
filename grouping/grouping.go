package grouping

import (
	"fmt"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/graph"
	"github.com/kbukum/flowkit/resources"
	"github.com/kbukum/flowkit/step"
)

// Group is an ordered batch of same-tagged steps that execute in one
// shared environment.
type Group struct {
	// Name is the group identifier: the tag itself, or tag_N when the
	// same tag yields several non-consecutive batches.
	Name string
	// Tag is the user-assigned execution-group tag.
	Tag string
	// Steps in topological order within the group.
	Steps []*step.Step
	// Resources is the aggregated request of all members, nil when no
	// member declares any.
	Resources *resources.Requirements
}

// Unit is one schedulable element of a pipeline run: either a single
// step or a whole group. Exactly one field is set.
type Unit struct {
	Step  *step.Step
	Group *Group
}

// IsGroup reports whether the unit is a step group.
func (u Unit) IsGroup() bool { return u.Group != nil }

// Name returns the unit's display name.
func (u Unit) Name() string {
	if u.Group != nil {
		return u.Group.Name
	}
	return u.Step.Name()
}

// Steps returns the unit's member steps (one for a bare step).
func (u Unit) Steps() []*step.Step {
	if u.Group != nil {
		return u.Group.Steps
	}
	return []*step.Step{u.Step}
}

// AnalyzeGroups partitions the tagged steps of a pipeline into groups.
// Untagged steps are ignored. The same inputs always yield the same
// group membership and order.
func AnalyzeGroups(g *graph.Graph, steps []*step.Step) ([]*Group, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*step.Step, len(steps))
	for _, s := range steps {
		byName[s.Name()] = s
	}
	position := make(map[string]int, len(order))
	for i, n := range order {
		if _, ok := byName[n.Name()]; !ok {
			return nil, errors.Internal(fmt.Sprintf("graph node %q has no step", n.Name()), nil)
		}
		position[n.Name()] = i
	}

	// Tags in first-appearance order over the topological sequence.
	var tags []string
	members := make(map[string][]*step.Step)
	for _, n := range order {
		s := byName[n.Name()]
		tag := s.Group()
		if tag == "" {
			continue
		}
		if _, seen := members[tag]; !seen {
			tags = append(tags, tag)
		}
		members[tag] = append(members[tag], s)
	}

	transitive := make(map[string]map[string]bool)
	depsOf := func(name string) map[string]bool {
		if d, ok := transitive[name]; ok {
			return d
		}
		d := g.TransitiveDependencies(name)
		transitive[name] = d
		return d
	}

	var groups []*Group
	for _, tag := range tags {
		parts := partition(tag, members[tag], order, position, depsOf)
		for i, part := range parts {
			name := tag
			if len(parts) > 1 {
				name = fmt.Sprintf("%s_%d", tag, i+1)
			}
			groups = append(groups, &Group{
				Name:      name,
				Tag:       tag,
				Steps:     part,
				Resources: aggregateResources(part),
			})
		}
	}
	return groups, nil
}

// partition scans a tag's members in topological order and splits into a
// new batch whenever the next member cannot be shown consecutive with
// the members already batched.
func partition(
	tag string,
	members []*step.Step,
	order []graph.Node,
	position map[string]int,
	depsOf func(string) map[string]bool,
) [][]*step.Step {
	var parts [][]*step.Step
	var current []*step.Step

	inTag := make(map[string]bool, len(members))
	for _, m := range members {
		inTag[m.Name()] = true
	}

	for _, m := range members {
		if len(current) == 0 {
			current = []*step.Step{m}
			continue
		}
		last := current[len(current)-1]
		if consecutive(last, m, current, inTag, order, position, depsOf) {
			current = append(current, m)
			continue
		}
		parts = append(parts, current)
		current = []*step.Step{m}
	}
	if len(current) > 0 {
		parts = append(parts, current)
	}
	return parts
}

// consecutive decides whether member b can be batched directly after the
// current batch ending in a. It cannot when a non-member x standing
// between a and b in the flat order is entangled with either side:
// either b depends on x (so b cannot be pulled up before x runs), or x
// depends on a batched member (so x was ordered into the middle of the
// batch on purpose). Independent interlopers are tolerated.
func consecutive(
	a, b *step.Step,
	current []*step.Step,
	inTag map[string]bool,
	order []graph.Node,
	position map[string]int,
	depsOf func(string) map[string]bool,
) bool {
	bDeps := depsOf(b.Name())
	for i := position[a.Name()] + 1; i < position[b.Name()]; i++ {
		between := order[i].Name()
		if inTag[between] {
			continue
		}
		if bDeps[between] {
			return false
		}
		betweenDeps := depsOf(between)
		for _, member := range current {
			if betweenDeps[member.Name()] {
				return false
			}
		}
	}
	return true
}

// aggregateResources folds the members' requests into a pointwise
// maximum. A batch with no resource-bearing members yields nil.
func aggregateResources(members []*step.Step) *resources.Requirements {
	var agg *resources.Requirements
	for _, m := range members {
		agg = resources.Merge(agg, m.Resources())
	}
	return agg
}

// ExecutionUnits returns the topological order as a mixed sequence of
// bare steps and groups. A group is emitted exactly once, at the
// position of its first member; its other members are suppressed.
func ExecutionUnits(g *graph.Graph, steps []*step.Step) ([]Unit, error) {
	groups, err := AnalyzeGroups(g, steps)
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*step.Step, len(steps))
	for _, s := range steps {
		byName[s.Name()] = s
	}
	groupOf := make(map[string]*Group)
	first := make(map[*Group]string)
	for _, grp := range groups {
		for _, m := range grp.Steps {
			groupOf[m.Name()] = grp
		}
		first[grp] = grp.Steps[0].Name()
	}

	var units []Unit
	for _, n := range order {
		s := byName[n.Name()]
		grp, tagged := groupOf[s.Name()]
		if !tagged {
			units = append(units, Unit{Step: s})
			continue
		}
		if first[grp] == s.Name() {
			units = append(units, Unit{Group: grp})
		}
	}
	return units, nil
}
