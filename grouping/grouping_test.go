package grouping

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/kbukum/flowkit/graph"
	"github.com/kbukum/flowkit/resources"
	"github.com/kbukum/flowkit/step"
)

func testStep(t *testing.T, name string, opts ...step.Option) *step.Step {
	t.Helper()
	callable := step.Callable{
		Fingerprint: name + "-v1",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, nil
		},
	}
	s, err := step.New(name, callable, opts...)
	if err != nil {
		t.Fatalf("step %s: %v", name, err)
	}
	return s
}

func buildGraph(t *testing.T, steps []*step.Step) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, s := range steps {
		if err := g.AddNode(s); err != nil {
			t.Fatalf("AddNode(%s): %v", s.Name(), err)
		}
	}
	return g
}

func groupNames(groups []*Group) []string {
	out := make([]string, len(groups))
	for i, grp := range groups {
		var members []string
		for _, m := range grp.Steps {
			members = append(members, m.Name())
		}
		out[i] = grp.Name + "[" + strings.Join(members, ",") + "]"
	}
	return out
}

func TestAnalyzeGroups_NoTags(t *testing.T) {
	steps := []*step.Step{
		testStep(t, "a", step.WithOutputs("a_out")),
		testStep(t, "b", step.WithInputs("a_out")),
	}
	groups, err := AnalyzeGroups(buildGraph(t, steps), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %v", groupNames(groups))
	}
}

func TestAnalyzeGroups_ConsecutiveChain(t *testing.T) {
	steps := []*step.Step{
		testStep(t, "prep", step.WithOutputs("data"), step.WithGroup("gpu")),
		testStep(t, "train", step.WithInputs("data"), step.WithOutputs("model"), step.WithGroup("gpu")),
		testStep(t, "eval", step.WithInputs("model"), step.WithGroup("gpu")),
	}
	groups, err := AnalyzeGroups(buildGraph(t, steps), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %v", groupNames(groups))
	}
	if groups[0].Name != "gpu" || len(groups[0].Steps) != 3 {
		t.Errorf("groups = %v", groupNames(groups))
	}
}

func TestAnalyzeGroups_SplitByEntangledInterloper(t *testing.T) {
	// a -> upload -> b -> c, where upload is untagged. The group cannot
	// batch b behind a past a non-member b depends on.
	steps := []*step.Step{
		testStep(t, "a", step.WithOutputs("a_out"), step.WithGroup("shared")),
		testStep(t, "upload", step.WithInputs("a_out"), step.WithOutputs("uri")),
		testStep(t, "b", step.WithInputs("uri"), step.WithOutputs("b_out"), step.WithGroup("shared")),
		testStep(t, "c", step.WithInputs("b_out"), step.WithGroup("shared")),
	}
	groups, err := AnalyzeGroups(buildGraph(t, steps), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %v", groupNames(groups))
	}
	if groups[0].Name != "shared_1" || groups[1].Name != "shared_2" {
		t.Errorf("names = %v", groupNames(groups))
	}
	if len(groups[0].Steps) != 1 || groups[0].Steps[0].Name() != "a" {
		t.Errorf("first group = %v", groupNames(groups))
	}
	if len(groups[1].Steps) != 2 {
		t.Errorf("second group = %v", groupNames(groups))
	}
}

func TestAnalyzeGroups_SplitByDependentInterloper(t *testing.T) {
	// upload depends on a group member and sits between the group's
	// members in the flat order; the third member does not depend on it
	// but the batch still must split around it.
	steps := []*step.Step{
		testStep(t, "a", step.WithOutputs("a_out"), step.WithGroup("shared")),
		testStep(t, "b", step.WithInputs("a_out"), step.WithOutputs("b_out"), step.WithGroup("shared")),
		testStep(t, "upload", step.WithInputs("b_out")),
		testStep(t, "c", step.WithInputs("b_out"), step.WithGroup("shared")),
	}
	groups, err := AnalyzeGroups(buildGraph(t, steps), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %v", groupNames(groups))
	}
}

func TestAnalyzeGroups_ToleratesIndependentInterloper(t *testing.T) {
	// "other" sits between the two tagged steps in the flat order but is
	// independent of both, so the batch holds.
	steps := []*step.Step{
		testStep(t, "a", step.WithGroup("shared")),
		testStep(t, "other"),
		testStep(t, "b", step.WithGroup("shared")),
	}
	groups, err := AnalyzeGroups(buildGraph(t, steps), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Steps) != 2 {
		t.Fatalf("groups = %v", groupNames(groups))
	}
	if groups[0].Name != "shared" {
		t.Errorf("single batch keeps the bare tag, got %q", groups[0].Name)
	}
}

func TestAnalyzeGroups_Idempotent(t *testing.T) {
	steps := []*step.Step{
		testStep(t, "a", step.WithOutputs("a_out"), step.WithGroup("g")),
		testStep(t, "mid", step.WithInputs("a_out"), step.WithOutputs("m_out")),
		testStep(t, "b", step.WithInputs("m_out"), step.WithGroup("g")),
	}
	g := buildGraph(t, steps)
	first, err := AnalyzeGroups(g, steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := AnalyzeGroups(g, steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(groupNames(first), groupNames(second)) {
		t.Errorf("not idempotent: %v vs %v", groupNames(first), groupNames(second))
	}
}

func TestAnalyzeGroups_ResourceAggregation(t *testing.T) {
	steps := []*step.Step{
		testStep(t, "a", step.WithGroup("gpu"), step.WithResources(&resources.Requirements{
			CPU: "1", Memory: "2Gi", GPU: &resources.GPU{Type: "v100", Count: 1},
		})),
		testStep(t, "b", step.WithGroup("gpu"), step.WithResources(&resources.Requirements{
			CPU: "500m", Memory: "8Gi", GPU: &resources.GPU{Type: "a100", Count: 2},
		})),
	}
	groups, err := AnalyzeGroups(buildGraph(t, steps), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := groups[0].Resources
	if res == nil {
		t.Fatal("expected aggregated resources")
	}
	if res.CPU != "1" || res.Memory != "8Gi" {
		t.Errorf("cpu=%q mem=%q", res.CPU, res.Memory)
	}
	if res.GPU.Type != "a100" || res.GPU.Count != 2 {
		t.Errorf("gpu = %+v", res.GPU)
	}
}

func TestAnalyzeGroups_NoResourcesYieldsNil(t *testing.T) {
	steps := []*step.Step{
		testStep(t, "a", step.WithGroup("g")),
		testStep(t, "b", step.WithGroup("g")),
	}
	groups, err := AnalyzeGroups(buildGraph(t, steps), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if groups[0].Resources != nil {
		t.Errorf("expected nil resources, got %+v", groups[0].Resources)
	}
}

func TestExecutionUnits_GroupEmittedOnceAtFirstMember(t *testing.T) {
	steps := []*step.Step{
		testStep(t, "load", step.WithOutputs("raw")),
		testStep(t, "train", step.WithInputs("raw"), step.WithOutputs("model"), step.WithGroup("gpu")),
		testStep(t, "eval", step.WithInputs("model"), step.WithOutputs("score"), step.WithGroup("gpu")),
		testStep(t, "report", step.WithInputs("score")),
	}
	units, err := ExecutionUnits(buildGraph(t, steps), steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, u := range units {
		if u.IsGroup() {
			got = append(got, "group:"+u.Name())
		} else {
			got = append(got, u.Name())
		}
	}
	want := []string{"load", "group:gpu", "report"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("units = %v, want %v", got, want)
	}
}

func TestExecutionUnits_CyclicGraphFails(t *testing.T) {
	steps := []*step.Step{
		testStep(t, "a", step.WithInputs("b_out"), step.WithOutputs("a_out")),
		testStep(t, "b", step.WithInputs("a_out"), step.WithOutputs("b_out")),
	}
	if _, err := ExecutionUnits(buildGraph(t, steps), steps); err == nil {
		t.Fatal("expected error for cyclic graph")
	}
}
