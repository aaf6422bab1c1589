package resources

import (
	"strings"

	"github.com/kbukum/flowkit/util"
)

// GPU describes an accelerator request.
type GPU struct {
	// Type is the accelerator model, e.g. "a100", "v100", "t4".
	Type string `yaml:"type" json:"type"`
	// Count is the number of devices.
	Count int `yaml:"count" json:"count"`
}

// gpuPriority is the fixed preference order used when merging GPU types.
// Higher wins. Unknown types rank lowest.
var gpuPriority = map[string]int{
	"a100": 3,
	"v100": 2,
	"t4":   1,
}

// GPUPriority returns the merge rank of a GPU type.
func GPUPriority(gpuType string) int {
	return gpuPriority[strings.ToLower(gpuType)]
}

// Affinity describes node placement constraints.
type Affinity struct {
	// RequiredLabels must all be present on the node.
	RequiredLabels map[string]string `yaml:"required_labels,omitempty" json:"required_labels,omitempty"`
	// PreferredLabels bias placement but are not mandatory.
	PreferredLabels map[string]string `yaml:"preferred_labels,omitempty" json:"preferred_labels,omitempty"`
	// Tolerations the workload accepts, de-duplicated on merge.
	Tolerations []string `yaml:"tolerations,omitempty" json:"tolerations,omitempty"`
}

// Requirements declares the resources a step needs. String quantities use
// the usual container notation: CPU in cores or millicores ("2", "500m"),
// memory and storage with binary or decimal suffixes ("4Gi", "500M").
type Requirements struct {
	CPU      string    `yaml:"cpu,omitempty" json:"cpu,omitempty"`
	Memory   string    `yaml:"memory,omitempty" json:"memory,omitempty"`
	Storage  string    `yaml:"storage,omitempty" json:"storage,omitempty"`
	GPU      *GPU      `yaml:"gpu,omitempty" json:"gpu,omitempty"`
	Affinity *Affinity `yaml:"affinity,omitempty" json:"affinity,omitempty"`
}

// Validate checks that all declared quantities parse.
func (r *Requirements) Validate() error {
	if r == nil {
		return nil
	}
	if r.CPU != "" {
		if _, err := ParseCPU(r.CPU); err != nil {
			return err
		}
	}
	if r.Memory != "" {
		if _, err := ParseQuantity(r.Memory); err != nil {
			return err
		}
	}
	if r.Storage != "" {
		if _, err := ParseQuantity(r.Storage); err != nil {
			return err
		}
	}
	return nil
}

// Merge folds other into r and returns the aggregate. CPU, memory and
// storage take the pointwise maximum after unit normalization; GPU count
// takes the maximum and the type is chosen by the fixed preference order;
// affinity labels are unioned and tolerations de-duplicated. Neither
// receiver nor argument is mutated. Merge is commutative and associative
// up to formatting of the winning quantity (the larger side's original
// string is kept).
func Merge(a, b *Requirements) *Requirements {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		return b.clone()
	}
	if b == nil {
		return a.clone()
	}

	out := &Requirements{
		CPU:     maxQuantity(a.CPU, b.CPU, parseCPUOrZero),
		Memory:  maxQuantity(a.Memory, b.Memory, parseQuantityOrZero),
		Storage: maxQuantity(a.Storage, b.Storage, parseQuantityOrZero),
		GPU:     mergeGPU(a.GPU, b.GPU),
	}
	out.Affinity = mergeAffinity(a.Affinity, b.Affinity)
	return out
}

func (r *Requirements) clone() *Requirements {
	if r == nil {
		return nil
	}
	out := &Requirements{CPU: r.CPU, Memory: r.Memory, Storage: r.Storage}
	if r.GPU != nil {
		gpu := *r.GPU
		out.GPU = &gpu
	}
	if r.Affinity != nil {
		out.Affinity = &Affinity{
			RequiredLabels:  cloneLabels(r.Affinity.RequiredLabels),
			PreferredLabels: cloneLabels(r.Affinity.PreferredLabels),
			Tolerations:     append([]string(nil), r.Affinity.Tolerations...),
		}
	}
	return out
}

func parseCPUOrZero(s string) int64 {
	v, err := ParseCPU(s)
	if err != nil {
		return 0
	}
	return v
}

func parseQuantityOrZero(s string) int64 {
	v, err := ParseQuantity(s)
	if err != nil {
		return 0
	}
	return v
}

// maxQuantity returns the string whose parsed value is larger,
// preserving the original notation of the winner.
func maxQuantity(a, b string, parse func(string) int64) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if parse(b) > parse(a) {
		return b
	}
	return a
}

func mergeGPU(a, b *GPU) *GPU {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		gpu := *b
		return &gpu
	}
	if b == nil {
		gpu := *a
		return &gpu
	}

	out := &GPU{Type: a.Type, Count: a.Count}
	if GPUPriority(b.Type) > GPUPriority(a.Type) {
		out.Type = b.Type
	}
	if b.Count > out.Count {
		out.Count = b.Count
	}
	return out
}

func mergeAffinity(a, b *Affinity) *Affinity {
	if a == nil && b == nil {
		return nil
	}
	out := &Affinity{}
	for _, src := range []*Affinity{a, b} {
		if src == nil {
			continue
		}
		out.RequiredLabels = unionLabels(out.RequiredLabels, src.RequiredLabels)
		out.PreferredLabels = unionLabels(out.PreferredLabels, src.PreferredLabels)
		for _, tol := range src.Tolerations {
			if !util.Contains(out.Tolerations, tol) {
				out.Tolerations = append(out.Tolerations, tol)
			}
		}
	}
	return out
}

func unionLabels(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneLabels(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
