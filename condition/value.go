package condition

// Value wraps a step output for predicate evaluation. It exposes a fixed
// capability set instead of dynamic attribute access: predicates either
// read the raw scalar, treat the output as a map, or inspect its tags.
type Value struct {
	raw  any
	tags []string
}

// Wrap creates a Value around a raw step output.
func Wrap(raw any, tags ...string) Value {
	return Value{raw: raw, tags: tags}
}

// AsScalar returns the raw value. The second result is false when the
// value is absent (nil).
func (v Value) AsScalar() (any, bool) {
	return v.raw, v.raw != nil
}

// AsMap returns the value as a string-keyed map when it is one.
func (v Value) AsMap() (map[string]any, bool) {
	m, ok := v.raw.(map[string]any)
	return m, ok
}

// AsFloat coerces numeric values to float64 for threshold predicates.
func (v Value) AsFloat() (float64, bool) {
	switch n := v.raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsBool coerces the value to a bool.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// AsString coerces the value to a string.
func (v Value) AsString() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Tags returns the labels attached at wrap time.
func (v Value) Tags() []string {
	return append([]string(nil), v.tags...)
}

// HasTag reports whether a tag is attached.
func (v Value) HasTag(tag string) bool {
	for _, t := range v.tags {
		if t == tag {
			return true
		}
	}
	return false
}
