package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kbukum/flowkit/util"
)

// InputKey derives a cache key from a step name and its resolved input
// values. Inputs are folded in sorted name order so the key is stable
// regardless of map iteration, and values are JSON-encoded so equal
// structured inputs hash equally.
func InputKey(stepName string, inputs map[string]any) string {
	h := sha256.New()
	h.Write([]byte(stepName))

	names := util.Keys(inputs)
	sort.Strings(names)

	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{0})
		encoded, err := json.Marshal(inputs[name])
		if err != nil {
			// Unencodable values still contribute deterministically.
			encoded = []byte(fmt.Sprintf("%v", inputs[name]))
		}
		h.Write(encoded)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CodeKey derives a cache key from a step name and its code
// fingerprint. The inputs do not participate: the entry stays valid
// until the callable's fingerprint changes.
func CodeKey(stepName, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(stepName))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}
