// Package fact appends new partitions to fact tables, keyed by deterministic
// surrogate keys and guarded by a watermark read from the existing output.
package fact

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// SurrogateKey derives the fact row identity from the natural key tuple. It is
// a pure function: the same tuple always yields the same key across runs and
// rebuilds. Values are separated by a unit separator so ("ab","c") and
// ("a","bc") hash differently.
func SurrogateKey(values ...string) string {
	h := xxhash.New()
	for i, v := range values {
		if i > 0 {
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.WriteString(v)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
