package schema

import (
	"bytes"
	"fmt"
	"hash/fnv"

	"github.com/vmihailenco/msgpack/v5"
)

// Fingerprint returns a stable hash of an entity. Two entities parsed from
// identical text always share a fingerprint.
func Fingerprint(v any) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("schema: fingerprint: %w", err)
	}
	h := fnv.New64a()
	_, _ = h.Write(buf.Bytes())
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
