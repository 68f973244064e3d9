package store

import (
	"encoding/json"
	"fmt"

	"tweetscribe-go/internal/types"
)

// MergeField sets one top-level field of a persisted JSON artifact without
// touching any other field.
func MergeField(s Store, name, key string, value any) error {
	data, err := s.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s field %s: %w", name, key, err)
	}
	doc[key] = raw
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.WriteFile(name, out)
}

// MetadataFor finds the unit metadata artifact for a file prefix, trying
// the single-post name first and then the thread name. Returns "" when
// neither exists.
func MetadataFor(s Store, prefix string) string {
	for _, suffix := range []string{types.MetaSuffix, types.ThreadMetaSuffix} {
		if s.Exists(prefix + suffix) {
			return prefix + suffix
		}
	}
	return ""
}
