package serde

import (
	"encoding/json"
	"fmt"
)

// NewJSON returns a new serde instance where some state (`T`) gets serialized to
// and deserialized from JSON as byte-array.
//
// A factory function is required for creating new instances of the type
// (especially if pointer semantics is used).
func NewJSON[T any](factory func() T) Fused[T, []byte] {
	return FuseFuncs(
		func(t T) ([]byte, error) {
			data, err := json.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("serde.JSON: failed to serialize data, %w", err)
			}

			return data, nil
		},
		func(data []byte) (T, error) {
			var zeroValue T

			model := factory()
			if err := json.Unmarshal(data, &model); err != nil {
				return zeroValue, fmt.Errorf("serde.JSON: failed to deserialize data, %w", err)
			}

			return model, nil
		},
	)
}

// NewOpaqueJSON returns a JSON serde that does not need to know the shape
// of the state: objects are deserialized into map[string]any.
//
// Useful when snapshots are handled by tooling that never interprets them.
func NewOpaqueJSON() Fused[map[string]any, []byte] {
	return NewJSON(func() map[string]any { return make(map[string]any) })
}
