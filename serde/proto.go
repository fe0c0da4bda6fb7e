package serde

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// NewProto returns a new serde instance where some state (`T`) gets serialized to
// and deserialized from a Protobuf byte-array.
//
// A factory function is required for creating new instances of type `T`.
func NewProto[T proto.Message](factory func() T) Fused[T, []byte] {
	return FuseFuncs(
		func(t T) ([]byte, error) {
			data, err := proto.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("serde.Proto: failed to serialize data, %w", err)
			}

			return data, nil
		},
		func(data []byte) (T, error) {
			var zeroValue T

			model := factory()
			if err := proto.Unmarshal(data, model); err != nil {
				return zeroValue, fmt.Errorf("serde.Proto: failed to deserialize data, %w", err)
			}

			return model, nil
		},
	)
}

// NewProtoJSON returns a new serde instance where some state (`T`) gets serialized to
// and deserialized from Protobuf JSON.
func NewProtoJSON[T proto.Message](factory func() T) Fused[T, []byte] {
	return FuseFuncs(
		func(t T) ([]byte, error) {
			data, err := protojson.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("serde.ProtoJSON: failed to serialize data, %w", err)
			}

			return data, nil
		},
		func(data []byte) (T, error) {
			var zeroValue T

			model := factory()
			if err := protojson.Unmarshal(data, model); err != nil {
				return zeroValue, fmt.Errorf("serde.ProtoJSON: failed to deserialize data, %w", err)
			}

			return model, nil
		},
	)
}
