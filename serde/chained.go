package serde

import "fmt"

// Chain composes two serdes into a single one mapping Src to Dst,
// going through the Mid type.
//
// A typical use is mapping an Aggregate Root into its Protobuf message
// first, then the message into the stored bytes:
//
//	serde.Chain(toProto, serde.NewProto(newMessage))
func Chain[Src, Mid, Dst any](first Serde[Src, Mid], second Serde[Mid, Dst]) Fused[Src, Dst] {
	return FuseFuncs(
		func(src Src) (Dst, error) {
			var zeroValue Dst

			mid, err := first.Serialize(src)
			if err != nil {
				return zeroValue, fmt.Errorf("serde.Chain: failed to serialize to intermediate type, %w", err)
			}

			dst, err := second.Serialize(mid)
			if err != nil {
				return zeroValue, fmt.Errorf("serde.Chain: failed to serialize intermediate type, %w", err)
			}

			return dst, nil
		},
		func(dst Dst) (Src, error) {
			var zeroValue Src

			mid, err := second.Deserialize(dst)
			if err != nil {
				return zeroValue, fmt.Errorf("serde.Chain: failed to deserialize intermediate type, %w", err)
			}

			src, err := first.Deserialize(mid)
			if err != nil {
				return zeroValue, fmt.Errorf("serde.Chain: failed to deserialize from intermediate type, %w", err)
			}

			return src, nil
		},
	)
}
