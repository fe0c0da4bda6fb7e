package serde

// Raw is a passthrough Bytes serde, for states that are already
// serialized by the caller.
//
// Empty payloads are valid: a zero-valued Protobuf message, for one,
// serializes to no bytes at all.
func Raw() Fused[[]byte, []byte] {
	identity := func(b []byte) ([]byte, error) { return b, nil }

	return FuseFuncs(identity, identity)
}
