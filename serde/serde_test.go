package serde_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/get-eventually/go-eventually-snapshot/serde"
)

type cartStatus uint8

const (
	cartOpen cartStatus = iota + 1
	cartCheckedOut
)

type cart struct {
	Status cartStatus
	Items  int64
	Owner  string
}

type cartJSON struct {
	Status string `json:"status"`
	Items  int64  `json:"items"`
	Owner  string `json:"owner"`
}

var cartSerde = serde.FuseFuncs(
	func(c cart) (*cartJSON, error) {
		out := &cartJSON{Items: c.Items, Owner: c.Owner}

		switch c.Status {
		case cartOpen:
			out.Status = "OPEN"
		case cartCheckedOut:
			out.Status = "CHECKED_OUT"
		default:
			return nil, fmt.Errorf("unexpected cart status, %v", c.Status)
		}

		return out, nil
	},
	func(c *cartJSON) (cart, error) {
		out := cart{Items: c.Items, Owner: c.Owner}

		switch c.Status {
		case "OPEN":
			out.Status = cartOpen
		case "CHECKED_OUT":
			out.Status = cartCheckedOut
		default:
			return cart{}, fmt.Errorf("unexpected cart status, %v", c.Status)
		}

		return out, nil
	},
)

func TestJSON(t *testing.T) {
	jsonSerde := serde.NewJSON(func() *cartJSON { return new(cartJSON) })

	t.Run("it round-trips valid data", func(t *testing.T) {
		value := &cartJSON{Status: "OPEN", Items: 3, Owner: "jane"}

		serialized, err := jsonSerde.Serialize(value)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"OPEN","items":3,"owner":"jane"}`, string(serialized))

		deserialized, err := jsonSerde.Deserialize(serialized)
		require.NoError(t, err)
		assert.Equal(t, value, deserialized)
	})

	t.Run("it fails deserialization of invalid json data", func(t *testing.T) {
		deserialized, err := jsonSerde.Deserialize([]byte("invalid_serialize_string"))
		assert.Error(t, err)
		assert.Zero(t, deserialized)
	})

	t.Run("opaque json keeps the payload shape", func(t *testing.T) {
		opaque := serde.NewOpaqueJSON()

		state, err := opaque.Deserialize([]byte(`{"foo":"bar","n":1}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"foo": "bar", "n": float64(1)}, state)
	})
}

func TestChain(t *testing.T) {
	chained := serde.Chain(cartSerde, serde.NewJSON(func() *cartJSON { return new(cartJSON) }))

	value := cart{Status: cartCheckedOut, Items: 1, Owner: "john"}

	serialized, err := chained.Serialize(value)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"status":"CHECKED_OUT","items":1,"owner":"john"}`), serialized)

	deserialized, err := chained.Deserialize(serialized)
	require.NoError(t, err)
	assert.Equal(t, value, deserialized)

	_, err = chained.Serialize(cart{})
	assert.Error(t, err)
}

func TestProto(t *testing.T) {
	state, err := structpb.NewStruct(map[string]any{"foo": "bar", "count": 2})
	require.NoError(t, err)

	for name, s := range map[string]serde.Bytes[*structpb.Struct]{
		"proto":     serde.NewProto(func() *structpb.Struct { return new(structpb.Struct) }),
		"protojson": serde.NewProtoJSON(func() *structpb.Struct { return new(structpb.Struct) }),
	} {
		t.Run(name, func(t *testing.T) {
			serialized, err := s.Serialize(state)
			require.NoError(t, err)

			deserialized, err := s.Deserialize(serialized)
			require.NoError(t, err)
			assert.Equal(t, state.AsMap(), deserialized.AsMap())

			_, err = s.Deserialize([]byte("{not valid"))
			assert.Error(t, err)
		})
	}
}

func TestRaw(t *testing.T) {
	raw := serde.Raw()

	out, err := raw.Serialize([]byte("state"))
	require.NoError(t, err)
	assert.Equal(t, []byte("state"), out)

	empty, err := raw.Deserialize([]byte{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
