package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/get-eventually/go-eventually-snapshot/snapshot"
)

func TestBuckets_Resolve(t *testing.T) {
	testCases := []struct {
		name          string
		buckets       snapshot.Buckets
		aggregateType string
		expected      string
	}{
		{
			name:          "zero value uses the default bucket",
			aggregateType: "Order",
			expected:      snapshot.DefaultBucket,
		},
		{
			name:          "custom shared bucket",
			buckets:       snapshot.Buckets{Default: "aggregates"},
			aggregateType: "Order",
			expected:      "aggregates",
		},
		{
			name: "override wins over the shared bucket",
			buckets: snapshot.Buckets{
				Default:   "aggregates",
				Overrides: map[string]string{"Order": "orders"},
			},
			aggregateType: "Order",
			expected:      "orders",
		},
		{
			name: "empty override is ignored",
			buckets: snapshot.Buckets{
				Overrides: map[string]string{"Order": ""},
			},
			aggregateType: "Order",
			expected:      snapshot.DefaultBucket,
		},
		{
			name: "override wins over derived names",
			buckets: snapshot.Buckets{
				Naming:    snapshot.PerAggregateType,
				Overrides: map[string]string{"Order": "orders"},
			},
			aggregateType: "Order",
			expected:      "orders",
		},
		{
			name:          "derived from a simple name",
			buckets:       snapshot.Buckets{Naming: snapshot.PerAggregateType},
			aggregateType: "Order",
			expected:      "order_snapshot",
		},
		{
			name:          "derived from a namespaced name",
			buckets:       snapshot.Buckets{Naming: snapshot.PerAggregateType},
			aggregateType: `Acme\Shop\Order-Item`,
			expected:      "order_item_snapshot",
		},
		{
			name:          "derived from a dotted name",
			buckets:       snapshot.Buckets{Naming: snapshot.PerAggregateType},
			aggregateType: "acme.shop/Cart",
			expected:      "cart_snapshot",
		},
		{
			name:          "suffix is not repeated",
			buckets:       snapshot.Buckets{Naming: snapshot.PerAggregateType},
			aggregateType: "Order_Snapshot",
			expected:      "order_snapshot",
		},
		{
			name:          "names with nothing left to derive fall back to the shared bucket",
			buckets:       snapshot.Buckets{Naming: snapshot.PerAggregateType, Default: "aggregates"},
			aggregateType: "acme.",
			expected:      "aggregates",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.buckets.Resolve(tc.aggregateType))
			assert.Equal(t, tc.expected, tc.buckets.Resolve(tc.aggregateType), "resolution must be deterministic")
		})
	}
}
