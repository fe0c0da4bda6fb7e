package mongodb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/mongodb"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults are applied", func(t *testing.T) {
		t.Setenv("SNAPSHOT_DATABASE_NAME", "app")

		config, err := mongodb.ConfigFromEnv("SNAPSHOT")
		require.NoError(t, err)

		assert.Equal(t, mongodb.Config{
			URI:           "mongodb://localhost:27017",
			DatabaseName:  "app",
			DefaultBucket: snapshot.DefaultBucket,
			BucketNaming:  mongodb.SharedBucket,
			ReadConcern:   mongodb.DefaultReadConcern,
			WriteConcern:  mongodb.WriteConcern{W: 1},
		}, config)
	})

	t.Run("all values are read", func(t *testing.T) {
		t.Setenv("SNAPSHOT_URI", "mongodb://db:27017")
		t.Setenv("SNAPSHOT_DATABASE_NAME", "app")
		t.Setenv("SNAPSHOT_BUCKETS", "Order:orders,Cart:carts")
		t.Setenv("SNAPSHOT_DEFAULT_BUCKET", "aggregates")
		t.Setenv("SNAPSHOT_BUCKET_NAMING", "per_type")
		t.Setenv("SNAPSHOT_READ_CONCERN", "majority")
		t.Setenv("SNAPSHOT_WRITE_CONCERN_W", "2")
		t.Setenv("SNAPSHOT_WRITE_CONCERN_WTIMEOUT", "5s")
		t.Setenv("SNAPSHOT_WRITE_CONCERN_JOURNAL", "true")

		config, err := mongodb.ConfigFromEnv("SNAPSHOT")
		require.NoError(t, err)

		assert.Equal(t, mongodb.Config{
			URI:           "mongodb://db:27017",
			DatabaseName:  "app",
			Buckets:       map[string]string{"Order": "orders", "Cart": "carts"},
			DefaultBucket: "aggregates",
			BucketNaming:  mongodb.PerAggregateType,
			ReadConcern:   "majority",
			WriteConcern: mongodb.WriteConcern{
				W:        2,
				WTimeout: 5 * time.Second,
				Journal:  true,
			},
		}, config)

		buckets := config.SnapshotBuckets()
		assert.Equal(t, "orders", buckets.Resolve("Order"))
		assert.Equal(t, "invoice_snapshot", buckets.Resolve("Invoice"))
	})

	t.Run("missing database name is rejected", func(t *testing.T) {
		_, err := mongodb.ConfigFromEnv("SNAPSHOT_MISSING")
		assert.ErrorIs(t, err, mongodb.ErrInvalidConfig)
	})

	t.Run("unknown bucket naming is rejected", func(t *testing.T) {
		t.Setenv("SNAPSHOT_DATABASE_NAME", "app")
		t.Setenv("SNAPSHOT_BUCKET_NAMING", "random")

		_, err := mongodb.ConfigFromEnv("SNAPSHOT")
		assert.ErrorIs(t, err, mongodb.ErrInvalidConfig)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := mongodb.Config{URI: "mongodb://localhost:27017", DatabaseName: "app"}.WithDefaults()
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		modify func(c *mongodb.Config)
	}{
		{name: "empty uri", modify: func(c *mongodb.Config) { c.URI = "" }},
		{name: "empty database name", modify: func(c *mongodb.Config) { c.DatabaseName = "" }},
		{name: "unknown read concern", modify: func(c *mongodb.Config) { c.ReadConcern = "eventual" }},
		{name: "negative w", modify: func(c *mongodb.Config) { c.WriteConcern.W = -1 }},
		{name: "negative timeout", modify: func(c *mongodb.Config) { c.WriteConcern.WTimeout = -time.Second }},
		{name: "unknown bucket naming", modify: func(c *mongodb.Config) { c.BucketNaming = 42 }},
		{name: "empty bucket override", modify: func(c *mongodb.Config) { c.Buckets = map[string]string{"Order": ""} }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := valid
			tc.modify(&config)

			assert.ErrorIs(t, config.Validate(), mongodb.ErrInvalidConfig)
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	config := mongodb.Config{
		DefaultBucket: "aggregates",
		ReadConcern:   "majority",
		WriteConcern:  mongodb.WriteConcern{W: 3},
	}.WithDefaults()

	assert.Equal(t, "aggregates", config.DefaultBucket)
	assert.Equal(t, "majority", config.ReadConcern)
	assert.Equal(t, 3, config.WriteConcern.W)

	config = mongodb.Config{}.WithDefaults()

	assert.Equal(t, snapshot.DefaultBucket, config.DefaultBucket)
	assert.Equal(t, mongodb.DefaultReadConcern, config.ReadConcern)
	assert.Equal(t, 1, config.WriteConcern.W)
}

func TestConfig_SnapshotBucketsAreDetached(t *testing.T) {
	config := mongodb.Config{
		DefaultBucket: "snapshots",
		Buckets:       map[string]string{"Order": "orders"},
	}

	buckets := config.SnapshotBuckets()

	config.Buckets["Order"] = "changed"
	config.Buckets["Invoice"] = "invoices"

	assert.Equal(t, "orders", buckets.Resolve("Order"))
	assert.Equal(t, "snapshots", buckets.Resolve("Invoice"))
}
