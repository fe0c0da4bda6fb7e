package opentelemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/get-eventually/go-eventually-snapshot/opentelemetry"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/snapshot/snapshottest"
)

func attributeValue(attributes []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}

	return attribute.Value{}, false
}

func TestInstrumentedStore(t *testing.T) {
	ctx := context.Background()

	spans := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	store, err := opentelemetry.NewInstrumentedStore(
		snapshot.NewInMemoryStore[snapshottest.Counter](),
		opentelemetry.WithTracerProvider(tracerProvider),
		opentelemetry.WithMeterProvider(meterProvider),
		opentelemetry.WithBackend("inmemory"),
	)
	require.NoError(t, err)

	t.Run("it complies with the snapshot store contract", snapshottest.StoreSuite(store))

	t.Run("missing snapshots are not recorded as errors", func(t *testing.T) {
		_, err := store.Get(ctx, "counter", "missing")
		require.ErrorIs(t, err, snapshot.ErrNotFound)

		ended := spans.Ended()
		require.NotEmpty(t, ended)

		span := ended[len(ended)-1]
		assert.Equal(t, "snapshot.Store.Get", span.Name())
		assert.NotEqual(t, codes.Error, span.Status().Code)

		found, ok := attributeValue(span.Attributes(), opentelemetry.SnapshotFoundAttribute)
		require.True(t, ok)
		assert.False(t, found.AsBool())

		id, ok := attributeValue(span.Attributes(), opentelemetry.AggregateIDAttribute)
		require.True(t, ok)
		assert.Equal(t, "missing", id.AsString())
	})

	t.Run("saved snapshots carry their version", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, snapshottest.NewCounterSnapshot(t, "counter", "id", 1, 7)))

		ended := spans.Ended()
		span := ended[len(ended)-1]
		assert.Equal(t, "snapshot.Store.Save", span.Name())

		v, ok := attributeValue(span.Attributes(), opentelemetry.AggregateVersionAttribute)
		require.True(t, ok)
		assert.Equal(t, int64(7), v.AsInt64())

		backend, ok := attributeValue(span.Attributes(), opentelemetry.BackendAttribute)
		require.True(t, ok)
		assert.Equal(t, "inmemory", backend.AsString())
	})

	t.Run("durations are recorded for every operation", func(t *testing.T) {
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))
		require.Len(t, rm.ScopeMetrics, 1)

		names := make([]string, 0, len(rm.ScopeMetrics[0].Metrics))
		for _, m := range rm.ScopeMetrics[0].Metrics {
			names = append(names, m.Name)
		}

		assert.ElementsMatch(t, []string{
			"eventually.snapshot_store.get.duration.milliseconds",
			"eventually.snapshot_store.save.duration.milliseconds",
			"eventually.snapshot_store.delete.duration.milliseconds",
		}, names)

		for _, m := range rm.ScopeMetrics[0].Metrics {
			histogram, ok := m.Data.(metricdata.Histogram[int64])
			require.True(t, ok, m.Name)

			for _, point := range histogram.DataPoints {
				backend, ok := point.Attributes.Value(opentelemetry.BackendAttribute)
				require.True(t, ok, m.Name)
				assert.Equal(t, "inmemory", backend.AsString())
			}
		}
	})
}
