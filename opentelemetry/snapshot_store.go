package opentelemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/go-eventually-snapshot/snapshot"
)

// Attribute keys used by the InstrumentedStore instrumentation.
const (
	ErrorAttribute            attribute.Key = "error"
	AggregateTypeAttribute    attribute.Key = "aggregate.type"
	AggregateIDAttribute      attribute.Key = "aggregate.id"
	AggregateVersionAttribute attribute.Key = "aggregate.version"
	SnapshotFoundAttribute    attribute.Key = "snapshot.found"
	OperationAttribute        attribute.Key = "snapshot.operation"
)

var _ snapshot.Store[any] = &InstrumentedStore[any]{}

// InstrumentedStore is a wrapper type over a snapshot.Store
// instance to provide instrumentation, in the form of metrics and traces
// using OpenTelemetry.
//
// Use NewInstrumentedStore for constructing a new instance of this type.
type InstrumentedStore[T any] struct {
	store snapshot.Store[T]

	tracer         trace.Tracer
	common         []attribute.KeyValue
	getDuration    metric.Int64Histogram
	saveDuration   metric.Int64Histogram
	deleteDuration metric.Int64Histogram
}

func (is *InstrumentedStore[T]) registerMetrics(meter metric.Meter) error {
	var err error

	if is.getDuration, err = meter.Int64Histogram(
		"eventually.snapshot_store.get.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of snapshot.Store.Get operations performed."),
	); err != nil {
		return fmt.Errorf("opentelemetry.InstrumentedStore: failed to register metric: %w", err)
	}

	if is.saveDuration, err = meter.Int64Histogram(
		"eventually.snapshot_store.save.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of snapshot.Store.Save operations performed."),
	); err != nil {
		return fmt.Errorf("opentelemetry.InstrumentedStore: failed to register metric: %w", err)
	}

	if is.deleteDuration, err = meter.Int64Histogram(
		"eventually.snapshot_store.delete.duration.milliseconds",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration in milliseconds of snapshot.Store delete operations performed."),
	); err != nil {
		return fmt.Errorf("opentelemetry.InstrumentedStore: failed to register metric: %w", err)
	}

	return nil
}

// NewInstrumentedStore returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around a snapshot.Store.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedStore[T any](store snapshot.Store[T], options ...Option) (*InstrumentedStore[T], error) {
	cfg := newConfig(options...)

	is := &InstrumentedStore[T]{
		store:  store,
		tracer: cfg.tracer(),
		common: cfg.commonAttributes(),
	}

	if err := is.registerMetrics(cfg.meter()); err != nil {
		return nil, err
	}

	return is, nil
}

func (is *InstrumentedStore[T]) startSpan(
	ctx context.Context,
	name string,
	attributes ...attribute.KeyValue,
) (context.Context, trace.Span) {
	return is.tracer.Start(ctx, name, trace.WithAttributes(append(attributes, is.common...)...))
}

func (is *InstrumentedStore[T]) endSpan(
	ctx context.Context,
	span trace.Span,
	histogram metric.Int64Histogram,
	start time.Time,
	err error,
	attributes ...attribute.KeyValue,
) {
	attributes = append(attributes, is.common...)
	attributes = append(attributes, ErrorAttribute.Bool(err != nil))
	histogram.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(attributes...))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// Get calls the wrapped snapshot.Store.Get method and records metrics and traces around it.
//
// A missing snapshot is not recorded as an error.
func (is *InstrumentedStore[T]) Get(
	ctx context.Context,
	aggregateType, aggregateID string,
) (result snapshot.Snapshot[T], err error) {
	ctx, span := is.startSpan(ctx, "snapshot.Store.Get",
		AggregateTypeAttribute.String(aggregateType),
		AggregateIDAttribute.String(aggregateID),
	)
	start := time.Now()

	defer func() {
		found := err == nil
		span.SetAttributes(SnapshotFoundAttribute.Bool(found))

		if found {
			span.SetAttributes(AggregateVersionAttribute.Int64(int64(result.LastVersion)))
		}

		recorded := err
		if errors.Is(err, snapshot.ErrNotFound) {
			recorded = nil
		}

		is.endSpan(ctx, span, is.getDuration, start, recorded,
			AggregateTypeAttribute.String(aggregateType),
			SnapshotFoundAttribute.Bool(found),
		)
	}()

	result, err = is.store.Get(ctx, aggregateType, aggregateID)

	return
}

// Save calls the wrapped snapshot.Store.Save method and records metrics and traces around it.
func (is *InstrumentedStore[T]) Save(ctx context.Context, snap snapshot.Snapshot[T]) (err error) {
	ctx, span := is.startSpan(ctx, "snapshot.Store.Save",
		AggregateTypeAttribute.String(snap.AggregateType),
		AggregateIDAttribute.String(snap.AggregateID),
		AggregateVersionAttribute.Int64(int64(snap.LastVersion)),
	)
	start := time.Now()

	defer func() {
		is.endSpan(ctx, span, is.saveDuration, start, err, AggregateTypeAttribute.String(snap.AggregateType))
	}()

	err = is.store.Save(ctx, snap)

	return
}

// DeleteByAggregateID calls the wrapped snapshot.Store.DeleteByAggregateID method
// and records metrics and traces around it.
func (is *InstrumentedStore[T]) DeleteByAggregateID(ctx context.Context, aggregateID, aggregateType string) (err error) {
	ctx, span := is.startSpan(ctx, "snapshot.Store.DeleteByAggregateID",
		AggregateTypeAttribute.String(aggregateType),
		AggregateIDAttribute.String(aggregateID),
	)
	start := time.Now()

	defer func() {
		is.endSpan(ctx, span, is.deleteDuration, start, err,
			AggregateTypeAttribute.String(aggregateType),
			OperationAttribute.String("delete_by_aggregate_id"),
		)
	}()

	err = is.store.DeleteByAggregateID(ctx, aggregateID, aggregateType)

	return
}

// DeleteByAggregateType calls the wrapped snapshot.Store.DeleteByAggregateType method
// and records metrics and traces around it.
func (is *InstrumentedStore[T]) DeleteByAggregateType(ctx context.Context, aggregateType string) (err error) {
	ctx, span := is.startSpan(ctx, "snapshot.Store.DeleteByAggregateType",
		AggregateTypeAttribute.String(aggregateType),
	)
	start := time.Now()

	defer func() {
		is.endSpan(ctx, span, is.deleteDuration, start, err,
			AggregateTypeAttribute.String(aggregateType),
			OperationAttribute.String("delete_by_aggregate_type"),
		)
	}()

	err = is.store.DeleteByAggregateType(ctx, aggregateType)

	return
}
