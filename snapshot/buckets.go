package snapshot

import (
	"strings"
)

// DefaultBucket is the bucket name used when no override is configured
// for an Aggregate type.
const DefaultBucket = "snapshots"

const derivedBucketSuffix = "_snapshot"

// BucketNaming is the strategy used to name buckets for Aggregate types
// with no explicit override.
type BucketNaming uint8

const (
	// SharedBucket stores all Aggregate types in the default bucket.
	SharedBucket BucketNaming = iota

	// PerAggregateType derives a bucket name from the short name of the
	// Aggregate type, e.g. "Acme\\Shop\\Order-Item" becomes "order_item_snapshot".
	PerAggregateType
)

// Buckets resolves the bucket name holding the snapshots of an Aggregate type.
//
// The zero value stores everything in DefaultBucket.
type Buckets struct {
	// Overrides maps Aggregate types to a custom bucket name.
	Overrides map[string]string
	// Default is the shared bucket name, DefaultBucket if empty.
	Default string
	// Naming is used for Aggregate types with no override.
	Naming BucketNaming
}

// Resolve returns the bucket name for the given Aggregate type.
// The result only depends on the Buckets value and the input.
func (b Buckets) Resolve(aggregateType string) string {
	if name, ok := b.Overrides[aggregateType]; ok && name != "" {
		return name
	}

	if b.Naming == PerAggregateType {
		if name := derivedBucketName(aggregateType); name != "" {
			return name
		}
	}

	if b.Default != "" {
		return b.Default
	}

	return DefaultBucket
}

func derivedBucketName(aggregateType string) string {
	name := strings.ReplaceAll(aggregateType, "-", "_")

	if i := strings.LastIndexAny(name, `\/.`); i >= 0 {
		name = name[i+1:]
	}

	name = strings.ToLower(name)
	if name == "" {
		return ""
	}

	if !strings.Contains(name, derivedBucketSuffix) {
		name += derivedBucketSuffix
	}

	return name
}
