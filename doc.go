// Package eventually contains a snapshot store for Event-sourced applications:
// Aggregate states are serialized and kept as versioned objects in a blob
// storage, so that rehydrating an Aggregate does not require replaying its
// whole Event Stream.
//
// Start from the `snapshot` package, which contains the Store interfaces and
// the BlobStore adapter implementing them over any `blob.Store`.
// The `mongodb` package provides the GridFS-backed storage, while `postgres`,
// `firestore`, `redis` and `s3` provide alternative backends.
//
// `opentelemetry` instruments a snapshot Store with traces and metrics.
package eventually
