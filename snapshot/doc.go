// Package snapshot provides support for Aggregate Root snapshots, useful
// where the size of your Aggregate Roots is expected to considerably
// grow in size and number of events.
//
// A snapshot is the serialized state of an Aggregate Root at a given version.
// Only the most recent snapshot for an Aggregate id is meaningful: stores
// keep the highest version and prune the stale ones.
//
// BlobStore implements the snapshot storage protocol on top of any
// blob.Store backend (e.g. MongoDB GridFS, PostgreSQL, Firestore).
package snapshot
