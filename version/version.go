// Package version contains the type used to track the version of an
// Aggregate Root at the time a snapshot of its state was taken.
package version

// Version is the type to specify Aggregate Root versions.
//
// Versions are expected to be strictly increasing for the same Aggregate id,
// as snapshot stores rely on it to determine which snapshot is the most recent.
type Version uint32

// Zero is the version of an Aggregate Root with no recorded state.
const Zero Version = 0

// IsNewerThan returns true if v is strictly greater than other.
func (v Version) IsNewerThan(other Version) bool { return v > other }
