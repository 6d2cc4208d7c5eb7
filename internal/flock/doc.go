// Package flock provides exclusive, non-blocking advisory file locks.
//
// Ingestion takes one lock per source so two runs for the same source never
// interleave their delete and insert phases:
//
//	l, err := flock.Acquire(filepath.Join(dir, "ga4.lock"))
//	if err != nil {
//	    // another run holds it
//	}
//	defer l.Release()
package flock
