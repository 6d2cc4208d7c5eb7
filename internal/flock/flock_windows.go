//go:build windows

package flock

import (
	"golang.org/x/sys/windows"

	"github.com/imkarma/logiri/internal/errors"
)

// Ingestion lock files are never written to, so a single-byte range at
// offset zero stands in for the whole file.
const (
	rangeLow  = 1
	rangeHigh = 0
)

// tryLock takes an exclusive LockFileEx range and fails at once if another
// process holds it.
func tryLock(fd uintptr) error {
	err := windows.LockFileEx(windows.Handle(fd),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, rangeLow, rangeHigh, new(windows.Overlapped))
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return errors.Wrap(errors.ErrIngestLocked, "lock held by another run")
	}
	return err
}

func unlock(fd uintptr) error {
	return windows.UnlockFileEx(windows.Handle(fd), 0, rangeLow, rangeHigh, new(windows.Overlapped))
}
