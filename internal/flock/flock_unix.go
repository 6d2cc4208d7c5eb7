//go:build unix

package flock

import (
	"golang.org/x/sys/unix"

	"github.com/imkarma/logiri/internal/errors"
)

// tryLock takes flock(2) LOCK_EX without waiting. A held lock surfaces as
// ErrIngestLocked.
func tryLock(fd uintptr) error {
	err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return errors.Wrap(errors.ErrIngestLocked, "lock held by another run")
	}
	return err
}

func unlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
