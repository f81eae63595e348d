//go:build unix

package lockfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// TryLock acquires an exclusive non-blocking lock on f.
// It returns ErrLockBusy if another process already holds it.
func TryLock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == unix.EWOULDBLOCK {
		return ErrLockBusy
	}
	return err
}

// Unlock releases a lock previously acquired with TryLock.
func Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
