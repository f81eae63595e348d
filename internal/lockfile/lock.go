// Package lockfile provides a small cross-platform advisory file lock
// (TryLock/Unlock). No other package in this module imports it.
package lockfile

import "errors"

// ErrLockBusy is returned when a non-blocking lock cannot be acquired
// because another process already holds it.
var ErrLockBusy = errors.New("lockfile: held by another process")

// IsBusy reports whether err indicates the lock is currently held elsewhere.
func IsBusy(err error) bool {
	return errors.Is(err, ErrLockBusy)
}
