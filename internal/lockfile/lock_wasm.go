//go:build js && wasm

package lockfile

import "os"

// TryLock is a no-op under wasm; that runtime is single-process.
func TryLock(f *os.File) error {
	return nil
}

// Unlock is a no-op under wasm.
func Unlock(f *os.File) error {
	return nil
}
