package state

import (
	"errors"
	"fmt"
	"os"
)

// ErrLockHeld is returned when TryLockFile cannot acquire a lock
// because it is already held by another process.
var ErrLockHeld = errors.New("lock is held by another process")

// FileLock is an advisory exclusive lock on a file.
type FileLock struct {
	file *os.File
	path string
}

// LockFile acquires an exclusive lock on path, blocking until it is available.
// The file is created if missing. The caller must call Unlock.
func LockFile(path string) (*FileLock, error) {
	return openLocked(path, true)
}

// TryLockFile acquires an exclusive lock on path without waiting.
// It returns ErrLockHeld if another holder has it.
func TryLockFile(path string) (*FileLock, error) {
	return openLocked(path, false)
}

func openLocked(path string, block bool) (*FileLock, error) {
	//nolint:gosec // G304: path is built from the data root
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file for locking: %w", err)
	}

	if err := lockFD(f, block); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockHeld) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return &FileLock{file: f, path: path}, nil
}

// Unlock releases the lock and closes the file. Calling it twice is a no-op.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := unlockFD(fl.file); err != nil {
		_ = fl.file.Close()
		fl.file = nil
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if err := fl.file.Close(); err != nil {
		fl.file = nil
		return fmt.Errorf("failed to close file: %w", err)
	}

	fl.file = nil
	return nil
}

// File returns the underlying locked file.
func (fl *FileLock) File() *os.File {
	return fl.file
}

// Path returns the path to the locked file.
func (fl *FileLock) Path() string {
	return fl.path
}
