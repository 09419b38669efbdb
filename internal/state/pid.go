package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LaunchLockFileName is created inside an instance directory while a launch pipeline runs.
const LaunchLockFileName = ".launch.lock"

// LaunchLock keeps other launcher processes from preparing the same instance.
// The lock file holds the owning PID; the OS drops the lock if the process dies.
type LaunchLock struct {
	lock *FileLock
	pid  int
}

// LaunchInProgressError reports the PID that owns an instance's launch lock.
type LaunchInProgressError struct {
	Dir string
	PID int
}

func (e *LaunchInProgressError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("instance %s is already being launched (PID: %d)", e.Dir, e.PID)
	}
	return fmt.Sprintf("instance %s is already being launched", e.Dir)
}

// Is lets errors.Is(err, ErrLockHeld) match.
func (e *LaunchInProgressError) Is(target error) bool {
	return target == ErrLockHeld
}

// AcquireLaunchLock takes the launch lock of instanceDir without waiting.
func AcquireLaunchLock(instanceDir string) (*LaunchLock, error) {
	if err := EnsureDir(instanceDir); err != nil {
		return nil, err
	}

	path := filepath.Join(instanceDir, LaunchLockFileName)
	fl, err := TryLockFile(path)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			pid, _ := readPIDFromFile(path)
			return nil, &LaunchInProgressError{Dir: instanceDir, PID: pid}
		}
		return nil, err
	}

	f := fl.File()
	pid := os.Getpid()
	if err := f.Truncate(0); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to sync lock file: %w", err)
	}

	return &LaunchLock{lock: fl, pid: pid}, nil
}

// PID returns the process id recorded in the lock.
func (l *LaunchLock) PID() int {
	return l.pid
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *LaunchLock) Release() error {
	if l.lock == nil || l.lock.File() == nil {
		return nil
	}

	path := l.lock.Path()
	if err := l.lock.Unlock(); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// readPIDFromFile reads a PID from path. An empty file yields 0.
func readPIDFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pidStr := strings.TrimSpace(string(data))
	if pidStr == "" {
		return 0, nil
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid PID format: %w", err)
	}

	return pid, nil
}
