package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BackupSuffix is appended to a file that is being replaced.
const BackupSuffix = ".bak"

// AtomicWrite writes data to path through a temp sibling and a rename, so
// readers never observe a partially written file. The parent directory is
// created if needed. On failure the previous file, if any, is untouched.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to ensure parent directory: %w", err)
	}

	// Same directory keeps the rename on one filesystem
	tmpFile, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions on temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to target: %w", err)
	}

	success = true
	return nil
}

// AtomicWriteWithBackup keeps the current content of path at path.bak and
// then writes data atomically.
func AtomicWriteWithBackup(path string, data []byte, perm os.FileMode) error {
	if _, err := BackupFile(path); err != nil {
		return err
	}
	return AtomicWrite(path, data, perm)
}

// BackupFile renames path to path.bak. It reports false when path did not exist.
// An older backup is replaced.
func BackupFile(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.Rename(path, path+BackupSuffix); err != nil {
		return false, fmt.Errorf("failed to create backup: %w", err)
	}
	return true, nil
}

// RestoreBackup moves path.bak back over path.
func RestoreBackup(path string) error {
	if err := os.Rename(path+BackupSuffix, path); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

// DropBackup deletes path.bak if present.
func DropBackup(path string) error {
	if err := os.Remove(path + BackupSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	return nil
}
