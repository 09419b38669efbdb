package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zlib"
)

// ErrNoSave is returned by LoadSave when no save file exists yet.
var ErrNoSave = errors.New("no saved state")

// WriteSave serializes v as JSON, compresses it with zlib and writes it
// atomically to path, keeping the previous save as path.bak.
func WriteSave(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return fmt.Errorf("failed to create zlib writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to compress state: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish compressed state: %w", err)
	}

	if err := AtomicWriteWithBackup(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// LoadSave reads a file written by WriteSave into v.
// A save that fails to decompress or decode falls back to path.bak when present.
func LoadSave(path string, v any) error {
	err := readSave(path, v)
	if err == nil || errors.Is(err, ErrNoSave) {
		return err
	}

	if bakErr := readSave(path+BackupSuffix, v); bakErr == nil {
		return nil
	}
	return err
}

func readSave(path string, v any) error {
	//nolint:gosec // G304: path is built from the data root
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNoSave
		}
		return fmt.Errorf("failed to open state: %w", err)
	}
	defer func() { _ = f.Close() }()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open compressed state %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("failed to decompress state %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode state %s: %w", path, err)
	}
	return nil
}
