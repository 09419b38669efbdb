package library

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/state"
)

// ExtractNatives unpacks every file of the archive at archivePath into
// destDir, flattened to base names. Entries whose name contains MANIFEST are
// skipped and existing files are never overwritten. It returns how many
// files were written.
func ExtractNatives(archivePath, destDir string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, apperr.New(apperr.BadArchive, "library.natives", fmt.Errorf("open %s: %w", archivePath, err))
	}
	defer func() { _ = r.Close() }()

	if err := state.EnsureDir(destDir); err != nil {
		return 0, err
	}

	written := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		if name == "" || name == "." || name == "/" || strings.Contains(name, "MANIFEST") {
			continue
		}

		target := filepath.Join(destDir, name)
		if _, err := os.Lstat(target); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return written, fmt.Errorf("stat %s: %w", target, err)
		}

		if err := extractFile(f, target); err != nil {
			return written, apperr.New(apperr.BadArchive, "library.natives", fmt.Errorf("%s: %s: %w", archivePath, f.Name, err))
		}
		written++
	}

	slog.Debug("extracted natives", "archive", archivePath, "files", written)
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return state.AtomicWrite(target, data, 0755)
}
