// Package backup archives instance directories as tar.gz files under
// <root>/backups and restores them in place.
package backup

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/instance"
	"github.com/steviee/bread-launcher/internal/state"
)

const (
	// DefaultKeep is how many archives per instance survive a new backup.
	DefaultKeep = 5

	archiveExt = ".tar.gz"
	stampFmt   = "20060102T150405.000"
)

// Archive describes one backup file.
type Archive struct {
	Path       string    `json:"path"`
	InstanceID string    `json:"instance_id"`
	CreatedAt  time.Time `json:"created_at"`
	SizeBytes  int64     `json:"size_bytes"`
}

// Service creates, lists and restores instance archives.
type Service struct {
	paths state.Paths
	now   func() time.Time
}

// NewService creates a backup service over paths.
func NewService(paths state.Paths) *Service {
	return &Service{paths: paths, now: time.Now}
}

// Create archives inst's directory, skipping extracted natives and the
// launch lock, then keeps only the newest keep archives of that instance.
// The caller holds the instance lease.
func (s *Service) Create(ctx context.Context, inst *instance.Instance, keep int) (*Archive, error) {
	if keep < 1 {
		keep = DefaultKeep
	}
	if _, err := os.Stat(inst.Dir); err != nil {
		return nil, apperr.New(apperr.NotFound, "backup.create", fmt.Errorf("instance directory: %w", err))
	}

	dir := s.paths.Backups()
	if err := state.EnsureDir(dir); err != nil {
		return nil, err
	}

	created := s.now().UTC()
	archivePath := filepath.Join(dir, inst.ID+"-"+created.Format(stampFmt)+archiveExt)

	tmp, err := os.CreateTemp(dir, ".backup-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := writeTarGz(ctx, tmp, inst.Dir); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	slog.Info("instance backed up", "name", inst.Name, "archive", archivePath, "bytes", info.Size())

	if err := s.prune(inst.ID, keep); err != nil {
		slog.Warn("failed to prune old backups", "name", inst.Name, "error", err)
	}

	return &Archive{Path: archivePath, InstanceID: inst.ID, CreatedAt: created, SizeBytes: info.Size()}, nil
}

// List returns inst's archives, newest first.
func (s *Service) List(inst *instance.Instance) ([]Archive, error) {
	return s.list(inst.ID)
}

func (s *Service) list(id string) ([]Archive, error) {
	entries, err := os.ReadDir(s.paths.Backups())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	prefix := id + "-"
	var out []Archive
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, archiveExt) {
			continue
		}
		created, err := time.Parse(stampFmt, strings.TrimSuffix(strings.TrimPrefix(name, prefix), archiveExt))
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Archive{
			Path:       filepath.Join(s.paths.Backups(), name),
			InstanceID: id,
			CreatedAt:  created,
			SizeBytes:  info.Size(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Service) prune(id string, keep int) error {
	archives, err := s.list(id)
	if err != nil {
		return err
	}
	for _, a := range archives[min(keep, len(archives)):] {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", a.Path, err)
		}
		slog.Debug("removed old backup", "archive", a.Path)
	}
	return nil
}

// Restore replaces inst's directory with the content of archivePath. The
// previous directory is put back if anything fails. The caller holds the
// instance lease.
func (s *Service) Restore(ctx context.Context, inst *instance.Instance, archivePath string) error {
	if _, err := os.Stat(archivePath); err != nil {
		return apperr.New(apperr.NotFound, "backup.restore", fmt.Errorf("archive: %w", err))
	}

	parent := filepath.Dir(inst.Dir)
	staging, err := os.MkdirTemp(parent, ".restore-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := extractTarGz(ctx, archivePath, staging); err != nil {
		return err
	}

	rollback := inst.Dir + ".rollback"
	_ = os.RemoveAll(rollback)
	if err := os.Rename(inst.Dir, rollback); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to move current instance aside: %w", err)
	}
	if err := os.Rename(staging, inst.Dir); err != nil {
		if rbErr := os.Rename(rollback, inst.Dir); rbErr != nil {
			slog.Error("failed to roll back restore", "dir", inst.Dir, "error", rbErr)
		}
		return fmt.Errorf("failed to move restored instance into place: %w", err)
	}
	if err := os.RemoveAll(rollback); err != nil {
		slog.Warn("failed to remove previous instance directory", "dir", rollback, "error", err)
	}

	slog.Info("instance restored", "name", inst.Name, "archive", archivePath)
	return nil
}

// skipped reports whether rel is left out of archives.
func skipped(rel string) bool {
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first == state.NativesSubdir || rel == state.LaunchLockFileName
}

func writeTarGz(ctx context.Context, w io.Writer, sourceDir string) error {
	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return apperr.New(apperr.Cancelled, "backup.create", err)
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		if rel == "." {
			return nil
		}
		if skipped(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		// Only directories and regular files are archived
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", path, err)
		}
		header.Name = filepath.ToSlash(rel)
		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		if info.IsDir() {
			return nil
		}

		file, err := os.Open(path) //nolint:gosec // path comes from walking the instance directory
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", path, err)
		}
		defer func() { _ = file.Close() }()

		if _, err := io.Copy(tarWriter, file); err != nil {
			return fmt.Errorf("failed to write file %s to archive: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

func extractTarGz(ctx context.Context, archivePath, destDir string) error {
	inFile, err := os.Open(archivePath) //nolint:gosec // archive path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = inFile.Close() }()

	gzReader, err := gzip.NewReader(inFile)
	if err != nil {
		return apperr.New(apperr.BadArchive, "backup.restore", fmt.Errorf("%s: %w", archivePath, err))
	}
	defer func() { _ = gzReader.Close() }()

	tarReader := tar.NewReader(gzReader)
	for {
		if err := ctx.Err(); err != nil {
			return apperr.New(apperr.Cancelled, "backup.restore", err)
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return apperr.New(apperr.BadArchive, "backup.restore", fmt.Errorf("read tar header: %w", err))
		}

		rel := filepath.FromSlash(header.Name)
		if !filepath.IsLocal(rel) {
			return apperr.Errorf(apperr.BadArchive, "backup.restore", "invalid file path in archive: %s", header.Name)
		}
		target := filepath.Join(destDir, rel)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory for %s: %w", target, err)
			}
			if err := writeFile(target, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		default:
			// Skip unsupported file types (symlinks, devices, etc.)
			continue
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) //nolint:gosec // target is checked by the caller
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	if _, err := io.Copy(outFile, r); err != nil {
		_ = outFile.Close()
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", target, err)
	}
	return nil
}
