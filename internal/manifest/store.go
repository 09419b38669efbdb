package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/state"
)

const (
	// DefaultURL is the upstream version manifest.
	DefaultURL = state.DefaultManifestURL

	// DefaultRefreshInterval is the age after which RefreshIfStale refetches.
	DefaultRefreshInterval = state.DefaultRefreshInterval
)

// Store is the on-disk mirror of the version manifest.
// A single mutex serializes load, refresh and the backup rename.
type Store struct {
	mu sync.Mutex

	paths       state.Paths
	client      *fetch.Client
	url         string
	interval    time.Duration
	maxAttempts int
	now         func() time.Time

	manifest    *Manifest
	grouped     Grouped
	lastRefresh time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithURL overrides the upstream manifest URL.
func WithURL(url string) Option {
	return func(s *Store) {
		if url != "" {
			s.url = url
		}
	}
}

// WithRefreshInterval overrides the staleness threshold.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMaxAttempts sets the download attempt budget.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store mirroring the manifest into paths.Manifest().
func NewStore(paths state.Paths, client *fetch.Client, opts ...Option) *Store {
	s := &Store{
		paths:       paths,
		client:      client,
		url:         DefaultURL,
		interval:    DefaultRefreshInterval,
		maxAttempts: fetch.DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the manifest from disk, downloading it first when absent or unreadable.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.paths.Manifest()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read manifest: %w", err)
		}
		slog.Info("version manifest missing, downloading", "url", s.url)
		return s.refreshLocked(ctx)
	}

	m, err := Parse(data)
	if err != nil {
		slog.Warn("local version manifest unreadable, downloading", "path", path, "error", err)
		return s.refreshLocked(ctx)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat manifest: %w", err)
	}

	s.set(m, info.ModTime())
	slog.Debug("loaded version manifest",
		"versions", len(m.Versions),
		"latest_release", m.Latest.Release,
		"age", s.now().Sub(s.lastRefresh).Round(time.Second))
	return nil
}

// Refresh replaces the mirrored manifest with a fresh download. On failure
// the previous file is restored unchanged and the error is returned.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Store) refreshLocked(ctx context.Context) error {
	path := s.paths.Manifest()

	hadBackup, err := state.BackupFile(path)
	if err != nil {
		return err
	}

	m, err := s.download(ctx, path)
	if err != nil {
		if hadBackup {
			if rerr := state.RestoreBackup(path); rerr != nil {
				slog.Error("failed to restore manifest backup", "path", path, "error", rerr)
				return errors.Join(err, rerr)
			}
			slog.Warn("manifest refresh failed, kept previous copy", "error", err)
		}
		return err
	}

	if err := state.DropBackup(path); err != nil {
		slog.Warn("failed to drop manifest backup", "error", err)
	}

	s.set(m, s.now())
	slog.Info("refreshed version manifest",
		"versions", len(m.Versions),
		"latest_release", m.Latest.Release,
		"latest_snapshot", m.Latest.Snapshot)
	return nil
}

func (s *Store) download(ctx context.Context, path string) (*Manifest, error) {
	if err := s.client.Fetch(ctx, filepath.Dir(path), filepath.Base(path), s.url, "", s.maxAttempts); err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return m, nil
}

func (s *Store) set(m *Manifest, refreshed time.Time) {
	s.manifest = m
	s.grouped = Group(m)
	s.lastRefresh = refreshed
}

// SinceLastRefresh returns the age of the mirrored manifest. It is
// effectively infinite when nothing has been loaded.
func (s *Store) SinceLastRefresh() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRefresh.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return s.now().Sub(s.lastRefresh)
}

// RefreshIfStale refreshes when the mirror is older than the refresh
// interval. Errors are logged and ignored so the launcher keeps working
// offline. It reports whether a refresh succeeded.
func (s *Store) RefreshIfStale(ctx context.Context) bool {
	age := s.SinceLastRefresh()
	if age < s.interval {
		return false
	}

	slog.Debug("version manifest is stale", "age", age, "interval", s.interval)
	if err := s.Refresh(ctx); err != nil {
		slog.Warn("background manifest refresh failed", "error", err)
		return false
	}
	return true
}

// Grouped returns the versions binned by release type.
func (s *Store) Grouped() Grouped {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grouped
}

// Versions returns every version in manifest order.
func (s *Store) Versions() []Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest == nil {
		return nil
	}
	return s.manifest.Versions
}

// Latest returns the newest release and snapshot ids.
func (s *Store) Latest() Latest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest == nil {
		return Latest{}
	}
	return s.manifest.Latest
}

// Find looks up a version by release type and id. The id "latest" resolves
// to the newest entry of that type.
func (s *Store) Find(releaseType, id string) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manifest == nil {
		return Version{}, apperr.Errorf(apperr.Config, "manifest.find", "version manifest not loaded")
	}

	bin, ok := s.grouped.Bin(releaseType)
	if !ok {
		return Version{}, apperr.Errorf(apperr.Config, "manifest.find", "unknown release type %q", releaseType)
	}

	if id == LatestID {
		switch releaseType {
		case TypeRelease:
			id = s.manifest.Latest.Release
		case TypeSnapshot:
			id = s.manifest.Latest.Snapshot
		default:
			if len(bin) == 0 {
				return Version{}, apperr.Errorf(apperr.NotFound, "manifest.find", "no %s versions", releaseType)
			}
			return bin[0], nil
		}
	}

	for _, v := range bin {
		if v.ID == id {
			return v, nil
		}
	}
	return Version{}, apperr.Errorf(apperr.NotFound, "manifest.find", "version %s (%s) not found", id, releaseType)
}
