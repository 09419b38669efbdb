package instance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/loader"
	"github.com/steviee/bread-launcher/internal/manifest"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
)

// VersionSource resolves manifest entries.
type VersionSource interface {
	Find(releaseType, id string) (manifest.Version, error)
}

// LoaderInstaller fetches loader profiles for a game version.
type LoaderInstaller interface {
	Install(ctx context.Context, l loader.Loader, gameVersion, loaderVersion string) (string, string, error)
}

// Manager owns the instance map. Reads take the shared lock, writes the
// exclusive one. Network work during Create runs outside the lock against a
// reserved key.
type Manager struct {
	mu       sync.RWMutex
	paths    state.Paths
	versions VersionSource
	client   *fetch.Client
	loaders  LoaderInstaller
	now      func() time.Time

	groups   map[string]map[string]*Instance
	reserved map[string]bool
	busy     map[string]bool
}

// NewManager creates an empty manager. loaders may be nil when only vanilla
// instances are created.
func NewManager(paths state.Paths, versions VersionSource, client *fetch.Client, loaders LoaderInstaller) *Manager {
	return &Manager{
		paths:    paths,
		versions: versions,
		client:   client,
		loaders:  loaders,
		now:      time.Now,
		groups:   make(map[string]map[string]*Instance),
		reserved: make(map[string]bool),
		busy:     make(map[string]bool),
	}
}

func key(group, name string) string {
	return group + "\x00" + name
}

// Create resolves versionID through the manifest, downloads its descriptor,
// installs the loader profile and materializes a fresh directory. A taken
// (group, name) key is a Config error and changes nothing.
func (m *Manager) Create(ctx context.Context, group, name, versionID, releaseType string, l loader.Loader) (*Instance, error) {
	if err := state.ValidateInstanceName(name); err != nil {
		return nil, apperr.New(apperr.Config, "instance.create", err)
	}
	if err := state.ValidateGroupName(group); err != nil {
		return nil, apperr.New(apperr.Config, "instance.create", err)
	}
	if l == "" {
		l = loader.Vanilla
	}
	group = NormalizeGroup(group)

	if err := m.reserve(group, name); err != nil {
		return nil, err
	}
	defer m.release(group, name)

	v, err := m.versions.Find(releaseType, versionID)
	if err != nil {
		return nil, err
	}

	if err := version.DownloadDescriptor(ctx, m.client, m.paths, v); err != nil {
		return nil, err
	}

	inst := &Instance{
		Name:        name,
		Group:       group,
		VersionID:   v.ID,
		ReleaseType: v.Type,
		Loader:      l,
		CreatedAt:   m.now().UTC(),
	}

	if l != loader.Vanilla {
		if m.loaders == nil {
			return nil, apperr.Errorf(apperr.Config, "instance.create", "no loader installer for %s", l)
		}
		profileID, loaderVersion, err := m.loaders.Install(ctx, l, v.ID, "")
		if err != nil {
			return nil, err
		}
		inst.ProfileID = profileID
		inst.LoaderVersion = loaderVersion
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate instance id: %w", err)
	}
	inst.ID = id.String()
	inst.Dir = filepath.Join(m.paths.Instances(), inst.ID)

	if err := state.EnsureDir(m.paths.Instances()); err != nil {
		return nil, err
	}
	if err := os.Mkdir(inst.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create instance directory: %w", err)
	}

	m.mu.Lock()
	if m.groups[group] == nil {
		m.groups[group] = make(map[string]*Instance)
	}
	m.groups[group][name] = inst
	m.mu.Unlock()

	slog.Info("instance created", "group", group, "name", name, "version", inst.VersionID, "loader", l, "dir", inst.Dir)
	out := *inst
	return &out, nil
}

func (m *Manager) reserve(group, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[group][name]; ok || m.reserved[key(group, name)] {
		return apperr.Errorf(apperr.Config, "instance.create", "instance %q already exists in group %q", name, group)
	}
	m.reserved[key(group, name)] = true
	return nil
}

func (m *Manager) release(group, name string) {
	m.mu.Lock()
	delete(m.reserved, key(group, name))
	m.mu.Unlock()
}

func notFound(op, group, name string) error {
	return apperr.New(apperr.NotFound, op, fmt.Errorf("%w: %s/%s", ErrNotFound, group, name))
}

// Get returns a copy of the instance stored under (group, name).
func (m *Manager) Get(group, name string) (*Instance, error) {
	group = NormalizeGroup(group)

	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.groups[group][name]
	if !ok {
		return nil, notFound("instance.get", group, name)
	}
	out := *inst
	return &out, nil
}

// Remove deletes the instance directory and its map entry.
func (m *Manager) Remove(group, name string) error {
	group = NormalizeGroup(group)

	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.groups[group][name]
	if !ok {
		return notFound("instance.remove", group, name)
	}
	if m.busy[inst.ID] {
		return apperr.New(apperr.Config, "instance.remove", fmt.Errorf("%w: %s/%s", ErrBusy, group, name))
	}

	if err := os.RemoveAll(inst.Dir); err != nil {
		return fmt.Errorf("remove instance directory: %w", err)
	}

	delete(m.groups[group], name)
	if len(m.groups[group]) == 0 {
		delete(m.groups, group)
	}

	slog.Info("instance removed", "group", group, "name", name, "dir", inst.Dir)
	return nil
}

// Update applies fn to the stored instance under the write lock. The ID,
// name and group cannot be changed.
func (m *Manager) Update(group, name string, fn func(*Instance)) (*Instance, error) {
	group = NormalizeGroup(group)

	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.groups[group][name]
	if !ok {
		return nil, notFound("instance.update", group, name)
	}

	next := *inst
	fn(&next)
	next.ID, next.Name, next.Group, next.Dir = inst.ID, inst.Name, inst.Group, inst.Dir
	*inst = next

	out := next
	return &out, nil
}

// List returns copies of every instance ordered by group, then name.
func (m *Manager) List() []Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Instance
	for _, g := range m.groupNames() {
		names := make([]string, 0, len(m.groups[g]))
		for n := range m.groups[g] {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, *m.groups[g][n])
		}
	}
	return out
}

// Groups returns the sorted group names.
func (m *Manager) Groups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groupNames()
}

func (m *Manager) groupNames() []string {
	names := make([]string, 0, len(m.groups))
	for g := range m.groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// Export copies the map for persistence.
func (m *Manager) Export() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := make(Snapshot, len(m.groups))
	for g, byName := range m.groups {
		snap[g] = make(map[string]Instance, len(byName))
		for n, inst := range byName {
			snap[g][n] = *inst
		}
	}
	return snap
}

// Import replaces the map with snap. Entries with an invalid id or a missing
// directory are dropped and logged. It returns how many instances were kept.
func (m *Manager) Import(snap Snapshot) int {
	groups := make(map[string]map[string]*Instance, len(snap))
	kept := 0

	for g, byName := range snap {
		for n, inst := range byName {
			inst.Group = NormalizeGroup(g)
			inst.Name = n
			if err := state.ValidateUUID(inst.ID); err != nil {
				slog.Warn("dropping instance with invalid id", "group", g, "name", n, "error", err)
				continue
			}
			inst.Dir = filepath.Join(m.paths.Instances(), inst.ID)

			info, err := os.Stat(inst.Dir)
			if err != nil || !info.IsDir() {
				if err == nil || errors.Is(err, fs.ErrNotExist) {
					slog.Warn("dropping instance without directory", "group", g, "name", n, "dir", inst.Dir)
				} else {
					slog.Warn("dropping unreadable instance", "group", g, "name", n, "error", err)
				}
				continue
			}

			if groups[inst.Group] == nil {
				groups[inst.Group] = make(map[string]*Instance)
			}
			groups[inst.Group][n] = &inst
			kept++
		}
	}

	m.mu.Lock()
	m.groups = groups
	m.mu.Unlock()
	return kept
}

// Lease is the exclusive right to launch one instance.
type Lease struct {
	m    *Manager
	id   string
	lock *state.LaunchLock
	once sync.Once
}

// Acquire marks the instance busy in this process and takes its cross-process
// launch lock. A second Acquire before Release fails with ErrBusy or
// state.ErrLockHeld.
func (m *Manager) Acquire(group, name string) (*Lease, error) {
	group = NormalizeGroup(group)

	m.mu.Lock()
	inst, ok := m.groups[group][name]
	if !ok {
		m.mu.Unlock()
		return nil, notFound("instance.acquire", group, name)
	}
	if m.busy[inst.ID] {
		m.mu.Unlock()
		return nil, apperr.New(apperr.Config, "instance.acquire", fmt.Errorf("%w: %s/%s", ErrBusy, group, name))
	}
	m.busy[inst.ID] = true
	id, dir := inst.ID, inst.Dir
	m.mu.Unlock()

	lock, err := state.AcquireLaunchLock(dir)
	if err != nil {
		m.mu.Lock()
		delete(m.busy, id)
		m.mu.Unlock()
		return nil, err
	}
	return &Lease{m: m, id: id, lock: lock}, nil
}

// Release drops the launch lock and the busy flag. Safe to call twice.
func (l *Lease) Release() error {
	var err error
	l.once.Do(func() {
		err = l.lock.Release()
		l.m.mu.Lock()
		delete(l.m.busy, l.id)
		l.m.mu.Unlock()
	})
	return err
}
