package instance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/loader"
	"github.com/steviee/bread-launcher/internal/manifest"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const descriptor = `{"id":"1.20.4","type":"release","mainClass":"net.minecraft.client.main.Main","arguments":{"game":[],"jvm":[]}}`

type fakeVersions struct {
	url string
}

func (f fakeVersions) Find(releaseType, id string) (manifest.Version, error) {
	if releaseType != manifest.TypeRelease {
		return manifest.Version{}, apperr.Errorf(apperr.Config, "find", "unknown release type %q", releaseType)
	}
	if id == manifest.LatestID {
		id = "1.20.4"
	}
	if id != "1.20.4" {
		return manifest.Version{}, apperr.Errorf(apperr.NotFound, "find", "version %s not found", id)
	}
	return manifest.Version{ID: id, Type: manifest.TypeRelease, URL: f.url, SHA1: fetch.SumBytes([]byte(descriptor))}, nil
}

type fakeLoaders struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLoaders) Install(_ context.Context, l loader.Loader, game, _ string) (string, string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", "", f.err
	}
	return string(l) + "-loader-0.15.7-" + game, "0.15.7", nil
}

type fixture struct {
	paths   state.Paths
	mgr     *Manager
	loaders *fakeLoaders
	hits    *atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hits := &atomic.Int32{}
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(descriptor))
	}))
	t.Cleanup(srv.Close)

	paths := state.NewPaths(t.TempDir())
	client := fetch.NewClient(&fetch.Config{HTTPClient: srv.Client(), Backoff: time.Millisecond})
	loaders := &fakeLoaders{}
	return &fixture{
		paths:   paths,
		mgr:     NewManager(paths, fakeVersions{url: srv.URL + "/1.20.4.json"}, client, loaders),
		loaders: loaders,
		hits:    hits,
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	inst, err := f.mgr.Create(context.Background(), "", "latest", manifest.LatestID, manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)

	assert.Equal(t, Ungrouped, inst.Group)
	assert.Equal(t, "latest", inst.Name)
	assert.Equal(t, "1.20.4", inst.VersionID)
	assert.Equal(t, "1.20.4", inst.LaunchVersion())
	assert.NoError(t, state.ValidateUUID(inst.ID))
	assert.Equal(t, inst.ID, filepath.Base(inst.Dir))
	assert.DirExists(t, inst.Dir)
	assert.FileExists(t, f.paths.VersionJSON("1.20.4"))
	assert.Zero(t, f.loaders.calls.Load())

	got, err := f.mgr.Get("", "latest")
	require.NoError(t, err)
	assert.Equal(t, inst, got)

	got, err = f.mgr.Get(Ungrouped, "latest")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.ID)
}

func TestCreate_Collision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.mgr.Create(ctx, "pvp", "main", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)

	before := f.mgr.Export()
	entries, err := os.ReadDir(f.paths.Instances())
	require.NoError(t, err)
	hits := f.hits.Load()

	_, err = f.mgr.Create(ctx, "pvp", "main", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Config))

	assert.Equal(t, before, f.mgr.Export())
	after, err := os.ReadDir(f.paths.Instances())
	require.NoError(t, err)
	assert.Len(t, after, len(entries))
	assert.Equal(t, hits, f.hits.Load(), "no download for a colliding key")

	got, err := f.mgr.Get("pvp", "main")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestCreate_SameNameOtherGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.mgr.Create(ctx, "a", "main", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)
	b, err := f.mgr.Create(ctx, "b", "main", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, []string{"a", "b"}, f.mgr.Groups())
}

func TestCreate_Failures(t *testing.T) {
	tests := []struct {
		name        string
		group       string
		instName    string
		versionID   string
		releaseType string
		loader      loader.Loader
		kind        apperr.Kind
	}{
		{"unknown release type", "", "x", "1.20.4", "nightly", loader.Vanilla, apperr.Config},
		{"unknown version", "", "x", "9.9.9", manifest.TypeRelease, loader.Vanilla, apperr.NotFound},
		{"empty name", "", " ", "1.20.4", manifest.TypeRelease, loader.Vanilla, apperr.Config},
		{"control characters", "bad\x01group", "x", "1.20.4", manifest.TypeRelease, loader.Vanilla, apperr.Config},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.mgr.Create(context.Background(), tt.group, tt.instName, tt.versionID, tt.releaseType, tt.loader)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Empty(t, f.mgr.List())
			assert.NoDirExists(t, f.paths.Instances())

			// The key is free again after a failed create
			_, err = f.mgr.Create(context.Background(), "", "retry", "1.20.4", manifest.TypeRelease, loader.Vanilla)
			assert.NoError(t, err)
		})
	}
}

func TestCreate_Loader(t *testing.T) {
	f := newFixture(t)

	inst, err := f.mgr.Create(context.Background(), "", "modded", "1.20.4", manifest.TypeRelease, loader.Fabric)
	require.NoError(t, err)
	assert.Equal(t, loader.Fabric, inst.Loader)
	assert.Equal(t, "0.15.7", inst.LoaderVersion)
	assert.Equal(t, "fabric-loader-0.15.7-1.20.4", inst.ProfileID)
	assert.Equal(t, inst.ProfileID, inst.LaunchVersion())
	assert.Equal(t, int32(1), f.loaders.calls.Load())
}

func TestCreate_LoaderFailureLeavesNothing(t *testing.T) {
	f := newFixture(t)
	f.loaders.err = apperr.Errorf(apperr.Config, "loader", "forge: %v", loader.ErrUnsupported)

	_, err := f.mgr.Create(context.Background(), "", "forge", "1.20.4", manifest.TypeRelease, loader.Forge)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Config))
	assert.Empty(t, f.mgr.List())
	assert.NoDirExists(t, f.paths.Instances())
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Get("", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	inst, err := f.mgr.Create(context.Background(), "g", "gone", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(inst.Dir, "options.txt"), []byte("fov:70"), 0644))

	require.NoError(t, f.mgr.Remove("g", "gone"))
	assert.NoDirExists(t, inst.Dir)
	assert.Empty(t, f.mgr.Groups())

	err = f.mgr.Remove("g", "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	inst, err := f.mgr.Create(context.Background(), "", "main", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)

	played := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := f.mgr.Update("", "main", func(i *Instance) {
		i.Memory = "4G"
		i.LastPlayed = played
		i.ID = "hijacked"
	})
	require.NoError(t, err)
	assert.Equal(t, "4G", got.Memory)
	assert.Equal(t, played, got.LastPlayed)
	assert.Equal(t, inst.ID, got.ID)
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.mgr.Create(ctx, "", "one", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)
	two, err := f.mgr.Create(ctx, "friends", "two", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)

	snap := f.mgr.Export()

	// An instance whose directory vanished and one with a bad id are dropped
	snap["friends"]["ghost"] = Instance{ID: "0190b7e8-7d3a-7c4a-9d1e-3f2a1b0c9d8e", VersionID: "1.20.4"}
	snap["friends"]["bad"] = Instance{ID: "../../etc", VersionID: "1.20.4"}

	restored := NewManager(f.paths, nil, nil, nil)
	assert.Equal(t, 2, restored.Import(snap))

	got, err := restored.Get("friends", "two")
	require.NoError(t, err)
	assert.Equal(t, two.Dir, got.Dir)
	assert.Equal(t, two.ID, got.ID)

	_, err = restored.Get("friends", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	names := make([]string, 0)
	for _, inst := range restored.List() {
		names = append(names, inst.Group+"/"+inst.Name)
	}
	assert.Equal(t, []string{"friends/two", "ungrouped/one"}, names)
}

func TestAcquire(t *testing.T) {
	f := newFixture(t)
	inst, err := f.mgr.Create(context.Background(), "", "main", "1.20.4", manifest.TypeRelease, loader.Vanilla)
	require.NoError(t, err)

	lease, err := f.mgr.Acquire("", "main")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(inst.Dir, state.LaunchLockFileName))

	_, err = f.mgr.Acquire("", "main")
	assert.ErrorIs(t, err, ErrBusy)

	err = f.mgr.Remove("", "main")
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, lease.Release())
	require.NoError(t, lease.Release())

	lease, err = f.mgr.Acquire("", "main")
	require.NoError(t, err)
	require.NoError(t, lease.Release())

	_, err = f.mgr.Acquire("", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
