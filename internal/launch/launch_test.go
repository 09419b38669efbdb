package launch

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/assets"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/instance"
	"github.com/steviee/bread-launcher/internal/library"
	"github.com/steviee/bread-launcher/internal/loader"
	"github.com/steviee/bread-launcher/internal/manifest"
	"github.com/steviee/bread-launcher/internal/progress"
	"github.com/steviee/bread-launcher/internal/rules"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linux64 = rules.Host{OS: rules.OSLinux, Arch: "x86_64"}

const (
	gameID       = "1.20.4"
	brigadierJar = "com/mojang/brigadier/1.2.9/brigadier-1.2.9.jar"
	nativesLinux = "org/lwjgl/lwjgl/lwjgl-platform/2.9.1/lwjgl-platform-2.9.1-natives-linux.jar"
	nativesWin   = "org/lwjgl/lwjgl/lwjgl-platform/2.9.1/lwjgl-platform-2.9.1-natives-windows.jar"
)

func TestOfflineAccount(t *testing.T) {
	acc, err := OfflineAccount("Notch")
	require.NoError(t, err)
	assert.Equal(t, "Notch", acc.Name)
	assert.Equal(t, "b50ad385-829d-3141-a216-7e7d7539ba7f", acc.UUID)
	assert.Equal(t, OfflineToken, acc.Token)
	assert.Equal(t, AccountLegacy, acc.Type)

	assert.Equal(t, "5627dd98-e6be-3c21-b8a8-e92344183641", OfflineUUID("Steve"))
	assert.Equal(t, OfflineUUID("Steve"), OfflineUUID("Steve"))

	_, err = OfflineAccount("no spaces allowed")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Config))
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// upstream serves a complete version: descriptor, client jar, libraries,
// asset index and objects.
type upstream struct {
	srv   *httptest.Server
	files map[string][]byte
	mu    sync.Mutex
	hits  map[string]int
	ver   manifest.Version
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{files: map[string][]byte{}, hits: map[string]int{}}
	u.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		u.mu.Lock()
		u.hits[p]++
		body, ok := u.files[p]
		u.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(u.srv.Close)

	u.files["client.jar"] = []byte("client jar bytes")
	u.files["libraries/"+brigadierJar] = []byte("brigadier")
	u.files["libraries/"+nativesLinux] = zipBytes(t, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0",
		"liblwjgl.so":          "elf",
	})
	u.files["libraries/"+nativesWin] = zipBytes(t, map[string]string{"lwjgl.dll": "pe"})

	sound := []byte("sound")
	soundHash := fetch.SumBytes(sound)
	u.files["objects/"+soundHash[:2]+"/"+soundHash] = sound
	index, err := json.Marshal(map[string]any{
		"objects": map[string]any{"minecraft/sounds/a.ogg": map[string]any{"hash": soundHash, "size": len(sound)}},
	})
	require.NoError(t, err)
	u.files["indexes/12.json"] = index

	lib := func(p string) map[string]any {
		return map[string]any{"path": p, "sha1": fetch.SumBytes(u.files["libraries/"+p]), "url": u.srv.URL + "/libraries/" + p}
	}
	desc, err := json.Marshal(map[string]any{
		"id":        gameID,
		"type":      "release",
		"mainClass": "net.minecraft.client.main.Main",
		"assets":    "12",
		"assetIndex": map[string]any{
			"id": "12", "sha1": fetch.SumBytes(index), "url": u.srv.URL + "/indexes/12.json",
		},
		"downloads": map[string]any{
			"client": map[string]any{"sha1": fetch.SumBytes(u.files["client.jar"]), "url": u.srv.URL + "/client.jar"},
		},
		"javaVersion": map[string]any{"component": "java-runtime-gamma", "majorVersion": 17},
		"libraries": []any{
			map[string]any{"name": "com.mojang:brigadier:1.2.9", "downloads": map[string]any{"artifact": lib(brigadierJar)}},
			map[string]any{"name": "org.lwjgl.lwjgl:lwjgl-platform:2.9.1", "downloads": map[string]any{
				"classifiers": map[string]any{"natives-linux": lib(nativesLinux), "natives-windows": lib(nativesWin)},
			}},
		},
		"arguments": map[string]any{
			"game": []any{
				"--username", "${auth_player_name}",
				map[string]any{
					"rules": []any{map[string]any{"action": "allow", "features": map[string]any{"is_demo_user": true}}},
					"value": "--demo",
				},
			},
			"jvm": []any{
				map[string]any{
					"rules": []any{map[string]any{"action": "allow", "os": map[string]any{"name": "osx"}}},
					"value": []any{"-XstartOnFirstThread"},
				},
				"-Djava.library.path=${natives_directory}",
				"-Dio.netty.native.workdir=${natives_directory}",
				"-Dminecraft.launcher.brand=${launcher_name}",
				"-cp", "${classpath}",
			},
		},
	})
	require.NoError(t, err)
	u.files["versions/"+gameID+".json"] = desc
	u.ver = manifest.Version{ID: gameID, Type: manifest.TypeRelease, URL: u.srv.URL + "/versions/" + gameID + ".json", SHA1: fetch.SumBytes(desc)}
	return u
}

func (u *upstream) client() *fetch.Client {
	return fetch.NewClient(&fetch.Config{HTTPClient: u.srv.Client(), Backoff: time.Millisecond})
}

func (u *upstream) hitCount(p string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[p]
}

// fakeRuntime pretends a runtime is installed at path.
type fakeRuntime struct {
	path  string
	calls atomic.Int32
	got   version.JavaVersion
	err   error
}

func (f *fakeRuntime) Ensure(_ context.Context, req version.JavaVersion, bus *progress.Bus) (string, bool, error) {
	f.calls.Add(1)
	f.got = req
	if bus.CheckStop() {
		return "", false, nil
	}
	if f.err != nil {
		return "", false, f.err
	}
	return f.path, true, nil
}

// cancelAfter cancels the bus once the wrapped library stage succeeds.
type cancelAfter struct {
	inner LibraryDownloader
}

func (c cancelAfter) Download(ctx context.Context, m *version.Metadata, dir string, bus *progress.Bus) (bool, error) {
	ok, err := c.inner.Download(ctx, m, dir, bus)
	bus.Cancel()
	return ok, err
}

type countingAssets struct {
	inner AssetDownloader
	calls atomic.Int32
}

func (c *countingAssets) Download(ctx context.Context, ref version.AssetIndexRef, bus *progress.Bus) (*assets.Result, bool, error) {
	c.calls.Add(1)
	return c.inner.Download(ctx, ref, bus)
}

type fixture struct {
	up      *upstream
	paths   state.Paths
	inst    *instance.Instance
	runtime *fakeRuntime
	libs    LibraryDownloader
	assets  *countingAssets
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	up := newUpstream(t)
	paths := state.NewPaths(t.TempDir())
	client := up.client()

	require.NoError(t, version.DownloadDescriptor(context.Background(), client, paths, up.ver))

	inst := &instance.Instance{
		ID:        "0190b7e8-7d3a-7c4a-9d1e-3f2a1b0c9d8e",
		Name:      "latest",
		Group:     instance.Ungrouped,
		VersionID: gameID,
	}
	inst.Dir = filepath.Join(paths.Instances(), inst.ID)
	require.NoError(t, os.MkdirAll(inst.Dir, 0755))

	java := filepath.Join(t.TempDir(), "java")
	require.NoError(t, os.WriteFile(java, []byte("#!/bin/sh\n"), 0755))

	return &fixture{
		up:      up,
		paths:   paths,
		inst:    inst,
		runtime: &fakeRuntime{path: java},
		libs:    library.NewDownloader(client, paths, linux64, library.WithWorkers(2), library.WithMaxAttempts(1)),
		assets: &countingAssets{inner: assets.NewDownloader(client, paths,
			assets.WithWorkers(4), assets.WithMaxAttempts(1), assets.WithBaseURL(up.srv.URL+"/objects"))},
	}
}

func (f *fixture) preparer() *Preparer {
	return NewPreparer(f.up.client(), f.paths, f.runtime, f.libs, f.assets, 1)
}

func TestPrepareAndCompose(t *testing.T) {
	f := newFixture(t)
	bus := progress.NewBus(256)

	prep, ok, err := f.preparer().Run(context.Background(), f.inst, bus)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, version.JavaVersion{Component: "java-runtime-gamma", MajorVersion: 17}, f.runtime.got)
	assert.Equal(t, f.runtime.path, prep.JavaPath)

	// Descriptor and client jar match upstream
	for p, local := range map[string]string{
		"versions/" + gameID + ".json": f.paths.VersionJSON(gameID),
		"client.jar":                   f.paths.ClientJar(gameID),
	} {
		ok, err := fetch.VerifyFile(local, fetch.SumBytes(f.up.files[p]))
		require.NoError(t, err)
		assert.True(t, ok, p)
	}

	// Only the linux natives were fetched and extracted
	assert.FileExists(t, filepath.Join(f.paths.Natives(f.inst.Dir), "liblwjgl.so"))
	assert.NoFileExists(t, filepath.Join(f.paths.Natives(f.inst.Dir), "lwjgl.dll"))
	assert.NoFileExists(t, filepath.Join(f.paths.Natives(f.inst.Dir), "MANIFEST.MF"))
	assert.Zero(t, f.up.hitCount("libraries/"+nativesWin))
	assert.Equal(t, 1, f.up.hitCount("libraries/"+nativesLinux))

	acc, err := OfflineAccount("Steve")
	require.NoError(t, err)
	cmd, err := Compose(f.paths, prep.Metadata, f.inst, Options{
		JavaPath:        prep.JavaPath,
		MemoryMB:        4096,
		LauncherVersion: "1.2.3",
	}, acc, linux64)
	require.NoError(t, err)

	natives := f.paths.Natives(f.inst.Dir)
	classpath := f.paths.Library(brigadierJar) + ":" + f.paths.ClientJar(gameID)
	assert.Equal(t, []string{
		"-Xms4096M", "-Xmx4096M", "-Xss1M",
		"-Dminecraft.launcher.brand=bread-launcher",
		"-Dminecraft.launcher.version=1.2.3",
		"-Djava.library.path=" + natives,
		"-cp", classpath,
		"-Dio.netty.native.workdir=" + natives,
	}, cmd.JVMArgs)
	assert.Equal(t, "net.minecraft.client.main.Main", cmd.MainClass)
	assert.Equal(t, []string{
		"--assetIndex", "12",
		"--gameDir", f.inst.Dir,
		"--assetsDir", f.paths.Assets(),
		"--username", "Steve",
		"--userType", "legacy",
		"--userProperties", "{}",
		"--uuid", acc.UUID,
		"--accessToken", "0",
		"--version", gameID,
		"--versionType", "bread-launcher 1.2.3",
	}, cmd.GameArgs)
	assert.Equal(t, f.inst.Dir, cmd.Dir)
	assert.Equal(t, prep.JavaPath, cmd.Path)

	args := cmd.Args()
	assert.Equal(t, cmd.MainClass, args[len(cmd.JVMArgs)])
	for _, entry := range strings.Split(classpath, ":") {
		assert.NotContains(t, filepath.Base(entry), "natives")
	}
}

func TestPrepare_RepairsCorruptLibrary(t *testing.T) {
	f := newFixture(t)

	_, ok, err := f.preparer().Prepare(context.Background(), f.inst, progress.NewBus(256))
	require.NoError(t, err)
	require.True(t, ok)

	local := f.paths.Library(brigadierJar)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(local, data, 0644))

	_, ok, err = f.preparer().Prepare(context.Background(), f.inst, progress.NewBus(256))
	require.NoError(t, err)
	require.True(t, ok)

	repaired, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, f.up.files["libraries/"+brigadierJar], repaired)
}

func TestPrepare_CancelBeforeAssets(t *testing.T) {
	f := newFixture(t)
	f.libs = cancelAfter{inner: f.libs}
	bus := progress.NewBus(256)

	meta, ok, err := f.preparer().Prepare(context.Background(), f.inst, bus)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, meta)

	valid, err := fetch.VerifyFile(f.paths.ClientJar(gameID), fetch.SumBytes(f.up.files["client.jar"]))
	require.NoError(t, err)
	assert.True(t, valid)

	assert.Zero(t, f.assets.calls.Load())
	assert.Zero(t, f.up.hitCount("indexes/12.json"))

	var stops int
	for _, msg := range bus.Drain() {
		if msg.Kind == progress.Errored && msg.Text == progress.StopMessage {
			stops++
		}
	}
	assert.Equal(t, 1, stops)
}

func TestPrepare_CancelledUpfront(t *testing.T) {
	f := newFixture(t)
	bus := progress.NewBus(16)
	bus.Cancel()

	_, ok, err := f.preparer().Prepare(context.Background(), f.inst, bus)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, f.runtime.calls.Load())
	assert.Zero(t, f.up.hitCount("client.jar"))
}

func TestPrepare_RuntimeFailureStopsPipeline(t *testing.T) {
	f := newFixture(t)
	f.runtime.err = apperr.Errorf(apperr.NotFound, "jre", "no runtime")

	_, ok, err := f.preparer().Prepare(context.Background(), f.inst, progress.NewBus(16))
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Zero(t, f.up.hitCount("client.jar"))
}

func TestPrepare_MissingDescriptor(t *testing.T) {
	f := newFixture(t)
	f.inst.VersionID = "1.8.9"

	_, ok, err := f.preparer().Prepare(context.Background(), f.inst, progress.NewBus(16))
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestPrepare_LaunchesLoaderProfile(t *testing.T) {
	f := newFixture(t)

	const profileID = "fabric-loader-0.15.7-1.20.4"
	loaderJar := "net/fabricmc/fabric-loader/0.15.7/fabric-loader-0.15.7.jar"
	f.up.files["libraries/"+loaderJar] = []byte("fabric loader")

	profile, err := json.Marshal(map[string]any{
		"id":           profileID,
		"inheritsFrom": gameID,
		"mainClass":    "net.fabricmc.loader.impl.launch.knot.KnotClient",
		"libraries": []any{map[string]any{
			"name": "net.fabricmc:fabric-loader:0.15.7",
			"downloads": map[string]any{"artifact": map[string]any{
				"path": loaderJar,
				"sha1": fetch.SumBytes(f.up.files["libraries/"+loaderJar]),
				"url":  f.up.srv.URL + "/libraries/" + loaderJar,
			}},
		}},
	})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.paths.VersionJSON(profileID)), 0755))
	require.NoError(t, os.WriteFile(f.paths.VersionJSON(profileID), profile, 0644))

	f.inst.Loader = loader.Fabric
	f.inst.ProfileID = profileID
	require.Equal(t, profileID, f.inst.LaunchVersion())

	m, ok, err := f.preparer().Prepare(context.Background(), f.inst, progress.NewBus(256))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "net.fabricmc.loader.impl.launch.knot.KnotClient", m.MainClass)
	assert.Equal(t, "net.fabricmc:fabric-loader:0.15.7", m.Libraries[0].Name)
	assert.FileExists(t, f.paths.Library(loaderJar))

	// Without the profile on disk the instance cannot be prepared
	require.NoError(t, os.Remove(f.paths.VersionJSON(profileID)))
	_, ok, err = f.preparer().Prepare(context.Background(), f.inst, progress.NewBus(256))
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCompose_MissingPieces(t *testing.T) {
	f := newFixture(t)
	prep, ok, err := f.preparer().Run(context.Background(), f.inst, progress.NewBus(256))
	require.NoError(t, err)
	require.True(t, ok)
	acc, err := OfflineAccount("Steve")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(t *testing.T) Options
		want   error
	}{
		{"java", func(t *testing.T) Options {
			return Options{JavaPath: filepath.Join(t.TempDir(), "nope")}
		}, ErrJavaMissing},
		{"natives", func(t *testing.T) Options {
			require.NoError(t, os.RemoveAll(f.paths.Natives(f.inst.Dir)))
			return Options{JavaPath: prep.JavaPath}
		}, ErrNativesMissing},
		{"client jar", func(t *testing.T) Options {
			require.NoError(t, os.Remove(f.paths.ClientJar(gameID)))
			return Options{JavaPath: prep.JavaPath}
		}, ErrClientJarMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(f.paths, prep.Metadata, f.inst, tt.mutate(t), acc, linux64)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, apperr.Is(err, apperr.NotFound))
		})
	}
}

func TestCompose_LegacySchema(t *testing.T) {
	paths := state.NewPaths(t.TempDir())
	inst := &instance.Instance{Dir: filepath.Join(paths.Instances(), "legacy")}
	require.NoError(t, os.MkdirAll(paths.Natives(inst.Dir), 0755))
	require.NoError(t, os.MkdirAll(paths.Versions(), 0755))
	require.NoError(t, os.WriteFile(paths.ClientJar("1.7.10"), []byte("jar"), 0644))
	java := filepath.Join(t.TempDir(), "javaw.exe")
	require.NoError(t, os.WriteFile(java, []byte("exe"), 0755))

	meta := &version.Metadata{
		ID:                 "1.7.10",
		MainClass:          "net.minecraft.client.main.Main",
		MinecraftArguments: "--username ${auth_player_name} --session ${auth_session}",
		AssetIndex:         version.AssetIndexRef{ID: assets.LegacyID},
	}
	acc := Account{Name: "Alex", UUID: "u", Token: "t", Type: AccountMojang}

	cmd, err := Compose(paths, meta, inst, Options{JavaPath: java}, acc, rules.Host{OS: rules.OSWindows, Arch: "x86_64"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"--assetIndex", "legacy",
		"--gameDir", inst.Dir,
		"--assetsDir", paths.AssetLegacy(),
		"--username", "Alex",
		"--userProperties", "{}",
		"--uuid", "u",
		"--accessToken", "t",
		"--version", "1.7.10",
		"--versionType", "bread-launcher dev",
	}, cmd.GameArgs)
	assert.Contains(t, cmd.JVMArgs, "-Xmx2048M")
	assert.Contains(t, cmd.JVMArgs, paths.ClientJar("1.7.10"))
}

func TestExtraGameArgs(t *testing.T) {
	args := []version.Argument{
		{Values: []string{"--username", "${auth_player_name}", "--version", "${version_name}"}},
		{Values: []string{"--launchTarget", "fabric"}},
		{Values: []string{"--demo"}, Rules: []rules.Rule{{Action: rules.ActionAllow, Features: map[string]bool{rules.FeatureDemoUser: true}}}},
		{Values: []string{"--tweakClass", "${version_name}"}, Rules: []rules.Rule{{Action: rules.ActionAllow, OS: &rules.OSPredicate{Name: "linux"}}}},
	}

	got := extraGameArgs(args, linux64, map[string]string{"version_name": "1.20.4"})
	assert.Equal(t, []string{"--launchTarget", "fabric", "--tweakClass", "1.20.4"}, got)
}

func TestCommandStart(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	var out bytes.Buffer
	cmd := &Command{
		Path:      "/bin/sh",
		Dir:       t.TempDir(),
		JVMArgs:   []string{"-c"},
		MainClass: "pwd; exit 3",
		stdout:    &out,
	}

	p, err := cmd.Start()
	require.NoError(t, err)
	assert.Positive(t, p.PID())

	select {
	case <-p.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("child did not exit")
	}
	require.Error(t, p.Wait())
	assert.Equal(t, 3, p.ExitCode())

	wd, err := filepath.EvalSymlinks(cmd.Dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, wd, got)
}

func TestCommandStart_SpawnFailed(t *testing.T) {
	cmd := &Command{
		Path:      filepath.Join(t.TempDir(), "missing-java"),
		Dir:       t.TempDir(),
		JVMArgs:   []string{"-Xmx1M"},
		MainClass: "Main",
	}

	_, err := cmd.Start()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.SpawnFailed))
	assert.Contains(t, err.Error(), cmd.Path)
	assert.Contains(t, err.Error(), "-Xmx1M Main")
}
