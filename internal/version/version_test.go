package version

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/manifest"
	"github.com/steviee/bread-launcher/internal/rules"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modernDescriptor = `{
	"id": "1.20.4",
	"type": "release",
	"mainClass": "net.minecraft.client.main.Main",
	"minimumLauncherVersion": 21,
	"complianceLevel": 1,
	"assets": "12",
	"assetIndex": {"id": "12", "sha1": "abc", "size": 10, "totalSize": 100, "url": "https://example.com/12.json"},
	"downloads": {"client": {"sha1": "def", "size": 5, "url": "https://example.com/client.jar"}},
	"javaVersion": {"component": "java-runtime-gamma", "majorVersion": 17},
	"arguments": {
		"game": [
			"--username", "${auth_player_name}",
			{"rules": [{"action": "allow", "features": {"is_demo_user": true}}], "value": "--demo"},
			{"rules": [{"action": "allow", "features": {"has_custom_resolution": true}}], "value": ["--width", "${resolution_width}"]}
		],
		"jvm": [
			{"rules": [{"action": "allow", "os": {"name": "osx"}}], "value": ["-XstartOnFirstThread"]},
			{"rules": [{"action": "allow", "os": {"arch": "x86"}}], "value": "-Xss1M"},
			"-Djava.library.path=${natives_directory}",
			"-cp", "${classpath}"
		]
	},
	"libraries": [
		{
			"name": "org.lwjgl:lwjgl:3.3.2",
			"downloads": {"artifact": {"path": "org/lwjgl/lwjgl/3.3.2/lwjgl-3.3.2.jar", "sha1": "111", "size": 1, "url": "https://libraries.minecraft.net/org/lwjgl/lwjgl/3.3.2/lwjgl-3.3.2.jar"}}
		},
		{
			"name": "org.lwjgl:lwjgl:3.3.2:natives-linux",
			"downloads": {"artifact": {"path": "org/lwjgl/lwjgl/3.3.2/lwjgl-3.3.2-natives-linux.jar", "sha1": "222", "size": 1, "url": "https://example.com/n.jar"}},
			"rules": [{"action": "allow", "os": {"name": "linux"}}]
		}
	],
	"unknownField": {"tolerated": true}
}`

const legacyDescriptor = `{
	"id": "1.7.10",
	"type": "release",
	"mainClass": "net.minecraft.client.main.Main",
	"minimumLauncherVersion": 13,
	"assets": "1.7.10",
	"assetIndex": {"id": "1.7.10", "sha1": "abc", "url": "https://example.com/1.7.10.json"},
	"downloads": {"client": {"sha1": "def", "url": "https://example.com/client.jar"}},
	"minecraftArguments": "--username ${auth_player_name} --version ${version_name}",
	"libraries": [
		{
			"name": "org.lwjgl.lwjgl:lwjgl-platform:2.9.1",
			"downloads": {
				"classifiers": {
					"natives-linux": {"path": "org/lwjgl/lwjgl/lwjgl-platform/2.9.1/lwjgl-platform-2.9.1-natives-linux.jar", "sha1": "aa", "url": "https://example.com/l.jar"},
					"natives-windows": {"path": "org/lwjgl/lwjgl/lwjgl-platform/2.9.1/lwjgl-platform-2.9.1-natives-windows.jar", "sha1": "bb", "url": "https://example.com/w.jar"}
				}
			},
			"rules": [{"action": "allow"}, {"action": "disallow", "os": {"name": "osx"}}]
		}
	]
}`

func TestDecode_Modern(t *testing.T) {
	m, err := Decode([]byte(modernDescriptor))
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, SchemaModern, m.Schema())
	assert.Equal(t, "12", m.AssetIndex.ID)
	assert.Equal(t, JavaVersion{Component: "java-runtime-gamma", MajorVersion: 17}, m.Java())
	require.NotNil(t, m.Downloads.Client)
	assert.Equal(t, "def", m.Downloads.Client.SHA1)
	require.Len(t, m.Libraries, 2)
	assert.Equal(t, "org/lwjgl/lwjgl/3.3.2/lwjgl-3.3.2.jar", m.Libraries[0].Downloads.Artifact.Path)

	game := m.Arguments.Game
	require.Len(t, game, 4)
	assert.True(t, game[0].Plain())
	assert.Equal(t, []string{"--username"}, game[0].Values)
	assert.Equal(t, []string{"--demo"}, game[2].Values)
	assert.Equal(t, map[string]bool{rules.FeatureDemoUser: true}, game[2].Rules[0].Features)
	assert.Equal(t, []string{"--width", "${resolution_width}"}, game[3].Values)

	jvm := m.Arguments.JVM
	require.Len(t, jvm, 5)
	assert.Equal(t, "osx", jvm[0].Rules[0].OS.Name)
	assert.Equal(t, []string{"-Xss1M"}, jvm[1].Values)
}

func TestDecode_Legacy(t *testing.T) {
	m, err := Decode([]byte(legacyDescriptor))
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, SchemaLegacy, m.Schema())
	assert.Nil(t, m.Arguments)
	assert.Contains(t, m.MinecraftArguments, "${auth_player_name}")
	assert.Equal(t, JavaVersion{Component: DefaultJavaComponent, MajorVersion: DefaultJavaMajor}, m.Java())

	classifiers := m.Libraries[0].Downloads.Classifiers
	assert.Contains(t, classifiers, "natives-linux")
	assert.Contains(t, classifiers, "natives-windows")
	assert.Len(t, m.Libraries[0].Rules, 2)
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr bool
	}{
		{name: "modern", meta: Metadata{ID: "a", MainClass: "M", Arguments: &Arguments{}}},
		{name: "legacy", meta: Metadata{ID: "a", MainClass: "M", MinecraftArguments: "--x"}},
		{name: "both shapes", meta: Metadata{ID: "a", MainClass: "M", MinecraftArguments: "--x", Arguments: &Arguments{}}},
		{name: "neither shape", meta: Metadata{ID: "a", MainClass: "M"}, wantErr: true},
		{name: "no main class", meta: Metadata{ID: "a", MinecraftArguments: "--x"}, wantErr: true},
		{name: "no id", meta: Metadata{MainClass: "M", MinecraftArguments: "--x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.Config))
				return
			}
			require.NoError(t, err)
		})
	}

	both := Metadata{MinecraftArguments: "--x", Arguments: &Arguments{}}
	assert.Equal(t, SchemaModern, both.Schema(), "structured arguments win")
}

func TestArgument_JSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Argument
	}{
		{name: "string", input: `"--demo"`, want: Argument{Values: []string{"--demo"}}},
		{name: "object with string", input: `{"rules":[{"action":"allow"}],"value":"-X"}`, want: Argument{Rules: []rules.Rule{{Action: "allow"}}, Values: []string{"-X"}}},
		{name: "object with list", input: `{"rules":[],"value":["-a","-b"]}`, want: Argument{Rules: []rules.Rule{}, Values: []string{"-a", "-b"}}},
		{name: "object without value", input: `{"rules":[{"action":"allow"}]}`, want: Argument{Rules: []rules.Rule{{Action: "allow"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Argument
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad Argument
	assert.Error(t, json.Unmarshal([]byte(`{"value": 42}`), &bad))

	out, err := json.Marshal(Argument{Values: []string{"--demo"}})
	require.NoError(t, err)
	assert.JSONEq(t, `"--demo"`, string(out))
}

func TestParse(t *testing.T) {
	paths := state.NewPaths(t.TempDir())
	require.NoError(t, os.MkdirAll(paths.Versions(), 0755))
	require.NoError(t, os.WriteFile(paths.VersionJSON("1.20.4"), []byte(modernDescriptor), 0644))
	require.NoError(t, os.WriteFile(paths.VersionJSON("broken"), []byte(`{"id":`), 0644))
	require.NoError(t, os.WriteFile(paths.VersionJSON("shapeless"), []byte(`{"id":"shapeless","mainClass":"M"}`), 0644))

	instanceDir := t.TempDir()
	m, err := Parse(paths, instanceDir, "1.20.4")
	require.NoError(t, err)
	assert.Equal(t, instanceDir, m.Dir)

	_, err = Parse(paths, instanceDir, "1.0.0")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	_, err = Parse(paths, instanceDir, "broken")
	assert.True(t, apperr.Is(err, apperr.Config))

	_, err = Parse(paths, instanceDir, "shapeless")
	assert.True(t, apperr.Is(err, apperr.Config))

	_, err = Parse(paths, instanceDir, "../escape")
	assert.True(t, apperr.Is(err, apperr.Config))
}

func TestDownloadDescriptorAndClient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/1.20.4.json":
			_, _ = w.Write([]byte(modernDescriptor))
		case "/client.jar":
			_, _ = w.Write([]byte("jar bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := fetch.NewClient(&fetch.Config{HTTPClient: srv.Client(), Backoff: time.Millisecond})
	paths := state.NewPaths(t.TempDir())

	v := manifest.Version{
		ID:   "1.20.4",
		Type: manifest.TypeRelease,
		URL:  srv.URL + "/1.20.4.json",
		SHA1: fetch.SumBytes([]byte(modernDescriptor)),
	}
	require.NoError(t, DownloadDescriptor(context.Background(), client, paths, v))
	require.NoError(t, DownloadDescriptor(context.Background(), client, paths, v))
	assert.Equal(t, int32(1), hits.Load())

	m, err := Parse(paths, t.TempDir(), "1.20.4")
	require.NoError(t, err)

	m.Downloads.Client.URL = srv.URL + "/client.jar"
	m.Downloads.Client.SHA1 = fetch.SumBytes([]byte("jar bytes"))
	require.NoError(t, DownloadClient(context.Background(), client, paths, m, 2))
	assert.FileExists(t, paths.ClientJar("1.20.4"))

	m.Downloads.Client = nil
	assert.True(t, apperr.Is(DownloadClient(context.Background(), client, paths, m, 2), apperr.Config))

	bad := v
	bad.ID = "../../etc"
	assert.True(t, apperr.Is(DownloadDescriptor(context.Background(), client, paths, bad), apperr.Config))
}
