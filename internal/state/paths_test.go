package state

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDir(t *testing.T) {
	tests := []struct {
		name        string
		envSetup    func(t *testing.T)
		wantContain string
	}{
		{
			name: "uses XDG_CONFIG_HOME when set",
			envSetup: func(t *testing.T) {
				t.Setenv("XDG_CONFIG_HOME", "/tmp/test-config")
			},
			wantContain: filepath.Join("/tmp/test-config", "bread-launcher"),
		},
		{
			name: "uses ~/.config when XDG_CONFIG_HOME not set",
			envSetup: func(t *testing.T) {
				t.Setenv("XDG_CONFIG_HOME", "")
			},
			wantContain: filepath.Join(".config", "bread-launcher"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.envSetup(t)

			dir, err := GetConfigDir()
			require.NoError(t, err)
			assert.Contains(t, dir, tt.wantContain)
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/cfg", "bread-launcher", "config.yaml"), path)
}

func TestPaths_Layout(t *testing.T) {
	root := t.TempDir()
	p := NewPaths(root)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"manifest", p.Manifest(), filepath.Join(root, "version_manifest_v2.json")},
		{"version json", p.VersionJSON("1.20.4"), filepath.Join(root, "versions", "1.20.4.json")},
		{"client jar", p.ClientJar("1.20.4"), filepath.Join(root, "versions", "1.20.4.jar")},
		{"library", p.Library("org/lwjgl/lwjgl/3.3.1/lwjgl-3.3.1.jar"), filepath.Join(root, "libraries", "org", "lwjgl", "lwjgl", "3.3.1", "lwjgl-3.3.1.jar")},
		{"asset indexes", p.AssetIndexes(), filepath.Join(root, "assets", "indexes")},
		{"asset objects", p.AssetObjects(), filepath.Join(root, "assets", "objects")},
		{"legacy assets", p.AssetLegacy(), filepath.Join(root, "assets", "virtual", "legacy")},
		{"java home pads major", p.JavaHome(8), filepath.Join(root, "java", "08")},
		{"java home two digits", p.JavaHome(21), filepath.Join(root, "java", "21")},
		{"natives", p.Natives(filepath.Join(root, "instances", "abc")), filepath.Join(root, "instances", "abc", "natives")},
		{"log file", p.LogFile(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)), filepath.Join(root, "logs", "2024-03-09.log")},
		{"save file", p.SaveFile(), filepath.Join(root, "save.blauncher")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestPaths_JavaExecutable(t *testing.T) {
	p := NewPaths("/data")
	exe := p.JavaExecutable(17)

	if runtime.GOOS == "windows" {
		assert.Equal(t, filepath.Join("/data", "java", "17", "bin", "javaw.exe"), exe)
	} else {
		assert.Equal(t, filepath.Join("/data", "java", "17", "bin", "java"), exe)
	}
}

func TestPaths_InitDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	p := NewPaths(root)

	require.NoError(t, p.InitDirs())

	for _, dir := range []string{p.Versions(), p.Libraries(), p.AssetIndexes(), p.Java(), p.Instances(), p.Logs()} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}

	// Idempotent
	require.NoError(t, p.InitDirs())
}

func TestPaths_InitDirsEmptyRoot(t *testing.T) {
	err := Paths{}.InitDirs()
	assert.Error(t, err)
}

func TestDefaultDataDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Setenv("APPDATA", `C:\Users\steve\AppData\Roaming`)
	}

	dir, err := DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, "bread-launcher", filepath.Base(dir))
}
