package rules

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	linux64   = Host{OS: OSLinux, Arch: "x86_64"}
	windows32 = Host{OS: OSWindows, Arch: "x86"}
	macARM    = Host{OS: OSMac, Arch: "aarch64"}
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		rules    []Rule
		host     Host
		features Features
		want     bool
	}{
		{
			name: "no rules",
			host: linux64,
			want: true,
		},
		{
			name:  "bare allow",
			rules: []Rule{{Action: ActionAllow}},
			host:  linux64,
			want:  true,
		},
		{
			name:  "allow matching os",
			rules: []Rule{{Action: ActionAllow, OS: &OSPredicate{Name: "linux"}}},
			host:  linux64,
			want:  true,
		},
		{
			name:  "allow other os",
			rules: []Rule{{Action: ActionAllow, OS: &OSPredicate{Name: "windows"}}},
			host:  linux64,
			want:  false,
		},
		{
			name: "allow all but osx on linux",
			rules: []Rule{
				{Action: ActionAllow},
				{Action: ActionDisallow, OS: &OSPredicate{Name: "osx"}},
			},
			host: linux64,
			want: true,
		},
		{
			name: "allow all but osx on mac",
			rules: []Rule{
				{Action: ActionAllow},
				{Action: ActionDisallow, OS: &OSPredicate{Name: "osx"}},
			},
			host: macARM,
			want: false,
		},
		{
			name:  "macos alias",
			rules: []Rule{{Action: ActionAllow, OS: &OSPredicate{Name: "macos"}}},
			host:  macARM,
			want:  true,
		},
		{
			name:  "arch x86 on 32-bit windows",
			rules: []Rule{{Action: ActionAllow, OS: &OSPredicate{Arch: "x86"}}},
			host:  windows32,
			want:  true,
		},
		{
			name:  "arch x86 on x86_64",
			rules: []Rule{{Action: ActionAllow, OS: &OSPredicate{Arch: "x86"}}},
			host:  linux64,
			want:  false,
		},
		{
			name:  "x64 matches normalized x86_64",
			rules: []Rule{{Action: ActionAllow, OS: &OSPredicate{Arch: "x64"}}},
			host:  linux64,
			want:  true,
		},
		{
			name:  "name takes precedence over arch",
			rules: []Rule{{Action: ActionAllow, OS: &OSPredicate{Name: "linux", Arch: "x86"}}},
			host:  linux64,
			want:  true,
		},
		{
			name:  "disallow arch x86 on x86_64",
			rules: []Rule{{Action: ActionDisallow, OS: &OSPredicate{Arch: "x86"}}},
			host:  linux64,
			want:  true,
		},
		{
			name:  "feature rule with no features enabled",
			rules: []Rule{{Action: ActionAllow, Features: map[string]bool{FeatureDemoUser: true}}},
			host:  linux64,
			want:  false,
		},
		{
			name:     "feature rule with feature enabled",
			rules:    []Rule{{Action: ActionAllow, Features: map[string]bool{FeatureCustomResolution: true}}},
			host:     linux64,
			features: Features{FeatureCustomResolution: true},
			want:     true,
		},
		{
			name:  "feature rule expecting false",
			rules: []Rule{{Action: ActionAllow, Features: map[string]bool{FeatureQuickPlayRealms: false}}},
			host:  linux64,
			want:  true,
		},
		{
			name: "every rule must hold",
			rules: []Rule{
				{Action: ActionAllow, OS: &OSPredicate{Name: "linux"}},
				{Action: ActionAllow, OS: &OSPredicate{Name: "windows"}},
			},
			host: linux64,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.rules, tt.host, tt.features))
		})
	}
}

func TestHostArch(t *testing.T) {
	tests := []struct {
		goarch string
		want   string
	}{
		{"amd64", "x86_64"},
		{"386", "x86"},
		{"arm64", "aarch64"},
		{"arm", "arm"},
		{"ppc64le", "powerpc64"},
		{"loong64", "loongarch64"},
		{"riscv64", "riscv64"},
		{"s390x", "s390x"},
	}

	for _, tt := range tests {
		t.Run(tt.goarch, func(t *testing.T) {
			assert.Equal(t, tt.want, HostArch(tt.goarch))
		})
	}
}

func TestNormalizeArch(t *testing.T) {
	assert.Equal(t, "x64", NormalizeArch("x86_64"))
	assert.Equal(t, "x86", NormalizeArch("x86"))
	assert.Equal(t, "aarch64", NormalizeArch("aarch64"))
	assert.Equal(t, "x64", linux64.NormalizedArch())
}

func TestDetectHost(t *testing.T) {
	host := DetectHost()

	assert.Equal(t, HostArch(runtime.GOARCH), host.Arch)
	switch runtime.GOOS {
	case "windows":
		assert.Equal(t, OSWindows, host.OS)
	case "darwin":
		assert.Equal(t, OSMac, host.OS)
	default:
		assert.Equal(t, OSLinux, host.OS)
	}
}
