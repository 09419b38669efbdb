// Package rules evaluates the OS, architecture and feature predicates that
// gate libraries and arguments in version descriptors.
package rules

import (
	"runtime"
	"strings"
)

// OS names as they appear in descriptors.
const (
	OSWindows = "windows"
	OSMac     = "osx"
	OSLinux   = "linux"
)

// Rule actions.
const (
	ActionAllow    = "allow"
	ActionDisallow = "disallow"
)

// Known feature flags. None are enabled by default.
const (
	FeatureDemoUser          = "is_demo_user"
	FeatureCustomResolution  = "has_custom_resolution"
	FeatureQuickPlaysSupport = "has_quick_plays_support"
	FeatureQuickPlaySingle   = "is_quick_play_singleplayer"
	FeatureQuickPlayMulti    = "is_quick_play_multiplayer"
	FeatureQuickPlayRealms   = "is_quick_play_realms"
)

// Host describes the machine the game will run on.
// Arch is the host-reported name (x86_64, aarch64, x86, ...).
type Host struct {
	OS   string
	Arch string
}

// OSPredicate is the "os" object of a rule.
type OSPredicate struct {
	Name    string `json:"name,omitempty"`
	Arch    string `json:"arch,omitempty"`
	Version string `json:"version,omitempty"`
}

// Rule is one entry of a descriptor's rules list.
type Rule struct {
	Action   string          `json:"action"`
	OS       *OSPredicate    `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// Features holds the enabled feature flags. A missing key is false.
type Features map[string]bool

// DetectHost returns the host facts of the running process.
func DetectHost() Host {
	return Host{OS: osName(runtime.GOOS), Arch: HostArch(runtime.GOARCH)}
}

func osName(goos string) string {
	switch goos {
	case "windows":
		return OSWindows
	case "darwin":
		return OSMac
	default:
		return OSLinux
	}
}

// HostArch maps a GOARCH value to the architecture name descriptors and
// native artifacts use.
func HostArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86"
	case "arm64":
		return "aarch64"
	case "ppc64", "ppc64le":
		return "powerpc64"
	case "ppc":
		return "powerpc"
	case "mips64", "mips64le":
		return "mips64"
	case "mips", "mipsle":
		return "mips"
	case "loong64":
		return "loongarch64"
	default:
		return goarch
	}
}

// NormalizeArch maps x86_64 to x64 and passes every other name through.
func NormalizeArch(arch string) string {
	if arch == "x86_64" {
		return "x64"
	}
	return arch
}

// NormalizedArch returns the host architecture in rule form.
func (h Host) NormalizedArch() string {
	return NormalizeArch(h.Arch)
}

// Satisfied reports whether a single rule holds for host and features.
func (r Rule) Satisfied(host Host, features Features) bool {
	p := r.matches(host, features)
	if r.Action == ActionDisallow {
		return !p
	}
	return p
}

func (r Rule) matches(host Host, features Features) bool {
	p := true
	if r.OS != nil {
		switch {
		case r.OS.Name != "":
			p = canonicalOS(r.OS.Name) == host.OS
		case r.OS.Arch != "":
			p = r.OS.Arch == host.NormalizedArch()
		}
	}

	for key, want := range r.Features {
		if features[key] != want {
			p = false
		}
	}
	return p
}

func canonicalOS(name string) string {
	name = strings.ToLower(name)
	if name == "macos" {
		return OSMac
	}
	return name
}

// Evaluate reports whether every rule in rs is satisfied. An empty list is
// always satisfied.
func Evaluate(rs []Rule, host Host, features Features) bool {
	for _, r := range rs {
		if !r.Satisfied(host, features) {
			return false
		}
	}
	return true
}
