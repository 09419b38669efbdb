// Package library resolves, downloads and extracts the libraries of a version.
package library

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/rules"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
)

// Classifier keys for native artifacts.
const (
	NativesLinux     = "natives-linux"
	NativesOSX       = "natives-osx"
	NativesMacOS     = "natives-macos"
	NativesWindows   = "natives-windows"
	NativesWindows64 = "natives-windows-64"
	NativesWindows32 = "natives-windows-32"
)

// archTokens maps architecture tokens found in artifact file names to
// their rule-form name.
var archTokens = map[string]string{
	"x86":         "x86",
	"x64":         "x64",
	"x86_64":      "x64",
	"arm":         "arm",
	"aarch64":     "aarch64",
	"arm64":       "aarch64",
	"mips":        "mips",
	"mips64":      "mips64",
	"powerpc":     "powerpc",
	"powerpc64":   "powerpc64",
	"riscv32":     "riscv32",
	"riscv64":     "riscv64",
	"s390x":       "s390x",
	"sparc":       "sparc",
	"sparc64":     "sparc64",
	"loongarch64": "loongarch64",
	"m68k":        "m68k",
	"csky":        "csky",
	"hexagon":     "hexagon",
}

// Job is one artifact to place under the library root.
type Job struct {
	Library  string
	Artifact version.Artifact

	// Extract marks artifacts whose path contains "natives"; they are
	// unpacked into the instance natives directory after download.
	Extract bool
}

// SelectNative returns the native classifier for host, or nil when the
// library has none for this platform or its file targets another architecture.
func SelectNative(lib version.Library, host rules.Host) (string, *version.Artifact) {
	classifiers := lib.Downloads.Classifiers
	if len(classifiers) == 0 {
		return "", nil
	}

	var candidates []string
	switch host.OS {
	case rules.OSLinux:
		candidates = []string{NativesLinux}
	case rules.OSMac:
		candidates = []string{NativesOSX, NativesMacOS}
	case rules.OSWindows:
		candidates = []string{NativesWindows}
		switch host.Arch {
		case "x86_64":
			candidates = append(candidates, NativesWindows64)
		case "x86":
			candidates = append(candidates, NativesWindows32)
		}
	}

	for _, key := range candidates {
		a, ok := classifiers[key]
		if !ok || a == nil {
			continue
		}
		if ArchMismatch(a.Path, host) {
			slog.Debug("skipping native for other architecture", "library", lib.Name, "path", a.Path)
			return "", nil
		}
		return key, a
	}
	return "", nil
}

// ArchMismatch reports whether the file name of artifactPath carries an
// architecture token other than the host's.
func ArchMismatch(artifactPath string, host rules.Host) bool {
	hostArch := host.NormalizedArch()
	base := strings.TrimSuffix(path.Base(artifactPath), path.Ext(artifactPath))
	for _, tok := range strings.Split(base, "-") {
		arch, ok := archTokens[strings.ToLower(tok)]
		if ok && arch != hostArch {
			return true
		}
	}
	return false
}

func hasNatives(artifactPath string) bool {
	return strings.Contains(artifactPath, "natives")
}

// Resolve lists the artifacts host needs for m, in library order and
// without duplicate paths. An artifact path that would leave the library
// root is a Config error.
func Resolve(m *version.Metadata, host rules.Host, features rules.Features) ([]Job, error) {
	var jobs []Job
	seen := make(map[string]bool)

	add := func(lib version.Library, a *version.Artifact) error {
		if a == nil || a.Path == "" || seen[a.Path] {
			return nil
		}
		if err := checkArtifactPath(a.Path); err != nil {
			return apperr.New(apperr.Config, "library.resolve", fmt.Errorf("library %s: %w", lib.Name, err))
		}
		seen[a.Path] = true
		jobs = append(jobs, Job{Library: lib.Name, Artifact: *a, Extract: hasNatives(a.Path)})
		return nil
	}

	for _, lib := range m.Libraries {
		if !rules.Evaluate(lib.Rules, host, features) {
			slog.Debug("library not needed on this host", "library", lib.Name)
			continue
		}

		if a := lib.Downloads.Artifact; a != nil {
			if hasNatives(a.Path) && ArchMismatch(a.Path, host) {
				slog.Debug("skipping natives artifact for other architecture", "library", lib.Name, "path", a.Path)
			} else if err := add(lib, a); err != nil {
				return nil, err
			}
		}

		if _, native := SelectNative(lib, host); native != nil {
			if err := add(lib, native); err != nil {
				return nil, err
			}
		}
	}
	return jobs, nil
}

// checkArtifactPath rejects descriptor paths that are absolute or climb
// out of the library root.
func checkArtifactPath(artifactPath string) error {
	if strings.Contains(artifactPath, `\`) || !filepath.IsLocal(filepath.FromSlash(artifactPath)) {
		return fmt.Errorf("artifact path %q escapes the library root", artifactPath)
	}
	return nil
}

// Classpath returns the on-disk classpath entries for m: every resolved
// artifact whose file name does not contain "natives", then the client jar.
func Classpath(paths state.Paths, m *version.Metadata, host rules.Host, features rules.Features) ([]string, error) {
	jobs, err := Resolve(m, host, features)
	if err != nil {
		return nil, err
	}
	cp := make([]string, 0, len(jobs)+1)
	for _, job := range jobs {
		p := paths.Library(job.Artifact.Path)
		if strings.Contains(filepath.Base(p), "natives") {
			continue
		}
		cp = append(cp, p)
	}
	return append(cp, paths.ClientJar(m.ID)), nil
}
