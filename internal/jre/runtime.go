// Package jre provisions Java runtimes from Mojang's java-runtime index.
package jre

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/rules"
)

// IndexURL is the java-runtime index listing every component per platform.
const IndexURL = "https://launchermeta.mojang.com/v1/products/java-runtime/2ec0cc96c44e5a76b9c8b7c39df7210883d12871/all.json"

// macHome prefixes every runtime file in the mac-os manifests.
const macHome = "jre.bundle/Contents/Home/"

// Entry types in a runtime manifest.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
	TypeLink      = "link"
)

// Index maps platform key → component → candidate runtimes.
type Index map[string]map[string][]Runtime

// Runtime is one published build of a component.
type Runtime struct {
	Manifest Download `json:"manifest"`
	Version  struct {
		Name     string `json:"name"`
		Released string `json:"released"`
	} `json:"version"`
}

// Download locates a document or file.
type Download struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Manifest lists every file of one runtime build.
type Manifest struct {
	Files map[string]File `json:"files"`
}

// File is a manifest entry. Raw is nil for directories and links.
type File struct {
	Type       string `json:"type"`
	Executable bool   `json:"executable,omitempty"`
	Target     string `json:"target,omitempty"`
	Downloads  struct {
		Raw *Download `json:"raw,omitempty"`
	} `json:"downloads,omitempty"`
}

// PlatformKey returns the index key for host.
func PlatformKey(host rules.Host) (string, error) {
	arch := host.NormalizedArch()
	switch host.OS {
	case rules.OSLinux:
		switch arch {
		case "x64":
			return "linux", nil
		case "x86":
			return "linux-i386", nil
		}
	case rules.OSMac:
		switch arch {
		case "x64":
			return "mac-os", nil
		case "aarch64":
			return "mac-os-arm64", nil
		}
	case rules.OSWindows:
		switch arch {
		case "x64":
			return "windows-x64", nil
		case "x86":
			return "windows-x86", nil
		case "aarch64":
			return "windows-arm64", nil
		}
	}
	return "", apperr.Errorf(apperr.NotFound, "jre.platform", "no java runtime published for %s/%s", host.OS, host.Arch)
}

// Select returns the first build of component published for platform.
func (idx Index) Select(platform, component string) (Runtime, error) {
	builds := idx[platform][component]
	if len(builds) == 0 {
		return Runtime{}, apperr.Errorf(apperr.NotFound, "jre.select", "component %s not published for %s", component, platform)
	}
	return builds[0], nil
}

// decodeManifest parses a runtime manifest.
func decodeManifest(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read runtime manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperr.New(apperr.Config, "jre.manifest", fmt.Errorf("decode %s: %w", p, err))
	}
	return &m, nil
}

// entry is a manifest file relocated under the runtime home.
type entry struct {
	rel  string
	file File
}

// plan relocates manifest entries for osName, sorted by path. On macOS only
// entries under the bundle's Contents/Home are kept, with the prefix
// stripped. Entries or link targets that escape the home are rejected.
func plan(m *Manifest, osName string) ([]entry, error) {
	entries := make([]entry, 0, len(m.Files))
	for name, f := range m.Files {
		rel := name
		if osName == rules.OSMac {
			if !strings.HasPrefix(name, macHome) {
				continue
			}
			rel = strings.TrimPrefix(name, macHome)
		}
		rel = strings.TrimSuffix(rel, "/")
		if rel == "" {
			continue
		}
		if !localPath(rel) {
			return nil, apperr.Errorf(apperr.Config, "jre.plan", "runtime entry %q escapes the runtime home", name)
		}

		switch f.Type {
		case TypeFile:
			if f.Downloads.Raw == nil {
				return nil, apperr.Errorf(apperr.Config, "jre.plan", "runtime file %q has no download", name)
			}
		case TypeLink:
			if f.Target == "" || !localPath(path.Join(path.Dir(rel), f.Target)) {
				return nil, apperr.Errorf(apperr.Config, "jre.plan", "runtime link %q points outside the runtime home", name)
			}
		case TypeDirectory:
		default:
			continue
		}
		entries = append(entries, entry{rel: rel, file: f})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	return entries, nil
}

// localPath reports whether the slash-separated p stays inside its root.
func localPath(p string) bool {
	if p == "" || path.IsAbs(p) || strings.Contains(p, "\\") {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
