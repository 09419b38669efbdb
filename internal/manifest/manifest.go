// Package manifest mirrors the upstream version manifest on disk and serves
// the grouped version list.
package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/steviee/bread-launcher/internal/apperr"
)

// Release types.
const (
	TypeRelease  = "release"
	TypeSnapshot = "snapshot"
	TypeOldBeta  = "old_beta"
	TypeOldAlpha = "old_alpha"

	// TypeAll selects every type in Filter.
	TypeAll = "all"

	// LatestID resolves to the newest entry of a type in Find.
	LatestID = "latest"
)

// Types lists the release types in display order.
var Types = []string{TypeRelease, TypeSnapshot, TypeOldBeta, TypeOldAlpha}

// Manifest is the upstream version_manifest_v2.json document.
type Manifest struct {
	Latest   Latest    `json:"latest"`
	Versions []Version `json:"versions"`
}

// Latest holds the newest release and snapshot ids.
type Latest struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// Version is a single selectable game version.
type Version struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	Time            string `json:"time"`
	ReleaseTime     string `json:"releaseTime"`
	SHA1            string `json:"sha1"`
	ComplianceLevel int    `json:"complianceLevel"`
}

// Grouped bins versions by release type, each bin in manifest order.
type Grouped struct {
	Release  []Version
	Snapshot []Version
	Beta     []Version
	Alpha    []Version
}

// Bin returns the versions of one release type.
func (g Grouped) Bin(releaseType string) ([]Version, bool) {
	switch releaseType {
	case TypeRelease:
		return g.Release, true
	case TypeSnapshot:
		return g.Snapshot, true
	case TypeOldBeta:
		return g.Beta, true
	case TypeOldAlpha:
		return g.Alpha, true
	default:
		return nil, false
	}
}

// Len returns the number of grouped versions.
func (g Grouped) Len() int {
	return len(g.Release) + len(g.Snapshot) + len(g.Beta) + len(g.Alpha)
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperr.New(apperr.Config, "manifest.parse", fmt.Errorf("decode manifest: %w", err))
	}
	if len(m.Versions) == 0 {
		return nil, apperr.Errorf(apperr.Config, "manifest.parse", "manifest lists no versions")
	}
	return &m, nil
}

// Group bins m's versions. Unknown types are logged and skipped.
func Group(m *Manifest) Grouped {
	var g Grouped
	for _, v := range m.Versions {
		switch v.Type {
		case TypeRelease:
			g.Release = append(g.Release, v)
		case TypeSnapshot:
			g.Snapshot = append(g.Snapshot, v)
		case TypeOldBeta:
			g.Beta = append(g.Beta, v)
		case TypeOldAlpha:
			g.Alpha = append(g.Alpha, v)
		default:
			slog.Warn("skipping version with unknown type", "id", v.ID, "type", v.Type)
		}
	}
	return g
}

// Filter filters versions by type and applies a limit.
// Valid types are the release types or "all".
// If limit is 0 or negative, all matching versions are returned.
func Filter(versions []Version, versionType string, limit int) []Version {
	filtered := make([]Version, 0)

	for _, v := range versions {
		if versionType != TypeAll && v.Type != versionType {
			continue
		}

		filtered = append(filtered, v)

		if limit > 0 && len(filtered) >= limit {
			break
		}
	}

	return filtered
}
