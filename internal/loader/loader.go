// Package loader identifies mod loaders and merges Fabric and Quilt launcher
// profiles over vanilla version metadata.
package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/steviee/bread-launcher/internal/apperr"
)

// Loader is a mod-loader family.
type Loader string

const (
	Vanilla    Loader = "vanilla"
	Forge      Loader = "forge"
	LiteLoader Loader = "liteloader"
	Fabric     Loader = "fabric"
	Quilt      Loader = "quilt"
)

// All lists the recognized loaders.
var All = []Loader{Vanilla, Forge, LiteLoader, Fabric, Quilt}

// ErrUnsupported is returned for loaders that are recognized but cannot be installed.
var ErrUnsupported = errors.New("loader not supported")

// Parse maps a user string onto a Loader. An empty string is vanilla.
func Parse(s string) (Loader, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Vanilla, nil
	}
	for _, l := range All {
		if string(l) == s {
			return l, nil
		}
	}
	return "", apperr.Errorf(apperr.Config, "loader.parse", "unknown loader %q (valid: vanilla, forge, liteloader, fabric, quilt)", s)
}

func (l Loader) String() string {
	return string(l)
}

// Installable reports whether profiles for l can be fetched and merged.
func (l Loader) Installable() bool {
	return l == Vanilla || l == Fabric || l == Quilt
}

// unsupported wraps ErrUnsupported with a Config kind.
func unsupported(l Loader) error {
	return apperr.New(apperr.Config, "loader", fmt.Errorf("%s: %w", l, ErrUnsupported))
}

// MavenPath converts group:artifact:version[:classifier][@ext] into the
// repository-relative path group/as/path/artifact/version/artifact-version[-classifier].ext.
func MavenPath(coord string) (string, error) {
	ext := "jar"
	if at := strings.LastIndex(coord, "@"); at >= 0 {
		ext = coord[at+1:]
		coord = coord[:at]
	}

	parts := strings.Split(coord, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return "", apperr.Errorf(apperr.Config, "loader.maven", "invalid maven coordinate %q (expected group:artifact:version)", coord)
	}
	for _, p := range parts {
		if p == "" {
			return "", apperr.Errorf(apperr.Config, "loader.maven", "invalid maven coordinate %q", coord)
		}
	}

	group, artifact, ver := parts[0], parts[1], parts[2]
	file := artifact + "-" + ver
	if len(parts) == 4 {
		file += "-" + parts[3]
	}

	return strings.ReplaceAll(group, ".", "/") + "/" + artifact + "/" + ver + "/" + file + "." + ext, nil
}

// MavenURL joins a repository base with a coordinate path.
func MavenURL(base, coord string) (string, string, error) {
	path, err := MavenPath(coord)
	if err != nil {
		return "", "", err
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + path, path, nil
}

// artifactKey returns group:artifact[:classifier] of a coordinate, dropping the version.
func artifactKey(coord string) string {
	parts := strings.Split(coord, ":")
	if len(parts) < 3 {
		return coord
	}
	key := parts[0] + ":" + parts[1]
	if len(parts) > 3 {
		key += ":" + parts[3]
	}
	return key
}
