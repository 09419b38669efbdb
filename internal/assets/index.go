// Package assets downloads asset indexes and their objects into the
// historic, legacy and modern on-disk layouts.
package assets

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/state"
)

const (
	// ResourcesURL is the object store base.
	ResourcesURL = "https://resources.download.minecraft.net"

	// HistoricID names the index whose keys are file paths under assets/.
	HistoricID = "pre-1.6"

	// LegacyID names the virtual index.
	LegacyID = "legacy"
)

// Layout is the on-disk placement scheme of an index's objects.
type Layout int

const (
	Modern Layout = iota
	Legacy
	Historic
)

func (l Layout) String() string {
	switch l {
	case Legacy:
		return "legacy"
	case Historic:
		return "historic"
	default:
		return "modern"
	}
}

// Object is one entry of an index.
type Object struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Index is a parsed asset index document.
type Index struct {
	Objects        map[string]Object `json:"objects"`
	Virtual        bool              `json:"virtual"`
	MapToResources bool              `json:"map_to_resources"`
}

// LoadIndex reads and parses an index file.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, apperr.New(apperr.Config, "assets.index", fmt.Errorf("decode %s: %w", path, err))
	}
	return &idx, nil
}

// Classify picks the layout for an index. The virtual flag wins over the id.
func Classify(id string, idx *Index) Layout {
	switch {
	case idx != nil && idx.Virtual:
		return Legacy
	case id == HistoricID:
		return Historic
	case id == LegacyID:
		return Legacy
	default:
		return Modern
	}
}

// ObjectPath returns where an object lands for layout.
func ObjectPath(paths state.Paths, layout Layout, name, hash string) (string, error) {
	if !validHash(hash) {
		return "", apperr.Errorf(apperr.Config, "assets.path", "asset %q has invalid hash %q", name, hash)
	}

	if layout == Historic {
		rel := filepath.FromSlash(name)
		if !filepath.IsLocal(rel) {
			return "", apperr.Errorf(apperr.Config, "assets.path", "asset name %q escapes the asset root", name)
		}
		return filepath.Join(paths.Assets(), rel), nil
	}

	root := paths.AssetObjects()
	if layout == Legacy {
		root = paths.AssetLegacy()
	}
	return filepath.Join(root, hash[:2], hash), nil
}

// validHash reports whether hash is a hex SHA-1 digest.
func validHash(hash string) bool {
	if len(hash) != 2*sha1.Size {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// ObjectURL returns <base>/<hash[0:2]>/<hash>.
func ObjectURL(base, hash string) string {
	return base + "/" + hash[:2] + "/" + hash
}
