// Package instance keeps the group → name → instance map and the UUID-keyed
// directories that back it.
package instance

import (
	"errors"
	"time"

	"github.com/steviee/bread-launcher/internal/loader"
)

// Ungrouped is the bucket for instances created without a group.
const Ungrouped = "ungrouped"

var (
	// ErrNotFound is returned when no instance exists under a (group, name) key.
	ErrNotFound = errors.New("instance not found")

	// ErrBusy is returned when an instance is already being launched or removed.
	ErrBusy = errors.New("instance is busy")
)

// Instance is one provisioned installation of a game version.
type Instance struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Group         string        `json:"group"`
	VersionID     string        `json:"version"`
	ReleaseType   string        `json:"release_type"`
	Loader        loader.Loader `json:"loader"`
	LoaderVersion string        `json:"loader_version,omitempty"`
	ProfileID     string        `json:"profile_id,omitempty"`
	Memory        string        `json:"memory,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	LastPlayed    time.Time     `json:"last_played,omitempty"`

	// Dir is the instance directory. It is derived from ID on import.
	Dir string `json:"-"`
}

// LaunchVersion is the descriptor id the launcher prepares: the loader
// profile when there is one, the game version otherwise.
func (i *Instance) LaunchVersion() string {
	if i.ProfileID != "" {
		return i.ProfileID
	}
	return i.VersionID
}

// Snapshot is the serializable form of the instance map.
type Snapshot map[string]map[string]Instance

// NormalizeGroup maps the empty group onto Ungrouped.
func NormalizeGroup(group string) string {
	if group == "" {
		return Ungrouped
	}
	return group
}
