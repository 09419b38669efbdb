package version

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/manifest"
	"github.com/steviee/bread-launcher/internal/state"
)

// DownloadDescriptor fetches versions/<id>.json for v, verified against the
// manifest's SHA-1. It makes a single attempt.
func DownloadDescriptor(ctx context.Context, client *fetch.Client, paths state.Paths, v manifest.Version) error {
	if err := state.ValidateVersion(v.ID); err != nil {
		return apperr.New(apperr.Config, "version.descriptor", err)
	}
	if v.URL == "" {
		return apperr.Errorf(apperr.Config, "version.descriptor", "version %s has no descriptor url", v.ID)
	}

	slog.Debug("downloading version descriptor", "id", v.ID, "url", v.URL)
	if err := client.Fetch(ctx, paths.Versions(), v.ID+".json", v.URL, v.SHA1, 1); err != nil {
		return fmt.Errorf("download descriptor %s: %w", v.ID, err)
	}
	return nil
}

// Parse reads versions/<id>.json and binds the result to instanceDir.
func Parse(paths state.Paths, instanceDir, id string) (*Metadata, error) {
	if err := state.ValidateVersion(id); err != nil {
		return nil, apperr.New(apperr.Config, "version.parse", err)
	}

	path := paths.VersionJSON(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Errorf(apperr.NotFound, "version.parse", "descriptor %s not downloaded", id)
		}
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.ID != id {
		slog.Warn("descriptor id differs from file name", "file", id, "id", m.ID)
	}

	m.Dir = instanceDir
	slog.Debug("parsed version descriptor",
		"id", m.ID,
		"schema", m.Schema(),
		"libraries", len(m.Libraries),
		"java", m.Java().MajorVersion)
	return m, nil
}

// DownloadClient fetches versions/<id>.jar.
func DownloadClient(ctx context.Context, client *fetch.Client, paths state.Paths, m *Metadata, maxAttempts int) error {
	if m.Downloads.Client == nil || m.Downloads.Client.URL == "" {
		return apperr.Errorf(apperr.Config, "version.client", "descriptor %s has no client download", m.ID)
	}

	c := m.Downloads.Client
	if err := client.Fetch(ctx, paths.Versions(), m.ID+".jar", c.URL, c.SHA1, maxAttempts); err != nil {
		return fmt.Errorf("download client jar %s: %w", m.ID, err)
	}
	return nil
}
