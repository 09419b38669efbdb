package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
)

const (
	// FabricMetaURL is the Fabric meta API base.
	FabricMetaURL = "https://meta.fabricmc.net/v2"

	// QuiltMetaURL is the Quilt meta API base.
	QuiltMetaURL = "https://meta.quiltmc.org/v3"
)

// Profile is a loader launcher profile. It inherits from a vanilla version.
type Profile struct {
	ID           string            `json:"id"`
	InheritsFrom string            `json:"inheritsFrom"`
	MainClass    string            `json:"mainClass"`
	Arguments    version.Arguments `json:"arguments"`
	Libraries    []version.Library `json:"libraries"`
}

type loaderEntry struct {
	Loader struct {
		Version string `json:"version"`
		Stable  bool   `json:"stable"`
	} `json:"loader"`
}

// Client talks to the Fabric and Quilt meta services.
type Client struct {
	fetch       *fetch.Client
	paths       state.Paths
	maxAttempts int
	bases       map[Loader]string
}

// Option configures a Client.
type Option func(*Client)

// WithMetaURL overrides the meta API base of one loader.
func WithMetaURL(l Loader, base string) Option {
	return func(c *Client) {
		c.bases[l] = strings.TrimSuffix(base, "/")
	}
}

// WithMaxAttempts sets the download attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// NewClient creates a meta client writing profiles into paths.
func NewClient(fc *fetch.Client, paths state.Paths, opts ...Option) *Client {
	c := &Client{
		fetch:       fc,
		paths:       paths,
		maxAttempts: fetch.DefaultMaxAttempts,
		bases: map[Loader]string{
			Fabric: FabricMetaURL,
			Quilt:  QuiltMetaURL,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) base(l Loader) (string, error) {
	switch l {
	case Fabric, Quilt:
		return c.bases[l], nil
	case Forge, LiteLoader:
		return "", unsupported(l)
	default:
		return "", apperr.Errorf(apperr.Config, "loader", "no meta service for %s", l)
	}
}

// LatestLoader returns the newest stable loader build for gameVersion.
// Services without a stable flag fall back to the first non-prerelease build.
func (c *Client) LatestLoader(ctx context.Context, l Loader, gameVersion string) (string, error) {
	base, err := c.base(l)
	if err != nil {
		return "", err
	}

	var entries []loaderEntry
	endpoint := base + "/versions/loader/" + url.PathEscape(gameVersion)
	if err := c.fetch.GetJSON(ctx, endpoint, &entries, c.maxAttempts); err != nil {
		return "", fmt.Errorf("list %s loaders for %s: %w", l, gameVersion, err)
	}
	if len(entries) == 0 {
		return "", apperr.Errorf(apperr.NotFound, "loader.latest", "no %s loader for minecraft %s", l, gameVersion)
	}

	for _, e := range entries {
		if e.Loader.Stable {
			return e.Loader.Version, nil
		}
	}
	for _, e := range entries {
		if !strings.Contains(e.Loader.Version, "-") {
			return e.Loader.Version, nil
		}
	}
	return entries[0].Loader.Version, nil
}

// Install downloads the launcher profile for gameVersion and stores it as
// versions/<profile id>.json. An empty loaderVersion picks the latest
// stable build. Vanilla installs nothing and returns an empty id.
func (c *Client) Install(ctx context.Context, l Loader, gameVersion, loaderVersion string) (string, string, error) {
	if l == Vanilla {
		return "", "", nil
	}
	base, err := c.base(l)
	if err != nil {
		return "", "", err
	}

	if loaderVersion == "" {
		loaderVersion, err = c.LatestLoader(ctx, l, gameVersion)
		if err != nil {
			return "", "", err
		}
	}

	endpoint := fmt.Sprintf("%s/versions/loader/%s/%s/profile/json",
		base, url.PathEscape(gameVersion), url.PathEscape(loaderVersion))

	var raw json.RawMessage
	if err := c.fetch.GetJSON(ctx, endpoint, &raw, c.maxAttempts); err != nil {
		return "", "", fmt.Errorf("download %s profile: %w", l, err)
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", "", apperr.New(apperr.Config, "loader.install", fmt.Errorf("decode %s profile: %w", l, err))
	}
	if err := state.ValidateVersion(p.ID); err != nil {
		return "", "", apperr.New(apperr.Config, "loader.install", err)
	}
	if p.InheritsFrom != gameVersion {
		return "", "", apperr.Errorf(apperr.Config, "loader.install",
			"%s profile %s inherits from %s, expected %s", l, p.ID, p.InheritsFrom, gameVersion)
	}

	if err := state.AtomicWrite(c.paths.VersionJSON(p.ID), raw, 0644); err != nil {
		return "", "", fmt.Errorf("write %s profile: %w", l, err)
	}

	slog.Info("installed loader profile",
		"loader", l,
		"profile", p.ID,
		"loader_version", loaderVersion,
		"game_version", gameVersion)
	return p.ID, loaderVersion, nil
}

// LoadProfile reads versions/<id>.json as a loader profile.
func LoadProfile(paths state.Paths, id string) (*Profile, error) {
	if err := state.ValidateVersion(id); err != nil {
		return nil, apperr.New(apperr.Config, "loader.profile", err)
	}

	data, err := os.ReadFile(paths.VersionJSON(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Errorf(apperr.NotFound, "loader.profile", "loader profile %s not installed", id)
		}
		return nil, fmt.Errorf("read loader profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperr.New(apperr.Config, "loader.profile", fmt.Errorf("decode loader profile %s: %w", id, err))
	}
	return &p, nil
}

// Merge applies p over the vanilla metadata m. Loader libraries are
// prepended and replace vanilla entries for the same artifact, the main
// class is replaced and extra arguments are appended.
func Merge(m *version.Metadata, p *Profile) error {
	if p.InheritsFrom != "" && p.InheritsFrom != m.ID {
		return apperr.Errorf(apperr.Config, "loader.merge", "profile %s inherits from %s, not %s", p.ID, p.InheritsFrom, m.ID)
	}

	libs := make([]version.Library, 0, len(p.Libraries)+len(m.Libraries))
	seen := make(map[string]bool, len(p.Libraries))
	for _, lib := range p.Libraries {
		resolved, err := resolveLibrary(lib)
		if err != nil {
			return err
		}
		seen[artifactKey(lib.Name)] = true
		libs = append(libs, resolved)
	}
	for _, lib := range m.Libraries {
		if seen[artifactKey(lib.Name)] {
			slog.Debug("loader overrides vanilla library", "library", lib.Name)
			continue
		}
		libs = append(libs, lib)
	}
	m.Libraries = libs

	if p.MainClass != "" {
		m.MainClass = p.MainClass
	}

	if m.Arguments != nil {
		m.Arguments.Game = append(m.Arguments.Game, p.Arguments.Game...)
		m.Arguments.JVM = append(m.Arguments.JVM, p.Arguments.JVM...)
	} else if len(p.Arguments.Game)+len(p.Arguments.JVM) > 0 {
		slog.Warn("dropping loader arguments for legacy descriptor", "profile", p.ID)
	}

	slog.Debug("merged loader profile", "profile", p.ID, "libraries", len(m.Libraries), "main_class", m.MainClass)
	return nil
}

// resolveLibrary fills in download pointers for coordinate-only entries.
func resolveLibrary(lib version.Library) (version.Library, error) {
	if lib.Downloads.Artifact != nil {
		return lib, nil
	}
	if lib.URL == "" {
		return lib, apperr.Errorf(apperr.Config, "loader.merge", "library %s has neither downloads nor repository url", lib.Name)
	}

	u, path, err := MavenURL(lib.URL, lib.Name)
	if err != nil {
		return lib, err
	}
	lib.Downloads.Artifact = &version.Artifact{
		Path: path,
		SHA1: lib.SHA1,
		Size: lib.Size,
		URL:  u,
	}
	return lib, nil
}
