package jre

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/progress"
	"github.com/steviee/bread-launcher/internal/rules"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
	"golang.org/x/sync/errgroup"
)

// markerFile is written into the runtime home once every file is in place.
const markerFile = ".installed"

// Provisioner installs runtimes under paths.Java().
type Provisioner struct {
	client      *fetch.Client
	paths       state.Paths
	host        rules.Host
	indexURL    string
	workers     int
	maxAttempts int
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithIndexURL overrides the java-runtime index.
func WithIndexURL(u string) Option {
	return func(p *Provisioner) {
		if u != "" {
			p.indexURL = u
		}
	}
}

// WithWorkers bounds parallel file downloads.
func WithWorkers(n int) Option {
	return func(p *Provisioner) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxAttempts sets the per-file attempt budget.
func WithMaxAttempts(n int) Option {
	return func(p *Provisioner) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// NewProvisioner creates a runtime provisioner for host.
func NewProvisioner(client *fetch.Client, paths state.Paths, host rules.Host, opts ...Option) *Provisioner {
	p := &Provisioner{
		client:      client,
		paths:       paths,
		host:        host,
		indexURL:    IndexURL,
		workers:     runtime.NumCPU(),
		maxAttempts: fetch.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExecutablePath returns where the java binary of major lives.
func (p *Provisioner) ExecutablePath(major int) string {
	return p.paths.JavaExecutable(major)
}

// Installed reports whether a complete runtime for major is on disk.
func (p *Provisioner) Installed(major int) bool {
	if !executable(p.ExecutablePath(major)) {
		return false
	}
	_, err := os.Stat(filepath.Join(p.paths.JavaHome(major), markerFile))
	return err == nil
}

// Ensure makes the runtime req names available and returns its executable.
// It returns false without an error when the bus was cancelled.
func (p *Provisioner) Ensure(ctx context.Context, req version.JavaVersion, bus *progress.Bus) (string, bool, error) {
	if req.MajorVersion <= 0 {
		req.MajorVersion = version.DefaultJavaMajor
	}
	if req.Component == "" {
		req.Component = version.DefaultJavaComponent
	}
	if err := state.ValidateVersion(req.Component); err != nil {
		return "", false, apperr.New(apperr.Config, "jre.ensure", fmt.Errorf("runtime component: %w", err))
	}

	exe := p.ExecutablePath(req.MajorVersion)
	if p.Installed(req.MajorVersion) {
		slog.Debug("java runtime present", "major", req.MajorVersion, "path", exe)
		return exe, true, nil
	}

	if bus.CheckStop() {
		return "", false, nil
	}

	platform, err := PlatformKey(p.host)
	if err != nil {
		bus.Errored(fmt.Sprintf("No Java runtime for this platform: %v", err))
		return "", false, err
	}

	bus.Info(fmt.Sprintf("Downloading Java %d (%s)", req.MajorVersion, req.Component))
	slog.Info("provisioning java runtime", "component", req.Component, "major", req.MajorVersion, "platform", platform)

	var idx Index
	if err := p.client.GetJSON(ctx, p.indexURL, &idx, p.maxAttempts); err != nil {
		bus.Errored(fmt.Sprintf("Failed to fetch the Java runtime index: %v", err))
		return "", false, fmt.Errorf("java runtime index: %w", err)
	}

	build, err := idx.Select(platform, req.Component)
	if err != nil {
		bus.Errored(fmt.Sprintf("Java runtime unavailable: %v", err))
		return "", false, err
	}

	manifestName := fmt.Sprintf("%s.%s.json", req.Component, platform)
	if err := p.client.Fetch(ctx, p.paths.Java(), manifestName, build.Manifest.URL, build.Manifest.SHA1, p.maxAttempts); err != nil {
		bus.Errored(fmt.Sprintf("Failed to fetch the Java runtime manifest: %v", err))
		return "", false, fmt.Errorf("java runtime manifest: %w", err)
	}

	m, err := decodeManifest(filepath.Join(p.paths.Java(), manifestName))
	if err != nil {
		return "", false, err
	}

	entries, err := plan(m, p.host.OS)
	if err != nil {
		return "", false, err
	}

	home := p.paths.JavaHome(req.MajorVersion)
	ok, err := p.install(ctx, home, entries, bus)
	if !ok || err != nil {
		return "", false, err
	}

	if !executable(exe) {
		err := apperr.Errorf(apperr.NotFound, "jre.ensure", "runtime %s installed without %s", req.Component, exe)
		bus.Errored(err.Error())
		return "", false, err
	}

	if err := state.AtomicWrite(filepath.Join(home, markerFile), []byte(build.Version.Name+"\n"), 0644); err != nil {
		return "", false, err
	}

	bus.Info(fmt.Sprintf("Java %d ready", req.MajorVersion))
	return exe, true, nil
}

func (p *Provisioner) install(ctx context.Context, home string, entries []entry, bus *progress.Bus) (bool, error) {
	var files, links []entry
	for _, e := range entries {
		switch e.file.Type {
		case TypeDirectory:
			if err := state.EnsureDir(filepath.Join(home, filepath.FromSlash(e.rel))); err != nil {
				return false, err
			}
		case TypeFile:
			files = append(files, e)
		case TypeLink:
			links = append(links, e)
		}
	}

	bus.SetTotal(uint64(len(files)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var stopped atomic.Bool
	for _, e := range files {
		if bus.CheckStop() {
			stopped.Store(true)
			break
		}

		e := e
		g.Go(func() error {
			if bus.Cancelled() {
				stopped.Store(true)
				return nil
			}
			if err := p.fetchFile(gctx, home, e, bus); err != nil {
				return err
			}
			bus.Advance()
			return nil
		})
	}

	err := g.Wait()
	if stopped.Load() || bus.CheckStop() {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if runtime.GOOS != "windows" {
		for _, e := range links {
			if err := link(home, e); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func (p *Provisioner) fetchFile(ctx context.Context, home string, e entry, bus *progress.Bus) error {
	target := filepath.Join(home, filepath.FromSlash(e.rel))
	raw := e.file.Downloads.Raw

	bus.Downloading(e.rel)
	if err := p.client.Fetch(ctx, filepath.Dir(target), filepath.Base(target), raw.URL, raw.SHA1, p.maxAttempts); err != nil {
		bus.Errored(fmt.Sprintf("Failed to download %s: %v", e.rel, err))
		return fmt.Errorf("runtime file %s: %w", e.rel, err)
	}

	if e.file.Executable {
		if err := os.Chmod(target, 0755); err != nil {
			return fmt.Errorf("chmod %s: %w", target, err)
		}
	}
	return nil
}

// link creates the symlink e describes unless something already sits there.
func link(home string, e entry) error {
	target := filepath.Join(home, filepath.FromSlash(e.rel))
	if _, err := os.Lstat(target); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", target, err)
	}

	if err := state.EnsureDir(filepath.Dir(target)); err != nil {
		return err
	}
	if err := os.Symlink(filepath.FromSlash(e.file.Target), target); err != nil {
		return fmt.Errorf("link %s: %w", e.rel, err)
	}
	return nil
}

// executable reports whether path is a regular file the current OS would run.
func executable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return strings.HasSuffix(strings.ToLower(path), ".exe")
	}
	return info.Mode().Perm()&0111 != 0
}
