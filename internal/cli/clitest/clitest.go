// Package clitest runs command groups against a launcher wired to a local
// TLS upstream.
package clitest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/stretchr/testify/require"
)

// Descriptor is the version document served for 1.20.4.
const Descriptor = `{"id":"1.20.4","type":"release","mainClass":"net.minecraft.client.main.Main","minimumLauncherVersion":21,"arguments":{"game":[],"jvm":[]}}`

// Upstream is a fake piston-meta serving a small manifest.
type Upstream struct {
	Server *httptest.Server

	// Hits counts manifest downloads.
	Hits atomic.Int32

	// Broken makes every request fail with 503.
	Broken atomic.Bool
}

// ManifestURL is where the manifest is served.
func (u *Upstream) ManifestURL() string {
	return u.Server.URL + "/mc/game/version_manifest_v2.json"
}

func (u *Upstream) manifest() string {
	return fmt.Sprintf(`{
  "latest": {"release": "1.20.4", "snapshot": "24w14a"},
  "versions": [
    {"id": "24w14a", "type": "snapshot", "url": "%[1]s/v1/24w14a.json", "releaseTime": "2024-04-03T12:00:00+00:00"},
    {"id": "1.20.4", "type": "release", "url": "%[1]s/v1/1.20.4.json", "sha1": "%[2]s", "releaseTime": "2023-12-07T12:00:00+00:00"},
    {"id": "1.20.3", "type": "release", "url": "%[1]s/v1/1.20.3.json", "releaseTime": "2023-12-05T12:00:00+00:00"},
    {"id": "b1.7.3", "type": "old_beta", "url": "%[1]s/v1/b1.7.3.json", "releaseTime": "2011-07-08T00:00:00+00:00"}
  ]
}`, u.Server.URL, fetch.SumBytes([]byte(Descriptor)))
}

// NewUpstream starts the fake upstream.
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()

	u := &Upstream{}
	u.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u.Broken.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/mc/game/version_manifest_v2.json":
			u.Hits.Add(1)
			_, _ = w.Write([]byte(u.manifest()))
		case "/v1/1.20.4.json":
			_, _ = w.Write([]byte(Descriptor))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.Server.Close)
	return u
}

// NewApp wires a launcher rooted in a temp directory against u.
func NewApp(t *testing.T, u *Upstream) *app.App {
	t.Helper()

	cfg := state.DefaultConfig()
	cfg.Launcher.DataDir = t.TempDir()
	cfg.Manifest.URL = u.ManifestURL()
	cfg.Downloads.MaxAttempts = 1
	cfg.Downloads.Backoff = time.Millisecond
	cfg.Logging.File = false

	a, err := app.New(cfg, "1.2.3", app.WithHTTPClient(u.Server.Client()))
	require.NoError(t, err)
	return a
}

// SetJSON turns on --json for the rest of the test.
func SetJSON(t *testing.T) {
	t.Helper()
	viper.Set("json", true)
	t.Cleanup(viper.Reset)
}

// Execute runs cmd with args and a on its context, returning everything it
// printed.
func Execute(a *app.App, cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(cliutil.WithApp(context.Background(), a))
	return out.String(), err
}
