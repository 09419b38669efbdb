package launch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/assets"
	"github.com/steviee/bread-launcher/internal/instance"
	"github.com/steviee/bread-launcher/internal/library"
	"github.com/steviee/bread-launcher/internal/rules"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
)

const (
	// Brand is reported through -Dminecraft.launcher.brand.
	Brand = "bread-launcher"

	// DefaultMemoryMB is the heap used when Options.MemoryMB is unset.
	DefaultMemoryMB = 2048
)

var (
	ErrJavaMissing      = errors.New("java executable missing")
	ErrClientJarMissing = errors.New("client jar missing")
	ErrNativesMissing   = errors.New("natives directory missing")
)

// Options tunes a launch.
type Options struct {
	JavaPath        string
	MemoryMB        int
	LauncherVersion string
	Features        rules.Features

	// Stdout and Stderr default to the launcher's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Command is a fully composed JVM invocation.
type Command struct {
	Path      string
	Dir       string
	JVMArgs   []string
	MainClass string
	GameArgs  []string

	stdout io.Writer
	stderr io.Writer
}

// Args returns the argv after the executable: JVM args, main class, game args.
func (c *Command) Args() []string {
	args := make([]string, 0, len(c.JVMArgs)+1+len(c.GameArgs))
	args = append(args, c.JVMArgs...)
	args = append(args, c.MainClass)
	return append(args, c.GameArgs...)
}

func (c *Command) String() string {
	return c.Path + " " + strings.Join(c.Args(), " ")
}

// Compose builds the command that runs meta inside inst as acc. The runtime
// executable, client jar and natives directory must already exist.
func Compose(paths state.Paths, meta *version.Metadata, inst *instance.Instance, opts Options, acc Account, host rules.Host) (*Command, error) {
	if opts.MemoryMB <= 0 {
		opts.MemoryMB = DefaultMemoryMB
	}
	if opts.LauncherVersion == "" {
		opts.LauncherVersion = "dev"
	}

	if err := mustExist(opts.JavaPath, false, ErrJavaMissing); err != nil {
		return nil, err
	}
	clientJar := paths.ClientJar(meta.ID)
	if err := mustExist(clientJar, false, ErrClientJarMissing); err != nil {
		return nil, err
	}
	nativesDir := paths.Natives(inst.Dir)
	if err := mustExist(nativesDir, true, ErrNativesMissing); err != nil {
		return nil, err
	}

	entries, err := library.Classpath(paths, meta, host, opts.Features)
	if err != nil {
		return nil, err
	}
	classpath := strings.Join(entries, classpathSeparator(host))

	assetsDir := paths.Assets()
	if meta.AssetIndex.ID == assets.LegacyID {
		assetsDir = paths.AssetLegacy()
	}

	vars := map[string]string{
		"natives_directory":   nativesDir,
		"launcher_name":       Brand,
		"launcher_version":    opts.LauncherVersion,
		"classpath":           classpath,
		"classpath_separator": classpathSeparator(host),
		"library_directory":   paths.Libraries(),
		"version_name":        meta.ID,
		"version_type":        versionType(opts.LauncherVersion),
		"game_directory":      inst.Dir,
		"assets_root":         assetsDir,
		"game_assets":         assetsDir,
		"assets_index_name":   meta.AssetIndex.ID,
		"auth_player_name":    acc.Name,
		"auth_uuid":           acc.UUID,
		"auth_access_token":   acc.Token,
		"auth_session":        acc.Token,
		"user_type":           acc.userType(),
		"user_properties":     "{}",
	}

	jvm := []string{
		"-Xms" + strconv.Itoa(opts.MemoryMB) + "M",
		"-Xmx" + strconv.Itoa(opts.MemoryMB) + "M",
		"-Xss1M",
		"-Dminecraft.launcher.brand=" + Brand,
		"-Dminecraft.launcher.version=" + opts.LauncherVersion,
		"-Djava.library.path=" + nativesDir,
		"-cp", classpath,
	}
	if meta.Arguments != nil {
		jvm = append(jvm, extraJVMArgs(meta.Arguments.JVM, host, opts.Features, vars)...)
	}

	game := []string{
		"--assetIndex", meta.AssetIndex.ID,
		"--gameDir", inst.Dir,
		"--assetsDir", assetsDir,
		"--username", acc.Name,
	}
	if meta.Schema() == version.SchemaModern {
		game = append(game, "--userType", acc.userType())
	}
	game = append(game,
		"--userProperties", "{}",
		"--uuid", acc.UUID,
		"--accessToken", acc.Token,
		"--version", meta.ID,
		"--versionType", versionType(opts.LauncherVersion),
	)
	if meta.Arguments != nil {
		game = append(game, extraGameArgs(meta.Arguments.Game, host, vars)...)
	}

	return &Command{
		Path:      opts.JavaPath,
		Dir:       inst.Dir,
		JVMArgs:   jvm,
		MainClass: meta.MainClass,
		GameArgs:  game,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
	}, nil
}

func mustExist(path string, dir bool, sentinel error) error {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() == dir {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("unexpected file type")
	}
	return apperr.New(apperr.NotFound, "launch.compose", fmt.Errorf("%w: %s: %v", sentinel, path, err))
}

func classpathSeparator(host rules.Host) string {
	if host.OS == rules.OSWindows {
		return ";"
	}
	return ":"
}

func versionType(launcherVersion string) string {
	return Brand + " " + launcherVersion
}

func substitute(s string, vars map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "${"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// fixedJVMPrefixes are already emitted by Compose.
var fixedJVMPrefixes = []string{
	"-Djava.library.path=",
	"-Dminecraft.launcher.brand=",
	"-Dminecraft.launcher.version=",
	"-Xss",
}

// extraJVMArgs evaluates structured JVM arguments, dropping those that
// duplicate the fixed prefix.
func extraJVMArgs(args []version.Argument, host rules.Host, features rules.Features, vars map[string]string) []string {
	var out []string
	skipNext := false
	for _, a := range args {
		if !rules.Evaluate(a.Rules, host, features) {
			continue
		}
		for _, v := range a.Values {
			if skipNext {
				skipNext = false
				continue
			}
			if v == "-cp" || v == "-classpath" || v == "--class-path" {
				skipNext = true
				continue
			}
			if v == "${classpath}" || hasAnyPrefix(v, fixedJVMPrefixes) {
				continue
			}
			out = append(out, substitute(v, vars))
		}
	}
	return out
}

// knownGameFlags are the vanilla game arguments; Compose writes the ones it
// needs itself.
var knownGameFlags = map[string]bool{
	"--username":       true,
	"--version":        true,
	"--gameDir":        true,
	"--assetsDir":      true,
	"--assetIndex":     true,
	"--uuid":           true,
	"--accessToken":    true,
	"--clientId":       true,
	"--xuid":           true,
	"--userType":       true,
	"--versionType":    true,
	"--userProperties": true,
	"--session":        true,
}

// extraGameArgs keeps structured game arguments that only loaders add.
// Feature-guarded entries are skipped.
func extraGameArgs(args []version.Argument, host rules.Host, vars map[string]string) []string {
	var flat []string
	for _, a := range args {
		if guardedByFeature(a.Rules) || !rules.Evaluate(a.Rules, host, nil) {
			continue
		}
		flat = append(flat, a.Values...)
	}

	var out []string
	for i := 0; i < len(flat); i++ {
		v := flat[i]
		if knownGameFlags[v] {
			if i+1 < len(flat) && !strings.HasPrefix(flat[i+1], "--") {
				i++
			}
			continue
		}
		out = append(out, substitute(v, vars))
	}
	return out
}

func guardedByFeature(rs []rules.Rule) bool {
	for _, r := range rs {
		if len(r.Features) > 0 {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
