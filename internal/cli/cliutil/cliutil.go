// Package cliutil holds what the command groups share: the JSON envelope,
// the global output flags and the wired app carried on the command context.
package cliutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/steviee/bread-launcher/internal/app"
)

// Output is the JSON envelope every command prints in --json mode.
type Output struct {
	Status  string         `json:"status"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type appKey struct{}

// WithApp returns ctx carrying a.
func WithApp(ctx context.Context, a *app.App) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

// AppFrom returns the app stored by WithApp.
func AppFrom(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("command has no context")
	}
	a, ok := ctx.Value(appKey{}).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("launcher is not initialized")
	}
	return a, nil
}

// OpenApp returns the app after restoring its saved state.
func OpenApp(cmd *cobra.Command) (*app.App, error) {
	a, err := AppFrom(cmd.Context())
	if err != nil {
		return nil, err
	}
	if err := a.Open(); err != nil {
		return nil, err
	}
	return a, nil
}

// IsJSONMode reports whether --json (or BREAD_JSON) is set.
func IsJSONMode() bool {
	return viper.GetBool("json")
}

// IsQuiet reports whether --quiet is set.
func IsQuiet() bool {
	return viper.GetBool("quiet")
}

// WriteJSON prints a success envelope.
func WriteJSON(w io.Writer, message string, data map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Output{Status: "success", Data: data, Message: message}); err != nil {
		return fmt.Errorf("encode JSON output: %w", err)
	}
	return nil
}

// Fail prints an error envelope in JSON mode and returns err.
func Fail(w io.Writer, err error) error {
	if IsJSONMode() {
		_ = json.NewEncoder(w).Encode(Output{Status: "error", Error: err.Error()})
	}
	return err
}

// RequireName validates that exactly one name is provided.
func RequireName(what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("%s name is required\nUsage: %s\n\nRun '%s --help' for more information", what, cmd.UseLine(), cmd.CommandPath())
		}
		if len(args) > 1 {
			return fmt.Errorf("only one %s name allowed, got: %v\nUsage: %s\n\nRun '%s --help' for more information", what, args, cmd.UseLine(), cmd.CommandPath())
		}
		return nil
	}
}
