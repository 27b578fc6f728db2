// Package cli holds cobra command constructors shared by the isakit
// binaries.
package cli

import (
	"log/slog"

	"github.com/nishad/isakit/internal/config"
)

// Env carries what the root command resolves before a subcommand runs.
// Commands read it at run time, so the root may fill it in a
// PersistentPreRun hook.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
}

func (e *Env) config() *config.Config {
	if e == nil || e.Config == nil {
		return config.DefaultConfig()
	}
	return e.Config
}

func (e *Env) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
