// Package cli implements the relayctl commands.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay"
	"github.com/randalmurphal/eventrelay/pkg/eventrelay/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Overrides applied on top of the environment and config file.
	AppGroupID     string
	ContainersRoot string
	StoreBackend   string
	SignalBackend  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for relayctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "relayctl - inspect and drive an event relay",
		Long: `Post, inspect, drain and watch the analytics event cache shared
between an extension process and its host.

Settings come from EVENTRELAY_* environment variables, then --config,
then the flags below.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML or JSON settings file")
	cmd.PersistentFlags().StringVar(&opts.AppGroupID, "app-group", "", "shared container identifier")
	cmd.PersistentFlags().StringVar(&opts.ContainersRoot, "root", "", "directory holding shared containers")
	cmd.PersistentFlags().StringVar(&opts.StoreBackend, "store", "", "store backend (file|sqlite|redis|memory)")
	cmd.PersistentFlags().StringVar(&opts.SignalBackend, "signal", "", "signal backend (file|redis|local)")

	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// Settings resolves the effective relay settings. Each layer only changes
// what it sets: the environment, then keys present in --config, then
// flags.
func (o *RootOptions) Settings() (config.Settings, error) {
	s, err := config.LoadSettings()
	if err != nil {
		return config.Settings{}, err
	}
	if o.ConfigFile != "" {
		c, err := config.FromFile(o.ConfigFile)
		if err != nil {
			return config.Settings{}, err
		}
		s = config.SettingsFromConfig(s, c)
	}

	next := s
	if o.AppGroupID != "" {
		next.AppGroupID = o.AppGroupID
	}
	if o.ContainersRoot != "" {
		next.ContainersRoot = o.ContainersRoot
	}
	if o.StoreBackend != "" {
		next.StoreBackend = o.StoreBackend
	}
	if o.SignalBackend != "" {
		next.SignalBackend = o.SignalBackend
	}
	return next.Rebase(s), nil
}

// openRelay builds a relay for a single command run.
func openRelay(opts *RootOptions, cmd *cobra.Command) (*eventrelay.Relay, error) {
	settings, err := opts.Settings()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load settings", err)
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	r, err := eventrelay.New(settings, eventrelay.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open relay", err)
	}
	return r, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
