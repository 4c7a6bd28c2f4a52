package cli

import (
	"github.com/spf13/cobra"
)

// DrainOptions holds flags for the drain command.
type DrainOptions struct {
	Clear bool
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DrainOptions{}

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Remove and print all cached events",
		Long: `Atomically read and empty the shared cache, printing what was removed.

With --clear the events are discarded without printing them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "discard events instead of printing them")

	return cmd
}

func runDrain(rootOpts *RootOptions, opts *DrainOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	r, err := openRelay(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	if opts.Clear {
		if err := r.Store().Clear(cmd.Context()); err != nil {
			return formatter.Error(ExitFailure, "clear events", err)
		}
		return formatter.Success(EventsResult{Store: r.Key().String(), Events: []EventView{}})
	}

	list, err := r.Store().Drain(cmd.Context())
	if err != nil {
		return formatter.Error(ExitFailure, "drain events", err)
	}
	return formatter.Success(EventsResult{
		Store:  r.Key().String(),
		Count:  len(list),
		Events: viewsOf(list),
	})
}
