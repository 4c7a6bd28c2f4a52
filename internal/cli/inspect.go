package cli

import (
	"github.com/spf13/cobra"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "inspect",
		Short:         "Show cached events without removing them",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, cmd)
		},
	}
}

func runInspect(rootOpts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	r, err := openRelay(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	list, err := r.Store().Read(cmd.Context())
	if err != nil {
		return formatter.Error(ExitFailure, "read events", err)
	}
	return formatter.Success(EventsResult{
		Store:  r.Key().String(),
		Count:  len(list),
		Events: viewsOf(list),
	})
}
