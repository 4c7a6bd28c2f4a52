package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	Count   int
	Timeout time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Consume events as they are posted",
		Long: `Act as the host process: observe the tracking request signal and print
every event drained from the shared cache.

Events already cached when watch starts are printed first. Runs until
interrupted, until --count events were printed, or until --timeout.

Watch consumes what it prints: drained events are removed from the cache.
A drain is all or nothing, so with --count any events past the limit in
the final drained batch are removed without being printed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "stop after this many events (0 = unlimited); later events in the same drain are discarded")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "stop after this long (0 = no limit)")

	return cmd
}

// printingDelegate writes each event as it arrives and signals done once
// limit events were seen.
type printingDelegate struct {
	formatter *OutputFormatter

	mu    sync.Mutex
	seen  int
	limit int
	done  chan struct{}
}

func (d *printingDelegate) Process(_ context.Context, e event.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.limit > 0 && d.seen >= d.limit {
		return false
	}

	view := EventView{Name: e.Name, Parameters: e.Parameters}
	if d.formatter.Format == "json" {
		_ = json.NewEncoder(d.formatter.Writer).Encode(view)
	} else {
		fmt.Fprintf(d.formatter.Writer, "%s %s\n", e.ReceivedAt.Format(time.RFC3339), formatEvent(view))
	}

	d.seen++
	if d.limit > 0 && d.seen == d.limit {
		close(d.done)
	}
	return true
}

func runWatch(rootOpts *RootOptions, opts *WatchOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	r, err := openRelay(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	d := &printingDelegate{formatter: formatter, limit: opts.Count, done: make(chan struct{})}
	if _, err := r.Observer().Start(d); err != nil {
		return formatter.Error(ExitFailure, "start observer", err)
	}
	defer r.Observer().Stop()

	formatter.VerboseLog("watching %s on %s", r.Key(), r.Settings().SignalBackend)
	r.Observer().TrackCachedEvents(ctx)

	select {
	case <-d.done:
	case <-ctx.Done():
	}
	return nil
}
