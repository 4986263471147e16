package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arcreactor/workspace/internal/api"
	"github.com/arcreactor/workspace/internal/events"
)

func newWatchCommand(a *app) *cobra.Command {
	var noStream bool
	cmd := &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Follow a run until it finishes",
		Long: "Follow a run's status over the server-sent event stream. When the " +
			"stream is unavailable or drops before the run finishes, fall back " +
			"to polling.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			runID := args[0]

			if !noStream {
				var finished atomic.Bool
				stream := a.eventsClient().Subscribe(ctx, runID, events.Handlers{
					OnStatus: func(ev events.StatusEvent) { printStatus(out, ev) },
					OnDone: func(ev events.StatusEvent) {
						finished.Store(true)
						fmt.Fprintf(out, "done: %s\n", ev.Status)
					},
				})
				<-stream.Done()

				switch err := stream.Err(); {
				case finished.Load() || ctx.Err() != nil:
					return nil
				case api.IsNotFound(err):
					return err
				case err != nil:
					a.logger.Debug("event stream failed", zap.Error(err))
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "event stream unavailable, polling")
			}

			var last api.RunStatus
			return a.apiClient().WatchRun(ctx, runID, func(run api.RunSummary) {
				if run.Status != last {
					last = run.Status
					fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), run.Status)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&noStream, "poll", false, "poll instead of streaming")
	return cmd
}

func printStatus(w io.Writer, ev events.StatusEvent) {
	stamp := ev.Timestamp
	if t, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err == nil {
		stamp = t.Local().Format(time.TimeOnly)
	}
	if ev.Progress != nil {
		fmt.Fprintf(w, "%s  %s  %.0f%%\n", stamp, ev.Status, *ev.Progress*100)
		return
	}
	fmt.Fprintf(w, "%s  %s\n", stamp, ev.Status)
}
