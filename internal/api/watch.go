package api

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WatchRun polls a run until it reaches a terminal status, calling fn with
// every successful fetch. Polling runs every 5s until the first success and
// every 10s after (see Options). Fetch errors are logged and retried, except
// a 404 which ends the watch.
func (c *Client) WatchRun(ctx context.Context, id string, fn func(RunSummary)) error {
	interval := c.initialPoll
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		run, err := c.GetRun(ctx, id)
		switch {
		case err == nil:
			interval = c.poll
			fn(*run)
			if IsTerminalStatus(run.Status) {
				return nil
			}
		case IsNotFound(err):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			c.logger.Warn("run poll failed", zap.String("run_id", id), zap.Error(err))
		}

		timer.Reset(interval)
	}
}
