package api

import (
	"context"
	"net/http"
)

// ListRuns fetches all runs visible to the caller.
func (c *Client) ListRuns(ctx context.Context) ([]RunSummary, error) {
	var runs []RunSummary
	err := c.do(ctx, call{method: http.MethodGet, route: "/runs", out: &runs})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun fetches one run.
func (c *Client) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	var run RunSummary
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/runs/{id}",
		params: map[string]string{"id": id},
		out:    &run,
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// CreateRun submits a new run. The payload is passed through as the body.
func (c *Client) CreateRun(ctx context.Context, payload map[string]any) (*RunSummary, error) {
	var run RunSummary
	err := c.do(ctx, call{method: http.MethodPost, route: "/runs", body: payload, out: &run})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// CancelRun cancels a run.
func (c *Client) CancelRun(ctx context.Context, id string) (*RunSummary, error) {
	var run RunSummary
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/runs/{id}/cancel",
		params: map[string]string{"id": id},
		out:    &run,
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RecoverRun resubmits a failed run with optional overrides.
func (c *Client) RecoverRun(ctx context.Context, id string, opts RecoverOptions) (*RunSummary, error) {
	var run RunSummary
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/runs/{id}/recover",
		params: map[string]string{"id": id},
		body:   opts,
		out:    &run,
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}
