package api

import (
	"context"
	"net/http"
)

// ListTasks fetches the tasks of a run.
func (c *Client) ListTasks(ctx context.Context, runID string) ([]Task, error) {
	var tasks []Task
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/runs/{id}/tasks",
		params: map[string]string{"id": runID},
		out:    &tasks,
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// TaskSummary fetches task counts for a run.
func (c *Client) TaskSummary(ctx context.Context, runID string) (*TaskSummary, error) {
	var summary TaskSummary
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/runs/{id}/tasks/summary",
		params: map[string]string{"id": runID},
		out:    &summary,
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
