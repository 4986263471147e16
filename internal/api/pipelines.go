package api

import (
	"context"
	"net/http"
)

// ListPipelines fetches the available pipelines.
func (c *Client) ListPipelines(ctx context.Context) ([]PipelineSummary, error) {
	var pipelines []PipelineSummary
	err := c.do(ctx, call{method: http.MethodGet, route: "/pipelines", out: &pipelines})
	if err != nil {
		return nil, err
	}
	return pipelines, nil
}

// GetPipeline fetches one pipeline by name. Names such as
// "nf-core/scrnaseq" are escaped as a single path segment.
func (c *Client) GetPipeline(ctx context.Context, name string) (*PipelineSummary, error) {
	var pipeline PipelineSummary
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/pipelines/{name}",
		params: map[string]string{"name": name},
		out:    &pipeline,
	})
	if err != nil {
		return nil, err
	}
	return &pipeline, nil
}

// PipelineIndex looks pipelines up by name.
type PipelineIndex map[string]PipelineSummary

// NewPipelineIndex indexes pipelines by name. Later duplicates win.
func NewPipelineIndex(pipelines []PipelineSummary) PipelineIndex {
	idx := make(PipelineIndex, len(pipelines))
	for _, p := range pipelines {
		idx[p.Name] = p
	}
	return idx
}

// Get returns the named pipeline.
func (idx PipelineIndex) Get(name string) (PipelineSummary, bool) {
	p, ok := idx[name]
	return p, ok
}
