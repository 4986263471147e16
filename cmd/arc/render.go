package main

import (
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"

	"github.com/arcreactor/workspace/internal/api"
)

var strict = bluemonday.StrictPolicy()

// sanitize strips all markup from agent output. The policy escapes what it
// keeps, so entities are decoded back for the terminal.
func sanitize(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}

func printJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func printRuns(w io.Writer, runs []api.RunSummary) error {
	tw := newTable(w, "ID", "PIPELINE", "STATUS", "SAMPLES", "CREATED")
	for _, r := range runs {
		samples := "-"
		if r.SampleCount != nil {
			samples = strconv.Itoa(*r.SampleCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Pipeline, r.Status, samples, orDash(r.CreatedAt))
	}
	return tw.Flush()
}

func printRun(w io.Writer, r api.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	samples := "-"
	if r.SampleCount != nil {
		samples = strconv.Itoa(*r.SampleCount)
	}
	fmt.Fprintf(tw, "ID:\t%s\n", r.ID)
	fmt.Fprintf(tw, "Pipeline:\t%s %s\n", r.Pipeline, r.Version)
	fmt.Fprintf(tw, "Status:\t%s\n", r.Status)
	fmt.Fprintf(tw, "Samples:\t%s\n", samples)
	fmt.Fprintf(tw, "Created:\t%s\n", orDash(r.CreatedAt))
	fmt.Fprintf(tw, "Started:\t%s\n", orDash(r.StartedAt))
	fmt.Fprintf(tw, "Completed:\t%s\n", orDash(r.CompletedAt))
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
