package api

import (
	"strings"
	"time"
)

// All disables a status or pipeline filter.
const All = "all"

// RunFilters narrows a run list. Empty fields match everything.
type RunFilters struct {
	Status   string
	Pipeline string
	Search   string
	From     string
	To       string
}

// Pagination describes one page of a filtered run list.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	TotalItems int `json:"totalItems"`
}

// DefaultPageSize is used when Paginate is given a non-positive size.
const DefaultPageSize = 10

// FilterRuns applies f to runs, keeping order. A date bound excludes runs
// without a parsable createdAt. Unparsable bounds are ignored.
func FilterRuns(runs []RunSummary, f RunFilters) []RunSummary {
	term := strings.ToLower(f.Search)
	from, hasFrom := parseTime(f.From)
	to, hasTo := parseTime(f.To)

	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		if f.Status != "" && f.Status != All && string(run.Status) != f.Status {
			continue
		}
		if f.Pipeline != "" && f.Pipeline != All && run.Pipeline != f.Pipeline {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(run.ID), term) &&
			!strings.Contains(strings.ToLower(run.Pipeline), term) {
			continue
		}
		if hasFrom || hasTo {
			created, ok := parseTime(run.CreatedAt)
			if !ok {
				continue
			}
			if hasFrom && created.Before(from) {
				continue
			}
			if hasTo && created.After(to) {
				continue
			}
		}
		out = append(out, run)
	}
	return out
}

// Paginate returns the requested 1-based page. TotalPages is at least 1.
func Paginate(runs []RunSummary, page, pageSize int) ([]RunSummary, Pagination) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	totalPages := (len(runs) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	p := Pagination{Page: page, PageSize: pageSize, TotalPages: totalPages, TotalItems: len(runs)}

	start := (page - 1) * pageSize
	if start >= len(runs) {
		return []RunSummary{}, p
	}
	end := min(start+pageSize, len(runs))
	return runs[start:end], p
}

// RefetchInterval is how often a run list should be refreshed: 30s before
// the first load, 10s while any run is active, and 0 (stop) otherwise.
func RefetchInterval(runs []RunSummary, loaded bool) time.Duration {
	if !loaded {
		return 30 * time.Second
	}
	for _, run := range runs {
		if IsActiveStatus(run.Status) {
			return 10 * time.Second
		}
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339, a zone-less timestamp (read as UTC) or a
// bare date (UTC midnight).
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
