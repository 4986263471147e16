package samplesheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one samplesheet line keyed by column key.
type Row map[string]string

// DefaultRow returns a row holding each column's default value.
func DefaultRow(columns []Column) Row {
	row := make(Row, len(columns))
	for _, col := range columns {
		row[col.Key] = col.Default
	}
	return row
}

// Parse reads samplesheet CSV text into rows. Cells are trimmed and blank
// lines skipped. When any cell of the first line names a column key
// (case-insensitively) the line is treated as a header and cells are mapped
// by name; otherwise cells are mapped by position. Empty input yields a
// single default row.
func Parse(text string, columns []Column) ([]Row, error) {
	if strings.TrimSpace(text) == "" {
		return []Row{DefaultRow(columns)}, nil
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse samplesheet: %w", err)
		}
		if isBlank(record) {
			continue
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return []Row{DefaultRow(columns)}, nil
	}

	keys, hasHeader := headerKeys(records[0], columns)
	if hasHeader {
		records = records[1:]
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		row := DefaultRow(columns)
		for i, value := range record {
			if i >= len(keys) || keys[i] == "" {
				continue
			}
			row[keys[i]] = value
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return []Row{DefaultRow(columns)}, nil
	}
	return rows, nil
}

// headerKeys maps each cell of first to a column key. The bool reports
// whether first looks like a header at all.
func headerKeys(first []string, columns []Column) ([]string, bool) {
	byLower := make(map[string]string, len(columns))
	for _, col := range columns {
		byLower[strings.ToLower(col.Key)] = col.Key
	}

	keys := make([]string, len(first))
	matched := false
	for i, cell := range first {
		if key, ok := byLower[strings.ToLower(cell)]; ok {
			keys[i] = key
			matched = true
		}
	}
	if matched {
		return keys, true
	}

	positional := make([]string, len(columns))
	for i, col := range columns {
		positional[i] = col.Key
	}
	return positional, false
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Serialize renders rows as CSV with a header of column keys.
func Serialize(rows []Row, columns []Column) string {
	var b strings.Builder

	for i, col := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(col.Key)
	}
	b.WriteByte('\n')

	for r, row := range rows {
		if r > 0 {
			b.WriteByte('\n')
		}
		for i, col := range columns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(row[col.Key]))
		}
	}

	return strings.TrimSpace(b.String())
}

func quote(value string) string {
	if !strings.ContainsAny(value, ",\"\n") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
