package samplesheet

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// LowCellThreshold is the expected_cells value under which a warning is raised.
const LowCellThreshold = 5000

var gcsPath = regexp.MustCompile(`^gs://.+`)

// Issue is one validation error or warning.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Sample  string `json:"sample,omitempty"`
}

// ValidationResult summarises a samplesheet check.
type ValidationResult struct {
	IsValid  bool    `json:"isValid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// CellSet records invalid cells as "row:key".
type CellSet map[string]struct{}

// Has reports whether the cell at row/key failed validation.
func (s CellSet) Has(row int, key string) bool {
	_, ok := s[cellKey(row, key)]
	return ok
}

func cellKey(row int, key string) string {
	return strconv.Itoa(row) + ":" + key
}

// ValidateRequired reports whether value is non-blank.
func ValidateRequired(value string) bool {
	return strings.TrimSpace(value) != ""
}

// ValidateGCSPath accepts empty values and gs:// URIs.
func ValidateGCSPath(value string) bool {
	if value == "" {
		return true
	}
	return gcsPath.MatchString(strings.TrimSpace(value))
}

// ValidateNumeric accepts empty values and positive integers.
func ValidateNumeric(value string) bool {
	if value == "" {
		return true
	}
	num, ok := parseNumber(value)
	if !ok {
		return false
	}
	return num == math.Trunc(num) && num > 0
}

func parseNumber(value string) (float64, bool) {
	num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}

// Validate checks rows against columns. For each cell the first failing
// rule wins: required, then gs:// for fastq columns, then positive integer
// for numeric columns.
func Validate(rows []Row, columns []Column) (ValidationResult, CellSet) {
	result := ValidationResult{Errors: []Issue{}, Warnings: []Issue{}}
	invalid := CellSet{}

	for i, row := range rows {
		sample := row["sample"]

		for _, col := range columns {
			value := row[col.Key]
			var message string

			switch {
			case col.Required && !ValidateRequired(value):
				message = fmt.Sprintf("%s is required.", col.Label)
			case strings.HasPrefix(col.Key, "fastq") && !ValidateGCSPath(value):
				message = fmt.Sprintf("%s must be a gs:// path.", col.Label)
			case col.Type == ColumnNumeric && !ValidateNumeric(value):
				message = fmt.Sprintf("%s must be a positive integer.", col.Label)
			default:
				continue
			}

			result.Errors = append(result.Errors, Issue{Field: col.Key, Message: message, Sample: sample})
			invalid[cellKey(i, col.Key)] = struct{}{}
		}

		if expected, ok := row["expected_cells"]; ok && expected != "" {
			if num, ok := parseNumber(expected); ok && num < LowCellThreshold {
				result.Warnings = append(result.Warnings, Issue{
					Field:   "expected_cells",
					Message: "Expected cells under 5000 may reduce sensitivity.",
					Sample:  sample,
				})
			}
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result, invalid
}

// ValidateText parses and validates samplesheet text in one step and
// returns the sample count alongside the result.
func ValidateText(text string, columns []Column) (ValidationResult, int, error) {
	rows, err := Parse(text, columns)
	if err != nil {
		return ValidationResult{}, 0, err
	}
	result, _ := Validate(rows, columns)
	return result, len(rows), nil
}
