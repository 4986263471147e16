package samplesheet

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
)

// ErrNotText is returned by LoadFile for binary input.
var ErrNotText = errors.New("samplesheet is not a text file")

// EncodingError reports a samplesheet that is not UTF-8.
type EncodingError struct {
	Path    string
	Charset string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: samplesheet must be UTF-8, detected %s", e.Path, e.Charset)
}

// LoadFile reads a samplesheet from disk after checking that it is UTF-8
// text. It returns the raw text so callers can store it unchanged.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read samplesheet: %w", err)
	}

	mtype := mimetype.Detect(data)
	if !isText(mtype) {
		return "", fmt.Errorf("%s (%s): %w", path, mtype.String(), ErrNotText)
	}

	if !utf8.Valid(data) {
		charset := "unknown"
		if best, err := chardet.NewTextDetector().DetectBest(data); err == nil {
			charset = best.Charset
		}
		return "", &EncodingError{Path: path, Charset: charset}
	}

	return string(data), nil
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
