// Package http provides the JSON API over the book.
//
// This file implements utilities for parsing and validating HTTP request
// data: JSON bodies, boolean flags, date ranges and CSV import options.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"mone/internal/core"
	"mone/internal/services"
)

// decodeJSON reads a single JSON document from the body. Unknown fields are
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// parseBool reads an optional boolean query parameter.
func parseBool(query url.Values, key string) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: must be true or false", key, v)
	}
	return b, nil
}

func parseInt(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, v)
	}
	return n, nil
}

// parseDateRange reads the optional from and to parameters. Missing bounds
// are returned as zero dates.
func parseDateRange(query url.Values) (from, to core.Date, err error) {
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		if from, err = core.ParseDate(v); err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("invalid from: %w", err)
		}
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		if to, err = core.ParseDate(v); err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("invalid to: %w", err)
		}
	}
	return from, to, nil
}

// parseImportRequest builds an import request from the query string. Options
// missing from the query fall back to defaults.
func parseImportRequest(query url.Values, defaults core.ImportOptions) (services.ImportRequest, error) {
	opts := defaults
	var err error

	for key, dst := range map[string]*int{
		"value_column":       &opts.ValueColumn,
		"date_column":        &opts.DateColumn,
		"description_column": &opts.DescriptionColumn,
		"skip_rows":          &opts.SkipRows,
	} {
		if *dst, err = parseInt(query, key, *dst); err != nil {
			return services.ImportRequest{}, err
		}
	}

	if v := query.Get("delimiter"); v != "" {
		r, size := utf8.DecodeRuneInString(v)
		if size != len(v) || r == utf8.RuneError {
			return services.ImportRequest{}, fmt.Errorf("invalid delimiter %q: must be a single character", v)
		}
		opts.Delimiter = r
	}
	if query.Has("thousands") {
		opts.Thousands = query.Get("thousands")
	}
	if v := query.Get("decimal"); v != "" {
		opts.Decimal = v
	}
	if v := strings.TrimSpace(query.Get("date_format")); v != "" {
		opts.DateFormat = v
	}

	var tags []string
	for _, tag := range query["tag"] {
		if tag = sanitizeInput(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return services.ImportRequest{
		Options:     opts,
		Account:     sanitizeInput(query.Get("account")),
		Counterpart: sanitizeInput(query.Get("counterpart")),
		Tags:        tags,
	}, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s))
}
