// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"alice/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes the request body into v. Trailing data after the first
// JSON value is rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

// ParseMonthParams extracts the month from query parameters. It accepts
// month=YYYY-MM or year=YYYY&month=M and returns fallback when neither is set.
func ParseMonthParams(query url.Values, fallback core.MonthToken) (core.MonthToken, error) {
	monthParam := strings.TrimSpace(query.Get("month"))
	yearParam := strings.TrimSpace(query.Get("year"))

	if monthParam == "" && yearParam == "" {
		return fallback, nil
	}
	if strings.Contains(monthParam, "-") {
		return core.ParseMonth(monthParam)
	}

	out := fallback
	if yearParam != "" {
		y, err := strconv.Atoi(yearParam)
		if err != nil || y < 1 {
			return core.MonthToken{}, fmt.Errorf("%w: year %q", core.ErrInvalidMonth, yearParam)
		}
		out.Year = y
	}
	if monthParam != "" {
		m, err := strconv.Atoi(monthParam)
		if err != nil || m < 1 || m > 12 {
			return core.MonthToken{}, fmt.Errorf("%w: month %q", core.ErrInvalidMonth, monthParam)
		}
		out.Month = time.Month(m)
	}
	return out, nil
}

// ParseLimit reads a positive "limit" query parameter, capped at max.
// Missing or invalid values give def.
func ParseLimit(query url.Values, def, max int) int {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return min(n, max)
}

// ParseTransactionDate accepts an RFC 3339 timestamp or a YYYY-MM-DD day,
// the latter taken at midnight in loc. An empty string gives the zero time.
func ParseTransactionDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
