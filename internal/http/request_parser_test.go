package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"alice/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	fallback := core.MonthToken{Year: 2025, Month: time.March}
	tests := []struct {
		name    string
		query   url.Values
		want    core.MonthToken
		wantErr bool
	}{
		{"no parameters", url.Values{}, fallback, false},
		{"month token", url.Values{"month": {"2024-12"}}, core.MonthToken{Year: 2024, Month: time.December}, false},
		{"year and month", url.Values{"year": {"2024"}, "month": {"6"}}, core.MonthToken{Year: 2024, Month: time.June}, false},
		{"only month", url.Values{"month": {"1"}}, core.MonthToken{Year: 2025, Month: time.January}, false},
		{"only year", url.Values{"year": {"2023"}}, core.MonthToken{Year: 2023, Month: time.March}, false},
		{"month out of range", url.Values{"month": {"13"}}, core.MonthToken{}, true},
		{"bad token", url.Values{"month": {"2024-13"}}, core.MonthToken{}, true},
		{"bad year", url.Values{"year": {"abc"}}, core.MonthToken{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParams(tt.query, fallback)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidMonth) {
					t.Fatalf("expected ErrInvalidMonth, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseMonthParams() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 20},
		{"5", 5},
		{"500", 100},
		{"0", 20},
		{"-3", 20},
		{"abc", 20},
	}
	for _, tt := range tests {
		if got := ParseLimit(url.Values{"limit": {tt.value}}, 20, 100); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestParseTransactionDate(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	got, err := ParseTransactionDate("2025-03-01", rome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2025, time.March, 1, 0, 0, 0, 0, rome)) {
		t.Errorf("day form = %v", got)
	}

	got, err = ParseTransactionDate("2025-03-01T10:30:00Z", rome)
	if err != nil || !got.Equal(time.Date(2025, time.March, 1, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp form = %v, %v", got, err)
	}

	if got, err := ParseTransactionDate("  ", rome); err != nil || !got.IsZero() {
		t.Errorf("empty input = %v, %v", got, err)
	}
	if _, err := ParseTransactionDate("01/03/2025", rome); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid object", `{"email":"a@b.com"}`, false},
		{"empty body", ``, true},
		{"malformed", `{"email":`, true},
		{"trailing data", `{"email":"a@b.com"} {"x":1}`, true},
		{"too large", `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(tt.body))
			var req loginRequest
			err := DecodeJSON(httptest.NewRecorder(), r, &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && req.Email != "a@b.com" {
				t.Errorf("Email = %q", req.Email)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Groceries  ", "Groceries"},
		{"Rent\x00\x07", "Rent"},
		{"line\nbreak", "line\nbreak"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
