package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"pocketbook/internal/core"
)

func TestParseMonthParam(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"default current month", "", "2024-03", false},
		{"explicit month", "month=2023-11", "2023-11", false},
		{"full date keeps month", "month=2023-11-20", "2023-11", false},
		{"garbage", "month=nope", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseMonthParam(q, now)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidMonth) {
					t.Fatalf("error = %v, want ErrInvalidMonth", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("month = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseIntParam(t *testing.T) {
	q, _ := url.ParseQuery("months=12&bad=x&neg=-1")

	if n, err := ParseIntParam(q, "months", 6); err != nil || n != 12 {
		t.Errorf("months = %d, %v", n, err)
	}
	if n, err := ParseIntParam(q, "missing", 6); err != nil || n != 6 {
		t.Errorf("missing = %d, %v", n, err)
	}
	for _, key := range []string{"bad", "neg"} {
		if _, err := ParseIntParam(q, key, 0); !errors.Is(err, errBadRequest) {
			t.Errorf("%s error = %v, want errBadRequest", key, err)
		}
	}
}

func TestParseBoolParam(t *testing.T) {
	q, _ := url.ParseQuery("a=true&b=1&c=no&d=YES")
	for key, want := range map[string]bool{"a": true, "b": true, "c": false, "d": true, "e": false} {
		if got := ParseBoolParam(q, key); got != want {
			t.Errorf("ParseBoolParam(%s) = %v, want %v", key, got, want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Memo   string     `json:"memo"`
		Amount core.Money `json:"amount"`
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"memo":"hi","amount":"$12.50"}`, 0},
		{"empty body", ``, http.StatusBadRequest},
		{"unknown field", `{"memo":"hi","extra":1}`, http.StatusBadRequest},
		{"syntax error", `{"memo":`, http.StatusBadRequest},
		{"trailing object", `{"memo":"a"}{"memo":"b"}`, http.StatusBadRequest},
		{"bad amount", `{"amount":"twelve"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var dst payload
			err := decodeJSON(w, r, &dst)
			if tt.wantStatus == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Memo != "hi" || dst.Amount.Cents != 1250 {
					t.Errorf("decoded = %+v", dst)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if got := statusFor(err); got != tt.wantStatus {
				t.Errorf("statusFor(%v) = %d, want %d", err, got, tt.wantStatus)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  normal text  ", "normal text"},
		{"text\x00with\x01control\x02chars", "textwithcontrolchars"},
		{"line1\nline2\ttab", "line1\nline2\ttab"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.expected {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
