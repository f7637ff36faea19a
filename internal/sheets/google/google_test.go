package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"pocketbook/internal/budget"
	"pocketbook/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet-1"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet-1", CredentialsFile: "/nonexistent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuoteTab(t *testing.T) {
	tests := map[string]string{
		"2025-03 Budget": "'2025-03 Budget'",
		"Bob's":          "'Bob''s'",
	}
	for in, want := range tests {
		if got := quoteTab(in); got != want {
			t.Errorf("quoteTab(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteRollup_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if _, err := c.WriteRollup(context.Background(), budget.Rollup{}); err == nil {
		t.Fatal("expected error with nil service")
	}
}

// fakeSheets records the calls the client makes against the Sheets REST API.
type fakeSheets struct {
	mu      sync.Mutex
	calls   []string
	written string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, "get")
		json.NewEncoder(w).Encode(map[string]any{
			"sheets": []any{map[string]any{"properties": map[string]any{"title": "Other"}}},
		})
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		f.calls = append(f.calls, "addSheet")
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "2025-03 Budget") {
			http.Error(w, `{"error":{"code":400,"message":"bad tab"}}`, http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
	case strings.HasSuffix(r.URL.Path, ":clear"):
		f.calls = append(f.calls, "clear")
		io.WriteString(w, `{}`)
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update")
		body, _ := io.ReadAll(r.Body)
		f.written = string(body)
		io.WriteString(w, `{"updatedRange":"'2025-03 Budget'!A1:E12"}`)
	default:
		http.NotFound(w, r)
	}
}

func TestWriteRollup_CreatesTabAndWrites(t *testing.T) {
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	c, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-1",
		SheetBase:     "Budget",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithoutAuthentication(),
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r := budget.Rollup{
		Month:         core.Month{Year: 2025, Month: time.March},
		Pool:          core.Money{Cents: 500000},
		ReadyToAssign: core.Money{Cents: 120000},
	}
	ref, err := c.WriteRollup(context.Background(), r)
	if err != nil {
		t.Fatalf("WriteRollup() error = %v", err)
	}
	if ref != "'2025-03 Budget'!A1:E12" {
		t.Errorf("ref = %q", ref)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	want := []string{"get", "addSheet", "clear", "update"}
	if strings.Join(fake.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", fake.calls, want)
	}
	if !strings.Contains(fake.written, "Ready to Assign") || !strings.Contains(fake.written, "1200") {
		t.Errorf("unexpected body: %s", fake.written)
	}
}
