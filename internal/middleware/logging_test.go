package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockStatusRecorder struct {
	codes []int
}

func (m *mockStatusRecorder) RecordHTTPStatus(code int) {
	m.codes = append(m.codes, code)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestLoggingMiddleware_Levels はステータスに応じてログレベルが変わることを検証する。
func TestLoggingMiddleware_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		rec := &mockStatusRecorder{}
		handler := NewLoggingMiddleware(newTestLogger(&buf), rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/articles", nil))

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("log is not JSON: %v", err)
		}
		if entry["level"] != tt.level {
			t.Errorf("status %d: level = %v, want %s", tt.status, entry["level"], tt.level)
		}
		if entry["path"] != "/api/articles" || entry["method"] != "GET" {
			t.Errorf("entry = %v", entry)
		}
		if len(rec.codes) != 1 || rec.codes[0] != tt.status {
			t.Errorf("recorded = %v, want [%d]", rec.codes, tt.status)
		}
	}
}

// TestLoggingMiddleware_AdminID は内側のセッションミドルウェアで判明した管理者IDがログに出ることを検証する。
func TestLoggingMiddleware_AdminID(t *testing.T) {
	var buf bytes.Buffer
	chain := NewLoggingMiddleware(newTestLogger(&buf), nil)(
		NewSessionMiddleware(validChecker("admin-9"))(okHandler()),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	chain.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log is not JSON: %v", err)
	}
	if entry["admin_id"] != "admin-9" {
		t.Errorf("admin_id = %v, want admin-9", entry["admin_id"])
	}
}
