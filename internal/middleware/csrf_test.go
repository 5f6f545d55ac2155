package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/gemblog/internal/model"
)

// TestCSRFMiddleware_SafeMethodSetsCookie は安全なメソッドでトークンCookieが設定されることを検証する。
func TestCSRFMiddleware_SafeMethodSetsCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieSecure: true})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/articles", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			found = c
		}
	}
	if found == nil || len(found.Value) != 64 {
		t.Fatalf("csrf cookie = %+v", found)
	}
	if found.HttpOnly || !found.Secure {
		t.Errorf("cookie flags HttpOnly=%v Secure=%v", found.HttpOnly, found.Secure)
	}
}

// TestCSRFMiddleware_StateChanging は状態変更メソッドのトークン検証を検証する。
func TestCSRFMiddleware_StateChanging(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   int
	}{
		{"match", "tok", "tok", http.StatusOK},
		{"missing cookie", "", "tok", http.StatusForbidden},
		{"missing header", "tok", "", http.StatusForbidden},
		{"mismatch", "tok", "other", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())
			req := httptest.NewRequest(http.MethodPost, "/api/admin/drafts", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusForbidden {
				if body := decodeError(t, w); body.Code != model.ErrCodeCSRFFailed {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFFailed)
				}
			}
		})
	}
}

// TestCSRFTokenHandler は既存トークンの再利用と新規生成を検証する。
func TestCSRFTokenHandler(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["token"] != "existing" {
		t.Errorf("token = %q, want %q", body["token"], "existing")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("existing token must not be reissued")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	json.NewDecoder(w.Body).Decode(&body)
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != body["token"] {
		t.Errorf("cookie/token mismatch: %+v / %q", cookies, body["token"])
	}
}

// TestCSRFConfig_CookieMaxAge はトークンCookieの有効期間の既定値と上書きを検証する。
func TestCSRFConfig_CookieMaxAge(t *testing.T) {
	tests := []struct {
		name   string
		maxAge int
		want   int
	}{
		{"default", 0, defaultCSRFMaxAge},
		{"session max age", 3600, 3600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CSRFConfig{CookieDomain: "example.com", MaxAge: tt.maxAge}.cookie("tok")
			if c.MaxAge != tt.want {
				t.Errorf("MaxAge = %d, want %d", c.MaxAge, tt.want)
			}
			if c.Domain != "example.com" || c.SameSite != http.SameSiteLaxMode || c.HttpOnly {
				t.Errorf("cookie = %+v", c)
			}
		})
	}
}
