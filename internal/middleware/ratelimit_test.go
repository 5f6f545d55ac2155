package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/gemblog/internal/model"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func testLimiter(t *testing.T, general, login int) *RateLimiter {
	t.Helper()
	cfg := RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(general) / 60.0),
		GeneralBurst:    general,
		LoginRate:       rate.Limit(float64(login) / 60.0),
		LoginBurst:      login,
		CleanupInterval: time.Hour,
	}
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

// TestDefaultRateLimiterConfig は既定値が管理API 120/分、ログイン 10/分であることを検証する。
func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.GeneralBurst != 120 || cfg.LoginBurst != 10 {
		t.Errorf("bursts = %d/%d, want 120/10", cfg.GeneralBurst, cfg.LoginBurst)
	}
	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
}

// TestGeneralMiddleware_LimitsPerAdmin は管理者ごとに独立して制限されることを検証する。
func TestGeneralMiddleware_LimitsPerAdmin(t *testing.T) {
	rl := testLimiter(t, 2, 1)
	handler := rl.GeneralMiddleware()(okHandler())

	do := func(adminID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/articles", nil)
		req = req.WithContext(ContextWithAdminID(req.Context(), adminID))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := do("admin-a"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
	w := do("admin-a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q, want %q", w.Header().Get("Retry-After"), "30")
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}

	if w := do("admin-b"); w.Code != http.StatusOK {
		t.Errorf("other admin status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", rl.GeneralLimiterCount())
	}
}

// TestGeneralMiddleware_RequiresAdmin は管理者IDのないリクエストを401にすることを検証する。
func TestGeneralMiddleware_RequiresAdmin(t *testing.T) {
	rl := testLimiter(t, 2, 1)
	w := httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// TestLoginMiddleware_LimitsPerIP はログインがIPアドレスごとに制限されることを検証する。
func TestLoginMiddleware_LimitsPerIP(t *testing.T) {
	rl := testLimiter(t, 10, 2)
	handler := rl.LoginMiddleware()(okHandler())

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// 同じIPの別ポートは同じキーになる
	if do("10.0.0.1:1000") != 200 || do("10.0.0.1:2000") != 200 {
		t.Fatal("first two logins should pass")
	}
	if got := do("10.0.0.1:3000"); got != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", got)
	}
	if got := do("10.0.0.2:1000"); got != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", got)
	}
	if rl.LoginLimiterCount() != 2 {
		t.Errorf("LoginLimiterCount() = %d, want 2", rl.LoginLimiterCount())
	}
}

// TestRateLimiter_Cleanup は古いエントリが削除されることを検証する。
func TestRateLimiter_Cleanup(t *testing.T) {
	rl := testLimiter(t, 10, 10)
	rl.general.get("admin-a")
	rl.login.get("10.0.0.1")

	rl.general.limiters["admin-a"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("GeneralLimiterCount() = %d, want 0", rl.GeneralLimiterCount())
	}
	if rl.LoginLimiterCount() != 1 {
		t.Errorf("LoginLimiterCount() = %d, want 1", rl.LoginLimiterCount())
	}
	rl.Stop()
}
