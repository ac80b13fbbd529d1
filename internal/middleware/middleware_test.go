package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/service"
)

func newAuth(t *testing.T) *service.AuthService {
	t.Helper()
	return service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
}

func token(t *testing.T, auth *service.AuthService, id int64, typ service.TokenType) string {
	t.Helper()
	tok, err := auth.GenerateToken(id, typ)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func TestRoleMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newAuth(t)
	userTok := token(t, auth, 42, service.TokenTypeUser)
	adminTok := token(t, auth, 1, service.TokenTypeAdmin)

	r := gin.New()
	ok := func(c *gin.Context) {
		if GetClaims(c) == nil {
			t.Error("claims missing in handler")
		}
		c.Status(http.StatusNoContent)
	}
	r.GET("/user", RequireUser(auth), ok)
	r.GET("/admin", RequireAdmin(auth), ok)
	r.GET("/ws", RequireUserWS(auth), ok)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing token", "/user", "", http.StatusUnauthorized},
		{"garbage token", "/user", "Bearer nope", http.StatusUnauthorized},
		{"user on user route", "/user", "Bearer " + userTok, http.StatusNoContent},
		{"admin on user route", "/user", "Bearer " + adminTok, http.StatusForbidden},
		{"user on admin route", "/admin", "Bearer " + userTok, http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + adminTok, http.StatusNoContent},
		{"admin via query", "/admin?token=" + adminTok, "", http.StatusNoContent},
		{"ws via query", "/ws?token=" + userTok, "", http.StatusNoContent},
		{"ws ignores header", "/ws", "Bearer " + userTok, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
		})
	}
}

func TestRateLimiterAllow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.allow("user:1") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.allow("user:1") {
		t.Fatal("fourth request within the interval allowed")
	}
	if !rl.allow("user:2") {
		t.Fatal("other visitor throttled")
	}

	now = now.Add(time.Minute)
	if !rl.allow("user:1") {
		t.Fatal("bucket not refilled after one interval")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 1, time.Minute)
	rl.now = func() time.Time { return now }

	rl.allow("ip:10.0.0.1")
	now = now.Add(4 * time.Minute)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.visitors) != 0 {
		t.Fatalf("visitors = %d, want 0", len(rl.visitors))
	}
}

func TestRateLimiterMiddlewareKeysByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth := newAuth(t)
	rl := NewRateLimiter(ctx, 1, time.Hour)
	r := gin.New()
	r.GET("/x", RequireUser(auth), rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(tok string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	a := token(t, auth, 1, service.TokenTypeUser)
	b := token(t, auth, 2, service.TokenTypeUser)
	if send(a) != http.StatusOK || send(b) != http.StatusOK {
		t.Fatal("first request per user should pass")
	}
	if got := send(a); got != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", got)
	}
}
