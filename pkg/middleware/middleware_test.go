package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohdghattas/mt4-online-server/internal/auth"
	"github.com/mohdghattas/mt4-online-server/internal/config"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/test", handlers...)
	return r
}

func get(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(10)
	assert.Equal(t, 1, limiter.burst)
	r := newRouter(limiter.Handler())

	assert.Equal(t, http.StatusOK, get(r, "/test", nil).Code)
	w := get(r, "/test", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestRateLimiterBurst(t *testing.T) {
	limiter := NewRateLimiter(120)
	assert.Equal(t, 12, limiter.burst)
	r := newRouter(limiter.Handler())

	for i := 0; i < 12; i++ {
		require.Equal(t, http.StatusOK, get(r, "/test", nil).Code, i)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/test", nil).Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newRouter(NewRateLimiter(0).Handler())
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, get(r, "/test", nil).Code)
	}
}

func TestRateLimiterPrune(t *testing.T) {
	limiter := NewRateLimiter(60)
	limiter.getLimiter("10.0.0.1")
	limiter.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	limiter.getLimiter("10.0.0.2")

	limiter.prune(time.Minute)
	assert.NotContains(t, limiter.visitors, "10.0.0.1")
	assert.Contains(t, limiter.visitors, "10.0.0.2")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.Cleanup(ctx, time.Millisecond, time.Minute)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Cleanup did not stop on cancel")
	}
}

func TestJWTAuth(t *testing.T) {
	const secret = "jwt-secret"
	tokens := auth.NewService(config.AuthConfig{JWTSecret: secret, APIKey: "dash", APISecret: "pw"})
	r := newRouter(JWTAuth(tokens), func(c *gin.Context) {
		assert.Equal(t, "dash", c.GetString("clientID"))
	})
	valid := signed(t, secret, jwt.MapClaims{"client_id": "dash", "exp": time.Now().Add(time.Hour).Unix()})

	assert.Equal(t, http.StatusOK, get(r, "/test", map[string]string{"Authorization": "Bearer " + valid}).Code)
	assert.Equal(t, http.StatusOK, get(r, "/test?token="+valid, nil).Code)

	issued, err := tokens.GenerateToken(auth.Credentials{APIKey: "dash", APISecret: "pw"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(r, "/test", map[string]string{"Authorization": "Bearer " + issued.Token}).Code)

	cases := map[string]map[string]string{
		"missing":      nil,
		"malformed":    {"Authorization": valid},
		"wrong scheme": {"Authorization": "Basic " + valid},
		"wrong secret": {"Authorization": "Bearer " + signed(t, "other", jwt.MapClaims{"client_id": "dash", "exp": time.Now().Add(time.Hour).Unix()})},
		"expired":      {"Authorization": "Bearer " + signed(t, secret, jwt.MapClaims{"client_id": "dash", "exp": time.Now().Add(-time.Hour).Unix()})},
		"no client":    {"Authorization": "Bearer " + signed(t, secret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})},
		"no expiry":    {"Authorization": "Bearer " + signed(t, secret, jwt.MapClaims{"client_id": "dash"})},
	}
	for name, headers := range cases {
		assert.Equal(t, http.StatusUnauthorized, get(r, "/test", headers).Code, name)
	}
}

func TestIngestKey(t *testing.T) {
	r := newRouter(IngestKey("terminal-key"))
	assert.Equal(t, http.StatusOK, get(r, "/test", map[string]string{"X-API-Key": "terminal-key"}).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/test", map[string]string{"X-API-Key": "guess"}).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/test", nil).Code)

	open := newRouter(IngestKey(""))
	assert.Equal(t, http.StatusOK, get(open, "/test", nil).Code)
}

func TestRecovery(t *testing.T) {
	r := newRouter(Recovery(), RequestLogger(), func(c *gin.Context) { panic("kaboom") })

	w := get(r, "/test", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"An unexpected error occurred","code":"INTERNAL_ERROR"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "kaboom")
}
