package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohdghattas/mt4-online-server/internal/config"
)

var testAuth = config.AuthConfig{
	Enabled:   true,
	JWTSecret: "test-jwt-secret",
	APIKey:    "dashboard",
	APISecret: "s3cret",
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService(testAuth)

	token, err := svc.GenerateToken(Credentials{APIKey: "dashboard", APISecret: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), token.Expiration, time.Minute)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.ClientID)
	assert.Contains(t, claims.Permissions, "read")
}

func TestGenerateTokenRejectsBadCredentials(t *testing.T) {
	svc := NewService(testAuth)

	for _, creds := range []Credentials{
		{APIKey: "dashboard", APISecret: "wrong"},
		{APIKey: "other", APISecret: "s3cret"},
		{},
	} {
		_, err := svc.GenerateToken(creds)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	empty := NewService(config.AuthConfig{JWTSecret: "x"})
	_, err := empty.GenerateToken(Credentials{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewService(testAuth)

	other := NewService(config.AuthConfig{JWTSecret: "another-secret", APIKey: "dashboard", APISecret: "s3cret"})
	foreign, err := other.GenerateToken(Credentials{APIKey: "dashboard", APISecret: "s3cret"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign.Token)
	assert.Error(t, err)

	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, err := svc.GenerateToken(Credentials{APIKey: "dashboard", APISecret: "s3cret"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = svc.ValidateToken("not.a.token")
	assert.Error(t, err)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testAuth.JWTSecret))
	require.NoError(t, err)
	_, err = svc.ValidateToken(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"client_id": "dashboard",
	}).SignedString([]byte(testAuth.JWTSecret))
	require.NoError(t, err)
	_, err = svc.ValidateToken(noExpiry)
	assert.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
}

func TestGenerateTokenHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/token", NewGinHandlers(NewService(testAuth)).GenerateTokenHandler())

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(body)))
		return w
	}

	w := post(`{"api_key":"dashboard","api_secret":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var token TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	assert.NotEmpty(t, token.Token)

	assert.Equal(t, http.StatusUnauthorized, post(`{"api_key":"dashboard","api_secret":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{`).Code)
}
