package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func run(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	fn(c)

	var body ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHandle(t *testing.T) {
	w, _ := run(t, func(c *gin.Context) { Handle(c, gin.H{"ok": true}, nil) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w, body := run(t, func(c *gin.Context) { Handle(c, nil, gorm.ErrRecordNotFound) })
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeNotFound, body.Code)

	w, body = run(t, func(c *gin.Context) { Handle(c, nil, errors.New("dial tcp: connection refused")) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "An unexpected error occurred", body.Error)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestErrorHelpers(t *testing.T) {
	cases := []struct {
		fn     func(c *gin.Context)
		status int
		code   string
	}{
		{func(c *gin.Context) { BadRequest(c, "bad") }, http.StatusBadRequest, ErrCodeBadRequest},
		{func(c *gin.Context) { Unauthorized(c, "who") }, http.StatusUnauthorized, ErrCodeUnauthorized},
		{func(c *gin.Context) { Forbidden(c, "no") }, http.StatusForbidden, ErrCodeForbidden},
		{func(c *gin.Context) { TooLarge(c, "big") }, http.StatusRequestEntityTooLarge, ErrCodeTooLarge},
		{func(c *gin.Context) { TooManyRequests(c, "slow") }, http.StatusTooManyRequests, ErrCodeRateLimited},
		{func(c *gin.Context) { InternalError(c, "oops") }, http.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tc := range cases {
		w, body := run(t, tc.fn)
		assert.Equal(t, tc.status, w.Code)
		assert.Equal(t, tc.code, body.Code)
		assert.NotEmpty(t, body.Error)
	}
}

func TestValidationFailedDetails(t *testing.T) {
	w, _ := run(t, func(c *gin.Context) {
		ValidationFailed(c, "missing required field: balance", []string{"missing required field: balance"})
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"missing required field: balance","code":"VALIDATION_FAILED","errors":["missing required field: balance"]}`, w.Body.String())
}
