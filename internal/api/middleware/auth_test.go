package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bassista/snipsync/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func principalRouter(required bool) (*gin.Engine, *string) {
	var seen string
	r := gin.New()
	r.Use(BearerAuth(required))
	r.GET("/test", func(c *gin.Context) {
		seen = Principal(c)
		c.String(http.StatusOK, "ok")
	})
	return r, &seen
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name          string
		required      bool
		header        string
		wantStatus    int
		wantPrincipal string
	}{
		{"optional anonymous", false, "", http.StatusOK, ""},
		{"optional with token", false, "Bearer alice", http.StatusOK, "alice"},
		{"scheme is case insensitive", false, "bearer  bob ", http.StatusOK, "bob"},
		{"basic auth is ignored", false, "Basic dXNlcjpwYXNz", http.StatusOK, ""},
		{"required and missing", true, "", http.StatusUnauthorized, ""},
		{"required with empty token", true, "Bearer ", http.StatusUnauthorized, ""},
		{"required with token", true, "Bearer alice", http.StatusOK, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, seen := principalRouter(tt.required)
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantPrincipal, *seen)
		})
	}
}

func TestRequestLogger_PropagatesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	var seen string
	r.GET("/test", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc123", seen)
	assert.Equal(t, "abc123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestHoneybadgerMiddleware_DisabledPassesThrough(t *testing.T) {
	t.Setenv("HONEYBADGER_API_KEY", "")
	r := gin.New()
	r.Use(HoneybadgerMiddleware(testEntry()))
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func testEntry() *logrus.Entry {
	return logger.WithComponent("api-test")
}
