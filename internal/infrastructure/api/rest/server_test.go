package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nbcore/notebookcore/internal/config"
	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
)

func testRouter(t *testing.T, extra func(*Deps)) http.Handler {
	t.Helper()
	deps := Deps{
		Config: ServerConfig{Debug: true, MaxBodySize: 1 << 20},
		Logger: logger.New(config.LoggingConfig{Level: "debug", Format: "text"}),
	}
	if extra != nil {
		extra(&deps)
	}
	return NewRouter(deps)
}

func TestNewRouter_Health(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCorsMiddleware(t *testing.T) {
	t.Run("debug mode with no allowlist allows any origin", func(t *testing.T) {
		router := testRouter(t, func(d *Deps) { d.Config.CORS = true })

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://anywhere.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("explicit allowlist rejects unknown origins", func(t *testing.T) {
		router := testRouter(t, func(d *Deps) {
			d.Config.CORS = true
			d.Config.CORSAllowedOrigins = []string{"http://allowed.example"}
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://other.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight OPTIONS is short-circuited", func(t *testing.T) {
		router := testRouter(t, func(d *Deps) { d.Config.CORS = true })

		req := httptest.NewRequest(http.MethodOptions, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestNewRouter_RateLimiting(t *testing.T) {
	router := testRouter(t, func(d *Deps) {
		d.EnableRateLimit = true
		d.APIRateLimit = 1
		d.APIRateWindow = time.Minute
		d.LoginMaxAttempts = 1
		d.LoginWindow = time.Minute
		d.LoginLockout = time.Minute
	})

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}
