package loggingmw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/middleware/auth"
)

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func newEcho(buf *bytes.Buffer, slow time.Duration) *echo.Echo {
	e := echo.New()
	e.Use(RequestLoggerWithConfig(Config{
		Logger:  logging.New(logging.Options{Level: "debug", Output: buf}),
		Skipper: SkipHealth,
		Slow:    slow,
	}))
	return e
}

func TestRequestLogger_Success(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := newEcho(&buf, 0)
	e.GET("/api/cart", func(c echo.Context) error {
		c.Set(auth.CtxUserID, "u-1")
		logging.FromContext(c.Request().Context()).Info("inside_handler")
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(echo.HeaderXRequestID, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got := records(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "inside_handler", got[0]["msg"])
	assert.Equal(t, "rid-1", got[0]["request_id"])

	assert.Equal(t, "http_request", got[1]["msg"])
	assert.Equal(t, "INFO", got[1]["level"])
	assert.Equal(t, "/api/cart", got[1]["route"])
	assert.Equal(t, "u-1", got[1]["user_id"])
	assert.EqualValues(t, 200, got[1]["status"])
}

func TestRequestLogger_ErrorStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := newEcho(&buf, 0)
	e.GET("/api/products/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	got := records(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "WARN", got[0]["level"])
	assert.Equal(t, "/api/products/:id", got[0]["route"])
	assert.EqualValues(t, 404, got[0]["status"])
	assert.Contains(t, got[0]["error"], "product not found")
	assert.Equal(t, "ERROR", got[1]["level"])
}

func TestRequestLogger_SkipsHealthAndFlagsSlow(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := newEcho(&buf, time.Nanosecond)
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/slow", func(c echo.Context) error {
		time.Sleep(time.Millisecond)
		return c.NoContent(http.StatusOK)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/slow", nil))

	got := records(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "http_request_slow", got[0]["msg"])
	assert.Equal(t, "WARN", got[0]["level"])
}
