package loggingmw

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/middleware/auth"
)

type Config struct {
	Logger *slog.Logger
	// Skipper suppresses the access line only; the request still gets a
	// logger in its context.
	Skipper middleware.Skipper
	// Slow marks successful requests that took longer than this as warnings.
	Slow time.Duration
}

// SkipHealth drops access lines for the liveness and readiness probes.
func SkipHealth(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/health/")
}

func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return RequestLoggerWithConfig(Config{Logger: base, Skipper: SkipHealth})
}

func RequestLoggerWithConfig(cfg Config) echo.MiddlewareFunc {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			l := cfg.Logger.With("method", req.Method, "route", c.Path())
			if rid := requestID(c); rid != "" {
				l = l.With("request_id", rid)
			}
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				// commit the response so the status below is the one the client saw
				c.Error(err)
			}
			if cfg.Skipper(c) {
				return nil
			}

			dur := time.Since(start)
			res := c.Response()
			attrs := []any{
				"status", res.Status,
				"duration_ms", dur.Milliseconds(),
				"bytes_out", res.Size,
				"remote_ip", c.RealIP(),
			}
			if uid, ok := c.Get(auth.CtxUserID).(string); ok && uid != "" {
				attrs = append(attrs, "user_id", uid)
			}
			if err != nil {
				attrs = append(attrs, "error", err.Error())
			}

			switch {
			case res.Status >= 500:
				l.Error("http_request", attrs...)
			case res.Status >= 400:
				l.Warn("http_request", attrs...)
			case cfg.Slow > 0 && dur > cfg.Slow:
				l.Warn("http_request_slow", attrs...)
			default:
				l.Info("http_request", attrs...)
			}
			return nil
		}
	}
}

func requestID(c echo.Context) string {
	if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
		return rid
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
