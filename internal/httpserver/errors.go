package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/custom_stores/internal/service"
)

var statusBySentinel = []struct {
	err  error
	code int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrOutOfStock, http.StatusBadRequest},
	{service.ErrSignature, http.StatusBadRequest},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrConflict, http.StatusConflict},
	{service.ErrGateway, http.StatusInternalServerError},
}

func statusFor(err error) (int, error) {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.code, s.err
		}
	}
	return http.StatusInternalServerError, nil
}

// messageFor turns "not found: product" into "product not found" and
// "validation: name required" into "name required".
func messageFor(err, sentinel error) string {
	if sentinel == nil {
		return http.StatusText(http.StatusInternalServerError)
	}
	if sentinel == service.ErrGateway {
		return "payment gateway error, please retry"
	}
	detail := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if detail == err.Error() {
		return sentinel.Error()
	}
	switch sentinel {
	case service.ErrNotFound:
		return detail + " not found"
	case service.ErrOutOfStock:
		return sentinel.Error() + ": " + detail
	}
	return detail
}

// fail logs a service error under event and converts it to the matching
// HTTP error. 5xx keep the cause as Internal for the error handler.
func fail(l *slog.Logger, event string, err error) error {
	code, sentinel := statusFor(err)
	if code >= http.StatusInternalServerError {
		l.Error(event, "status", code, "error", err)
	} else {
		l.Warn(event, "status", code, "error", err)
	}
	return echo.NewHTTPError(code, messageFor(err, sentinel)).SetInternal(err)
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}

// NewErrorHandler renders every error as {"message": ...}. Outside
// production 5xx responses also carry the underlying error.
func NewErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = &echo.HTTPError{Code: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError), Internal: err}
		}

		body := echo.Map{"message": he.Message}
		if he.Code >= http.StatusInternalServerError && !production && he.Internal != nil {
			body["error"] = he.Internal.Error()
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = c.JSON(he.Code, body)
		}
		if werr != nil {
			c.Logger().Error(werr)
		}
	}
}
