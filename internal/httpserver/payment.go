package httpserver

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/middleware/auth"
	"github.com/Skotchmaster/custom_stores/internal/service"
	"github.com/Skotchmaster/custom_stores/internal/transport"
)

const headerWebhookSignature = "X-Razorpay-Signature"

type PaymentHTTP struct {
	Svc *service.PaymentService
}

func (h *PaymentHTTP) Initiate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.initiate")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "initiate_payment_error", "invalid body", err)
	}

	res, err := h.Svc.InitiatePayment(ctx, userID, req)
	if err != nil {
		return fail(l, "initiate_payment_error", err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *PaymentHTTP) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.verify")

	var req transport.VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "verify_payment_error", "invalid body", err)
	}

	order, err := h.Svc.VerifyClientProof(ctx, req)
	if err != nil {
		return fail(l, "verify_payment_error", err)
	}
	return c.JSON(http.StatusOK, transport.VerifyPaymentResponse{
		Message: "payment verified successfully",
		Order:   order,
	})
}

func (h *PaymentHTTP) Cancelled(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.cancelled")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.GatewayOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "cancel_payment_error", "invalid body", err)
	}

	if err := h.Svc.CancelPayment(ctx, userID, req.GatewayOrderID); err != nil {
		return fail(l, "cancel_payment_error", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "order cancelled"})
}

func (h *PaymentHTTP) Failed(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.failed")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.GatewayOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "payment_failed_error", "invalid body", err)
	}

	order, err := h.Svc.ReportPaymentFailure(ctx, userID, req.GatewayOrderID)
	if err != nil {
		return fail(l, "payment_failed_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

// Webhook always answers 200; failures are only logged.
func (h *PaymentHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.webhook")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		l.Error("webhook_read_error", "error", err)
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}

	if err := h.Svc.ReconcileWebhook(ctx, body, c.Request().Header.Get(headerWebhookSignature)); err != nil {
		l.Error("webhook_error", "error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *PaymentHTTP) Key(c echo.Context) error {
	ctx := c.Request().Context()
	key, err := h.Svc.GatewayKey()
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "payment.key"), "payment_key_error", err)
	}
	return c.JSON(http.StatusOK, transport.GatewayKeyResponse{Key: key})
}
