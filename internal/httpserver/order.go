package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/middleware/auth"
	"github.com/Skotchmaster/custom_stores/internal/service"
	"github.com/Skotchmaster/custom_stores/internal/transport"
	"github.com/Skotchmaster/custom_stores/internal/util"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}

	order, err := h.Svc.CreateOrder(ctx, userID, req)
	if err != nil {
		return fail(l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.OrderNumber)
	return c.JSON(http.StatusCreated, order)
}

// ListOrders is the admin view over every order.
func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	page, offset, limit := pageParams(c)
	total, orders, err := h.Svc.ListOrders(ctx, nil, offset, limit)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, util.NewPage(orders, page, offset, limit, total))
}

func (h *OrderHTTP) UserOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.user")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	page, offset, limit := pageParams(c)
	total, orders, err := h.Svc.ListOrders(ctx, &userID, offset, limit)
	if err != nil {
		return fail(l, "user_orders_error", err)
	}
	return c.JSON(http.StatusOK, util.NewPage(orders, page, offset, limit, total))
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	order, err := h.Svc.GetOrder(ctx, c.Param("id"), userID, auth.IsAdmin(c))
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) UpdateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update")

	var req transport.UpdateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_order_error", "invalid body", err)
	}

	order, err := h.Svc.UpdateOrder(ctx, c.Param("id"), req)
	if err != nil {
		return fail(l, "update_order_error", err)
	}

	l.Info("update_order_success", "order_id", order.OrderNumber, "status", order.Status)
	return c.JSON(http.StatusOK, order)
}
