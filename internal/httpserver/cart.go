package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/middleware/auth"
	"github.com/Skotchmaster/custom_stores/internal/service"
	"github.com/Skotchmaster/custom_stores/internal/transport"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := h.Svc.GetCart(ctx, userID)
	if err != nil {
		return fail(l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, cart)
}

// AddToCart answers 201 when this call created the cart, 200 otherwise.
func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.AddToCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_to_cart_error", "invalid body", err)
	}
	if req.ProductID == uuid.Nil {
		return badRequest(l, "add_to_cart_error", "productId required", nil)
	}

	cart, created, err := h.Svc.AddItem(ctx, userID, req.ProductID, req.Quantity, req.Color)
	if err != nil {
		return fail(l, "add_to_cart_error", err)
	}

	l.Info("item added successfully to cart", "product_id", req.ProductID)
	if created {
		return c.JSON(http.StatusCreated, cart)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.cart.item")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		return badRequest(l, "update_cart_item_error", "productId not a uuid", err)
	}

	var req transport.UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_cart_item_error", "invalid body", err)
	}

	cart, err := h.Svc.UpdateItemQuantity(ctx, userID, productID, req.Quantity, req.Color)
	if err != nil {
		return fail(l, "update_cart_item_error", err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete.one.from.cart")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		return badRequest(l, "delete_one_from_cart_error", "productId not a uuid", err)
	}

	cart, deleted, err := h.Svc.RemoveItem(ctx, userID, productID, c.QueryParam("color"))
	if err != nil {
		return fail(l, "delete_one_from_cart_error", err)
	}
	return c.JSON(http.StatusOK, transport.RemoveCartItemResponse{ProductID: productID, Deleted: deleted, Cart: cart})
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete.all.from.cart")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.Svc.ClearCart(ctx, userID); err != nil {
		return fail(l, "delete_all_from_cart_error", err)
	}

	l.Info("cart successfully cleared")
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "cart cleared"})
}
