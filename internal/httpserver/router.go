package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	authmw "github.com/Skotchmaster/custom_stores/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/custom_stores/internal/middleware/logging"
)

type Deps struct {
	Identity *IdentityHTTP
	Catalog  *CatalogHTTP
	Cart     *CartHTTP
	Orders   *OrderHTTP
	Payments *PaymentHTTP

	JWTSecret    []byte
	Logger       *slog.Logger
	Production   bool
	AllowOrigins []string

	// Ready backs /health/ready; nil means always ready.
	Ready func(ctx context.Context) error
}

func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	l := d.Logger
	if l == nil {
		l = logging.Discard()
	}
	origins := d.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.HTTPErrorHandler = NewErrorHandler(d.Production)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(l),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}),
		middleware.BodyLimit("1M"),
	)

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	mw := authmw.New(d.JWTSecret)
	api := e.Group("/api")

	user := api.Group("/user")
	user.POST("/register", d.Identity.Register)
	user.POST("/login", d.Identity.Login)
	user.POST("/refresh", d.Identity.Refresh)
	user.POST("/logout", d.Identity.Logout)
	user.POST("/forgot-password", d.Identity.ForgotPassword)
	user.POST("/reset-password/:token", d.Identity.ResetPassword)
	user.POST("/verify-email", d.Identity.VerifyEmail, mw.RequireAuth)
	user.GET("/profile", d.Identity.Profile, mw.RequireAuth)
	user.PUT("/profile", d.Identity.UpdateProfile, mw.RequireAuth)
	user.PUT("/address", d.Identity.UpsertAddress, mw.RequireAuth)
	user.GET("/orders", d.Orders.UserOrders, mw.RequireAuth)

	admin := api.Group("/admin")
	admin.POST("/login", d.Identity.AdminLogin)
	admin.GET("/profile", d.Identity.Profile, mw.RequireAdmin)

	categories := api.Group("/categories")
	categories.GET("", d.Catalog.ListCategories)
	categories.GET("/:id", d.Catalog.GetCategory)
	categories.POST("", d.Catalog.CreateCategory, mw.RequireAdmin)
	categories.PUT("/:id", d.Catalog.UpdateCategory, mw.RequireAdmin)
	categories.DELETE("/:id", d.Catalog.DeleteCategory, mw.RequireAdmin)

	products := api.Group("/products")
	products.GET("", d.Catalog.GetProducts)
	products.GET("/featured", d.Catalog.Featured)
	products.GET("/new-arrivals", d.Catalog.NewArrivals)
	products.GET("/search", d.Catalog.SearchProducts)
	products.GET("/category/:category", d.Catalog.ProductsByCategory)
	products.GET("/:id", d.Catalog.GetProduct)
	products.POST("", d.Catalog.CreateProduct, mw.RequireAdmin)
	products.PUT("/:id", d.Catalog.UpdateProduct, mw.RequireAdmin)
	products.DELETE("/:id", d.Catalog.DeleteProduct, mw.RequireAdmin)

	cart := api.Group("/cart", mw.RequireAuth)
	cart.GET("", d.Cart.GetCart)
	cart.POST("", d.Cart.AddToCart)
	cart.DELETE("", d.Cart.ClearCart)
	cart.PUT("/:productId", d.Cart.UpdateItem)
	cart.DELETE("/:productId", d.Cart.RemoveItem)

	orders := api.Group("/orders")
	orders.POST("", d.Orders.CreateOrder, mw.RequireAuth)
	orders.GET("", d.Orders.ListOrders, mw.RequireAdmin)
	orders.GET("/user", d.Orders.UserOrders, mw.RequireAuth)
	orders.GET("/:id", d.Orders.GetOrder, mw.RequireAuth)
	orders.PUT("/:id", d.Orders.UpdateOrder, mw.RequireAdmin)

	payments := api.Group("/payments")
	payments.POST("/webhook", d.Payments.Webhook)
	payments.GET("/key", d.Payments.Key)
	payments.POST("/razorpay", d.Payments.Initiate, mw.RequireAuth)
	payments.POST("/verify", d.Payments.Verify, mw.RequireAuth)
	payments.POST("/cancelled", d.Payments.Cancelled, mw.RequireAuth)
	payments.POST("/failed", d.Payments.Failed, mw.RequireAuth)
}
