package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/middleware/auth"
	"github.com/Skotchmaster/custom_stores/internal/service"
	"github.com/Skotchmaster/custom_stores/internal/transport"
)

type IdentityHTTP struct {
	Svc *service.IdentityService
}

func (h *IdentityHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_error", "invalid body", err)
	}

	user, err := h.Svc.Register(ctx, req)
	if err != nil {
		return fail(l, "register_error", err)
	}

	l.Info("register_success", "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *IdentityHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(l, "login_failed", err)
	}

	l.Info("login_successful", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, res)
}

func (h *IdentityHTTP) AdminLogin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "admin_login_error", "invalid body", err)
	}

	res, err := h.Svc.AdminLogin(ctx, req.Email, req.Password)
	if err != nil {
		return fail(l, "admin_login_failed", err)
	}

	l.Info("admin_login_successful", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, res)
}

func (h *IdentityHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.refresh")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "refresh_error", "invalid body", err)
	}
	if req.RefreshToken == "" {
		return badRequest(l, "refresh_error", "refresh_token required", nil)
	}

	res, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(l, "refresh_failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *IdentityHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.logout")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "logout_error", "invalid body", err)
	}

	if err := h.Svc.Logout(ctx, req.RefreshToken); err != nil {
		return fail(l, "logout_failed", err)
	}

	l.Info("successful_logout")
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "logged out"})
}

func (h *IdentityHTTP) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.verify_email")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "verify_email_error", "invalid body", err)
	}

	if err := h.Svc.VerifyEmail(ctx, userID, req.Code); err != nil {
		return fail(l, "verify_email_failed", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "email verified"})
}

func (h *IdentityHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.forgot_password")

	var req transport.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "forgot_password_error", "invalid body", err)
	}

	if err := h.Svc.ForgotPassword(ctx, req.Email); err != nil {
		return fail(l, "forgot_password_failed", err)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{
		Message: "if the email is registered, a password reset link has been sent",
	})
}

func (h *IdentityHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.reset_password")

	var req transport.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "reset_password_error", "invalid body", err)
	}

	if err := h.Svc.ResetPassword(ctx, c.Param("token"), req.Password); err != nil {
		return fail(l, "reset_password_failed", err)
	}

	l.Info("reset_password_success")
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "password has been reset"})
}

func (h *IdentityHTTP) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.profile")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	user, err := h.Svc.Profile(ctx, userID)
	if err != nil {
		return fail(l, "profile_error", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *IdentityHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update_profile")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_profile_error", "invalid body", err)
	}

	user, err := h.Svc.UpdateProfile(ctx, userID, req)
	if err != nil {
		return fail(l, "update_profile_error", err)
	}

	l.Info("update_profile_success", "user_id", userID)
	return c.JSON(http.StatusOK, user)
}

func (h *IdentityHTTP) UpsertAddress(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.address")

	userID, err := auth.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.AddressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "address_error", "invalid body", err)
	}

	user, err := h.Svc.UpsertAddress(ctx, userID, req.Model())
	if err != nil {
		return fail(l, "address_error", err)
	}
	return c.JSON(http.StatusOK, user)
}
