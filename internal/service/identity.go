package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/custom_stores/internal/hash"
	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/models"
	"github.com/Skotchmaster/custom_stores/internal/mykafka"
	"github.com/Skotchmaster/custom_stores/internal/notify"
	"github.com/Skotchmaster/custom_stores/internal/repo"
	"github.com/Skotchmaster/custom_stores/internal/tokens"
	"github.com/Skotchmaster/custom_stores/internal/transport"
)

const (
	minPasswordLen   = 6
	verificationTTL  = 30 * time.Minute
	resetTokenTTL    = time.Hour
	resetTokenBytes  = 32
	verificationSize = 4
)

type IdentityService struct {
	Repo        *repo.GormRepo
	Tokens      *tokens.Issuer
	Mailer      notify.Mailer
	Events      mykafka.Publisher
	FrontendURL string
	Now         func() time.Time
}

func (s *IdentityService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	return nil
}

func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", verificationSize, n.Int64()+1000), nil
}

func (s *IdentityService) Register(ctx context.Context, req transport.RegisterRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "identity.register")

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	code, err := verificationCode()
	if err != nil {
		return nil, err
	}
	expiry := s.now().Add(verificationTTL)

	user := &models.User{
		Name:               name,
		Email:              email,
		PasswordHash:       pwHash,
		Role:               tokens.RoleUser,
		VerificationHash:   hash.Sha256Hex(code),
		VerificationExpiry: &expiry,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, err
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendVerification(ctx, user.Email, code); err != nil {
			l.Error("verification_mail_error", "user_id", user.ID, "error", err)
		}
		if err := s.Mailer.SendWelcome(ctx, user.Email, user.Name); err != nil {
			l.Error("welcome_mail_error", "user_id", user.ID, "error", err)
		}
	}

	publish(ctx, s.Events, mykafka.TopicUserEvents, user.ID.String(), map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})
	l.Info("register_success", "user_id", user.ID)
	return user, nil
}

func (s *IdentityService) VerifyEmail(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if user.VerificationExpiry == nil || s.now().After(*user.VerificationExpiry) {
		return fmt.Errorf("%w: verification code expired", ErrValidation)
	}
	if !hash.EqualHex(user.VerificationHash, hash.Sha256Hex(strings.TrimSpace(code))) {
		return fmt.Errorf("%w: invalid verification code", ErrValidation)
	}
	return s.Repo.UpdateUser(ctx, userID, map[string]any{
		"email_verified":      true,
		"verification_hash":   "",
		"verification_expiry": nil,
	})
}

func (s *IdentityService) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}
	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	return user, nil
}

func (s *IdentityService) issue(ctx context.Context, user *models.User) (*transport.LoginResult, error) {
	access, accessExp, err := s.Tokens.NewAccessToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, err
	}
	refresh, jti, refreshExp, err := s.Tokens.NewRefreshToken(user.ID.String())
	if err != nil {
		return nil, err
	}
	if err := s.Repo.StoreRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     hash.Sha256Hex(refresh),
		JTI:       jti,
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, err
	}
	return &transport.LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		IsAdmin:      user.IsAdmin(),
		User:         user,
	}, nil
}

func (s *IdentityService) Login(ctx context.Context, email, password string) (*transport.LoginResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *IdentityService) AdminLogin(ctx context.Context, email, password string) (*transport.LoginResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	return s.issue(ctx, user)
}

func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*transport.LoginResult, error) {
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.Tokens.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
		}
		return nil, err
	}

	access, accessExp, err := s.Tokens.NewAccessToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, err
	}
	next, jti, refreshExp, err := s.Tokens.NewRefreshToken(user.ID.String())
	if err != nil {
		return nil, err
	}

	err = s.Repo.RotateRefreshToken(ctx, claims.ID, hash.Sha256Hex(refreshToken), &models.RefreshToken{
		UserID:    user.ID,
		Token:     hash.Sha256Hex(next),
		JTI:       jti,
		ExpiresAt: refreshExp,
	}, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrTokenRevoked) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, err
	}

	return &transport.LoginResult{
		AccessToken:  access,
		RefreshToken: next,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		IsAdmin:      user.IsAdmin(),
		User:         user,
	}, nil
}

func (s *IdentityService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token required", ErrValidation)
	}
	return s.Repo.RevokeRefreshToken(ctx, hash.Sha256Hex(refreshToken))
}

func (s *IdentityService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (s *IdentityService) UpdateProfile(ctx context.Context, userID uuid.UUID, req transport.UpdateProfileRequest) (*models.User, error) {
	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		fields["name"] = name
	}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return nil, err
		}
		fields["email"] = email
	}
	if req.Password != nil {
		if err := validatePassword(*req.Password); err != nil {
			return nil, err
		}
		pwHash, err := hash.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = pwHash
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}

	if len(fields) > 0 {
		if err := s.Repo.UpdateUser(ctx, userID, fields); err != nil {
			switch {
			case repo.IsNotFound(err):
				return nil, fmt.Errorf("%w: user", ErrNotFound)
			case repo.IsDuplicate(err):
				return nil, fmt.Errorf("%w: email already registered", ErrConflict)
			}
			return nil, err
		}
	}
	return s.Profile(ctx, userID)
}

func (s *IdentityService) UpsertAddress(ctx context.Context, userID uuid.UUID, addr models.Address) (*models.User, error) {
	if !addr.Complete() {
		return nil, fmt.Errorf("%w: street, city, state, zipCode and country are required", ErrValidation)
	}
	err := s.Repo.UpdateUser(ctx, userID, map[string]any{
		"address_street":   addr.Street,
		"address_city":     addr.City,
		"address_state":    addr.State,
		"address_zip_code": addr.ZipCode,
		"address_country":  addr.Country,
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	return s.Profile(ctx, userID)
}

// ForgotPassword never reveals whether the email is registered.
func (s *IdentityService) ForgotPassword(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "identity.forgot_password")

	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if repo.IsNotFound(err) {
			l.Info("forgot_password_unknown_email")
			return nil
		}
		return err
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	token := hex.EncodeToString(raw)
	expiry := s.now().Add(resetTokenTTL)

	if err := s.Repo.UpdateUser(ctx, user.ID, map[string]any{
		"reset_token_hash": hash.Sha256Hex(token),
		"reset_expiry":     expiry,
	}); err != nil {
		return err
	}

	link := strings.TrimRight(s.FrontendURL, "/") + "/reset-password/" + token
	if s.Mailer != nil {
		if err := s.Mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
			l.Error("reset_mail_error", "user_id", user.ID, "error", err)
			return err
		}
	}
	return nil
}

func (s *IdentityService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return fmt.Errorf("%w: token required", ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	tokenHash := hash.Sha256Hex(token)
	user, err := s.Repo.GetUserByResetHash(ctx, tokenHash)
	if err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: invalid or expired reset token", ErrValidation)
		}
		return err
	}
	if user.ResetExpiry == nil || s.now().After(*user.ResetExpiry) {
		return fmt.Errorf("%w: invalid or expired reset token", ErrValidation)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.Repo.ResetPassword(ctx, user.ID, tokenHash, pwHash); err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: invalid or expired reset token", ErrValidation)
		}
		return err
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin or promotes an existing account
// with that email. The password is only set on creation.
func (s *IdentityService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err == nil {
		if user.IsAdmin() {
			return nil
		}
		return s.Repo.UpdateUser(ctx, user.ID, map[string]any{"role": tokens.RoleAdmin})
	}
	if !repo.IsNotFound(err) {
		return err
	}

	if err := validatePassword(password); err != nil {
		return err
	}
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return err
	}
	return s.Repo.CreateUser(ctx, &models.User{
		Name:          "Admin",
		Email:         email,
		PasswordHash:  pwHash,
		Role:          tokens.RoleAdmin,
		EmailVerified: true,
	})
}
