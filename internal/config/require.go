package config

import (
	"errors"
	"fmt"
	"log"
)

// Validate reports every missing or inconsistent setting at once.
// Gateway credentials are only mandatory in production; elsewhere the
// payment endpoints answer with a gateway error instead.
func (c Config) Validate() error {
	var errs []error
	missing := func(ok bool, env string) {
		if !ok {
			errs = append(errs, fmt.Errorf("missing required env %s", env))
		}
	}

	missing(c.DatabaseURL != "", "DATABASE_URL")
	missing(len(c.JWTAccessSecret) > 0, "JWT_SECRET")
	missing(len(c.JWTRefreshSecret) > 0, "JWT_REFRESH_SECRET")

	if c.IsProduction() {
		missing(c.Razorpay.KeyID != "", "RAZORPAY_KEY_ID")
		missing(c.Razorpay.KeySecret != "", "RAZORPAY_KEY_SECRET")
		missing(c.Razorpay.WebhookSecret != "", "RAZORPAY_WEBHOOK_SECRET")
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", c.ServerPort))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

func MustLoad() Config {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}
