package service

import (
	"context"
	"errors"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/mykafka"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrOutOfStock   = errors.New("out of stock") // 400
	ErrSignature    = errors.New("invalid signature")
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrForbidden    = errors.New("forbidden")    // 403
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
	ErrGateway      = errors.New("payment gateway error")

	// ErrIntegrity is only ever logged: the webhook caller is the gateway.
	ErrIntegrity = errors.New("integrity")
)

// publish is best-effort; a broken broker never fails the request.
func publish(ctx context.Context, p mykafka.Publisher, topic, key string, event map[string]any) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_error", "topic", topic, "type", event["type"], "error", err)
	}
}
