package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutboxOrderConfirmation = "order_confirmation"
	OutboxPaymentCompleted  = "payment_completed"
)

// OutboxEvent is written in the same transaction as the state change that
// produced it and dispatched after commit.
type OutboxEvent struct {
	Base
	Kind         string     `gorm:"size:50;index;not null"   json:"kind"`
	AggregateID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"aggregate_id"`
	Payload      []byte     `gorm:"not null"                 json:"payload"`
	Attempts     int        `gorm:"not null;default:0"       json:"attempts"`
	LastError    string     `gorm:"type:text"                json:"last_error,omitempty"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	DispatchedAt *time.Time `gorm:"index"                    json:"dispatched_at,omitempty"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
