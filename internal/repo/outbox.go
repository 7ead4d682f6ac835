package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/custom_stores/internal/models"
)

// DueOutbox returns undispatched events that are not leased by another
// dispatcher and have not exhausted their attempts.
func (r *GormRepo) DueOutbox(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	if err := r.DB.WithContext(ctx).
		Where("dispatched_at IS NULL AND attempts < ?", maxAttempts).
		Where("locked_until IS NULL OR locked_until < ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ClaimOutbox leases one event until now+lease. Returns false when someone
// else already holds it or it was dispatched meanwhile.
func (r *GormRepo) ClaimOutbox(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		Where("locked_until IS NULL OR locked_until < ?", now).
		Update("locked_until", now.Add(lease))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) MarkOutboxDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"dispatched_at": at, "locked_until": nil, "last_error": ""}).Error
}

func (r *GormRepo) MarkOutboxFailed(ctx context.Context, id uuid.UUID, cause string) error {
	return r.DB.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   cause,
			"locked_until": nil,
		}).Error
}
