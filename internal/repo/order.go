package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/custom_stores/internal/models"
)

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) getOrder(ctx context.Context, column string, value any) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", orderedItems).
		Where(column+" = ?", value).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getOrder(ctx, "id", id)
}

func (r *GormRepo) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.getOrder(ctx, "order_number", number)
}

// Lookups by gateway id never match the placeholder shared by unpaid orders.
func (r *GormRepo) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	if !models.GatewayAssigned(gatewayOrderID) {
		return nil, gorm.ErrRecordNotFound
	}
	return r.getOrder(ctx, "gateway_order_id", gatewayOrderID)
}

// ListOrders lists every order when userID is nil, otherwise only the user's.
func (r *GormRepo) ListOrders(ctx context.Context, userID *uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	orders := make([]models.Order, 0, limit)
	if err := q.Preload("Items", orderedItems).
		Order("created_at DESC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) UpdateOrder(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) error {
	return r.UpdateOrder(ctx, id, map[string]any{"gateway_order_id": gatewayOrderID})
}

func deleteOrder(tx *gorm.DB, id uuid.UUID) error {
	if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", id).Delete(&models.Order{}).Error
}

func (r *GormRepo) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteOrder(tx, id)
	})
}

// DeletePendingOrder removes an order that has not been paid yet. ownerID
// restricts the lookup to one user when set. Returns ErrNotPending when the
// payment already moved on.
func (r *GormRepo) DeletePendingOrder(ctx context.Context, gatewayOrderID string, ownerID *uuid.UUID) (*models.Order, error) {
	if !models.GatewayAssigned(gatewayOrderID) {
		return nil, gorm.ErrRecordNotFound
	}
	var order models.Order
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("gateway_order_id = ?", gatewayOrderID)
		if ownerID != nil {
			q = q.Where("user_id = ?", *ownerID)
		}
		if err := q.First(&order).Error; err != nil {
			return err
		}

		// items go first; ErrNotPending rolls them back
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).Delete(&models.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FailPayment marks a Pending order Failed. updated is false when the order
// exists but is no longer Pending.
func (r *GormRepo) FailPayment(ctx context.Context, gatewayOrderID string, ownerID *uuid.UUID) (order *models.Order, updated bool, err error) {
	if !models.GatewayAssigned(gatewayOrderID) {
		return nil, false, gorm.ErrRecordNotFound
	}
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Order{}).
			Where("gateway_order_id = ? AND payment_status = ?", gatewayOrderID, models.PaymentStatusPending)
		if ownerID != nil {
			q = q.Where("user_id = ?", *ownerID)
		}
		res := q.Updates(map[string]any{
			"payment_id":     models.FailedMarker,
			"payment_status": models.PaymentStatusFailed,
		})
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected > 0

		lookup := tx.Where("gateway_order_id = ?", gatewayOrderID)
		if ownerID != nil {
			lookup = lookup.Where("user_id = ?", *ownerID)
		}
		var o models.Order
		if err := lookup.First(&o).Error; err != nil {
			return err
		}
		order = &o
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, updated, nil
}

// EventBuilder produces the outbox rows written together with a completed
// payment.
type EventBuilder func(order *models.Order, owner *models.User) ([]models.OutboxEvent, error)

// CompletePayment is the single Pending -> Completed transition shared by the
// client proof and the webhook. Only the caller whose conditional update hit
// the row clears the owner's cart and writes the outbox rows; everyone else
// gets completed == false and the current order.
func (r *GormRepo) CompletePayment(ctx context.Context, gatewayOrderID, paymentID string, paidAt time.Time, build EventBuilder) (order *models.Order, completed bool, events []models.OutboxEvent, err error) {
	if !models.GatewayAssigned(gatewayOrderID) {
		return nil, false, nil, gorm.ErrRecordNotFound
	}
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("gateway_order_id = ? AND payment_status = ?", gatewayOrderID, models.PaymentStatusPending).
			Updates(map[string]any{
				"payment_id":     paymentID,
				"payment_status": models.PaymentStatusCompleted,
				"paid_at":        paidAt,
			})
		if res.Error != nil {
			return res.Error
		}

		var o models.Order
		if err := tx.Preload("Items", orderedItems).
			Where("gateway_order_id = ?", gatewayOrderID).
			First(&o).Error; err != nil {
			return err
		}
		order = &o

		if res.RowsAffected == 0 {
			return nil
		}
		completed = true

		if _, err := clearCart(tx, o.UserID); err != nil {
			return err
		}

		var owner models.User
		if err := tx.Where("id = ?", o.UserID).First(&owner).Error; err != nil {
			return err
		}

		if build == nil {
			return nil
		}
		events, err = build(&o, &owner)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			return tx.Create(&events).Error
		}
		return nil
	})
	if err != nil {
		return nil, false, nil, err
	}
	return order, completed, events, nil
}
