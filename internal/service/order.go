package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/models"
	"github.com/Skotchmaster/custom_stores/internal/mykafka"
	"github.com/Skotchmaster/custom_stores/internal/repo"
	"github.com/Skotchmaster/custom_stores/internal/transport"
)

const (
	OrderNumberPrefix = "ORD-"

	orderNumberBytes    = 6
	orderNumberAttempts = 5
)

// NewOrderNumber returns "ORD-" followed by 12 lowercase hex characters from
// crypto/rand.
func NewOrderNumber() (string, error) {
	b := make([]byte, orderNumberBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return OrderNumberPrefix + hex.EncodeToString(b), nil
}

type OrderService struct {
	Repo   *repo.GormRepo
	Events mykafka.Publisher

	// NewNumber is swapped in tests to force collisions.
	NewNumber func() (string, error)
}

func (s *OrderService) newNumber() (string, error) {
	if s.NewNumber != nil {
		return s.NewNumber()
	}
	return NewOrderNumber()
}

// buildOrder validates the request and snapshots the current discount price
// of every product. The total is always computed here; a client total that
// disagrees is rejected.
func (s *OrderService) buildOrder(ctx context.Context, userID uuid.UUID, req transport.CreateOrderRequest) (*models.Order, error) {
	if len(req.Products) == 0 {
		return nil, fmt.Errorf("%w: products required", ErrValidation)
	}
	addr := req.DeliveryAddress.Model()
	if !addr.Complete() {
		return nil, fmt.Errorf("%w: complete deliveryAddress required", ErrValidation)
	}
	contact := strings.TrimSpace(req.ContactNumber)
	if contact == "" {
		return nil, fmt.Errorf("%w: contactNumber required", ErrValidation)
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(req.Products))
	for i, it := range req.Products {
		if it.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: products[%d].productId required", ErrValidation, i)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: products[%d].quantity must be at least 1", ErrValidation, i)
		}
		color := strings.TrimSpace(it.Color)
		if color == "" {
			return nil, fmt.Errorf("%w: products[%d].color required", ErrValidation, i)
		}

		prod, err := s.Repo.GetProduct(ctx, it.ProductID)
		if err != nil {
			if repo.IsNotFound(err) {
				return nil, fmt.Errorf("%w: product %s", ErrNotFound, it.ProductID)
			}
			return nil, err
		}
		if !prod.InStock {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, prod.Name)
		}

		items = append(items, models.OrderItem{
			ProductID: prod.ID,
			Name:      prod.Name,
			Image:     prod.PrimaryImage,
			Quantity:  uint(it.Quantity),
			Color:     color,
			Price:     prod.DiscountPrice,
		})
		total = total.Add(prod.DiscountPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	if req.TotalPrice != nil && !req.TotalPrice.Round(2).Equal(total) {
		return nil, fmt.Errorf("%w: totalPrice %s does not match %s", ErrValidation, req.TotalPrice.StringFixed(2), total.StringFixed(2))
	}

	return &models.Order{
		UserID:          userID,
		Items:           items,
		Status:          models.OrderStatusPending,
		PaymentMethod:   models.PaymentMethodRazorpay,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentID:       models.PendingMarker,
		GatewayOrderID:  models.PendingMarker,
		DeliveryAddress: addr,
		ContactNumber:   contact,
		OrderNotes:      strings.TrimSpace(req.OrderNotes),
		TotalPrice:      total,
	}, nil
}

// insert assigns a fresh order number, retrying on a unique violation.
func (s *OrderService) insert(ctx context.Context, order *models.Order) error {
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := s.newNumber()
		if err != nil {
			return err
		}
		order.ID = uuid.Nil
		for i := range order.Items {
			order.Items[i].ID = uuid.Nil
			order.Items[i].OrderID = uuid.Nil
		}
		order.OrderNumber = number

		err = s.Repo.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !repo.IsDuplicate(err) {
			return err
		}
		lastErr = err
		logging.FromContext(ctx).Warn("order_number_collision", "attempt", attempt+1, "order_number", number)
	}
	return fmt.Errorf("%w: could not allocate a unique order number: %v", ErrConflict, lastErr)
}

func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req transport.CreateOrderRequest) (*models.Order, error) {
	order, err := s.buildOrder(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, order); err != nil {
		return nil, err
	}

	publish(ctx, s.Events, mykafka.TopicOrderEvents, order.OrderNumber, map[string]any{
		"type":       "order_created",
		"orderID":    order.OrderNumber,
		"userID":     userID,
		"totalPrice": order.TotalPrice.StringFixed(2),
	})
	return order, nil
}

func (s *OrderService) lookup(ctx context.Context, ref string) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		order, err = s.Repo.GetOrderByID(ctx, id)
	} else {
		order, err = s.Repo.GetOrderByNumber(ctx, ref)
	}
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: order", ErrNotFound)
		}
		return nil, err
	}
	return order, nil
}

// GetOrder resolves ref as a uuid or an order number. Orders of other users
// are reported as missing unless the caller is an admin.
func (s *OrderService) GetOrder(ctx context.Context, ref string, userID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := s.lookup(ctx, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return order, nil
}

// ListOrders lists everything for admins (userID nil) and only the owner's
// orders otherwise.
func (s *OrderService) ListOrders(ctx context.Context, userID *uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	return s.Repo.ListOrders(ctx, userID, offset, limit)
}

func (s *OrderService) UpdateOrder(ctx context.Context, ref string, req transport.UpdateOrderRequest) (*models.Order, error) {
	order, err := s.lookup(ctx, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Status != nil {
		status := models.OrderStatus(strings.TrimSpace(*req.Status))
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *req.Status)
		}
		if status.RequiresPayment() && order.PaymentStatus != models.PaymentStatusCompleted {
			return nil, fmt.Errorf("%w: order %s is not paid", ErrConflict, order.OrderNumber)
		}
		fields["status"] = status
	}
	if req.TrackingID != nil {
		fields["tracking_id"] = strings.TrimSpace(*req.TrackingID)
	}
	if req.DeliveryPartner != nil {
		fields["delivery_partner"] = strings.TrimSpace(*req.DeliveryPartner)
	}
	if len(fields) == 0 {
		return order, nil
	}

	if err := s.Repo.UpdateOrder(ctx, order.ID, fields); err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: order", ErrNotFound)
		}
		return nil, err
	}
	updated, err := s.Repo.GetOrderByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, mykafka.TopicOrderEvents, updated.OrderNumber, map[string]any{
		"type":    "order_updated",
		"orderID": updated.OrderNumber,
		"status":  updated.Status,
	})
	return updated, nil
}
