package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/custom_stores/internal/gateway"
	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/models"
	"github.com/Skotchmaster/custom_stores/internal/notify"
	"github.com/Skotchmaster/custom_stores/internal/repo"
	"github.com/Skotchmaster/custom_stores/internal/transport"
)

type PaymentService struct {
	Repo    *repo.GormRepo
	Orders  *OrderService
	Gateway gateway.Client
	Outbox  *OutboxDispatcher

	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string

	Now func() time.Time
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// InitiatePayment creates the local order and then the gateway order. When
// the gateway refuses, the local order is deleted again so no orphan
// Pending order is left behind.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID uuid.UUID, req transport.CreateOrderRequest) (*transport.InitiatePaymentResponse, error) {
	l := logging.FromContext(ctx).With("svc", "payment.initiate")

	order, err := s.Orders.CreateOrder(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	gwOrder, err := s.Gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   gateway.ToMinorUnits(order.TotalPrice),
		Currency: s.Currency,
		Receipt:  fmt.Sprintf("receipt_%d", s.now().UnixMilli()),
		Notes:    map[string]string{"order_id": order.OrderNumber},
	})
	if err == nil {
		err = s.Repo.SetGatewayOrderID(ctx, order.ID, gwOrder.ID)
	}
	if err != nil {
		l.Error("gateway_order_error", "order_id", order.OrderNumber, "error", err)
		if derr := s.Repo.DeleteOrder(context.WithoutCancel(ctx), order.ID); derr != nil {
			l.Error("compensation_error", "order_id", order.OrderNumber, "error", derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	order.GatewayOrderID = gwOrder.ID
	l.Info("payment_initiated", "order_id", order.OrderNumber, "gateway_order_id", gwOrder.ID)
	return &transport.InitiatePaymentResponse{GatewayOrder: gwOrder, CreatedOrder: order}, nil
}

// VerifyClientProof checks the signature the checkout hands back to the
// client. A mismatch deletes the order while it is still Pending; a valid
// proof for an already completed order succeeds without side effects.
func (s *PaymentService) VerifyClientProof(ctx context.Context, req transport.VerifyPaymentRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "payment.verify", "gateway_order_id", req.GatewayOrderID)

	if strings.TrimSpace(req.GatewayPaymentID) == "" || strings.TrimSpace(req.Signature) == "" {
		return nil, fmt.Errorf("%w: gateway_order_id, gateway_payment_id and signature are required", ErrValidation)
	}
	if err := requireGatewayOrderID(req.GatewayOrderID); err != nil {
		return nil, err
	}

	if !gateway.VerifyPaymentSignature(s.KeySecret, req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		order, err := s.Repo.DeletePendingOrder(context.WithoutCancel(ctx), req.GatewayOrderID, nil)
		switch {
		case err == nil:
			l.Warn("signature_mismatch_order_deleted", "order_id", order.OrderNumber)
		case repo.IsNotFound(err), errors.Is(err, repo.ErrNotPending):
			l.Warn("signature_mismatch", "reason", err.Error())
		default:
			l.Error("signature_mismatch_delete_error", "error", err)
		}
		return nil, ErrSignature
	}

	order, completed, err := s.complete(ctx, req.GatewayOrderID, req.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if !completed && order.PaymentStatus != models.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: payment for order %s is %s", ErrConflict, order.OrderNumber, order.PaymentStatus)
	}

	if req.CartID != nil {
		cart, err := s.Repo.GetCartByID(ctx, *req.CartID)
		if err != nil || cart.UserID != order.UserID {
			l.Warn("verify_cart_mismatch", "cart_id", *req.CartID, "owner", order.UserID)
		}
	}

	if completed {
		l.Info("payment_completed", "order_id", order.OrderNumber, "source", "verify")
	} else {
		l.Info("payment_already_completed", "order_id", order.OrderNumber)
	}
	return order, nil
}

// ReconcileWebhook handles a gateway callback. The returned error is for
// logging only; the HTTP layer answers 200 regardless.
func (s *PaymentService) ReconcileWebhook(ctx context.Context, body []byte, signature string) error {
	l := logging.FromContext(ctx).With("svc", "payment.webhook")

	if !gateway.VerifyWebhookSignature(s.WebhookSecret, body, signature) {
		return ErrSignature
	}

	var ev gateway.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: malformed webhook body: %v", ErrValidation, err)
	}
	gid := ev.GatewayOrderID()
	l = l.With("event", ev.Event, "gateway_order_id", gid)

	switch ev.Event {
	case gateway.EventPaymentAuthorized, gateway.EventPaymentCaptured, gateway.EventOrderPaid:
		pid := ev.Payload.Payment.Entity.ID
		if !models.GatewayAssigned(gid) || pid == "" {
			return fmt.Errorf("%w: %s without order or payment id", ErrValidation, ev.Event)
		}
		order, completed, err := s.complete(ctx, gid, pid)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: %s for unknown order %s", ErrIntegrity, ev.Event, gid)
			}
			return err
		}
		switch {
		case completed:
			l.Info("payment_completed", "order_id", order.OrderNumber, "source", "webhook")
		case order.PaymentStatus == models.PaymentStatusCompleted:
			l.Info("payment_already_completed", "order_id", order.OrderNumber)
		default:
			return fmt.Errorf("%w: %s for order %s in state %s", ErrIntegrity, ev.Event, order.OrderNumber, order.PaymentStatus)
		}
		return nil

	case gateway.EventPaymentFailed:
		if !models.GatewayAssigned(gid) {
			return fmt.Errorf("%w: %s without order id", ErrValidation, ev.Event)
		}
		order, updated, err := s.Repo.FailPayment(ctx, gid, nil)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("%w: %s for unknown order %s", ErrNotFound, ev.Event, gid)
			}
			return err
		}
		if updated {
			l.Info("payment_failed", "order_id", order.OrderNumber,
				"code", ev.Payload.Payment.Entity.ErrorCode,
				"description", ev.Payload.Payment.Entity.ErrorDescription)
		} else {
			l.Info("payment_failed_ignored", "order_id", order.OrderNumber, "payment_status", order.PaymentStatus)
		}
		return nil

	default:
		l.Info("webhook_event_ignored")
		return nil
	}
}

// CancelPayment deletes the user's order while it is still Pending.
func (s *PaymentService) CancelPayment(ctx context.Context, userID uuid.UUID, gatewayOrderID string) error {
	if err := requireGatewayOrderID(gatewayOrderID); err != nil {
		return err
	}
	order, err := s.Repo.DeletePendingOrder(ctx, gatewayOrderID, &userID)
	if err != nil {
		switch {
		case repo.IsNotFound(err):
			return fmt.Errorf("%w: order", ErrNotFound)
		case errors.Is(err, repo.ErrNotPending):
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	logging.FromContext(ctx).Info("payment_cancelled", "order_id", order.OrderNumber)
	return nil
}

// ReportPaymentFailure records a failure the checkout reported to the client.
func (s *PaymentService) ReportPaymentFailure(ctx context.Context, userID uuid.UUID, gatewayOrderID string) (*models.Order, error) {
	if err := requireGatewayOrderID(gatewayOrderID); err != nil {
		return nil, err
	}
	order, updated, err := s.Repo.FailPayment(ctx, gatewayOrderID, &userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: order", ErrNotFound)
		}
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("%w: payment for order %s is %s", ErrConflict, order.OrderNumber, order.PaymentStatus)
	}
	return order, nil
}

func requireGatewayOrderID(id string) error {
	if !models.GatewayAssigned(id) {
		return fmt.Errorf("%w: gatewayOrderId must name a gateway order", ErrValidation)
	}
	return nil
}

func (s *PaymentService) GatewayKey() (string, error) {
	if s.KeyID == "" {
		return "", fmt.Errorf("%w: payment gateway key is not configured", ErrNotFound)
	}
	return s.KeyID, nil
}

// complete runs the shared Pending -> Completed transition and dispatches
// the outbox rows it produced.
func (s *PaymentService) complete(ctx context.Context, gatewayOrderID, paymentID string) (*models.Order, bool, error) {
	order, completed, events, err := s.Repo.CompletePayment(ctx, gatewayOrderID, paymentID, s.now(), confirmationEvents)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, false, fmt.Errorf("%w: order", ErrNotFound)
		}
		return nil, false, err
	}
	if completed && s.Outbox != nil {
		s.Outbox.Dispatch(context.WithoutCancel(ctx), events)
	}
	return order, completed, nil
}

type confirmationPayload struct {
	Email string                   `json:"email"`
	Order notify.OrderConfirmation `json:"order"`
}

func confirmationEvents(order *models.Order, owner *models.User) ([]models.OutboxEvent, error) {
	lines := make([]notify.OrderLine, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, notify.OrderLine{
			Name:     it.Name,
			Image:    it.Image,
			Quantity: it.Quantity,
			Color:    it.Color,
			Price:    it.Price,
		})
	}
	mail, err := json.Marshal(confirmationPayload{
		Email: owner.Email,
		Order: notify.OrderConfirmation{
			OrderNumber: order.OrderNumber,
			PaymentID:   order.PaymentID,
			Items:       lines,
			TotalPrice:  order.TotalPrice,
			Street:      order.DeliveryAddress.Street,
			City:        order.DeliveryAddress.City,
			State:       order.DeliveryAddress.State,
			ZipCode:     order.DeliveryAddress.ZipCode,
			Country:     order.DeliveryAddress.Country,
		},
	})
	if err != nil {
		return nil, err
	}

	event, err := json.Marshal(map[string]any{
		"type":       "payment_completed",
		"orderID":    order.OrderNumber,
		"userID":     order.UserID,
		"paymentID":  order.PaymentID,
		"totalPrice": order.TotalPrice.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}

	return []models.OutboxEvent{
		{Kind: models.OutboxOrderConfirmation, AggregateID: order.ID, Payload: mail},
		{Kind: models.OutboxPaymentCompleted, AggregateID: order.ID, Payload: event},
	}, nil
}
