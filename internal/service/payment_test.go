package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/custom_stores/internal/gateway"
	"github.com/Skotchmaster/custom_stores/internal/models"
	"github.com/Skotchmaster/custom_stores/internal/mykafka"
	"github.com/Skotchmaster/custom_stores/internal/repo"
	"github.com/Skotchmaster/custom_stores/internal/transport"
)

const (
	testKeySecret     = "rzp_test_secret"
	testWebhookSecret = "rzp_webhook_secret"
)

type paymentEnv struct {
	repo     *repo.GormRepo
	carts    *CartService
	orders   *OrderService
	payments *PaymentService
	outbox   *OutboxDispatcher
	mailer   *fakeMailer
	pub      *fakePublisher
	gw       *fakeGateway
}

func newPaymentEnv(t *testing.T) *paymentEnv {
	t.Helper()
	r := repo.New(newTestDB(t))
	mailer := &fakeMailer{}
	pub := &fakePublisher{}
	gw := &fakeGateway{}
	orders := &OrderService{Repo: r, Events: pub}
	outbox := &OutboxDispatcher{Repo: r, Mailer: mailer, Events: pub}
	return &paymentEnv{
		repo:   r,
		carts:  &CartService{Repo: r, Events: pub},
		orders: orders,
		payments: &PaymentService{
			Repo:          r,
			Orders:        orders,
			Gateway:       gw,
			Outbox:        outbox,
			KeyID:         "rzp_test_key",
			KeySecret:     testKeySecret,
			WebhookSecret: testWebhookSecret,
			Currency:      "INR",
		},
		outbox: outbox,
		mailer: mailer,
		pub:    pub,
		gw:     gw,
	}
}

// checkout fills the user's cart and initiates a payment for it.
func (e *paymentEnv) checkout(t *testing.T, user *models.User, p *models.Product) (*models.Cart, *transport.InitiatePaymentResponse) {
	t.Helper()
	ctx := context.Background()

	cart, _, err := e.carts.AddItem(ctx, user.ID, p.ID, 2, "black")
	require.NoError(t, err)

	req := transport.CreateOrderRequest{DeliveryAddress: testAddress(), ContactNumber: "+911234567890"}
	for _, it := range cart.CartItems {
		req.Products = append(req.Products, transport.CreateOrderItem{ProductID: it.ProductID, Quantity: int(it.Quantity), Color: it.Color})
	}
	total := cart.TotalCartCost
	req.TotalPrice = &total

	res, err := e.payments.InitiatePayment(ctx, user.ID, req)
	require.NoError(t, err)
	return cart, res
}

func proof(gatewayOrderID, paymentID string, cartID *uuid.UUID) transport.VerifyPaymentRequest {
	return transport.VerifyPaymentRequest{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        gateway.Sign(testKeySecret, []byte(gatewayOrderID+"|"+paymentID)),
		CartID:           cartID,
	}
}

func webhook(t *testing.T, event, gatewayOrderID, paymentID string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{"id": paymentID, "order_id": gatewayOrderID, "status": "authorized"},
			},
		},
	})
	require.NoError(t, err)
	return body, gateway.Sign(testWebhookSecret, body)
}

func (e *paymentEnv) outboxCount(t *testing.T, orderID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.repo.DB.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", orderID).Count(&n).Error)
	return n
}

func TestPayment_EndToEnd(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()

	identity := &IdentityService{Repo: env.repo, Mailer: env.mailer, Events: env.pub}
	user, err := identity.Register(ctx, transport.RegisterRequest{Name: "U", Email: "u@example.com", Password: "secret1"})
	require.NoError(t, err)
	p1 := seedProduct(t, env.repo.DB, "p1", "100", true)

	cart, _, err := env.carts.AddItem(ctx, user.ID, p1.ID, 2, "black")
	require.NoError(t, err)
	assert.Equal(t, "200.00", cart.TotalCartCost.StringFixed(2))

	cart, _, err = env.carts.AddItem(ctx, user.ID, p1.ID, 1, "black")
	require.NoError(t, err)
	require.Len(t, cart.CartItems, 1)
	assert.Equal(t, uint(3), cart.CartItems[0].Quantity)
	assert.Equal(t, "300.00", cart.TotalCartCost.StringFixed(2))

	total := cart.TotalCartCost
	res, err := env.payments.InitiatePayment(ctx, user.ID, transport.CreateOrderRequest{
		Products:        []transport.CreateOrderItem{{ProductID: p1.ID, Quantity: 3, Color: "black"}},
		DeliveryAddress: testAddress(),
		ContactNumber:   "+911234567890",
		TotalPrice:      &total,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, res.CreatedOrder.Status)
	assert.Equal(t, models.PaymentStatusPending, res.CreatedOrder.PaymentStatus)
	assert.Equal(t, res.GatewayOrder.ID, res.CreatedOrder.GatewayOrderID)
	require.Len(t, env.gw.calls, 1)
	assert.Equal(t, int64(30000), env.gw.calls[0].Amount)

	order, err := env.payments.VerifyClientProof(ctx, proof(res.GatewayOrder.ID, "pay_1", &cart.ID))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, "pay_1", order.PaymentID)

	cart, err = env.carts.GetCart(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.CartItems)
	assert.True(t, cart.TotalCartCost.IsZero())

	mails := env.mailer.byKind("order")
	require.Len(t, mails, 1)
	assert.Equal(t, "u@example.com", mails[0].To)
	assert.Equal(t, res.CreatedOrder.OrderNumber, mails[0].Order.OrderNumber)
	assert.Len(t, env.pub.onTopic(mykafka.TopicPaymentEvents), 1)
}

func TestPayment_VerifyIsIdempotent(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	user := seedUser(t, env.repo.DB, "idem@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)
	_, res := env.checkout(t, user, p)

	for i := 0; i < 2; i++ {
		order, err := env.payments.VerifyClientProof(ctx, proof(res.GatewayOrder.ID, "pay_1", nil))
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
	}

	n, err := env.outbox.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, env.mailer.byKind("order"), 1)
	assert.Len(t, env.pub.onTopic(mykafka.TopicPaymentEvents), 1)
	assert.Equal(t, int64(2), env.outboxCount(t, res.CreatedOrder.ID))
}

func TestPayment_TamperedSignatureDeletesOrder(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	user := seedUser(t, env.repo.DB, "tamper@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)
	_, res := env.checkout(t, user, p)

	bad := proof(res.GatewayOrder.ID, "pay_1", nil)
	bad.Signature = gateway.Sign("not-the-secret", []byte(res.GatewayOrder.ID+"|pay_1"))

	_, err := env.payments.VerifyClientProof(ctx, bad)
	assert.ErrorIs(t, err, ErrSignature)

	_, err = env.orders.GetOrder(ctx, res.CreatedOrder.OrderNumber, user.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, env.mailer.byKind("order"))

	_, err = env.payments.VerifyClientProof(ctx, proof(res.GatewayOrder.ID, "pay_1", nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPayment_TamperedSignatureKeepsCompletedOrder(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	user := seedUser(t, env.repo.DB, "keep@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)
	_, res := env.checkout(t, user, p)

	_, err := env.payments.VerifyClientProof(ctx, proof(res.GatewayOrder.ID, "pay_1", nil))
	require.NoError(t, err)

	bad := proof(res.GatewayOrder.ID, "pay_1", nil)
	bad.Signature = "deadbeef"
	_, err = env.payments.VerifyClientProof(ctx, bad)
	assert.ErrorIs(t, err, ErrSignature)

	order, err := env.orders.GetOrder(ctx, res.CreatedOrder.OrderNumber, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
}

func TestPayment_VerifyValidation(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)

	_, err := env.payments.VerifyClientProof(context.Background(), transport.VerifyPaymentRequest{GatewayOrderID: "order_1"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPayment_PlaceholderGatewayIDMatchesNoOrder(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	owner := seedUser(t, env.repo.DB, "owner@example.com")
	intruder := seedUser(t, env.repo.DB, "intruder@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)

	unpaid, err := env.orders.CreateOrder(ctx, owner.ID, orderRequest(
		transport.CreateOrderItem{ProductID: p.ID, Quantity: 1, Color: "black"},
	))
	require.NoError(t, err)
	require.Equal(t, models.PendingMarker, unpaid.GatewayOrderID)

	for _, id := range []string{models.PendingMarker, " Pending ", ""} {
		_, err = env.payments.VerifyClientProof(ctx, transport.VerifyPaymentRequest{
			GatewayOrderID:   id,
			GatewayPaymentID: "pay_x",
			Signature:        "00",
		})
		assert.ErrorIs(t, err, ErrValidation, "verify %q", id)

		_, err = env.payments.VerifyClientProof(ctx, proof(id, "pay_x", nil))
		assert.ErrorIs(t, err, ErrValidation, "signed verify %q", id)

		assert.ErrorIs(t, env.payments.CancelPayment(ctx, owner.ID, id), ErrValidation, "cancel %q", id)

		_, err = env.payments.ReportPaymentFailure(ctx, owner.ID, id)
		assert.ErrorIs(t, err, ErrValidation, "failure %q", id)
	}

	for _, event := range []string{gateway.EventPaymentAuthorized, gateway.EventPaymentFailed} {
		body, sig := webhook(t, event, models.PendingMarker, "pay_x")
		assert.ErrorIs(t, env.payments.ReconcileWebhook(ctx, body, sig), ErrValidation, event)
	}

	_, err = env.repo.DeletePendingOrder(ctx, models.PendingMarker, nil)
	assert.True(t, repo.IsNotFound(err))
	_, err = env.repo.GetOrderByGatewayID(ctx, models.PendingMarker)
	assert.True(t, repo.IsNotFound(err))

	stored, err := env.orders.GetOrder(ctx, unpaid.OrderNumber, owner.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, models.PendingMarker, stored.PaymentID)
	require.Len(t, stored.Items, 1)
	assert.Empty(t, env.mailer.byKind("order"))

	_, err = env.orders.GetOrder(ctx, unpaid.OrderNumber, intruder.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPayment_InitiateCompensatesGatewayFailure(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	env.gw.err = errBoom
	user := seedUser(t, env.repo.DB, "gwfail@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)

	_, err := env.payments.InitiatePayment(context.Background(), user.ID, transport.CreateOrderRequest{
		Products:        []transport.CreateOrderItem{{ProductID: p.ID, Quantity: 1, Color: "black"}},
		DeliveryAddress: testAddress(),
		ContactNumber:   "+911234567890",
	})
	assert.ErrorIs(t, err, ErrGateway)

	var orders, items int64
	require.NoError(t, env.repo.DB.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, env.repo.DB.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)
}

func TestPayment_InitiateMissingProduct(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	user := seedUser(t, env.repo.DB, "missing@example.com")

	_, err := env.payments.InitiatePayment(context.Background(), user.ID, transport.CreateOrderRequest{
		Products:        []transport.CreateOrderItem{{ProductID: uuid.New(), Quantity: 1, Color: "black"}},
		DeliveryAddress: testAddress(),
		ContactNumber:   "+911234567890",
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, env.gw.calls)
}

func TestPayment_WebhookAndVerifyRace(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	p := seedProduct(t, env.repo.DB, "p", "100", true)

	const rounds = 10
	for i := 0; i < rounds; i++ {
		user := seedUser(t, env.repo.DB, uuid.NewString()+"@example.com")
		_, res := env.checkout(t, user, p)
		gid := res.GatewayOrder.ID
		body, sig := webhook(t, gateway.EventPaymentAuthorized, gid, "pay_race")

		var wg sync.WaitGroup
		var verifyErr, hookErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, verifyErr = env.payments.VerifyClientProof(ctx, proof(gid, "pay_race", nil))
		}()
		go func() {
			defer wg.Done()
			hookErr = env.payments.ReconcileWebhook(ctx, body, sig)
		}()
		wg.Wait()
		require.NoError(t, verifyErr)
		require.NoError(t, hookErr)

		order, err := env.repo.GetOrderByGatewayID(ctx, gid)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
		assert.Equal(t, int64(2), env.outboxCount(t, order.ID))

		cart, err := env.carts.GetCart(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, cart.CartItems)
	}

	assert.Len(t, env.mailer.byKind("order"), rounds)
	assert.Len(t, env.pub.onTopic(mykafka.TopicPaymentEvents), rounds)
}

func TestPayment_WebhookSignatureAndEvents(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	user := seedUser(t, env.repo.DB, "hook@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)
	_, res := env.checkout(t, user, p)
	gid := res.GatewayOrder.ID

	body, _ := webhook(t, gateway.EventPaymentAuthorized, gid, "pay_1")
	wrongKey := gateway.Sign(testKeySecret, body)
	assert.ErrorIs(t, env.payments.ReconcileWebhook(ctx, body, wrongKey), ErrSignature)

	order, err := env.repo.GetOrderByGatewayID(ctx, gid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)

	unknown, sig := webhook(t, "refund.created", gid, "pay_1")
	assert.NoError(t, env.payments.ReconcileWebhook(ctx, unknown, sig))

	missing, sig := webhook(t, gateway.EventPaymentAuthorized, "order_nope", "pay_1")
	assert.ErrorIs(t, env.payments.ReconcileWebhook(ctx, missing, sig), ErrIntegrity)

	garbage := []byte("{not json")
	assert.ErrorIs(t, env.payments.ReconcileWebhook(ctx, garbage, gateway.Sign(testWebhookSecret, garbage)), ErrValidation)
}

func TestPayment_WebhookFailedIsTerminal(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	user := seedUser(t, env.repo.DB, "failed@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)
	_, res := env.checkout(t, user, p)
	gid := res.GatewayOrder.ID

	body, sig := webhook(t, gateway.EventPaymentFailed, gid, "pay_1")
	require.NoError(t, env.payments.ReconcileWebhook(ctx, body, sig))

	order, err := env.repo.GetOrderByGatewayID(ctx, gid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, models.FailedMarker, order.PaymentID)

	body, sig = webhook(t, gateway.EventPaymentAuthorized, gid, "pay_2")
	assert.ErrorIs(t, env.payments.ReconcileWebhook(ctx, body, sig), ErrIntegrity)

	_, err = env.payments.VerifyClientProof(ctx, proof(gid, "pay_2", nil))
	assert.ErrorIs(t, err, ErrConflict)

	order, err = env.repo.GetOrderByGatewayID(ctx, gid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)

	cart, err := env.carts.GetCart(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.CartItems, 1)
	assert.Empty(t, env.mailer.byKind("order"))
}

func TestPayment_CancelPayment(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	user := seedUser(t, env.repo.DB, "cancel@example.com")
	other := seedUser(t, env.repo.DB, "cancel-other@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)

	_, pending := env.checkout(t, user, p)
	assert.ErrorIs(t, env.payments.CancelPayment(ctx, other.ID, pending.GatewayOrder.ID), ErrNotFound)
	require.NoError(t, env.payments.CancelPayment(ctx, user.ID, pending.GatewayOrder.ID))
	assert.ErrorIs(t, env.payments.CancelPayment(ctx, user.ID, pending.GatewayOrder.ID), ErrNotFound)

	_, paid := env.checkout(t, user, p)
	_, err := env.payments.VerifyClientProof(ctx, proof(paid.GatewayOrder.ID, "pay_1", nil))
	require.NoError(t, err)
	assert.ErrorIs(t, env.payments.CancelPayment(ctx, user.ID, paid.GatewayOrder.ID), ErrConflict)

	assert.ErrorIs(t, env.payments.CancelPayment(ctx, user.ID, ""), ErrValidation)
}

func TestPayment_ReportPaymentFailure(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	user := seedUser(t, env.repo.DB, "report@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)
	_, res := env.checkout(t, user, p)

	order, err := env.payments.ReportPaymentFailure(ctx, user.ID, res.GatewayOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)

	_, err = env.payments.ReportPaymentFailure(ctx, user.ID, res.GatewayOrder.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.payments.ReportPaymentFailure(ctx, user.ID, "order_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPayment_GatewayKey(t *testing.T) {
	t.Parallel()

	key, err := (&PaymentService{KeyID: "rzp_test_key"}).GatewayKey()
	require.NoError(t, err)
	assert.Equal(t, "rzp_test_key", key)

	_, err = (&PaymentService{}).GatewayKey()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOutbox_RetriesFailedDelivery(t *testing.T) {
	t.Parallel()
	env := newPaymentEnv(t)
	ctx := context.Background()
	user := seedUser(t, env.repo.DB, "outbox@example.com")
	p := seedProduct(t, env.repo.DB, "p", "100", true)
	_, res := env.checkout(t, user, p)

	env.mailer.setFail(errBoom)
	_, err := env.payments.VerifyClientProof(ctx, proof(res.GatewayOrder.ID, "pay_1", nil))
	require.NoError(t, err)

	var pending models.OutboxEvent
	require.NoError(t, env.repo.DB.
		Where("kind = ? AND aggregate_id = ?", models.OutboxOrderConfirmation, res.CreatedOrder.ID).
		First(&pending).Error)
	assert.Nil(t, pending.DispatchedAt)
	assert.Equal(t, 1, pending.Attempts)
	assert.Contains(t, pending.LastError, "boom")

	env.mailer.setFail(nil)
	n, err := env.outbox.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, env.mailer.byKind("order"), 1)
	assert.Equal(t, "pay_1", env.mailer.byKind("order")[0].Order.PaymentID)
	assert.True(t, env.mailer.byKind("order")[0].Order.TotalPrice.Equal(decimal.NewFromInt(200)))

	n, err = env.outbox.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
