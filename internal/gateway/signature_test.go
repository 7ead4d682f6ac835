package gateway

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPaymentSignature(t *testing.T) {
	t.Parallel()

	const secret = "key_secret"
	good := Sign(secret, []byte("order_1|pay_1"))

	assert.True(t, VerifyPaymentSignature(secret, "order_1", "pay_1", good))
	assert.True(t, VerifyPaymentSignature(secret, "order_1", "pay_1", strings.ToUpper(good)))
	assert.False(t, VerifyPaymentSignature(secret, "order_1", "pay_2", good))
	assert.False(t, VerifyPaymentSignature("other", "order_1", "pay_1", good))
	assert.False(t, VerifyPaymentSignature(secret, "order_1", "pay_1", ""))
	assert.False(t, VerifyPaymentSignature("", "order_1", "pay_1", good))
}

func TestVerifyWebhookSignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"payment.authorized"}`)
	sig := Sign("wh_secret", body)

	assert.True(t, VerifyWebhookSignature("wh_secret", body, sig))
	assert.False(t, VerifyWebhookSignature("key_secret", body, sig))
	assert.False(t, VerifyWebhookSignature("wh_secret", append(body, ' '), sig))
}

func TestWebhookEvent_GatewayOrderID(t *testing.T) {
	t.Parallel()

	var ev WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(`{
		"event": "payment.authorized",
		"payload": {"payment": {"entity": {"id": "pay_9", "order_id": "order_9", "status": "authorized"}}}
	}`), &ev))
	assert.Equal(t, "order_9", ev.GatewayOrderID())
	assert.Equal(t, "pay_9", ev.Payload.Payment.Entity.ID)

	var paid WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(`{"event":"order.paid","payload":{"order":{"entity":{"id":"order_7"}}}}`), &paid))
	assert.Equal(t, "order_7", paid.GatewayOrderID())
}
