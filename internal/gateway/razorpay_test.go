package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRazorpay(url string, retries int) *Razorpay {
	r := NewRazorpay(url, "rzp_test_key", "rzp_test_secret", retries)
	r.Backoff = time.Millisecond
	return r
}

func TestRazorpay_CreateOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		var req CreateOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(30000), req.Amount)
		assert.Equal(t, "INR", req.Currency)

		_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", Entity: "order", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"})
	}))
	defer srv.Close()

	order, err := newTestRazorpay(srv.URL, 0).CreateOrder(context.Background(), CreateOrderRequest{
		Amount:   ToMinorUnits(decimal.NewFromInt(300)),
		Currency: "INR",
		Receipt:  "receipt_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, "created", order.Status)
}

func TestRazorpay_CreateOrder_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(Order{ID: "order_retry"})
	}))
	defer srv.Close()

	order, err := newTestRazorpay(srv.URL, 3).CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR"})
	require.NoError(t, err)
	assert.Equal(t, "order_retry", order.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRazorpay_CreateOrder_NoRetryOnClientError(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	_, err := newTestRazorpay(srv.URL, 3).CreateOrder(context.Background(), CreateOrderRequest{Amount: 1, Currency: "INR"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount too small")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRazorpay_CreateOrder_GivesUp(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestRazorpay(srv.URL, 2).CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRazorpay_NotConfigured(t *testing.T) {
	t.Parallel()

	_, err := NewRazorpay("http://unused", "", "", 0).CreateOrder(context.Background(), CreateOrderRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestToMinorUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{in: "300", want: 30000},
		{in: "99.99", want: 9999},
		{in: "0.105", want: 11},
		{in: "1234.5", want: 123450},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.in)), tt.in)
	}
}
