package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotConfigured = errors.New("payment gateway is not configured")

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the remote order object returned by the gateway.
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
}

type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
}

type Razorpay struct {
	BaseURL    string
	KeyID      string
	KeySecret  string
	HTTP       *http.Client
	MaxRetries int
	Backoff    time.Duration
}

func NewRazorpay(baseURL, keyID, keySecret string, maxRetries int) *Razorpay {
	return &Razorpay{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		KeyID:      keyID,
		KeySecret:  keySecret,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		MaxRetries: maxRetries,
		Backoff:    200 * time.Millisecond,
	}
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("razorpay: status %d: %s", e.status, e.msg)
}

func (e *statusError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// CreateOrder retries network errors, 429 and 5xx with exponential backoff.
func (r *Razorpay) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if r.KeyID == "" || r.KeySecret == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	wait := r.Backoff
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("razorpay: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(wait):
			}
			wait *= 2
		}

		order, err := r.createOrder(ctx, body)
		if err == nil {
			return order, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (r *Razorpay) createOrder(ctx context.Context, body []byte) (*Order, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(r.KeyID, r.KeySecret)

	resp, err := r.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("razorpay: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("razorpay: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Description != "" {
			msg = ae.Error.Code + ": " + ae.Error.Description
		}
		return nil, &statusError{status: resp.StatusCode, msg: msg}
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("razorpay: decode order: %w", err)
	}
	if order.ID == "" {
		return nil, errors.New("razorpay: order id missing in response")
	}
	return &order, nil
}

// ToMinorUnits converts a major-unit amount (rupees) to paise.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
