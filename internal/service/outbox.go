package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/models"
	"github.com/Skotchmaster/custom_stores/internal/mykafka"
	"github.com/Skotchmaster/custom_stores/internal/notify"
	"github.com/Skotchmaster/custom_stores/internal/repo"
)

const (
	defaultOutboxAttempts = 10
	defaultOutboxLease    = time.Minute
	defaultOutboxBatch    = 50
)

// OutboxDispatcher delivers outbox rows: confirmation mails through the
// Mailer and payment events through Kafka. Each row is leased before it is
// sent so the post-commit dispatch and the relay never send the same row
// twice.
type OutboxDispatcher struct {
	Repo        *repo.GormRepo
	Mailer      notify.Mailer
	Events      mykafka.Publisher
	MaxAttempts int
	Lease       time.Duration
	BatchSize   int
	Now         func() time.Time
}

func (d *OutboxDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *OutboxDispatcher) maxAttempts() int {
	if d.MaxAttempts > 0 {
		return d.MaxAttempts
	}
	return defaultOutboxAttempts
}

func (d *OutboxDispatcher) lease() time.Duration {
	if d.Lease > 0 {
		return d.Lease
	}
	return defaultOutboxLease
}

// Dispatch sends the given rows and returns how many were delivered.
func (d *OutboxDispatcher) Dispatch(ctx context.Context, events []models.OutboxEvent) int {
	sent := 0
	for i := range events {
		ok, err := d.dispatchOne(ctx, &events[i])
		if err != nil {
			logging.FromContext(ctx).Error("outbox_dispatch_error",
				"outbox_id", events[i].ID, "kind", events[i].Kind, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent
}

// DispatchPending sends every due row.
func (d *OutboxDispatcher) DispatchPending(ctx context.Context) (int, error) {
	batch := d.BatchSize
	if batch <= 0 {
		batch = defaultOutboxBatch
	}
	events, err := d.Repo.DueOutbox(ctx, d.now(), d.maxAttempts(), batch)
	if err != nil {
		return 0, err
	}
	return d.Dispatch(ctx, events), nil
}

// Run is the relay loop started by main. It stops when ctx is done.
func (d *OutboxDispatcher) Run(ctx context.Context, interval time.Duration) {
	l := logging.FromContext(ctx).With("component", "outbox_relay")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Info("outbox_relay_stopped")
			return
		case <-ticker.C:
			n, err := d.DispatchPending(ctx)
			if err != nil {
				l.Error("outbox_relay_error", "error", err)
				continue
			}
			if n > 0 {
				l.Info("outbox_relay_dispatched", "count", n)
			}
		}
	}
}

// dispatchOne returns false without error when another dispatcher holds the
// lease.
func (d *OutboxDispatcher) dispatchOne(ctx context.Context, ev *models.OutboxEvent) (bool, error) {
	claimed, err := d.Repo.ClaimOutbox(ctx, ev.ID, d.now(), d.lease())
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if err := d.send(ctx, ev); err != nil {
		if merr := d.Repo.MarkOutboxFailed(ctx, ev.ID, err.Error()); merr != nil {
			return false, fmt.Errorf("%v (mark failed: %w)", err, merr)
		}
		return false, err
	}
	return true, d.Repo.MarkOutboxDispatched(ctx, ev.ID, d.now())
}

func (d *OutboxDispatcher) send(ctx context.Context, ev *models.OutboxEvent) error {
	switch ev.Kind {
	case models.OutboxOrderConfirmation:
		var p confirmationPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Kind, err)
		}
		if d.Mailer == nil {
			return nil
		}
		return d.Mailer.SendOrderConfirmation(ctx, p.Email, p.Order)

	case models.OutboxPaymentCompleted:
		var event map[string]any
		if err := json.Unmarshal(ev.Payload, &event); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Kind, err)
		}
		if d.Events == nil {
			return nil
		}
		key, _ := event["orderID"].(string)
		return d.Events.PublishEvent(ctx, mykafka.TopicPaymentEvents, key, event)
	}
	return fmt.Errorf("unknown outbox kind %q", ev.Kind)
}
