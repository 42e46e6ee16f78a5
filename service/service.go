package service

import (
	"context"
	"log/slog"
	"time"

	"fashion_shop/model"
	"fashion_shop/payos"
)

// PaymentGateway is the payment-link provider as seen by the services.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, order *model.Order) (*payos.PaymentLink, error)
	GetPaymentInfo(ctx context.Context, orderCode int64) (*payos.PaymentLinkInfo, error)
	CancelPaymentLink(ctx context.Context, orderCode int64, reason string) (*payos.PaymentLinkInfo, error)
	VerifyPaymentWebhookData(payload payos.WebhookPayload) (*payos.WebhookData, error)
}

type NotificationKind string

const (
	NotifyOrderCreated     NotificationKind = "order_created"
	NotifyPaymentCompleted NotificationKind = "payment_completed"
	NotifyPaymentCancelled NotificationKind = "payment_cancelled"
	NotifyOrderCancelled   NotificationKind = "order_cancelled"
	NotifyStatusChanged    NotificationKind = "status_changed"
)

// Notifier receives an order after a state change was actually written.
// Implementations must not block the caller on slow delivery.
type Notifier interface {
	OrderChanged(ctx context.Context, order *model.Order, kind NotificationKind)
}

type nopNotifier struct{}

func (nopNotifier) OrderChanged(context.Context, *model.Order, NotificationKind) {}

type base struct {
	log      *slog.Logger
	now      func() time.Time
	notifier Notifier
}

func newBase(opts []Option) base {
	b := base{log: slog.Default(), now: time.Now, notifier: nopNotifier{}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

type Option func(*base)

func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(b *base) {
		if n != nil {
			b.notifier = n
		}
	}
}

// PageParams normalizes page and limit: page defaults to 1, limit defaults
// to 10 and is capped at 100.
func PageParams(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func pageInfo(page, limit int, total int64) model.PageInfo {
	pages := 0
	if total > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return model.PageInfo{Page: page, Limit: limit, Total: total, Pages: pages}
}
