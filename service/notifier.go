package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fashion_shop/cache"
	"fashion_shop/model"
	"fashion_shop/utils"
)

// Mailer sends transactional order emails.
type Mailer interface {
	SendOrderEmail(to string, kind utils.EmailKind, data utils.OrderEmailData) error
}

// EventNotifier publishes order events for live subscribers and emails the
// customer about payment outcomes. Delivery failures are logged, never
// returned.
type EventNotifier struct {
	publisher cache.EventPublisher
	mailer    Mailer
	appURL    string
	log       *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewEventNotifier accepts nil for either channel.
func NewEventNotifier(publisher cache.EventPublisher, mailer Mailer, appURL string, log *slog.Logger) *EventNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &EventNotifier{
		publisher: publisher,
		mailer:    mailer,
		appURL:    appURL,
		log:       log,
		now:       time.Now,
	}
}

func (n *EventNotifier) OrderChanged(ctx context.Context, order *model.Order, kind NotificationKind) {
	if order == nil {
		return
	}

	if n.publisher != nil {
		event := model.OrderEvent{
			Kind:          string(kind),
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Status:        order.Status,
			PaymentStatus: order.PaymentInfo.Status,
			At:            n.now(),
		}
		if err := n.publisher.PublishOrderEvent(context.WithoutCancel(ctx), event); err != nil {
			n.log.WarnContext(ctx, "failed to publish order event", "order_number", order.OrderNumber, "error", err)
		}
	}

	emailKind, ok := emailKindFor(kind)
	to := order.ShippingAddress.Email
	if n.mailer == nil || !ok || to == "" {
		return
	}
	data := utils.OrderEmailData{
		CustomerName: order.ShippingAddress.FullName,
		OrderNumber:  order.OrderNumber,
		TotalAmount:  order.TotalAmount,
		Currency:     order.Currency,
		Status:       string(order.Status),
	}
	if order.CancellationReason != nil {
		data.Reason = *order.CancellationReason
	}
	if n.appURL != "" {
		data.DetailLink = n.appURL + "/orders/" + order.ID
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.mailer.SendOrderEmail(to, emailKind, data); err != nil {
			n.log.Warn("failed to send order email", "order_number", data.OrderNumber, "kind", emailKind, "error", err)
		}
	}()
}

// Wait blocks until queued emails are sent.
func (n *EventNotifier) Wait() {
	n.wg.Wait()
}

func emailKindFor(kind NotificationKind) (utils.EmailKind, bool) {
	switch kind {
	case NotifyOrderCreated:
		return utils.EmailOrderCreated, true
	case NotifyPaymentCompleted:
		return utils.EmailPaymentCompleted, true
	case NotifyPaymentCancelled, NotifyOrderCancelled:
		return utils.EmailOrderCancelled, true
	default:
		return "", false
	}
}
