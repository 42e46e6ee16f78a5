package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"fashion_shop/cache"
	"fashion_shop/model"
	"fashion_shop/payos"
	"fashion_shop/repository"

	"github.com/jinzhu/copier"
)

type PaymentService struct {
	base
	orders  *OrderService
	gateway PaymentGateway
	deduper cache.Deduper
}

// NewPaymentService builds the payment workflow. deduper may be nil; the
// conditional writes keep webhook handling idempotent without it.
func NewPaymentService(orders *OrderService, gateway PaymentGateway, deduper cache.Deduper, opts ...Option) *PaymentService {
	return &PaymentService{
		base:    newBase(opts),
		orders:  orders,
		gateway: gateway,
		deduper: deduper,
	}
}

// WebhookResult describes what a webhook delivery did.
type WebhookResult struct {
	OrderCode   int64               `json:"orderCode"`
	OrderNumber string              `json:"orderNumber,omitempty"`
	Status      model.PaymentStatus `json:"status,omitempty"`
	Applied     bool                `json:"applied"`
	Duplicate   bool                `json:"duplicate,omitempty"`
}

type ReconcileReport struct {
	Checked int
	Updated int
	Failed  int
}

type paymentOutcome struct {
	Source        string
	TransactionID *string
	PaidAt        *time.Time
	Reason        string
}

// CreatePayment opens a PayOS payment link for the caller's pending order. An
// order that already has a link gets that link back.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, orderID string) (*model.PaymentLinkResult, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID, model.OwnerScope(userID))
	if err != nil {
		return nil, err
	}
	if err := checkPayable(order); err != nil {
		return nil, err
	}
	if order.PaymentInfo.PayOSOrderCode != nil {
		return existingLink(order), nil
	}

	link, err := s.gateway.CreatePaymentLink(ctx, order)
	if err != nil {
		s.log.ErrorContext(ctx, "payos create payment link failed", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("failed to create payment link: %w", err)
	}

	processing := model.PaymentStatusProcessing
	patch := model.PaymentInfoPatch{
		Status:         &processing,
		PayOSOrderCode: &link.OrderCode,
		PaymentLinkID:  &link.PaymentLinkID,
		CheckoutURL:    &link.CheckoutURL,
	}
	guard := repository.PaymentGuard{RequireNoOrderCode: true, UnlessStatus: model.TerminalPaymentStatuses}
	updated, err := s.orders.UpdateOrderPaymentInfo(ctx, order.ID, patch, guard)
	if err != nil {
		s.discardLink(ctx, link.OrderCode)
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("failed to save payment link: %w", err)
		}
		// a concurrent request stored its link first
		current, err := s.orders.GetOrderByID(ctx, order.ID, model.AdminScope())
		if err != nil {
			return nil, err
		}
		if err := checkPayable(current); err != nil {
			return nil, err
		}
		if current.PaymentInfo.PayOSOrderCode == nil {
			return nil, ErrOrderNotPayable
		}
		return existingLink(current), nil
	}

	s.log.InfoContext(ctx, "payment link created",
		"order_id", updated.ID, "order_number", updated.OrderNumber, "order_code", link.OrderCode)
	s.notifier.OrderChanged(ctx, updated, NotifyStatusChanged)
	return &model.PaymentLinkResult{
		OrderID:       updated.ID,
		OrderNumber:   updated.OrderNumber,
		OrderCode:     link.OrderCode,
		PaymentLinkID: link.PaymentLinkID,
		CheckoutURL:   link.CheckoutURL,
		QRCode:        link.QRCode,
		Amount:        link.Amount,
		Description:   link.Description,
		Status:        processing,
	}, nil
}

func (s *PaymentService) discardLink(ctx context.Context, orderCode int64) {
	if _, err := s.gateway.CancelPaymentLink(ctx, orderCode, "Superseded payment link"); err != nil {
		s.log.WarnContext(ctx, "failed to cancel unused payment link", "order_code", orderCode, "error", err)
	}
}

func checkPayable(order *model.Order) error {
	if order.PaymentInfo.Method != model.PaymentMethodPayOS {
		return ErrUnsupportedPaymentMethod
	}
	switch order.PaymentInfo.Status {
	case model.PaymentStatusCompleted:
		return ErrPaymentAlreadyCompleted
	case model.PaymentStatusCancelled, model.PaymentStatusExpired:
		return ErrOrderNotPayable
	}
	if order.Status != model.OrderStatusPending {
		return ErrOrderNotPayable
	}
	return nil
}

func existingLink(order *model.Order) *model.PaymentLinkResult {
	result := &model.PaymentLinkResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      int64(math.Round(order.TotalAmount)),
		Description: payos.CreateSafeDescription(order.OrderNumber),
		Status:      order.PaymentInfo.Status,
	}
	if order.PaymentInfo.PayOSOrderCode != nil {
		result.OrderCode = *order.PaymentInfo.PayOSOrderCode
	}
	if order.PaymentInfo.PaymentLinkID != nil {
		result.PaymentLinkID = *order.PaymentInfo.PaymentLinkID
	}
	if order.PaymentInfo.CheckoutURL != nil {
		result.CheckoutURL = *order.PaymentInfo.CheckoutURL
	}
	return result
}

// GetPaymentStatus asks PayOS for the live record. Nothing is written.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, scope model.Scope, orderCode int64) (*model.PaymentStatusResult, error) {
	order, err := s.orders.GetOrderByPayOSCode(ctx, orderCode, scope)
	if err != nil {
		return nil, err
	}

	info, err := s.gateway.GetPaymentInfo(ctx, orderCode)
	if err != nil {
		s.log.ErrorContext(ctx, "payos get payment info failed", "order_code", orderCode, "error", err)
		return nil, fmt.Errorf("failed to get payment info: %w", err)
	}

	result := &model.PaymentStatusResult{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		OrderCode:       orderCode,
		Status:          payos.MapPaymentStatus(info.Status),
		ProviderStatus:  info.Status,
		Amount:          info.Amount,
		AmountPaid:      info.AmountPaid,
		AmountRemaining: info.AmountRemaining,
		Transactions:    []model.PaymentTransaction{},
	}
	if err := copier.Copy(&result.Transactions, &info.Transactions); err != nil {
		return nil, fmt.Errorf("copy transactions: %w", err)
	}
	return result, nil
}

// CancelPayment cancels the link with PayOS and then the payment and order.
// Cancelling an already cancelled or expired payment is a no-op.
func (s *PaymentService) CancelPayment(ctx context.Context, scope model.Scope, orderCode int64, reason string) (*model.Order, error) {
	order, err := s.orders.GetOrderByPayOSCode(ctx, orderCode, scope)
	if err != nil {
		return nil, err
	}
	switch order.PaymentInfo.Status {
	case model.PaymentStatusCompleted:
		return nil, ErrPaymentAlreadyCompleted
	case model.PaymentStatusCancelled, model.PaymentStatusExpired:
		return order, nil
	}

	if _, err := s.gateway.CancelPaymentLink(ctx, orderCode, reason); err != nil {
		s.log.ErrorContext(ctx, "payos cancel payment link failed", "order_code", orderCode, "error", err)
		return nil, fmt.Errorf("failed to cancel payment link: %w", err)
	}

	if reason == "" {
		reason = payos.DefaultCancelReason
	}
	updated, _, err := s.applyPaymentOutcome(ctx, order, model.PaymentStatusCancelled, paymentOutcome{Source: "cancel", Reason: reason})
	if errors.Is(err, ErrPaymentFinalized) {
		return nil, ErrPaymentAlreadyCompleted
	}
	return updated, err
}

// HandleWebhook verifies and applies a PayOS webhook delivery. Repeated
// deliveries are acknowledged without side effects.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload payos.WebhookPayload) (*WebhookResult, error) {
	data, err := s.gateway.VerifyPaymentWebhookData(payload)
	if err != nil {
		s.log.WarnContext(ctx, "rejected payos webhook", "error", err)
		return nil, err
	}

	key := strconv.FormatInt(data.OrderCode, 10) + ":" + data.Reference
	acquired := false
	if s.deduper != nil {
		ok, err := s.deduper.Acquire(ctx, key)
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "webhook dedupe unavailable", "order_code", data.OrderCode, "error", err)
		case !ok:
			s.log.InfoContext(ctx, "duplicate payos webhook ignored", "order_code", data.OrderCode, "reference", data.Reference)
			return &WebhookResult{OrderCode: data.OrderCode, Duplicate: true}, nil
		default:
			acquired = true
		}
	}

	result, err := s.processWebhook(ctx, data)
	if err != nil && acquired {
		// let the provider's retry through
		if rerr := s.deduper.Release(context.WithoutCancel(ctx), key); rerr != nil {
			s.log.WarnContext(ctx, "failed to release webhook dedupe key", "key", key, "error", rerr)
		}
	}
	return result, err
}

func (s *PaymentService) processWebhook(ctx context.Context, data *payos.WebhookData) (*WebhookResult, error) {
	order, err := s.orders.GetOrderByPayOSCode(ctx, data.OrderCode, model.AdminScope())
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			s.log.WarnContext(ctx, "payos webhook for unknown order code", "order_code", data.OrderCode)
		}
		return nil, err
	}

	status := payos.MapPaymentStatus(payos.WebhookStatus(data))
	outcome := paymentOutcome{Source: "webhook"}
	if status == model.PaymentStatusCompleted {
		if data.Reference != "" {
			ref := data.Reference
			outcome.TransactionID = &ref
		}
		paidAt, err := payos.ParseTransactionTime(data.TransactionDateTime)
		if err != nil {
			paidAt = s.now()
		}
		outcome.PaidAt = &paidAt
		if expected := int64(math.Round(order.TotalAmount)); data.Amount != expected {
			s.log.WarnContext(ctx, "payos webhook amount differs from order total",
				"order_code", data.OrderCode, "amount", data.Amount, "expected", expected)
		}
	}

	updated, applied, err := s.applyPaymentOutcome(ctx, order, status, outcome)
	if errors.Is(err, ErrPaymentFinalized) {
		s.log.WarnContext(ctx, "payos webhook ignored for finalized payment",
			"order_code", data.OrderCode, "current", order.PaymentInfo.Status, "requested", status)
		return &WebhookResult{OrderCode: data.OrderCode, OrderNumber: order.OrderNumber, Status: order.PaymentInfo.Status}, nil
	}
	if err != nil {
		return nil, err
	}
	return &WebhookResult{
		OrderCode:   data.OrderCode,
		OrderNumber: updated.OrderNumber,
		Status:      updated.PaymentInfo.Status,
		Applied:     applied,
	}, nil
}

// OverrideStatus is the admin's manual payment status change.
func (s *PaymentService) OverrideStatus(ctx context.Context, orderCode int64, rawStatus string) (*model.Order, error) {
	status, ok := model.ParsePaymentStatus(rawStatus)
	if !ok {
		return nil, ErrInvalidPaymentStatus
	}
	order, err := s.orders.GetOrderByPayOSCode(ctx, orderCode, model.AdminScope())
	if err != nil {
		return nil, err
	}

	outcome := paymentOutcome{Source: "manual"}
	if status == model.PaymentStatusCompleted {
		now := s.now()
		outcome.PaidAt = &now
	}
	updated, _, err := s.applyPaymentOutcome(ctx, order, status, outcome)
	return updated, err
}

// Reconcile polls PayOS for payments stuck in processing longer than
// staleAfter and applies any final status it reports.
func (s *PaymentService) Reconcile(ctx context.Context, staleAfter time.Duration, limit int) (ReconcileReport, error) {
	var report ReconcileReport
	cutoff := s.now().Add(-staleAfter)
	orders, err := s.orders.orders.List(ctx, repository.OrderFilter{
		PaymentMethod: model.PaymentMethodPayOS,
		PaymentStatus: model.PaymentStatusProcessing,
		UpdatedBefore: &cutoff,
		SortBy:        "updated_at",
		Limit:         limit,
	})
	if err != nil {
		return report, fmt.Errorf("list processing payments: %w", err)
	}

	for i := range orders {
		order := &orders[i]
		if order.PaymentInfo.PayOSOrderCode == nil {
			continue
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		code := *order.PaymentInfo.PayOSOrderCode
		report.Checked++

		info, err := s.gateway.GetPaymentInfo(ctx, code)
		if err != nil {
			report.Failed++
			s.log.WarnContext(ctx, "reconcile: payos query failed", "order_code", code, "error", err)
			if payos.IsTransient(err) {
				break
			}
			continue
		}

		status := payos.MapPaymentStatus(info.Status)
		if !status.IsTerminal() {
			continue
		}
		outcome := paymentOutcome{Source: "reconcile"}
		if status == model.PaymentStatusCompleted {
			paidAt := s.now()
			if n := len(info.Transactions); n > 0 {
				last := info.Transactions[n-1]
				if last.Reference != "" {
					ref := last.Reference
					outcome.TransactionID = &ref
				}
				if t, err := payos.ParseTransactionTime(last.TransactionDateTime); err == nil {
					paidAt = t
				}
			}
			outcome.PaidAt = &paidAt
		}

		_, applied, err := s.applyPaymentOutcome(ctx, order, status, outcome)
		if err != nil {
			report.Failed++
			s.log.WarnContext(ctx, "reconcile: apply failed", "order_code", code, "error", err)
			continue
		}
		if applied {
			report.Updated++
		}
	}
	return report, nil
}

// ListUserPayments lists the PayOS payments of userID, newest first.
func (s *PaymentService) ListUserPayments(ctx context.Context, userID string, page, limit int) (*model.PaginatedPayments, error) {
	page, limit = PageParams(page, limit)
	orders, total, err := s.orders.listPage(ctx, repository.OrderFilter{
		UserID:        userID,
		PaymentMethod: model.PaymentMethodPayOS,
		SortBy:        "created_at",
		SortDesc:      true,
	}, page, limit)
	if err != nil {
		return nil, err
	}

	items := make([]model.PaymentSummary, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		var summary model.PaymentSummary
		if err := copier.Copy(&summary, &o.PaymentInfo); err != nil {
			return nil, fmt.Errorf("copy payment info: %w", err)
		}
		summary.OrderID = o.ID
		summary.OrderNumber = o.OrderNumber
		summary.UserID = o.UserID
		summary.TotalAmount = o.TotalAmount
		summary.Currency = o.Currency
		summary.OrderStatus = o.Status
		summary.CreatedAt = o.CreatedAt
		items = append(items, summary)
	}
	return &model.PaginatedPayments{Items: items, Pagination: pageInfo(page, limit, total)}, nil
}

// applyPaymentOutcome is the single transition routine behind webhooks,
// manual overrides, cancellations and reconciliation. The payment write is
// conditional on the payment not being final and the order write on the order
// still being pending, so replays change nothing. applied reports whether
// anything was written.
func (s *PaymentService) applyPaymentOutcome(ctx context.Context, order *model.Order, status model.PaymentStatus, outcome paymentOutcome) (*model.Order, bool, error) {
	current := order.PaymentInfo.Status
	if status == model.PaymentStatusPending && current != model.PaymentStatusPending {
		return order, false, nil
	}
	if !current.CanTransitionTo(status) {
		return order, false, fmt.Errorf("%w: %s -> %s", ErrPaymentFinalized, current, status)
	}

	updated := order
	applied := false
	if status != current {
		patch := model.PaymentInfoPatch{Status: &status}
		if status == model.PaymentStatusCompleted {
			patch.TransactionID = outcome.TransactionID
			patch.PaidAt = outcome.PaidAt
		}
		res, err := s.orders.UpdateOrderPaymentInfo(ctx, order.ID, patch,
			repository.PaymentGuard{UnlessStatus: model.TerminalPaymentStatuses})
		switch {
		case err == nil:
			updated = res
			applied = true
		case errors.Is(err, repository.ErrConflict):
			latest, gerr := s.orders.GetOrderByID(ctx, order.ID, model.AdminScope())
			if gerr != nil {
				return nil, false, gerr
			}
			if latest.PaymentInfo.Status != status {
				return latest, false, fmt.Errorf("%w: %s -> %s", ErrPaymentFinalized, latest.PaymentInfo.Status, status)
			}
			updated = latest
		default:
			return nil, false, err
		}
	}

	if target, ok := status.OrderStatusFor(); ok && updated.Status == model.OrderStatusPending {
		update := repository.StatusUpdate{
			Status:       target,
			FromStatuses: []model.OrderStatus{model.OrderStatusPending},
		}
		if target == model.OrderStatusCancelled {
			now := s.now()
			reason := outcome.Reason
			if reason == "" {
				reason = "payment " + string(status)
			}
			update.CancelledAt = &now
			update.CancellationReason = &reason
		}
		res, err := s.orders.orders.UpdateStatus(ctx, order.ID, update)
		switch {
		case err == nil:
			updated = res
			applied = true
		case errors.Is(err, repository.ErrConflict):
			s.log.InfoContext(ctx, "order left pending before payment transition", "order_id", order.ID)
		default:
			return updated, applied, fmt.Errorf("update order status: %w", err)
		}
	}

	if applied {
		s.log.InfoContext(ctx, "payment status applied",
			"order_id", updated.ID, "order_number", updated.OrderNumber, "source", outcome.Source,
			"from", current, "to", status, "order_status", updated.Status)
		s.notifier.OrderChanged(ctx, updated, notificationFor(status))
	}
	return updated, applied, nil
}

func notificationFor(status model.PaymentStatus) NotificationKind {
	switch status {
	case model.PaymentStatusCompleted:
		return NotifyPaymentCompleted
	case model.PaymentStatusCancelled, model.PaymentStatusExpired:
		return NotifyPaymentCancelled
	default:
		return NotifyStatusChanged
	}
}
