package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fashion_shop/model"
	"fashion_shop/repository"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"golang.org/x/sync/errgroup"
)

const (
	maxOrderNumberAttempts = 3
	DefaultCancelReason    = "Cancelled by customer"
	PaymentTimeoutReason   = "payment timeout"
)

var cancellableStatuses = []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed}

// Pricing holds the shop-wide rules applied when an order is created.
type Pricing struct {
	Currency    string
	TaxRate     float64
	ShippingFee float64
	// FreeShippingThreshold waives the shipping fee when the subtotal is
	// strictly above it.
	FreeShippingThreshold float64
}

type OrderService struct {
	base
	orders   repository.OrderRepository
	products repository.ProductRepository
	gateway  PaymentGateway
	pricing  Pricing
}

// NewOrderService wires the order workflow. gateway may be nil, in which case
// cancelling an order never touches the payment provider.
func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository, gateway PaymentGateway, pricing Pricing, opts ...Option) *OrderService {
	if pricing.Currency == "" {
		pricing.Currency = "VND"
	}
	return &OrderService{
		base:     newBase(opts),
		orders:   orders,
		products: products,
		gateway:  gateway,
		pricing:  pricing,
	}
}

// CreateOrder prices the order from the current product records, snapshots
// each line item and persists it as pending.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, input model.CreateOrderInput) (*model.Order, error) {
	if len(input.Items) == 0 {
		return nil, ErrInvalidOrderItems
	}
	ids := make([]string, 0, len(input.Items))
	seen := make(map[string]bool, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, ErrInvalidOrderItems
		}
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	method := model.PaymentMethod(input.PaymentMethod)
	switch method {
	case model.PaymentMethodCOD, model.PaymentMethodPayOS, model.PaymentMethodBankTransfer:
	default:
		return nil, ErrUnsupportedPaymentMethod
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		if p.IsActive {
			byID[p.ID] = p
		}
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
	}

	now := s.now()
	order := &model.Order{
		UserID:      userID,
		Status:      model.OrderStatusPending,
		Items:       make([]model.OrderItem, 0, len(input.Items)),
		Currency:    s.currency(input.Currency),
		Notes:       strings.TrimSpace(input.Notes),
		PaymentInfo: model.PaymentInfo{Method: method, Status: model.PaymentStatusPending},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := copier.Copy(&order.ShippingAddress, &input.ShippingAddress); err != nil {
		return nil, fmt.Errorf("copy shipping address: %w", err)
	}

	subtotal := 0.0
	for _, item := range input.Items {
		p := byID[item.ProductID]
		line := roundMoney(p.Price * float64(item.Quantity))
		order.Items = append(order.Items, model.OrderItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductImage: p.ImageURL,
			Quantity:     item.Quantity,
			UnitPrice:    p.Price,
			TotalPrice:   line,
		})
		subtotal += line
	}
	s.applyPricing(order, subtotal)

	for attempt := 1; ; attempt++ {
		order.ID = uuid.NewString()
		order.OrderNumber = newOrderNumber(now)
		err = s.orders.Create(ctx, order)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("create order: %w", err)
		}
		if attempt >= maxOrderNumberAttempts {
			return nil, ErrOrderNumberExhausted
		}
		s.log.WarnContext(ctx, "order number collision, retrying", "order_number", order.OrderNumber, "attempt", attempt)
	}

	created, err := s.orders.FindOne(ctx, repository.OrderLookup{ID: order.ID})
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	s.log.InfoContext(ctx, "order created",
		"order_id", created.ID, "order_number", created.OrderNumber, "user_id", userID, "total_amount", created.TotalAmount)
	s.notifier.OrderChanged(ctx, created, NotifyOrderCreated)
	return created, nil
}

func (s *OrderService) applyPricing(order *model.Order, subtotal float64) {
	order.Subtotal = roundMoney(subtotal)
	order.TaxAmount = roundMoney(order.Subtotal * s.pricing.TaxRate)
	order.ShippingFee = s.pricing.ShippingFee
	if order.Subtotal > s.pricing.FreeShippingThreshold {
		order.ShippingFee = 0
	}
	order.DiscountAmount = 0
	order.TotalAmount = roundMoney(order.Subtotal + order.TaxAmount + order.ShippingFee - order.DiscountAmount)
}

func (s *OrderService) currency(requested string) string {
	if c := strings.ToUpper(strings.TrimSpace(requested)); c != "" {
		return c
	}
	return s.pricing.Currency
}

func (s *OrderService) GetOrderByID(ctx context.Context, id string, scope model.Scope) (*model.Order, error) {
	return s.findScoped(ctx, repository.OrderLookup{ID: id}, scope)
}

func (s *OrderService) GetOrderByOrderNumber(ctx context.Context, orderNumber string, scope model.Scope) (*model.Order, error) {
	return s.findScoped(ctx, repository.OrderLookup{OrderNumber: orderNumber}, scope)
}

func (s *OrderService) GetOrderByPayOSCode(ctx context.Context, orderCode int64, scope model.Scope) (*model.Order, error) {
	return s.findScoped(ctx, repository.OrderLookup{PayOSOrderCode: &orderCode}, scope)
}

// findScoped reports a foreign order exactly like a missing one.
func (s *OrderService) findScoped(ctx context.Context, lookup repository.OrderLookup, scope model.Scope) (*model.Order, error) {
	if !scope.Admin && scope.UserID == "" {
		return nil, ErrOrderNotFound
	}
	lookup.UserID = scope.OwnerFilter()

	order, err := s.orders.FindOne(ctx, lookup)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !scope.Allows(order.UserID) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// UpdateOrderPaymentInfo merges patch into the order's payment info. A guard
// that no longer holds yields repository.ErrConflict.
func (s *OrderService) UpdateOrderPaymentInfo(ctx context.Context, orderID string, patch model.PaymentInfoPatch, guard repository.PaymentGuard) (*model.Order, error) {
	order, err := s.orders.UpdatePaymentInfo(ctx, orderID, patch, guard)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update payment info: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus is the admin status change. The current status must be
// one the order may move to status from; the check is part of the write.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, input model.UpdateOrderStatusInput) (*model.Order, error) {
	status, ok := model.ParseOrderStatus(input.Status)
	if !ok {
		return nil, ErrInvalidOrderStatus
	}
	sources := model.AllowedSources(status)
	if len(sources) == 0 {
		return nil, ErrInvalidStatusTransition
	}

	update := repository.StatusUpdate{
		Status:                status,
		FromStatuses:          sources,
		TrackingNumber:        input.TrackingNumber,
		EstimatedDeliveryDate: input.EstimatedDeliveryDate.TimePtr(),
	}
	if status == model.OrderStatusCancelled {
		now := s.now()
		update.CancelledAt = &now
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrOrderNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	s.log.InfoContext(ctx, "order status updated", "order_id", orderID, "status", status)
	s.notifier.OrderChanged(ctx, order, NotifyStatusChanged)
	return order, nil
}

// CancelOrder cancels the caller's own order while it is still pending or
// confirmed. An unfinished payment is cancelled along with it.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID, reason string) (*model.Order, error) {
	order, err := s.GetOrderByID(ctx, orderID, model.OwnerScope(userID))
	if err != nil {
		return nil, err
	}
	if !order.CanBeCancelled() {
		return nil, ErrOrderNotCancellable
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultCancelReason
	}
	return s.cancel(ctx, order, reason, model.PaymentStatusCancelled)
}

func (s *OrderService) cancel(ctx context.Context, order *model.Order, reason string, paymentStatus model.PaymentStatus) (*model.Order, error) {
	now := s.now()
	cancelled, err := s.orders.UpdateStatus(ctx, order.ID, repository.StatusUpdate{
		Status:             model.OrderStatusCancelled,
		FromStatuses:       cancellableStatuses,
		CancellationReason: &reason,
		CancelledAt:        &now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrOrderNotCancellable
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if !cancelled.PaymentInfo.Status.IsTerminal() {
		patch := model.PaymentInfoPatch{Status: &paymentStatus}
		updated, err := s.orders.UpdatePaymentInfo(ctx, order.ID, patch, repository.PaymentGuard{UnlessStatus: model.TerminalPaymentStatuses})
		switch {
		case err == nil:
			cancelled = updated
		case errors.Is(err, repository.ErrConflict):
			s.log.InfoContext(ctx, "payment finalized while cancelling order", "order_id", order.ID)
		default:
			s.log.ErrorContext(ctx, "failed to cancel payment of cancelled order", "order_id", order.ID, "error", err)
		}

		if code := order.PaymentInfo.PayOSOrderCode; code != nil && s.gateway != nil {
			if _, err := s.gateway.CancelPaymentLink(ctx, *code, reason); err != nil {
				s.log.WarnContext(ctx, "failed to cancel payos payment link", "order_id", order.ID, "order_code", *code, "error", err)
			}
		}
	}

	s.log.InfoContext(ctx, "order cancelled", "order_id", order.ID, "order_number", order.OrderNumber, "reason", reason)
	s.notifier.OrderChanged(ctx, cancelled, NotifyOrderCancelled)
	return cancelled, nil
}

// ExpirePendingOrders cancels PayOS orders that never got a payment link
// within olderThan. It returns how many orders were expired.
func (s *OrderService) ExpirePendingOrders(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	orders, err := s.orders.List(ctx, repository.OrderFilter{
		Status:        model.OrderStatusPending,
		PaymentMethod: model.PaymentMethodPayOS,
		PaymentStatus: model.PaymentStatusPending,
		CreatedBefore: &cutoff,
		NoOrderCode:   true,
		SortBy:        "created_at",
		Limit:         limit,
	})
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	expired := 0
	for i := range orders {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if _, err := s.cancel(ctx, &orders[i], PaymentTimeoutReason, model.PaymentStatusExpired); err != nil {
			if !errors.Is(err, ErrOrderNotCancellable) {
				s.log.ErrorContext(ctx, "failed to expire order", "order_id", orders[i].ID, "error", err)
			}
			continue
		}
		expired++
	}
	return expired, nil
}

// GetOrderStats counts orders per status, every status present. Revenue
// excludes cancelled and refunded orders.
func (s *OrderService) GetOrderStats(ctx context.Context, scope model.Scope) (*model.OrderStats, error) {
	stats := &model.OrderStats{}
	if !scope.Admin && scope.UserID == "" {
		return stats, nil
	}

	totals, err := s.orders.Stats(ctx, scope.OwnerFilter())
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	for _, status := range model.OrderStatuses {
		t := totals[status]
		stats.SetCount(status, t.Count)
		stats.TotalOrders += t.Count
		if status != model.OrderStatusCancelled && status != model.OrderStatusRefunded {
			stats.TotalRevenue += t.Amount
		}
	}
	stats.TotalRevenue = roundMoney(stats.TotalRevenue)
	return stats, nil
}

func (s *OrderService) GetUserOrders(ctx context.Context, userID string, query model.OrderQuery) (*model.PaginatedOrders, error) {
	return s.ListOrders(ctx, model.OwnerScope(userID), query)
}

func (s *OrderService) GetAllOrders(ctx context.Context, query model.OrderQuery) (*model.PaginatedOrders, error) {
	return s.ListOrders(ctx, model.AdminScope(), query)
}

func (s *OrderService) ListOrders(ctx context.Context, scope model.Scope, query model.OrderQuery) (*model.PaginatedOrders, error) {
	page, limit := PageParams(query.Page, query.Limit)
	if !scope.Admin && scope.UserID == "" {
		return &model.PaginatedOrders{Items: []model.Order{}, Pagination: pageInfo(page, limit, 0)}, nil
	}

	filter, err := orderFilter(query)
	if err != nil {
		return nil, err
	}
	filter.UserID = scope.OwnerFilter()

	items, total, err := s.listPage(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}
	return &model.PaginatedOrders{Items: items, Pagination: pageInfo(page, limit, total)}, nil
}

// listPage runs the count and the page query concurrently.
func (s *OrderService) listPage(ctx context.Context, filter repository.OrderFilter, page, limit int) ([]model.Order, int64, error) {
	filter.Offset = (page - 1) * limit
	filter.Limit = limit

	var (
		total int64
		items []model.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.orders.Count(gctx, filter)
		total = n
		return err
	})
	g.Go(func() error {
		list, err := s.orders.List(gctx, filter)
		items = list
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	if items == nil {
		items = []model.Order{}
	}
	return items, total, nil
}

func orderFilter(query model.OrderQuery) (repository.OrderFilter, error) {
	filter := repository.OrderFilter{
		Status:        model.OrderStatus(query.Status),
		PaymentMethod: model.PaymentMethod(query.PaymentMethod),
		PaymentStatus: model.PaymentStatus(query.PaymentStatus),
		SortBy:        query.SortBy,
		SortDesc:      query.SortOrder != "asc",
	}
	if _, ok := repository.OrderSortFields[filter.SortBy]; !ok {
		filter.SortBy = "created_at"
	}
	if query.From != "" {
		from, err := time.Parse(model.DateLayout, query.From)
		if err != nil {
			return filter, fmt.Errorf("%w: from", ErrInvalidQuery)
		}
		filter.CreatedFrom = &from
	}
	if query.To != "" {
		to, err := time.Parse(model.DateLayout, query.To)
		if err != nil {
			return filter, fmt.Errorf("%w: to", ErrInvalidQuery)
		}
		// the whole "to" day is included
		to = to.AddDate(0, 0, 1)
		filter.CreatedTo = &to
	}
	return filter, nil
}

// newOrderNumber builds ORD-<unix millis>-<8 random hex digits>.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
