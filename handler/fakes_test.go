package handler

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"fashion_shop/model"
	"fashion_shop/payos"
	"fashion_shop/repository"
)

// orderStore is a small in-memory repository.OrderRepository with the
// conditional-update behavior the payment flow depends on. A non-nil Err
// fails every lookup.
type orderStore struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	Err    error
}

func newOrderStore() *orderStore {
	return &orderStore{orders: map[string]*model.Order{}}
}

func copyOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

func (s *orderStore) Create(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateKey
		}
	}
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (s *orderStore) FindOne(_ context.Context, lookup repository.OrderLookup) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, o := range s.orders {
		var match bool
		switch {
		case lookup.ID != "":
			match = o.ID == lookup.ID
		case lookup.OrderNumber != "":
			match = o.OrderNumber == lookup.OrderNumber
		case lookup.PayOSOrderCode != nil:
			match = o.PaymentInfo.PayOSOrderCode != nil && *o.PaymentInfo.PayOSOrderCode == *lookup.PayOSOrderCode
		}
		if match && (lookup.UserID == "" || lookup.UserID == o.UserID) {
			return copyOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *orderStore) UpdatePaymentInfo(_ context.Context, orderID string, patch model.PaymentInfoPatch, guard repository.PaymentGuard) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if slices.Contains(guard.UnlessStatus, o.PaymentInfo.Status) {
		return nil, repository.ErrConflict
	}
	if guard.RequireNoOrderCode && o.PaymentInfo.PayOSOrderCode != nil {
		return nil, repository.ErrConflict
	}
	if patch.Status != nil {
		o.PaymentInfo.Status = *patch.Status
	}
	if patch.PayOSOrderCode != nil {
		o.PaymentInfo.PayOSOrderCode = patch.PayOSOrderCode
	}
	if patch.PaymentLinkID != nil {
		o.PaymentInfo.PaymentLinkID = patch.PaymentLinkID
	}
	if patch.CheckoutURL != nil {
		o.PaymentInfo.CheckoutURL = patch.CheckoutURL
	}
	if patch.TransactionID != nil {
		o.PaymentInfo.TransactionID = patch.TransactionID
	}
	if patch.PaidAt != nil {
		o.PaymentInfo.PaidAt = patch.PaidAt
	}
	o.UpdatedAt = time.Now()
	return copyOrder(o), nil
}

func (s *orderStore) UpdateStatus(_ context.Context, orderID string, update repository.StatusUpdate) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if len(update.FromStatuses) > 0 && !slices.Contains(update.FromStatuses, o.Status) {
		return nil, repository.ErrConflict
	}
	o.Status = update.Status
	if update.TrackingNumber != nil {
		o.TrackingNumber = update.TrackingNumber
	}
	if update.EstimatedDeliveryDate != nil {
		o.EstimatedDeliveryDate = update.EstimatedDeliveryDate
	}
	if update.CancellationReason != nil {
		o.CancellationReason = update.CancellationReason
	}
	if update.CancelledAt != nil {
		o.CancelledAt = update.CancelledAt
	}
	o.UpdatedAt = time.Now()
	return copyOrder(o), nil
}

func (s *orderStore) matching(filter repository.OrderFilter) []model.Order {
	out := []model.Order{}
	for _, o := range s.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.PaymentMethod != "" && o.PaymentInfo.Method != filter.PaymentMethod {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentInfo.Status != filter.PaymentStatus {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	return out
}

func (s *orderStore) Count(_ context.Context, filter repository.OrderFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matching(filter))), nil
}

func (s *orderStore) List(_ context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.matching(filter)
	if filter.Offset >= len(orders) {
		return []model.Order{}, nil
	}
	orders = orders[filter.Offset:]
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (s *orderStore) Stats(_ context.Context, userID string) (map[model.OrderStatus]repository.StatusTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[model.OrderStatus]repository.StatusTotal{}
	for _, o := range s.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		t := totals[o.Status]
		t.Count++
		t.Amount += o.TotalAmount
		totals[o.Status] = t
	}
	return totals, nil
}

type productStore struct {
	mu       sync.Mutex
	products []model.Product
}

func (s *productStore) Create(_ context.Context, product *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, *product)
	return nil
}

func (s *productStore) FindByIDs(_ context.Context, ids []string) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Product{}
	for _, p := range s.products {
		if slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *productStore) List(_ context.Context, offset, limit int) ([]model.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := []model.Product{}
	for _, p := range s.products {
		if p.IsActive {
			active = append(active, p)
		}
	}
	total := int64(len(active))
	if offset >= len(active) {
		return []model.Product{}, total, nil
	}
	active = active[offset:]
	if len(active) > limit {
		active = active[:limit]
	}
	return active, total, nil
}

func (s *productStore) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// stubGateway answers PayOS calls from memory. CreateErr and GetErr force
// adapter failures.
type stubGateway struct {
	mu        sync.Mutex
	code      int64
	CreateErr error
	GetErr    error
}

func (g *stubGateway) CreatePaymentLink(_ context.Context, order *model.Order) (*payos.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.code++
	return &payos.PaymentLink{
		OrderCode:     g.code,
		Amount:        int64(order.TotalAmount),
		PaymentLinkID: "plink-" + order.OrderNumber,
		CheckoutURL:   "https://pay.payos.vn/web/" + order.OrderNumber,
		QRCode:        "00020101021238570010A000000727",
		Status:        "PENDING",
	}, nil
}

func (g *stubGateway) GetPaymentInfo(_ context.Context, orderCode int64) (*payos.PaymentLinkInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.GetErr != nil {
		return nil, g.GetErr
	}
	return &payos.PaymentLinkInfo{OrderCode: orderCode, Status: "PENDING"}, nil
}

func (g *stubGateway) CancelPaymentLink(_ context.Context, orderCode int64, _ string) (*payos.PaymentLinkInfo, error) {
	return &payos.PaymentLinkInfo{OrderCode: orderCode, Status: "CANCELLED"}, nil
}

func (g *stubGateway) VerifyPaymentWebhookData(payload payos.WebhookPayload) (*payos.WebhookData, error) {
	if payload.Signature != "valid" {
		return nil, payos.ErrInvalidSignature
	}
	var data payos.WebhookData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
