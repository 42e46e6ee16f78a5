package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"fashion_shop/model"
	"fashion_shop/payos"
	"fashion_shop/repository"
)

// memOrderRepository implements repository.OrderRepository in memory with
// the same conditional-update semantics as the database repositories.
type memOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	// DuplicateCreates makes the next n Create calls fail with ErrDuplicateKey.
	DuplicateCreates int
	Creates          int
	Err              error
}

func newMemOrderRepository() *memOrderRepository {
	return &memOrderRepository{orders: map[string]*model.Order{}}
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	return &c
}

func (m *memOrderRepository) put(o *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = cloneOrder(o)
}

func (m *memOrderRepository) get(id string) *model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	return cloneOrder(o)
}

func (m *memOrderRepository) Create(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	if m.Err != nil {
		return m.Err
	}
	if m.DuplicateCreates > 0 {
		m.DuplicateCreates--
		return repository.ErrDuplicateKey
	}
	for _, o := range m.orders {
		if o.OrderNumber == order.OrderNumber || o.ID == order.ID {
			return repository.ErrDuplicateKey
		}
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *memOrderRepository) FindOne(_ context.Context, lookup repository.OrderLookup) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, o := range m.orders {
		match := false
		switch {
		case lookup.ID != "":
			match = o.ID == lookup.ID
		case lookup.OrderNumber != "":
			match = o.OrderNumber == lookup.OrderNumber
		case lookup.PayOSOrderCode != nil:
			match = o.PaymentInfo.PayOSOrderCode != nil && *o.PaymentInfo.PayOSOrderCode == *lookup.PayOSOrderCode
		}
		if match && (lookup.UserID == "" || o.UserID == lookup.UserID) {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memOrderRepository) UpdatePaymentInfo(_ context.Context, orderID string, patch model.PaymentInfoPatch, guard repository.PaymentGuard) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, s := range guard.UnlessStatus {
		if o.PaymentInfo.Status == s {
			return nil, repository.ErrConflict
		}
	}
	if guard.RequireNoOrderCode && o.PaymentInfo.PayOSOrderCode != nil {
		return nil, repository.ErrConflict
	}
	if patch.PayOSOrderCode != nil {
		for id, other := range m.orders {
			if id != orderID && other.PaymentInfo.PayOSOrderCode != nil && *other.PaymentInfo.PayOSOrderCode == *patch.PayOSOrderCode {
				return nil, repository.ErrDuplicateKey
			}
		}
	}

	if patch.Status != nil {
		o.PaymentInfo.Status = *patch.Status
	}
	if patch.PayOSOrderCode != nil {
		v := *patch.PayOSOrderCode
		o.PaymentInfo.PayOSOrderCode = &v
	}
	if patch.PaymentLinkID != nil {
		v := *patch.PaymentLinkID
		o.PaymentInfo.PaymentLinkID = &v
	}
	if patch.CheckoutURL != nil {
		v := *patch.CheckoutURL
		o.PaymentInfo.CheckoutURL = &v
	}
	if patch.TransactionID != nil {
		v := *patch.TransactionID
		o.PaymentInfo.TransactionID = &v
	}
	if patch.PaidAt != nil {
		v := *patch.PaidAt
		o.PaymentInfo.PaidAt = &v
	}
	o.UpdatedAt = time.Now()
	return cloneOrder(o), nil
}

func (m *memOrderRepository) UpdateStatus(_ context.Context, orderID string, update repository.StatusUpdate) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if len(update.FromStatuses) > 0 {
		allowed := false
		for _, s := range update.FromStatuses {
			if o.Status == s {
				allowed = true
			}
		}
		if !allowed {
			return nil, repository.ErrConflict
		}
	}

	o.Status = update.Status
	if update.TrackingNumber != nil {
		v := *update.TrackingNumber
		o.TrackingNumber = &v
	}
	if update.EstimatedDeliveryDate != nil {
		v := *update.EstimatedDeliveryDate
		o.EstimatedDeliveryDate = &v
	}
	if update.CancellationReason != nil {
		v := *update.CancellationReason
		o.CancellationReason = &v
	}
	if update.CancelledAt != nil {
		v := *update.CancelledAt
		o.CancelledAt = &v
	}
	o.UpdatedAt = time.Now()
	return cloneOrder(o), nil
}

func (m *memOrderRepository) matching(filter repository.OrderFilter) []model.Order {
	var out []model.Order
	for _, o := range m.orders {
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
		if filter.CreatedFrom != nil && o.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && !o.CreatedAt.Before(*filter.CreatedTo) {
			continue
		}
		if filter.CreatedBefore != nil && !o.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		if filter.UpdatedBefore != nil && !o.UpdatedAt.Before(*filter.UpdatedBefore) {
			continue
		}
		if filter.NoOrderCode && o.PaymentInfo.PayOSOrderCode != nil {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return out
}

func (m *memOrderRepository) Count(_ context.Context, filter repository.OrderFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return int64(len(m.matching(filter))), nil
}

func (m *memOrderRepository) List(_ context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	orders := m.matching(filter)
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		var less bool
		switch filter.SortBy {
		case "updated_at":
			less = a.UpdatedAt.Before(b.UpdatedAt)
		case "total_amount":
			less = a.TotalAmount < b.TotalAmount
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if filter.SortDesc {
			return !less
		}
		return less
	})
	if filter.Offset >= len(orders) {
		return []model.Order{}, nil
	}
	orders = orders[filter.Offset:]
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (m *memOrderRepository) Stats(_ context.Context, userID string) (map[model.OrderStatus]repository.StatusTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	totals := map[model.OrderStatus]repository.StatusTotal{}
	for _, o := range m.orders {
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

type memProductRepository struct {
	mu       sync.Mutex
	products map[string]model.Product
}

func newMemProductRepository(products ...model.Product) *memProductRepository {
	m := &memProductRepository{products: map[string]model.Product{}}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memProductRepository) Create(_ context.Context, product *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == product.Slug {
			return repository.ErrDuplicateKey
		}
	}
	m.products[product.ID] = *product
	return nil
}

func (m *memProductRepository) FindByIDs(_ context.Context, ids []string) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProductRepository) List(_ context.Context, offset, limit int) ([]model.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []model.Product
	for _, p := range m.products {
		if p.IsActive {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })
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

func (m *memProductRepository) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// fakeGateway implements PaymentGateway without any network.
type fakeGateway struct {
	mu          sync.Mutex
	nextCode    int64
	CreateErr   error
	GetErr      error
	CancelErr   error
	Infos       map[int64]*payos.PaymentLinkInfo
	Created     []int64
	Cancelled   []int64
	CreateCalls int
	// OnCreate runs while a link is being created.
	OnCreate func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextCode: 1739876543210000, Infos: map[int64]*payos.PaymentLinkInfo{}}
}

func (g *fakeGateway) CreatePaymentLink(_ context.Context, order *model.Order) (*payos.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CreateCalls++
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	if order.TotalAmount <= 0 {
		return nil, payos.ErrInvalidOrder
	}
	if g.OnCreate != nil {
		g.OnCreate()
	}
	g.nextCode++
	code := g.nextCode
	g.Created = append(g.Created, code)
	return &payos.PaymentLink{
		OrderCode:     code,
		Amount:        int64(order.TotalAmount),
		Description:   payos.CreateSafeDescription(order.OrderNumber),
		PaymentLinkID: "plink-" + order.OrderNumber,
		CheckoutURL:   "https://pay.payos.vn/web/" + order.OrderNumber,
		QRCode:        "000201010212" + order.OrderNumber,
		Status:        "PENDING",
	}, nil
}

func (g *fakeGateway) GetPaymentInfo(_ context.Context, orderCode int64) (*payos.PaymentLinkInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.GetErr != nil {
		return nil, g.GetErr
	}
	info, ok := g.Infos[orderCode]
	if !ok {
		return nil, &payos.APIError{HTTPStatus: 200, Code: "101", Desc: "order not found"}
	}
	return info, nil
}

func (g *fakeGateway) CancelPaymentLink(_ context.Context, orderCode int64, _ string) (*payos.PaymentLinkInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Cancelled = append(g.Cancelled, orderCode)
	if g.CancelErr != nil {
		return nil, g.CancelErr
	}
	return &payos.PaymentLinkInfo{OrderCode: orderCode, Status: "CANCELLED"}, nil
}

// VerifyPaymentWebhookData accepts any signature except "bad".
func (g *fakeGateway) VerifyPaymentWebhookData(payload payos.WebhookPayload) (*payos.WebhookData, error) {
	if payload.Signature == "bad" {
		return nil, payos.ErrInvalidSignature
	}
	var data payos.WebhookData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (g *fakeGateway) cancelled() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.Cancelled...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []NotificationKind
}

func (n *recordingNotifier) OrderChanged(_ context.Context, _ *model.Order, kind NotificationKind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

func (n *recordingNotifier) count(kind NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.kinds {
		if k == kind {
			c++
		}
	}
	return c
}

type memDeduper struct {
	mu   sync.Mutex
	keys map[string]bool
	Err  error
}

func newMemDeduper() *memDeduper {
	return &memDeduper{keys: map[string]bool{}}
}

func (d *memDeduper) Acquire(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return false, d.Err
	}
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

func (d *memDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

var errBoom = errors.New("boom")
