package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"fashion_shop/model"
	"fashion_shop/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	orders   *memOrderRepository
	products *memProductRepository
	gateway  *fakeGateway
	notifier *recordingNotifier
	deduper  *memDeduper
	clock    *testClock
	orderSvc *OrderService
	paySvc   *PaymentService
}

var testPricing = Pricing{
	Currency:              "VND",
	TaxRate:               0,
	ShippingFee:           30000,
	FreeShippingThreshold: 500000,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		orders: newMemOrderRepository(),
		products: newMemProductRepository(
			model.Product{ID: "p-shirt", Name: "Áo thun basic", Price: 100, ImageURL: "https://cdn.test/shirt.jpg", IsActive: true},
			model.Product{ID: "p-tote", Name: "Túi tote", Price: 50, IsActive: true},
			model.Product{ID: "p-coat", Name: "Áo khoác dạ", Price: 600000, IsActive: true},
			model.Product{ID: "p-old", Name: "Mẫu cũ", Price: 80, IsActive: false},
		),
		gateway:  newFakeGateway(),
		notifier: &recordingNotifier{},
		deduper:  newMemDeduper(),
		clock:    &testClock{t: time.Now()},
	}
	opts := []Option{WithClock(env.clock.now), WithNotifier(env.notifier)}
	env.orderSvc = NewOrderService(env.orders, env.products, env.gateway, testPricing, opts...)
	env.paySvc = NewPaymentService(env.orderSvc, env.gateway, env.deduper, opts...)
	return env
}

func twoItemInput(method model.PaymentMethod) model.CreateOrderInput {
	return model.CreateOrderInput{
		Items: []model.OrderItemInput{
			{ProductID: "p-shirt", Quantity: 2},
			{ProductID: "p-tote", Quantity: 1},
		},
		ShippingAddress: model.ShippingAddressInput{
			FullName:    "Nguyễn Văn A",
			Phone:       "0901234567",
			Email:       "a@example.com",
			AddressLine: "12 Lý Tự Trọng",
			City:        "Hồ Chí Minh",
		},
		PaymentMethod: string(method),
	}
}

func (env *testEnv) createOrder(t *testing.T, userID string, method model.PaymentMethod) *model.Order {
	t.Helper()
	order, err := env.orderSvc.CreateOrder(context.Background(), userID, twoItemInput(method))
	require.NoError(t, err)
	return order
}

var orderNumberPattern = regexp.MustCompile(`^ORD-\d+-[0-9A-F]{8}$`)

func TestCreateOrder_TotalsAndSnapshot(t *testing.T) {
	env := newTestEnv(t)

	order := env.createOrder(t, "user-1", model.PaymentMethodCOD)

	assert.Equal(t, 250.0, order.Subtotal)
	assert.Equal(t, 0.0, order.TaxAmount)
	assert.Equal(t, 30000.0, order.ShippingFee)
	assert.Equal(t, 0.0, order.DiscountAmount)
	assert.Equal(t, 30250.0, order.TotalAmount)
	assert.Equal(t, "VND", order.Currency)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentInfo.Status)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, "a@example.com", order.ShippingAddress.Email)
	assert.Regexp(t, orderNumberPattern, order.OrderNumber)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "Áo thun basic", order.Items[0].ProductName)
	assert.Equal(t, "https://cdn.test/shirt.jpg", order.Items[0].ProductImage)
	assert.Equal(t, 100.0, order.Items[0].UnitPrice)
	assert.Equal(t, 200.0, order.Items[0].TotalPrice)
	assert.Equal(t, 50.0, order.Items[1].TotalPrice)

	// later catalog changes never touch the order
	env.products.products["p-shirt"] = model.Product{ID: "p-shirt", Name: "Renamed", Price: 999, IsActive: true}
	reloaded, err := env.orderSvc.GetOrderByID(context.Background(), order.ID, model.OwnerScope("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "Áo thun basic", reloaded.Items[0].ProductName)
	assert.Equal(t, 100.0, reloaded.Items[0].UnitPrice)
	assert.Equal(t, 30250.0, reloaded.TotalAmount)

	assert.Equal(t, 1, env.notifier.count(NotifyOrderCreated))
}

func TestCreateOrder_FreeShippingAboveThreshold(t *testing.T) {
	env := newTestEnv(t)

	order, err := env.orderSvc.CreateOrder(context.Background(), "user-1", model.CreateOrderInput{
		Items:         []model.OrderItemInput{{ProductID: "p-coat", Quantity: 1}},
		PaymentMethod: "payos",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, order.ShippingFee)
	assert.Equal(t, 600000.0, order.TotalAmount)
}

func TestCreateOrder_TaxRate(t *testing.T) {
	env := newTestEnv(t)
	pricing := testPricing
	pricing.TaxRate = 0.1
	svc := NewOrderService(env.orders, env.products, nil, pricing)

	order, err := svc.CreateOrder(context.Background(), "user-1", twoItemInput(model.PaymentMethodCOD))
	require.NoError(t, err)
	assert.Equal(t, 25.0, order.TaxAmount)
	assert.Equal(t, 250.0+25.0+30000.0, order.TotalAmount)
}

func TestCreateOrder_RejectsUnknownOrInactiveProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"p-missing", "p-old"} {
		input := twoItemInput(model.PaymentMethodCOD)
		input.Items = append(input.Items, model.OrderItemInput{ProductID: id, Quantity: 1})

		_, err := env.orderSvc.CreateOrder(ctx, "user-1", input)
		assert.ErrorIs(t, err, ErrProductNotFound, id)
	}
	assert.Zero(t, env.orders.Creates)
}

func TestCreateOrder_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orderSvc.CreateOrder(ctx, "user-1", model.CreateOrderInput{PaymentMethod: "cod"})
	assert.ErrorIs(t, err, ErrInvalidOrderItems)

	input := twoItemInput(model.PaymentMethodCOD)
	input.Items[0].Quantity = 0
	_, err = env.orderSvc.CreateOrder(ctx, "user-1", input)
	assert.ErrorIs(t, err, ErrInvalidOrderItems)

	input = twoItemInput("paypal")
	_, err = env.orderSvc.CreateOrder(ctx, "user-1", input)
	assert.ErrorIs(t, err, ErrUnsupportedPaymentMethod)
}

func TestCreateOrder_RetriesOrderNumberCollision(t *testing.T) {
	env := newTestEnv(t)
	env.orders.DuplicateCreates = 2

	order := env.createOrder(t, "user-1", model.PaymentMethodCOD)
	assert.NotEmpty(t, order.OrderNumber)
	assert.Equal(t, 3, env.orders.Creates)
}

func TestCreateOrder_GivesUpAfterRepeatedCollisions(t *testing.T) {
	env := newTestEnv(t)
	env.orders.DuplicateCreates = maxOrderNumberAttempts

	_, err := env.orderSvc.CreateOrder(context.Background(), "user-1", twoItemInput(model.PaymentMethodCOD))
	assert.ErrorIs(t, err, ErrOrderNumberExhausted)
}

func TestCreateOrder_ConcurrentOrderNumbersUnique(t *testing.T) {
	env := newTestEnv(t)
	const n = 50

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := env.orderSvc.CreateOrder(context.Background(), "user-1", twoItemInput(model.PaymentMethodCOD))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[order.OrderNumber] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, numbers, n)
}

func TestGetOrder_OwnershipScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "user-1", model.PaymentMethodCOD)

	_, err := env.orderSvc.GetOrderByID(ctx, order.ID, model.OwnerScope("user-2"))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = env.orderSvc.GetOrderByOrderNumber(ctx, order.OrderNumber, model.OwnerScope("user-2"))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = env.orderSvc.GetOrderByID(ctx, order.ID, model.Scope{})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	got, err := env.orderSvc.GetOrderByOrderNumber(ctx, order.OrderNumber, model.OwnerScope("user-1"))
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	got, err = env.orderSvc.GetOrderByID(ctx, order.ID, model.AdminScope())
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = env.orderSvc.GetOrderByID(ctx, "missing", model.AdminScope())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelOrder_Twice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "user-1", model.PaymentMethodCOD)

	cancelled, err := env.orderSvc.CancelOrder(ctx, order.ID, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, model.PaymentStatusCancelled, cancelled.PaymentInfo.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, DefaultCancelReason, *cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = env.orderSvc.CancelOrder(ctx, order.ID, "user-1", "again")
	assert.ErrorIs(t, err, ErrOrderNotCancellable)

	stored := env.orders.get(order.ID)
	assert.Equal(t, model.OrderStatusCancelled, stored.Status)
	assert.Equal(t, DefaultCancelReason, *stored.CancellationReason)
	assert.True(t, cancelled.CancelledAt.Equal(*stored.CancelledAt))
	assert.Equal(t, 1, env.notifier.count(NotifyOrderCancelled))
}

func TestCancelOrder_OtherUser(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "user-1", model.PaymentMethodCOD)

	_, err := env.orderSvc.CancelOrder(context.Background(), order.ID, "user-2", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, model.OrderStatusPending, env.orders.get(order.ID).Status)
}

func TestCancelOrder_ShippedNotCancellable(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "user-1", model.PaymentMethodCOD)
	order.Status = model.OrderStatusShipped
	env.orders.put(order)

	_, err := env.orderSvc.CancelOrder(context.Background(), order.ID, "user-1", "")
	assert.ErrorIs(t, err, ErrOrderNotCancellable)
}

func TestCancelOrder_CancelsOpenPaymentLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "user-1", model.PaymentMethodPayOS)
	link, err := env.paySvc.CreatePayment(ctx, "user-1", order.ID)
	require.NoError(t, err)

	cancelled, err := env.orderSvc.CancelOrder(ctx, order.ID, "user-1", "đổi ý")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCancelled, cancelled.PaymentInfo.Status)
	assert.Contains(t, env.gateway.cancelled(), link.OrderCode)
}

func TestCancelOrder_KeepsCompletedPayment(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "user-1", model.PaymentMethodCOD)
	order.Status = model.OrderStatusConfirmed
	order.PaymentInfo.Status = model.PaymentStatusCompleted
	env.orders.put(order)

	cancelled, err := env.orderSvc.CancelOrder(context.Background(), order.ID, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, model.PaymentStatusCompleted, cancelled.PaymentInfo.Status)
}

func TestUpdateOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "user-1", model.PaymentMethodCOD)

	confirmed, err := env.orderSvc.UpdateOrderStatus(ctx, order.ID, model.UpdateOrderStatusInput{Status: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, confirmed.Status)

	tracking := "VN123456789"
	eta := model.CustomDate{Time: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)}
	updated, err := env.orderSvc.UpdateOrderStatus(ctx, order.ID, model.UpdateOrderStatusInput{
		Status:                "shipped",
		TrackingNumber:        &tracking,
		EstimatedDeliveryDate: &eta,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, updated.Status)
	assert.Equal(t, tracking, *updated.TrackingNumber)
	assert.True(t, eta.Time.Equal(*updated.EstimatedDeliveryDate))

	_, err = env.orderSvc.UpdateOrderStatus(ctx, order.ID, model.UpdateOrderStatusInput{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)

	_, err = env.orderSvc.UpdateOrderStatus(ctx, "missing", model.UpdateOrderStatusInput{Status: "shipped"})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateOrderStatus_RejectsBackwardMoves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	skipped := env.createOrder(t, "user-1", model.PaymentMethodCOD)
	_, err := env.orderSvc.UpdateOrderStatus(ctx, skipped.ID, model.UpdateOrderStatusInput{Status: "delivered"})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, model.OrderStatusPending, env.orders.get(skipped.ID).Status)

	cancelled := env.createOrder(t, "user-1", model.PaymentMethodCOD)
	_, err = env.orderSvc.CancelOrder(ctx, cancelled.ID, "user-1", "changed my mind")
	require.NoError(t, err)
	_, err = env.orderSvc.UpdateOrderStatus(ctx, cancelled.ID, model.UpdateOrderStatusInput{Status: "confirmed"})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, model.OrderStatusCancelled, env.orders.get(cancelled.ID).Status)

	_, err = env.orderSvc.UpdateOrderStatus(ctx, cancelled.ID, model.UpdateOrderStatusInput{Status: "pending"})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestGetOrderStats_ZeroFilled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats, err := env.orderSvc.GetOrderStats(ctx, model.AdminScope())
	require.NoError(t, err)
	assert.Equal(t, model.OrderStats{}, *stats)

	env.createOrder(t, "user-1", model.PaymentMethodCOD)
	second := env.createOrder(t, "user-1", model.PaymentMethodCOD)
	env.createOrder(t, "user-2", model.PaymentMethodCOD)
	_, err = env.orderSvc.CancelOrder(ctx, second.ID, "user-1", "")
	require.NoError(t, err)

	stats, err = env.orderSvc.GetOrderStats(ctx, model.OwnerScope("user-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Zero(t, stats.Delivered)
	assert.Equal(t, 30250.0, stats.TotalRevenue)

	stats, err = env.orderSvc.GetOrderStats(ctx, model.AdminScope())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, 60500.0, stats.TotalRevenue)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.createOrder(t, "user-1", model.PaymentMethodCOD)
		env.clock.advance(time.Minute)
	}
	env.createOrder(t, "user-1", model.PaymentMethodPayOS)
	env.createOrder(t, "user-2", model.PaymentMethodCOD)

	page, err := env.orderSvc.GetUserOrders(ctx, "user-1", model.OrderQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(4), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.Pages)
	assert.True(t, !page.Items[0].CreatedAt.Before(page.Items[1].CreatedAt))

	payos, err := env.orderSvc.GetUserOrders(ctx, "user-1", model.OrderQuery{PaymentMethod: "payos"})
	require.NoError(t, err)
	assert.Len(t, payos.Items, 1)
	assert.Equal(t, 10, payos.Pagination.Limit)

	all, err := env.orderSvc.GetAllOrders(ctx, model.OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), all.Pagination.Total)

	_, err = env.orderSvc.GetAllOrders(ctx, model.OrderQuery{From: "01/03/2025"})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	empty, err := env.orderSvc.ListOrders(ctx, model.Scope{}, model.OrderQuery{})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}

func TestExpirePendingOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := env.createOrder(t, "user-1", model.PaymentMethodPayOS)
	linked := env.createOrder(t, "user-1", model.PaymentMethodPayOS)
	_, err := env.paySvc.CreatePayment(ctx, "user-1", linked.ID)
	require.NoError(t, err)
	cod := env.createOrder(t, "user-1", model.PaymentMethodCOD)

	n, err := env.orderSvc.ExpirePendingOrders(ctx, 24*time.Hour, 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.advance(25 * time.Hour)
	fresh := env.createOrder(t, "user-1", model.PaymentMethodPayOS)

	n, err = env.orderSvc.ExpirePendingOrders(ctx, 24*time.Hour, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := env.orders.get(stale.ID)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.Equal(t, model.PaymentStatusExpired, got.PaymentInfo.Status)
	assert.Equal(t, PaymentTimeoutReason, *got.CancellationReason)

	assert.Equal(t, model.OrderStatusPending, env.orders.get(linked.ID).Status)
	assert.Equal(t, model.OrderStatusPending, env.orders.get(cod.ID).Status)
	assert.Equal(t, model.OrderStatusPending, env.orders.get(fresh.ID).Status)
}

func TestOrderFilter_ToIsInclusive(t *testing.T) {
	filter, err := orderFilter(model.OrderQuery{From: "2025-03-01", To: "2025-03-01", SortBy: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, "created_at", filter.SortBy)
	assert.True(t, filter.SortDesc)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), *filter.CreatedTo)
	_, ok := repository.OrderSortFields[filter.SortBy]
	assert.True(t, ok)
}

func TestPageParams(t *testing.T) {
	page, limit := PageParams(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, limit)

	_, limit = PageParams(3, 500)
	assert.Equal(t, 100, limit)
}
