package repository

import (
	"context"
	"errors"
	"time"

	"fashion_shop/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("record changed concurrently")
	ErrDuplicateKey = errors.New("duplicate key")
)

// OrderLookup selects a single order. Exactly one of ID, OrderNumber or
// PayOSOrderCode identifies the order; UserID, when set, narrows the match to
// that owner so foreign orders look absent.
type OrderLookup struct {
	ID             string
	OrderNumber    string
	PayOSOrderCode *int64
	UserID         string
}

// PaymentGuard makes a payment-info write conditional on the stored state.
// A write whose guard does not hold fails with ErrConflict.
type PaymentGuard struct {
	// UnlessStatus rejects the write when the current payment status is listed.
	UnlessStatus []model.PaymentStatus
	// RequireNoOrderCode rejects the write once a PayOS order code is stored.
	RequireNoOrderCode bool
}

// StatusUpdate moves an order to Status. FromStatuses, when non-empty, is the
// set of statuses the order must currently be in.
type StatusUpdate struct {
	Status                model.OrderStatus
	FromStatuses          []model.OrderStatus
	TrackingNumber        *string
	EstimatedDeliveryDate *time.Time
	CancellationReason    *string
	CancelledAt           *time.Time
}

type OrderFilter struct {
	UserID        string
	Status        model.OrderStatus
	PaymentMethod model.PaymentMethod
	PaymentStatus model.PaymentStatus
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	CreatedBefore *time.Time
	UpdatedBefore *time.Time
	NoOrderCode   bool

	SortBy   string
	SortDesc bool
	Offset   int
	Limit    int
}

// Sortable order columns, keyed by the public sort field name.
var OrderSortFields = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"total_amount": "total_amount",
}

type StatusTotal struct {
	Count  int64
	Amount float64
}

type OrderRepository interface {
	// Create inserts the order with its items. A clashing order number or
	// PayOS code fails with ErrDuplicateKey.
	Create(ctx context.Context, order *model.Order) error
	FindOne(ctx context.Context, lookup OrderLookup) (*model.Order, error)
	// UpdatePaymentInfo merges the non-nil patch fields into the order's
	// payment info, stamps updated_at and returns the stored order.
	UpdatePaymentInfo(ctx context.Context, orderID string, patch model.PaymentInfoPatch, guard PaymentGuard) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID string, update StatusUpdate) (*model.Order, error)
	Count(ctx context.Context, filter OrderFilter) (int64, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	// Stats groups the user's orders (every order when userID is empty) by
	// status.
	Stats(ctx context.Context, userID string) (map[model.OrderStatus]StatusTotal, error)
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	List(ctx context.Context, offset, limit int) ([]model.Product, int64, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

func sortColumn(filter OrderFilter) string {
	col, ok := OrderSortFields[filter.SortBy]
	if !ok {
		col = "created_at"
	}
	return col
}
