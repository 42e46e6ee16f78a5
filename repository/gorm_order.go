package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fashion_shop/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository expects a *gorm.DB opened with TranslateError so
// unique violations surface as gorm.ErrDuplicatedKey.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &gormOrderRepository{db: db}
}

func (r *gormOrderRepository) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *gormOrderRepository) FindOne(ctx context.Context, lookup OrderLookup) (*model.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	})

	switch {
	case lookup.ID != "":
		if uuid.Validate(lookup.ID) != nil {
			return nil, ErrNotFound
		}
		q = q.Where("id = ?", lookup.ID)
	case lookup.OrderNumber != "":
		q = q.Where("order_number = ?", lookup.OrderNumber)
	case lookup.PayOSOrderCode != nil:
		q = q.Where("payment_payos_order_code = ?", *lookup.PayOSOrderCode)
	default:
		return nil, ErrNotFound
	}
	if lookup.UserID != "" {
		q = q.Where("user_id = ?", lookup.UserID)
	}

	var order model.Order
	if err := q.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *gormOrderRepository) UpdatePaymentInfo(ctx context.Context, orderID string, patch model.PaymentInfoPatch, guard PaymentGuard) (*model.Order, error) {
	if uuid.Validate(orderID) != nil {
		return nil, ErrNotFound
	}

	updates := map[string]any{"updated_at": time.Now()}
	if patch.Status != nil {
		updates["payment_status"] = string(*patch.Status)
	}
	if patch.PayOSOrderCode != nil {
		updates["payment_payos_order_code"] = *patch.PayOSOrderCode
	}
	if patch.PaymentLinkID != nil {
		updates["payment_link_id"] = *patch.PaymentLinkID
	}
	if patch.CheckoutURL != nil {
		updates["payment_checkout_url"] = *patch.CheckoutURL
	}
	if patch.TransactionID != nil {
		updates["payment_transaction_id"] = *patch.TransactionID
	}
	if patch.PaidAt != nil {
		updates["payment_paid_at"] = *patch.PaidAt
	}

	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", orderID)
	if len(guard.UnlessStatus) > 0 {
		q = q.Where("payment_status NOT IN ?", paymentStatusStrings(guard.UnlessStatus))
	}
	if guard.RequireNoOrderCode {
		q = q.Where("payment_payos_order_code IS NULL")
	}

	res := q.Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to update payment info: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.missOrConflict(ctx, orderID)
	}
	return r.FindOne(ctx, OrderLookup{ID: orderID})
}

func (r *gormOrderRepository) UpdateStatus(ctx context.Context, orderID string, update StatusUpdate) (*model.Order, error) {
	if uuid.Validate(orderID) != nil {
		return nil, ErrNotFound
	}

	updates := map[string]any{
		"status":     string(update.Status),
		"updated_at": time.Now(),
	}
	if update.TrackingNumber != nil {
		updates["tracking_number"] = *update.TrackingNumber
	}
	if update.EstimatedDeliveryDate != nil {
		updates["estimated_delivery_date"] = *update.EstimatedDeliveryDate
	}
	if update.CancellationReason != nil {
		updates["cancellation_reason"] = *update.CancellationReason
	}
	if update.CancelledAt != nil {
		updates["cancelled_at"] = *update.CancelledAt
	}

	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", orderID)
	if len(update.FromStatuses) > 0 {
		q = q.Where("status IN ?", orderStatusStrings(update.FromStatuses))
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.missOrConflict(ctx, orderID)
	}
	return r.FindOne(ctx, OrderLookup{ID: orderID})
}

func (r *gormOrderRepository) Count(ctx context.Context, filter OrderFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return total, nil
}

func (r *gormOrderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	q := r.filtered(ctx, filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order(sortColumn(filter) + " " + direction).
		Order("id")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var orders []model.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (r *gormOrderRepository) Stats(ctx context.Context, userID string) (map[model.OrderStatus]StatusTotal, error) {
	var rows []struct {
		Status string
		Count  int64
		Amount float64
	}

	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
		Group("status")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	totals := make(map[model.OrderStatus]StatusTotal, len(rows))
	for _, row := range rows {
		totals[model.OrderStatus(row.Status)] = StatusTotal{Count: row.Count, Amount: row.Amount}
	}
	return totals, nil
}

func (r *gormOrderRepository) filtered(ctx context.Context, filter OrderFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.PaymentMethod != "" {
		q = q.Where("payment_method = ?", string(filter.PaymentMethod))
	}
	if filter.PaymentStatus != "" {
		q = q.Where("payment_status = ?", string(filter.PaymentStatus))
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at < ?", *filter.CreatedTo)
	}
	if filter.CreatedBefore != nil {
		q = q.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.UpdatedBefore != nil {
		q = q.Where("updated_at < ?", *filter.UpdatedBefore)
	}
	if filter.NoOrderCode {
		q = q.Where("payment_payos_order_code IS NULL")
	}
	return q
}

func (r *gormOrderRepository) missOrConflict(ctx context.Context, orderID string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", orderID).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func paymentStatusStrings(in []model.PaymentStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func orderStatusStrings(in []model.OrderStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
