package model

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// OrderStatuses lists every order status in display order. Stats are
// reported for all of them, zero-filled.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

func (s OrderStatus) String() string {
	return string(s)
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// orderTransitions: trạng thái đơn chỉ đi tới, không quay lại pending.
// Tự chuyển sang chính nó chỉ để sửa tracking/ngày giao.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusProcessing, OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusShipped, OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusDelivered, OrderStatusRefunded},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, st := range orderTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// AllowedSources returns the statuses an order may move to target from.
func AllowedSources(target OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, st := range OrderStatuses {
		if st.CanTransitionTo(target) {
			out = append(out, st)
		}
	}
	return out
}

// ShippingAddress là địa chỉ giao hàng tự do, lưu nguyên trong đơn hàng
type ShippingAddress struct {
	FullName    string `gorm:"size:120" json:"full_name" bson:"full_name"`
	Phone       string `gorm:"size:20" json:"phone" bson:"phone"`
	Email       string `gorm:"size:120" json:"email,omitempty" bson:"email,omitempty"`
	AddressLine string `gorm:"size:255" json:"address_line" bson:"address_line"`
	Ward        string `gorm:"size:120" json:"ward,omitempty" bson:"ward,omitempty"`
	District    string `gorm:"size:120" json:"district,omitempty" bson:"district,omitempty"`
	City        string `gorm:"size:120" json:"city" bson:"city"`
	Country     string `gorm:"size:60" json:"country,omitempty" bson:"country,omitempty"`
	PostalCode  string `gorm:"size:20" json:"postal_code,omitempty" bson:"postal_code,omitempty"`
}

// OrderItem is a line item. Name, image and prices are copied from the
// product when the order is created and never re-derived afterwards.
type OrderItem struct {
	ID           uint    `gorm:"primaryKey" json:"-" bson:"-"`
	OrderID      string  `gorm:"type:uuid;index;not null" json:"-" bson:"-"`
	ProductID    string  `gorm:"size:64;not null" json:"product_id" bson:"product_id"`
	ProductName  string  `gorm:"size:255" json:"product_name" bson:"product_name"`
	ProductImage string  `gorm:"size:512" json:"product_image,omitempty" bson:"product_image,omitempty"`
	Quantity     int     `gorm:"not null" json:"quantity" bson:"quantity"`
	UnitPrice    float64 `gorm:"not null" json:"unit_price" bson:"unit_price"`
	TotalPrice   float64 `gorm:"not null" json:"total_price" bson:"total_price"`
}

type Order struct {
	ID          string      `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	OrderNumber string      `gorm:"size:40;uniqueIndex;not null" json:"order_number" bson:"order_number"`
	UserID      string      `gorm:"size:64;index;not null" json:"user_id" bson:"user_id"`
	Status      OrderStatus `gorm:"size:20;index;not null;default:pending" json:"status" bson:"status"`
	Items       []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items" bson:"items"`

	Subtotal       float64 `json:"subtotal" bson:"subtotal"`
	TaxAmount      float64 `json:"tax_amount" bson:"tax_amount"`
	ShippingFee    float64 `json:"shipping_fee" bson:"shipping_fee"`
	DiscountAmount float64 `json:"discount_amount" bson:"discount_amount"`
	TotalAmount    float64 `json:"total_amount" bson:"total_amount"`
	Currency       string  `gorm:"size:8;not null;default:VND" json:"currency" bson:"currency"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address" bson:"shipping_address"`
	PaymentInfo     PaymentInfo     `gorm:"embedded;embeddedPrefix:payment_" json:"payment_info" bson:"payment_info"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty" bson:"notes,omitempty"`

	TrackingNumber        *string    `gorm:"size:64" json:"tracking_number,omitempty" bson:"tracking_number,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty" bson:"estimated_delivery_date,omitempty"`
	CancellationReason    *string    `gorm:"size:255" json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

// CanBeCancelled: chỉ hủy được khi đơn còn pending hoặc confirmed
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

type OrderItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type ShippingAddressInput struct {
	FullName    string `json:"full_name" validate:"required,max=120"`
	Phone       string `json:"phone" validate:"required,max=20"`
	Email       string `json:"email" validate:"omitempty,email,max=120"`
	AddressLine string `json:"address_line" validate:"required,max=255"`
	Ward        string `json:"ward" validate:"max=120"`
	District    string `json:"district" validate:"max=120"`
	City        string `json:"city" validate:"required,max=120"`
	Country     string `json:"country" validate:"max=60"`
	PostalCode  string `json:"postal_code" validate:"max=20"`
}

type CreateOrderInput struct {
	Items           []OrderItemInput     `json:"items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddressInput `json:"shipping_address" validate:"required"`
	PaymentMethod   string               `json:"payment_method" validate:"required,oneof=cod payos bank_transfer"`
	Currency        string               `json:"currency" validate:"omitempty,len=3"`
	Notes           string               `json:"notes" validate:"max=1000"`
}

type UpdateOrderStatusInput struct {
	Status                string      `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	TrackingNumber        *string     `json:"tracking_number" validate:"omitempty,max=64"`
	EstimatedDeliveryDate *CustomDate `json:"estimated_delivery_date"`
}

type CancelOrderInput struct {
	Reason string `json:"reason" validate:"max=255"`
}

// OrderQuery is the query string accepted by the order listing endpoints.
type OrderQuery struct {
	Page          int    `query:"page" validate:"omitempty,min=1"`
	Limit         int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Status        string `query:"status" validate:"omitempty,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	PaymentMethod string `query:"payment_method" validate:"omitempty,oneof=cod payos bank_transfer"`
	PaymentStatus string `query:"payment_status" validate:"omitempty,oneof=pending processing completed cancelled expired"`
	From          string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To            string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	SortBy        string `query:"sort_by" validate:"omitempty,oneof=created_at updated_at total_amount"`
	SortOrder     string `query:"sort_order" validate:"omitempty,oneof=asc desc"`
}

type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type PaginatedOrders struct {
	Items      []Order  `json:"items"`
	Pagination PageInfo `json:"pagination"`
}

type OrderStats struct {
	TotalOrders  int64   `json:"total_orders"`
	TotalRevenue float64 `json:"total_revenue"`
	Pending      int64   `json:"pending"`
	Confirmed    int64   `json:"confirmed"`
	Processing   int64   `json:"processing"`
	Shipped      int64   `json:"shipped"`
	Delivered    int64   `json:"delivered"`
	Cancelled    int64   `json:"cancelled"`
	Refunded     int64   `json:"refunded"`
}

// SetCount stores n under the counter for status; unknown statuses are ignored.
func (s *OrderStats) SetCount(status OrderStatus, n int64) {
	switch status {
	case OrderStatusPending:
		s.Pending = n
	case OrderStatusConfirmed:
		s.Confirmed = n
	case OrderStatusProcessing:
		s.Processing = n
	case OrderStatusShipped:
		s.Shipped = n
	case OrderStatusDelivered:
		s.Delivered = n
	case OrderStatusCancelled:
		s.Cancelled = n
	case OrderStatusRefunded:
		s.Refunded = n
	}
}

// OrderEvent is published whenever an order or its payment changes state.
type OrderEvent struct {
	Kind          string        `json:"kind"`
	OrderID       string        `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	At            time.Time     `json:"at"`
}
