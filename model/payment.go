package model

import (
	"strings"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodPayOS        PaymentMethod = "payos"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusExpired    PaymentStatus = "expired"
)

var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusCompleted,
	PaymentStatusCancelled,
	PaymentStatusExpired,
}

// TerminalPaymentStatuses can never be left once reached.
var TerminalPaymentStatuses = []PaymentStatus{
	PaymentStatusCompleted,
	PaymentStatusCancelled,
	PaymentStatusExpired,
}

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusCancelled || s == PaymentStatusExpired
}

// CanTransitionTo reports whether a payment may move from s to next.
// Staying in the same state is allowed so replays are no-ops.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusProcessing || next.IsTerminal()
	case PaymentStatusProcessing:
		return next.IsTerminal()
	default:
		return false
	}
}

// OrderStatusFor returns the order status a finalized payment drives the
// order into, or false when the payment status leaves the order untouched.
func (s PaymentStatus) OrderStatusFor() (OrderStatus, bool) {
	switch s {
	case PaymentStatusCompleted:
		return OrderStatusConfirmed, true
	case PaymentStatusCancelled, PaymentStatusExpired:
		return OrderStatusCancelled, true
	default:
		return "", false
	}
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range PaymentStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type PaymentInfo struct {
	Method         PaymentMethod `gorm:"column:method;size:20;not null" json:"method" bson:"method"`
	Status         PaymentStatus `gorm:"column:status;size:20;not null;index" json:"status" bson:"status"`
	PayOSOrderCode *int64        `gorm:"column:payos_order_code;uniqueIndex" json:"payos_order_code,omitempty" bson:"payos_order_code,omitempty"`
	PaymentLinkID  *string       `gorm:"column:link_id;size:64" json:"payment_link_id,omitempty" bson:"payment_link_id,omitempty"`
	CheckoutURL    *string       `gorm:"column:checkout_url;size:512" json:"checkout_url,omitempty" bson:"checkout_url,omitempty"`
	TransactionID  *string       `gorm:"column:transaction_id;size:128" json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	PaidAt         *time.Time    `gorm:"column:paid_at" json:"paid_at,omitempty" bson:"paid_at,omitempty"`
}

// PaymentInfoPatch is a sparse update: only non-nil fields are written.
type PaymentInfoPatch struct {
	Status         *PaymentStatus
	PayOSOrderCode *int64
	PaymentLinkID  *string
	CheckoutURL    *string
	TransactionID  *string
	PaidAt         *time.Time
}

func (p PaymentInfoPatch) IsEmpty() bool {
	return p.Status == nil && p.PayOSOrderCode == nil && p.PaymentLinkID == nil &&
		p.CheckoutURL == nil && p.TransactionID == nil && p.PaidAt == nil
}

type CreatePaymentInput struct {
	OrderID string `json:"order_id" validate:"required"`
}

type UpdatePaymentStatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending processing completed cancelled expired"`
}

type CancelPaymentInput struct {
	Reason string `json:"reason" validate:"max=255"`
}

type PaymentLinkResult struct {
	OrderID       string        `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	OrderCode     int64         `json:"order_code"`
	PaymentLinkID string        `json:"payment_link_id"`
	CheckoutURL   string        `json:"checkout_url"`
	QRCode        string        `json:"qr_code"`
	QRImage       string        `json:"qr_image,omitempty"`
	Amount        int64         `json:"amount"`
	Description   string        `json:"description,omitempty"`
	Status        PaymentStatus `json:"status"`
}

type PaymentTransaction struct {
	Reference           string `json:"reference"`
	Amount              int64  `json:"amount"`
	Description         string `json:"description"`
	TransactionDateTime string `json:"transaction_date_time"`
}

type PaymentStatusResult struct {
	OrderID         string               `json:"order_id"`
	OrderNumber     string               `json:"order_number"`
	OrderCode       int64                `json:"order_code"`
	Status          PaymentStatus        `json:"status"`
	ProviderStatus  string               `json:"provider_status"`
	Amount          int64                `json:"amount"`
	AmountPaid      int64                `json:"amount_paid"`
	AmountRemaining int64                `json:"amount_remaining"`
	Transactions    []PaymentTransaction `json:"transactions"`
}

// PaymentSummary is the listing view of an order's payment.
type PaymentSummary struct {
	OrderID        string        `json:"order_id"`
	OrderNumber    string        `json:"order_number"`
	UserID         string        `json:"user_id"`
	TotalAmount    float64       `json:"total_amount"`
	Currency       string        `json:"currency"`
	OrderStatus    OrderStatus   `json:"order_status"`
	Method         PaymentMethod `json:"method"`
	Status         PaymentStatus `json:"status"`
	PayOSOrderCode *int64        `json:"payos_order_code,omitempty"`
	CheckoutURL    *string       `json:"checkout_url,omitempty"`
	TransactionID  *string       `json:"transaction_id,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type PaginatedPayments struct {
	Items      []PaymentSummary `json:"items"`
	Pagination PageInfo         `json:"pagination"`
}

type PaymentQuery struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}
