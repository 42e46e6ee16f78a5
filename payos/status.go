package payos

import (
	"strings"
	"time"

	"fashion_shop/model"
)

var statusMap = map[string]model.PaymentStatus{
	"PENDING":    model.PaymentStatusPending,
	"PROCESSING": model.PaymentStatusProcessing,
	"PAID":       model.PaymentStatusCompleted,
	"CANCELLED":  model.PaymentStatusCancelled,
	"EXPIRED":    model.PaymentStatusExpired,
}

// MapPaymentStatus translates a PayOS status into the internal vocabulary.
// Unknown values map to pending so they can never complete an order.
func MapPaymentStatus(providerStatus string) model.PaymentStatus {
	if s, ok := statusMap[strings.ToUpper(strings.TrimSpace(providerStatus))]; ok {
		return s
	}
	return model.PaymentStatusPending
}

// WebhookStatus derives the provider status carried by a webhook. PayOS
// reports a successful transfer with code "00"; other codes carry the
// provider status word in desc when they carry one at all.
func WebhookStatus(data *WebhookData) string {
	if data.Code == successCode {
		return "PAID"
	}
	return strings.ToUpper(strings.TrimSpace(data.Desc))
}

var ictZone = time.FixedZone("ICT", 7*3600)

// ParseTransactionTime parses PayOS "2006-01-02 15:04:05" timestamps (ICT).
// RFC 3339 values are accepted too.
func ParseTransactionTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, ictZone); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
