package payos

import "unicode/utf8"

const (
	// MaxDescriptionLength is the PayOS limit for a transfer description.
	MaxDescriptionLength = 25
	DescriptionPrefix    = "Thanh toan "
)

// CreateSafeDescription keeps the prefix and as much of the order number as
// fits into MaxDescriptionLength runes, dropping the tail.
func CreateSafeDescription(orderNumber string) string {
	room := MaxDescriptionLength - utf8.RuneCountInString(DescriptionPrefix)
	runes := []rune(orderNumber)
	if len(runes) > room {
		runes = runes[:room]
	}
	return DescriptionPrefix + string(runes)
}
