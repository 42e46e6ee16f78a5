package payos

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured       = errors.New("payos: client id, api key and checksum key must be configured")
	ErrInvalidOrder        = errors.New("payos: order must have at least one item and a positive total")
	ErrInvalidSignature    = errors.New("payos: invalid signature")
	ErrProviderUnavailable = errors.New("payos: provider unavailable")
)

// APIError is a definitive rejection returned by PayOS (code != "00").
type APIError struct {
	HTTPStatus int
	Code       string
	Desc       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payos: %s (code %s, http %d)", e.Desc, e.Code, e.HTTPStatus)
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
