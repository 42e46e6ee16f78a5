package handler

import (
	"errors"
	"strings"

	"fashion_shop/constants"
	"fashion_shop/payos"
	"fashion_shop/service"
	"fashion_shop/utils"

	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{service.ErrOrderNotFound, fiber.StatusNotFound, constants.ORDER_NOT_FOUND},
	{service.ErrProductNotFound, fiber.StatusNotFound, constants.PRODUCT_NOT_FOUND},
	{service.ErrInvalidOrderItems, fiber.StatusBadRequest, constants.ERROR_INPUT},
	{service.ErrInvalidQuery, fiber.StatusBadRequest, constants.ERROR_INPUT},
	{service.ErrInvalidOrderStatus, fiber.StatusBadRequest, constants.ORDER_STATUS_INVALID},
	{service.ErrInvalidStatusTransition, fiber.StatusBadRequest, constants.ORDER_STATUS_TRANSITION},
	{service.ErrInvalidPaymentStatus, fiber.StatusBadRequest, constants.PAYMENT_STATUS_INVALID},
	{service.ErrOrderNotCancellable, fiber.StatusBadRequest, constants.ORDER_NOT_CANCELLABLE},
	{service.ErrOrderNotPayable, fiber.StatusBadRequest, constants.ORDER_NOT_PAYABLE},
	{service.ErrPaymentAlreadyCompleted, fiber.StatusBadRequest, constants.PAYMENT_ALREADY_COMPLETED},
	{service.ErrPaymentFinalized, fiber.StatusBadRequest, constants.PAYMENT_FINALIZED},
	{service.ErrUnsupportedPaymentMethod, fiber.StatusBadRequest, constants.PAYMENT_METHOD_UNSUPPORTED},
	{payos.ErrInvalidOrder, fiber.StatusBadRequest, constants.PAYMENT_ORDER_INVALID},
	{payos.ErrProviderUnavailable, fiber.StatusServiceUnavailable, constants.PAYMENT_PROVIDER_UNAVAILABLE},
	{payos.ErrNotConfigured, fiber.StatusServiceUnavailable, constants.PAYMENT_PROVIDER_UNAVAILABLE},
}

// statusFor maps a service or adapter error to an HTTP status and the
// client-facing message.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	var apiErr *payos.APIError
	if errors.As(err, &apiErr) {
		return fiber.StatusBadGateway, constants.PAYMENT_PROVIDER_FAILED
	}
	return fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR
}

// respondError writes the error envelope. Provider details and internal
// errors stay in the log.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	status, message := statusFor(err)
	switch {
	case status == fiber.StatusInternalServerError:
		h.log.ErrorContext(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return utils.ErrorResponse(c, status, message, nil)
	case status >= fiber.StatusBadGateway:
		h.log.WarnContext(c.UserContext(), "payment provider call failed", "path", c.Path(), "error", err)
		return utils.ErrorResponse(c, status, message, errors.New(contextPrefix(err)))
	}
	return utils.ErrorResponse(c, status, message, err)
}

// contextPrefix returns the outermost wrap context, e.g. "failed to create
// payment link" for "failed to create payment link: payos: ...".
func contextPrefix(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 {
		return msg[:i]
	}
	return msg
}
