package handler

import (
	"errors"

	"fashion_shop/constants"
	"fashion_shop/helper"
	"fashion_shop/model"
	"fashion_shop/payos"
	"fashion_shop/service"
	"fashion_shop/utils"

	"github.com/gofiber/fiber/v2"
)

func orderCodeFromLocals(c *fiber.Ctx) (int64, error) {
	code, ok := c.Locals("orderCode").(int64)
	if !ok {
		return 0, utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ORDER_CODE_INVALID, errors.New("params invalid"))
	}
	return code, nil
}

func (h *Handler) CreatePayment(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}
	input, err := inputFromLocals[model.CreatePaymentInput](c, "input")
	if err != nil {
		return err
	}

	link, err := h.payments.CreatePayment(c.UserContext(), claim.UserId, input.OrderID)
	if err != nil {
		return h.respondError(c, err)
	}

	// ảnh QR chỉ để hiển thị, lỗi thì bỏ qua
	if link.QRCode != "" {
		if img, err := utils.QRCodeDataURL(link.QRCode, h.qrSize); err == nil {
			link.QRImage = img
		} else {
			h.log.Warn("render payment qr failed", "order_code", link.OrderCode, "error", err)
		}
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, link)
}

func (h *Handler) GetPaymentStatus(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}
	code, err := orderCodeFromLocals(c)
	if err != nil {
		return err
	}

	status, err := h.payments.GetPaymentStatus(c.UserContext(), helper.ScopeFromClaim(claim), code)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, status)
}

func (h *Handler) CancelPayment(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}
	code, err := orderCodeFromLocals(c)
	if err != nil {
		return err
	}
	input, err := inputFromLocals[model.CancelPaymentInput](c, "input")
	if err != nil {
		return err
	}

	order, err := h.payments.CancelPayment(c.UserContext(), helper.ScopeFromClaim(claim), code, input.Reason)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}

// UpdatePaymentStatus là cập nhật tay của admin, đi qua cùng luồng chuyển trạng thái với webhook
func (h *Handler) UpdatePaymentStatus(c *fiber.Ctx) error {
	code, err := orderCodeFromLocals(c)
	if err != nil {
		return err
	}
	input, err := inputFromLocals[model.UpdatePaymentStatusInput](c, "input")
	if err != nil {
		return err
	}

	order, err := h.payments.OverrideStatus(c.UserContext(), code, input.Status)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}

func (h *Handler) GetMyPayments(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}
	query, err := inputFromLocals[model.PaymentQuery](c, "query")
	if err != nil {
		return err
	}

	payments, err := h.payments.ListUserPayments(c.UserContext(), claim.UserId, query.Page, query.Limit)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, payments)
}

func (h *Handler) GetUserPayments(c *fiber.Ctx) error {
	query, err := inputFromLocals[model.PaymentQuery](c, "query")
	if err != nil {
		return err
	}

	payments, err := h.payments.ListUserPayments(c.UserContext(), c.Params("user_id"), query.Page, query.Limit)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, payments)
}

// webhookResponse is the envelope PayOS expects back from the webhook.
func webhookResponse(c *fiber.Ctx, status, code int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
		"data":    data,
	})
}

// PayOSWebhook không cần đăng nhập, chữ ký được kiểm tra trong service
func (h *Handler) PayOSWebhook(c *fiber.Ctx) error {
	var payload payos.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return webhookResponse(c, fiber.StatusBadRequest, -1, constants.ERROR_INPUT, nil)
	}

	result, err := h.payments.HandleWebhook(c.UserContext(), payload)
	switch {
	case err == nil:
		return webhookResponse(c, fiber.StatusOK, 0, constants.WEBHOOK_OK, result)
	case errors.Is(err, payos.ErrInvalidSignature):
		h.log.Warn("webhook rejected", "error", err)
		return webhookResponse(c, fiber.StatusBadRequest, -1, constants.WEBHOOK_INVALID_SIGNATURE, nil)
	case errors.Is(err, service.ErrOrderNotFound):
		return webhookResponse(c, fiber.StatusNotFound, -1, constants.WEBHOOK_ORDER_NOT_FOUND, nil)
	default:
		h.log.ErrorContext(c.UserContext(), "webhook processing failed", "error", err)
		return webhookResponse(c, fiber.StatusInternalServerError, -1, constants.ERROR_INTERNAL_ERROR, nil)
	}
}
