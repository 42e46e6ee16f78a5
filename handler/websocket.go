package handler

import (
	"context"
	"errors"

	"fashion_shop/constants"
	"fashion_shop/helper"
	"fashion_shop/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// OrderSocketGuard chạy trước khi upgrade: chỉ chủ đơn (hoặc admin) mới được theo dõi đơn
func (h *Handler) OrderSocketGuard(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if h.events == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, constants.ERROR_INTERNAL_ERROR, errors.New("order events disabled"))
	}
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrderByOrderNumber(c.UserContext(), c.Params("orderNumber"), helper.ScopeFromClaim(claim))
	if err != nil {
		return h.respondError(c, err)
	}

	c.Locals("orderNumber", order.OrderNumber)
	return c.Next()
}

// OrderSocket chuyển tiếp sự kiện của đơn từ redis tới client
func (h *Handler) OrderSocket(c *websocket.Conn) {
	orderNumber, _ := c.Locals("orderNumber").(string)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.events.SubscribeOrder(ctx, orderNumber)
	if err != nil {
		h.log.Warn("order socket subscribe failed", "order_number", orderNumber, "error", err)
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return
	}
	defer sub.Close()

	// client đóng kết nối thì dừng relay
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// OrderSocketHandler is the upgrade endpoint, to be mounted after OrderSocketGuard.
func (h *Handler) OrderSocketHandler() fiber.Handler {
	return websocket.New(h.OrderSocket)
}
