package handler

import (
	"errors"

	"fashion_shop/constants"
	"fashion_shop/helper"
	"fashion_shop/model"
	"fashion_shop/utils"

	"github.com/gofiber/fiber/v2"
)

// claimOrAbort trả về claim của user đã đăng nhập
func claimOrAbort(c *fiber.Ctx) (model.TokenClaim, error) {
	claim, ok := helper.GetTokenClaim(c)
	if !ok {
		return claim, utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.ERROR_UNAUTHORIZED, errors.New("no claim"))
	}
	return claim, nil
}

func inputFromLocals[T any](c *fiber.Ctx, key string) (T, error) {
	input, ok := c.Locals(key).(T)
	if !ok {
		return input, utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ERROR_PARSE_DATA_TO_LOCALS, errors.New("missing "+key))
	}
	return input, nil
}

func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}
	input, err := inputFromLocals[model.CreateOrderInput](c, "input")
	if err != nil {
		return err
	}

	order, err := h.orders.CreateOrder(c.UserContext(), claim.UserId, input)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, order)
}

func (h *Handler) GetMyOrders(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}
	query, err := inputFromLocals[model.OrderQuery](c, "query")
	if err != nil {
		return err
	}

	orders, err := h.orders.GetUserOrders(c.UserContext(), claim.UserId, query)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, orders)
}

func (h *Handler) GetMyOrderStats(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}

	stats, err := h.orders.GetOrderStats(c.UserContext(), model.OwnerScope(claim.UserId))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, stats)
}

// GetOrderById: admin xem được mọi đơn, user chỉ xem đơn của mình
func (h *Handler) GetOrderById(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrderByID(c.UserContext(), c.Params("id"), helper.ScopeFromClaim(claim))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}

func (h *Handler) GetOrderByOrderNumber(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrderByOrderNumber(c.UserContext(), c.Params("orderNumber"), helper.ScopeFromClaim(claim))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}

func (h *Handler) CancelOrder(c *fiber.Ctx) error {
	claim, err := claimOrAbort(c)
	if err != nil {
		return err
	}
	input, err := inputFromLocals[model.CancelOrderInput](c, "input")
	if err != nil {
		return err
	}

	order, err := h.orders.CancelOrder(c.UserContext(), c.Params("id"), claim.UserId, input.Reason)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}

func (h *Handler) GetAllOrders(c *fiber.Ctx) error {
	query, err := inputFromLocals[model.OrderQuery](c, "query")
	if err != nil {
		return err
	}

	orders, err := h.orders.GetAllOrders(c.UserContext(), query)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, orders)
}

func (h *Handler) GetAdminOrderStats(c *fiber.Ctx) error {
	stats, err := h.orders.GetOrderStats(c.UserContext(), model.AdminScope())
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, stats)
}

func (h *Handler) GetAnyOrder(c *fiber.Ctx) error {
	order, err := h.orders.GetOrderByID(c.UserContext(), c.Params("id"), model.AdminScope())
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}

func (h *Handler) UpdateOrderStatus(c *fiber.Ctx) error {
	input, err := inputFromLocals[model.UpdateOrderStatusInput](c, "input")
	if err != nil {
		return err
	}

	order, err := h.orders.UpdateOrderStatus(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}
