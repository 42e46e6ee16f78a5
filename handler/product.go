package handler

import (
	"fashion_shop/model"
	"fashion_shop/utils"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetProducts(c *fiber.Ctx) error {
	query, err := inputFromLocals[model.ProductQuery](c, "query")
	if err != nil {
		return err
	}

	products, err := h.products.List(c.UserContext(), query)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, products)
}

func (h *Handler) CreateProduct(c *fiber.Ctx) error {
	input, err := inputFromLocals[model.CreateProductInput](c, "input")
	if err != nil {
		return err
	}

	product, err := h.products.Create(c.UserContext(), input)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, product)
}
