package validate

import (
	"errors"
	"strconv"

	"fashion_shop/constants"
	"fashion_shop/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// body parses the JSON body into T, validates it and stores it in
// Locals("input").
func body[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input T

		if err := c.BodyParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ERROR_INPUT, err)
		}
		if err := validate.Struct(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ERROR_INPUT, err)
		}

		c.Locals("input", input)
		return c.Next()
	}
}

// optionalBody is body for endpoints where the whole body may be omitted.
func optionalBody[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input T

		if len(c.Body()) > 0 {
			if err := c.BodyParser(&input); err != nil {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ERROR_INPUT, err)
			}
		}
		if err := validate.Struct(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ERROR_INPUT, err)
		}

		c.Locals("input", input)
		return c.Next()
	}
}

func query[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input T

		if err := c.QueryParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ERROR_INPUT, err)
		}
		if err := validate.Struct(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ERROR_INPUT, err)
		}

		c.Locals("query", input)
		return c.Next()
	}
}

// OrderCode đọc mã đơn PayOS (số nguyên dương) từ params
func OrderCode(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code, err := strconv.ParseInt(c.Params(key), 10, 64)
		if err != nil || code <= 0 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.ORDER_CODE_INVALID, errors.New("params invalid"))
		}

		c.Locals("orderCode", code)
		return c.Next()
	}
}
