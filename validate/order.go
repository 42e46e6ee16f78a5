package validate

import (
	"fashion_shop/model"

	"github.com/gofiber/fiber/v2"
)

func CreateOrder() fiber.Handler {
	return body[model.CreateOrderInput]()
}

func UpdateOrderStatus() fiber.Handler {
	return body[model.UpdateOrderStatusInput]()
}

func CancelOrder() fiber.Handler {
	return optionalBody[model.CancelOrderInput]()
}

func OrderQuery() fiber.Handler {
	return query[model.OrderQuery]()
}
