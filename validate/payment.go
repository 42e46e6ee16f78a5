package validate

import (
	"fashion_shop/model"

	"github.com/gofiber/fiber/v2"
)

func CreatePayment() fiber.Handler {
	return body[model.CreatePaymentInput]()
}

func CancelPayment() fiber.Handler {
	return optionalBody[model.CancelPaymentInput]()
}

func UpdatePaymentStatus() fiber.Handler {
	return body[model.UpdatePaymentStatusInput]()
}

func PaymentQuery() fiber.Handler {
	return query[model.PaymentQuery]()
}
