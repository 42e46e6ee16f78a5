package validate

import (
	"fashion_shop/model"

	"github.com/gofiber/fiber/v2"
)

func CreateProduct() fiber.Handler {
	return body[model.CreateProductInput]()
}

func ProductQuery() fiber.Handler {
	return query[model.ProductQuery]()
}
