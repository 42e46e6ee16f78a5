package router

import (
	"fashion_shop/handler"
	"fashion_shop/middleware"
	"fashion_shop/validate"

	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(app *fiber.App, h *handler.Handler, secret []byte) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	protected := middleware.Protected(secret)
	admin := middleware.AdminOnly()

	v1.Get("/health", h.Health)

	products := v1.Group("/products")
	products.Get("/", validate.ProductQuery(), h.GetProducts)
	products.Post("/", protected, admin, validate.CreateProduct(), h.CreateProduct)

	// route cụ thể phải đăng ký trước /:id
	orders := v1.Group("/orders", protected)
	orders.Get("/admin/all", admin, validate.OrderQuery(), h.GetAllOrders)
	orders.Get("/admin/stats", admin, h.GetAdminOrderStats)
	orders.Get("/admin/:id", admin, h.GetAnyOrder)
	orders.Patch("/admin/:id/status", admin, validate.UpdateOrderStatus(), h.UpdateOrderStatus)
	orders.Post("/", validate.CreateOrder(), h.CreateOrder)
	orders.Get("/my-orders", validate.OrderQuery(), h.GetMyOrders)
	orders.Get("/my-stats", h.GetMyOrderStats)
	orders.Get("/order-number/:orderNumber", h.GetOrderByOrderNumber)
	orders.Patch("/:id/cancel", validate.CancelOrder(), h.CancelOrder)
	orders.Get("/:id", h.GetOrderById)

	payments := v1.Group("/payments")
	// PayOS gọi webhook không có token, xác thực bằng chữ ký
	payments.Post("/webhook", h.PayOSWebhook)
	payments.Post("/", protected, validate.CreatePayment(), h.CreatePayment)
	payments.Get("/my-payments", protected, validate.PaymentQuery(), h.GetMyPayments)
	payments.Get("/status/:order_code", protected, validate.OrderCode("order_code"), h.GetPaymentStatus)
	payments.Post("/cancel/:order_code", protected, validate.OrderCode("order_code"), validate.CancelPayment(), h.CancelPayment)
	payments.Post("/update-status/:order_code", protected, admin, validate.OrderCode("order_code"), validate.UpdatePaymentStatus(), h.UpdatePaymentStatus)
	payments.Get("/admin/user/:user_id/payments", protected, admin, validate.PaymentQuery(), h.GetUserPayments)

	ws := v1.Group("/ws")
	ws.Get("/orders/:orderNumber", protected, h.OrderSocketGuard, h.OrderSocketHandler())
}
