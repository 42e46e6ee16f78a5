package handler

import (
	"context"
	"log/slog"
	"time"

	"fashion_shop/cache"
	"fashion_shop/service"

	"github.com/gofiber/fiber/v2"
)

const defaultQRSize = 320

// Handler groups the HTTP endpoints and the services they call.
type Handler struct {
	orders   *service.OrderService
	payments *service.PaymentService
	products *service.ProductService
	events   cache.EventSubscriber
	ping     func(ctx context.Context) error
	log      *slog.Logger
	qrSize   int
}

type Option func(*Handler)

func WithEvents(events cache.EventSubscriber) Option {
	return func(h *Handler) { h.events = events }
}

// WithHealthCheck sets the dependency probe used by /health.
func WithHealthCheck(ping func(ctx context.Context) error) Option {
	return func(h *Handler) { h.ping = ping }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

func New(orders *service.OrderService, payments *service.PaymentService, products *service.ProductService, opts ...Option) *Handler {
	h := &Handler{
		orders:   orders,
		payments: payments,
		products: products,
		log:      slog.Default(),
		qrSize:   defaultQRSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.log.Warn("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
