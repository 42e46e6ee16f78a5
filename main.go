package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fashion_shop/cache"
	"fashion_shop/config"
	"fashion_shop/database"
	"fashion_shop/handler"
	"fashion_shop/payos"
	"fashion_shop/router"
	"fashion_shop/scheduler"
	"fashion_shop/service"
	"fashion_shop/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := utils.InitLogger(cfg.LogLevel, cfg.AppEnv)
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	redisClient := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// webhook dedupe và websocket cần redis, thiếu thì vẫn chạy được
		log.Warn("redis unavailable at startup", "addr", cfg.Redis.Addr, "error", err)
	}
	events := cache.NewRedisEvents(redisClient)

	gateway := payos.New(payos.Config{
		ClientID:    cfg.PayOS.ClientID,
		APIKey:      cfg.PayOS.APIKey,
		ChecksumKey: cfg.PayOS.ChecksumKey,
		BaseURL:     cfg.PayOS.BaseURL,
		ReturnURL:   cfg.PayOS.ReturnURL,
		CancelURL:   cfg.PayOS.CancelURL,
		Timeout:     cfg.PayOS.Timeout,
		LinkTTL:     cfg.PayOS.LinkTTL,
	}, payos.WithLogger(log))

	var mailer service.Mailer
	if cfg.SMTP.Host != "" {
		mailer = utils.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		log.Info("SMTP_HOST not set, order emails disabled")
	}
	notifier := service.NewEventNotifier(events, mailer, cfg.AppURL, log)
	defer notifier.Wait()

	opts := []service.Option{service.WithLogger(log), service.WithNotifier(notifier)}
	orders := service.NewOrderService(stores.Orders, stores.Products, gateway, service.Pricing{
		Currency:              cfg.Shop.Currency,
		TaxRate:               cfg.Shop.TaxRate,
		ShippingFee:           cfg.Shop.ShippingFee,
		FreeShippingThreshold: cfg.Shop.FreeShippingThreshold,
	}, opts...)
	payments := service.NewPaymentService(orders, gateway, cache.NewRedisDeduper(redisClient, cfg.Redis.WebhookDedupeTTL), opts...)
	products := service.NewProductService(stores.Products, opts...)

	h := handler.New(orders, payments, products,
		handler.WithEvents(events),
		handler.WithHealthCheck(stores.Ping),
		handler.WithLogger(log),
	)

	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept",
		AllowCredentials: true,
		ExposeHeaders:    "Set-Cookie",
		MaxAge:           600,
	}))
	router.SetupRoutes(app, h, []byte(cfg.JWTSecret))

	if cfg.Jobs.Enabled {
		jobs, err := scheduler.New(payments, orders, cfg.Jobs, log)
		if err != nil {
			return err
		}
		jobs.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := jobs.Shutdown(shutdownCtx); err != nil {
				log.Warn("background jobs shutdown", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Port, "env", cfg.AppEnv, "db_driver", cfg.Database.Driver)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
