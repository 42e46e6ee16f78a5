package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fashion_shop/config"
	"fashion_shop/model"
	"fashion_shop/repository"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Stores bundles the repositories of the configured driver and the hook that
// releases its connections.
type Stores struct {
	Orders   repository.OrderRepository
	Products repository.ProductRepository
	Ping     func(context.Context) error
	Close    func(context.Context) error
}

// Connect opens the store selected by cfg.Driver, prepares its schema or
// indexes and seeds the catalog when enabled.
func Connect(ctx context.Context, cfg config.DatabaseSettings) (*Stores, error) {
	var stores *Stores
	switch cfg.Driver {
	case DriverPostgres:
		db, err := ConnectDB(cfg)
		if err != nil {
			return nil, err
		}
		stores = &Stores{
			Orders:   repository.NewGormOrderRepository(db),
			Products: repository.NewGormProductRepository(db),
			Ping: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			Close: func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}
	case DriverMongo:
		db, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		stores = &Stores{
			Orders:   repository.NewMongoOrderRepository(db),
			Products: repository.NewMongoProductRepository(db),
			Ping: func(ctx context.Context) error {
				return db.Client().Ping(ctx, nil)
			},
			Close: db.Client().Disconnect,
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if cfg.Seed {
		if err := SeedProducts(ctx, stores.Products); err != nil {
			slog.Warn("failed to seed products", "error", err)
		}
	}
	return stores, nil
}

// ConnectDB opens PostgreSQL through gorm and migrates the order schema.
func ConnectDB(cfg config.DatabaseSettings) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	slog.Info("connection opened to database", "driver", DriverPostgres, "host", cfg.Host, "name", cfg.Name)

	if err := db.AutoMigrate(
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("database migrated")
	return db, nil
}

func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
		return nil, err
	}
	slog.Info("connection opened to database", "driver", DriverMongo, "name", database)
	return db, nil
}
