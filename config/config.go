package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

// Config đọc biến môi trường, tự nạp file .env ở lần gọi đầu tiên
func Config(key string) string {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Info("no .env file found, using system environment")
		}
	})
	return os.Getenv(key)
}

type Settings struct {
	AppEnv       string `default:"development"`
	Port         string `default:"8002"`
	AppURL       string `default:"http://localhost:5173"`
	AllowOrigins string `default:"http://localhost:5173"`
	JWTSecret    string
	LogLevel     string `default:"info"`

	Database DatabaseSettings
	Redis    RedisSettings
	PayOS    PayOSSettings
	Shop     ShopSettings
	SMTP     SMTPSettings
	Jobs     JobSettings
}

type DatabaseSettings struct {
	Driver        string `default:"postgres"`
	Host          string `default:"localhost"`
	Port          int    `default:"5432"`
	User          string `default:"postgres"`
	Password      string
	Name          string `default:"fashion_shop"`
	SSLMode       string `default:"disable"`
	MongoURI      string `default:"mongodb://localhost:27017"`
	MongoDatabase string `default:"fashion_shop"`
	Seed          bool   `default:"true"`
}

type RedisSettings struct {
	Addr             string `default:"localhost:6379"`
	Password         string
	DB               int
	WebhookDedupeTTL time.Duration `default:"24h"`
}

type PayOSSettings struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	BaseURL     string `default:"https://api-merchant.payos.vn"`
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration `default:"15s"`
	LinkTTL     time.Duration `default:"15m"`
}

type ShopSettings struct {
	Currency              string  `default:"VND"`
	TaxRate               float64 `default:"0"`
	ShippingFee           float64 `default:"30000"`
	FreeShippingThreshold float64 `default:"500000"`
}

type SMTPSettings struct {
	Host     string
	Port     int `default:"587"`
	Username string
	Password string
	From     string `default:"Fashion Shop <no-reply@fashionshop.vn>"`
}

type JobSettings struct {
	Enabled             bool          `default:"true"`
	ReconcileInterval   time.Duration `default:"5m"`
	ReconcileStaleAfter time.Duration `default:"10m"`
	PendingOrderTTL     time.Duration `default:"24h"`
	ExpireSchedule      string        `default:"*/10 * * * *"`
}

// Load builds Settings from struct defaults overridden by the environment.
func Load() (*Settings, error) {
	s := &Settings{}
	if err := defaults.Set(s); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	p := &envParser{}
	p.str("APP_ENV", &s.AppEnv)
	p.str("PORT", &s.Port)
	p.str("APP_URL", &s.AppURL)
	p.str("ALLOW_ORIGINS", &s.AllowOrigins)
	p.str("JWT_SECRET", &s.JWTSecret)
	p.str("LOG_LEVEL", &s.LogLevel)

	p.str("DB_DRIVER", &s.Database.Driver)
	p.str("DB_HOST", &s.Database.Host)
	p.int("DB_PORT", &s.Database.Port)
	p.str("DB_USER", &s.Database.User)
	p.str("DB_PASSWORD", &s.Database.Password)
	p.str("DB_NAME", &s.Database.Name)
	p.str("DB_SSLMODE", &s.Database.SSLMode)
	p.str("MONGO_URI", &s.Database.MongoURI)
	p.str("MONGO_DATABASE", &s.Database.MongoDatabase)
	p.bool("DB_SEED", &s.Database.Seed)

	p.str("REDIS_ADDR", &s.Redis.Addr)
	p.str("REDIS_PASSWORD", &s.Redis.Password)
	p.int("REDIS_DB", &s.Redis.DB)
	p.duration("WEBHOOK_DEDUPE_TTL", &s.Redis.WebhookDedupeTTL)

	p.str("PAYOS_CLIENT_ID", &s.PayOS.ClientID)
	p.str("PAYOS_API_KEY", &s.PayOS.APIKey)
	p.str("PAYOS_CHECKSUM_KEY", &s.PayOS.ChecksumKey)
	p.str("PAYOS_BASE_URL", &s.PayOS.BaseURL)
	p.str("PAYOS_RETURN_URL", &s.PayOS.ReturnURL)
	p.str("PAYOS_CANCEL_URL", &s.PayOS.CancelURL)
	p.duration("PAYOS_TIMEOUT", &s.PayOS.Timeout)
	p.duration("PAYOS_LINK_TTL", &s.PayOS.LinkTTL)

	p.str("CURRENCY", &s.Shop.Currency)
	p.float("TAX_RATE", &s.Shop.TaxRate)
	p.float("SHIPPING_FEE", &s.Shop.ShippingFee)
	p.float("FREE_SHIPPING_THRESHOLD", &s.Shop.FreeShippingThreshold)

	p.str("SMTP_HOST", &s.SMTP.Host)
	p.int("SMTP_PORT", &s.SMTP.Port)
	p.str("SMTP_USERNAME", &s.SMTP.Username)
	p.str("SMTP_PASSWORD", &s.SMTP.Password)
	p.str("SMTP_FROM", &s.SMTP.From)

	p.bool("JOBS_ENABLED", &s.Jobs.Enabled)
	p.duration("RECONCILE_INTERVAL", &s.Jobs.ReconcileInterval)
	p.duration("RECONCILE_STALE_AFTER", &s.Jobs.ReconcileStaleAfter)
	p.duration("PENDING_ORDER_TTL", &s.Jobs.PendingOrderTTL)
	p.str("EXPIRE_SCHEDULE", &s.Jobs.ExpireSchedule)

	if p.err != nil {
		return nil, p.err
	}

	appURL := strings.TrimRight(s.AppURL, "/")
	if s.PayOS.ReturnURL == "" {
		s.PayOS.ReturnURL = appURL + "/payment/success"
	}
	if s.PayOS.CancelURL == "" {
		s.PayOS.CancelURL = appURL + "/payment/cancel"
	}
	if s.Shop.TaxRate < 0 || s.Shop.ShippingFee < 0 || s.Shop.FreeShippingThreshold < 0 {
		return nil, fmt.Errorf("shop pricing settings must not be negative")
	}
	return s, nil
}

type envParser struct {
	err error
}

func (p *envParser) str(key string, dst *string) {
	if v := Config(key); v != "" {
		*dst = v
	}
}

func (p *envParser) int(key string, dst *int) {
	v := Config(key)
	if v == "" || p.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = n
}

func (p *envParser) float(key string, dst *float64) {
	v := Config(key)
	if v == "" || p.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = f
}

func (p *envParser) bool(key string, dst *bool) {
	v := Config(key)
	if v == "" || p.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = b
}

func (p *envParser) duration(key string, dst *time.Duration) {
	v := Config(key)
	if v == "" || p.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
		return
	}
	*dst = d
}
