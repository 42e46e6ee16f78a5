package payos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fashion_shop/model"

	"github.com/sony/gobreaker/v2"
)

const (
	DefaultBaseURL      = "https://api-merchant.payos.vn"
	DefaultCancelReason = "Cancelled by customer"
	defaultTimeout      = 15 * time.Second
	maxItemNameLength   = 255
)

type Config struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	BaseURL     string
	ReturnURL   string
	CancelURL   string
	// Timeout bounds every outbound call.
	Timeout time.Duration
	// LinkTTL sets expiredAt on new links; zero leaves the provider default.
	LinkTTL time.Duration
}

func (c Config) configured() bool {
	return c.ClientID != "" && c.APIKey != "" && c.ChecksumKey != ""
}

type rawResponse struct {
	status int
	body   []byte
}

// Client is the PayOS payment-link adapter. It is safe for concurrent use
// and is meant to be built once at startup.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*rawResponse]
	codes   *CodeGenerator
	now     func() time.Time
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithCodeGenerator(g *CodeGenerator) Option {
	return func(c *Client) { c.codes = g }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		codes: NewCodeGenerator(),
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        "payos",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// CreatePaymentLink registers a payment link for the order. Validation and
// configuration problems fail before any network call.
func (c *Client) CreatePaymentLink(ctx context.Context, order *model.Order) (*PaymentLink, error) {
	if !c.cfg.configured() {
		return nil, ErrNotConfigured
	}
	if order == nil || len(order.Items) == 0 || order.TotalAmount <= 0 {
		return nil, ErrInvalidOrder
	}

	req := CreatePaymentRequest{
		OrderCode:   c.codes.Next(),
		Amount:      int64(math.Round(order.TotalAmount)),
		Description: CreateSafeDescription(order.OrderNumber),
		BuyerName:   order.ShippingAddress.FullName,
		BuyerPhone:  order.ShippingAddress.Phone,
		Items:       make([]PaymentItem, 0, len(order.Items)),
		CancelURL:   c.cfg.CancelURL,
		ReturnURL:   c.cfg.ReturnURL,
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidOrder
	}
	for _, item := range order.Items {
		req.Items = append(req.Items, PaymentItem{
			Name:     truncate(item.ProductName, maxItemNameLength),
			Quantity: item.Quantity,
			Price:    int64(math.Round(item.UnitPrice)),
		})
	}
	if c.cfg.LinkTTL > 0 {
		req.ExpiredAt = c.now().Add(c.cfg.LinkTTL).Unix()
	}
	req.Signature = createRequestSignature(c.cfg.ChecksumKey, req)

	env, err := c.do(ctx, http.MethodPost, "/v2/payment-requests", req)
	if err != nil {
		return nil, err
	}
	// an unsigned response is rejected like a forged one
	if err := verifyDataSignature(c.cfg.ChecksumKey, env.Data, env.Signature); err != nil {
		return nil, fmt.Errorf("verify payment link response: %w", err)
	}

	var link PaymentLink
	if err := json.Unmarshal(env.Data, &link); err != nil {
		return nil, fmt.Errorf("decode payment link: %w", err)
	}
	c.log.InfoContext(ctx, "payos payment link created",
		"order_number", order.OrderNumber, "order_code", link.OrderCode, "payment_link_id", link.PaymentLinkID)
	return &link, nil
}

// GetPaymentInfo always asks the provider; nothing is cached.
func (c *Client) GetPaymentInfo(ctx context.Context, orderCode int64) (*PaymentLinkInfo, error) {
	if !c.cfg.configured() {
		return nil, ErrNotConfigured
	}
	env, err := c.do(ctx, http.MethodGet, "/v2/payment-requests/"+strconv.FormatInt(orderCode, 10), nil)
	if err != nil {
		return nil, err
	}
	return decodeInfo(env)
}

func (c *Client) CancelPaymentLink(ctx context.Context, orderCode int64, reason string) (*PaymentLinkInfo, error) {
	if !c.cfg.configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultCancelReason
	}
	body := map[string]string{"cancellationReason": reason}
	env, err := c.do(ctx, http.MethodPost, "/v2/payment-requests/"+strconv.FormatInt(orderCode, 10)+"/cancel", body)
	if err != nil {
		return nil, err
	}
	return decodeInfo(env)
}

// VerifyPaymentWebhookData checks the payload signature against the checksum
// key and returns the decoded data. Any failure must reject the webhook.
func (c *Client) VerifyPaymentWebhookData(payload WebhookPayload) (*WebhookData, error) {
	if c.cfg.ChecksumKey == "" {
		return nil, ErrNotConfigured
	}
	if len(payload.Data) == 0 {
		return nil, ErrInvalidSignature
	}
	if err := verifyDataSignature(c.cfg.ChecksumKey, payload.Data, payload.Signature); err != nil {
		return nil, err
	}

	var data WebhookData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return &data, nil
}

func decodeInfo(env *envelope) (*PaymentLinkInfo, error) {
	var info PaymentLinkInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		return nil, fmt.Errorf("decode payment info: %w", err)
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*envelope, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payos request: %w", err)
		}
		body = b
	}

	res, err := c.breaker.Execute(func() (*rawResponse, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-client-id", c.cfg.ClientID)
		req.Header.Set("x-api-key", c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: http %d", ErrProviderUnavailable, resp.StatusCode)
		}
		return &rawResponse{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		c.log.WarnContext(ctx, "payos request failed", "method", method, "path", path, "error", err)
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return nil, &APIError{HTTPStatus: res.status, Code: "", Desc: http.StatusText(res.status)}
	}
	if env.Code != successCode {
		return nil, &APIError{HTTPStatus: res.status, Code: env.Code, Desc: env.Desc}
	}
	return &env, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
