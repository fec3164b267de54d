// Package catalog is the HTTP client of the product catalog and stock service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/currency"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCatalogUnavailable = errors.New("catalog is unavailable")
)

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Currency       currency.Unit
	CircuitBreaker CircuitBreakerConfig
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32
	ErrorRatePercent    int
	OpenTimeout         time.Duration
}

const (
	defaultConsecutiveFailures = 5

	// maxResponseBytes caps a single catalog response body.
	maxResponseBytes = 1 << 20
)

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

type Client struct {
	baseURL  *url.URL
	currency currency.Unit
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
}

type productResponse struct {
	ID    int64           `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

type stockResponse struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// statusError carries a non-2xx response; 4xx responses do not trip the breaker.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("url.Parse: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("catalog base url %q must be absolute", cfg.BaseURL)
	}

	if cfg.CircuitBreaker.ConsecutiveFailures == 0 {
		cfg.CircuitBreaker.ConsecutiveFailures = defaultConsecutiveFailures
	}

	c := &Client{
		baseURL:  base,
		currency: cfg.Currency,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: newCircuitBreaker(cfg.CircuitBreaker),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func newCircuitBreaker(cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[[]byte] {
	st := gobreaker.Settings{
		Name:        "catalog-cb",
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// caller-side problems say nothing about the catalog health
			if errors.Is(err, context.Canceled) {
				return true
			}
			var se *statusError
			if errors.As(err, &se) {
				return se.code < http.StatusInternalServerError
			}
			return false
		},
	}

	return gobreaker.NewCircuitBreaker[[]byte](st)
}

func (c *Client) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	var resp productResponse
	if err := c.getJSON(ctx, "products", productID, &resp); err != nil {
		return domain.Product{}, fmt.Errorf("getJSON: %w", err)
	}

	return domain.Product{
		ID:    resp.ID,
		Title: resp.Title,
		Price: domain.Money{Amount: resp.Price, Currency: c.currency},
		Image: resp.Image,
	}, nil
}

func (c *Client) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	var resp stockResponse
	if err := c.getJSON(ctx, "stock", productID, &resp); err != nil {
		return domain.Stock{}, fmt.Errorf("getJSON: %w", err)
	}

	if resp.Amount < 0 {
		return domain.Stock{}, fmt.Errorf("stock[%d] has negative amount %d", productID, resp.Amount)
	}

	return domain.Stock{ID: resp.ID, Amount: resp.Amount}, nil
}

func (c *Client) getJSON(ctx context.Context, resource string, id int64, dst any) error {
	endpoint := c.baseURL.JoinPath(resource, strconv.FormatInt(id, 10))

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, endpoint.String())
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	case err != nil:
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return fmt.Errorf("%s[%d]: %w", resource, id, ErrProductNotFound)
		}
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Do: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}

	return body, nil
}
