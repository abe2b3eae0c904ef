package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirinyoku/cinetix/internal/metrics"
)

const DefaultBaseURL = "https://api.mercadopago.com"

var ErrPaymentNotFound = errors.New("payment not found")

// APIError is a non-success response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
	Cause      string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	if e.Cause != "" {
		return fmt.Sprintf("gateway rejected the request: %s - %s", msg, e.Cause)
	}
	return fmt.Sprintf("gateway rejected the request: %s", msg)
}

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

type Client struct {
	baseURL     string
	accessToken string
	hc          *http.Client
	metrics     *metrics.Metrics
}

func NewClient(cfg Config, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		hc:          &http.Client{Timeout: cfg.Timeout},
		metrics:     m,
	}
}

// CreatePreference registers a checkout session.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	const op = "mercadopago.Client.CreatePreference"

	var pref Preference
	if err := c.do(ctx, "create_preference", http.MethodPost, "/checkout/preferences", req, &pref); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if pref.ID == "" {
		return nil, fmt.Errorf("%s: empty preference id in response", op)
	}

	return &pref, nil
}

// GetPayment fetches the authoritative payment record.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	const op = "mercadopago.Client.GetPayment"

	var p Payment
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "get_payment", http.MethodGet, path, nil, &p); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &p, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.metrics.ObserveGateway(operation, result, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var body apiError
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}

	apiErr.Message = body.Message
	if apiErr.Message == "" {
		apiErr.Message = body.Error
	}
	if len(body.Cause) > 0 && string(body.Cause) != "null" && string(body.Cause) != "[]" {
		apiErr.Cause = string(body.Cause)
	}

	return apiErr
}
