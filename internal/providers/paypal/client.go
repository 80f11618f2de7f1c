package paypal

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

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"vaultbot/internal/infra"
)

const (
	LiveBaseURL    = "https://api-m.paypal.com"
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
)

// ErrMissingCredentials indicates that the client was configured without an
// OAuth2 client id or secret.
var ErrMissingCredentials = errors.New("paypal: client id and secret are required")

// Options configures the PayPal REST client.
type Options struct {
	ClientID       string
	Secret         string
	Mode           string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	MaxRetries     uint64
	RetryInterval  time.Duration
	BreakerTimeout time.Duration
	BreakerTrips   uint32
}

// Client talks to the PayPal reporting and notification APIs. Tokens come from
// the client-credentials grant and are cached until expiry.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	logger        *infra.Logger
	maxRetries    uint64
	retryInterval time.Duration
	breaker       *gobreaker.CircuitBreaker
}

// APIError is a non-2xx answer from PayPal.
type APIError struct {
	Status  int
	Name    string
	Message string
	DebugID string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("paypal: status %d: %s: %s", e.Status, e.Name, e.Message)
	}
	return fmt.Sprintf("paypal: status %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying the call may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Error   string `json:"error"`
	Detail  string `json:"error_description"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	clientID := strings.TrimSpace(opts.ClientID)
	secret := strings.TrimSpace(opts.Secret)
	if clientID == "" || secret == "" {
		return nil, ErrMissingCredentials
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = LiveBaseURL
		if strings.EqualFold(opts.Mode, "sandbox") {
			baseURL = SandboxBaseURL
		}
	}
	base := opts.HTTPClient
	if base == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		base = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 2 * time.Minute
	}
	trips := opts.BreakerTrips
	if trips == 0 {
		trips = 5
	}

	creds := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The token source outlives any single request, so it gets its own
	// background context carrying the base client.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	c := &Client{
		baseURL:       baseURL,
		httpClient:    creds.Client(tokenCtx),
		logger:        logger,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "paypal",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("paypal: circuit breaker state change")
		},
	})
	return c, nil
}

// BaseURL returns the API root in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState reports the circuit breaker state for diagnostics.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// do performs one logical API call: retried with exponential backoff on
// transient failures, guarded by the circuit breaker, and decoded into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("paypal: encode request: %w", err)
		}
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.retry(ctx, func() error {
			return c.attempt(ctx, method, endpoint, body, out)
		})
	})
	return err
}

func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxInterval = 10 * c.retryInterval
	policy.MaxElapsedTime = 0
	attempt := 0
	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx), func(err error, wait time.Duration) {
		attempt++
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("paypal: retrying request")
	})
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("paypal: build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) || ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("paypal: http request: %w", err))
		}
		return fmt.Errorf("paypal: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("paypal: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp.StatusCode, raw)
		if apiErr.Temporary() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("paypal: decode response: %w", err))
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		apiErr.Name = detail.Name
		apiErr.Message = detail.Message
		apiErr.DebugID = detail.DebugID
		if apiErr.Name == "" {
			apiErr.Name = detail.Error
			apiErr.Message = detail.Detail
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
