package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"vaultbot/internal/infra"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	ParseModeMarkdown = "Markdown"
)

// ErrMissingToken indicates that the client was configured without a bot token.
var ErrMissingToken = errors.New("telegram: bot token is required")

// Options configures the Bot API client.
type Options struct {
	Token          string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	MaxRetries     uint64
	RetryInterval  time.Duration
	// MessagesPerSecond throttles outgoing calls. Zero uses the Bot API's
	// documented group limit.
	MessagesPerSecond float64
}

// Client is a minimal Bot API client: it sends messages and manages the webhook.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	logger        *infra.Logger
	limiter       *rate.Limiter
	maxRetries    uint64
	retryInterval time.Duration
}

// APIError is a Bot API response with ok=false.
type APIError struct {
	Status      int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: status %d: %s", e.Status, e.Description)
}

// Temporary reports whether retrying the call may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Message is an outgoing sendMessage call.
type Message struct {
	ChatID    int64
	ThreadID  int64
	Text      string
	ParseMode string
	ReplyTo   int64
}

type sendMessageRequest struct {
	ChatID          int64        `json:"chat_id"`
	MessageThreadID int64        `json:"message_thread_id,omitempty"`
	Text            string       `json:"text"`
	ParseMode       string       `json:"parse_mode,omitempty"`
	ReplyParameters *replyParams `json:"reply_parameters,omitempty"`
}

type replyParams struct {
	MessageID                int64 `json:"message_id"`
	AllowSendingWithoutReply bool  `json:"allow_sending_without_reply"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, ErrMissingToken
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	perSecond := opts.MessagesPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = time.Second
	}
	return &Client{
		baseURL:       baseURL,
		token:         token,
		httpClient:    httpClient,
		logger:        logger,
		limiter:       rate.NewLimiter(rate.Limit(perSecond), 5),
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
	}, nil
}

// SendMessage posts a text message to a chat, optionally inside a forum topic.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("telegram: message text is empty")
	}
	payload := sendMessageRequest{
		ChatID:          msg.ChatID,
		MessageThreadID: msg.ThreadID,
		Text:            msg.Text,
		ParseMode:       msg.ParseMode,
	}
	if msg.ReplyTo != 0 {
		payload.ReplyParameters = &replyParams{MessageID: msg.ReplyTo, AllowSendingWithoutReply: true}
	}
	if err := c.call(ctx, "sendMessage", payload); err != nil {
		return err
	}
	c.logger.Debug().Int64("chat_id", msg.ChatID).Int64("thread_id", msg.ThreadID).Msg("telegram: message sent")
	return nil
}

// SetWebhook points the bot's updates at url.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("telegram: webhook url is empty")
	}
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: []string{"message"},
	})
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: encode %s: %w", method, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limit: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxInterval = 10 * c.retryInterval
	policy.MaxElapsedTime = 0
	op := func() error {
		return c.attempt(ctx, method, body)
	}
	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx), func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("method", method).Dur("wait", wait).Msg("telegram: retrying call")
	})
}

func (c *Client) attempt(ctx context.Context, method string, body []byte) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("telegram: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The token is part of the URL; keep it out of logs and errors.
		err = errors.New(strings.ReplaceAll(err.Error(), c.token, "<token>"))
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("telegram: %s: %w", method, ctx.Err()))
		}
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}
	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		apiErr := &APIError{Status: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
		if apiErr.Temporary() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}
	if resp.StatusCode >= 300 || !decoded.OK {
		apiErr := &APIError{Status: resp.StatusCode, Code: decoded.ErrorCode, Description: decoded.Description}
		if apiErr.Temporary() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}
	return nil
}
