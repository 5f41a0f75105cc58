package whatsappclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wolfman30/chatcommerce/pkg/logging"
)

const (
	defaultBaseURL   = "https://graph.facebook.com/v21.0"
	defaultUserAgent = "chatcommerce-whatsapp/1.0"
)

// ErrBreakerOpen is returned while the provider circuit is open.
var ErrBreakerOpen = errors.New("whatsappclient: circuit open")

// Config controls how the WhatsApp Cloud API client behaves.
type Config struct {
	BaseURL          string
	AccessToken      string
	OrderTemplate    string
	TemplateLanguage string
	Timeout          time.Duration
	// MaxRetries applies to 429/5xx responses. Zero disables retries so a
	// timed-out send is never repeated within one request.
	MaxRetries       int
	Backoff          time.Duration
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
	HTTPClient       *http.Client
	Logger           *logging.Logger
}

// SendResult carries the provider id assigned to an accepted message.
type SendResult struct {
	ProviderMessageID string
}

// Client sends messages through the Graph API on behalf of a business phone number.
type Client struct {
	accessToken      string
	baseURL          string
	orderTemplate    string
	templateLanguage string
	httpClient       *http.Client
	maxRetries       int
	backoff          time.Duration
	breaker          *gobreaker.CircuitBreaker
	logger           *logging.Logger
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsappclient: access token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 10
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 20 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	template := strings.TrimSpace(cfg.OrderTemplate)
	if template == "" {
		template = "order_details_request"
	}
	lang := strings.TrimSpace(cfg.TemplateLanguage)
	if lang == "" {
		lang = "en"
	}

	c := &Client{
		accessToken:      cfg.AccessToken,
		baseURL:          baseURL,
		orderTemplate:    template,
		templateLanguage: lang,
		httpClient:       httpClient,
		maxRetries:       max(cfg.MaxRetries, 0),
		backoff:          backoff,
		logger:           logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "whatsapp",
		MaxRequests: 3,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= threshold },
		// Rejections for a bad recipient or template say nothing about provider health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !shouldRetry(apiErr.StatusCode, nil)
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("whatsapp breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// SendTextMessage sends a free-form text message to a customer.
func (c *Client) SendTextMessage(ctx context.Context, phoneNumberID, to, body string) (SendResult, error) {
	if strings.TrimSpace(body) == "" {
		return SendResult{}, errors.New("whatsappclient: body required")
	}
	return c.send(ctx, phoneNumberID, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendOrderDetailsTemplate sends the pre-approved template asking the customer
// for name, phone, email and address.
func (c *Client) SendOrderDetailsTemplate(ctx context.Context, phoneNumberID, to string) (SendResult, error) {
	return c.send(ctx, phoneNumberID, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template: &templateBody{
			Name:     c.orderTemplate,
			Language: templateLanguage{Code: c.templateLanguage},
		},
	})
}

func (c *Client) send(ctx context.Context, phoneNumberID string, req messageRequest) (SendResult, error) {
	if strings.TrimSpace(phoneNumberID) == "" {
		return SendResult{}, errors.New("whatsappclient: phone number id required")
	}
	if strings.TrimSpace(req.To) == "" {
		return SendResult{}, errors.New("whatsappclient: recipient required")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsappclient: marshal send body: %w", err)
	}
	out, err := c.breaker.Execute(func() (any, error) {
		return c.invoke(ctx, "/"+phoneNumberID+"/messages", payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return SendResult{}, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	if err != nil {
		return SendResult{}, err
	}
	var resp messageResponse
	if err := json.Unmarshal(out.([]byte), &resp); err != nil {
		return SendResult{}, fmt.Errorf("whatsappclient: decode response: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return SendResult{}, errors.New("whatsappclient: response missing message id")
	}
	return SendResult{ProviderMessageID: resp.Messages[0].ID}, nil
}

func (c *Client) invoke(ctx context.Context, path string, body []byte) ([]byte, error) {
	fullURL := c.baseURL + path
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("whatsappclient: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("whatsappclient: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("whatsappclient: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("whatsappclient: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.backoff * time.Duration(1<<attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	c.logger.Warn("whatsapp retry", "path", path, "attempt", attempt+1, "status", status, "error", err)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}
