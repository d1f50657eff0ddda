package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/diogo/localchat/internal/models"
)

// DefaultTimeout bounds one whole exchange, body included
const DefaultTimeout = 5 * time.Minute

// ChatClient talks to a single chat endpoint
type ChatClient struct {
	httpClient *http.Client
	endpoint   string
	model      string
	logger     *zap.Logger
	mu         sync.RWMutex
	closed     bool
}

// ClientOption is a function that configures the client
type ClientOption func(*ChatClient)

// WithModel sets the model identifier sent with every request
func WithModel(model string) ClientOption {
	return func(c *ChatClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout sets the overall request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ChatClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *ChatClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *ChatClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a ChatClient for endpoint
func NewClient(endpoint string, opts ...ClientOption) (*ChatClient, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}

	client := &ChatClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		endpoint:   endpoint,
		model:      models.DefaultModel,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	return nil
}

// Endpoint returns the endpoint URL
func (c *ChatClient) Endpoint() string {
	return c.endpoint
}

// Model returns the model identifier
func (c *ChatClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel changes the model identifier
func (c *ChatClient) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// Close releases idle connections. Further requests fail.
func (c *ChatClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
}

// IsClosed returns whether the client is closed
func (c *ChatClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

type requestIDKey struct{}

// WithRequestID attaches an exchange id to ctx; the client sends it as X-Request-Id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the exchange id attached to ctx, if any
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
