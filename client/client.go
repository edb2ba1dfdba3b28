package client

import (
	"net/http"
	"time"

	"github.com/jrsteele09/flowcraft-client/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	defaultUserAgent = "flowcraft-go/1.0.0"
)

// Client executes FlowCraft API calls with the session's access token and
// recovers from an expired access token with one refresh and one retry.
//
//	store := sessions.NewStore(filerepo.NewInFolder("./data"))
//	c := client.New("http://localhost:8000/api/v1", store)
//	if !c.CheckSession(ctx) {
//	    profile, err := c.Login(ctx, email, password)
//	}
//	var docs []Document
//	err := c.Do(ctx, http.MethodGet, "/documents", nil, &docs)
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *sessions.Store
	userAgent  string
	logger     zerolog.Logger
	metrics    *metrics
	now        func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithMetrics registers the client's Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

// New creates a client that reads and writes credentials through session.
func New(baseURL string, session *sessions.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		session:   session,
		userAgent: defaultUserAgent,
		logger:    log.Logger,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	return c
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the store the client reads credentials from.
func (c *Client) Session() *sessions.Store {
	return c.session
}

// Status is shorthand for Session().Status().
func (c *Client) Status() sessions.Status {
	return c.session.Status()
}
