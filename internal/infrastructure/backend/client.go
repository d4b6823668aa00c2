package backend

import (
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/infrastructure/resilience"
)

const DefaultBaseURL = "http://localhost:8888"

// StateStore is the slice of persisted client state the gateway reads and
// refreshes.
type StateStore interface {
	Token() string
	CachedAPIURL() string
	SetCachedAPIURL(url string)
	CachedResponse(operation string) ([]byte, bool)
	SaveCachedResponse(operation string, body []byte)
}

type Options struct {
	ExplicitURL string
	DefaultURL  string
	Timeout     time.Duration
	RateLimit   float64
	RateBurst   int
	Transport   http.RoundTripper
	Executor    *resilience.Executor
	Policies    resilience.PolicySet
	Logger      *slog.Logger
}

type Client struct {
	explicitURL string
	defaultURL  string
	store       StateStore
	httpClient  *http.Client
	limiter     *rate.Limiter
	exec        *resilience.Executor
	policies    resilience.PolicySet
	logger      *slog.Logger
}

func New(store StateStore, opts Options) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 600 * time.Second
	}
	if opts.DefaultURL == "" {
		opts.DefaultURL = DefaultBaseURL
	}
	if opts.Executor == nil {
		opts.Executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	if opts.Policies == nil {
		opts.Policies = DefaultPolicies()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		explicitURL: normalizeBaseURL(opts.ExplicitURL),
		defaultURL:  normalizeBaseURL(opts.DefaultURL),
		store:       store,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
			Jar:       jar,
		},
		limiter:  limiter,
		exec:     opts.Executor,
		policies: opts.Policies,
		logger:   opts.Logger,
	}, nil
}

// ResolveEndpoint picks the base URL by fixed priority: explicit
// configuration, then the cached override, then the default. It is
// evaluated on every call so a fresh discovery takes effect immediately.
func (c *Client) ResolveEndpoint() domain.APIEndpoint {
	if c.explicitURL != "" {
		return domain.APIEndpoint{Source: domain.EndpointExplicit, URL: c.explicitURL}
	}
	if cached := normalizeBaseURL(c.store.CachedAPIURL()); cached != "" {
		return domain.APIEndpoint{Source: domain.EndpointCached, URL: cached}
	}
	return domain.APIEndpoint{Source: domain.EndpointDefault, URL: c.defaultURL}
}

func (c *Client) ResolveBaseURL() string {
	return c.ResolveEndpoint().URL
}

func (c *Client) Token() string {
	return c.store.Token()
}

func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
