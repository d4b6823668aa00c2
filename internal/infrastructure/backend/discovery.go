package backend

import (
	"context"
	"net/http"
	"net/url"
)

// DiscoverAndCacheURL asks the currently resolved backend for its public
// URL. A non-empty, absolute "url" field replaces the cached override and is
// returned; anything else leaves the cache untouched and returns "".
func (c *Client) DiscoverAndCacheURL(ctx context.Context) (string, error) {
	resp, _, err := call(ctx, c, Request{
		Operation: OpDiscovery,
		Method:    http.MethodGet,
		Path:      "/api/ngrok-url",
	}, noFallback[struct {
		URL string `json:"url"`
	}]())
	if err != nil {
		c.logger.Warn("api_url_discovery_failed", "base_url", c.ResolveBaseURL(), "error", err)
		return "", err
	}

	discovered := normalizeBaseURL(resp.URL)
	if discovered == "" {
		c.logger.Info("api_url_discovery_empty", "base_url", c.ResolveBaseURL())
		return "", nil
	}
	if u, err := url.Parse(discovered); err != nil || u.Scheme == "" || u.Host == "" {
		c.logger.Warn("api_url_discovery_invalid", "url", resp.URL)
		return "", nil
	}

	c.store.SetCachedAPIURL(discovered)
	c.logger.Info("api_url_discovered", "url", discovered)
	return discovered, nil
}
