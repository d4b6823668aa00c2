package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// Login exchanges credentials for a bearer token via the form-encoded
// /token endpoint. Persisting the token is the caller's job.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	resp, _, err := call(ctx, c, Request{
		Operation: OpAuthToken,
		Method:    http.MethodPost,
		Path:      "/token",
		Form:      form,
	}, noFallback[struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}]())
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, OpAuthToken, fmt.Errorf("empty access token"))
	}
	return resp.AccessToken, nil
}

func (c *Client) CurrentUser(ctx context.Context) (domain.Fetched[domain.User], error) {
	user, source, err := call(ctx, c, Request{
		Operation: OpAuthMe,
		Method:    http.MethodGet,
		Path:      "/users/me",
	}, cachedFallback[domain.User](c, OpAuthMe))
	if err != nil {
		return domain.Fetched[domain.User]{}, err
	}
	return domain.Fetched[domain.User]{Value: user, Source: source}, nil
}
