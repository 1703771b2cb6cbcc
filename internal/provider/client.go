// Package provider talks to the fitness tracker's HTTP API: the OAuth2 token
// endpoint and the read-only data endpoints used by the diagnostics report.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

// Tokens is the token endpoint's response to a successful code exchange.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Profile carries the subset of the account profile the diagnostics report
// needs: the account's named timezone and its UTC offset.
type Profile struct {
	Timezone            string `json:"timezone"`
	OffsetFromUTCMillis int64  `json:"offsetFromUTCMillis"`
}

// Client is the provider API surface consumed by the connect manager.
type Client interface {
	ExchangeCode(ctx context.Context, code, codeVerifier string) (Tokens, error)
	Profile(ctx context.Context, accessToken string) (Profile, error)
	DailyActivity(ctx context.Context, accessToken, date string) (json.RawMessage, error)
	WeightLogs(ctx context.Context, accessToken, date string) (json.RawMessage, error)
	Devices(ctx context.Context, accessToken string) (json.RawMessage, error)
}

type HTTPClient struct {
	tokenURL     string
	apiBaseURL   string
	clientID     string
	clientSecret string
	redirectURI  string
	client       *http.Client
}

var _ = Client(&HTTPClient{})

func NewHTTPClient(tokenURL, apiBaseURL, clientID, clientSecret, redirectURI string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		tokenURL:     tokenURL,
		apiBaseURL:   strings.TrimSuffix(apiBaseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		client:       httpClient,
	}
}

// ExchangeCode redeems the authorization code at the token endpoint. The
// client credentials travel via HTTP Basic auth, never in the form body. An
// upstream rejection carries the provider's error detail for diagnostics.
func (c *HTTPClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (Tokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.redirectURI)
	data.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return Tokens{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return Tokens{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Tokens{}, serviceerr.ErrTokenExchangeFailed.WithDescription(
			fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, string(detail)))
	}

	var tokens Tokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return Tokens{}, fmt.Errorf("decoding token response: %w", err)
	}

	return tokens, nil
}

func (c *HTTPClient) Profile(ctx context.Context, accessToken string) (Profile, error) {
	body, err := c.get(ctx, accessToken, "/1/user/-/profile.json")
	if err != nil {
		return Profile{}, err
	}

	var payload struct {
		User Profile `json:"user"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Profile{}, fmt.Errorf("decoding profile response: %w", err)
	}

	return payload.User, nil
}

func (c *HTTPClient) DailyActivity(ctx context.Context, accessToken, date string) (json.RawMessage, error) {
	return c.get(ctx, accessToken, "/1/user/-/activities/date/"+date+".json")
}

func (c *HTTPClient) WeightLogs(ctx context.Context, accessToken, date string) (json.RawMessage, error) {
	return c.get(ctx, accessToken, "/1/user/-/body/log/weight/date/"+date+".json")
}

func (c *HTTPClient) Devices(ctx context.Context, accessToken string) (json.RawMessage, error) {
	return c.get(ctx, accessToken, "/1/user/-/devices.json")
}

func (c *HTTPClient) get(ctx context.Context, accessToken, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %d for %s", resp.StatusCode, path)
	}

	return body, nil
}
