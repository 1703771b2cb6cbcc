package providermock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/healthfolio/tracker-manager/internal/provider"
)

type ClientOption func(*Client)

// Client answers provider calls from canned data and records the exchange
// requests it receives.
type Client struct {
	mu sync.Mutex

	tokens      provider.Tokens
	exchangeErr error
	profile     provider.Profile
	profileErr  error
	activity    json.RawMessage
	activityErr error
	weight      json.RawMessage
	weightErr   error
	devices     json.RawMessage
	devicesErr  error

	exchanges []ExchangeCall
	dataDates []string
}

// ExchangeCall records one ExchangeCode invocation.
type ExchangeCall struct {
	Code         string
	CodeVerifier string
}

func WithTokens(tokens provider.Tokens) ClientOption {
	return func(c *Client) { c.tokens = tokens }
}

func WithExchangeError(err error) ClientOption {
	return func(c *Client) { c.exchangeErr = err }
}

func WithProfile(profile provider.Profile) ClientOption {
	return func(c *Client) { c.profile = profile }
}

func WithProfileError(err error) ClientOption {
	return func(c *Client) { c.profileErr = err }
}

func WithDailyActivity(payload json.RawMessage) ClientOption {
	return func(c *Client) { c.activity = payload }
}

func WithDailyActivityError(err error) ClientOption {
	return func(c *Client) { c.activityErr = err }
}

func WithWeightLogs(payload json.RawMessage) ClientOption {
	return func(c *Client) { c.weight = payload }
}

func WithWeightLogsError(err error) ClientOption {
	return func(c *Client) { c.weightErr = err }
}

func WithDevices(payload json.RawMessage) ClientOption {
	return func(c *Client) { c.devices = payload }
}

func WithDevicesError(err error) ClientOption {
	return func(c *Client) { c.devicesErr = err }
}

var _ = provider.Client(&Client{})

func NewClient(opts ...ClientOption) *Client {
	c := &Client{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) ExchangeCode(_ context.Context, code, codeVerifier string) (provider.Tokens, error) {
	c.mu.Lock()
	c.exchanges = append(c.exchanges, ExchangeCall{Code: code, CodeVerifier: codeVerifier})
	c.mu.Unlock()

	if c.exchangeErr != nil {
		return provider.Tokens{}, c.exchangeErr
	}
	return c.tokens, nil
}

func (c *Client) Profile(_ context.Context, _ string) (provider.Profile, error) {
	if c.profileErr != nil {
		return provider.Profile{}, c.profileErr
	}
	return c.profile, nil
}

func (c *Client) DailyActivity(_ context.Context, _, date string) (json.RawMessage, error) {
	c.recordDate(date)
	if c.activityErr != nil {
		return nil, c.activityErr
	}
	return c.activity, nil
}

func (c *Client) WeightLogs(_ context.Context, _, date string) (json.RawMessage, error) {
	c.recordDate(date)
	if c.weightErr != nil {
		return nil, c.weightErr
	}
	return c.weight, nil
}

func (c *Client) Devices(_ context.Context, _ string) (json.RawMessage, error) {
	if c.devicesErr != nil {
		return nil, c.devicesErr
	}
	return c.devices, nil
}

func (c *Client) recordDate(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataDates = append(c.dataDates, date)
}

// Exchanges returns the recorded ExchangeCode calls.
func (c *Client) Exchanges() []ExchangeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ExchangeCall(nil), c.exchanges...)
}

// DataDates returns the dates passed to the dated data endpoints.
func (c *Client) DataDates() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dataDates...)
}
