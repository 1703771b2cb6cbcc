package connect

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthfolio/tracker-manager/internal/config"
	"github.com/healthfolio/tracker-manager/internal/credential"
	credentialmock "github.com/healthfolio/tracker-manager/internal/credential/mock"
	identitymock "github.com/healthfolio/tracker-manager/internal/identity/mock"
	"github.com/healthfolio/tracker-manager/internal/oauthstate"
	statemock "github.com/healthfolio/tracker-manager/internal/oauthstate/mock"
	"github.com/healthfolio/tracker-manager/internal/provider"
	providermock "github.com/healthfolio/tracker-manager/internal/provider/mock"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

const (
	testAssertion = "assertion-user-1"
	testUserID    = "user-1"
	testClientID  = "my-client-id"
	testScopes    = "activity weight profile settings"
	testRedirect  = "https://app.example.com/connect/callback"
	testAuthURL   = "https://tracker.example.com/oauth2/authorize"
)

var testNow = time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC)

func testTrackerConfig() *config.Tracker {
	return &config.Tracker{
		AuthorizationURL: testAuthURL,
		TokenURL:         "https://api.tracker.example.com/oauth2/token",
		APIBaseURL:       "https://api.tracker.example.com",
		ClientID:         commoncfg.SourceRef{Source: "embedded", Value: testClientID},
		ClientSecret:     commoncfg.SourceRef{Source: "embedded", Value: "my-client-secret"},
		RedirectURI:      testRedirect,
		Scopes:           testScopes,
		PKCEMethod:       "S256",
		StateTTL:         10 * time.Minute,
	}
}

func newTestManager(
	t *testing.T,
	states *statemock.Repository,
	creds *credentialmock.Repository,
	providerClient *providermock.Client,
) *Manager {
	t.Helper()

	verifier := identitymock.NewVerifier(identitymock.WithSubject(testAssertion, testUserID))

	m, err := NewManager(testTrackerConfig(), verifier, states, creds, providerClient)
	require.NoError(t, err, "NewManager()")

	m.now = func() time.Time { return testNow }

	return m
}

func TestNewManager_Configuration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Tracker)
	}{
		{name: "Missing client id", mutate: func(c *config.Tracker) { c.ClientID.Value = "" }},
		{name: "Missing redirect URI", mutate: func(c *config.Tracker) { c.RedirectURI = "" }},
		{name: "Missing scopes", mutate: func(c *config.Tracker) { c.Scopes = "" }},
		{name: "Missing authorization URL", mutate: func(c *config.Tracker) { c.AuthorizationURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testTrackerConfig()
			tt.mutate(cfg)

			_, err := NewManager(cfg, identitymock.NewVerifier(), statemock.NewInMemRepository(),
				credentialmock.NewInMemRepository(), providermock.NewClient())
			assert.ErrorIs(t, err, serviceerr.ErrConfiguration)
		})
	}
}

func TestManager_Initiate(t *testing.T) {
	states := statemock.NewInMemRepository()
	m := newTestManager(t, states, credentialmock.NewInMemRepository(), providermock.NewClient())

	rawURL, err := m.Initiate(t.Context(), testAssertion)
	require.NoError(t, err, "Initiate()")

	u, err := url.Parse(rawURL)
	require.NoError(t, err, "parsing authorization URL")

	assert.Equal(t, "tracker.example.com", u.Host)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, testRedirect, q.Get("redirect_uri"))
	assert.Equal(t, testScopes, q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("state"))
	assert.NotEmpty(t, q.Get("code_challenge"))

	// The persisted record must bind the initiating user and carry the
	// verifier whose hash was placed in the URL.
	state, err := states.Consume(t.Context(), q.Get("state"))
	require.NoError(t, err, "the state record must be persisted under the URL's state token")

	assert.Equal(t, testUserID, state.UserID)
	assert.Equal(t, testNow.Add(10*time.Minute), state.Expiry)

	challengeSHA := sha256.Sum256([]byte(state.PKCEVerifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(challengeSHA[:]), q.Get("code_challenge"))
}

func TestManager_InitiateTwiceNeverReusesMaterial(t *testing.T) {
	states := statemock.NewInMemRepository()
	m := newTestManager(t, states, credentialmock.NewInMemRepository(), providermock.NewClient())

	first, err := m.Initiate(t.Context(), testAssertion)
	require.NoError(t, err)
	second, err := m.Initiate(t.Context(), testAssertion)
	require.NoError(t, err)

	q1 := mustQuery(t, first)
	q2 := mustQuery(t, second)

	assert.NotEqual(t, q1.Get("state"), q2.Get("state"))
	assert.NotEqual(t, q1.Get("code_challenge"), q2.Get("code_challenge"))
}

func TestManager_InitiateUnauthenticated(t *testing.T) {
	m := newTestManager(t, statemock.NewInMemRepository(), credentialmock.NewInMemRepository(), providermock.NewClient())

	_, err := m.Initiate(t.Context(), "unknown-assertion")
	assert.ErrorIs(t, err, serviceerr.ErrUnauthenticated)
}

func TestManager_InitiateStorageFailureIssuesNoURL(t *testing.T) {
	states := statemock.NewInMemRepository(statemock.WithStoreError(errors.New("valkey down")))
	m := newTestManager(t, states, credentialmock.NewInMemRepository(), providermock.NewClient())

	rawURL, err := m.Initiate(t.Context(), testAssertion)
	assert.ErrorIs(t, err, serviceerr.ErrStorage)
	assert.Empty(t, rawURL, "an unpersisted state must never be placed in a URL")
}

func TestManager_FinaliseConnect(t *testing.T) {
	states := statemock.NewInMemRepository(statemock.WithState(oauthstate.State{
		ID:           "state-1",
		UserID:       testUserID,
		PKCEVerifier: "verifier-1",
		CreatedAt:    testNow.Add(-time.Minute),
		Expiry:       testNow.Add(9 * time.Minute),
	}))
	creds := credentialmock.NewInMemRepository()
	providerClient := providermock.NewClient(providermock.WithTokens(provider.Tokens{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		UserID:       "PROV123",
		ExpiresIn:    28800,
	}))

	m := newTestManager(t, states, creds, providerClient)

	err := m.FinaliseConnect(t.Context(), "state-1", "auth-code")
	require.NoError(t, err, "FinaliseConnect()")

	assert.Equal(t, []providermock.ExchangeCall{{Code: "auth-code", CodeVerifier: "verifier-1"}},
		providerClient.Exchanges(), "the exchange must carry the code and the recovered verifier")

	cred, err := creds.Get(t.Context(), testUserID)
	require.NoError(t, err, "the credential must be written under the initiating user")

	assert.Equal(t, "PROV123", cred.ProviderUserID)
	assert.Equal(t, "at-1", cred.AccessToken)
	assert.Equal(t, "rt-1", cred.RefreshToken)
	assert.Equal(t, testScopes, cred.Scopes)
	assert.Equal(t, testNow.UnixMilli()+28800*1000, cred.ExpiresAt, "expiry arithmetic must be exact")

	assert.Equal(t, 0, states.Len(), "the state must be consumed")
}

func TestManager_FinaliseConnectMissingParameters(t *testing.T) {
	m := newTestManager(t, statemock.NewInMemRepository(), credentialmock.NewInMemRepository(), providermock.NewClient())

	assert.ErrorIs(t, m.FinaliseConnect(t.Context(), "", "code"), serviceerr.ErrInvalidRequest)
	assert.ErrorIs(t, m.FinaliseConnect(t.Context(), "state", ""), serviceerr.ErrInvalidRequest)
}

func TestManager_FinaliseConnectUnknownState(t *testing.T) {
	m := newTestManager(t, statemock.NewInMemRepository(), credentialmock.NewInMemRepository(), providermock.NewClient())

	err := m.FinaliseConnect(t.Context(), "never-issued", "auth-code")
	assert.ErrorIs(t, err, serviceerr.ErrInvalidState)
}

func TestManager_FinaliseConnectStateIsSingleUse(t *testing.T) {
	states := statemock.NewInMemRepository(statemock.WithState(oauthstate.State{
		ID:           "state-1",
		UserID:       testUserID,
		PKCEVerifier: "verifier-1",
		Expiry:       testNow.Add(9 * time.Minute),
	}))
	providerClient := providermock.NewClient(providermock.WithTokens(provider.Tokens{AccessToken: "at-1"}))

	m := newTestManager(t, states, credentialmock.NewInMemRepository(), providerClient)

	require.NoError(t, m.FinaliseConnect(t.Context(), "state-1", "auth-code"))

	err := m.FinaliseConnect(t.Context(), "state-1", "auth-code")
	assert.ErrorIs(t, err, serviceerr.ErrInvalidState, "a consumed state must fail a second callback")
}

func TestManager_FinaliseConnectExpiredState(t *testing.T) {
	states := statemock.NewInMemRepository(statemock.WithState(oauthstate.State{
		ID:           "state-1",
		UserID:       testUserID,
		PKCEVerifier: "verifier-1",
		Expiry:       testNow.Add(-time.Second),
	}))
	providerClient := providermock.NewClient()

	m := newTestManager(t, states, credentialmock.NewInMemRepository(), providerClient)

	err := m.FinaliseConnect(t.Context(), "state-1", "auth-code")
	assert.ErrorIs(t, err, serviceerr.ErrInvalidState)
	assert.Empty(t, providerClient.Exchanges(), "no exchange may happen for an expired state")
}

func TestManager_FinaliseConnectWithoutUserFailsClosed(t *testing.T) {
	states := statemock.NewInMemRepository(statemock.WithState(oauthstate.State{
		ID:           "state-1",
		PKCEVerifier: "verifier-1",
		Expiry:       testNow.Add(9 * time.Minute),
	}))
	providerClient := providermock.NewClient()

	m := newTestManager(t, states, credentialmock.NewInMemRepository(), providerClient)

	err := m.FinaliseConnect(t.Context(), "state-1", "auth-code")
	assert.ErrorIs(t, err, serviceerr.ErrInvalidState)
	assert.Empty(t, providerClient.Exchanges(), "a record without a user must never reach the exchange")
}

func TestManager_FinaliseConnectExchangeFailure(t *testing.T) {
	states := statemock.NewInMemRepository(statemock.WithState(oauthstate.State{
		ID:           "state-1",
		UserID:       testUserID,
		PKCEVerifier: "v1",
		Expiry:       testNow.Add(9 * time.Minute),
	}))
	creds := credentialmock.NewInMemRepository()
	providerClient := providermock.NewClient(providermock.WithExchangeError(
		serviceerr.ErrTokenExchangeFailed.WithDescription("token endpoint returned 400")))

	m := newTestManager(t, states, creds, providerClient)

	err := m.FinaliseConnect(t.Context(), "state-1", "abc")
	assert.ErrorIs(t, err, serviceerr.ErrTokenExchangeFailed)

	assert.Equal(t, 0, states.Len(), "the state stays deleted, never restored")

	_, err = creds.Get(t.Context(), testUserID)
	assert.ErrorIs(t, err, serviceerr.ErrNotFound, "no credential may be created or modified")
}

func TestManager_FinaliseConnectStorageFailureAfterExchange(t *testing.T) {
	states := statemock.NewInMemRepository(statemock.WithState(oauthstate.State{
		ID:           "state-1",
		UserID:       testUserID,
		PKCEVerifier: "v1",
		Expiry:       testNow.Add(9 * time.Minute),
	}))
	creds := credentialmock.NewInMemRepository(credentialmock.WithUpsertError(errors.New("postgres down")))
	providerClient := providermock.NewClient(providermock.WithTokens(provider.Tokens{AccessToken: "at-1"}))

	m := newTestManager(t, states, creds, providerClient)

	err := m.FinaliseConnect(t.Context(), "state-1", "abc")
	assert.ErrorIs(t, err, serviceerr.ErrStorage)
}

func TestManager_Status(t *testing.T) {
	tests := []struct {
		name          string
		creds         *credentialmock.Repository
		wantConnected bool
	}{
		{
			name:          "No credential",
			creds:         credentialmock.NewInMemRepository(),
			wantConnected: false,
		},
		{
			name: "Connected",
			creds: credentialmock.NewInMemRepository(credentialmock.WithCredential(credential.ProviderCredential{
				UserID:      testUserID,
				AccessToken: "at-1",
				ExpiresAt:   testNow.UnixMilli() + 1000,
			})),
			wantConnected: true,
		},
		{
			name: "Expired token still counts as connected",
			creds: credentialmock.NewInMemRepository(credentialmock.WithCredential(credential.ProviderCredential{
				UserID:      testUserID,
				AccessToken: "at-1",
				ExpiresAt:   testNow.UnixMilli() - 1000,
			})),
			wantConnected: true,
		},
		{
			name: "Record without access token",
			creds: credentialmock.NewInMemRepository(credentialmock.WithCredential(credential.ProviderCredential{
				UserID: testUserID,
			})),
			wantConnected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, statemock.NewInMemRepository(), tt.creds, providermock.NewClient())

			connected, err := m.Status(t.Context(), testAssertion)
			require.NoError(t, err, "Status()")
			assert.Equal(t, tt.wantConnected, connected)
		})
	}
}

func TestManager_StatusUnauthenticated(t *testing.T) {
	m := newTestManager(t, statemock.NewInMemRepository(), credentialmock.NewInMemRepository(), providermock.NewClient())

	_, err := m.Status(t.Context(), "unknown-assertion")
	assert.ErrorIs(t, err, serviceerr.ErrUnauthenticated)
}

func TestManager_Disconnect(t *testing.T) {
	creds := credentialmock.NewInMemRepository(credentialmock.WithCredential(credential.ProviderCredential{
		UserID:      testUserID,
		AccessToken: "at-1",
	}))

	m := newTestManager(t, statemock.NewInMemRepository(), creds, providermock.NewClient())

	require.NoError(t, m.Disconnect(t.Context(), testAssertion), "Disconnect()")

	_, err := creds.Get(t.Context(), testUserID)
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)

	// Disconnecting an already disconnected user succeeds.
	assert.NoError(t, m.Disconnect(t.Context(), testAssertion), "repeated Disconnect()")
}

func TestManager_PruneExpiredStates(t *testing.T) {
	states := statemock.NewInMemRepository(
		statemock.WithState(oauthstate.State{ID: "live", Expiry: testNow.Add(5 * time.Minute)}),
		statemock.WithState(oauthstate.State{ID: "expired-1", Expiry: testNow.Add(-time.Minute)}),
		statemock.WithState(oauthstate.State{ID: "expired-2", Expiry: testNow.Add(-time.Hour)}),
	)

	m := newTestManager(t, states, credentialmock.NewInMemRepository(), providermock.NewClient())

	require.NoError(t, m.PruneExpiredStates(t.Context()), "PruneExpiredStates()")
	assert.Equal(t, 1, states.Len(), "only the live state may survive")

	_, err := states.Consume(t.Context(), "live")
	assert.NoError(t, err)
}

func mustQuery(t *testing.T, rawURL string) url.Values {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	return u.Query()
}
