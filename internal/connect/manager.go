// Package connect implements the tracker connection lifecycle: initiating the
// authorization flow, finalising the provider callback, reporting status,
// disconnecting, and timezone diagnostics.
package connect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"

	slogctx "github.com/veqryn/slog-context"

	"github.com/healthfolio/tracker-manager/internal/config"
	"github.com/healthfolio/tracker-manager/internal/credential"
	"github.com/healthfolio/tracker-manager/internal/identity"
	"github.com/healthfolio/tracker-manager/internal/oauthstate"
	"github.com/healthfolio/tracker-manager/internal/pkce"
	"github.com/healthfolio/tracker-manager/internal/provider"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

type Manager struct {
	identity identity.Verifier
	states   oauthstate.Repository
	creds    credential.Repository
	provider provider.Client
	pkce     pkce.Source

	authorizationURL *url.URL
	clientID         string
	redirectURI      string
	scopes           string
	stateTTL         time.Duration

	now func() time.Time
}

// NewManager validates the client registration before anything else runs. A
// deployment missing its client id, redirect URI or scopes must refuse to
// initiate flows rather than mint state records nobody can ever resolve.
func NewManager(
	cfg *config.Tracker,
	verifier identity.Verifier,
	states oauthstate.Repository,
	creds credential.Repository,
	providerClient provider.Client,
) (*Manager, error) {
	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("loading client id from source ref: %w", err)
	}

	if len(clientID) == 0 {
		return nil, serviceerr.ErrConfiguration.WithDescription("tracker client id is not set")
	}

	if cfg.RedirectURI == "" {
		return nil, serviceerr.ErrConfiguration.WithDescription("tracker redirect URI is not set")
	}

	if cfg.Scopes == "" {
		return nil, serviceerr.ErrConfiguration.WithDescription("tracker scopes are not set")
	}

	authorizationURL, err := url.Parse(cfg.AuthorizationURL)
	if err != nil || cfg.AuthorizationURL == "" {
		return nil, serviceerr.ErrConfiguration.WithDescription("tracker authorization URL is invalid")
	}

	stateTTL := cfg.StateTTL
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}

	return &Manager{
		identity:         verifier,
		states:           states,
		creds:            creds,
		provider:         providerClient,
		pkce:             pkce.NewSource(cfg.PKCEMethod),
		authorizationURL: authorizationURL,
		clientID:         string(clientID),
		redirectURI:      cfg.RedirectURI,
		scopes:           cfg.Scopes,
		stateTTL:         stateTTL,
		now:              time.Now,
	}, nil
}

// Initiate verifies the caller, mints PKCE material and a state record, and
// returns the provider authorization URL. The state is persisted before the
// URL exists: a storage failure aborts the flow since an unpersisted state
// could never be resolved at callback time.
func (m *Manager) Initiate(ctx context.Context, assertion string) (string, error) {
	userID, err := m.identity.Verify(ctx, assertion)
	if err != nil {
		return "", fmt.Errorf("verifying identity: %w", err)
	}

	ctx = slogctx.With(ctx, "user_id", userID)

	stateID := m.pkce.State()
	material := m.pkce.PKCE()

	now := m.now()
	state := oauthstate.State{
		ID:           stateID,
		UserID:       userID,
		PKCEVerifier: material.Verifier,
		CreatedAt:    now,
		Expiry:       now.Add(m.stateTTL),
	}

	if err := m.states.Store(ctx, state); err != nil {
		return "", fmt.Errorf("storing state: %w", errors.Join(serviceerr.ErrStorage, err))
	}

	slogctx.Info(ctx, "Initiated tracker connection flow")

	return m.authURL(state, material), nil
}

func (m *Manager) authURL(state oauthstate.State, material pkce.PKCE) string {
	u := *m.authorizationURL

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", m.clientID)
	q.Set("redirect_uri", m.redirectURI)
	q.Set("scope", m.scopes)
	q.Set("state", state.ID)
	q.Set("code_challenge", material.Challenge)
	q.Set("code_challenge_method", material.Method)
	u.RawQuery = q.Encode()

	return u.String()
}

// FinaliseConnect consumes the state record, exchanges the code for tokens,
// and persists the credential under the user captured at initiation. The
// state is deleted before the network exchange; on exchange failure it is
// never restored, so a retried callback with the same state fails closed.
func (m *Manager) FinaliseConnect(ctx context.Context, stateID, code string) error {
	if stateID == "" || code == "" {
		return serviceerr.ErrInvalidRequest.WithDescription("missing code or state parameter")
	}

	state, err := m.states.Consume(ctx, stateID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return fmt.Errorf("consuming state: %w", serviceerr.ErrInvalidState)
		}

		return fmt.Errorf("consuming state: %w", errors.Join(serviceerr.ErrStorage, err))
	}

	if state.Expired(m.now()) {
		return fmt.Errorf("state past expiry: %w", serviceerr.ErrInvalidState)
	}

	// The callback carries no proof of identity of its own; the user captured
	// at initiation is the only subject the credential may be written under.
	if state.UserID == "" {
		return fmt.Errorf("state carries no user: %w", serviceerr.ErrInvalidState)
	}

	ctx = slogctx.With(ctx, "user_id", state.UserID)

	tokens, err := m.provider.ExchangeCode(ctx, code, state.PKCEVerifier)
	if err != nil {
		return fmt.Errorf("exchanging code for tokens: %w", err)
	}

	now := m.now()
	cred := credential.ProviderCredential{
		UserID:         state.UserID,
		ProviderUserID: tokens.UserID,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		ExpiresAt:      now.UnixMilli() + tokens.ExpiresIn*1000,
		Scopes:         m.scopes,
	}

	if err := m.creds.Upsert(ctx, cred); err != nil {
		// The provider issued a grant that we failed to store. The user will
		// see "connection failed" while a live grant exists upstream, so this
		// case is logged distinctly for operator reconciliation.
		slogctx.Error(ctx, "Token exchange succeeded but the credential write failed; a live upstream grant is not stored",
			"provider_user_id", tokens.UserID, "error", err)

		return fmt.Errorf("storing credential: %w", errors.Join(serviceerr.ErrStorage, err))
	}

	slogctx.Info(ctx, "Connected tracker account", "provider_user_id", tokens.UserID)

	return nil
}

// Status reports whether the caller has a live connection. An expired access
// token still counts as connected; refresh is out of scope and the UI only
// cares whether a grant exists.
func (m *Manager) Status(ctx context.Context, assertion string) (bool, error) {
	userID, err := m.identity.Verify(ctx, assertion)
	if err != nil {
		return false, fmt.Errorf("verifying identity: %w", err)
	}

	cred, err := m.creds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("reading credential: %w", errors.Join(serviceerr.ErrStorage, err))
	}

	return cred.Connected(), nil
}

// Disconnect removes the stored credential. Deleting a nonexistent record is
// not an error. The provider's revocation endpoint is deliberately not
// called; the disconnect is local only.
func (m *Manager) Disconnect(ctx context.Context, assertion string) error {
	userID, err := m.identity.Verify(ctx, assertion)
	if err != nil {
		return fmt.Errorf("verifying identity: %w", err)
	}

	if err := m.creds.Delete(ctx, userID); err != nil {
		return fmt.Errorf("deleting credential: %w", errors.Join(serviceerr.ErrStorage, err))
	}

	slogctx.Info(ctx, "Disconnected tracker account", "user_id", userID)

	return nil
}
