// Package business wires configuration, storage, and the connect manager into
// the runnable entry points used by the CLI commands.
package business

import (
	"context"
	"fmt"
	"net/http"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	"github.com/healthfolio/tracker-manager/internal/business/server"
	"github.com/healthfolio/tracker-manager/internal/config"
	"github.com/healthfolio/tracker-manager/internal/connect"
	credentialsql "github.com/healthfolio/tracker-manager/internal/credential/sql"
	"github.com/healthfolio/tracker-manager/internal/identity"
	statevalkey "github.com/healthfolio/tracker-manager/internal/oauthstate/valkey"
	"github.com/healthfolio/tracker-manager/internal/provider"
)

// Main starts the public HTTP API server.
func Main(ctx context.Context, cfg *config.Config) error {
	manager, closeFn, err := initConnectManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the connect manager: %w", err)
	}
	defer closeFn()

	return server.StartHTTPServer(ctx, cfg, manager)
}

func initConnectManager(ctx context.Context, cfg *config.Config) (_ *connect.Manager, closeFn func(), _ error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("making dsn from config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing pgxpool config: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	valkeyClient, err := makeValkeyClient(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	stateRepo := statevalkey.NewRepository(valkeyClient, cfg.ValKey.Prefix)
	credentialRepo := credentialsql.NewRepository(db)

	verifier, err := identity.NewOIDCVerifier(cfg.Identity.IssuerURL, cfg.Identity.Audience, http.DefaultClient)
	if err != nil {
		db.Close()
		valkeyClient.Close()
		return nil, nil, fmt.Errorf("creating identity verifier: %w", err)
	}

	providerClient, err := makeProviderClient(cfg)
	if err != nil {
		db.Close()
		valkeyClient.Close()
		return nil, nil, err
	}

	manager, err := connect.NewManager(&cfg.Tracker, verifier, stateRepo, credentialRepo, providerClient)
	if err != nil {
		db.Close()
		valkeyClient.Close()
		return nil, nil, fmt.Errorf("creating connect manager: %w", err)
	}

	closeFn = func() {
		valkeyClient.Close()
		db.Close()
	}

	return manager, closeFn, nil
}

func makeValkeyClient(cfg *config.Config) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	})
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return valkeyClient, nil
}

func makeProviderClient(cfg *config.Config) (provider.Client, error) {
	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.Tracker.ClientID)
	if err != nil {
		return nil, fmt.Errorf("loading tracker client id: %w", err)
	}

	clientSecret, err := commoncfg.LoadValueFromSourceRef(cfg.Tracker.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("loading tracker client secret: %w", err)
	}

	return provider.NewHTTPClient(
		cfg.Tracker.TokenURL,
		cfg.Tracker.APIBaseURL,
		string(clientID),
		string(clientSecret),
		cfg.Tracker.RedirectURI,
		http.DefaultClient,
	), nil
}
