// Package credentialsql persists provider credentials in Postgres, one row
// per user.
package credentialsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthfolio/tracker-manager/internal/credential"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

type Repository struct {
	db *pgxpool.Pool
}

var _ = credential.Repository(&Repository{})

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Get(ctx context.Context, userID string) (credential.ProviderCredential, error) {
	row := r.db.QueryRow(ctx,
		`SELECT user_id, provider_user_id, access_token, refresh_token, expires_at, scopes, last_updated
		   FROM provider_credential WHERE user_id = $1;`, userID)

	var cred credential.ProviderCredential
	err := row.Scan(&cred.UserID, &cred.ProviderUserID, &cred.AccessToken,
		&cred.RefreshToken, &cred.ExpiresAt, &cred.Scopes, &cred.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return credential.ProviderCredential{}, serviceerr.ErrNotFound
		}

		return credential.ProviderCredential{}, fmt.Errorf("scanning credential row: %w", err)
	}

	return cred, nil
}

// Upsert merges the incoming record into the stored one. Empty strings and a
// zero expiry are treated as "not provided" and keep the stored value, so a
// partial write never drops sibling fields.
func (r *Repository) Upsert(ctx context.Context, cred credential.ProviderCredential) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO provider_credential
			(user_id, provider_user_id, access_token, refresh_token, expires_at, scopes, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			provider_user_id = COALESCE(NULLIF(EXCLUDED.provider_user_id, ''), provider_credential.provider_user_id),
			access_token     = COALESCE(NULLIF(EXCLUDED.access_token, ''), provider_credential.access_token),
			refresh_token    = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), provider_credential.refresh_token),
			expires_at       = CASE WHEN EXCLUDED.expires_at > 0 THEN EXCLUDED.expires_at ELSE provider_credential.expires_at END,
			scopes           = COALESCE(NULLIF(EXCLUDED.scopes, ''), provider_credential.scopes),
			last_updated     = now();`,
		cred.UserID, cred.ProviderUserID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, cred.Scopes,
	)
	if err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("upserting credential: %w", err)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, userID string) error {
	// Deliberately idempotent: a disconnect for a user who never connected
	// succeeds without touching any row.
	if _, err := r.db.Exec(ctx, `DELETE FROM provider_credential WHERE user_id = $1;`, userID); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	return nil
}
