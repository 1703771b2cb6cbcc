package credentialmock

import (
	"context"
	"sync"
	"time"

	"github.com/healthfolio/tracker-manager/internal/credential"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu    sync.Mutex
	creds map[string]credential.ProviderCredential

	getErr, upsertErr, deleteErr error
}

func WithCredential(cred credential.ProviderCredential) RepositoryOption {
	return func(r *Repository) { r.creds[cred.UserID] = cred }
}
func WithGetError(err error) RepositoryOption {
	return func(r *Repository) { r.getErr = err }
}
func WithUpsertError(err error) RepositoryOption {
	return func(r *Repository) { r.upsertErr = err }
}
func WithDeleteError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteErr = err }
}

var _ = credential.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		creds: make(map[string]credential.ProviderCredential),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) Get(_ context.Context, userID string) (credential.ProviderCredential, error) {
	if r.getErr != nil {
		return credential.ProviderCredential{}, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[userID]
	if !ok {
		return credential.ProviderCredential{}, serviceerr.ErrNotFound
	}
	return cred, nil
}

func (r *Repository) Upsert(_ context.Context, cred credential.ProviderCredential) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := r.creds[cred.UserID]
	merged.UserID = cred.UserID
	if cred.ProviderUserID != "" {
		merged.ProviderUserID = cred.ProviderUserID
	}
	if cred.AccessToken != "" {
		merged.AccessToken = cred.AccessToken
	}
	if cred.RefreshToken != "" {
		merged.RefreshToken = cred.RefreshToken
	}
	if cred.ExpiresAt > 0 {
		merged.ExpiresAt = cred.ExpiresAt
	}
	if cred.Scopes != "" {
		merged.Scopes = cred.Scopes
	}
	merged.LastUpdated = time.Now()
	r.creds[cred.UserID] = merged
	return nil
}

func (r *Repository) Delete(_ context.Context, userID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creds, userID)
	return nil
}
