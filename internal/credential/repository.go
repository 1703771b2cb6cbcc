package credential

import "context"

type Repository interface {
	// Get returns the credential for a user, or serviceerr.ErrNotFound.
	Get(ctx context.Context, userID string) (ProviderCredential, error)
	// Upsert writes the credential with merge semantics: empty fields on the
	// incoming record leave the stored sibling fields untouched.
	Upsert(ctx context.Context, cred ProviderCredential) error
	// Delete removes the credential if it exists. Deleting a nonexistent
	// record is not an error.
	Delete(ctx context.Context, userID string) error
}
