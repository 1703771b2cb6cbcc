package credential

import "time"

// ProviderCredential is the durable per-user grant obtained from the fitness
// provider. At most one live record exists per user. ExpiresAt is the
// absolute epoch-millisecond expiry of AccessToken; nothing in this service
// refreshes it — an expired token leaves the record present but unusable
// until the user reconnects.
type ProviderCredential struct {
	UserID         string
	ProviderUserID string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      int64
	Scopes         string
	LastUpdated    time.Time
}

// Connected reports whether the credential represents a live grant from the
// UI's perspective. ExpiresAt is deliberately not consulted.
func (c ProviderCredential) Connected() bool {
	return c.AccessToken != ""
}
