package oauthstate

import "time"

// State is the transient, single-use record correlating the two redirect legs
// of a connection flow. It is keyed globally by its own random token because
// the provider's callback arrives carrying only code and state.
type State struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	PKCEVerifier string    `json:"pkceVerifier"`
	CreatedAt    time.Time `json:"createdAt"`
	Expiry       time.Time `json:"expiry"`
}

func (s State) Expired(now time.Time) bool {
	return now.After(s.Expiry)
}
