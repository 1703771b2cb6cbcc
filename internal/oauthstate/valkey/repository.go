// Package statevalkey stores authorization state records in ValKey. Records
// live under a flat <prefix>:state:<token> namespace and carry the state TTL
// so the server itself bounds the replay window.
package statevalkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/healthfolio/tracker-manager/internal/oauthstate"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

const objectTypeState = "state"

var (
	ErrStoreState   = errors.New("setting state into storage")
	ErrConsumeState = errors.New("consuming state from store")
	ErrListStates   = errors.New("listing states from store")
)

type Repository struct {
	store *store
}

var _ = oauthstate.Repository(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
	}
}

func (r *Repository) Store(ctx context.Context, state oauthstate.State) error {
	ttl := time.Until(state.Expiry)
	if err := r.store.Set(ctx, objectTypeState, state.ID, state, ttl); err != nil {
		return errors.Join(ErrStoreState, err)
	}

	return nil
}

// Consume is backed by GETDEL: the read and the delete are one atomic server
// command, so two concurrent deliveries of the same state cannot both see it.
func (r *Repository) Consume(ctx context.Context, stateID string) (oauthstate.State, error) {
	var state oauthstate.State
	if err := r.store.GetDel(ctx, objectTypeState, stateID, &state); err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return oauthstate.State{}, serviceerr.ErrNotFound
		}

		return oauthstate.State{}, errors.Join(ErrConsumeState, err)
	}

	return state, nil
}

func (r *Repository) List(ctx context.Context) ([]oauthstate.State, error) {
	var states []oauthstate.State
	if err := getStoreObjects(ctx, r.store, objectTypeState, "*", &states); err != nil {
		return nil, errors.Join(ErrListStates, err)
	}

	return states, nil
}

func (r *Repository) Delete(ctx context.Context, stateID string) error {
	if err := r.store.Destroy(ctx, objectTypeState, stateID); err != nil {
		return fmt.Errorf("deleting state from store: %w", err)
	}

	return nil
}
