package statemock

import (
	"context"
	"sync"

	"github.com/healthfolio/tracker-manager/internal/oauthstate"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu     sync.Mutex
	states map[string]oauthstate.State

	storeErr, consumeErr, listErr, deleteErr error
}

func WithState(state oauthstate.State) RepositoryOption {
	return func(r *Repository) { r.states[state.ID] = state }
}
func WithStoreError(err error) RepositoryOption {
	return func(r *Repository) { r.storeErr = err }
}
func WithConsumeError(err error) RepositoryOption {
	return func(r *Repository) { r.consumeErr = err }
}
func WithListError(err error) RepositoryOption {
	return func(r *Repository) { r.listErr = err }
}
func WithDeleteError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteErr = err }
}

var _ = oauthstate.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		states: make(map[string]oauthstate.State),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) Store(_ context.Context, state oauthstate.State) error {
	if r.storeErr != nil {
		return r.storeErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[state.ID]; ok {
		return serviceerr.ErrConflict
	}
	r.states[state.ID] = state
	return nil
}

func (r *Repository) Consume(_ context.Context, stateID string) (oauthstate.State, error) {
	if r.consumeErr != nil {
		return oauthstate.State{}, r.consumeErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[stateID]
	if !ok {
		return oauthstate.State{}, serviceerr.ErrNotFound
	}
	delete(r.states, stateID)
	return state, nil
}

func (r *Repository) List(_ context.Context) ([]oauthstate.State, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]oauthstate.State, 0, len(r.states))
	for _, s := range r.states {
		states = append(states, s)
	}
	return states, nil
}

func (r *Repository) Delete(_ context.Context, stateID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, stateID)
	return nil
}

// Len reports how many state records are still stored.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
