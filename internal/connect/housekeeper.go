package connect

import (
	"context"
	"fmt"

	slogctx "github.com/veqryn/slog-context"
)

// PruneExpiredStates deletes state records past their expiry. The ValKey TTL
// already reclaims most of them; this pass bounds the replay window even
// where the store's TTL handling cannot be trusted.
func (m *Manager) PruneExpiredStates(ctx context.Context) error {
	states, err := m.states.List(ctx)
	if err != nil {
		return fmt.Errorf("listing states: %w", err)
	}

	now := m.now()
	for _, s := range states {
		if !s.Expired(now) {
			continue
		}
		if err := m.states.Delete(ctx, s.ID); err != nil {
			slogctx.Warn(ctx, "Could not delete expired state", "error", err)
			continue
		}
		slogctx.Info(ctx, "Deleted expired state", "user_id", s.UserID)
	}

	return nil
}
