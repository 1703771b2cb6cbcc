package business

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/healthfolio/tracker-manager/internal/config"
)

// HousekeeperMain runs the periodic state pruning job until the context is
// cancelled.
func HousekeeperMain(ctx context.Context, cfg *config.Config) error {
	manager, closeFn, err := initConnectManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the connect manager: %w", err)
	}
	defer closeFn()

	c := time.Tick(cfg.Housekeeper.TriggerInterval)
	for {
		if err := manager.PruneExpiredStates(ctx); err != nil {
			slogctx.Error(ctx, "Error during state housekeeping", "error", err)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}
