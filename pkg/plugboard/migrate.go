package plugboard

import (
	"context"
	"fmt"
)

// Migrate creates or updates the backing database schema.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	a.log.Info().Msg("running schema migration")
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	a.log.Info().Msg("schema migration complete")
	return nil
}
