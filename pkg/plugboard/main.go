package plugboard

import (
	"context"
	"fmt"
)

// Main is the entry point for the plugboard binary. It takes a context
// for cancellation and the command line arguments after the program
// name, so tests can drive the full application without building a
// binary.
//
// Usage:
//
//	plugboard migrate                  # create / update the schema
//	plugboard serve                    # start the editing service
//	plugboard -addr :9090 serve
//	plugboard -db postgres://... serve
//
// Configuration comes from flags with environment fallbacks:
//
//	PLUGBOARD_ADDR        listen address         (:8080)
//	PLUGBOARD_DB_URL      postgres DSN or sqlite://<path>
//	PLUGBOARD_LOG_LEVEL   zerolog level name     (info)
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *ServeCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
	return nil
}
