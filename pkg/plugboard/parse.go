package plugboard

import (
	"flag"
	"fmt"
)

// Parse parses command line arguments and returns the command to
// execute plus the shared application configuration. Flags come before
// the sub-command; every flag falls back to an environment variable so
// containerized deployments can skip flags entirely.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("plugboard", flag.ContinueOnError)

	var (
		addr      = flagSet.String("addr", "", "Listen address (default $PLUGBOARD_ADDR or :8080)")
		db        = flagSet.String("db", "", "Database URL: postgres DSN or sqlite://<path> (default $PLUGBOARD_DB_URL or sqlite://plugboard.db)")
		logLevel  = flagSet.String("log-level", "", "Log level: trace, debug, info, warn, error (default $PLUGBOARD_LOG_LEVEL or info)")
		prettyLog = flagSet.Bool("pretty-log", false, "Human-readable console logs instead of JSON")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: plugboard [flags] <command>

Commands:
  serve     Start the placeholder editing service
  migrate   Create or update the database schema

Examples:
  plugboard migrate                                # Schema against the default sqlite file
  plugboard -db postgres://localhost/plugboard migrate
  plugboard serve                                  # Serve on :8080
  plugboard -addr :9090 -db sqlite://:memory: serve
  plugboard -log-level debug -pretty-log serve`)
	}

	var cmd Command
	switch remainingArgs[0] {
	case "serve":
		cmd = &ServeCommand{}
	case "migrate":
		cmd = &MigrateCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: serve, migrate", remainingArgs[0])
	}

	config := &Config{
		Addr:        *addr,
		DatabaseURL: *db,
		LogLevel:    *logLevel,
		PrettyLog:   *prettyLog,
	}
	if config.Addr == "" {
		config.Addr = getEnv("PLUGBOARD_ADDR", ":8080")
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = getEnv("PLUGBOARD_DB_URL", "sqlite://plugboard.db")
	}
	if config.LogLevel == "" {
		config.LogLevel = getEnv("PLUGBOARD_LOG_LEVEL", "info")
	}

	return cmd, config, nil
}
