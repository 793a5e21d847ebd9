package plugboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequiresSubcommand(t *testing.T) {
	_, _, err := Parse([]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subcommand required")
	assert.Contains(t, err.Error(), "Usage: plugboard")
}

func TestParseUnknownCommand(t *testing.T) {
	_, _, err := Parse([]string{"frobnicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: frobnicate")
}

func TestParseServe(t *testing.T) {
	// Empty counts as unset, so this isolates the test from the caller's
	// environment.
	t.Setenv("PLUGBOARD_ADDR", "")
	t.Setenv("PLUGBOARD_DB_URL", "")
	t.Setenv("PLUGBOARD_LOG_LEVEL", "")

	cmd, config, err := Parse([]string{"serve"})
	require.NoError(t, err)
	require.IsType(t, &ServeCommand{}, cmd)
	assert.Equal(t, "serve", cmd.Name())

	// Defaults apply when neither flags nor environment are set.
	assert.Equal(t, ":8080", config.Addr)
	assert.Equal(t, "sqlite://plugboard.db", config.DatabaseURL)
	assert.Equal(t, "info", config.LogLevel)
	assert.False(t, config.PrettyLog)
}

func TestParseMigrate(t *testing.T) {
	cmd, _, err := Parse([]string{"migrate"})
	require.NoError(t, err)
	require.IsType(t, &MigrateCommand{}, cmd)
	assert.Equal(t, "migrate", cmd.Name())
}

func TestParseFlagsOverrideDefaults(t *testing.T) {
	cmd, config, err := Parse([]string{
		"-addr", ":9090",
		"-db", "sqlite://:memory:",
		"-log-level", "debug",
		"-pretty-log",
		"serve",
	})
	require.NoError(t, err)
	require.IsType(t, &ServeCommand{}, cmd)
	assert.Equal(t, ":9090", config.Addr)
	assert.Equal(t, "sqlite://:memory:", config.DatabaseURL)
	assert.Equal(t, "debug", config.LogLevel)
	assert.True(t, config.PrettyLog)
}

func TestParseEnvFallback(t *testing.T) {
	t.Setenv("PLUGBOARD_ADDR", ":7070")
	t.Setenv("PLUGBOARD_DB_URL", "postgres://db/plugboard")
	t.Setenv("PLUGBOARD_LOG_LEVEL", "warn")

	_, config, err := Parse([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, ":7070", config.Addr)
	assert.Equal(t, "postgres://db/plugboard", config.DatabaseURL)
	assert.Equal(t, "warn", config.LogLevel)
}

func TestParseFlagBeatsEnv(t *testing.T) {
	t.Setenv("PLUGBOARD_ADDR", ":7070")

	_, config, err := Parse([]string{"-addr", ":9090", "serve"})
	require.NoError(t, err)
	assert.Equal(t, ":9090", config.Addr)
}

func TestParseBadFlag(t *testing.T) {
	_, _, err := Parse([]string{"-no-such-flag", "serve"})
	require.Error(t, err)
}
