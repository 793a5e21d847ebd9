//go:build smoke

// Smoke tests drive a running server with concurrent virtual editors to
// shake out correctness bugs in position maintenance under load. They
// always verify outcomes; they are not benchmarks.
//
// Point them at an external server with PLUGBOARD_URL, or let the test
// start an in-process server over an in-memory store.
//
//	go test -tags=smoke -count=1 . -run TestSmoke
//
// Editors work in isolated placeholders by default. With
// SMOKE_SHARED_PLACEHOLDER=true they all hammer one placeholder scope
// instead, which exercises concurrent mutation of a single position
// sequence.
package plugboard_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/plugboard/plugboard/pkg/client"
	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/permissions"
	"github.com/plugboard/plugboard/pkg/plugboard"
	"github.com/plugboard/plugboard/pkg/plugboardtesting"
	"github.com/plugboard/plugboard/pkg/store/gormstore"
)

type smokeConfig struct {
	BaseURL             string
	NumEditors          int
	Operations          int // operations per editor
	Timeout             time.Duration
	LaunchDelay         time.Duration
	SharedPlaceholder   bool
	RequiredSuccessRate float64 // minimum success rate, 0-100
}

func smokeConfigFromEnv() smokeConfig {
	return smokeConfig{
		BaseURL:             os.Getenv("PLUGBOARD_URL"),
		NumEditors:          smokeEnvInt("SMOKE_NUM_EDITORS", 10),
		Operations:          smokeEnvInt("SMOKE_OPERATIONS", 25),
		Timeout:             smokeEnvDuration("SMOKE_TIMEOUT", 5*time.Minute),
		LaunchDelay:         smokeEnvDuration("SMOKE_LAUNCH_DELAY", 10*time.Millisecond),
		SharedPlaceholder:   smokeEnvBool("SMOKE_SHARED_PLACEHOLDER", false),
		RequiredSuccessRate: smokeEnvFloat("SMOKE_SUCCESS_RATE", 95.0),
	}
}

func smokeEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func smokeEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func smokeEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func smokeEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// startInProcessServer boots the full application over an in-memory
// SQLite store and returns its base URL.
func startInProcessServer(t *testing.T) string {
	t.Helper()
	dsn := fmt.Sprintf("sqlite://file:smoke-%d?mode=memory&cache=shared", time.Now().UnixNano())
	st, err := gormstore.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	app := plugboard.NewWithStore(st, permissions.AllowAll{}, zerolog.Nop())
	server := httptest.NewServer(app.Router())
	t.Cleanup(func() {
		server.Close()
		_ = app.Close()
	})
	return server.URL
}

func TestSmoke(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping smoke test in short mode")
	}

	config := smokeConfigFromEnv()
	require.Greater(t, config.NumEditors, 0, "SMOKE_NUM_EDITORS must be positive")
	require.Greater(t, config.Operations, 0, "SMOKE_OPERATIONS must be positive")

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = startInProcessServer(t)
		t.Logf("PLUGBOARD_URL not set, using in-process server at %s", baseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	health, err := client.NewClient(baseURL).Health(ctx)
	require.NoError(t, err, "Server health check failed")
	require.Equal(t, "healthy", health["status"], "Server is not healthy")

	t.Logf("=== Smoke Test Configuration ===")
	t.Logf("Base URL: %s", baseURL)
	t.Logf("Editors: %d, operations each: %d", config.NumEditors, config.Operations)
	t.Logf("Timeout: %v", config.Timeout)
	t.Logf("Shared placeholder: %v", config.SharedPlaceholder)
	t.Logf("Required success rate: %.2f%%", config.RequiredSuccessRate)

	if config.SharedPlaceholder {
		runSharedPlaceholderSmoke(t, ctx, baseURL, config)
	} else {
		runScenarioSmoke(t, ctx, baseURL, config)
	}
}

// runScenarioSmoke gives every editor its own placeholder and runs the
// full edit scenario: a deterministic pseudo-random mix of adds, moves,
// and deletes, with a density check at the end.
func runScenarioSmoke(t *testing.T, ctx context.Context, baseURL string, config smokeConfig) {
	editors := make([]*plugboardtesting.VirtualEditor, config.NumEditors)
	for i := range editors {
		editors[i] = plugboardtesting.NewVirtualEditor(i, baseURL)
	}

	errChan := make(chan error, config.NumEditors)
	var wg sync.WaitGroup
	startTime := time.Now()

	for _, editor := range editors {
		wg.Add(1)
		go func(editor *plugboardtesting.VirtualEditor) {
			defer wg.Done()
			if err := editor.RunScenario(ctx, config.Operations); err != nil {
				errChan <- fmt.Errorf("editor %d: %w", editor.Index, err)
			}
		}(editor)

		if config.LaunchDelay > 0 {
			time.Sleep(config.LaunchDelay)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("Smoke test timed out after %v", config.Timeout)
	}

	close(errChan)
	var failures []error
	for err := range errChan {
		failures = append(failures, err)
	}

	succeeded := config.NumEditors - len(failures)
	successRate := float64(succeeded) / float64(config.NumEditors) * 100
	t.Logf("=== Scenario Results ===")
	t.Logf("Duration: %v", time.Since(startTime))
	t.Logf("Editors succeeded: %d of %d", succeeded, config.NumEditors)
	t.Logf("Success rate: %.2f%%", successRate)
	for i, err := range failures {
		if i == 10 {
			t.Logf("  (%d more)", len(failures)-10)
			break
		}
		t.Logf("  failure %d: %v", i+1, err)
	}

	require.GreaterOrEqual(t, successRate, config.RequiredSuccessRate,
		"Success rate %.2f%% below required %.2f%%", successRate, config.RequiredSuccessRate)
}

// runSharedPlaceholderSmoke has every editor append plugins to the same
// placeholder scope concurrently, then verifies that every successful
// add is present and positions are still exactly 1..N.
func runSharedPlaceholderSmoke(t *testing.T, ctx context.Context, baseURL string, config smokeConfig) {
	owner := client.NewClient(baseURL)
	owner.SetUser("owner@test.com")
	placeholder, err := owner.CreatePlaceholder(ctx, &models.Placeholder{Slot: "shared"})
	require.NoError(t, err, "Failed to create shared placeholder")

	var operationCount, errorCount int64
	var wg sync.WaitGroup
	startTime := time.Now()

	for i := 0; i < config.NumEditors; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			c := client.NewClient(baseURL)
			c.SetUser(fmt.Sprintf("editor%d@test.com", index))

			for op := 0; op < config.Operations; op++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				_, err := c.AddPlugin(ctx, &models.Plugin{
					PlaceholderID: placeholder.ID,
					Language:      "en",
					PluginType:    "text",
					Payload:       models.JSONMap{"editor": index, "op": op},
				})
				if err != nil {
					atomic.AddInt64(&errorCount, 1)
				} else {
					atomic.AddInt64(&operationCount, 1)
				}
				time.Sleep(50 * time.Millisecond)
			}
		}(i)

		if config.LaunchDelay > 0 {
			time.Sleep(config.LaunchDelay)
		}
	}
	wg.Wait()

	totalOps := operationCount + errorCount
	successRate := float64(operationCount) / float64(totalOps) * 100
	t.Logf("=== Shared Placeholder Results ===")
	t.Logf("Duration: %v", time.Since(startTime))
	t.Logf("Operations: %d, errors: %d", operationCount, errorCount)
	t.Logf("Success rate: %.2f%%", successRate)

	plugins, err := owner.ListPlugins(ctx, placeholder.ID, "en")
	require.NoError(t, err, "Failed to list shared placeholder")
	require.EqualValues(t, operationCount, len(plugins), "successful adds and stored plugins disagree")
	for i, plugin := range plugins {
		require.Equal(t, i+1, plugin.Position,
			"position %d of %d is %d", i+1, len(plugins), plugin.Position)
	}

	require.GreaterOrEqual(t, successRate, config.RequiredSuccessRate,
		"Success rate %.2f%% below required %.2f%%", successRate, config.RequiredSuccessRate)
}
