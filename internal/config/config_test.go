package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestDefaultTunablesMatchSpecConstants(t *testing.T) {
	d := DefaultTunables()
	assert.Equal(t, 3, d.MaxDebateRounds)
	assert.Equal(t, 200, d.MaxGraphSteps)
	assert.Equal(t, 5, d.CircuitBreakerTrips)
	assert.Equal(t, 60*time.Second, d.CircuitBreakerCooldown)
	assert.Equal(t, 90*24*time.Hour, d.FundamentalsCacheTTL)
	assert.Equal(t, 24*time.Hour, d.IndicatorsCacheTTL)
}

func TestLoadTunablesOverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_debate_rounds: 5\n"), 0o644))

	loaded, err := LoadTunables(path)
	require.NoError(t, err)

	assert.Equal(t, 5, loaded.MaxDebateRounds)
	assert.Equal(t, DefaultTunables().MaxGraphSteps, loaded.MaxGraphSteps)
}

func TestLoadTunablesMissingFile(t *testing.T) {
	_, err := LoadTunables("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestFromCLIResolvesFlagsAndEnv(t *testing.T) {
	app := &cli.App{
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			cfg, err := FromCLI(c)
			require.NoError(t, err)
			assert.Equal(t, 8000, cfg.Port)
			assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
			assert.Equal(t, DefaultTunables(), cfg.Tunables)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app"}))
}

func TestFromCLIWithTunablesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_risk_rounds: 2\n"), 0o644))

	app := &cli.App{
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			cfg, err := FromCLI(c)
			require.NoError(t, err)
			assert.Equal(t, 2, cfg.Tunables.MaxRiskRounds)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app", "--tunables-file", path}))
}
