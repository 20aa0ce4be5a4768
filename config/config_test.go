package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PassesValidation(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestMerge_OverlaysNonZeroFields(t *testing.T) {
	base := Default()
	override := Config{BrokerURL: "amqp://override/", BrokerPrefetch: 42}

	merged := base.Merge(override)
	assert.Equal(t, "amqp://override/", merged.BrokerURL)
	assert.Equal(t, 42, merged.BrokerPrefetch)
	assert.Equal(t, base.ArtifactsRoot, merged.ArtifactsRoot)
}

func TestLoad_AppliesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker_url: amqp://from-yaml/\nbroker_prefetch: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "amqp://from-yaml/", cfg.BrokerURL)
	assert.Equal(t, 7, cfg.BrokerPrefetch)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does_not_exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().BrokerURL, cfg.BrokerURL)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker_url: amqp://from-yaml/\n"), 0o644))

	t.Setenv("ORCHESTRATOR_BROKER_URL", "amqp://from-env/")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "amqp://from-env/", cfg.BrokerURL)
}

func TestValidate_RejectsBadDefaultPriority(t *testing.T) {
	cfg := Default()
	cfg.DefaultPriority = 9
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveTickInterval(t *testing.T) {
	cfg := Default()
	cfg.TickInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestMerge_StageDeadlinesAreMerged(t *testing.T) {
	base := Default()
	base.StageDeadlines = map[string]time.Duration{"LINTING": 60 * time.Second}
	override := Config{StageDeadlines: map[string]time.Duration{"SIMULATING": 600 * time.Second}}

	merged := base.Merge(override)
	assert.Equal(t, 60*time.Second, merged.StageDeadlines["LINTING"])
	assert.Equal(t, 600*time.Second, merged.StageDeadlines["SIMULATING"])
}

func TestMerge_StageToolConfigIsMergedPerStageAndPerKey(t *testing.T) {
	base := Config{StageToolConfig: map[string]map[string]string{
		"LINTING": {"ruleset": "sv-default", "severity_floor": "warning"},
	}}
	override := Config{StageToolConfig: map[string]map[string]string{
		"LINTING":    {"severity_floor": "error"},
		"SIMULATING": {"simulator": "verilator"},
	}}

	merged := base.Merge(override)
	assert.Equal(t, "sv-default", merged.StageToolConfig["LINTING"]["ruleset"], "keys absent from the override survive")
	assert.Equal(t, "error", merged.StageToolConfig["LINTING"]["severity_floor"], "keys present in the override win")
	assert.Equal(t, "verilator", merged.StageToolConfig["SIMULATING"]["simulator"])
}

func TestDefault_SeedsStageToolConfigForEveryToolDrivenStage(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.StageToolConfig["LINTING"])
	assert.NotEmpty(t, cfg.StageToolConfig["SIMULATING"])
	assert.NotEmpty(t, cfg.StageToolConfig["DISTILLING"])
}
