package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ObjectiveSCCL, cfg.Objective)
	assert.Equal(t, AugVirtual, cfg.AugType)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_iter = 500
batch_size = 64
eta = 10.0
objective = "contrastive"
aug_type = "explicit"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxIter)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 10.0, cfg.Eta)
	assert.Equal(t, ObjectiveContrastive, cfg.Objective)
	assert.Equal(t, AugExplicit, cfg.AugType)
	// Untouched knobs keep their defaults.
	assert.Equal(t, Default().Temperature, cfg.Temperature)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().MaxIter, cfg.MaxIter)
}

func TestLoadRejectsUnknownObjective(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.toml")
	require.NoError(t, os.WriteFile(path, []byte(`objective = "reconstruction"`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "objective")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SCCL_MAX_ITER", "42")
	t.Setenv("SCCL_TEMPERATURE", "0.07")
	t.Setenv("SCCL_OBJECTIVE", "contrastive")
	t.Setenv("SCCL_BATCH_SIZE", "not-a-number")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, 42, cfg.MaxIter)
	assert.Equal(t, 0.07, cfg.Temperature)
	assert.Equal(t, ObjectiveContrastive, cfg.Objective)
	assert.Equal(t, Default().BatchSize, cfg.BatchSize, "malformed value is ignored")
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"negative max_iter", func(c *Config) { c.MaxIter = -1 }},
		{"zero clusters", func(c *Config) { c.NumClusters = 0 }},
		{"zero temperature", func(c *Config) { c.Temperature = 0 }},
		{"negative alpha", func(c *Config) { c.Alpha = -1 }},
		{"zero repair cadence", func(c *Config) { c.RepairEvery = 0 }},
		{"zero patience", func(c *Config) { c.Patience = 0 }},
		{"bad aug_type", func(c *Config) { c.AugType = "rotations" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
