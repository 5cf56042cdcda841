// Package config holds the training configuration surface: defaults,
// TOML file loading and environment overrides.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Objective selects which loss terms the trainer optimizes.
type Objective string

const (
	// ObjectiveSCCL enables the KL self-training clustering loss on top
	// of whatever contrastive terms the variant carries.
	ObjectiveSCCL Objective = "sccl"
	// ObjectiveContrastive disables the clustering loss entirely.
	ObjectiveContrastive Objective = "contrastive"
)

// AugType selects how paired views are built for the text trainer.
type AugType string

const (
	// AugVirtual duplicates the raw text into both views.
	AugVirtual AugType = "virtual"
	// AugExplicit uses the two pre-computed augmentation columns.
	AugExplicit AugType = "explicit"
)

// Config is the full set of knobs the training loop reads.
type Config struct {
	MaxIter     int     `toml:"max_iter"`
	BatchSize   int     `toml:"batch_size"`
	Temperature float64 `toml:"temperature"`
	Eta         float64 `toml:"eta"`
	Alpha       float64 `toml:"alpha"`
	LearnRate   float64 `toml:"learn_rate"`

	Objective Objective `toml:"objective"`
	AugType   AugType   `toml:"aug_type"`

	PrintFreq   int `toml:"print_freq"`
	RepairEvery int `toml:"repair_every"`
	Patience    int `toml:"patience"`

	NumClusters int   `toml:"num_clusters"`
	HiddenSize  int   `toml:"hidden_size"`
	MaxLength   int   `toml:"max_length"`
	Seed        int64 `toml:"seed"`

	ResultDir string `toml:"result_dir"`
	ModelsDir string `toml:"models_dir"`
	ModelName string `toml:"model_name"`
}

// Default returns the configuration used when no file or environment
// override says otherwise.
func Default() Config {
	return Config{
		MaxIter:     1000,
		BatchSize:   32,
		Temperature: 0.5,
		Eta:         1.0,
		Alpha:       1.0,
		LearnRate:   0.001,
		Objective:   ObjectiveSCCL,
		AugType:     AugVirtual,
		PrintFreq:   100,
		RepairEvery: 50,
		Patience:    6,
		NumClusters: 2,
		HiddenSize:  128,
		MaxLength:   32,
		Seed:        42,
		ResultDir:   "results",
		ModelsDir:   "models",
		ModelName:   "sentence-transformers/all-MiniLM-L6-v2",
	}
}

// Load merges the TOML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "decode config %s", path)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides individual fields from SCCL_* environment
// variables. Unset or malformed values leave the field untouched.
func (c *Config) ApplyEnv() {
	c.MaxIter = getenvInt("SCCL_MAX_ITER", c.MaxIter)
	c.BatchSize = getenvInt("SCCL_BATCH_SIZE", c.BatchSize)
	c.Temperature = getenvFloat("SCCL_TEMPERATURE", c.Temperature)
	c.Eta = getenvFloat("SCCL_ETA", c.Eta)
	c.LearnRate = getenvFloat("SCCL_LR", c.LearnRate)
	c.PrintFreq = getenvInt("SCCL_PRINT_FREQ", c.PrintFreq)
	c.Patience = getenvInt("SCCL_PATIENCE", c.Patience)
	c.NumClusters = getenvInt("SCCL_NUM_CLUSTERS", c.NumClusters)
	c.Seed = int64(getenvInt("SCCL_SEED", int(c.Seed)))
	if v := os.Getenv("SCCL_OBJECTIVE"); v != "" {
		c.Objective = Objective(v)
	}
	if v := os.Getenv("SCCL_MODEL"); v != "" {
		c.ModelName = v
	}
}

// Validate rejects configurations the trainer cannot run with.
func (c *Config) Validate() error {
	switch c.Objective {
	case ObjectiveSCCL, ObjectiveContrastive:
	default:
		return errors.Errorf("unknown objective %q (options: sccl, contrastive)", c.Objective)
	}
	switch c.AugType {
	case AugVirtual, AugExplicit:
	default:
		return errors.Errorf("unknown aug_type %q (options: virtual, explicit)", c.AugType)
	}
	if c.MaxIter < 0 {
		return errors.Errorf("max_iter must be >= 0, got %d", c.MaxIter)
	}
	if c.BatchSize < 1 {
		return errors.Errorf("batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.NumClusters < 1 {
		return errors.Errorf("num_clusters must be >= 1, got %d", c.NumClusters)
	}
	if c.Temperature <= 0 {
		return errors.Errorf("temperature must be > 0, got %v", c.Temperature)
	}
	if c.Alpha <= 0 {
		return errors.Errorf("alpha must be > 0, got %v", c.Alpha)
	}
	if c.RepairEvery < 1 {
		return errors.Errorf("repair_every must be >= 1, got %d", c.RepairEvery)
	}
	if c.Patience < 1 {
		return errors.Errorf("patience must be >= 1, got %d", c.Patience)
	}
	return nil
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
