package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golangast/seqtagger/neural/condrnn"
	"github.com/golangast/seqtagger/neural/nn"
	"github.com/golangast/seqtagger/tagger/lstmtagger"
	"gopkg.in/yaml.v3"
)

// Config holds the settings for both training commands.
type Config struct {
	Tagger    TaggerConfig    `yaml:"tagger"`
	Generator GeneratorConfig `yaml:"generator"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TaggerConfig configures the LSTM tagger and its training loop.
type TaggerConfig struct {
	WordEmbeddingDim int     `yaml:"word_embedding_dim"`
	CharEmbeddingDim int     `yaml:"char_embedding_dim"`
	HiddenDim        int     `yaml:"hidden_dim"`
	Epochs           int     `yaml:"epochs"`
	SnapshotEvery    int     `yaml:"snapshot_every"`
	LearningRate     float64 `yaml:"learning_rate"`
	Optimizer        string  `yaml:"optimizer"` // sgd, adam
	Seed             uint64  `yaml:"seed"`
}

// GeneratorConfig configures the conditional character generator.
type GeneratorConfig struct {
	HiddenSize   int     `yaml:"hidden_size"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Optimizer    string  `yaml:"optimizer"`
	Activation   string  `yaml:"activation"` // identity, tanh
	MaxLength    int     `yaml:"max_length"`
	Seed         uint64  `yaml:"seed"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the settings used for the toy corpus.
func DefaultConfig() *Config {
	dims := lstmtagger.DefaultDims()
	train := lstmtagger.DefaultTrainOptions()
	gen := condrnn.DefaultGeneratorOptions()
	return &Config{
		Tagger: TaggerConfig{
			WordEmbeddingDim: dims.WordEmbeddingDim,
			CharEmbeddingDim: dims.CharEmbeddingDim,
			HiddenDim:        dims.HiddenDim,
			Epochs:           train.Epochs,
			SnapshotEvery:    train.SnapshotEvery,
			LearningRate:     train.LearningRate,
			Optimizer:        train.Optimizer,
			Seed:             1,
		},
		Generator: GeneratorConfig{
			HiddenSize:   gen.HiddenSize,
			Epochs:       100,
			LearningRate: gen.LearningRate,
			Optimizer:    gen.Optimizer,
			Activation:   string(gen.Activation),
			MaxLength:    10,
			Seed:         1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. The seed and
// epoch count apply to both models.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("SEQTAGGER_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SEQTAGGER_SEED: %w", err)
		}
		c.Tagger.Seed = seed
		c.Generator.Seed = seed
	}
	if v := os.Getenv("SEQTAGGER_EPOCHS"); v != "" {
		epochs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SEQTAGGER_EPOCHS: %w", err)
		}
		c.Tagger.Epochs = epochs
		c.Generator.Epochs = epochs
	}
	if v := os.Getenv("SEQTAGGER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// ValidOptimizers lists the supported optimizer names.
var ValidOptimizers = []string{nn.OptimizerSGD, nn.OptimizerAdam}

// Validate validates the configuration.
func (c *Config) Validate() error {
	t := c.Tagger
	if t.WordEmbeddingDim <= 0 || t.CharEmbeddingDim <= 0 || t.HiddenDim <= 0 {
		return fmt.Errorf("tagger dimensions must be positive, got word=%d char=%d hidden=%d",
			t.WordEmbeddingDim, t.CharEmbeddingDim, t.HiddenDim)
	}
	if t.Epochs <= 0 {
		return fmt.Errorf("tagger epochs must be positive, got %d", t.Epochs)
	}
	if t.SnapshotEvery <= 0 {
		return fmt.Errorf("tagger snapshot_every must be positive, got %d", t.SnapshotEvery)
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("tagger learning_rate must be positive, got %g", t.LearningRate)
	}
	if !validOptimizer(t.Optimizer) {
		return fmt.Errorf("invalid tagger optimizer: %s (valid: %v)", t.Optimizer, ValidOptimizers)
	}

	g := c.Generator
	if g.HiddenSize <= 0 {
		return fmt.Errorf("generator hidden_size must be positive, got %d", g.HiddenSize)
	}
	if g.Epochs <= 0 {
		return fmt.Errorf("generator epochs must be positive, got %d", g.Epochs)
	}
	if g.LearningRate <= 0 {
		return fmt.Errorf("generator learning_rate must be positive, got %g", g.LearningRate)
	}
	if g.MaxLength <= 0 {
		return fmt.Errorf("generator max_length must be positive, got %d", g.MaxLength)
	}
	if !validOptimizer(g.Optimizer) {
		return fmt.Errorf("invalid generator optimizer: %s (valid: %v)", g.Optimizer, ValidOptimizers)
	}
	switch condrnn.Activation(g.Activation) {
	case "", condrnn.ActivationIdentity, condrnn.ActivationTanh:
	default:
		return fmt.Errorf("invalid generator activation: %s", g.Activation)
	}
	return nil
}

func validOptimizer(name string) bool {
	if name == "" {
		return true
	}
	for _, o := range ValidOptimizers {
		if name == o {
			return true
		}
	}
	return false
}

// Dims returns the tagger layer sizes.
func (c *TaggerConfig) Dims() lstmtagger.Dims {
	return lstmtagger.Dims{
		WordEmbeddingDim: c.WordEmbeddingDim,
		CharEmbeddingDim: c.CharEmbeddingDim,
		HiddenDim:        c.HiddenDim,
	}
}

// TrainOptions returns the tagger training options.
func (c *TaggerConfig) TrainOptions() lstmtagger.TrainOptions {
	return lstmtagger.TrainOptions{
		Epochs:        c.Epochs,
		SnapshotEvery: c.SnapshotEvery,
		LearningRate:  c.LearningRate,
		Optimizer:     c.Optimizer,
	}
}

// Options returns the generator options.
func (c *GeneratorConfig) Options() condrnn.GeneratorOptions {
	return condrnn.GeneratorOptions{
		HiddenSize:   c.HiddenSize,
		LearningRate: c.LearningRate,
		Optimizer:    c.Optimizer,
		Activation:   condrnn.Activation(c.Activation),
	}
}
