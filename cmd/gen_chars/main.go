// Command gen_chars trains the conditional character cell on the corpus
// words keyed by their tags and prints a sampled word per tag.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/golangast/seqtagger/internal/config"
	"github.com/golangast/seqtagger/internal/logging"
	"github.com/golangast/seqtagger/neural/condrnn"
	"github.com/golangast/seqtagger/tagger/tag"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

var (
	configPath string
	seed       uint64
	epochs     int
	maxLength  int
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gen_chars",
	Short: "Spell words one character at a time, conditioned on a tag",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(cmd); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.OutOrStdout(), cfg, logger)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (overrides config)")
	rootCmd.Flags().IntVar(&epochs, "epochs", 0, "training epochs (overrides config)")
	rootCmd.Flags().IntVar(&maxLength, "max-length", 0, "longest word to sample (overrides config)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Generator.Seed = seed
	}
	if cmd.Flags().Changed("epochs") {
		cfg.Generator.Epochs = epochs
	}
	if cmd.Flags().Changed("max-length") {
		cfg.Generator.MaxLength = maxLength
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(out io.Writer, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	pairs := condrnn.PairsFromExamples(tag.Corpus())
	alphabet := condrnn.AlphabetFromPairs(pairs)
	rng := rand.New(rand.NewSource(cfg.Generator.Seed))
	gen, err := condrnn.NewGenerator(tag.DefaultSet(), alphabet, cfg.Generator.Options(), rng, logger)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	losses, err := gen.Train(pairs, cfg.Generator.Epochs)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	logger.Info("generator trained",
		zap.Int("epochs", len(losses)),
		zap.Float64("first_loss", losses[0]),
		zap.Float64("final_loss", losses[len(losses)-1]))

	// one sample per tag for each word's first letter
	for _, p := range pairs {
		start := []rune(p.Word)[0]
		word, err := gen.Sample(p.Category, start, cfg.Generator.MaxLength)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %c -> %s\n", p.Category, start, word)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
