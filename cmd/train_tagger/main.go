// Command train_tagger trains the character-augmented LSTM tagger on the toy
// corpus and prints its predictions before and after training.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golangast/seqtagger/internal/config"
	"github.com/golangast/seqtagger/internal/logging"
	"github.com/golangast/seqtagger/tagger/lstmtagger"
	"github.com/golangast/seqtagger/tagger/tag"
	"github.com/golangast/seqtagger/tagger/vocab"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

var (
	configPath string
	seed       uint64
	epochs     int
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "train_tagger",
	Short: "Train the char+word LSTM part-of-speech tagger on the toy corpus",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(cmd); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		return nil
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
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig reads the config file and applies explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Tagger.Seed = seed
	}
	if cmd.Flags().Changed("epochs") {
		cfg.Tagger.Epochs = epochs
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

	corpus := tag.Corpus()
	vocabs := vocab.Build(corpus)
	fmt.Fprintln(out, vocabs.Words.Format("%q"))
	fmt.Fprintln(out, vocabs.Chars.Format("%q"))

	rng := rand.New(rand.NewSource(cfg.Tagger.Seed))
	model, err := lstmtagger.New(cfg.Tagger.Dims(), vocabs, tag.DefaultSet(), rng)
	if err != nil {
		return fmt.Errorf("failed to create tagger: %w", err)
	}
	logger.Info("tagger created",
		zap.Int("words", vocabs.Words.Size()),
		zap.Int("chars", vocabs.Chars.Size()),
		zap.Uint64("seed", cfg.Tagger.Seed))

	test := corpus[0]
	fmt.Fprintln(out, test.Sentence())
	if err := printPredictions(out, model, test); err != nil {
		return err
	}

	trainer, err := lstmtagger.NewTrainer(model, cfg.Tagger.TrainOptions(), logger)
	if err != nil {
		return err
	}
	snapshots, err := trainer.Train(corpus)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	for _, s := range snapshots {
		fmt.Fprintf(out, "%.3f\n", s.Loss)
	}

	for _, ex := range corpus {
		fmt.Fprintln(out, ex.Sentence())
		if err := printPredictions(out, model, ex); err != nil {
			return err
		}
	}
	return nil
}

func printPredictions(out io.Writer, model *lstmtagger.Model, ex tag.Example) error {
	tags, err := model.Predict(ex.Tokens)
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}
	pairs := make([]string, len(tags))
	for i, t := range tags {
		pairs[i] = ex.Tokens[i] + ": " + t
	}
	fmt.Fprintln(out, strings.Join(pairs, " "))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
