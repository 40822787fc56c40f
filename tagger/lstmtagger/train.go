package lstmtagger

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/golangast/seqtagger/neural/nn"
	"github.com/golangast/seqtagger/tagger/tag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TrainOptions controls the training loop.
type TrainOptions struct {
	Epochs        int
	SnapshotEvery int
	LearningRate  float64
	Optimizer     string
}

// DefaultTrainOptions returns 300 epochs of plain SGD at 0.1, snapshotting
// the loss every 30 epochs.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Epochs:        300,
		SnapshotEvery: 30,
		LearningRate:  0.1,
		Optimizer:     nn.OptimizerSGD,
	}
}

// Snapshot records the most recent sentence loss at the end of an epoch.
type Snapshot struct {
	Epoch int
	Loss  float64
}

// Trainer fits a Model one sentence at a time.
type Trainer struct {
	model     *Model
	optimizer nn.Optimizer
	opts      TrainOptions
	logger    *zap.Logger
}

// NewTrainer creates a Trainer for model. A nil logger discards output.
func NewTrainer(model *Model, opts TrainOptions, logger *zap.Logger) (*Trainer, error) {
	if model == nil {
		return nil, errors.New("cannot train a nil model")
	}
	if opts.Epochs < 0 {
		return nil, fmt.Errorf("negative epoch count %d", opts.Epochs)
	}
	if opts.SnapshotEvery <= 0 {
		return nil, fmt.Errorf("snapshot interval must be positive, got %d", opts.SnapshotEvery)
	}
	optimizer, err := nn.NewOptimizer(opts.Optimizer, model.Parameters(), opts.LearningRate)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{model: model, optimizer: optimizer, opts: opts, logger: logger}, nil
}

// Step runs one update on a single example and returns its loss.
func (t *Trainer) Step(ex tag.Example) (float64, error) {
	t.optimizer.ZeroGrad()
	t.model.ResetHidden()

	sentence, err := t.model.PrepareSequence(ex.Tokens)
	if err != nil {
		return 0, err
	}
	targets, err := t.model.PrepareTargets(ex)
	if err != nil {
		return 0, err
	}
	if ce := t.logger.Check(zapcore.DebugLevel, "prepared sentence"); ce != nil {
		ce.Write(zap.String("sentence", ex.Sentence()), zap.String("indices", spew.Sdump(sentence)))
	}

	scores, err := t.model.Forward(sentence)
	if err != nil {
		return 0, err
	}
	loss, err := nn.NLLLoss(scores, targets)
	if err != nil {
		return 0, err
	}
	if err := loss.Backward(nil); err != nil {
		return 0, fmt.Errorf("backward: %w", err)
	}
	t.optimizer.Step()

	return loss.Item()
}

// Train runs the configured number of epochs over examples. The loss of the
// last sentence is recorded on every SnapshotEvery-th epoch and once more
// after the final epoch.
func (t *Trainer) Train(examples []tag.Example) ([]Snapshot, error) {
	if len(examples) == 0 {
		return nil, errors.New("no training data provided")
	}

	var (
		snapshots []Snapshot
		lastLoss  float64
		err       error
	)
	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		for i, ex := range examples {
			lastLoss, err = t.Step(ex)
			if err != nil {
				return snapshots, fmt.Errorf("epoch %d example %d: %w", epoch, i, err)
			}
		}
		if epoch%t.opts.SnapshotEvery == 0 {
			snapshots = append(snapshots, Snapshot{Epoch: epoch, Loss: lastLoss})
			t.logger.Debug("loss snapshot", zap.Int("epoch", epoch), zap.Float64("loss", lastLoss))
		}
	}
	snapshots = append(snapshots, Snapshot{Epoch: t.opts.Epochs, Loss: lastLoss})
	t.logger.Info("training finished",
		zap.Int("epochs", t.opts.Epochs),
		zap.Int("examples", len(examples)),
		zap.Float64("final_loss", lastLoss))

	return snapshots, nil
}
