package condrnn

import (
	"errors"
	"fmt"

	"github.com/golangast/seqtagger/neural/nn"
	. "github.com/golangast/seqtagger/neural/tensor"
	"github.com/golangast/seqtagger/tagger/tag"
	"github.com/golangast/seqtagger/tagger/vocab"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

var ErrUnknownChar = errors.New("character not in alphabet")

// Pair is a word to be spelled under a category.
type Pair struct {
	Category string
	Word     string
}

// PairsFromExamples pairs every token of examples with its tag.
func PairsFromExamples(examples []tag.Example) []Pair {
	var pairs []Pair
	for _, ex := range examples {
		for i, word := range ex.Tokens {
			if i < len(ex.Tags) {
				pairs = append(pairs, Pair{Category: ex.Tags[i], Word: word})
			}
		}
	}
	return pairs
}

// AlphabetFromPairs indexes the characters of pairs in first-seen order.
func AlphabetFromPairs(pairs []Pair) *vocab.Vocabulary[rune] {
	alphabet := vocab.NewVocabulary[rune]()
	for _, p := range pairs {
		for _, r := range p.Word {
			alphabet.AddToken(r)
		}
	}
	return alphabet
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	HiddenSize   int
	LearningRate float64
	Optimizer    string
	Activation   Activation
}

// DefaultGeneratorOptions returns a small tanh cell trained with SGD.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		HiddenSize:   32,
		LearningRate: 0.05,
		Optimizer:    nn.OptimizerSGD,
		Activation:   ActivationTanh,
	}
}

// Generator spells words one character at a time, conditioned on a
// category. The last output index is reserved as the end-of-word marker.
type Generator struct {
	Cell       *Cell
	Categories *tag.Set
	Alphabet   *vocab.Vocabulary[rune]

	optimizer nn.Optimizer
	logger    *zap.Logger
}

// NewGenerator creates a Generator over categories and alphabet.
func NewGenerator(categories *tag.Set, alphabet *vocab.Vocabulary[rune], opts GeneratorOptions, rng *rand.Rand, logger *zap.Logger) (*Generator, error) {
	symbols := alphabet.Size() + 1
	cell, err := NewCell(categories.Len(), symbols, opts.HiddenSize, symbols, opts.Activation, rng)
	if err != nil {
		return nil, err
	}
	optimizer, err := nn.NewOptimizer(opts.Optimizer, cell.Parameters(), opts.LearningRate)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		Cell:       cell,
		Categories: categories,
		Alphabet:   alphabet,
		optimizer:  optimizer,
		logger:     logger,
	}, nil
}

// EndOfWord returns the index of the end-of-word marker.
func (g *Generator) EndOfWord() int {
	return g.Alphabet.Size()
}

func (g *Generator) categoryVector(category string) (*Tensor, error) {
	idx, err := g.Categories.Index(category)
	if err != nil {
		return nil, err
	}
	return OneHot(idx, g.Categories.Len())
}

func (g *Generator) charIDs(word string) ([]int, error) {
	var ids []int
	for _, r := range word {
		id, ok := g.Alphabet.GetTokenID(r)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %q", ErrUnknownChar, r, word)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("cannot train on an empty word")
	}
	return ids, nil
}

// TrainWord runs one teacher-forced update on word and returns the mean
// per-character loss. Each step predicts the next character, the last one
// predicts the end-of-word marker.
func (g *Generator) TrainWord(category, word string) (float64, error) {
	catVec, err := g.categoryVector(category)
	if err != nil {
		return 0, err
	}
	ids, err := g.charIDs(word)
	if err != nil {
		return 0, err
	}
	targets := append(ids[1:len(ids):len(ids)], g.EndOfWord())

	g.optimizer.ZeroGrad()
	hidden := g.Cell.InitHidden()
	var total *Tensor
	for i, id := range ids {
		input, err := OneHot(id, g.Cell.InputSize)
		if err != nil {
			return 0, err
		}
		var output *Tensor
		output, hidden, err = g.Cell.Forward(catVec, input, hidden)
		if err != nil {
			return 0, fmt.Errorf("step %d: %w", i, err)
		}
		logProbs, err := output.LogSoftmax()
		if err != nil {
			return 0, err
		}
		stepLoss, err := nn.NLLLoss(logProbs, targets[i:i+1])
		if err != nil {
			return 0, err
		}
		if total == nil {
			total = stepLoss
		} else if total, err = total.Add(stepLoss); err != nil {
			return 0, err
		}
	}

	if err := total.Backward(nil); err != nil {
		return 0, fmt.Errorf("backward: %w", err)
	}
	g.optimizer.Step()
	return total.Data[0] / float64(len(ids)), nil
}

// Train runs epochs passes over pairs and returns the mean loss per epoch.
func (g *Generator) Train(pairs []Pair, epochs int) ([]float64, error) {
	if len(pairs) == 0 {
		return nil, errors.New("no training data provided")
	}
	losses := make([]float64, 0, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		sum := 0.0
		for _, p := range pairs {
			loss, err := g.TrainWord(p.Category, p.Word)
			if err != nil {
				return losses, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			sum += loss
		}
		mean := sum / float64(len(pairs))
		losses = append(losses, mean)
		g.logger.Debug("generator epoch", zap.Int("epoch", epoch), zap.Float64("loss", mean))
	}
	return losses, nil
}

// Sample greedily spells a word for category starting from start, stopping
// at the end-of-word marker or after maxLength characters.
func (g *Generator) Sample(category string, start rune, maxLength int) (string, error) {
	catVec, err := g.categoryVector(category)
	if err != nil {
		return "", err
	}
	id, ok := g.Alphabet.GetTokenID(start)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChar, start)
	}

	out := []rune{start}
	hidden := g.Cell.InitHidden()
	for len(out) < maxLength {
		input, err := OneHot(id, g.Cell.InputSize)
		if err != nil {
			return "", err
		}
		var output *Tensor
		output, hidden, err = g.Cell.Forward(catVec, input, hidden)
		if err != nil {
			return "", err
		}
		hidden = hidden.Detach()

		id = floats.MaxIdx(output.Data)
		if id == g.EndOfWord() {
			break
		}
		r, _ := g.Alphabet.GetToken(id)
		out = append(out, r)
	}
	return string(out), nil
}
