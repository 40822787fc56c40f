// Package lstmtagger implements a part-of-speech tagger whose word
// representation is a learned word embedding concatenated with the final
// output of a character-level LSTM run over the word's spelling.
package lstmtagger

import (
	"errors"
	"fmt"

	"github.com/golangast/seqtagger/neural/nn"
	"github.com/golangast/seqtagger/neural/tensor"
	"github.com/golangast/seqtagger/tagger/tag"
	"github.com/golangast/seqtagger/tagger/vocab"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrUnknownWord    = errors.New("word not in vocabulary")
	ErrUnknownChar    = errors.New("character not in alphabet")
	ErrLengthMismatch = errors.New("sentence and tag lengths differ")
	ErrEmptySentence  = errors.New("empty sentence")
)

// Dims sets the layer sizes of the tagger.
type Dims struct {
	WordEmbeddingDim int
	CharEmbeddingDim int
	HiddenDim        int
}

// DefaultDims returns the sizes used for the toy corpus.
func DefaultDims() Dims {
	return Dims{WordEmbeddingDim: 6, CharEmbeddingDim: 3, HiddenDim: 6}
}

// PreparedWord is a word in index form.
type PreparedWord struct {
	WordID  int
	CharIDs []int
}

// Model is the character-augmented LSTM tagger.
type Model struct {
	Dims  Dims
	Vocab *vocab.Vocabularies
	Tags  *tag.Set

	CharEmbeddings *nn.Embedding
	CharLSTM       *nn.LSTM
	WordEmbeddings *nn.Embedding
	WordLSTM       *nn.LSTM
	Hidden2Tag     *nn.Linear

	hidden nn.LSTMState
}

// New creates a tagger sized for vocabs and tags, initialized from rng.
func New(dims Dims, vocabs *vocab.Vocabularies, tags *tag.Set, rng *rand.Rand) (*Model, error) {
	charEmbeddings, err := nn.NewEmbedding(vocabs.Chars.Size(), dims.CharEmbeddingDim, rng)
	if err != nil {
		return nil, fmt.Errorf("char embeddings: %w", err)
	}
	charLSTM, err := nn.NewLSTM(dims.CharEmbeddingDim, dims.CharEmbeddingDim, rng)
	if err != nil {
		return nil, fmt.Errorf("char lstm: %w", err)
	}
	wordEmbeddings, err := nn.NewEmbedding(vocabs.Words.Size(), dims.WordEmbeddingDim, rng)
	if err != nil {
		return nil, fmt.Errorf("word embeddings: %w", err)
	}
	wordLSTM, err := nn.NewLSTM(dims.WordEmbeddingDim+dims.CharEmbeddingDim, dims.HiddenDim, rng)
	if err != nil {
		return nil, fmt.Errorf("word lstm: %w", err)
	}
	hidden2tag, err := nn.NewLinear(dims.HiddenDim, tags.Len(), rng)
	if err != nil {
		return nil, fmt.Errorf("hidden2tag: %w", err)
	}

	m := &Model{
		Dims:           dims,
		Vocab:          vocabs,
		Tags:           tags,
		CharEmbeddings: charEmbeddings,
		CharLSTM:       charLSTM,
		WordEmbeddings: wordEmbeddings,
		WordLSTM:       wordLSTM,
		Hidden2Tag:     hidden2tag,
	}
	m.ResetHidden()
	return m, nil
}

// Parameters returns all learnable parameters of the model.
func (m *Model) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	params = append(params, m.CharEmbeddings.Parameters()...)
	params = append(params, m.CharLSTM.Parameters()...)
	params = append(params, m.WordEmbeddings.Parameters()...)
	params = append(params, m.WordLSTM.Parameters()...)
	params = append(params, m.Hidden2Tag.Parameters()...)
	return params
}

// ResetHidden zeroes the word-level hidden state.
func (m *Model) ResetHidden() {
	m.hidden = m.WordLSTM.InitState()
}

// Hidden returns the word-level state left by the last Forward call.
func (m *Model) Hidden() nn.LSTMState {
	return m.hidden
}

// PrepareSequence converts words to their word and character indices.
func (m *Model) PrepareSequence(words []string) ([]PreparedWord, error) {
	prepared := make([]PreparedWord, len(words))
	for i, word := range words {
		wordID, ok := m.Vocab.Words.GetTokenID(word)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownWord, word)
		}
		var charIDs []int
		for _, r := range word {
			charID, ok := m.Vocab.Chars.GetTokenID(r)
			if !ok {
				return nil, fmt.Errorf("%w: %q in %q", ErrUnknownChar, r, word)
			}
			charIDs = append(charIDs, charID)
		}
		prepared[i] = PreparedWord{WordID: wordID, CharIDs: charIDs}
	}
	return prepared, nil
}

// PrepareTargets converts an example's tags to indices.
func (m *Model) PrepareTargets(ex tag.Example) ([]int, error) {
	if len(ex.Tokens) != len(ex.Tags) {
		return nil, fmt.Errorf("%w: %d words, %d tags", ErrLengthMismatch, len(ex.Tokens), len(ex.Tags))
	}
	return m.Tags.Indices(ex.Tags)
}

// charRepresentation runs the character LSTM over one word from a zero
// state and returns its last output, shape [1, CharEmbeddingDim].
func (m *Model) charRepresentation(word PreparedWord) (*tensor.Tensor, error) {
	if len(word.CharIDs) == 0 {
		return nil, fmt.Errorf("word %d has no characters", word.WordID)
	}
	embeds, err := m.CharEmbeddings.Forward(word.CharIDs)
	if err != nil {
		return nil, err
	}
	out, _, err := m.CharLSTM.Forward(embeds, m.CharLSTM.InitState())
	if err != nil {
		return nil, fmt.Errorf("char lstm: %w", err)
	}
	return out.Row(len(word.CharIDs) - 1)
}

// Forward scores every word of sentence, returning [len(sentence), tags]
// log-probabilities. The word-level state carries over from the previous
// call until ResetHidden.
func (m *Model) Forward(sentence []PreparedWord) (*tensor.Tensor, error) {
	if len(sentence) == 0 {
		return nil, ErrEmptySentence
	}

	wordIDs := make([]int, len(sentence))
	charReps := make([]*tensor.Tensor, len(sentence))
	for i, word := range sentence {
		wordIDs[i] = word.WordID
		rep, err := m.charRepresentation(word)
		if err != nil {
			return nil, err
		}
		charReps[i] = rep
	}

	charSeq, err := tensor.Concat(charReps, 0)
	if err != nil {
		return nil, err
	}
	wordEmbeds, err := m.WordEmbeddings.Forward(wordIDs)
	if err != nil {
		return nil, err
	}
	lstmIn, err := tensor.Concat([]*tensor.Tensor{wordEmbeds, charSeq}, 1)
	if err != nil {
		return nil, err
	}

	lstmOut, state, err := m.WordLSTM.Forward(lstmIn, m.hidden)
	if err != nil {
		return nil, fmt.Errorf("word lstm: %w", err)
	}
	m.hidden = state.Detach()

	tagSpace, err := m.Hidden2Tag.Forward(lstmOut)
	if err != nil {
		return nil, err
	}
	return tagSpace.LogSoftmax()
}

// Predict tags words from a fresh hidden state, choosing the highest
// scoring tag for each word.
func (m *Model) Predict(words []string) ([]string, error) {
	prepared, err := m.PrepareSequence(words)
	if err != nil {
		return nil, err
	}
	m.ResetHidden()
	scores, err := m.Forward(prepared)
	if err != nil {
		return nil, err
	}
	return m.decode(scores)
}

func (m *Model) decode(scores *tensor.Tensor) ([]string, error) {
	numTags := scores.Shape[1]
	tags := make([]string, scores.Shape[0])
	for i := range tags {
		best := floats.MaxIdx(scores.Data[i*numTags : (i+1)*numTags])
		name, err := m.Tags.Name(best)
		if err != nil {
			return nil, err
		}
		tags[i] = name
	}
	return tags, nil
}
