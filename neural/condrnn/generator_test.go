package condrnn

import (
	"strings"
	"testing"

	"github.com/golangast/seqtagger/tagger/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newGenerator(t *testing.T) (*Generator, []Pair) {
	t.Helper()
	pairs := PairsFromExamples(tag.Corpus())
	g, err := NewGenerator(tag.DefaultSet(), AlphabetFromPairs(pairs), DefaultGeneratorOptions(), rand.New(rand.NewSource(21)), nil)
	require.NoError(t, err)
	return g, pairs
}

func TestPairsFromExamples(t *testing.T) {
	pairs := PairsFromExamples(tag.Corpus())
	require.Len(t, pairs, 9)
	assert.Equal(t, Pair{Category: tag.DET, Word: "The"}, pairs[0])
	assert.Equal(t, Pair{Category: tag.V, Word: "read"}, pairs[6])
}

func TestGeneratorLearns(t *testing.T) {
	g, pairs := newGenerator(t)
	losses, err := g.Train(pairs, 40)
	require.NoError(t, err)
	require.Len(t, losses, 40)
	assert.Less(t, losses[len(losses)-1], losses[0])
}

func TestSample(t *testing.T) {
	g, _ := newGenerator(t)
	for _, category := range g.Categories.Names() {
		word, err := g.Sample(category, 'b', 6)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(word, "b"))
		assert.LessOrEqual(t, len([]rune(word)), 6)
	}

	_, err := g.Sample("ADJ", 'b', 6)
	assert.ErrorIs(t, err, tag.ErrUnknownTag)
	_, err = g.Sample(tag.NN, 'z', 6)
	assert.ErrorIs(t, err, ErrUnknownChar)
	_, err = g.TrainWord(tag.NN, "zebra")
	assert.ErrorIs(t, err, ErrUnknownChar)
}
