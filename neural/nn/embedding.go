package nn

import (
	"fmt"

	. "github.com/golangast/seqtagger/neural/tensor"
	"golang.org/x/exp/rand"
)

// Embedding represents a trainable lookup table of VocabSize vectors.
type Embedding struct {
	DimModel  int
	VocabSize int
	Weight    *Tensor // [VocabSize, DimModel]
}

// NewEmbedding creates a new Embedding layer with standard normal initialization.
func NewEmbedding(vocabSize, dimModel int, rng *rand.Rand) (*Embedding, error) {
	if vocabSize <= 0 || dimModel <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %dx%d", vocabSize, dimModel)
	}
	weightsData := make([]float64, vocabSize*dimModel)
	for i := range weightsData {
		weightsData[i] = rng.NormFloat64()
	}

	return &Embedding{
		Weight:    NewTensor([]int{vocabSize, dimModel}, weightsData, true),
		DimModel:  dimModel,
		VocabSize: vocabSize,
	}, nil
}

// Parameters returns all learnable parameters of the layer.
func (e *Embedding) Parameters() []*Tensor {
	return []*Tensor{e.Weight}
}

// Forward looks up the vectors for ids, returning a [len(ids), DimModel] tensor.
func (e *Embedding) Forward(ids []int) (*Tensor, error) {
	out, err := EmbeddingLookup(e.Weight, ids)
	if err != nil {
		return nil, fmt.Errorf("embedding forward: %w", err)
	}
	return out, nil
}
