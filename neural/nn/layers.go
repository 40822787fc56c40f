package nn

import (
	"fmt"
	"math"

	. "github.com/golangast/seqtagger/neural/tensor"
	"golang.org/x/exp/rand"
)

// Linear represents a fully connected layer computing input*Weights + Biases.
type Linear struct {
	InputDim  int
	OutputDim int
	Weights   *Tensor // [InputDim, OutputDim]
	Biases    *Tensor // [OutputDim]
}

// NewLinear creates a Linear layer with weights and biases drawn uniformly
// from [-1/sqrt(inputDim), 1/sqrt(inputDim)].
func NewLinear(inputDim, outputDim int, rng *rand.Rand) (*Linear, error) {
	if inputDim <= 0 || outputDim <= 0 {
		return nil, fmt.Errorf("invalid linear dimensions %dx%d", inputDim, outputDim)
	}
	bound := 1 / math.Sqrt(float64(inputDim))

	weights := NewTensor([]int{inputDim, outputDim}, uniform(rng, inputDim*outputDim, bound), true)
	biases := NewTensor([]int{outputDim}, uniform(rng, outputDim, bound), true)

	return &Linear{InputDim: inputDim, OutputDim: outputDim, Weights: weights, Biases: biases}, nil
}

func uniform(rng *rand.Rand, n int, bound float64) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
	return data
}

// Parameters returns all learnable parameters of the layer.
func (l *Linear) Parameters() []*Tensor {
	return []*Tensor{l.Weights, l.Biases}
}

// Forward performs the forward pass of the Linear layer on a [batch, InputDim] input.
func (l *Linear) Forward(inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("Linear.Forward expects 1 input, got %d", len(inputs))
	}
	input := inputs[0]
	if input == nil {
		return nil, fmt.Errorf("Linear.Forward received a nil input tensor")
	}

	output, err := input.MatMul(l.Weights)
	if err != nil {
		return nil, fmt.Errorf("linear layer matrix multiplication failed: %w", err)
	}
	output, err = output.AddWithBroadcast(l.Biases)
	if err != nil {
		return nil, fmt.Errorf("linear layer bias addition failed: %w", err)
	}
	return output, nil
}
