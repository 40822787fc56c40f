package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// EmbeddingLookup gathers rows of weights (shape [vocab_size, embedding_dim])
// for each id, producing a tensor of shape [len(ids), embedding_dim].
func EmbeddingLookup(weights *Tensor, ids []int) (*Tensor, error) {
	if len(weights.Shape) != 2 {
		return nil, fmt.Errorf("embedding weights must be 2D, got %v", weights.Shape)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("embedding lookup with no ids")
	}
	vocabSize, dim := weights.Shape[0], weights.Shape[1]

	outData := make([]float64, 0, len(ids)*dim)
	for _, id := range ids {
		if id < 0 || id >= vocabSize {
			return nil, fmt.Errorf("index %d out of range for embedding of size %d", id, vocabSize)
		}
		outData = append(outData, weights.Data[id*dim:(id+1)*dim]...)
	}

	idsCopy := make([]int, len(ids))
	copy(idsCopy, ids)
	result := NewTensor([]int{len(ids), dim}, outData, weights.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &EmbeddingLookupOperation{InputIDs: idsCopy, Weights: weights}
	}
	return result, nil
}

// EmbeddingLookupOperation represents an embedding lookup operation for autograd.
type EmbeddingLookupOperation struct {
	InputIDs []int
	Weights  *Tensor // Tensor of shape [vocab_size, embedding_dim]
}

func (op *EmbeddingLookupOperation) Inputs() []*Tensor {
	return []*Tensor{op.Weights}
}

func (op *EmbeddingLookupOperation) Backward(grad *Tensor) error {
	dim := op.Weights.Shape[1]
	local := make([]float64, len(op.Weights.Data))
	for i, id := range op.InputIDs {
		floats.Add(local[id*dim:(id+1)*dim], grad.Data[i*dim:(i+1)*dim])
	}
	accumulateGrad(op.Weights, local)
	return nil
}

// Softmax applies the softmax function to the last dimension of the tensor.
// The result is detached from the graph.
func Softmax(tensor *Tensor) *Tensor {
	shape := tensor.Shape
	lastDim := shape[len(shape)-1]
	output := NewTensor(shape, make([]float64, len(tensor.Data)), false)

	for i := 0; i < len(tensor.Data); i += lastDim {
		row := tensor.Data[i : i+lastDim]
		lse := floats.LogSumExp(row)
		for j, v := range row {
			output.Data[i+j] = math.Exp(v - lse)
		}
	}
	return output
}

// LogSoftmax normalizes the last dimension into log-probabilities.
func (t *Tensor) LogSoftmax() (*Tensor, error) {
	if len(t.Shape) == 0 || t.Shape[len(t.Shape)-1] == 0 {
		return nil, fmt.Errorf("LogSoftmax on tensor with shape %v", t.Shape)
	}
	lastDim := t.Shape[len(t.Shape)-1]

	resultData := make([]float64, len(t.Data))
	for i := 0; i < len(t.Data); i += lastDim {
		row := t.Data[i : i+lastDim]
		lse := floats.LogSumExp(row)
		for j, v := range row {
			resultData[i+j] = v - lse
		}
	}

	result := NewTensor(t.Shape, resultData, t.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &LogSoftmaxOperation{Input: t, Output: result}
	}
	return result, nil
}

// LogSoftmaxOperation represents log-softmax over the last axis.
type LogSoftmaxOperation struct {
	Input  *Tensor
	Output *Tensor
}

func (op *LogSoftmaxOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *LogSoftmaxOperation) Backward(grad *Tensor) error {
	lastDim := op.Input.Shape[len(op.Input.Shape)-1]
	local := make([]float64, len(grad.Data))
	// dx_j = g_j - softmax_j * sum(g)
	for i := 0; i < len(grad.Data); i += lastDim {
		g := grad.Data[i : i+lastDim]
		sum := floats.Sum(g)
		for j := range g {
			local[i+j] = g[j] - math.Exp(op.Output.Data[i+j])*sum
		}
	}
	accumulateGrad(op.Input, local)
	return nil
}
