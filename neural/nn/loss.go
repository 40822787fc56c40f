package nn

import (
	"errors"
	"fmt"

	"github.com/golangast/seqtagger/neural/tensor"
)

// ErrTargetCount is returned when the number of targets does not match the
// number of rows being scored.
var ErrTargetCount = errors.New("mismatched target and prediction counts")

// NLLLoss computes the mean negative log-likelihood of targets under
// logProbs, a [N, num_classes] tensor of log-probabilities. The result is a
// single-element tensor.
func NLLLoss(logProbs *tensor.Tensor, targets []int) (*tensor.Tensor, error) {
	if len(logProbs.Shape) != 2 {
		return nil, fmt.Errorf("NLLLoss expects 2D log-probabilities, got shape %v", logProbs.Shape)
	}
	rows, numClasses := logProbs.Shape[0], logProbs.Shape[1]
	if len(targets) != rows || rows == 0 {
		return nil, fmt.Errorf("%w: %d targets for %d rows", ErrTargetCount, len(targets), rows)
	}

	loss := 0.0
	for i, target := range targets {
		if target < 0 || target >= numClasses {
			return nil, fmt.Errorf("target %d at position %d out of range for %d classes", target, i, numClasses)
		}
		loss -= logProbs.Data[i*numClasses+target]
	}
	loss /= float64(rows)

	result := tensor.NewTensor([]int{1}, []float64{loss}, logProbs.RequiresGrad)
	if result.RequiresGrad {
		targetsCopy := make([]int, len(targets))
		copy(targetsCopy, targets)
		result.Creator = &NLLLossOperation{LogProbs: logProbs, Targets: targetsCopy}
	}
	return result, nil
}

// NLLLossOperation represents the mean NLL loss for backward pass.
type NLLLossOperation struct {
	LogProbs *tensor.Tensor
	Targets  []int
}

func (op *NLLLossOperation) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.LogProbs}
}

func (op *NLLLossOperation) Backward(grad *tensor.Tensor) error {
	if !op.LogProbs.RequiresGrad {
		return nil
	}
	numClasses := op.LogProbs.Shape[1]
	scale := grad.Data[0] / float64(len(op.Targets))
	if op.LogProbs.Grad == nil {
		op.LogProbs.Grad = tensor.NewTensor(op.LogProbs.Shape, nil, false)
	}
	for i, target := range op.Targets {
		op.LogProbs.Grad.Data[i*numClasses+target] -= scale
	}
	return nil
}
