// Package condrnn provides a recurrent cell conditioned on a category
// vector, and a greedy character generator built on it.
package condrnn

import (
	"fmt"

	"github.com/golangast/seqtagger/neural/nn"
	. "github.com/golangast/seqtagger/neural/tensor"
	"golang.org/x/exp/rand"
)

// Activation selects the non-linearity applied to the hidden transition.
type Activation string

const (
	// ActivationIdentity leaves the i2h projection as the new hidden state.
	ActivationIdentity Activation = "identity"
	ActivationTanh     Activation = "tanh"
)

// Cell combines a category, an input and the previous hidden state into an
// output vector and a new hidden state:
//
//	combined = [category, input, hidden]
//	hidden'  = act(i2h(combined))
//	output   = o2o([hidden', i2o(combined)])
type Cell struct {
	CategorySize int
	InputSize    int
	HiddenSize   int
	OutputSize   int
	Activation   Activation

	I2H *nn.Linear
	I2O *nn.Linear
	O2O *nn.Linear
}

// NewCell creates a Cell with freshly initialized projections.
func NewCell(categorySize, inputSize, hiddenSize, outputSize int, activation Activation, rng *rand.Rand) (*Cell, error) {
	switch activation {
	case ActivationIdentity, ActivationTanh:
	case "":
		activation = ActivationTanh
	default:
		return nil, fmt.Errorf("unknown activation %q", activation)
	}

	combined := categorySize + inputSize + hiddenSize
	i2h, err := nn.NewLinear(combined, hiddenSize, rng)
	if err != nil {
		return nil, fmt.Errorf("i2h: %w", err)
	}
	i2o, err := nn.NewLinear(combined, outputSize, rng)
	if err != nil {
		return nil, fmt.Errorf("i2o: %w", err)
	}
	o2o, err := nn.NewLinear(hiddenSize+outputSize, outputSize, rng)
	if err != nil {
		return nil, fmt.Errorf("o2o: %w", err)
	}

	return &Cell{
		CategorySize: categorySize,
		InputSize:    inputSize,
		HiddenSize:   hiddenSize,
		OutputSize:   outputSize,
		Activation:   activation,
		I2H:          i2h,
		I2O:          i2o,
		O2O:          o2o,
	}, nil
}

// Parameters returns all learnable parameters of the cell.
func (c *Cell) Parameters() []*Tensor {
	var params []*Tensor
	params = append(params, c.I2H.Parameters()...)
	params = append(params, c.I2O.Parameters()...)
	params = append(params, c.O2O.Parameters()...)
	return params
}

// InitHidden returns a zero hidden state of shape [1, HiddenSize].
func (c *Cell) InitHidden() *Tensor {
	return Zeros(1, c.HiddenSize)
}

func checkRow(name string, t *Tensor, width int) error {
	if len(t.Shape) != 2 || t.Shape[0] != 1 || t.Shape[1] != width {
		return fmt.Errorf("%s must have shape [1 %d], got %v", name, width, t.Shape)
	}
	return nil
}

// Forward runs one time step and returns the raw output and the new hidden
// state.
func (c *Cell) Forward(category, input, hidden *Tensor) (*Tensor, *Tensor, error) {
	if err := checkRow("category", category, c.CategorySize); err != nil {
		return nil, nil, err
	}
	if err := checkRow("input", input, c.InputSize); err != nil {
		return nil, nil, err
	}
	if err := checkRow("hidden", hidden, c.HiddenSize); err != nil {
		return nil, nil, err
	}

	combined, err := Concat([]*Tensor{category, input, hidden}, 1)
	if err != nil {
		return nil, nil, err
	}
	newHidden, err := c.I2H.Forward(combined)
	if err != nil {
		return nil, nil, fmt.Errorf("i2h: %w", err)
	}
	if c.Activation == ActivationTanh {
		if newHidden, err = newHidden.Tanh(); err != nil {
			return nil, nil, err
		}
	}
	output, err := c.I2O.Forward(combined)
	if err != nil {
		return nil, nil, fmt.Errorf("i2o: %w", err)
	}

	outputCombined, err := Concat([]*Tensor{newHidden, output}, 1)
	if err != nil {
		return nil, nil, err
	}
	output, err = c.O2O.Forward(outputCombined)
	if err != nil {
		return nil, nil, fmt.Errorf("o2o: %w", err)
	}
	return output, newHidden, nil
}

// OneHot returns a [1, size] tensor with a single 1 at index.
func OneHot(index, size int) (*Tensor, error) {
	if index < 0 || index >= size {
		return nil, fmt.Errorf("one-hot index %d out of range for size %d", index, size)
	}
	t := Zeros(1, size)
	t.Data[index] = 1
	return t, nil
}
