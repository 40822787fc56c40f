package nn

import (
	"fmt"

	. "github.com/golangast/seqtagger/neural/tensor"
	"golang.org/x/exp/rand"
)

// LSTMCell represents a single LSTM cell. Each gate is a Linear layer over
// the concatenation of the input and the previous hidden state.
type LSTMCell struct {
	InputSize  int
	HiddenSize int

	Forget    *Linear
	Input     *Linear
	Candidate *Linear
	Output    *Linear
}

// NewLSTMCell creates a new LSTMCell.
func NewLSTMCell(inputSize, hiddenSize int, rng *rand.Rand) (*LSTMCell, error) {
	gates := make([]*Linear, 4)
	for i := range gates {
		gate, err := NewLinear(inputSize+hiddenSize, hiddenSize, rng)
		if err != nil {
			return nil, fmt.Errorf("failed to create LSTM gate: %w", err)
		}
		gates[i] = gate
	}

	return &LSTMCell{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Forget:     gates[0],
		Input:      gates[1],
		Candidate:  gates[2],
		Output:     gates[3],
	}, nil
}

// Parameters returns all learnable parameters of the LSTMCell.
func (c *LSTMCell) Parameters() []*Tensor {
	var params []*Tensor
	for _, gate := range []*Linear{c.Forget, c.Input, c.Candidate, c.Output} {
		params = append(params, gate.Parameters()...)
	}
	return params
}

func gate(l *Linear, combined *Tensor, activation func(*Tensor) (*Tensor, error)) (*Tensor, error) {
	pre, err := l.Forward(combined)
	if err != nil {
		return nil, err
	}
	return activation(pre)
}

// Forward performs one step of the LSTMCell. input is [1, InputSize];
// prevHidden and prevCell are [1, HiddenSize].
func (c *LSTMCell) Forward(input, prevHidden, prevCell *Tensor) (*Tensor, *Tensor, error) {
	combined, err := Concat([]*Tensor{input, prevHidden}, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("LSTMCell.Forward: %w", err)
	}

	ft, err := gate(c.Forget, combined, (*Tensor).Sigmoid)
	if err != nil {
		return nil, nil, err
	}
	it, err := gate(c.Input, combined, (*Tensor).Sigmoid)
	if err != nil {
		return nil, nil, err
	}
	cct, err := gate(c.Candidate, combined, (*Tensor).Tanh)
	if err != nil {
		return nil, nil, err
	}
	ot, err := gate(c.Output, combined, (*Tensor).Sigmoid)
	if err != nil {
		return nil, nil, err
	}

	// ct = ft * prev_c + it * cct
	kept, err := ft.Mul(prevCell)
	if err != nil {
		return nil, nil, err
	}
	written, err := it.Mul(cct)
	if err != nil {
		return nil, nil, err
	}
	ct, err := kept.Add(written)
	if err != nil {
		return nil, nil, err
	}

	// ht = ot * tanh(ct)
	ctTanh, err := ct.Tanh()
	if err != nil {
		return nil, nil, fmt.Errorf("LSTMCell.Forward: Tanh operation failed: %w", err)
	}
	ht, err := ot.Mul(ctTanh)
	if err != nil {
		return nil, nil, fmt.Errorf("LSTMCell.Forward: Mul operation failed for hidden state: %w", err)
	}
	return ht, ct, nil
}

// LSTMState is the (hidden, cell) pair carried between time steps.
type LSTMState struct {
	Hidden *Tensor
	Cell   *Tensor
}

// Detach returns a copy of the state cut from the computation graph.
func (s LSTMState) Detach() LSTMState {
	return LSTMState{Hidden: s.Hidden.Detach(), Cell: s.Cell.Detach()}
}

// LSTM runs an LSTMCell over a sequence.
type LSTM struct {
	InputSize  int
	HiddenSize int
	Cell       *LSTMCell
}

// NewLSTM creates a new single-layer LSTM.
func NewLSTM(inputSize, hiddenSize int, rng *rand.Rand) (*LSTM, error) {
	cell, err := NewLSTMCell(inputSize, hiddenSize, rng)
	if err != nil {
		return nil, err
	}
	return &LSTM{InputSize: inputSize, HiddenSize: hiddenSize, Cell: cell}, nil
}

// Parameters returns all learnable parameters of the LSTM.
func (l *LSTM) Parameters() []*Tensor {
	return l.Cell.Parameters()
}

// InitState returns a zeroed hidden and cell state.
func (l *LSTM) InitState() LSTMState {
	return LSTMState{Hidden: Zeros(1, l.HiddenSize), Cell: Zeros(1, l.HiddenSize)}
}

// Forward runs the LSTM over inputs of shape [seq_len, InputSize] starting
// from state. It returns the per-step hidden outputs, shape
// [seq_len, HiddenSize], and the final state.
func (l *LSTM) Forward(inputs *Tensor, state LSTMState) (*Tensor, LSTMState, error) {
	if len(inputs.Shape) != 2 || inputs.Shape[1] != l.InputSize {
		return nil, state, fmt.Errorf("LSTM.Forward expects input of shape [seq_len, %d], got %v", l.InputSize, inputs.Shape)
	}
	if inputs.Shape[0] == 0 {
		return nil, state, fmt.Errorf("LSTM.Forward called with an empty sequence")
	}

	h, c := state.Hidden, state.Cell
	outputs := make([]*Tensor, 0, inputs.Shape[0])
	for t := 0; t < inputs.Shape[0]; t++ {
		x, err := inputs.Row(t)
		if err != nil {
			return nil, state, err
		}
		h, c, err = l.Cell.Forward(x, h, c)
		if err != nil {
			return nil, state, fmt.Errorf("LSTM step %d: %w", t, err)
		}
		outputs = append(outputs, h)
	}

	out, err := Concat(outputs, 0)
	if err != nil {
		return nil, state, err
	}
	return out, LSTMState{Hidden: h, Cell: c}, nil
}
