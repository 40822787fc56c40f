package condrnn

import (
	"testing"

	. "github.com/golangast/seqtagger/neural/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newCell(t *testing.T, activation Activation, seed uint64) *Cell {
	t.Helper()
	c, err := NewCell(3, 5, 4, 5, activation, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return c
}

func step(t *testing.T, c *Cell, category, input int, hidden *Tensor) (*Tensor, *Tensor) {
	t.Helper()
	cat, err := OneHot(category, c.CategorySize)
	require.NoError(t, err)
	in, err := OneHot(input, c.InputSize)
	require.NoError(t, err)
	out, h, err := c.Forward(cat, in, hidden)
	require.NoError(t, err)
	return out, h
}

func TestCellForwardShapes(t *testing.T) {
	c := newCell(t, ActivationTanh, 1)
	out, h := step(t, c, 0, 2, c.InitHidden())
	assert.Equal(t, []int{1, 5}, out.Shape)
	assert.Equal(t, []int{1, 4}, h.Shape)
}

func TestCellForwardDeterministic(t *testing.T) {
	a := newCell(t, ActivationTanh, 9)
	b := newCell(t, ActivationTanh, 9)

	outA, hA := step(t, a, 1, 3, a.InitHidden())
	outB, hB := step(t, b, 1, 3, b.InitHidden())
	assert.Equal(t, outA.Data, outB.Data)
	assert.Equal(t, hA.Data, hB.Data)

	again, _ := step(t, a, 1, 3, a.InitHidden())
	assert.Equal(t, outA.Data, again.Data)

	// carrying the hidden state changes the next output
	carried, _ := step(t, a, 1, 3, hA)
	assert.NotEqual(t, outA.Data, carried.Data)
}

func TestCellIdentityHidden(t *testing.T) {
	c := newCell(t, ActivationIdentity, 2)
	_, h := step(t, c, 2, 4, c.InitHidden())

	// with a zero hidden state the combined input selects rows 2 and 3+4
	// of the i2h weights.
	w, b := c.I2H.Weights, c.I2H.Biases
	for j := 0; j < c.HiddenSize; j++ {
		want := w.Data[2*c.HiddenSize+j] + w.Data[(3+4)*c.HiddenSize+j] + b.Data[j]
		assert.InDelta(t, want, h.Data[j], 1e-12)
	}
}

func TestCellGradients(t *testing.T) {
	c := newCell(t, ActivationTanh, 4)
	loss := func() (*Tensor, error) {
		cat, _ := OneHot(0, c.CategorySize)
		hidden := c.InitHidden()
		var out *Tensor
		var err error
		for _, input := range []int{1, 4} {
			in, _ := OneHot(input, c.InputSize)
			out, hidden, err = c.Forward(cat, in, hidden)
			if err != nil {
				return nil, err
			}
		}
		return out.LogSoftmax()
	}

	for _, p := range c.Parameters() {
		p.Grad = nil
	}
	out, err := loss()
	require.NoError(t, err)
	seed := NewTensor(out.Shape, []float64{0.5, -1, 0.25, 0, 2}, false)
	require.NoError(t, out.Backward(seed))

	const eps = 1e-6
	for pi, p := range c.Parameters() {
		for i := range p.Data {
			orig := p.Data[i]
			p.Data[i] = orig + eps
			plus, err := loss()
			require.NoError(t, err)
			p.Data[i] = orig - eps
			minus, err := loss()
			require.NoError(t, err)
			p.Data[i] = orig

			numeric := 0.0
			for k, g := range seed.Data {
				numeric += g * (plus.Data[k] - minus.Data[k]) / (2 * eps)
			}
			assert.InDeltaf(t, numeric, p.Grad.Data[i], 1e-6, "param %d element %d", pi, i)
		}
	}
}

func TestCellErrors(t *testing.T) {
	_, err := NewCell(1, 1, 1, 1, "relu", rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	c := newCell(t, "", 3)
	assert.Equal(t, ActivationTanh, c.Activation)

	cat, _ := OneHot(0, 3)
	in, _ := OneHot(0, 5)
	_, _, err = c.Forward(cat, in, Zeros(1, 3))
	assert.Error(t, err)
	_, _, err = c.Forward(in, in, c.InitHidden())
	assert.Error(t, err)

	_, err = OneHot(5, 5)
	assert.Error(t, err)
}
