package nn

import (
	"math"
	"testing"

	. "github.com/golangast/seqtagger/neural/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

// numericGrad returns d loss / d p.Data[i] by central differences.
func numericGrad(t *testing.T, p *Tensor, i int, loss func() (*Tensor, error)) float64 {
	t.Helper()
	const eps = 1e-6
	orig := p.Data[i]
	p.Data[i] = orig + eps
	plus, err := loss()
	require.NoError(t, err)
	p.Data[i] = orig - eps
	minus, err := loss()
	require.NoError(t, err)
	p.Data[i] = orig
	return (plus.Data[0] - minus.Data[0]) / (2 * eps)
}

func TestLinearForward(t *testing.T) {
	l, err := NewLinear(2, 1, newRand())
	require.NoError(t, err)
	copy(l.Weights.Data, []float64{2, -1})
	l.Biases.Data[0] = 0.5

	out, err := l.Forward(NewTensor([]int{2, 2}, []float64{1, 1, 3, 2}, false))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, out.Shape)
	assert.InDeltaSlice(t, []float64{1.5, 4.5}, out.Data, 1e-12)

	_, err = l.Forward()
	assert.Error(t, err)
	_, err = NewLinear(0, 3, newRand())
	assert.Error(t, err)
}

func TestLinearInitBounds(t *testing.T) {
	l, err := NewLinear(16, 4, newRand())
	require.NoError(t, err)
	for _, p := range l.Parameters() {
		for _, v := range p.Data {
			assert.LessOrEqual(t, math.Abs(v), 0.25)
		}
	}
}

func TestNLLLoss(t *testing.T) {
	logProbs := NewTensor([]int{2, 3}, []float64{
		math.Log(0.2), math.Log(0.5), math.Log(0.3),
		math.Log(0.1), math.Log(0.1), math.Log(0.8),
	}, true)

	loss, err := NLLLoss(logProbs, []int{1, 2})
	require.NoError(t, err)
	want := -(math.Log(0.5) + math.Log(0.8)) / 2
	assert.InDelta(t, want, loss.Data[0], 1e-12)

	require.NoError(t, loss.Backward(nil))
	assert.Equal(t, []float64{0, -0.5, 0, 0, 0, -0.5}, logProbs.Grad.Data)

	_, err = NLLLoss(logProbs, []int{1})
	assert.ErrorIs(t, err, ErrTargetCount)
	_, err = NLLLoss(logProbs, []int{1, 3})
	assert.Error(t, err)
}

func TestLSTMShapesAndState(t *testing.T) {
	lstm, err := NewLSTM(2, 3, newRand())
	require.NoError(t, err)

	inputs := NewTensor([]int{4, 2}, []float64{0.1, 0.2, 0.3, -0.4, 0.5, 0.6, -0.7, 0.8}, false)
	out, state, err := lstm.Forward(inputs, lstm.InitState())
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3}, out.Shape)
	assert.Equal(t, []int{1, 3}, state.Hidden.Shape)
	// final output row is the final hidden state
	assert.Equal(t, state.Hidden.Data, out.Data[9:12])
	for _, v := range out.Data {
		assert.Less(t, math.Abs(v), 1.0)
	}

	again, _, err := lstm.Forward(inputs, lstm.InitState())
	require.NoError(t, err)
	assert.Equal(t, out.Data, again.Data)

	_, _, err = lstm.Forward(Zeros(4, 3), lstm.InitState())
	assert.Error(t, err)
}

func TestLSTMGradients(t *testing.T) {
	rng := newRand()
	lstm, err := NewLSTM(2, 3, rng)
	require.NoError(t, err)
	proj, err := NewLinear(3, 2, rng)
	require.NoError(t, err)
	inputs := NewTensor([]int{3, 2}, []float64{0.5, -0.1, 0.2, 0.9, -0.6, 0.3}, true)
	targets := []int{1, 0, 1}

	loss := func() (*Tensor, error) {
		out, _, err := lstm.Forward(inputs, lstm.InitState())
		if err != nil {
			return nil, err
		}
		scores, err := proj.Forward(out)
		if err != nil {
			return nil, err
		}
		logProbs, err := scores.LogSoftmax()
		if err != nil {
			return nil, err
		}
		return NLLLoss(logProbs, targets)
	}

	params := append(append(lstm.Parameters(), proj.Parameters()...), inputs)
	opt := NewSGD(params, 0.1)
	opt.ZeroGrad()
	l, err := loss()
	require.NoError(t, err)
	require.NoError(t, l.Backward(nil))

	for pi, p := range params {
		for i := range p.Data {
			numeric := numericGrad(t, p, i, loss)
			assert.InDeltaf(t, numeric, p.Grad.Data[i], 1e-6, "param %d element %d", pi, i)
		}
	}
}

func TestEmbedding(t *testing.T) {
	e, err := NewEmbedding(5, 2, newRand())
	require.NoError(t, err)
	out, err := e.Forward([]int{4, 1})
	require.NoError(t, err)
	assert.Equal(t, e.Weight.Data[8:10], out.Data[0:2])
	assert.Equal(t, e.Weight.Data[2:4], out.Data[2:4])

	_, err = e.Forward([]int{5})
	assert.Error(t, err)
}

func TestSGDStep(t *testing.T) {
	p := NewTensor([]int{2}, []float64{1, -1}, true)
	opt := NewSGD([]*Tensor{p}, 0.1)
	opt.ZeroGrad()
	copy(p.Grad.Data, []float64{2, -4})

	opt.Step()
	assert.InDeltaSlice(t, []float64{0.8, -0.6}, p.Data, 1e-12)

	opt.ZeroGrad()
	assert.Equal(t, []float64{0, 0}, p.Grad.Data)
}

func TestOptimizersMinimizeQuadratic(t *testing.T) {
	for _, name := range []string{OptimizerSGD, OptimizerAdam} {
		t.Run(name, func(t *testing.T) {
			p := NewTensor([]int{1, 2}, []float64{2, -3}, true)
			opt, err := NewOptimizer(name, []*Tensor{p}, 0.1)
			require.NoError(t, err)

			for step := 0; step < 500; step++ {
				opt.ZeroGrad()
				sq, err := p.Mul(p)
				require.NoError(t, err)
				require.NoError(t, sq.Backward(nil))
				opt.Step()
			}
			assert.InDelta(t, 0, p.Data[0], 0.1)
			assert.InDelta(t, 0, p.Data[1], 0.1)
		})
	}

	_, err := NewOptimizer("rmsprop", nil, 0.1)
	assert.Error(t, err)
}
