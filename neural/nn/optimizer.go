package nn

import (
	"fmt"
	"math"

	. "github.com/golangast/seqtagger/neural/tensor"
)

// Optimizer interface defines the contract for optimizers.
type Optimizer interface {
	Step()
	ZeroGrad()
}

// Optimizer names accepted by NewOptimizer.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// NewOptimizer creates the optimizer registered under name.
func NewOptimizer(name string, parameters []*Tensor, learningRate float64) (Optimizer, error) {
	switch name {
	case OptimizerSGD, "":
		return NewSGD(parameters, learningRate), nil
	case OptimizerAdam:
		return NewAdam(parameters, learningRate, 1.0), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

// SGD is plain gradient descent with a fixed learning rate.
type SGD struct {
	parameters   []*Tensor
	learningRate float64
}

// NewSGD creates a new SGD optimizer.
func NewSGD(parameters []*Tensor, learningRate float64) *SGD {
	return &SGD{parameters: parameters, learningRate: learningRate}
}

// Step moves every parameter against its gradient.
func (o *SGD) Step() {
	for _, p := range o.parameters {
		if p.Grad == nil {
			continue
		}
		for i := range p.Data {
			p.Data[i] -= o.learningRate * p.Grad.Data[i]
		}
	}
}

// ZeroGrad resets the gradients of all parameters.
func (o *SGD) ZeroGrad() {
	for _, p := range o.parameters {
		p.ZeroGrad()
	}
}

// Adam represents the Adam optimizer.
type Adam struct {
	parameters   []*Tensor
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
	t            int
	m            map[*Tensor][]float64 // 1st moment vector
	v            map[*Tensor][]float64 // 2nd moment vector
	clipValue    float64
}

// NewAdam creates a new Adam optimizer. Gradients are clipped element-wise
// to [-clipValue, clipValue] before each update.
func NewAdam(parameters []*Tensor, learningRate float64, clipValue float64) *Adam {
	return &Adam{
		parameters:   parameters,
		learningRate: learningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-8,
		m:            make(map[*Tensor][]float64),
		v:            make(map[*Tensor][]float64),
		clipValue:    clipValue,
	}
}

// Step performs a single optimization step.
func (o *Adam) Step() {
	o.t++
	correction1 := 1 - math.Pow(o.beta1, float64(o.t))
	correction2 := 1 - math.Pow(o.beta2, float64(o.t))
	for _, p := range o.parameters {
		if p.Grad == nil {
			continue
		}
		if _, ok := o.m[p]; !ok {
			o.m[p] = make([]float64, len(p.Data))
			o.v[p] = make([]float64, len(p.Data))
		}
		m, v := o.m[p], o.v[p]

		for i, g := range p.Grad.Data {
			g = math.Max(-o.clipValue, math.Min(o.clipValue, g))
			m[i] = o.beta1*m[i] + (1-o.beta1)*g
			v[i] = o.beta2*v[i] + (1-o.beta2)*g*g
			mHat := m[i] / correction1
			vHat := v[i] / correction2
			p.Data[i] -= o.learningRate * mHat / (math.Sqrt(vHat) + o.epsilon)
		}
	}
}

// ZeroGrad resets the gradients of all parameters.
func (o *Adam) ZeroGrad() {
	for _, p := range o.parameters {
		p.ZeroGrad()
	}
}
