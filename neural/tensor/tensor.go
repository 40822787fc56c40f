package tensor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoGrad is returned by Backward when called on a tensor that is not part
// of a differentiable graph.
var ErrNoGrad = errors.New("tensor does not require grad")

// Operation represents an operation in the computation graph.
type Operation interface {
	Inputs() []*Tensor
	Backward(grad *Tensor) error
}

// Tensor represents a multi-dimensional array of float64 values stored in
// row-major order.
type Tensor struct {
	Data         []float64
	Shape        []int
	Grad         *Tensor
	Creator      Operation
	RequiresGrad bool
}

// NewTensor creates a new Tensor with the given shape and optional data.
// A nil data slice is replaced by zeros.
func NewTensor(shape []int, data []float64, requiresGrad bool) *Tensor {
	if data == nil {
		data = make([]float64, numElements(shape))
	}
	return &Tensor{
		Data:         data,
		Shape:        shape,
		RequiresGrad: requiresGrad,
	}
}

// Zeros returns a constant tensor of the given shape filled with zeros.
func Zeros(shape ...int) *Tensor {
	return NewTensor(shape, nil, false)
}

func numElements(shape []int) int {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}

// Size returns the number of elements held by the tensor.
func (t *Tensor) Size() int {
	return len(t.Data)
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() (float64, error) {
	if len(t.Data) != 1 {
		return 0, fmt.Errorf("Item called on tensor with %d elements (shape %v)", len(t.Data), t.Shape)
	}
	return t.Data[0], nil
}

// Clone creates a deep copy of the tensor. The clone is a new leaf in the
// graph and carries no gradient.
func (t *Tensor) Clone() *Tensor {
	newData := make([]float64, len(t.Data))
	copy(newData, t.Data)
	newShape := make([]int, len(t.Shape))
	copy(newShape, t.Shape)

	return &Tensor{
		Data:         newData,
		Shape:        newShape,
		RequiresGrad: t.RequiresGrad,
	}
}

// Detach returns a constant copy of the tensor, cut from the graph.
func (t *Tensor) Detach() *Tensor {
	c := t.Clone()
	c.RequiresGrad = false
	return c
}

// ZeroGrad resets the gradient of the tensor to zeros.
func (t *Tensor) ZeroGrad() {
	if !t.RequiresGrad {
		return
	}
	if t.Grad == nil {
		t.Grad = NewTensor(t.Shape, nil, false)
		return
	}
	for i := range t.Grad.Data {
		t.Grad.Data[i] = 0
	}
}

// accumulateGrad adds data into t.Grad, allocating it on first use.
func accumulateGrad(t *Tensor, data []float64) {
	if !t.RequiresGrad {
		return
	}
	if t.Grad == nil {
		t.Grad = NewTensor(t.Shape, nil, false)
	}
	floats.Add(t.Grad.Data, data)
}

// compareShapes is a helper function to compare two shapes.
func compareShapes(s1, s2 []int) bool {
	if len(s1) != len(s2) {
		return false
	}
	for i := range s1 {
		if s1[i] != s2[i] {
			return false
		}
	}
	return true
}

// Add performs element-wise addition of two tensors of identical shape.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	if !compareShapes(t.Shape, other.Shape) {
		return nil, fmt.Errorf("mismatched shapes for Add operation: %v and %v", t.Shape, other.Shape)
	}

	resultData := make([]float64, len(t.Data))
	floats.AddTo(resultData, t.Data, other.Data)

	result := NewTensor(t.Shape, resultData, t.RequiresGrad || other.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &AddOperation{A: t, B: other}
	}
	return result, nil
}

// AddOperation represents the addition operation for backward pass.
type AddOperation struct {
	A *Tensor
	B *Tensor
}

func (op *AddOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *AddOperation) Backward(grad *Tensor) error {
	accumulateGrad(op.A, grad.Data)
	accumulateGrad(op.B, grad.Data)
	return nil
}

// Mul performs element-wise multiplication of two tensors of identical shape.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) {
	if !compareShapes(t.Shape, other.Shape) {
		return nil, fmt.Errorf("mismatched shapes for Mul operation: %v and %v", t.Shape, other.Shape)
	}

	resultData := make([]float64, len(t.Data))
	floats.MulTo(resultData, t.Data, other.Data)

	result := NewTensor(t.Shape, resultData, t.RequiresGrad || other.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &MulOperation{A: t, B: other}
	}
	return result, nil
}

// MulOperation represents element-wise multiplication for backward pass.
type MulOperation struct {
	A *Tensor
	B *Tensor
}

func (op *MulOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *MulOperation) Backward(grad *Tensor) error {
	scratch := make([]float64, len(grad.Data))
	if op.A.RequiresGrad {
		floats.MulTo(scratch, grad.Data, op.B.Data)
		accumulateGrad(op.A, scratch)
	}
	if op.B.RequiresGrad {
		floats.MulTo(scratch, grad.Data, op.A.Data)
		accumulateGrad(op.B, scratch)
	}
	return nil
}

// MatMul performs 2D matrix multiplication with another Tensor.
func (t *Tensor) MatMul(other *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 || len(other.Shape) != 2 {
		return nil, fmt.Errorf("MatMul expects 2D tensors, got %v and %v", t.Shape, other.Shape)
	}
	if t.Shape[1] != other.Shape[0] {
		return nil, fmt.Errorf("incompatible shapes for 2D matrix multiplication: %v and %v", t.Shape, other.Shape)
	}
	if t.Size() == 0 || other.Size() == 0 {
		return nil, fmt.Errorf("MatMul on empty tensor: %v and %v", t.Shape, other.Shape)
	}

	a := mat.NewDense(t.Shape[0], t.Shape[1], t.Data)
	b := mat.NewDense(other.Shape[0], other.Shape[1], other.Data)
	var out mat.Dense
	out.Mul(a, b)

	result := NewTensor([]int{t.Shape[0], other.Shape[1]}, denseData(&out), t.RequiresGrad || other.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &MatmulOperation{A: t, B: other}
	}
	return result, nil
}

// denseData copies the contents of d into a fresh row-major slice.
func denseData(d *mat.Dense) []float64 {
	r, c := d.Dims()
	raw := d.RawMatrix()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, raw.Data[i*raw.Stride:i*raw.Stride+c]...)
	}
	return data
}

// MatmulOperation represents the matrix multiplication for backward pass.
type MatmulOperation struct {
	A *Tensor
	B *Tensor
}

func (op *MatmulOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *MatmulOperation) Backward(grad *Tensor) error {
	rows, inner, cols := op.A.Shape[0], op.A.Shape[1], op.B.Shape[1]
	if len(grad.Data) != rows*cols {
		return fmt.Errorf("matmul backward: gradient shape %v does not match output [%d %d]", grad.Shape, rows, cols)
	}
	g := mat.NewDense(rows, cols, grad.Data)

	// dA = G * B^T
	if op.A.RequiresGrad {
		b := mat.NewDense(inner, cols, op.B.Data)
		var gradA mat.Dense
		gradA.Mul(g, b.T())
		accumulateGrad(op.A, denseData(&gradA))
	}
	// dB = A^T * G
	if op.B.RequiresGrad {
		a := mat.NewDense(rows, inner, op.A.Data)
		var gradB mat.Dense
		gradB.Mul(a.T(), g)
		accumulateGrad(op.B, denseData(&gradB))
	}
	return nil
}

// AddWithBroadcast adds a bias of shape [n] or [1, n] to every row of a
// tensor of shape [m, n].
func (t *Tensor) AddWithBroadcast(other *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("AddWithBroadcast expects a 2D tensor, got %v", t.Shape)
	}
	cols := t.Shape[1]
	if len(other.Data) != cols {
		return nil, fmt.Errorf("cannot broadcast shape %v onto %v", other.Shape, t.Shape)
	}

	resultData := make([]float64, len(t.Data))
	for i := 0; i < t.Shape[0]; i++ {
		floats.AddTo(resultData[i*cols:(i+1)*cols], t.Data[i*cols:(i+1)*cols], other.Data)
	}

	result := NewTensor(t.Shape, resultData, t.RequiresGrad || other.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &AddWithBroadcastOperation{Input: t, Bias: other}
	}
	return result, nil
}

// AddWithBroadcastOperation represents a row-broadcast addition.
type AddWithBroadcastOperation struct {
	Input *Tensor
	Bias  *Tensor
}

func (op *AddWithBroadcastOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input, op.Bias}
}

func (op *AddWithBroadcastOperation) Backward(grad *Tensor) error {
	accumulateGrad(op.Input, grad.Data)
	if op.Bias.RequiresGrad {
		cols := op.Input.Shape[1]
		summed := make([]float64, cols)
		for i := 0; i < op.Input.Shape[0]; i++ {
			floats.Add(summed, grad.Data[i*cols:(i+1)*cols])
		}
		accumulateGrad(op.Bias, summed)
	}
	return nil
}

// Tanh applies the hyperbolic tangent element-wise.
func (t *Tensor) Tanh() (*Tensor, error) {
	resultData := make([]float64, len(t.Data))
	for i, v := range t.Data {
		resultData[i] = math.Tanh(v)
	}
	result := NewTensor(t.Shape, resultData, t.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &TanhOperation{Input: t, Output: result}
	}
	return result, nil
}

// TanhOperation represents the tanh activation for backward pass.
type TanhOperation struct {
	Input  *Tensor
	Output *Tensor
}

func (op *TanhOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *TanhOperation) Backward(grad *Tensor) error {
	// tanh'(x) = 1 - tanh(x)^2
	local := make([]float64, len(grad.Data))
	for i, y := range op.Output.Data {
		local[i] = grad.Data[i] * (1 - y*y)
	}
	accumulateGrad(op.Input, local)
	return nil
}

// Sigmoid applies the logistic function element-wise.
func (t *Tensor) Sigmoid() (*Tensor, error) {
	resultData := make([]float64, len(t.Data))
	for i, v := range t.Data {
		resultData[i] = 1 / (1 + math.Exp(-v))
	}
	result := NewTensor(t.Shape, resultData, t.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &SigmoidOperation{Input: t, Output: result}
	}
	return result, nil
}

// SigmoidOperation represents the sigmoid activation for backward pass.
type SigmoidOperation struct {
	Input  *Tensor
	Output *Tensor
}

func (op *SigmoidOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *SigmoidOperation) Backward(grad *Tensor) error {
	// sigmoid'(x) = sigmoid(x) * (1 - sigmoid(x))
	local := make([]float64, len(grad.Data))
	for i, y := range op.Output.Data {
		local[i] = grad.Data[i] * y * (1 - y)
	}
	accumulateGrad(op.Input, local)
	return nil
}

// Concat concatenates a slice of tensors along a specified axis.
// All tensors must have the same shape except along the concatenation axis.
func Concat(tensors []*Tensor, axis int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("Concat requires at least one tensor")
	}
	first := tensors[0]
	if axis < 0 || axis >= len(first.Shape) {
		return nil, fmt.Errorf("axis %d out of bounds for tensor with shape %v", axis, first.Shape)
	}

	newShape := make([]int, len(first.Shape))
	copy(newShape, first.Shape)
	newShape[axis] = 0
	requiresGrad := false
	for _, t := range tensors {
		if !compareShapesExceptAxis(first.Shape, t.Shape, axis) {
			return nil, fmt.Errorf("mismatched shapes for concatenation along axis %d: %v and %v", axis, first.Shape, t.Shape)
		}
		newShape[axis] += t.Shape[axis]
		requiresGrad = requiresGrad || t.RequiresGrad
	}

	outer := numElements(first.Shape[:axis])
	newData := make([]float64, 0, numElements(newShape))
	for o := 0; o < outer; o++ {
		for _, t := range tensors {
			chunk := numElements(t.Shape[axis:])
			newData = append(newData, t.Data[o*chunk:(o+1)*chunk]...)
		}
	}

	result := NewTensor(newShape, newData, requiresGrad)
	if requiresGrad {
		result.Creator = &ConcatOperation{InputTensors: tensors, Axis: axis}
	}
	return result, nil
}

// ConcatOperation represents the concatenation operation for backward pass.
type ConcatOperation struct {
	InputTensors []*Tensor
	Axis         int
}

func (op *ConcatOperation) Inputs() []*Tensor {
	return op.InputTensors
}

func (op *ConcatOperation) Backward(grad *Tensor) error {
	outer := numElements(op.InputTensors[0].Shape[:op.Axis])
	grads := make([][]float64, len(op.InputTensors))
	for k, t := range op.InputTensors {
		grads[k] = make([]float64, 0, len(t.Data))
	}

	offset := 0
	for o := 0; o < outer; o++ {
		for k, t := range op.InputTensors {
			chunk := numElements(t.Shape[op.Axis:])
			grads[k] = append(grads[k], grad.Data[offset:offset+chunk]...)
			offset += chunk
		}
	}
	for k, t := range op.InputTensors {
		accumulateGrad(t, grads[k])
	}
	return nil
}

// compareShapesExceptAxis compares two shapes, ignoring a specific axis.
func compareShapesExceptAxis(s1, s2 []int, ignoredAxis int) bool {
	if len(s1) != len(s2) {
		return false
	}
	for i := range s1 {
		if i == ignoredAxis {
			continue
		}
		if s1[i] != s2[i] {
			return false
		}
	}
	return true
}

// Row returns row i of a 2D tensor as a tensor of shape [1, cols].
func (t *Tensor) Row(i int) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Row expects a 2D tensor, got %v", t.Shape)
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("row %d out of range for shape %v", i, t.Shape)
	}
	cols := t.Shape[1]
	rowData := make([]float64, cols)
	copy(rowData, t.Data[i*cols:(i+1)*cols])

	result := NewTensor([]int{1, cols}, rowData, t.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &RowOperation{Input: t, Index: i}
	}
	return result, nil
}

// RowOperation represents a row selection for backward pass.
type RowOperation struct {
	Input *Tensor
	Index int
}

func (op *RowOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *RowOperation) Backward(grad *Tensor) error {
	cols := op.Input.Shape[1]
	local := make([]float64, len(op.Input.Data))
	copy(local[op.Index*cols:(op.Index+1)*cols], grad.Data)
	accumulateGrad(op.Input, local)
	return nil
}

// Backward performs backpropagation starting from this tensor. A nil grad
// seeds the pass with ones, which is what a scalar loss wants.
func (t *Tensor) Backward(grad *Tensor) error {
	if !t.RequiresGrad {
		return ErrNoGrad
	}
	if grad == nil {
		ones := make([]float64, len(t.Data))
		for i := range ones {
			ones[i] = 1
		}
		grad = NewTensor(t.Shape, ones, false)
	}
	if len(grad.Data) != len(t.Data) {
		return fmt.Errorf("seed gradient shape %v does not match tensor shape %v", grad.Shape, t.Shape)
	}

	var topo []*Tensor
	visited := map[*Tensor]bool{}
	var visit func(v *Tensor)
	visit = func(v *Tensor) {
		if v == nil || visited[v] {
			return
		}
		visited[v] = true
		if v.Creator != nil {
			for _, child := range v.Creator.Inputs() {
				visit(child)
			}
		}
		topo = append(topo, v)
	}
	visit(t)

	accumulateGrad(t, grad.Data)

	// topo lists inputs before outputs; walk it backwards.
	for i := len(topo) - 1; i >= 0; i-- {
		v := topo[i]
		if v.Creator == nil || v.Grad == nil {
			continue
		}
		if err := v.Creator.Backward(v.Grad); err != nil {
			return fmt.Errorf("error during backward pass for tensor with shape %v: %w", v.Shape, err)
		}
	}
	return nil
}
