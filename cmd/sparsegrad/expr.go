package main

import (
	"github.com/born-ml/sparsegrad/internal/autodiff"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// demoNames labels the inputs returned by demoInputs.
var demoNames = []string{"input_a", "input_b", "weight", "bias"}

// demoInputs returns the leaf values of the demo expression.
func demoInputs() ([]*tensor.Dense[float64], error) {
	a, err := tensor.FromSlice([]float64{
		1, 2.5, 3, 4,
		4, 5, 6, 9,
		7, 8, 9, -1,

		9, -1, 3, 1,
		1, 1, 0, 3.9,
		9, 9, 9, 0,
	}, tensor.Shape{2, 3, 4})
	if err != nil {
		return nil, err
	}

	b, err := tensor.FromNested[float64]([][][]float64{
		{
			{3, 7, -3, -2},
			{-7, -5, 1, 0},
			{2, 0, 0, -9},
		},
		{
			{2, -5, 51, 23},
			{1, 0, 0, -12},
			{-1, -2, -3, 0},
		},
	})
	if err != nil {
		return nil, err
	}

	weight, err := tensor.FromNested[float64]([][]float64{
		{0.1, 0.2, 0.3, 0.4, -0.5},
		{0.7, -0.9, -0.2, -0.11, 0.32},
		{0.12, 0.24, 0.432, 0.45, 0.34},
	})
	if err != nil {
		return nil, err
	}

	bias, err := tensor.FromNested[float64]([][]float64{
		{-2, 12, 3},
		{-7, -8, 0},
		{0, 3, -1},
	})
	if err != nil {
		return nil, err
	}

	return []*tensor.Dense[float64]{a, b, weight, bias}, nil
}

// demoC is a constant operand of the demo expression.
var demoC = [][]float64{
	{12, -8, 6},
	{-7, 98, 8},
	{1, 4, -2},
	{4, -4, 1},
	{12, -9, -8},
}

// demoLoss builds the scalar demo loss from the leaves named by demoNames.
func demoLoss(g *autodiff.Graph[float64], in []autodiff.Tensor[float64]) autodiff.Tensor[float64] {
	a, b, weight, bias := in[0], in[1], in[2], in[3]

	c, err := g.FromNested(demoC)
	if err != nil {
		panic(err)
	}

	outA := a.Mul(a).Add(b).SubScalar(1)
	outB := outA.MulScalar(2).AddScalar(6).Add(a).Add(b.Mul(b)).Sub(b.Sum())

	expW := weight.ExpBase(2)
	hidden := weight.MatMul(c).Pow(2).Add(bias).MatMul(expW)
	outC := weight.Mul(weight).Log().
		Add(hidden).
		Sub(weight.Sum()).
		Add(bias.Sum().MulScalar(3)).
		SubScalar(4)

	return outB.Sum().Add(a.Sum()).Sub(outC.Sum()).Add(expW.Sum())
}
