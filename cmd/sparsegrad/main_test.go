package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sparsegrad/internal/autodiff"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sparsegrad "+version+"\n", out)
}

func TestDemo(t *testing.T) {
	out, err := run(t, "demo", "--stats")
	require.NoError(t, err)

	assert.Contains(t, out, "Derivative of loss wrt.:")
	for _, name := range demoNames {
		assert.Contains(t, out, name+":")
	}
	assert.Contains(t, out, "NON-ZERO")
	assert.Contains(t, out, "[2 3 4]")
}

func TestDemo_NoSqueeze(t *testing.T) {
	t.Setenv("SPARSEGRAD_SQUEEZE", "false")
	out, err := run(t, "demo", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "[1 2 3 4]")
}

func TestCheck(t *testing.T) {
	out, err := run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "weight")
	assert.NotContains(t, out, "MISMATCH")
}

func TestDemoLoss_Gradients(t *testing.T) {
	inputs, err := demoInputs()
	require.NoError(t, err)

	g := autodiff.NewGraph[float64]()
	leaves := make([]autodiff.Tensor[float64], len(inputs))
	for i, in := range inputs {
		leaves[i] = g.Leaf(in)
	}
	loss := demoLoss(g, leaves)
	require.NoError(t, loss.Backprop(true, leaves...))

	// d/da of sum(2(a*a + b - 1) + a) + sum(a) is 4a + 2.
	a := inputs[0]
	grad := leaves[0].Grad()
	require.Equal(t, a.Shape(), grad.Shape())
	for i, v := range a.Data() {
		assert.InDelta(t, 4*v+2, grad.Data()[i], 1e-9)
	}

	// d/db of sum(2b + b*b - sum(b)) over 24 elements is 2 + 2b - 24.
	b := inputs[1]
	for i, v := range b.Data() {
		assert.InDelta(t, 2+2*v-24, leaves[1].Grad().Data()[i], 1e-9)
	}

	// bias enters through -sum(hidden) and -3*sum(bias) in -sum(outC).
	assert.Equal(t, []int{3, 3}, []int(leaves[3].Grad().Shape()))
}
