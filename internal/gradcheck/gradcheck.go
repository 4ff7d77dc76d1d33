// Package gradcheck verifies engine gradients against central finite
// differences.
//
// The expression under test is rebuilt on a fresh graph for every function
// evaluation, so the check exercises the full forward path as well as the
// backward one.
package gradcheck

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/born-ml/sparsegrad/internal/autodiff"
	"github.com/born-ml/sparsegrad/internal/parallel"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// Func builds a single-element expression from the given leaf tensors.
type Func func(g *autodiff.Graph[float64], inputs []autodiff.Tensor[float64]) autodiff.Tensor[float64]

// Result compares the analytic and numeric gradients of one input.
type Result struct {
	Input      int
	Analytic   []float64
	Numeric    []float64
	MaxAbsDiff float64
	OK         bool
}

// String summarizes the comparison.
func (r Result) String() string {
	status := "ok"
	if !r.OK {
		status = "MISMATCH"
	}
	return fmt.Sprintf("input %d: %s (max |diff| %.3g)", r.Input, status, r.MaxAbsDiff)
}

// Option configures Check.
type Option func(*config)

type config struct {
	step     float64
	absTol   float64
	relTol   float64
	logger   *slog.Logger
	parallel parallel.Config
}

// WithStep sets the finite-difference step (default 1e-6).
func WithStep(h float64) Option {
	return func(c *config) { c.step = h }
}

// WithTolerance sets the absolute and relative tolerance (default 1e-6, 1e-4).
func WithTolerance(abs, rel float64) Option {
	return func(c *config) {
		c.absTol = abs
		c.relTol = rel
	}
}

// WithLogger sets the logger handed to the graphs built during the check.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithParallel sets how many inputs are differentiated numerically at once.
func WithParallel(cfg parallel.Config) Option {
	return func(c *config) { c.parallel = cfg }
}

// Check differentiates f at inputs with the engine and with central finite
// differences, and compares the two per input. Inputs are differentiated
// numerically in parallel on separate graphs, so f must be safe to call
// concurrently.
func Check(f Func, inputs []*tensor.Dense[float64], opts ...Option) ([]Result, error) {
	c := config{
		step:     1e-6,
		absTol:   1e-6,
		relTol:   1e-4,
		logger:   slog.Default(),
		parallel: parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&c)
	}

	analytic, err := c.analytic(f, inputs)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(inputs))
	err = parallel.For(len(inputs), c.parallel, func(i int) error {
		numeric, err := c.numeric(f, inputs, i)
		if err != nil {
			return err
		}

		r := Result{Input: i, Analytic: analytic[i], Numeric: numeric, OK: true}
		for j := range numeric {
			r.MaxAbsDiff = math.Max(r.MaxAbsDiff, math.Abs(numeric[j]-r.Analytic[j]))
			if !scalar.EqualWithinAbsOrRel(numeric[j], r.Analytic[j], c.absTol, c.relTol) {
				r.OK = false
			}
		}
		results[i] = r

		c.logger.Debug("gradcheck", "input", i, "shape", inputs[i].Shape(), "ok", r.OK, "max_abs_diff", r.MaxAbsDiff)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// analytic returns the engine gradient of f for each input, flattened.
func (c *config) analytic(f Func, inputs []*tensor.Dense[float64]) ([][]float64, error) {
	g := autodiff.NewGraph[float64](autodiff.WithLogger(c.logger))
	leaves := make([]autodiff.Tensor[float64], len(inputs))
	for i, in := range inputs {
		leaves[i] = g.Leaf(in)
	}

	out, err := evaluate(f, g, leaves)
	if err != nil {
		return nil, err
	}
	if err := out.Backprop(true, leaves...); err != nil {
		return nil, err
	}

	grads := make([][]float64, len(inputs))
	for i, leaf := range leaves {
		grad := leaf.Grad()
		n := inputs[i].NumElements()
		if grad.NumElements() != n {
			// No path from the output to this input.
			grads[i] = make([]float64, n)
			continue
		}
		grads[i] = append([]float64(nil), grad.Data()...)
	}
	return grads, nil
}

// numeric returns the central-difference gradient of f with respect to
// inputs[which], the other inputs held fixed.
func (c *config) numeric(f Func, inputs []*tensor.Dense[float64], which int) ([]float64, error) {
	var evalErr error
	fn := func(x []float64) float64 {
		g := autodiff.NewGraph[float64](autodiff.WithLogger(c.logger))
		leaves := make([]autodiff.Tensor[float64], len(inputs))
		for i, in := range inputs {
			if i != which {
				leaves[i] = g.Leaf(in)
				continue
			}
			leaf, err := g.FromSlice(x, in.Shape())
			if err != nil {
				evalErr = err
				return math.NaN()
			}
			leaves[i] = leaf
		}

		out, err := evaluate(f, g, leaves)
		if err != nil {
			evalErr = err
			return math.NaN()
		}
		return out.Item()
	}

	x := append([]float64(nil), inputs[which].Data()...)
	grad := fd.Gradient(nil, fn, x, &fd.Settings{Formula: fd.Central, Step: c.step})
	if evalErr != nil {
		return nil, evalErr
	}
	return grad, nil
}

// evaluate runs f, turning operator panics into errors.
func evaluate(f Func, g *autodiff.Graph[float64], leaves []autodiff.Tensor[float64]) (out autodiff.Tensor[float64], err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			err = errors.WithMessage(e, "evaluating expression")
		}
	}()

	out = f(g, leaves)
	if out.Value().NumElements() != 1 {
		return out, errors.Wrapf(tensor.ErrNotScalar, "expression has shape %v", out.Shape())
	}
	return out, nil
}
