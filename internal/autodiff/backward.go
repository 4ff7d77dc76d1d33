package autodiff

import (
	"time"

	"github.com/pkg/errors"
)

// Backprop computes the derivative of t with respect to each target and
// stores it as that target's gradient (see Tensor.Grad). Any previous
// gradient of a target is discarded first.
//
// With squeeze set, unit-length axes are removed from each stored gradient,
// so the gradient of a [1]-shaped t has the target's shape (minus its unit
// axes). Without squeeze the stored shape is concat(t.shape, target.shape).
//
// All targets share one Engine, so local Jacobians are computed once per
// node for the whole call. The forward graph is not modified.
func (t Tensor[T]) Backprop(squeeze bool, targets ...Tensor[T]) error {
	g := t.graph()
	if _, err := g.lookup(t); err != nil {
		return err
	}

	engine := NewEngine(g)
	for _, target := range targets {
		tn, err := g.lookup(target)
		if err != nil {
			return errors.WithMessagef(err, "backprop target %d", target.id)
		}
		tn.grad = nil

		start := time.Now()
		grad, err := engine.Grad(t, target)
		if err != nil {
			return err
		}
		if squeeze {
			grad = grad.Squeeze()
		}
		tn.grad = grad

		g.logger.Debug("backprop", "node", t.id, "target", target.id, "shape", grad.Shape(),
			"nonzero", grad.NumNonZero(), "duration", time.Since(start))
	}
	return nil
}

// ZeroGrad discards the stored gradient of t.
func (t Tensor[T]) ZeroGrad() {
	t.node().grad = nil
}
