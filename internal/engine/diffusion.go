package engine

import (
	"context"
	"fmt"

	"github.com/simlab/simnet/internal/model"
)

// TypeDiffusion is the registry name of the diffusion engine.
const TypeDiffusion = "DiffusionEngine"

const (
	defaultDiffusionSteps = 10
	defaultDiffusionAlpha = 0.25
)

// Diffusion is a toy finite-difference engine: it relaxes every float64
// node field of every lattice dataset toward its neighbour average.
// Configuration:
//
//	CM steps  number of relaxation sweeps (default 10)
//	SP alpha  relaxation factor in (0, 1] (default 0.25)
//
// Datasets can be fetched mid-run; intermediate fields are meaningful.
type Diffusion struct {
	Base
}

// NewDiffusion creates a diffusion engine.
func NewDiffusion() *Diffusion {
	return &Diffusion{Base: NewBase()}
}

// PartialResults reports that intermediate datasets are valid.
func (d *Diffusion) PartialResults() bool { return true }

// Run performs the relaxation sweeps, checking for cancellation between
// sweeps.
func (d *Diffusion) Run(ctx context.Context) error {
	steps := defaultDiffusionSteps
	if v, ok := d.CM().Int("steps"); ok && v > 0 {
		steps = v
	}
	alpha := defaultDiffusionAlpha
	if v, ok := d.SP().Float("alpha"); ok && v > 0 && v <= 1 {
		alpha = v
	}

	names := d.DatasetNames()
	if len(names) == 0 {
		return fmt.Errorf("diffusion engine: no datasets to relax")
	}

	for step := 0; step < steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for _, name := range names {
			d.sweep(name, alpha)
		}
	}
	return nil
}

// sweep applies one relaxation pass to the named dataset if it is a lattice.
// The relaxed lattice is built as a fresh value and swapped in under the
// base lock, so readers that already fetched the old pointer keep an
// immutable snapshot.
func (d *Diffusion) sweep(name string, alpha float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lat, ok := d.datasets[name].(*model.Lattice)
	if !ok {
		return
	}

	next := &model.Lattice{
		Name:    lat.Name,
		Spacing: lat.Spacing,
		Size:    lat.Size,
		Node:    make(map[string]*model.NDArray, len(lat.Node)),
	}
	for key, field := range lat.Node {
		if field.DType != model.DTypeFloat64 || len(field.F64) < 3 {
			next.Node[key] = field
			continue
		}
		relaxed := field.Clone()
		for i := 1; i < len(field.F64)-1; i++ {
			avg := (field.F64[i-1] + field.F64[i+1]) / 2
			relaxed.F64[i] = field.F64[i] + alpha*(avg-field.F64[i])
		}
		next.Node[key] = relaxed
	}
	d.datasets[name] = next
}
