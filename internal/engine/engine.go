package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/simlab/simnet/internal/model"
)

// ModelingEngine is the capability contract every pluggable simulation
// engine must implement. The wrapper registry drives engines exclusively
// through this interface; the client-side proxy is just another implementer.
type ModelingEngine interface {
	// SetBC assigns the boundary conditions.
	SetBC(model.ParamMap) error
	// SetSP assigns the system parameters.
	SetSP(model.ParamMap) error
	// SetCM assigns the computational methods.
	SetCM(model.ParamMap) error

	BC() model.ParamMap
	SP() model.ParamMap
	CM() model.ParamMap

	// AddDataset hands a state dataset to the engine. The engine owns the
	// dataset afterwards. Duplicate names and unknown kinds are rejected.
	AddDataset(model.Dataset) error
	// RemoveDataset removes a dataset by name.
	RemoveDataset(name string) error
	// Dataset returns a dataset by name.
	Dataset(name string) (model.Dataset, error)
	// DatasetNames returns the names of all held datasets, sorted.
	DatasetNames() []string

	// Run executes the simulation to completion or returns the failure.
	// It blocks; callers wanting asynchrony schedule it themselves.
	Run(ctx context.Context) error
}

// PartialResultProvider is an optional extension: engines whose datasets may
// be fetched while a run is still in progress report true.
type PartialResultProvider interface {
	PartialResults() bool
}

// Factory produces a fresh engine instance.
type Factory func() ModelingEngine

// Base provides the configuration and dataset bookkeeping shared by the
// built-in engines. Embedders get the full capability set except Run.
type Base struct {
	mu       sync.RWMutex
	bc       model.ParamMap
	sp       model.ParamMap
	cm       model.ParamMap
	datasets map[string]model.Dataset
}

// NewBase returns an initialized Base.
func NewBase() Base {
	return Base{
		bc:       make(model.ParamMap),
		sp:       make(model.ParamMap),
		cm:       make(model.ParamMap),
		datasets: make(map[string]model.Dataset),
	}
}

func (b *Base) SetBC(p model.ParamMap) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bc = p.Clone()
	return nil
}

func (b *Base) SetSP(p model.ParamMap) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sp = p.Clone()
	return nil
}

func (b *Base) SetCM(p model.ParamMap) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cm = p.Clone()
	return nil
}

func (b *Base) BC() model.ParamMap {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bc.Clone()
}

func (b *Base) SP() model.ParamMap {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sp.Clone()
}

func (b *Base) CM() model.ParamMap {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cm.Clone()
}

// AddDataset stores a dataset, rejecting unknown kinds and duplicate names.
func (b *Base) AddDataset(d model.Dataset) error {
	if d == nil {
		return fmt.Errorf("%w: nil dataset", model.ErrUnsupportedDatasetType)
	}
	switch d.Kind() {
	case model.KindLattice, model.KindMesh, model.KindParticles:
	default:
		return fmt.Errorf("%w: %q", model.ErrUnsupportedDatasetType, d.Kind())
	}
	name := d.DatasetName()
	if name == "" {
		return fmt.Errorf("%w: empty name", model.ErrUnsupportedDatasetType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.datasets == nil {
		b.datasets = make(map[string]model.Dataset)
	}
	if _, exists := b.datasets[name]; exists {
		return fmt.Errorf("%w: %q", model.ErrDuplicateDatasetName, name)
	}
	b.datasets[name] = d
	return nil
}

func (b *Base) RemoveDataset(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.datasets[name]; !exists {
		return fmt.Errorf("%w: %q", model.ErrDatasetNotFound, name)
	}
	delete(b.datasets, name)
	return nil
}

func (b *Base) Dataset(name string) (model.Dataset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, exists := b.datasets[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", model.ErrDatasetNotFound, name)
	}
	return d, nil
}

func (b *Base) DatasetNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.datasets))
	for name := range b.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
