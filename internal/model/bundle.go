package model

import (
	"fmt"
	"sort"
)

// Bundle is the CUDS configuration bundle: three independent parameter maps
// (boundary conditions, system parameters, computational methods) plus the
// named state datasets a simulation starts from.
type Bundle struct {
	BC ParamMap
	SP ParamMap
	CM ParamMap
	SD map[string]Dataset
}

// NewBundle returns an empty bundle with all maps initialized.
func NewBundle() *Bundle {
	return &Bundle{
		BC: make(ParamMap),
		SP: make(ParamMap),
		CM: make(ParamMap),
		SD: make(map[string]Dataset),
	}
}

// AddDataset records a dataset under its name. Names are unique within the
// bundle; adding a duplicate fails and leaves the existing entry untouched.
func (b *Bundle) AddDataset(d Dataset) error {
	if d == nil {
		return fmt.Errorf("%w: nil dataset", ErrUnsupportedDatasetType)
	}
	switch d.Kind() {
	case KindLattice, KindMesh, KindParticles:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDatasetType, d.Kind())
	}
	name := d.DatasetName()
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrUnsupportedDatasetType)
	}
	if b.SD == nil {
		b.SD = make(map[string]Dataset)
	}
	if _, exists := b.SD[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDatasetName, name)
	}
	b.SD[name] = d
	return nil
}

// Names returns the dataset names in the bundle, sorted.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.SD))
	for name := range b.SD {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dataset returns the dataset stored under name.
func (b *Bundle) Dataset(name string) (Dataset, error) {
	d, ok := b.SD[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDatasetNotFound, name)
	}
	return d, nil
}
