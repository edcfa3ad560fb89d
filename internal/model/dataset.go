package model

// Dataset kind tags, used by the wire codec to select the concrete type.
const (
	KindLattice   = "lattice"
	KindMesh      = "mesh"
	KindParticles = "particles"
)

// Dataset is a named state-data container handed to an engine. The set of
// kinds is closed: Lattice, Mesh and Particles are the only implementations.
type Dataset interface {
	// DatasetName returns the name identifying the container within a bundle.
	DatasetName() string
	// Kind returns the container's kind tag.
	Kind() string
}

// Lattice is a regular grid of nodes with per-node payload fields.
type Lattice struct {
	Name    string              `msgpack:"name"`
	Spacing float64             `msgpack:"spacing"`
	Size    [3]int              `msgpack:"size"`
	Node    map[string]*NDArray `msgpack:"node"`
}

func (l *Lattice) DatasetName() string { return l.Name }
func (l *Lattice) Kind() string        { return KindLattice }

// NewCubicLattice builds a lattice with the given spacing and size and no
// node payload fields.
func NewCubicLattice(name string, spacing float64, size [3]int) *Lattice {
	return &Lattice{
		Name:    name,
		Spacing: spacing,
		Size:    size,
		Node:    make(map[string]*NDArray),
	}
}

// Mesh is an unstructured mesh: points, cell connectivity and per-point
// payload fields.
type Mesh struct {
	Name      string              `msgpack:"name"`
	Points    *NDArray            `msgpack:"points"`
	Cells     *NDArray            `msgpack:"cells"`
	PointData map[string]*NDArray `msgpack:"point_data"`
}

func (m *Mesh) DatasetName() string { return m.Name }
func (m *Mesh) Kind() string        { return KindMesh }

// Particles is a particle container: positions, velocities and per-particle
// payload fields.
type Particles struct {
	Name       string              `msgpack:"name"`
	Positions  *NDArray            `msgpack:"positions"`
	Velocities *NDArray            `msgpack:"velocities"`
	Data       map[string]*NDArray `msgpack:"data"`
}

func (p *Particles) DatasetName() string { return p.Name }
func (p *Particles) Kind() string        { return KindParticles }
