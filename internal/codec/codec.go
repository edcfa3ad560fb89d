// Package codec serializes configuration bundles and dataset containers for
// transfer across the process boundary. Envelopes are versioned and carry an
// explicit kind tag per dataset, so the receiving side never has to guess at
// an opaque blob's type.
package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/simlab/simnet/internal/model"
)

// Version is the current envelope version. Decoding rejects any other value.
const Version = 1

// datasetEnvelope wraps an encoded dataset with its kind tag.
type datasetEnvelope struct {
	Version int                `msgpack:"v"`
	Kind    string             `msgpack:"kind"`
	Body    msgpack.RawMessage `msgpack:"body"`
}

// bundleEnvelope is the wire form of a CUDS bundle. SD values are encoded
// dataset envelopes.
type bundleEnvelope struct {
	Version int               `msgpack:"v"`
	BC      map[string]any    `msgpack:"bc"`
	SP      map[string]any    `msgpack:"sp"`
	CM      map[string]any    `msgpack:"cm"`
	SD      map[string][]byte `msgpack:"sd"`
}

// EncodeDataset serializes a dataset container into a tagged envelope.
func EncodeDataset(d model.Dataset) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil dataset", model.ErrSerialization)
	}
	body, err := msgpack.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s body: %v", model.ErrSerialization, d.Kind(), err)
	}
	out, err := msgpack.Marshal(datasetEnvelope{Version: Version, Kind: d.Kind(), Body: body})
	if err != nil {
		return nil, fmt.Errorf("%w: encode envelope: %v", model.ErrSerialization, err)
	}
	return out, nil
}

// DecodeDataset parses a tagged envelope back into a concrete dataset.
func DecodeDataset(data []byte) (model.Dataset, error) {
	var env datasetEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", model.ErrSerialization, err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", model.ErrSerialization, env.Version)
	}

	var d model.Dataset
	switch env.Kind {
	case model.KindLattice:
		d = &model.Lattice{}
	case model.KindMesh:
		d = &model.Mesh{}
	case model.KindParticles:
		d = &model.Particles{}
	default:
		return nil, fmt.Errorf("%w: unknown dataset kind %q", model.ErrSerialization, env.Kind)
	}
	if err := msgpack.Unmarshal(env.Body, d); err != nil {
		return nil, fmt.Errorf("%w: decode %s body: %v", model.ErrSerialization, env.Kind, err)
	}
	return d, nil
}

// EncodeBundle serializes a full CUDS bundle.
func EncodeBundle(b *model.Bundle) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil bundle", model.ErrSerialization)
	}
	env := bundleEnvelope{
		Version: Version,
		BC:      b.BC,
		SP:      b.SP,
		CM:      b.CM,
		SD:      make(map[string][]byte, len(b.SD)),
	}
	for name, d := range b.SD {
		blob, err := EncodeDataset(d)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
		env.SD[name] = blob
	}
	out, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: encode bundle: %v", model.ErrSerialization, err)
	}
	return out, nil
}

// DecodeBundle parses a serialized CUDS bundle.
func DecodeBundle(data []byte) (*model.Bundle, error) {
	var env bundleEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode bundle: %v", model.ErrSerialization, err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", model.ErrSerialization, env.Version)
	}

	b := model.NewBundle()
	if env.BC != nil {
		b.BC = model.ParamMap(env.BC)
	}
	if env.SP != nil {
		b.SP = model.ParamMap(env.SP)
	}
	if env.CM != nil {
		b.CM = model.ParamMap(env.CM)
	}
	for name, blob := range env.SD {
		d, err := DecodeDataset(blob)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
		b.SD[name] = d
	}
	return b, nil
}

// EncodeEvent serializes a notification payload map.
func EncodeEvent(payload map[string]any) ([]byte, error) {
	out, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode event: %v", model.ErrSerialization, err)
	}
	return out, nil
}

// DecodeEvent parses a notification payload map.
func DecodeEvent(data []byte) (map[string]any, error) {
	var payload map[string]any
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode event: %v", model.ErrSerialization, err)
	}
	return payload, nil
}
