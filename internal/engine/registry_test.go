package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/simlab/simnet/internal/engine"
	"github.com/simlab/simnet/internal/model"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := engine.NewRegistry()
	if err := reg.Register("StubEngine", func() engine.ModelingEngine { return engine.NewEcho() }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	f, err := reg.Lookup("StubEngine")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if f() == nil {
		t.Fatal("factory produced nil engine")
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	reg := engine.NewRegistry()
	_, err := reg.Lookup("Unregistered")
	if !errors.Is(err, model.ErrUnknownEngineType) {
		t.Fatalf("Lookup: got %v, want ErrUnknownEngineType", err)
	}
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	reg := engine.NewRegistry()

	if err := reg.Register("", func() engine.ModelingEngine { return engine.NewEcho() }); err == nil {
		t.Error("empty name accepted")
	}
	if err := reg.Register("NilFactory", nil); err == nil {
		t.Error("nil factory accepted")
	}
	if err := reg.Register("NilProduct", func() engine.ModelingEngine { return nil }); err == nil {
		t.Error("nil-producing factory accepted")
	}

	if err := reg.Register("Dup", func() engine.ModelingEngine { return engine.NewEcho() }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("Dup", func() engine.ModelingEngine { return engine.NewEcho() }); err == nil {
		t.Error("duplicate registration accepted")
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := engine.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	names := reg.Names()
	want := []string{engine.TypeDiffusion, engine.TypeEcho}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestEchoRunDelayAndFailure(t *testing.T) {
	e := engine.NewEcho()
	if err := e.SetCM(model.ParamMap{"delay_ms": 5}); err != nil {
		t.Fatalf("SetCM: %v", err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	e2 := engine.NewEcho()
	if err := e2.SetCM(model.ParamMap{"fail": true}); err != nil {
		t.Fatalf("SetCM: %v", err)
	}
	if err := e2.Run(context.Background()); err == nil {
		t.Fatal("Run with fail=true succeeded")
	}
}

func TestEchoRunCancellation(t *testing.T) {
	e := engine.NewEcho()
	if err := e.SetCM(model.ParamMap{"delay_ms": 5000}); err != nil {
		t.Fatalf("SetCM: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got %v, want context.Canceled", err)
	}
}

func TestBaseDatasetBookkeeping(t *testing.T) {
	e := engine.NewEcho()
	lat := model.NewCubicLattice("latA", 1.0, [3]int{2, 2, 2})

	if err := e.AddDataset(lat); err != nil {
		t.Fatalf("AddDataset: %v", err)
	}
	if err := e.AddDataset(model.NewCubicLattice("latA", 2.0, [3]int{1, 1, 1})); !errors.Is(err, model.ErrDuplicateDatasetName) {
		t.Errorf("duplicate AddDataset: got %v", err)
	}

	got, err := e.Dataset("latA")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if got.(*model.Lattice).Spacing != 1.0 {
		t.Error("duplicate add replaced the stored dataset")
	}

	if err := e.RemoveDataset("latA"); err != nil {
		t.Fatalf("RemoveDataset: %v", err)
	}
	if _, err := e.Dataset("latA"); !errors.Is(err, model.ErrDatasetNotFound) {
		t.Errorf("Dataset after remove: got %v", err)
	}
	if err := e.RemoveDataset("latA"); !errors.Is(err, model.ErrDatasetNotFound) {
		t.Errorf("RemoveDataset twice: got %v", err)
	}
}

func TestDiffusionSmoothsField(t *testing.T) {
	d := engine.NewDiffusion()
	lat := model.NewCubicLattice("latA", 1.0, [3]int{5, 1, 1})
	field, err := model.NewFloat64s([]int{5}, []float64{0, 0, 10, 0, 0})
	if err != nil {
		t.Fatalf("NewFloat64s: %v", err)
	}
	lat.Node["temperature"] = field
	if err := d.AddDataset(lat); err != nil {
		t.Fatalf("AddDataset: %v", err)
	}
	if err := d.SetCM(model.ParamMap{"steps": 5}); err != nil {
		t.Fatalf("SetCM: %v", err)
	}

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ds, err := d.Dataset("latA")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	got := ds.(*model.Lattice).Node["temperature"].F64
	if got[2] >= 10 {
		t.Errorf("peak did not relax: %v", got)
	}
	if got[1] <= 0 || got[3] <= 0 {
		t.Errorf("heat did not spread to neighbours: %v", got)
	}

	var p engine.PartialResultProvider = d
	if !p.PartialResults() {
		t.Error("diffusion engine should expose partial results")
	}
}

func TestDiffusionRequiresDatasets(t *testing.T) {
	d := engine.NewDiffusion()
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("Run with no datasets succeeded")
	}
}
