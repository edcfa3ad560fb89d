package model_test

import (
	"errors"
	"testing"

	"github.com/simlab/simnet/internal/model"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{model.StateInit, model.StateRunning, true},
		{model.StateRunning, model.StateDone, true},
		{model.StateRunning, model.StateFailed, true},
		{model.StateRunning, model.StateCancelled, true},
		{model.StateInit, model.StateDone, false},
		{model.StateDone, model.StateRunning, false},
		{model.StateFailed, model.StateDone, false},
		{model.StateCancelled, model.StateRunning, false},
		{"bogus", model.StateRunning, false},
	}

	for _, tt := range tests {
		if got := model.ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []string{model.StateDone, model.StateFailed, model.StateCancelled} {
		if !model.Terminal(s) {
			t.Errorf("Terminal(%q) = false, want true", s)
		}
	}
	for _, s := range []string{model.StateInit, model.StateRunning, "bogus"} {
		if model.Terminal(s) {
			t.Errorf("Terminal(%q) = true, want false", s)
		}
	}
}

func TestStateRankOrdering(t *testing.T) {
	if model.StateRank(model.StateInit) >= model.StateRank(model.StateRunning) {
		t.Error("init should rank below running")
	}
	if model.StateRank(model.StateRunning) >= model.StateRank(model.StateDone) {
		t.Error("running should rank below done")
	}
	if model.StateRank(model.StateDone) != model.StateRank(model.StateFailed) {
		t.Error("terminal states should share a rank")
	}
	if model.StateRank("bogus") != -1 {
		t.Error("unknown state should rank -1")
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100000; i++ {
		id := model.NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s after %d generations", id, i)
		}
		seen[id] = true
	}
}

func TestBundleAddDatasetDuplicate(t *testing.T) {
	b := model.NewBundle()
	first := model.NewCubicLattice("latA", 1.0, [3]int{2, 2, 2})
	if err := b.AddDataset(first); err != nil {
		t.Fatalf("AddDataset: %v", err)
	}

	dup := model.NewCubicLattice("latA", 9.0, [3]int{5, 5, 5})
	err := b.AddDataset(dup)
	if !errors.Is(err, model.ErrDuplicateDatasetName) {
		t.Fatalf("AddDataset duplicate: got %v, want ErrDuplicateDatasetName", err)
	}

	got, err := b.Dataset("latA")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if got.(*model.Lattice).Spacing != 1.0 {
		t.Error("duplicate add replaced the existing dataset")
	}
}

func TestBundleAddDatasetUnsupported(t *testing.T) {
	b := model.NewBundle()
	if err := b.AddDataset(nil); !errors.Is(err, model.ErrUnsupportedDatasetType) {
		t.Errorf("AddDataset(nil): got %v, want ErrUnsupportedDatasetType", err)
	}
	if err := b.AddDataset(&model.Lattice{}); !errors.Is(err, model.ErrUnsupportedDatasetType) {
		t.Errorf("AddDataset(unnamed): got %v, want ErrUnsupportedDatasetType", err)
	}
}

func TestBundleDatasetNotFound(t *testing.T) {
	b := model.NewBundle()
	if _, err := b.Dataset("nope"); !errors.Is(err, model.ErrDatasetNotFound) {
		t.Errorf("Dataset: got %v, want ErrDatasetNotFound", err)
	}
}

func TestNDArrayValidate(t *testing.T) {
	if _, err := model.NewFloat64s([]int{2, 3}, make([]float64, 6)); err != nil {
		t.Errorf("valid float64 array rejected: %v", err)
	}
	if _, err := model.NewFloat64s([]int{2, 3}, make([]float64, 5)); err == nil {
		t.Error("shape/data mismatch accepted")
	}
	bad := &model.NDArray{DType: "complex128", Shape: []int{1}}
	if err := bad.Validate(); err == nil {
		t.Error("unknown dtype accepted")
	}
}

func TestNDArrayEqual(t *testing.T) {
	a, _ := model.NewFloat64s([]int{2, 2}, []float64{1, 2, 3, 4})
	b, _ := model.NewFloat64s([]int{2, 2}, []float64{1, 2, 3, 4})
	c, _ := model.NewFloat64s([]int{4}, []float64{1, 2, 3, 4})
	d, _ := model.NewFloat64s([]int{2, 2}, []float64{1, 2, 3, 5})

	if !a.Equal(b) {
		t.Error("identical arrays reported unequal")
	}
	if a.Equal(c) {
		t.Error("different shapes reported equal")
	}
	if a.Equal(d) {
		t.Error("different data reported equal")
	}

	clone := a.Clone()
	clone.F64[0] = 99
	if a.F64[0] == 99 {
		t.Error("Clone shares backing storage")
	}
}

func TestParamMapCoercion(t *testing.T) {
	p := model.ParamMap{
		"steps": int8(7),
		"alpha": float32(0.5),
		"fail":  true,
	}
	if v, ok := p.Int("steps"); !ok || v != 7 {
		t.Errorf("Int(steps) = %d, %v", v, ok)
	}
	if v, ok := p.Float("alpha"); !ok || v != 0.5 {
		t.Errorf("Float(alpha) = %f, %v", v, ok)
	}
	if v, ok := p.Bool("fail"); !ok || !v {
		t.Errorf("Bool(fail) = %v, %v", v, ok)
	}
	if _, ok := p.Int("missing"); ok {
		t.Error("Int(missing) reported ok")
	}
}

func TestErrorCodeRoundTrip(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), model.ErrWrapperNotFound)
	code := model.ErrorCode(wrapped)
	if code != "wrapper_not_found" {
		t.Fatalf("ErrorCode = %q", code)
	}
	if model.ErrorFromCode(code) != model.ErrWrapperNotFound {
		t.Error("ErrorFromCode did not return the sentinel")
	}
	if model.ErrorCode(errors.New("plain")) != "" {
		t.Error("non-domain error produced a code")
	}
	if model.ErrorFromCode("bogus") != nil {
		t.Error("unknown code produced an error")
	}
}
