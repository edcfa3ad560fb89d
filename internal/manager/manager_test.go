package manager_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/simlab/simnet/internal/codec"
	"github.com/simlab/simnet/internal/engine"
	"github.com/simlab/simnet/internal/manager"
	"github.com/simlab/simnet/internal/model"
	"github.com/simlab/simnet/internal/notify"
	"github.com/simlab/simnet/internal/store"
)

// ctrlEngine is a controllable engine for manager tests: it signals when its
// run starts and blocks until released or, when respectCtx is set, until the
// run context is cancelled.
type ctrlEngine struct {
	engine.Base
	started    chan struct{}
	release    chan struct{}
	respectCtx bool
	partial    bool
	runs       atomic.Int32
}

func newCtrlEngine(respectCtx bool) *ctrlEngine {
	return &ctrlEngine{
		Base:       engine.NewBase(),
		started:    make(chan struct{}),
		release:    make(chan struct{}),
		respectCtx: respectCtx,
	}
}

func (c *ctrlEngine) PartialResults() bool { return c.partial }

func (c *ctrlEngine) Run(ctx context.Context) error {
	c.runs.Add(1)
	close(c.started)
	if c.respectCtx {
		select {
		case <-c.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-c.release
	return nil
}

func newTestManager(t *testing.T, reg *engine.Registry, runTimeout time.Duration) (*manager.Manager, *notify.Broker) {
	t.Helper()
	j, err := store.NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	broker := notify.NewBroker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return manager.New(reg, j, broker, logger, runTimeout), broker
}

func defaultTestManager(t *testing.T) *manager.Manager {
	t.Helper()
	reg, err := engine.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	m, _ := newTestManager(t, reg, 0)
	return m
}

// waitForState polls until the wrapper reaches the expected state.
func waitForState(t *testing.T, m *manager.Manager, id, expected string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		state, err := m.State(id)
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		if state == expected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	state, _ := m.State(id)
	t.Fatalf("wrapper %s did not reach %q within %v (last state %q)", id, expected, timeout, state)
}

func TestCreateUnknownEngineType(t *testing.T) {
	m := defaultTestManager(t)

	_, err := m.Create(context.Background(), "Unregistered", model.NewBundle())
	if !errors.Is(err, model.ErrUnknownEngineType) {
		t.Fatalf("Create: got %v, want ErrUnknownEngineType", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after failed create, want 0", m.Len())
	}
}

func TestCreateIsAllOrNothing(t *testing.T) {
	reg := engine.NewRegistry()
	if err := reg.Register("Picky", func() engine.ModelingEngine { return engine.NewEcho() }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	m, _ := newTestManager(t, reg, 0)

	// A bundle dataset with an empty name fails the engine's add step.
	bundle := model.NewBundle()
	bundle.SD["bad"] = &model.Lattice{}

	_, err := m.Create(context.Background(), "Picky", bundle)
	if !errors.Is(err, model.ErrUnsupportedDatasetType) {
		t.Fatalf("Create: got %v, want ErrUnsupportedDatasetType", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after failed create, want 0 (no partial records)", m.Len())
	}
}

func TestCreateProducesDistinctIDs(t *testing.T) {
	m := defaultTestManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := m.Create(context.Background(), engine.TypeEcho, model.NewBundle())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate wrapper id %s", id)
		}
		seen[id] = true
	}
	if m.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", m.Len())
	}
}

func TestStateUnknownWrapper(t *testing.T) {
	m := defaultTestManager(t)
	if _, err := m.State("no-such-id"); !errors.Is(err, model.ErrWrapperNotFound) {
		t.Fatalf("State: got %v, want ErrWrapperNotFound", err)
	}
}

func TestRunHappyPathWithDatasetRoundTrip(t *testing.T) {
	m := defaultTestManager(t)

	lat := model.NewCubicLattice("latA", 1.0, [3]int{2, 2, 2})
	field, err := model.NewFloat64s([]int{8}, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("NewFloat64s: %v", err)
	}
	lat.Node["density"] = field

	bundle := model.NewBundle()
	if err := bundle.AddDataset(lat); err != nil {
		t.Fatalf("AddDataset: %v", err)
	}

	id, err := m.Create(context.Background(), engine.TypeEcho, bundle)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	state, err := m.State(id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != model.StateInit {
		t.Fatalf("state before run = %q, want init", state)
	}

	if err := m.Run(id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitForState(t, m, id, model.StateDone, 2*time.Second)

	blob, err := m.Dataset(id, "latA")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	got, err := codec.DecodeDataset(blob)
	if err != nil {
		t.Fatalf("DecodeDataset: %v", err)
	}
	if !got.(*model.Lattice).Node["density"].Equal(field) {
		t.Error("fetched dataset does not equal the submitted one")
	}
}

func TestRunUnknownWrapper(t *testing.T) {
	m := defaultTestManager(t)
	if err := m.Run("no-such-id"); !errors.Is(err, model.ErrWrapperNotFound) {
		t.Fatalf("Run: got %v, want ErrWrapperNotFound", err)
	}
}

func TestRunTwiceExecutesEngineOnce(t *testing.T) {
	eng := newCtrlEngine(false)
	reg := engine.NewRegistry()
	if err := reg.Register("Ctrl", func() engine.ModelingEngine { return eng }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	m, _ := newTestManager(t, reg, 0)

	id, err := m.Create(context.Background(), "Ctrl", model.NewBundle())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Run(id); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	<-eng.started

	if err := m.Run(id); !errors.Is(err, model.ErrAlreadyRunning) {
		t.Fatalf("second Run: got %v, want ErrAlreadyRunning", err)
	}

	close(eng.release)
	waitForState(t, m, id, model.StateDone, 2*time.Second)

	if got := eng.runs.Load(); got != 1 {
		t.Errorf("engine executed %d times, want 1", got)
	}
}

func TestFailedRunIsSticky(t *testing.T) {
	m := defaultTestManager(t)

	bundle := model.NewBundle()
	bundle.CM["fail"] = true

	id, err := m.Create(context.Background(), engine.TypeEcho, bundle)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Run(id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitForState(t, m, id, model.StateFailed, 2*time.Second)

	for i := 0; i < 10; i++ {
		state, err := m.State(id)
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		if state != model.StateFailed {
			t.Fatalf("state flipped to %q after failure", state)
		}
	}

	reason, err := m.FailureReason(id)
	if err != nil {
		t.Fatalf("FailureReason: %v", err)
	}
	if reason == "" {
		t.Error("FailureReason is empty for a failed wrapper")
	}
}

func TestStateSequenceIsMonotone(t *testing.T) {
	m := defaultTestManager(t)

	bundle := model.NewBundle()
	bundle.CM["delay_ms"] = 100

	id, err := m.Create(context.Background(), engine.TypeEcho, bundle)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Run(id); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lastRank := -1
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, err := m.State(id)
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		rank := model.StateRank(state)
		if rank < lastRank {
			t.Fatalf("state rank went backwards: %d -> %d (%s)", lastRank, rank, state)
		}
		lastRank = rank
		if model.Terminal(state) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("wrapper never reached a terminal state")
}

func TestCancelTransitionsToCancelled(t *testing.T) {
	eng := newCtrlEngine(true)
	reg := engine.NewRegistry()
	if err := reg.Register("Ctrl", func() engine.ModelingEngine { return eng }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	m, _ := newTestManager(t, reg, 0)

	id, err := m.Create(context.Background(), "Ctrl", model.NewBundle())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Cancel before run is an unsupported operation.
	if err := m.Cancel(id); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("Cancel before run: got %v, want ErrUnsupportedOperation", err)
	}

	if err := m.Run(id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-eng.started

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitForState(t, m, id, model.StateCancelled, 2*time.Second)

	if err := m.Cancel(id); !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("Cancel after terminal: got %v, want ErrUnsupportedOperation", err)
	}
}

func TestWatchdogFailsStalledRun(t *testing.T) {
	eng := newCtrlEngine(false) // ignores the run context
	reg := engine.NewRegistry()
	if err := reg.Register("Stuck", func() engine.ModelingEngine { return eng }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	m, _ := newTestManager(t, reg, 50*time.Millisecond)

	id, err := m.Create(context.Background(), "Stuck", model.NewBundle())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Run(id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-eng.started

	waitForState(t, m, id, model.StateFailed, 2*time.Second)

	reason, err := m.FailureReason(id)
	if err != nil {
		t.Fatalf("FailureReason: %v", err)
	}
	if reason == "" {
		t.Error("stalled run has no failure reason")
	}

	// The engine finally returns; the verdict must not change.
	close(eng.release)
	time.Sleep(100 * time.Millisecond)
	state, err := m.State(id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state != model.StateFailed {
		t.Errorf("state = %q after late completion, want failed", state)
	}
}

func TestDatasetFetchBeforeTerminal(t *testing.T) {
	eng := newCtrlEngine(false)
	lat := model.NewCubicLattice("latA", 1.0, [3]int{1, 1, 1})
	if err := eng.AddDataset(lat); err != nil {
		t.Fatalf("AddDataset: %v", err)
	}

	reg := engine.NewRegistry()
	if err := reg.Register("Ctrl", func() engine.ModelingEngine { return eng }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	m, _ := newTestManager(t, reg, 0)

	id, err := m.Create(context.Background(), "Ctrl", model.NewBundle())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Run(id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-eng.started

	// Engine does not expose partial results: fetch is an error.
	if _, err := m.Dataset(id, "latA"); !errors.Is(err, model.ErrEngineNotReady) {
		t.Fatalf("Dataset mid-run: got %v, want ErrEngineNotReady", err)
	}

	// Opting in to partial results permits mid-run fetches.
	eng.partial = true
	if _, err := m.Dataset(id, "latA"); err != nil {
		t.Fatalf("Dataset mid-run with partial results: %v", err)
	}

	close(eng.release)
	waitForState(t, m, id, model.StateDone, 2*time.Second)
}

func TestDatasetOperations(t *testing.T) {
	m := defaultTestManager(t)

	id, err := m.Create(context.Background(), engine.TypeEcho, model.NewBundle())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	lat := model.NewCubicLattice("latB", 2.0, [3]int{3, 3, 3})
	blob, err := codec.EncodeDataset(lat)
	if err != nil {
		t.Fatalf("EncodeDataset: %v", err)
	}

	name, err := m.AddDataset(id, blob)
	if err != nil {
		t.Fatalf("AddDataset: %v", err)
	}
	if name != "latB" {
		t.Errorf("AddDataset returned name %q", name)
	}

	if _, err := m.AddDataset(id, blob); !errors.Is(err, model.ErrDuplicateDatasetName) {
		t.Errorf("duplicate AddDataset: got %v", err)
	}

	if err := m.RemoveDataset(id, "latB"); err != nil {
		t.Fatalf("RemoveDataset: %v", err)
	}
	if err := m.RemoveDataset(id, "latB"); !errors.Is(err, model.ErrDatasetNotFound) {
		t.Errorf("RemoveDataset twice: got %v", err)
	}
	if _, err := m.Dataset("no-such-id", "latB"); !errors.Is(err, model.ErrWrapperNotFound) {
		t.Errorf("Dataset on unknown wrapper: got %v", err)
	}
}

func TestLifecycleEventsPublished(t *testing.T) {
	reg, err := engine.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	m, broker := newTestManager(t, reg, 0)

	events, cancel := broker.Subscribe(notify.TopicWrapperState)
	defer cancel()

	id, err := m.Create(context.Background(), engine.TypeEcho, model.NewBundle())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Run(id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitForState(t, m, id, model.StateDone, 2*time.Second)

	want := []string{model.StateInit, model.StateRunning, model.StateDone}
	for _, expected := range want {
		select {
		case ev := <-events:
			if ev.Payload["wrapper_id"] != id {
				t.Errorf("event for wrapper %v, want %s", ev.Payload["wrapper_id"], id)
			}
			if ev.Payload["state"] != expected {
				t.Errorf("event state = %v, want %s", ev.Payload["state"], expected)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("missing %q event", expected)
		}
	}
}
