package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/simlab/simnet/internal/codec"
	"github.com/simlab/simnet/internal/engine"
	"github.com/simlab/simnet/internal/model"
	"github.com/simlab/simnet/internal/notify"
	"github.com/simlab/simnet/internal/store"
)

// DefaultRunTimeout bounds a single engine run when no other timeout is
// configured. A record whose run outlives this deadline is failed by the
// watchdog rather than left running forever.
const DefaultRunTimeout = 5 * time.Minute

// watchdogGrace is the slack between the run context's deadline and the
// watchdog declaring the record stalled, giving cooperative engines time to
// observe the cancellation and return on their own.
const watchdogGrace = 100 * time.Millisecond

// handle tracks one scheduled engine execution. It is created by Run,
// written once, and mutated only under its record's mutex.
type handle struct {
	cancel        context.CancelFunc
	watchdog      *time.Timer
	startedAt     time.Time
	completed     bool
	timedOut      bool
	userCancelled bool
	err           error
}

// record is one wrapper: an engine instance plus its tracked execution.
// Lifecycle state is never stored; it is derived from the handle.
type record struct {
	mu         sync.Mutex
	id         string
	engineType string
	eng        engine.ModelingEngine
	createdAt  time.Time
	h          *handle
}

// stateLocked derives the lifecycle state. Callers hold r.mu.
func (r *record) stateLocked() string {
	switch {
	case r.h == nil:
		return model.StateInit
	case r.h.timedOut:
		return model.StateFailed
	case !r.h.completed:
		return model.StateRunning
	case r.h.err == nil:
		return model.StateDone
	case r.h.userCancelled:
		return model.StateCancelled
	default:
		return model.StateFailed
	}
}

// Manager owns the map of active wrappers. It creates engine instances,
// schedules their execution as background goroutines, derives lifecycle
// state without blocking, and announces transitions on the broker.
type Manager struct {
	registry   *engine.Registry
	journal    store.Journal
	broker     *notify.Broker
	logger     *slog.Logger
	runTimeout time.Duration

	mu      sync.RWMutex
	records map[string]*record

	wg sync.WaitGroup
}

// New creates a manager. runTimeout <= 0 selects DefaultRunTimeout.
func New(reg *engine.Registry, journal store.Journal, broker *notify.Broker, logger *slog.Logger, runTimeout time.Duration) *Manager {
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Manager{
		registry:   reg,
		journal:    journal,
		broker:     broker,
		logger:     logger,
		runTimeout: runTimeout,
		records:    make(map[string]*record),
	}
}

// Create instantiates an engine of the given type, assigns the bundle's
// configuration, loads its datasets, and stores a new wrapper record.
// The operation is all-or-nothing: any failure leaves no record behind.
func (m *Manager) Create(ctx context.Context, engineType string, bundle *model.Bundle) (string, error) {
	f, err := m.registry.Lookup(engineType)
	if err != nil {
		return "", err
	}
	if bundle == nil {
		bundle = model.NewBundle()
	}

	eng := f()
	if err := eng.SetBC(bundle.BC); err != nil {
		return "", fmt.Errorf("assign boundary conditions: %w", err)
	}
	if err := eng.SetSP(bundle.SP); err != nil {
		return "", fmt.Errorf("assign system parameters: %w", err)
	}
	if err := eng.SetCM(bundle.CM); err != nil {
		return "", fmt.Errorf("assign computational methods: %w", err)
	}

	// Sorted order makes the failing dataset deterministic.
	names := make([]string, 0, len(bundle.SD))
	for name := range bundle.SD {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := eng.AddDataset(bundle.SD[name]); err != nil {
			return "", fmt.Errorf("load dataset %q: %w", name, err)
		}
	}

	r := &record{
		id:         model.NewID(),
		engineType: engineType,
		eng:        eng,
		createdAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.records[r.id] = r
	m.mu.Unlock()

	wrappersCreatedTotal.WithLabelValues(engineType).Inc()
	m.logger.Info("wrapper created", "wrapper_id", r.id, "engine_type", engineType)

	if err := m.journal.RecordCreate(ctx, r.id, engineType, r.createdAt); err != nil {
		m.logger.Error("failed to journal wrapper creation", "wrapper_id", r.id, "error", err)
	}
	m.announce(r.id, "", model.StateInit)

	return r.id, nil
}

// Run schedules the wrapper's engine execution as a background goroutine
// and returns immediately. The execution handle is written exactly once;
// a second Run on the same id fails with ErrAlreadyRunning.
func (m *Manager) Run(id string) error {
	r, err := m.record(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.h != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", model.ErrAlreadyRunning, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.runTimeout)
	h := &handle{cancel: cancel, startedAt: time.Now().UTC()}
	h.watchdog = time.AfterFunc(m.runTimeout+watchdogGrace, func() { m.expire(r, h) })
	r.h = h
	r.mu.Unlock()

	m.transition(r, model.StateInit, model.StateRunning, "")

	m.wg.Add(1)
	go m.execute(ctx, r, h, cancel)
	return nil
}

// execute drives one engine run to completion and records the outcome.
// Failures here never reach the Run caller; they surface through State.
func (m *Manager) execute(ctx context.Context, r *record, h *handle, cancel context.CancelFunc) {
	defer m.wg.Done()
	defer cancel()

	err := r.eng.Run(ctx)
	duration := time.Since(h.startedAt)

	r.mu.Lock()
	h.watchdog.Stop()
	if h.timedOut {
		// The watchdog already failed the record; keep that verdict.
		h.completed = true
		r.mu.Unlock()
		return
	}
	h.completed = true
	h.err = err
	cancelled := h.userCancelled && err != nil
	r.mu.Unlock()

	engineRunDuration.WithLabelValues(r.engineType).Observe(duration.Seconds())

	switch {
	case err == nil:
		m.transition(r, model.StateRunning, model.StateDone, "")
	case cancelled:
		m.transition(r, model.StateRunning, model.StateCancelled, err.Error())
	default:
		m.transition(r, model.StateRunning, model.StateFailed, err.Error())
	}
}

// expire is the watchdog callback: a run that has not completed by the
// deadline is declared failed so no record stays running forever.
func (m *Manager) expire(r *record, h *handle) {
	r.mu.Lock()
	if h.completed || h.timedOut {
		r.mu.Unlock()
		return
	}
	h.timedOut = true
	h.err = fmt.Errorf("run timed out after %s", m.runTimeout)
	fault := h.err.Error()
	r.mu.Unlock()

	m.logger.Warn("wrapper run stalled past deadline", "wrapper_id", r.id, "timeout", m.runTimeout.String())
	m.transition(r, model.StateRunning, model.StateFailed, fault)
}

// Cancel attempts to cancel the wrapper's background task. Records without
// a scheduled run, or already terminal, fail with ErrUnsupportedOperation.
func (m *Manager) Cancel(id string) error {
	r, err := m.record(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.h == nil || model.Terminal(r.stateLocked()) {
		r.mu.Unlock()
		return fmt.Errorf("%w: cancel %s", model.ErrUnsupportedOperation, id)
	}
	r.h.userCancelled = true
	cancel := r.h.cancel
	r.mu.Unlock()

	cancel()
	return nil
}

// State derives the wrapper's lifecycle state. It never blocks on the
// running engine and never mutates the handle.
func (m *Manager) State(id string) (string, error) {
	r, err := m.record(id)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(), nil
}

// FailureReason returns the captured fault for a failed or cancelled
// wrapper, and "" for wrappers in any other state.
func (m *Manager) FailureReason(id string) (string, error) {
	r, err := m.record(id)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.stateLocked() {
	case model.StateFailed, model.StateCancelled:
		if r.h.err != nil {
			return r.h.err.Error(), nil
		}
	}
	return "", nil
}

// AddDataset decodes an incoming dataset payload and forwards it to the
// wrapper's engine.
func (m *Manager) AddDataset(id string, payload []byte) (string, error) {
	r, err := m.record(id)
	if err != nil {
		return "", err
	}
	d, err := codec.DecodeDataset(payload)
	if err != nil {
		return "", err
	}
	if err := r.eng.AddDataset(d); err != nil {
		return "", err
	}
	return d.DatasetName(), nil
}

// RemoveDataset removes a named dataset from the wrapper's engine.
func (m *Manager) RemoveDataset(id, name string) error {
	r, err := m.record(id)
	if err != nil {
		return err
	}
	return r.eng.RemoveDataset(name)
}

// Dataset fetches a named dataset from the wrapper's engine, serialized for
// transfer. Before the run reaches a terminal state the fetch is allowed
// only if the engine exposes partial results.
func (m *Manager) Dataset(id, name string) ([]byte, error) {
	r, err := m.record(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	state := r.stateLocked()
	r.mu.Unlock()

	if !model.Terminal(state) {
		p, ok := r.eng.(engine.PartialResultProvider)
		if !ok || !p.PartialResults() {
			return nil, fmt.Errorf("%w: wrapper %s is %s", model.ErrEngineNotReady, id, state)
		}
	}

	d, err := r.eng.Dataset(name)
	if err != nil {
		return nil, err
	}
	return codec.EncodeDataset(d)
}

// Len returns the number of stored wrapper records.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Wait blocks until all in-flight engine goroutines complete.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// record looks up a wrapper record by id.
func (m *Manager) record(id string) (*record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrWrapperNotFound, id)
	}
	return r, nil
}

// transition journals and announces one lifecycle transition. Both sinks
// are best-effort: the in-memory record is the source of truth.
func (m *Manager) transition(r *record, from, to, fault string) {
	stateTransitionsTotal.WithLabelValues(to).Inc()
	m.logger.Info("wrapper state changed", "wrapper_id", r.id, "from", from, "to", to)

	if err := m.journal.RecordTransition(context.Background(), r.id, from, to, fault, time.Now().UTC()); err != nil {
		m.logger.Error("failed to journal transition", "wrapper_id", r.id, "to", to, "error", err)
	}
	m.announce(r.id, from, to)
}

// announce publishes a state-change event on the reserved topic.
func (m *Manager) announce(id, from, to string) {
	payload := map[string]any{
		"wrapper_id": id,
		"state":      to,
	}
	if from != "" {
		payload["previous"] = from
	}
	if err := m.broker.Publish(notify.TopicWrapperState, payload); err != nil {
		m.logger.Error("failed to publish state change", "wrapper_id", id, "error", err)
	}
}
