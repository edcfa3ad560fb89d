package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/simlab/simnet/internal/codec"
	"github.com/simlab/simnet/internal/engine"
	"github.com/simlab/simnet/internal/model"
)

// DefaultPollInterval is how often a blocking Run checks the remote state.
const DefaultPollInterval = 500 * time.Millisecond

// Proxy is a client-side engine that delegates execution to a remote wrapper.
// It satisfies the same capability contract as a local engine: configuration
// and datasets accumulate in a local bundle until submission, after which the
// bundle is frozen and dataset reads are served by the remote wrapper.
type Proxy struct {
	client       *Client
	engineType   string
	pollInterval time.Duration

	bundle    *model.Bundle
	submitted bool
	id        string
	lastState string
}

var _ engine.ModelingEngine = (*Proxy)(nil)

// Option configures a Proxy.
type Option func(*Proxy)

// WithPollInterval sets the Run poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Proxy) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithBundle seeds the proxy with a prebuilt configuration bundle instead of
// an empty one.
func WithBundle(b *model.Bundle) Option {
	return func(p *Proxy) {
		if b != nil {
			p.bundle = b
		}
	}
}

// New creates a proxy that will run engineType on the given server.
func New(client *Client, engineType string, opts ...Option) *Proxy {
	p := &Proxy{
		client:       client,
		engineType:   engineType,
		pollInterval: DefaultPollInterval,
		bundle:       model.NewBundle(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the remote wrapper id, or "" before submission.
func (p *Proxy) ID() string {
	return p.id
}

func (p *Proxy) SetBC(params model.ParamMap) error {
	if p.submitted {
		return model.ErrImmutableConfiguration
	}
	p.bundle.BC = params.Clone()
	return nil
}

func (p *Proxy) SetSP(params model.ParamMap) error {
	if p.submitted {
		return model.ErrImmutableConfiguration
	}
	p.bundle.SP = params.Clone()
	return nil
}

func (p *Proxy) SetCM(params model.ParamMap) error {
	if p.submitted {
		return model.ErrImmutableConfiguration
	}
	p.bundle.CM = params.Clone()
	return nil
}

func (p *Proxy) BC() model.ParamMap { return p.bundle.BC.Clone() }
func (p *Proxy) SP() model.ParamMap { return p.bundle.SP.Clone() }
func (p *Proxy) CM() model.ParamMap { return p.bundle.CM.Clone() }

// AddDataset stages a dataset in the local bundle. Nothing travels over the
// wire until submission, and the frozen bundle rejects late additions.
func (p *Proxy) AddDataset(d model.Dataset) error {
	if p.submitted {
		return model.ErrImmutableConfiguration
	}
	return p.bundle.AddDataset(d)
}

// RemoveDataset removes a staged dataset. The bundle freezes at submission.
func (p *Proxy) RemoveDataset(name string) error {
	if p.submitted {
		return model.ErrImmutableConfiguration
	}
	if _, ok := p.bundle.SD[name]; !ok {
		return fmt.Errorf("%w: %q", model.ErrDatasetNotFound, name)
	}
	delete(p.bundle.SD, name)
	return nil
}

// Dataset fetches a dataset from the remote wrapper. There is nothing to
// fetch before submission; readiness and absence checks happen server-side.
func (p *Proxy) Dataset(name string) (model.Dataset, error) {
	if !p.submitted {
		return nil, model.ErrNotRunYet
	}

	blob, err := p.client.Dataset(context.Background(), p.id, name)
	if err != nil {
		return nil, err
	}
	return codec.DecodeDataset(blob)
}

func (p *Proxy) DatasetNames() []string {
	return p.bundle.Names()
}

// Submit serializes the bundle and starts the remote run without waiting for
// it. After a successful submission the configuration is frozen.
func (p *Proxy) Submit(ctx context.Context) error {
	if p.submitted {
		return model.ErrAlreadyStarted
	}

	blob, err := codec.EncodeBundle(p.bundle)
	if err != nil {
		return err
	}
	id, state, err := p.client.Submit(ctx, p.engineType, blob)
	if err != nil {
		return err
	}
	p.id = id
	p.lastState = state
	p.submitted = true
	return nil
}

// Run submits the bundle and blocks until the remote run reaches a terminal
// state, polling at the configured interval. A failed run surfaces the remote
// fault message.
func (p *Proxy) Run(ctx context.Context) error {
	if err := p.Submit(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		state, err := p.State(ctx)
		if err != nil {
			return err
		}
		if model.Terminal(state) {
			return p.verdict(ctx, state)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", model.ErrConnection, ctx.Err())
		case <-ticker.C:
		}
	}
}

// verdict translates a terminal state into Run's return value.
func (p *Proxy) verdict(ctx context.Context, state string) error {
	switch state {
	case model.StateDone:
		return nil
	case model.StateCancelled:
		return fmt.Errorf("wrapper %s was cancelled", p.id)
	default:
		reason, err := p.client.FailureReason(ctx, p.id)
		if err != nil || reason == "" {
			return fmt.Errorf("wrapper %s failed", p.id)
		}
		return fmt.Errorf("wrapper %s failed: %s", p.id, reason)
	}
}

// State returns the remote lifecycle state. Before submission there is no
// remote wrapper to ask.
func (p *Proxy) State(ctx context.Context) (string, error) {
	if !p.submitted {
		return "", model.ErrNotRunYet
	}
	state, err := p.client.State(ctx, p.id)
	if err != nil {
		return "", err
	}
	p.lastState = state
	return state, nil
}

// LastState returns the most recently observed remote state without a
// network round trip.
func (p *Proxy) LastState() string {
	return p.lastState
}

// Cancel requests cancellation of the remote run.
func (p *Proxy) Cancel(ctx context.Context) error {
	if !p.submitted {
		return model.ErrNotRunYet
	}
	state, err := p.client.Cancel(ctx, p.id)
	if err != nil {
		return err
	}
	p.lastState = state
	return nil
}
