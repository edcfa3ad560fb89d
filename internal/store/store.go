package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a wrapper row is not found.
var ErrNotFound = errors.New("wrapper not found")

// WrapperRow is the journaled view of a wrapper record.
type WrapperRow struct {
	ID         string     `json:"id"`
	EngineType string     `json:"engine_type"`
	State      string     `json:"state"`
	Fault      string     `json:"fault,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Transition is one journaled lifecycle transition.
type Transition struct {
	ID        int64     `json:"id"`
	WrapperID string    `json:"wrapper_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	At        time.Time `json:"at"`
}

// WrapperStats holds aggregate counts over the journal.
type WrapperStats struct {
	Total        int            `json:"total"`
	ByState      map[string]int `json:"by_state"`
	ByEngineType map[string]int `json:"by_engine_type"`
}

// Journal records wrapper lifecycles for history and stats. It is an audit
// trail: the in-memory wrapper registry stays the source of truth, and
// journal failures must never fail the request path.
type Journal interface {
	RecordCreate(ctx context.Context, id, engineType string, createdAt time.Time) error
	RecordTransition(ctx context.Context, id, from, to, fault string, at time.Time) error
	GetWrapper(ctx context.Context, id string) (*WrapperRow, error)
	ListWrappers(ctx context.Context, limit, offset int) ([]*WrapperRow, int, error)
	ListTransitions(ctx context.Context, wrapperID string) ([]Transition, error)
	Stats(ctx context.Context) (*WrapperStats, error)
	Close() error
}
