package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/simlab/simnet/internal/model"

	_ "modernc.org/sqlite"
)

const createWrappersTable = `
CREATE TABLE IF NOT EXISTS wrappers (
    id          TEXT PRIMARY KEY,
    engine_type TEXT NOT NULL,
    state       TEXT NOT NULL,
    fault       TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL,
    finished_at DATETIME
)`

const createTransitionsTable = `
CREATE TABLE IF NOT EXISTS transitions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    wrapper_id  TEXT NOT NULL,
    from_state  TEXT NOT NULL,
    to_state    TEXT NOT NULL,
    at          DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Journal = (*SQLiteJournal)(nil)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens the SQLite database at dbPath and runs migrations.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createWrappersTable, createTransitionsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
	}

	return &SQLiteJournal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// RecordCreate inserts a wrapper row in its initial state.
func (j *SQLiteJournal) RecordCreate(ctx context.Context, id, engineType string, createdAt time.Time) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO wrappers (id, engine_type, state, created_at) VALUES (?, ?, ?, ?)",
		id, engineType, model.StateInit, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert wrapper: %w", err)
	}
	return nil
}

// RecordTransition appends a transition row and updates the wrapper's state.
// Terminal transitions also set fault and finished_at.
func (j *SQLiteJournal) RecordTransition(ctx context.Context, id, from, to, fault string, at time.Time) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO transitions (wrapper_id, from_state, to_state, at) VALUES (?, ?, ?, ?)",
		id, from, to, at,
	); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	var result sql.Result
	if model.Terminal(to) {
		result, err = tx.ExecContext(ctx,
			"UPDATE wrappers SET state = ?, fault = ?, finished_at = ? WHERE id = ?",
			to, fault, at, id,
		)
	} else {
		result, err = tx.ExecContext(ctx,
			"UPDATE wrappers SET state = ? WHERE id = ?",
			to, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update wrapper state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// GetWrapper retrieves a wrapper row by ID.
func (j *SQLiteJournal) GetWrapper(ctx context.Context, id string) (*WrapperRow, error) {
	w := &WrapperRow{}
	err := j.db.QueryRowContext(ctx,
		"SELECT id, engine_type, state, fault, created_at, finished_at FROM wrappers WHERE id = ?", id,
	).Scan(&w.ID, &w.EngineType, &w.State, &w.Fault, &w.CreatedAt, &w.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wrapper: %w", err)
	}
	return w, nil
}

// ListWrappers returns a paginated list of wrapper rows ordered by
// created_at DESC, along with the total count.
func (j *SQLiteJournal) ListWrappers(ctx context.Context, limit, offset int) ([]*WrapperRow, int, error) {
	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM wrappers").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wrappers: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, engine_type, state, fault, created_at, finished_at
		FROM wrappers ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list wrappers: %w", err)
	}
	defer rows.Close()

	var wrappers []*WrapperRow
	for rows.Next() {
		w := &WrapperRow{}
		if err := rows.Scan(&w.ID, &w.EngineType, &w.State, &w.Fault, &w.CreatedAt, &w.FinishedAt); err != nil {
			return nil, 0, fmt.Errorf("scan wrapper: %w", err)
		}
		wrappers = append(wrappers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate wrappers: %w", err)
	}

	return wrappers, total, nil
}

// ListTransitions returns the journaled transitions for one wrapper in order.
func (j *SQLiteJournal) ListTransitions(ctx context.Context, wrapperID string) ([]Transition, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, wrapper_id, from_state, to_state, at FROM transitions WHERE wrapper_id = ? ORDER BY id ASC",
		wrapperID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var tr Transition
		if err := rows.Scan(&tr.ID, &tr.WrapperID, &tr.FromState, &tr.ToState, &tr.At); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}

// Stats aggregates counts by state and engine type.
func (j *SQLiteJournal) Stats(ctx context.Context) (*WrapperStats, error) {
	stats := &WrapperStats{
		ByState:      make(map[string]int),
		ByEngineType: make(map[string]int),
	}

	rows, err := j.db.QueryContext(ctx, "SELECT state, engine_type FROM wrappers")
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state, engineType string
		if err := rows.Scan(&state, &engineType); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.Total++
		stats.ByState[state]++
		stats.ByEngineType[engineType]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}
