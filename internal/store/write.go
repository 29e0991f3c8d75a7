package store

import (
	"context"
	"fmt"
	"time"
)

// WriteRun records a run and its trace in one transaction and returns the
// run as stored, with ID and Seq filled in.
//
// A run without an ID gets one from the store's IDGenerator. Writing an ID
// that already exists fails; runs are never overwritten.
func (s *Store) WriteRun(ctx context.Context, run Run, trace []TraceRow) (Run, error) {
	if run.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return Run{}, fmt.Errorf("write run: generate id: %w", err)
		}
		run.ID = id
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	errsJSON, err := marshalErrors(run.Errors)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, app, spec_path, pass, digest, errors, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.App,
		run.SpecPath,
		run.Pass,
		run.Digest,
		errsJSON,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run %s: %w", run.ID, err)
	}
	run.Seq, err = result.LastInsertId()
	if err != nil {
		return Run{}, fmt.Errorf("write run %s: get seq: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trace_events
		(run_id, seq, step, kind, node, at_ns, value, code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Run{}, fmt.Errorf("write run %s: prepare trace insert: %w", run.ID, err)
	}
	defer stmt.Close()

	for _, row := range trace {
		value, err := marshalValue(row)
		if err != nil {
			return Run{}, fmt.Errorf("write run %s: trace seq %d: %w", run.ID, row.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID,
			row.Seq,
			row.Step,
			row.Kind,
			row.Node,
			int64(row.At),
			value,
			row.Code,
		); err != nil {
			return Run{}, fmt.Errorf("write run %s: trace seq %d: %w", run.ID, row.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}
	return run, nil
}

// DeleteRun removes a run and, by cascade, its trace.
// Deleting an unknown ID is not an error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}
