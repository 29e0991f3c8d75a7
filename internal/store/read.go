package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = `seq, id, scenario, app, spec_path, pass, digest, errors, started_at`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ReadTrace returns a run's trace ordered by seq.
// Returns an empty slice (not nil) if the run has no events or does not exist.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]TraceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, step, kind, node, at_ns, value, code
		FROM trace_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	trace := []TraceRow{}
	for rows.Next() {
		var (
			row   TraceRow
			atNS  int64
			value sql.NullString
		)
		if err := rows.Scan(&row.Seq, &row.Step, &row.Kind, &row.Node, &atNS, &value, &row.Code); err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}
		row.At = time.Duration(atNS)
		row.Value, row.HasValue, err = unmarshalValue(value)
		if err != nil {
			return nil, fmt.Errorf("trace seq %d: %w", row.Seq, err)
		}
		trace = append(trace, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return trace, nil
}

// ListRuns returns the most recent runs first. An empty scenario lists runs of
// every scenario; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, scenario string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY seq DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestDigest returns the trace digest of the scenario's most recent run.
// ok is false when the scenario was never recorded.
func (s *Store) LatestDigest(ctx context.Context, scenario string) (digest string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT digest FROM runs
		WHERE scenario = ?
		ORDER BY seq DESC
		LIMIT 1
	`, scenario).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("latest digest for %s: %w", scenario, err)
	}
	return digest, true, nil
}

// ListScenarios returns every recorded scenario name, alphabetically.
func (s *Store) ListScenarios(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT scenario FROM runs
		ORDER BY scenario
	`)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenarios: %w", err)
	}
	return names, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (Run, error) {
	var (
		run       Run
		errsJSON  string
		startedAt string
	)
	if err := r.Scan(&run.Seq, &run.ID, &run.Scenario, &run.App, &run.SpecPath,
		&run.Pass, &run.Digest, &errsJSON, &startedAt); err != nil {
		return Run{}, err
	}

	var err error
	run.Errors, err = unmarshalErrors(errsJSON)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: parse started_at: %w", run.ID, err)
	}
	return run, nil
}
