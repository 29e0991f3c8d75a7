package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/reactest/internal/ir"
)

// marshalValue converts a trace value to canonical JSON TEXT for storage.
// Rows without a value store NULL.
func marshalValue(row TraceRow) (sql.NullString, error) {
	if !row.HasValue {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(row.Value)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalValue parses stored canonical JSON back into plain Go values.
// Integers come back as int, keeping int64 precision via the ir decoder.
func unmarshalValue(data sql.NullString) (any, bool, error) {
	if !data.Valid {
		return nil, false, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data.String))
	if err != nil {
		return nil, false, fmt.Errorf("unmarshal value: %w", err)
	}
	return ir.ToGo(v), true, nil
}

// marshalErrors converts a run's failure messages to canonical JSON TEXT.
func marshalErrors(errs []string) (string, error) {
	items := make([]any, len(errs))
	for i, e := range errs {
		items[i] = e
	}
	data, err := ir.MarshalCanonical(items)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(data), nil
}

// unmarshalErrors parses stored failure messages. Returns nil for none.
func unmarshalErrors(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var errs []string
	if err := json.Unmarshal([]byte(data), &errs); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	return errs, nil
}
