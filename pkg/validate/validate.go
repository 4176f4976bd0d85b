// Package validate re-reads a durable sink after a session completes and
// compares it against the rows derived from the original fixture. The
// comparison is strict, ordered and index-by-index; the first mismatch
// fails the run.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/payload"
	"github.com/risingwavelabs/connector-harness/pkg/schema"
)

// Row is one row as ordered column values, following schema column order.
type Row []interface{}

// ExpectedRows flattens every fixture batch into row tuples. The result
// is the ground truth for validation and is independent of the wire
// encoding used to transmit the rows.
func ExpectedRows(batches []payload.FixtureBatch, s *schema.TableSchema) ([]Row, error) {
	var rows []Row
	for bi, batch := range batches {
		for ri, fr := range batch {
			var obj map[string]interface{}
			if err := json.Unmarshal([]byte(fr.Line), &obj); err != nil {
				return nil, fmt.Errorf("batch %d row %d: %w", bi, ri, err)
			}
			row := make(Row, len(s.Columns))
			for ci, col := range s.Columns {
				v, ok := obj[col.Name]
				if !ok {
					return nil, fmt.Errorf("batch %d row %d: missing column %q", bi, ri, col.Name)
				}
				row[ci] = normalizeValue(col.Type, v)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// normalizeValue brings a value into the canonical comparison form for
// its column type: int64 for integer columns, float64 for floating
// columns, string and bool as-is. Values from JSON, database/sql and
// file readers all pass through here so equality is type-stable.
func normalizeValue(t sinkpb.DataType, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch t {
	case sinkpb.TypeInt16, sinkpb.TypeInt32, sinkpb.TypeInt64:
		switch n := v.(type) {
		case float64:
			return int64(n)
		case float32:
			return int64(n)
		case int:
			return int64(n)
		case int16:
			return int64(n)
		case int32:
			return int64(n)
		case int64:
			return n
		}
	case sinkpb.TypeFloat, sinkpb.TypeDouble:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int64:
			return float64(n)
		}
	case sinkpb.TypeVarchar:
		switch s := v.(type) {
		case string:
			return s
		case []byte:
			return string(s)
		}
	case sinkpb.TypeBoolean:
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return v
}

// Compare checks actual against expected, row by row and cell by cell.
// Row order must match exactly; there is no set-based fallback.
func Compare(expected, actual []Row) error {
	if len(actual) != len(expected) {
		return fmt.Errorf("row count mismatch: expected %d, got %d", len(expected), len(actual))
	}
	for i := range expected {
		if len(actual[i]) != len(expected[i]) {
			return fmt.Errorf("row %d: column count mismatch: expected %d, got %d",
				i, len(expected[i]), len(actual[i]))
		}
		for j := range expected[i] {
			if expected[i][j] != actual[i][j] {
				return fmt.Errorf("row %d, column %d: expected %v (%T), got %v (%T)",
					i, j, expected[i][j], expected[i][j], actual[i][j], actual[i][j])
			}
		}
	}
	return nil
}
