// Package payload loads sink fixtures and encodes them into wire-ready
// payloads. Encoders are pure: same fixture in, same payload out.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/schema"
)

// FixtureRow is one row of a JSON fixture: an op tag plus the row value.
// Line may be either a JSON object or a string already holding encoded JSON.
type FixtureRow struct {
	OpType sinkpb.Op
	Line   string
}

// FixtureBatch is one ordered batch of fixture rows.
type FixtureBatch []FixtureRow

type rawFixtureRow struct {
	OpType *int32          `json:"op_type"`
	Line   json.RawMessage `json:"line"`
}

// LoadJSONFixture reads a JSON fixture file: a top-level sequence of
// batches, each batch a sequence of rows with op_type and line. Any parse
// problem or missing field is fatal and reported with the file path.
func LoadJSONFixture(path string) ([]FixtureBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	var raw [][]rawFixtureRow
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	batches := make([]FixtureBatch, len(raw))
	for bi, rows := range raw {
		batch := make(FixtureBatch, len(rows))
		for ri, row := range rows {
			if row.OpType == nil {
				return nil, fmt.Errorf("fixture %s: batch %d row %d: missing op_type", path, bi, ri)
			}
			if len(row.Line) == 0 {
				return nil, fmt.Errorf("fixture %s: batch %d row %d: missing line", path, bi, ri)
			}
			line, err := canonicalLine(row.Line)
			if err != nil {
				return nil, fmt.Errorf("fixture %s: batch %d row %d: %w", path, bi, ri, err)
			}
			batch[ri] = FixtureRow{OpType: sinkpb.Op(*row.OpType), Line: line}
		}
		batches[bi] = batch
	}
	return batches, nil
}

// canonicalLine normalizes the line field. A JSON string is taken verbatim
// (it already holds encoded JSON); any other JSON value is re-encoded
// compactly so the same fixture always yields the same bytes.
func canonicalLine(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("line is not valid JSON: %w", err)
	}
	return buf.String(), nil
}

// LoadBinaryFixture reads a binary fixture verbatim. The bytes are opaque
// to the harness.
func LoadBinaryFixture(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return data, nil
}

// EncodeJSON turns fixture batches into row-op batches, preserving order.
// Each line is validated against the schema before it is accepted. When
// override is not OpUnspecified it replaces every row's op type, modelling
// scenarios that force all rows to one operation kind.
func EncodeJSON(batches []FixtureBatch, s *schema.TableSchema, override sinkpb.Op) ([][]sinkpb.RowOp, error) {
	out := make([][]sinkpb.RowOp, len(batches))
	for bi, batch := range batches {
		ops := make([]sinkpb.RowOp, len(batch))
		for ri, row := range batch {
			if err := s.ValidateLine(row.Line); err != nil {
				return nil, fmt.Errorf("batch %d row %d: %w", bi, ri, err)
			}
			op := row.OpType
			if override != sinkpb.OpUnspecified {
				op = override
			}
			ops[ri] = sinkpb.RowOp{OpType: op, Line: row.Line}
		}
		out[bi] = ops
	}
	return out, nil
}

// EncodeStreamChunk wraps a binary fixture in a single stream chunk
// payload, bytes unchanged. One binary fixture is always one batch.
func EncodeStreamChunk(data []byte) *sinkpb.StreamChunkPayload {
	return &sinkpb.StreamChunkPayload{BinaryData: data}
}
