// Package schema describes sink table schemas and validates row payloads
// against them before anything reaches the wire.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
)

// Column is one table column: a name and a wire data type.
type Column struct {
	Name string
	Type sinkpb.DataType
}

// TableSchema is an ordered column list plus the positions of the
// primary-key columns. Construct with New so the invariants hold.
type TableSchema struct {
	Columns   []Column
	PKIndices []int
}

// New builds a TableSchema and validates it: every pk index in bounds,
// no duplicate pk indices, no duplicate or empty column names.
func New(columns []Column, pkIndices []int) (*TableSchema, error) {
	s := &TableSchema{Columns: columns, PKIndices: pkIndices}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the schema invariants.
func (s *TableSchema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	names := make(map[string]bool, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has empty name", i)
		}
		if names[c.Name] {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		names[c.Name] = true
	}
	seen := make(map[int]bool, len(s.PKIndices))
	for _, idx := range s.PKIndices {
		if idx < 0 || idx >= len(s.Columns) {
			return fmt.Errorf("pk index %d out of bounds (have %d columns)", idx, len(s.Columns))
		}
		if seen[idx] {
			return fmt.Errorf("duplicate pk index %d", idx)
		}
		seen[idx] = true
	}
	return nil
}

// PKColumns returns the primary-key column names in pk-index order.
func (s *TableSchema) PKColumns() []string {
	cols := make([]string, len(s.PKIndices))
	for i, idx := range s.PKIndices {
		cols[i] = s.Columns[idx].Name
	}
	return cols
}

// Proto converts the schema to its wire representation.
func (s *TableSchema) Proto() *sinkpb.TableSchema {
	out := &sinkpb.TableSchema{
		Columns:   make([]sinkpb.Column, len(s.Columns)),
		PkIndices: make([]uint32, len(s.PKIndices)),
	}
	for i, c := range s.Columns {
		out.Columns[i] = sinkpb.Column{Name: c.Name, DataType: c.Type}
	}
	for i, idx := range s.PKIndices {
		out.PkIndices[i] = uint32(idx)
	}
	return out
}

// ValidateLine checks that a row's line is a JSON object holding exactly
// the schema's columns with plausibly-typed values. A mismatch here is a
// fixture error and fails the run before the row is ever sent.
func (s *TableSchema) ValidateLine(line string) error {
	var row map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &row); err != nil {
		return fmt.Errorf("row is not a JSON object: %w", err)
	}
	for _, c := range s.Columns {
		raw, ok := row[c.Name]
		if !ok {
			return fmt.Errorf("row is missing column %q", c.Name)
		}
		if err := checkValueType(c.Type, raw); err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
	}
	for name := range row {
		if !s.hasColumn(name) {
			return fmt.Errorf("row has extra column %q", name)
		}
	}
	return nil
}

func (s *TableSchema) hasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func checkValueType(t sinkpb.DataType, raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if v == nil {
		return nil // nullable
	}
	switch t {
	case sinkpb.TypeInt16, sinkpb.TypeInt32, sinkpb.TypeInt64, sinkpb.TypeFloat, sinkpb.TypeDouble:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("expected %s value, got %T", t, v)
		}
	case sinkpb.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected BOOLEAN value, got %T", v)
		}
	case sinkpb.TypeVarchar:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected VARCHAR value, got %T", v)
		}
	default:
		return fmt.Errorf("unsupported data type %d", int32(t))
	}
	return nil
}
