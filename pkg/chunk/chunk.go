// Package chunk builds binary stream-chunk fixtures as Arrow IPC
// streams. The harness treats chunk payloads as opaque bytes on the
// wire; this package is how those bytes get produced from a JSON
// fixture in the first place.
package chunk

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/payload"
	"github.com/risingwavelabs/connector-harness/pkg/schema"
)

// ArrowSchema converts a sink table schema to an Arrow schema. All
// columns are nullable.
func ArrowSchema(s *schema.TableSchema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(s.Columns))
	for i, c := range s.Columns {
		dt, err := arrowType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func arrowType(t sinkpb.DataType) (arrow.DataType, error) {
	switch t {
	case sinkpb.TypeInt16:
		return arrow.PrimitiveTypes.Int16, nil
	case sinkpb.TypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case sinkpb.TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case sinkpb.TypeFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case sinkpb.TypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case sinkpb.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case sinkpb.TypeVarchar:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, fmt.Errorf("unsupported data type %v", t)
	}
}

// BuildRecord turns one fixture batch into an Arrow record following the
// schema's column order. The caller is responsible for releasing the
// returned Record.
func BuildRecord(alloc memory.Allocator, s *schema.TableSchema, batch payload.FixtureBatch) (arrow.Record, error) {
	arrowSchema, err := ArrowSchema(s)
	if err != nil {
		return nil, err
	}

	builders := make([]array.Builder, len(s.Columns))
	for i, f := range arrowSchema.Fields() {
		builders[i] = array.NewBuilder(alloc, f.Type)
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for ri, fr := range batch {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(fr.Line), &obj); err != nil {
			return nil, fmt.Errorf("row %d: %w", ri, err)
		}
		for ci, col := range s.Columns {
			v, ok := obj[col.Name]
			if !ok || v == nil {
				builders[ci].AppendNull()
				continue
			}
			if err := appendValue(builders[ci], col.Type, v); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", ri, col.Name, err)
			}
		}
	}

	arrays := make([]arrow.Array, len(builders))
	for i, b := range builders {
		arrays[i] = b.NewArray()
	}
	rec := array.NewRecord(arrowSchema, arrays, int64(len(batch)))
	for _, a := range arrays {
		a.Release()
	}
	return rec, nil
}

func appendValue(bldr array.Builder, t sinkpb.DataType, v interface{}) error {
	switch b := bldr.(type) {
	case *array.Int16Builder:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		b.Append(int16(n))
	case *array.Int32Builder:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		b.Append(int32(n))
	case *array.Int64Builder:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		b.Append(int64(n))
	case *array.Float32Builder:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		b.Append(float32(n))
	case *array.Float64Builder:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		b.Append(n)
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
		b.Append(x)
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		b.Append(s)
	default:
		return fmt.Errorf("unsupported builder for %v", t)
	}
	return nil
}

// EncodeStream serializes a record as a single-batch Arrow IPC stream.
func EncodeStream(rec arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close stream: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeStream reads every record back out of an Arrow IPC stream. The
// caller is responsible for releasing the returned Records.
func DecodeStream(alloc memory.Allocator, data []byte) ([]arrow.Record, error) {
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(alloc))
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer r.Release()

	var recs []arrow.Record
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if r.Err() != nil {
		for _, rec := range recs {
			rec.Release()
		}
		return nil, fmt.Errorf("read stream: %w", r.Err())
	}
	return recs, nil
}
