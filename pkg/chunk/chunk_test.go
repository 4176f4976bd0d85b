package chunk

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/payload"
	"github.com/risingwavelabs/connector-harness/pkg/schema"
)

// ── Test helpers ────────────────────────────────────────────────────

func wideSchema(t *testing.T) *schema.TableSchema {
	t.Helper()
	s, err := schema.New([]schema.Column{
		{Name: "v1", Type: sinkpb.TypeInt16},
		{Name: "v2", Type: sinkpb.TypeInt32},
		{Name: "v3", Type: sinkpb.TypeInt64},
		{Name: "v4", Type: sinkpb.TypeFloat},
		{Name: "v5", Type: sinkpb.TypeDouble},
		{Name: "v6", Type: sinkpb.TypeBoolean},
		{Name: "v7", Type: sinkpb.TypeVarchar},
	}, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func wideBatch() payload.FixtureBatch {
	return payload.FixtureBatch{
		{OpType: sinkpb.OpInsert, Line: `{"v1":1,"v2":2,"v3":3,"v4":4.5,"v5":5.5,"v6":true,"v7":"a"}`},
		{OpType: sinkpb.OpInsert, Line: `{"v1":10,"v2":20,"v3":30,"v4":40.5,"v5":50.5,"v6":false,"v7":"b"}`},
	}
}

// ── Record building ─────────────────────────────────────────────────

func TestBuildRecordMapsAllColumnTypes(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	rec, err := BuildRecord(alloc, wideSchema(t), wideBatch())
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Release()

	if rec.NumRows() != 2 || rec.NumCols() != 7 {
		t.Fatalf("record is %dx%d, want 2x7", rec.NumRows(), rec.NumCols())
	}
	if got := rec.Column(2).(*array.Int64).Value(1); got != 30 {
		t.Fatalf("v3[1] = %d, want 30", got)
	}
	if got := rec.Column(6).(*array.String).Value(0); got != "a" {
		t.Fatalf("v7[0] = %q, want a", got)
	}
	if got := rec.Column(5).(*array.Boolean).Value(1); got {
		t.Fatal("v6[1] should be false")
	}
}

func TestBuildRecordAppendsNullForMissingValue(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	s, err := schema.New([]schema.Column{
		{Name: "id", Type: sinkpb.TypeInt32},
		{Name: "name", Type: sinkpb.TypeVarchar},
	}, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := BuildRecord(alloc, s, payload.FixtureBatch{
		{OpType: sinkpb.OpInsert, Line: `{"id":1,"name":null}`},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Release()

	if !rec.Column(1).IsNull(0) {
		t.Fatal("null value should produce a null cell")
	}
}

func TestBuildRecordRejectsTypeMismatch(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	s, err := schema.New([]schema.Column{{Name: "id", Type: sinkpb.TypeInt32}}, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	_, err = BuildRecord(alloc, s, payload.FixtureBatch{
		{OpType: sinkpb.OpInsert, Line: `{"id":"oops"}`},
	})
	if err == nil {
		t.Fatal("string in an integer column must be rejected")
	}
}

// ── IPC stream round trip ───────────────────────────────────────────

func TestEncodeStreamRoundTrips(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	s := wideSchema(t)
	rec, err := BuildRecord(alloc, s, wideBatch())
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Release()

	data, err := EncodeStream(rec)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty stream")
	}

	recs, err := DecodeStream(alloc, data)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	if len(recs) != 1 {
		t.Fatalf("decoded %d records, want 1", len(recs))
	}
	got := recs[0]
	if got.NumRows() != rec.NumRows() || got.NumCols() != rec.NumCols() {
		t.Fatalf("decoded record is %dx%d, want %dx%d",
			got.NumRows(), got.NumCols(), rec.NumRows(), rec.NumCols())
	}
	if got.Column(3).(*array.Float32).Value(1) != 40.5 {
		t.Fatal("float column did not survive the round trip")
	}
}

func TestArrowSchemaColumnOrder(t *testing.T) {
	as, err := ArrowSchema(wideSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if as.NumFields() != 7 {
		t.Fatalf("got %d fields", as.NumFields())
	}
	if as.Field(0).Type.ID() != arrow.INT16 || as.Field(6).Type.ID() != arrow.STRING {
		t.Fatalf("unexpected field types: %v", as)
	}
}
