package session

import (
	"testing"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/schema"
)

// ── Test helpers ────────────────────────────────────────────────────

func testConfig(t *testing.T) Config {
	t.Helper()
	s, err := schema.New([]schema.Column{
		{Name: "id", Type: sinkpb.TypeInt32},
		{Name: "name", Type: sinkpb.TypeVarchar},
	}, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := NewConfig(FileProperties{OutputPath: t.TempDir()}, s)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func jsonBatches(n int) [][]sinkpb.RowOp {
	batches := make([][]sinkpb.RowOp, n)
	for i := range batches {
		batches[i] = []sinkpb.RowOp{{OpType: sinkpb.OpInsert, Line: `{"id":1,"name":"a"}`}}
	}
	return batches
}

// ── Config ──────────────────────────────────────────────────────────

func TestNewConfigValidatesProperties(t *testing.T) {
	s, _ := schema.New([]schema.Column{{Name: "id", Type: sinkpb.TypeInt32}}, nil)
	if _, err := NewConfig(FileProperties{}, s); err == nil {
		t.Fatal("expected empty output path to fail")
	}
	if _, err := NewConfig(JDBCProperties{URL: "jdbc:postgresql://h/db"}, s); err == nil {
		t.Fatal("expected missing table name to fail")
	}
	if _, err := NewConfig(IcebergProperties{Mode: "overwrite"}, s); err == nil {
		t.Fatal("expected bad iceberg mode to fail")
	}
	if _, err := NewConfig(FileProperties{OutputPath: "/tmp/out"}, nil); err == nil {
		t.Fatal("expected missing schema to fail")
	}
}

func TestConfigProto(t *testing.T) {
	cfg := testConfig(t)
	p := cfg.Proto()
	if p.ConnectorType != "file" {
		t.Fatalf("connector type = %q, want file", p.ConnectorType)
	}
	if _, ok := p.Properties["output.path"]; !ok {
		t.Fatalf("output.path missing from properties: %v", p.Properties)
	}
	if p.TableSchema == nil || len(p.TableSchema.Columns) != 2 {
		t.Fatalf("table schema not carried: %+v", p.TableSchema)
	}
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindFile, KindJDBC, KindElasticsearch, KindIceberg, KindDeltaLake} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != k {
			t.Fatalf("ParseKind(%q) = %v", k.String(), got)
		}
	}
	if _, err := ParseKind("kafka"); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}

// ── Build ───────────────────────────────────────────────────────────

func TestBuildJSONSessionShape(t *testing.T) {
	const n = 3
	sess, err := Build(testConfig(t), sinkpb.FormatJSON, Payload{JSON: jsonBatches(n)})
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Requests) != 1+3*n {
		t.Fatalf("got %d requests, want %d", len(sess.Requests), 1+3*n)
	}
	if sess.Epochs() != n {
		t.Fatalf("got %d epochs, want %d", sess.Epochs(), n)
	}

	start := sess.Requests[0].Start
	if start == nil || start.Format != sinkpb.FormatJSON {
		t.Fatalf("first request is not a JSON StartSink: %+v", sess.Requests[0])
	}

	for e := 0; e < n; e++ {
		base := 1 + 3*e
		se := sess.Requests[base].StartEpoch
		w := sess.Requests[base+1].Write
		sy := sess.Requests[base+2].Sync
		if se == nil || w == nil || sy == nil {
			t.Fatalf("epoch %d: triple not in StartEpoch/Write/Sync order", e)
		}
		if se.Epoch != uint64(e) || w.Epoch != uint64(e) || sy.Epoch != uint64(e) {
			t.Fatalf("epoch %d: epochs drifted: %d/%d/%d", e, se.Epoch, w.Epoch, sy.Epoch)
		}
		if w.BatchID != uint64(e)+1 {
			t.Fatalf("epoch %d: batch id = %d, want %d", e, w.BatchID, e+1)
		}
		if w.JsonPayload == nil || w.StreamChunkPayload != nil {
			t.Fatalf("epoch %d: wrong payload variant", e)
		}
	}
}

func TestBuildStreamChunkSingleTriple(t *testing.T) {
	blob := make([]byte, 37)
	sess, err := Build(testConfig(t), sinkpb.FormatStreamChunk,
		Payload{Chunk: &sinkpb.StreamChunkPayload{BinaryData: blob}})
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Requests) != 4 {
		t.Fatalf("got %d requests, want 4", len(sess.Requests))
	}
	w := sess.Requests[2].Write
	if w == nil || w.BatchID != 1 || w.Epoch != 0 {
		t.Fatalf("unexpected write: %+v", w)
	}
	if w.StreamChunkPayload == nil || len(w.StreamChunkPayload.BinaryData) != 37 {
		t.Fatalf("chunk payload not carried verbatim: %+v", w)
	}
}

func TestBuildSingleRowScenario(t *testing.T) {
	// One batch, one row, op override already applied by the encoder.
	sess, err := Build(testConfig(t), sinkpb.FormatJSON, Payload{JSON: jsonBatches(1)})
	if err != nil {
		t.Fatal(err)
	}
	if sess.Epochs() != 1 {
		t.Fatalf("got %d epochs, want 1", sess.Epochs())
	}
	w := sess.Requests[2].Write
	if w.Epoch != 0 || w.BatchID != 1 {
		t.Fatalf("epoch/batch = %d/%d, want 0/1", w.Epoch, w.BatchID)
	}
	if len(w.JsonPayload.RowOps) != 1 || w.JsonPayload.RowOps[0].OpType != sinkpb.OpInsert {
		t.Fatalf("unexpected row ops: %+v", w.JsonPayload.RowOps)
	}
}

func TestBuildFormatMismatchIsFatal(t *testing.T) {
	cfg := testConfig(t)
	if _, err := Build(cfg, sinkpb.FormatJSON, Payload{Chunk: &sinkpb.StreamChunkPayload{}}); err == nil {
		t.Fatal("expected JSON format with chunk payload to fail")
	}
	if _, err := Build(cfg, sinkpb.FormatStreamChunk, Payload{JSON: jsonBatches(1)}); err == nil {
		t.Fatal("expected STREAM_CHUNK format with JSON payload to fail")
	}
	if _, err := Build(cfg, sinkpb.FormatUnspecified, Payload{JSON: jsonBatches(1)}); err == nil {
		t.Fatal("expected unspecified format to fail")
	}
	if _, err := Build(cfg, sinkpb.FormatJSON, Payload{JSON: jsonBatches(1), Chunk: &sinkpb.StreamChunkPayload{}}); err == nil {
		t.Fatal("expected double payload to fail")
	}
}
