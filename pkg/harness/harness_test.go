package harness

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/mocksink"
	"github.com/risingwavelabs/connector-harness/pkg/validate"
)

// ── Test helpers ────────────────────────────────────────────────────

const fixtureJSON = `[
  [
    {"op_type": 1, "line": {"id": 1, "name": "Alice"}},
    {"op_type": 1, "line": {"id": 2, "name": "Bob"}}
  ],
  [
    {"op_type": 1, "line": {"id": 3, "name": "Clare"}}
  ]
]`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sink_input.json")
	if err := os.WriteFile(path, []byte(fixtureJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func serveMock(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := mocksink.NewGRPCServer(mocksink.New(slog.Default()))
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(sinkpb.Codec{})),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ── End to end against the mock sink ────────────────────────────────

func TestFileScenarioRoundTripsThroughMockSink(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.File.OutputPath = dir

	sc := cfg.FileScenario()
	sc.ReadBack = func(ctx context.Context) ([]validate.Row, error) {
		return validate.NewFileStore(mocksink.OutputFile(dir), sc.Schema).ReadRows(ctx)
	}

	err := Run(context.Background(), sc, Options{
		Format:    sinkpb.FormatJSON,
		InputFile: writeFixture(t),
		Conn:      serveMock(t),
	})
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
}

func TestRunSurfacesValidationMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.File.OutputPath = dir

	sc := cfg.FileScenario()
	sc.ReadBack = func(ctx context.Context) ([]validate.Row, error) {
		return []validate.Row{{int64(1), "Alice"}}, nil // two rows short
	}

	err := Run(context.Background(), sc, Options{
		Format:    sinkpb.FormatJSON,
		InputFile: writeFixture(t),
		Conn:      serveMock(t),
	})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "expected 3, got 1") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunSurfacesFixtureError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File.OutputPath = t.TempDir()

	err := Run(context.Background(), cfg.FileScenario(), Options{
		Format:    sinkpb.FormatJSON,
		InputFile: filepath.Join(t.TempDir(), "missing.json"),
		Conn:      serveMock(t),
	})
	if err == nil {
		t.Fatal("expected fixture error")
	}
	if !strings.Contains(err.Error(), "fixture") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ── Config ──────────────────────────────────────────────────────────

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	content := "endpoint: sink.internal:9999\njdbc:\n  table: orders\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Endpoint != "sink.internal:9999" {
		t.Fatalf("endpoint = %q", c.Endpoint)
	}
	if c.JDBC.Table != "orders" {
		t.Fatalf("jdbc table = %q", c.JDBC.Table)
	}
	// Untouched fields keep their defaults.
	if c.JDBC.URL != DefaultConfig().JDBC.URL {
		t.Fatalf("jdbc url = %q", c.JDBC.URL)
	}
	if c.File.OutputPath != "/tmp/connector" {
		t.Fatalf("file output path = %q", c.File.OutputPath)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	if err := os.WriteFile(path, []byte("endpont: oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected unknown field rejection")
	}
}

func TestConfigFormatMapping(t *testing.T) {
	c := DefaultConfig()
	if f, err := c.Format(); err != nil || f != sinkpb.FormatJSON {
		t.Fatalf("default format = %v, %v", f, err)
	}
	c.DataFormat = "stream_chunk"
	if f, err := c.Format(); err != nil || f != sinkpb.FormatStreamChunk {
		t.Fatalf("stream_chunk format = %v, %v", f, err)
	}
	c.DataFormat = "csv"
	if _, err := c.Format(); err == nil {
		t.Fatal("expected unknown format error")
	}
}

// ── Scenario property sets ──────────────────────────────────────────

func TestScenarioPropertyMapsMatchConnectorContracts(t *testing.T) {
	c := DefaultConfig()

	jdbc := c.JDBCScenario()
	m := jdbc.Props.Map()
	if m["jdbc.url"] != c.JDBC.URL || m["table.name"] != "test" {
		t.Fatalf("jdbc properties: %v", m)
	}

	ice := c.IcebergScenario()
	m = ice.Props.Map()
	if m["type"] != "append-only" || m["warehouse.path"] != "s3a://bucket" {
		t.Fatalf("iceberg properties: %v", m)
	}

	up := c.UpsertIcebergScenario()
	if up.Props.Map()["type"] != "upsert" {
		t.Fatalf("upsert iceberg properties: %v", up.Props.Map())
	}
	if up.OpOverride != sinkpb.OpUnspecified {
		t.Fatal("upsert scenario must pass fixture op types through")
	}

	dl := c.DeltaLakeScenario()
	if dl.Props.Map()["location"] != "s3a://bucket/delta" {
		t.Fatalf("deltalake properties: %v", dl.Props.Map())
	}

	sc := c.StreamChunkFormatScenario()
	if len(sc.Schema.Columns) != 7 {
		t.Fatalf("stream chunk schema has %d columns", len(sc.Schema.Columns))
	}
}
