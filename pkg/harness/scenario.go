package harness

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/schema"
	"github.com/risingwavelabs/connector-harness/pkg/session"
	"github.com/risingwavelabs/connector-harness/pkg/validate"
)

// Scenario is one connector conformance run: a property set, the table
// schema the fixture rows follow, and an optional read-back hook for
// post-run validation.
type Scenario struct {
	Name   string
	Props  session.Properties
	Schema *schema.TableSchema

	// OpOverride, when not OpUnspecified, replaces every fixture row's
	// op type in JSON format runs.
	OpOverride sinkpb.Op

	// ForceFormat, when set, overrides the invocation's payload format.
	ForceFormat sinkpb.SinkPayloadFormat

	// ReadBack re-reads the rows the sink persisted, in deterministic
	// order. Nil disables validation for the scenario.
	ReadBack func(ctx context.Context) ([]validate.Row, error)
}

func mustSchema(columns []schema.Column, pk []int) *schema.TableSchema {
	s, err := schema.New(columns, pk)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSchema is the two-column id/name table every row-oriented
// scenario writes.
func DefaultSchema() *schema.TableSchema {
	return mustSchema([]schema.Column{
		{Name: "id", Type: sinkpb.TypeInt32},
		{Name: "name", Type: sinkpb.TypeVarchar},
	}, []int{0})
}

// StreamChunkSchema is the seven-column all-types table used by the
// stream chunk format scenario.
func StreamChunkSchema() *schema.TableSchema {
	return mustSchema([]schema.Column{
		{Name: "v1", Type: sinkpb.TypeInt16},
		{Name: "v2", Type: sinkpb.TypeInt32},
		{Name: "v3", Type: sinkpb.TypeInt64},
		{Name: "v4", Type: sinkpb.TypeFloat},
		{Name: "v5", Type: sinkpb.TypeDouble},
		{Name: "v6", Type: sinkpb.TypeBoolean},
		{Name: "v7", Type: sinkpb.TypeVarchar},
	}, []int{0})
}

// FileScenario drives the file connector. The file connector's output
// layout is its own business, so the scenario does not read back.
func (c Config) FileScenario() Scenario {
	return Scenario{
		Name:       "file",
		Props:      session.FileProperties{OutputPath: c.File.OutputPath},
		Schema:     DefaultSchema(),
		OpOverride: sinkpb.OpInsert,
	}
}

// JDBCScenario drives the jdbc connector and validates by selecting the
// sink table back through the same database.
func (c Config) JDBCScenario() Scenario {
	props := session.JDBCProperties{URL: c.JDBC.URL, Table: c.JDBC.Table}
	s := DefaultSchema()
	return Scenario{
		Name:       "jdbc",
		Props:      props,
		Schema:     s,
		OpOverride: sinkpb.OpInsert,
		ReadBack: func(ctx context.Context) ([]validate.Row, error) {
			dsn, err := validate.PostgresDSNFromJDBC(props.URL)
			if err != nil {
				return nil, err
			}
			db, err := sql.Open("pgx", dsn)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", dsn, err)
			}
			defer db.Close()
			store, err := validate.NewSQLStore(db, props.Table, s, nil)
			if err != nil {
				return nil, err
			}
			return store.ReadRows(ctx)
		},
	}
}

// ElasticsearchScenario drives the elasticsearch connector.
func (c Config) ElasticsearchScenario() Scenario {
	return Scenario{
		Name:       "elasticsearch",
		Props:      session.ElasticsearchProperties{URL: c.Elasticsearch.URL, Index: c.Elasticsearch.Index},
		Schema:     DefaultSchema(),
		OpOverride: sinkpb.OpInsert,
	}
}

// IcebergScenario drives the iceberg connector in append-only mode.
func (c Config) IcebergScenario() Scenario {
	return Scenario{
		Name:       "iceberg",
		Props:      c.icebergProps("append-only"),
		Schema:     DefaultSchema(),
		OpOverride: sinkpb.OpInsert,
	}
}

// UpsertIcebergScenario drives the iceberg connector in upsert mode.
// Fixture op types pass through so deletes and updates are exercised.
func (c Config) UpsertIcebergScenario() Scenario {
	return Scenario{
		Name:   "upsert-iceberg",
		Props:  c.icebergProps("upsert"),
		Schema: DefaultSchema(),
	}
}

func (c Config) icebergProps(mode string) session.IcebergProperties {
	return session.IcebergProperties{
		Mode:          mode,
		WarehousePath: c.Iceberg.WarehousePath,
		S3Endpoint:    c.Iceberg.S3Endpoint,
		S3AccessKey:   c.Iceberg.S3AccessKey,
		S3SecretKey:   c.Iceberg.S3SecretKey,
		Database:      c.Iceberg.Database,
		Table:         c.Iceberg.Table,
	}
}

// DeltaLakeScenario drives the deltalake connector.
func (c Config) DeltaLakeScenario() Scenario {
	return Scenario{
		Name: "deltalake",
		Props: session.DeltaLakeProperties{
			Location:    c.DeltaLake.Location,
			S3Endpoint:  c.DeltaLake.S3Endpoint,
			S3AccessKey: c.DeltaLake.S3AccessKey,
			S3SecretKey: c.DeltaLake.S3SecretKey,
		},
		Schema:     DefaultSchema(),
		OpOverride: sinkpb.OpInsert,
	}
}

// StreamChunkFormatScenario drives the file connector with the
// all-types schema. It always runs in stream chunk format.
func (c Config) StreamChunkFormatScenario() Scenario {
	return Scenario{
		Name:        "stream-chunk-format",
		Props:       session.FileProperties{OutputPath: c.File.OutputPath},
		Schema:      StreamChunkSchema(),
		ForceFormat: sinkpb.FormatStreamChunk,
	}
}
