package session

import "fmt"

// Kind is the closed set of connector targets the harness can drive.
type Kind int

const (
	KindFile Kind = iota
	KindJDBC
	KindElasticsearch
	KindIceberg
	KindDeltaLake
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindJDBC:
		return "jdbc"
	case KindElasticsearch:
		return "elasticsearch"
	case KindIceberg:
		return "iceberg"
	case KindDeltaLake:
		return "deltalake"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a connector type tag to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "jdbc":
		return KindJDBC, nil
	case "elasticsearch":
		return KindElasticsearch, nil
	case "iceberg":
		return KindIceberg, nil
	case "deltalake":
		return KindDeltaLake, nil
	default:
		return 0, fmt.Errorf("unknown connector type %q", s)
	}
}

// Properties is the typed property set of one connector kind. Each kind
// carries its own struct, validated at construction; the string map only
// exists at the wire boundary.
type Properties interface {
	Kind() Kind
	Validate() error
	Map() map[string]string
}

// FileProperties configures the file connector.
type FileProperties struct {
	OutputPath string
}

func (FileProperties) Kind() Kind { return KindFile }

func (p FileProperties) Validate() error {
	if p.OutputPath == "" {
		return fmt.Errorf("file connector: output path is required")
	}
	return nil
}

func (p FileProperties) Map() map[string]string {
	return map[string]string{"output.path": p.OutputPath}
}

// JDBCProperties configures the jdbc connector.
type JDBCProperties struct {
	URL   string // jdbc:postgresql://host:port/db?user=…&password=…
	Table string
}

func (JDBCProperties) Kind() Kind { return KindJDBC }

func (p JDBCProperties) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("jdbc connector: url is required")
	}
	if p.Table == "" {
		return fmt.Errorf("jdbc connector: table name is required")
	}
	return nil
}

func (p JDBCProperties) Map() map[string]string {
	return map[string]string{
		"jdbc.url":   p.URL,
		"table.name": p.Table,
	}
}

// ElasticsearchProperties configures the elasticsearch connector.
type ElasticsearchProperties struct {
	URL   string
	Index string
}

func (ElasticsearchProperties) Kind() Kind { return KindElasticsearch }

func (p ElasticsearchProperties) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("elasticsearch connector: url is required")
	}
	if p.Index == "" {
		return fmt.Errorf("elasticsearch connector: index is required")
	}
	return nil
}

func (p ElasticsearchProperties) Map() map[string]string {
	return map[string]string{
		"url":   p.URL,
		"index": p.Index,
	}
}

// IcebergProperties configures the iceberg connector. Mode is either
// "append-only" or "upsert".
type IcebergProperties struct {
	Mode          string
	WarehousePath string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	Database      string
	Table         string
}

func (IcebergProperties) Kind() Kind { return KindIceberg }

func (p IcebergProperties) Validate() error {
	if p.Mode != "append-only" && p.Mode != "upsert" {
		return fmt.Errorf("iceberg connector: mode must be append-only or upsert, got %q", p.Mode)
	}
	if p.WarehousePath == "" {
		return fmt.Errorf("iceberg connector: warehouse path is required")
	}
	if p.Database == "" || p.Table == "" {
		return fmt.Errorf("iceberg connector: database and table names are required")
	}
	return nil
}

func (p IcebergProperties) Map() map[string]string {
	return map[string]string{
		"type":           p.Mode,
		"warehouse.path": p.WarehousePath,
		"s3.endpoint":    p.S3Endpoint,
		"s3.access.key":  p.S3AccessKey,
		"s3.secret.key":  p.S3SecretKey,
		"database.name":  p.Database,
		"table.name":     p.Table,
	}
}

// DeltaLakeProperties configures the deltalake connector.
type DeltaLakeProperties struct {
	Location    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

func (DeltaLakeProperties) Kind() Kind { return KindDeltaLake }

func (p DeltaLakeProperties) Validate() error {
	if p.Location == "" {
		return fmt.Errorf("deltalake connector: location is required")
	}
	return nil
}

func (p DeltaLakeProperties) Map() map[string]string {
	return map[string]string{
		"location":      p.Location,
		"s3.endpoint":   p.S3Endpoint,
		"s3.access.key": p.S3AccessKey,
		"s3.secret.key": p.S3SecretKey,
	}
}
