package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
)

// Config holds the endpoint, fixture paths and per-connector targets of
// a harness run. Defaults match a local connector node with its usual
// companion services; a YAML file overrides fields selectively.
type Config struct {
	Endpoint        string `yaml:"endpoint"`
	DataFormat      string `yaml:"data_format"`
	InputFile       string `yaml:"input_file"`
	InputBinaryFile string `yaml:"input_binary_file"`

	File struct {
		OutputPath string `yaml:"output_path"`
	} `yaml:"file"`

	JDBC struct {
		URL   string `yaml:"url"`
		Table string `yaml:"table"`
	} `yaml:"jdbc"`

	Elasticsearch struct {
		URL   string `yaml:"url"`
		Index string `yaml:"index"`
	} `yaml:"elasticsearch"`

	Iceberg struct {
		WarehousePath string `yaml:"warehouse_path"`
		S3Endpoint    string `yaml:"s3_endpoint"`
		S3AccessKey   string `yaml:"s3_access_key"`
		S3SecretKey   string `yaml:"s3_secret_key"`
		Database      string `yaml:"database"`
		Table         string `yaml:"table"`
	} `yaml:"iceberg"`

	DeltaLake struct {
		Location    string `yaml:"location"`
		S3Endpoint  string `yaml:"s3_endpoint"`
		S3AccessKey string `yaml:"s3_access_key"`
		S3SecretKey string `yaml:"s3_secret_key"`
	} `yaml:"deltalake"`
}

// DefaultConfig returns the local-stack defaults.
func DefaultConfig() Config {
	var c Config
	c.Endpoint = "localhost:50051"
	c.DataFormat = "json"
	c.InputFile = "./data/sink_input.json"
	c.InputBinaryFile = "./data/sink_input"
	c.File.OutputPath = "/tmp/connector"
	c.JDBC.URL = "jdbc:postgresql://localhost:5432/test?user=test&password=connector"
	c.JDBC.Table = "test"
	c.Elasticsearch.URL = "http://127.0.0.1:9200"
	c.Elasticsearch.Index = "test"
	c.Iceberg.WarehousePath = "s3a://bucket"
	c.Iceberg.S3Endpoint = "http://127.0.0.1:9000"
	c.Iceberg.S3AccessKey = "minioadmin"
	c.Iceberg.S3SecretKey = "minioadmin"
	c.Iceberg.Database = "demo_db"
	c.Iceberg.Table = "demo_table"
	c.DeltaLake.Location = "s3a://bucket/delta"
	c.DeltaLake.S3Endpoint = "127.0.0.1:9000"
	c.DeltaLake.S3AccessKey = "minioadmin"
	c.DeltaLake.S3SecretKey = "minioadmin"
	return c
}

// LoadConfig reads a YAML file over the defaults. Unknown fields are
// rejected so a typo never silently falls back to a default.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Format maps the configured data format tag to the wire enum.
func (c Config) Format() (sinkpb.SinkPayloadFormat, error) {
	switch c.DataFormat {
	case "json":
		return sinkpb.FormatJSON, nil
	case "stream_chunk":
		return sinkpb.FormatStreamChunk, nil
	default:
		return 0, fmt.Errorf("unknown data format %q (want json or stream_chunk)", c.DataFormat)
	}
}
