// Command sink-harness drives conformance scenarios against a sink
// connector service over its bidirectional stream protocol.
//
// Scenario flags select which connectors to exercise; a run executes
// every selected scenario in order and exits non-zero on the first
// failure of any kind.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/risingwavelabs/connector-harness/pkg/harness"
)

func main() {
	fileSink := flag.Bool("file-sink", false, "run the file sink scenario")
	jdbcSink := flag.Bool("jdbc-sink", false, "run the jdbc sink scenario (validates via the database)")
	esSink := flag.Bool("es-sink", false, "run the elasticsearch sink scenario")
	icebergSink := flag.Bool("iceberg-sink", false, "run the append-only iceberg sink scenario")
	upsertIceberg := flag.Bool("upsert-iceberg-sink", false, "run the upsert iceberg sink scenario")
	deltalakeSink := flag.Bool("deltalake-sink", false, "run the deltalake sink scenario")
	chunkFormat := flag.Bool("stream-chunk-format-test", false, "run the stream chunk format scenario (all column types)")

	endpoint := flag.String("endpoint", "", "connector service address (overrides config)")
	dataFormat := flag.String("data-format", "", "payload format: json or stream_chunk (overrides config)")
	inputFile := flag.String("input-file", "", "JSON fixture path (overrides config)")
	inputBinaryFile := flag.String("input-binary-file", "", "binary fixture path (overrides config)")
	configPath := flag.String("config", "", "YAML config file (optional)")
	flag.Parse()

	cfg := harness.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = harness.LoadConfig(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *dataFormat != "" {
		cfg.DataFormat = *dataFormat
	}
	if *inputFile != "" {
		cfg.InputFile = *inputFile
	}
	if *inputBinaryFile != "" {
		cfg.InputBinaryFile = *inputBinaryFile
	}

	format, err := cfg.Format()
	if err != nil {
		slog.Error("invalid data format", "error", err)
		os.Exit(1)
	}

	var scenarios []harness.Scenario
	if *fileSink {
		scenarios = append(scenarios, cfg.FileScenario())
	}
	if *jdbcSink {
		scenarios = append(scenarios, cfg.JDBCScenario())
	}
	if *esSink {
		scenarios = append(scenarios, cfg.ElasticsearchScenario())
	}
	if *icebergSink {
		scenarios = append(scenarios, cfg.IcebergScenario())
	}
	if *upsertIceberg {
		scenarios = append(scenarios, cfg.UpsertIcebergScenario())
	}
	if *deltalakeSink {
		scenarios = append(scenarios, cfg.DeltaLakeScenario())
	}
	if *chunkFormat {
		scenarios = append(scenarios, cfg.StreamChunkFormatScenario())
	}
	if len(scenarios) == 0 {
		slog.Error("no scenario selected; pass at least one scenario flag")
		os.Exit(1)
	}

	opts := harness.Options{
		Endpoint:        cfg.Endpoint,
		Format:          format,
		InputFile:       cfg.InputFile,
		InputBinaryFile: cfg.InputBinaryFile,
	}

	slog.Info("starting sink harness",
		"endpoint", cfg.Endpoint,
		"format", format.String(),
		"scenarios", len(scenarios),
	)

	ctx := context.Background()
	for _, sc := range scenarios {
		if err := harness.Run(ctx, sc, opts); err != nil {
			slog.Error("scenario failed", "scenario", sc.Name, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("all scenarios passed")
}
