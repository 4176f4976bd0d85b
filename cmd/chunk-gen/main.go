// Command chunk-gen turns a JSON sink fixture into a binary stream-chunk
// fixture: one Arrow IPC stream per run, all fixture batches flattened
// into a single record.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/risingwavelabs/connector-harness/pkg/chunk"
	"github.com/risingwavelabs/connector-harness/pkg/harness"
	"github.com/risingwavelabs/connector-harness/pkg/payload"
)

func main() {
	input := flag.String("input", "./data/sink_input.json", "JSON fixture to convert")
	output := flag.String("output", "./data/sink_input", "binary fixture to write")
	wide := flag.Bool("wide-schema", false, "use the all-types schema instead of id/name")
	flag.Parse()

	schema := harness.DefaultSchema()
	if *wide {
		schema = harness.StreamChunkSchema()
	}

	batches, err := payload.LoadJSONFixture(*input)
	if err != nil {
		slog.Error("failed to load fixture", "error", err)
		os.Exit(1)
	}
	var flat payload.FixtureBatch
	for _, b := range batches {
		flat = append(flat, b...)
	}

	rec, err := chunk.BuildRecord(memory.DefaultAllocator, schema, flat)
	if err != nil {
		slog.Error("failed to build record", "error", err)
		os.Exit(1)
	}
	defer rec.Release()

	data, err := chunk.EncodeStream(rec)
	if err != nil {
		slog.Error("failed to encode stream", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		slog.Error("failed to write output", "path", *output, "error", err)
		os.Exit(1)
	}

	slog.Info("wrote binary fixture",
		"path", *output,
		"rows", rec.NumRows(),
		"columns", rec.NumCols(),
		"bytes", len(data),
	)
}
