// Package harness orchestrates one conformance run end to end: load the
// fixture, encode the payload, build the session, drive it over the
// stream, and optionally validate what the sink persisted.
package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/payload"
	"github.com/risingwavelabs/connector-harness/pkg/session"
	"github.com/risingwavelabs/connector-harness/pkg/stream"
	"github.com/risingwavelabs/connector-harness/pkg/validate"
)

// Options carries the per-invocation inputs shared by every scenario.
type Options struct {
	Endpoint        string
	Format          sinkpb.SinkPayloadFormat
	InputFile       string
	InputBinaryFile string

	// Conn, when set, is used instead of dialing Endpoint. Tests run
	// scenarios over bufconn this way.
	Conn grpc.ClientConnInterface

	Logger *slog.Logger
}

// Run executes one scenario. The first anomaly of any class — fixture,
// protocol, transport, validation — fails the run.
func Run(ctx context.Context, sc Scenario, opts Options) error {
	format := opts.Format
	if sc.ForceFormat != sinkpb.FormatUnspecified {
		format = sc.ForceFormat
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		"run_id", uuid.NewString(),
		"scenario", sc.Name,
		"format", format.String(),
	)

	cfg, err := session.NewConfig(sc.Props, sc.Schema)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	var p session.Payload
	switch format {
	case sinkpb.FormatJSON:
		fixture, err := payload.LoadJSONFixture(opts.InputFile)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		rowOps, err := payload.EncodeJSON(fixture, sc.Schema, sc.OpOverride)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		p.JSON = rowOps
	case sinkpb.FormatStreamChunk:
		data, err := payload.LoadBinaryFixture(opts.InputBinaryFile)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		p.Chunk = payload.EncodeStreamChunk(data)
	default:
		return fmt.Errorf("scenario %s: unsupported payload format %v", sc.Name, format)
	}

	sess, err := session.Build(cfg, format, p)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	logger.Info("session built", "requests", len(sess.Requests), "epochs", sess.Epochs())

	driver := stream.NewDriver(logger)
	if opts.Conn != nil {
		err = driver.RunConn(ctx, opts.Conn, sess)
	} else {
		err = driver.Run(ctx, opts.Endpoint, sess)
	}
	if err != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	if sc.ReadBack != nil {
		if err := validateRun(ctx, logger, sc, opts); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}

	logger.Info("scenario passed")
	return nil
}

// validateRun compares what the sink persisted against the JSON fixture.
// The fixture is the ground truth for both formats: the binary fixture is
// generated from the same rows.
func validateRun(ctx context.Context, logger *slog.Logger, sc Scenario, opts Options) error {
	fixture, err := payload.LoadJSONFixture(opts.InputFile)
	if err != nil {
		return err
	}
	expected, err := validate.ExpectedRows(fixture, sc.Schema)
	if err != nil {
		return err
	}
	actual, err := sc.ReadBack(ctx)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if err := validate.Compare(expected, actual); err != nil {
		logger.Error("validation failed",
			"error", err,
			"expected", "\n"+validate.RenderTable(sc.Schema, expected),
			"actual", "\n"+validate.RenderTable(sc.Schema, actual),
		)
		return fmt.Errorf("validation: %w", err)
	}
	logger.Info("validation passed", "rows", len(expected))
	return nil
}
