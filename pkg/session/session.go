// Package session assembles the ordered request sequence of one sink
// stream run: a Start, then one StartEpoch/Write/Sync triple per epoch.
package session

import (
	"fmt"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/schema"
)

// Config selects the connector under test and the table it writes.
// Immutable for the duration of one session.
type Config struct {
	Properties Properties
	Schema     *schema.TableSchema
}

// NewConfig validates the property set and schema together.
func NewConfig(props Properties, s *schema.TableSchema) (Config, error) {
	if props == nil {
		return Config{}, fmt.Errorf("sink config: properties are required")
	}
	if err := props.Validate(); err != nil {
		return Config{}, fmt.Errorf("sink config: %w", err)
	}
	if s == nil {
		return Config{}, fmt.Errorf("sink config: table schema is required")
	}
	if err := s.Validate(); err != nil {
		return Config{}, fmt.Errorf("sink config: %w", err)
	}
	return Config{Properties: props, Schema: s}, nil
}

// Kind returns the configured connector kind.
func (c Config) Kind() Kind { return c.Properties.Kind() }

// Proto converts the config to its wire representation.
func (c Config) Proto() *sinkpb.SinkConfig {
	return &sinkpb.SinkConfig{
		ConnectorType: c.Kind().String(),
		Properties:    c.Properties.Map(),
		TableSchema:   c.Schema.Proto(),
	}
}

// Payload is the encoded payload source for one session: either JSON
// row-op batches or a single opaque stream chunk, never both.
type Payload struct {
	JSON  [][]sinkpb.RowOp
	Chunk *sinkpb.StreamChunkPayload
}

// Session is the full ordered request list of one run. Built once per
// invocation, consumed by the stream driver, then discarded.
type Session struct {
	Format   sinkpb.SinkPayloadFormat
	Requests []*sinkpb.SinkStreamRequest
}

// Epochs returns the number of StartEpoch/Write/Sync triples.
func (s *Session) Epochs() int { return (len(s.Requests) - 1) / 3 }

// Build produces the request sequence for one run.
//
// JSON format: one epoch/batch/sync triple per input batch, epochs 0..n-1,
// batch ids 1..n. Stream-chunk format: exactly one triple regardless of
// blob size. The format must match the payload that is set; a mismatch is
// a caller programming error and is never recovered.
func Build(cfg Config, format sinkpb.SinkPayloadFormat, p Payload) (*Session, error) {
	if (p.JSON != nil) && (p.Chunk != nil) {
		return nil, fmt.Errorf("build session: payload sets both JSON and stream chunk")
	}
	switch format {
	case sinkpb.FormatJSON:
		if p.JSON == nil {
			return nil, fmt.Errorf("build session: format JSON but no JSON payload")
		}
	case sinkpb.FormatStreamChunk:
		if p.Chunk == nil {
			return nil, fmt.Errorf("build session: format STREAM_CHUNK but no chunk payload")
		}
	default:
		return nil, fmt.Errorf("build session: unsupported payload format %v", format)
	}

	requests := []*sinkpb.SinkStreamRequest{{
		Start: &sinkpb.StartSink{
			Format:     format,
			SinkConfig: cfg.Proto(),
		},
	}}

	appendTriple := func(epoch uint64, write *sinkpb.WriteBatch) {
		requests = append(requests,
			&sinkpb.SinkStreamRequest{StartEpoch: &sinkpb.StartEpoch{Epoch: epoch}},
			&sinkpb.SinkStreamRequest{Write: write},
			&sinkpb.SinkStreamRequest{Sync: &sinkpb.SyncBatch{Epoch: epoch}},
		)
	}

	if format == sinkpb.FormatJSON {
		for i, batch := range p.JSON {
			epoch := uint64(i)
			batchID := epoch + 1
			appendTriple(epoch, &sinkpb.WriteBatch{
				BatchID:     batchID,
				Epoch:       epoch,
				JsonPayload: &sinkpb.JsonPayload{RowOps: batch},
			})
		}
	} else {
		appendTriple(0, &sinkpb.WriteBatch{
			BatchID:            1,
			Epoch:              0,
			StreamChunkPayload: p.Chunk,
		})
	}

	return &Session{Format: format, Requests: requests}, nil
}
