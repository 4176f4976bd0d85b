// Package mocksink implements an in-process connector sink service that
// enforces the stream protocol rules: start before anything else, epochs
// strictly increasing with no interleaving, batch ids strictly increasing
// from 1, payload format matching the declared start format. The file
// connector kind actually persists rows as JSON lines so a full
// send/sync/validate loop can run without an external connector node.
package mocksink

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
)

// Server is the mock connector service. One Server may carry many
// concurrent streams; all protocol state is per-stream.
type Server struct {
	logger *slog.Logger

	mu       sync.Mutex
	received []*sinkpb.SinkStreamRequest
}

// New creates a mock sink service.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// NewGRPCServer returns a grpc server with the sinkpb codec forced and
// the mock service registered.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(sinkpb.Codec{})}, opts...)
	srv := grpc.NewServer(opts...)
	sinkpb.RegisterConnectorServiceServer(srv, s)
	return srv
}

// Received returns a snapshot of every request seen so far, across all
// streams, in arrival order.
func (s *Server) Received() []*sinkpb.SinkStreamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*sinkpb.SinkStreamRequest, len(s.received))
	copy(out, s.received)
	return out
}

func (s *Server) record(req *sinkpb.SinkStreamRequest) {
	s.mu.Lock()
	s.received = append(s.received, req)
	s.mu.Unlock()
	RequestsReceived.WithLabelValues(req.Kind()).Inc()
}

// streamState is the per-stream protocol state machine.
type streamState struct {
	started      bool
	format       sinkpb.SinkPayloadFormat
	haveEpoch    bool
	epochStarted bool
	curEpoch     uint64
	nextBatchID  uint64
	sink         *fileSink
}

// SinkStream drives one sink session. Any protocol violation terminates
// the stream with a status error; the harness treats that as a hard
// failure, which is the point.
func (s *Server) SinkStream(stream sinkpb.ConnectorService_SinkStreamServer) error {
	st := &streamState{nextBatchID: 1}
	defer func() {
		if st.sink != nil {
			st.sink.close()
		}
	}()

	for {
		req, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		s.record(req)

		resp, err := s.handle(st, req)
		if err != nil {
			s.logger.Error("sink stream rejected request", "kind", req.Kind(), "error", err)
			return err
		}
		if err := stream.Send(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handle(st *streamState, req *sinkpb.SinkStreamRequest) (*sinkpb.SinkStreamResponse, error) {
	switch {
	case req.Start != nil:
		return s.handleStart(st, req.Start)
	case req.StartEpoch != nil:
		return s.handleStartEpoch(st, req.StartEpoch)
	case req.Write != nil:
		return s.handleWrite(st, req.Write)
	case req.Sync != nil:
		return s.handleSync(st, req.Sync)
	default:
		return nil, status.Error(codes.InvalidArgument, "empty request")
	}
}

func (s *Server) handleStart(st *streamState, start *sinkpb.StartSink) (*sinkpb.SinkStreamResponse, error) {
	if st.started {
		return nil, status.Error(codes.FailedPrecondition, "sink is already initialized")
	}
	if start.Format != sinkpb.FormatJSON && start.Format != sinkpb.FormatStreamChunk {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported payload format %d", int32(start.Format))
	}
	cfg := start.SinkConfig
	if cfg == nil || cfg.TableSchema == nil {
		return nil, status.Error(codes.InvalidArgument, "sink config with table schema is required")
	}

	if cfg.ConnectorType == "file" {
		path := cfg.Properties["output.path"]
		if path == "" {
			return nil, status.Error(codes.InvalidArgument, "file connector requires output.path")
		}
		sink, err := newFileSink(path)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "open file sink: %v", err)
		}
		st.sink = sink
	}

	st.started = true
	st.format = start.Format
	s.logger.Info("sink started",
		"connector", cfg.ConnectorType,
		"format", start.Format.String(),
		"columns", len(cfg.TableSchema.Columns),
	)
	return &sinkpb.SinkStreamResponse{Start: &sinkpb.StartResponse{}}, nil
}

func (s *Server) handleStartEpoch(st *streamState, se *sinkpb.StartEpoch) (*sinkpb.SinkStreamResponse, error) {
	if !st.started {
		return nil, status.Error(codes.FailedPrecondition, "sink is not initialized, invoke start first")
	}
	if st.epochStarted {
		return nil, status.Errorf(codes.FailedPrecondition, "epoch %d is still open", st.curEpoch)
	}
	if st.haveEpoch && se.Epoch <= st.curEpoch {
		return nil, status.Errorf(codes.InvalidArgument,
			"invalid epoch: new epoch id should be larger than current epoch %d, got %d", st.curEpoch, se.Epoch)
	}
	st.curEpoch = se.Epoch
	st.haveEpoch = true
	st.epochStarted = true
	return &sinkpb.SinkStreamResponse{StartEpoch: &sinkpb.StartEpochResponse{Epoch: se.Epoch}}, nil
}

func (s *Server) handleWrite(st *streamState, w *sinkpb.WriteBatch) (*sinkpb.SinkStreamResponse, error) {
	if !st.started {
		return nil, status.Error(codes.FailedPrecondition, "sink is not initialized, invoke start first")
	}
	if !st.epochStarted {
		return nil, status.Error(codes.FailedPrecondition, "epoch is not started, invoke start_epoch first")
	}
	if w.Epoch != st.curEpoch {
		return nil, status.Errorf(codes.InvalidArgument,
			"invalid epoch: expected write to epoch %d, got %d", st.curEpoch, w.Epoch)
	}
	if w.BatchID != st.nextBatchID {
		return nil, status.Errorf(codes.InvalidArgument,
			"invalid batch id: expected %d, got %d", st.nextBatchID, w.BatchID)
	}

	switch {
	case w.JsonPayload != nil:
		if st.format != sinkpb.FormatJSON {
			return nil, status.Error(codes.InvalidArgument,
				"payload format mismatch: sink started with STREAM_CHUNK, got JSON payload")
		}
		for _, op := range w.JsonPayload.RowOps {
			if st.sink != nil {
				if err := st.sink.writeLine(op.Line); err != nil {
					return nil, status.Errorf(codes.Internal, "file sink write: %v", err)
				}
			}
		}
		RowsWritten.Add(float64(len(w.JsonPayload.RowOps)))
	case w.StreamChunkPayload != nil:
		if st.format != sinkpb.FormatStreamChunk {
			return nil, status.Error(codes.InvalidArgument,
				"payload format mismatch: sink started with JSON, got STREAM_CHUNK payload")
		}
		ChunkBytes.Add(float64(len(w.StreamChunkPayload.BinaryData)))
	default:
		return nil, status.Error(codes.InvalidArgument, "write batch has no payload")
	}

	st.nextBatchID++
	return &sinkpb.SinkStreamResponse{Write: &sinkpb.WriteResponse{Epoch: w.Epoch, BatchID: w.BatchID}}, nil
}

func (s *Server) handleSync(st *streamState, sy *sinkpb.SyncBatch) (*sinkpb.SinkStreamResponse, error) {
	if !st.started {
		return nil, status.Error(codes.FailedPrecondition, "sink is not initialized, invoke start first")
	}
	if !st.epochStarted {
		return nil, status.Error(codes.FailedPrecondition, "epoch is not started, invoke start_epoch first")
	}
	if sy.Epoch != st.curEpoch {
		return nil, status.Errorf(codes.InvalidArgument,
			"invalid epoch: expected sync of epoch %d, got %d", st.curEpoch, sy.Epoch)
	}
	if st.sink != nil {
		if err := st.sink.flush(); err != nil {
			return nil, status.Errorf(codes.Internal, "file sink flush: %v", err)
		}
	}
	st.epochStarted = false
	return &sinkpb.SinkStreamResponse{Sync: &sinkpb.SyncResponse{Epoch: sy.Epoch}}, nil
}

// fileSink appends row lines to <output.path>/sink.jsonl.
type fileSink struct {
	f *os.File
	w *bufio.Writer
}

func newFileSink(dir string) (*fileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, "sink.jsonl"))
	if err != nil {
		return nil, err
	}
	return &fileSink{f: f, w: bufio.NewWriter(f)}, nil
}

// OutputFile returns the path the file sink writes under dir.
func OutputFile(dir string) string {
	return filepath.Join(dir, "sink.jsonl")
}

func (fs *fileSink) writeLine(line string) error {
	if _, err := fs.w.WriteString(line); err != nil {
		return err
	}
	return fs.w.WriteByte('\n')
}

func (fs *fileSink) flush() error {
	if err := fs.w.Flush(); err != nil {
		return err
	}
	return fs.f.Sync()
}

func (fs *fileSink) close() {
	if err := fs.flush(); err != nil {
		fmt.Fprintf(os.Stderr, "mock sink: flush on close: %v\n", err)
	}
	fs.f.Close()
}
