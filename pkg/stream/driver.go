// Package stream drives one built session over a bidirectional sink
// stream and enforces strict 1:1 ordered request/response correlation.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/session"
)

// Driver sends a session and drains the response stream. It is a
// conformance checker: the first anomaly of any kind aborts the run, and
// the driver configures no timeout of its own — a wedged connector shows
// up as a stuck run, not a silent retry.
type Driver struct {
	logger *slog.Logger
}

// NewDriver creates a Driver logging through logger (slog.Default if nil).
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{logger: logger}
}

// Run dials endpoint and runs the session over a fresh connection.
func (d *Driver) Run(ctx context.Context, endpoint string, sess *session.Session) error {
	conn, err := sinkpb.Dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()
	return d.RunConn(ctx, conn, sess)
}

// RunConn runs the session over an existing connection. Every request is
// sent eagerly, in order, before any response is consumed; the response
// stream is then drained one response per request, in order. Any receive
// error — transport fault, server status, or a response stream shorter
// than the request stream — fails the run immediately.
func (d *Driver) RunConn(ctx context.Context, cc grpc.ClientConnInterface, sess *session.Session) error {
	client := sinkpb.NewConnectorServiceClient(cc)
	st, err := client.SinkStream(ctx)
	if err != nil {
		return fmt.Errorf("open sink stream: %w", err)
	}

	total := len(sess.Requests)
	for i, req := range sess.Requests {
		if err := st.Send(req); err != nil {
			// Send reports io.EOF when the server already aborted the
			// stream; the real status comes from Recv.
			if errors.Is(err, io.EOF) {
				// Drain buffered responses until the real status surfaces.
				for {
					if _, rerr := st.Recv(); rerr != nil {
						return fmt.Errorf("stream aborted while sending request %d/%d (%s): %w",
							i+1, total, req.Kind(), rerr)
					}
				}
			}
			return fmt.Errorf("send request %d/%d (%s): %w", i+1, total, req.Kind(), err)
		}
	}
	if err := st.CloseSend(); err != nil {
		return fmt.Errorf("close send: %w", err)
	}

	for i, req := range sess.Requests {
		resp, err := st.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("response stream ended after %d of %d responses", i, total)
			}
			return fmt.Errorf("response %d/%d (request %s): %w", i+1, total, req.Kind(), err)
		}
		d.logger.Info("response ok",
			"index", i,
			"request", req.Kind(),
			"response", resp.Kind(),
		)
	}
	return nil
}
