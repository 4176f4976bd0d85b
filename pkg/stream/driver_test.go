package stream

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/risingwavelabs/connector-harness/internal/sinkpb"
	"github.com/risingwavelabs/connector-harness/pkg/mocksink"
	"github.com/risingwavelabs/connector-harness/pkg/schema"
	"github.com/risingwavelabs/connector-harness/pkg/session"
)

// ── Test helpers ────────────────────────────────────────────────────

func serve(t *testing.T, srv sinkpb.ConnectorServiceServer) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.ForceServerCodec(sinkpb.Codec{}))
	sinkpb.RegisterConnectorServiceServer(gs, srv)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)
	return lis
}

func dialBuf(t *testing.T, lis *bufconn.Listener) *grpc.ClientConn {
	t.Helper()
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

func testSession(t *testing.T, batches int) *session.Session {
	t.Helper()
	s, err := schema.New([]schema.Column{
		{Name: "id", Type: sinkpb.TypeInt32},
		{Name: "name", Type: sinkpb.TypeVarchar},
	}, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := session.NewConfig(session.FileProperties{OutputPath: t.TempDir()}, s)
	if err != nil {
		t.Fatal(err)
	}
	json := make([][]sinkpb.RowOp, batches)
	for i := range json {
		json[i] = []sinkpb.RowOp{{OpType: sinkpb.OpInsert, Line: `{"id":1,"name":"a"}`}}
	}
	sess, err := session.Build(cfg, sinkpb.FormatJSON, session.Payload{JSON: json})
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

// shortServer answers only the first n requests, then stays silent. The
// driver must flag the missing responses as a hard failure.
type shortServer struct {
	n int
}

func (s *shortServer) SinkStream(stream sinkpb.ConnectorService_SinkStreamServer) error {
	sent := 0
	for {
		_, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if sent < s.n {
			if err := stream.Send(&sinkpb.SinkStreamResponse{Start: &sinkpb.StartResponse{}}); err != nil {
				return err
			}
			sent++
		}
	}
}

// ── Driver tests ────────────────────────────────────────────────────

func TestDriverRunsFullSession(t *testing.T) {
	mock := mocksink.New(slog.Default())
	lis := serve(t, mock)
	conn := dialBuf(t, lis)

	sess := testSession(t, 2)
	if err := NewDriver(nil).RunConn(context.Background(), conn, sess); err != nil {
		t.Fatalf("driver failed on a healthy session: %v", err)
	}

	got := mock.Received()
	if len(got) != len(sess.Requests) {
		t.Fatalf("server saw %d requests, want %d", len(got), len(sess.Requests))
	}
	wantKinds := []string{"start", "start_epoch", "write", "sync", "start_epoch", "write", "sync"}
	for i, req := range got {
		if req.Kind() != wantKinds[i] {
			t.Fatalf("request %d arrived as %s, want %s", i, req.Kind(), wantKinds[i])
		}
	}
}

func TestDriverFailsOnShortResponseStream(t *testing.T) {
	lis := serve(t, &shortServer{n: 2})
	conn := dialBuf(t, lis)

	sess := testSession(t, 1) // 4 requests, server answers 2
	err := NewDriver(nil).RunConn(context.Background(), conn, sess)
	if err == nil {
		t.Fatal("expected short response stream to fail the run")
	}
	if !strings.Contains(err.Error(), "response stream ended after 2 of 4") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDriverFailsOnServerRejection(t *testing.T) {
	mock := mocksink.New(slog.Default())
	lis := serve(t, mock)
	conn := dialBuf(t, lis)

	// Hand-build a session that writes into an epoch that was never
	// started; the server must reject it and the driver must surface it.
	sess := testSession(t, 1)
	bad := &session.Session{
		Format: sess.Format,
		Requests: []*sinkpb.SinkStreamRequest{
			sess.Requests[0], // start
			sess.Requests[2], // write without start_epoch
		},
	}
	err := NewDriver(nil).RunConn(context.Background(), conn, bad)
	if err == nil {
		t.Fatal("expected protocol violation to fail the run")
	}
	if !strings.Contains(err.Error(), "epoch is not started") {
		t.Fatalf("unexpected error: %v", err)
	}
}
