package ringctl

import (
	"compress/gzip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"ringscoop/internal/httpops"
	"ringscoop/internal/leader"
	"ringscoop/internal/logging"
)

type stubProvider struct {
	ready, isLeader, hasBackup bool
	backup                     leader.Backup
}

func (s stubProvider) LeaderSnapshot() (leader.Backup, bool) { return s.backup, s.hasBackup }
func (s stubProvider) Ready() bool                           { return s.ready }
func (s stubProvider) IsLeader() bool                        { return s.isLeader }

type stubElection struct{ started bool }

func (s *stubElection) StartElection() { s.started = true }

func startTestServer(t *testing.T, provider StatusProvider, election ElectionTrigger, token string) (RingControlClient, *Server) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	gs := grpc.NewServer()
	srv := NewServer(provider, httpops.NewRoundTripMonitor(), election, token, logging.NewTestLogger())
	RegisterRingControlServer(gs, srv)
	go gs.Serve(lis)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		gs.Stop()
	})
	return NewClient(conn), srv
}

func TestGetStatusReturnsProviderState(t *testing.T) {
	provider := stubProvider{ready: true, isLeader: true, hasBackup: true}
	client, _ := startTestServer(t, provider, &stubElection{}, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.GetStatus(ctx, &StatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !resp.Ready || !resp.IsLeader || !resp.HasBackup {
		t.Fatalf("unexpected status response: %+v", resp)
	}
}

func TestTriggerElectionInvokesTrigger(t *testing.T) {
	election := &stubElection{}
	client, _ := startTestServer(t, stubProvider{}, election, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ack, err := client.TriggerElection(ctx, &ElectionRequest{})
	if err != nil {
		t.Fatalf("TriggerElection: %v", err)
	}
	if !ack.Started || !election.started {
		t.Fatal("expected election trigger to be invoked")
	}
}

func TestGetStatusRejectsMissingToken(t *testing.T) {
	client, _ := startTestServer(t, stubProvider{}, &stubElection{}, "s3cret")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.GetStatus(ctx, &StatusRequest{}); err == nil {
		t.Fatal("expected error without a token")
	}
}

func TestGetStatusAcceptsCorrectToken(t *testing.T) {
	client, _ := startTestServer(t, stubProvider{ready: true}, &stubElection{}, "s3cret")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, authMetadataKey, "s3cret")
	resp, err := client.GetStatus(ctx, &StatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !resp.Ready {
		t.Fatal("expected ready status to come through")
	}
}

func TestWatchStatusStreamsCompressedSnapshots(t *testing.T) {
	client, srv := startTestServer(t, stubProvider{ready: true, isLeader: true}, &stubElection{}, "")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stream, err := client.WatchStatus(ctx, &WatchRequest{})
	if err != nil {
		t.Fatalf("WatchStatus: %v", err)
	}

	srv.publishSnapshot()

	update, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if update.Tick == 0 {
		t.Fatal("expected a non-zero tick")
	}

	gr, err := gzip.NewReader(bytes.NewReader(update.Payload))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	raw, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("read decompressed payload: %v", err)
	}
	var resp StatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if !resp.Ready || !resp.IsLeader {
		t.Fatalf("unexpected decoded snapshot: %+v", resp)
	}
}
