package ringctl

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"ringscoop/internal/cadence"
	ringgrpc "ringscoop/internal/grpc"
	"ringscoop/internal/httpops"
	"ringscoop/internal/leader"
	"ringscoop/internal/logging"
)

const authMetadataKey = "authorization"

// StatusProvider exposes the subset of a ring node's state the admin
// service reports on. Implemented by *ringio.Node.
type StatusProvider interface {
	LeaderSnapshot() (leader.Backup, bool)
	Ready() bool
	IsLeader() bool
}

// ElectionTrigger lets an operator force a new election round without
// killing the process, e.g. to recover a wedged leader. Implemented by
// *ringio.Node.
type ElectionTrigger interface {
	StartElection()
}

// Server implements RingControlServer. GetStatus and TriggerElection are
// guarded by a constant-time comparison against an optional admin token,
// so timing differences between a near-miss and a correct token never
// leak information about how close a guess was.
type Server struct {
	log        *logging.Logger
	source     StatusProvider
	trips      *httpops.RoundTripMonitor
	election   ElectionTrigger
	token      string
	compressor ringgrpc.Compressor
	feed       *statusFeed
}

var _ RingControlServer = (*Server)(nil)

// NewServer builds an admin service over source and trips, optionally
// wired to election so TriggerElection can do something. An empty token
// disables authentication, for local development.
func NewServer(source StatusProvider, trips *httpops.RoundTripMonitor, election ElectionTrigger, token string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.L()
	}
	return &Server{
		log:        log,
		source:     source,
		trips:      trips,
		election:   election,
		token:      token,
		compressor: ringgrpc.NewGZIPCompressor(),
		feed:       newStatusFeed(),
	}
}

func (s *Server) authorize(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing admin credentials")
	}
	values := md.Get(authMetadataKey)
	if len(values) == 0 || subtle.ConstantTimeCompare([]byte(values[0]), []byte(s.token)) != 1 {
		return status.Error(codes.PermissionDenied, "invalid admin token")
	}
	return nil
}

func (s *Server) buildStatus() *StatusResponse {
	resp := &StatusResponse{
		Ready:    s.source.Ready(),
		IsLeader: s.source.IsLeader(),
	}
	if backup, ok := s.source.LeaderSnapshot(); ok {
		resp.HasBackup = true
		resp.Backup = &backup
	}
	if s.trips != nil {
		resp.RoundTrips = s.trips.Snapshot()
	}
	return resp
}

// GetStatus reports the node's current readiness, leadership, and latest
// replicated backup, if any.
func (s *Server) GetStatus(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	return s.buildStatus(), nil
}

// TriggerElection starts a fresh leader-election round originated by this
// robot, failing if no ElectionTrigger was wired at construction.
func (s *Server) TriggerElection(ctx context.Context, _ *ElectionRequest) (*ElectionAck, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if s.election == nil {
		return nil, status.Error(codes.FailedPrecondition, "election trigger not wired")
	}
	s.election.StartElection()
	return &ElectionAck{Started: true}, nil
}

// WatchStatus streams gzip-compressed status snapshots to the caller
// until it disconnects, built on the DiffSource fan-out pattern in
// internal/grpc.
func (s *Server) WatchStatus(_ *WatchRequest, stream RingControl_WatchStatusServer) error {
	if err := s.authorize(stream.Context()); err != nil {
		return err
	}
	ch, cancel, err := s.feed.SubscribeStateDiffs(stream.Context())
	if err != nil {
		return err
	}
	defer cancel()
	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(&StatusUpdate{Tick: ev.Tick, Payload: ev.Payload}); err != nil {
				return err
			}
		}
	}
}

// Run periodically publishes a compressed status snapshot to every
// WatchStatus subscriber until ctx is done. It does not itself listen on
// a socket; pair it with a *grpc.Server registered via
// RegisterRingControlServer.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	hz := float64(time.Second) / float64(interval)
	loop := cadence.NewLoop(hz, func(time.Duration) { s.publishSnapshot() })
	loop.Start(ctx)
	<-ctx.Done()
	loop.Stop()
}

func (s *Server) publishSnapshot() {
	payload, err := json.Marshal(s.buildStatus())
	if err != nil {
		s.log.Warn("failed to marshal status snapshot", logging.Error(err))
		return
	}
	compressed, err := s.compressor.Compress(payload)
	if err != nil {
		s.log.Warn("failed to compress status snapshot", logging.Error(err))
		return
	}
	s.feed.publish(compressed)
}
