package ringctl

import (
	"ringscoop/internal/httpops"
	"ringscoop/internal/leader"
)

// StatusRequest carries no fields; GetStatus always reports everything.
type StatusRequest struct{}

// StatusResponse is the admin-facing view of one robot's ring state.
type StatusResponse struct {
	Ready      bool
	IsLeader   bool
	HasBackup  bool
	Backup     *leader.Backup
	RoundTrips httpops.RoundTripSnapshot
}

// ElectionRequest carries no fields; TriggerElection always starts a
// fresh round originated by the robot that receives the call.
type ElectionRequest struct{}

// ElectionAck confirms whether a round was actually started.
type ElectionAck struct {
	Started bool
}

// WatchRequest carries no fields; WatchStatus always streams every
// published snapshot until the client disconnects.
type WatchRequest struct{}

// StatusUpdate carries one gzip-compressed, JSON-encoded StatusResponse
// snapshot, numbered by Tick, as published to WatchStatus subscribers.
type StatusUpdate struct {
	Tick    uint64
	Payload []byte
}
