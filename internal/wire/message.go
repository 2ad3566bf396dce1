// Package wire defines the newline-delimited JSON messages exchanged over
// ring and screen connections, and the codec that frames them. The
// envelope-with-a-type-discriminator shape mirrors the inbound/outbound
// JSON envelopes this codebase already uses for its websocket traffic
// (type field first, typed payload fields alongside it, unknown fields
// ignored on decode).
package wire

import (
	"bufio"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"ringscoop/internal/flavor"
	"ringscoop/internal/order"
	"ringscoop/internal/token"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind discriminates the payload carried by an envelope.
type Kind string

const (
	KindGetLeaderID       Kind = "get_leader_id"
	KindLeaderID          Kind = "leader_id"
	KindLeaderBackup      Kind = "leader_backup"
	KindToken             Kind = "token"
	KindTokenBackup       Kind = "token_backup"
	KindNewLeader         Kind = "new_leader"
	KindNewElection       Kind = "new_election"
	KindNewOrder          Kind = "new_order"
	KindOrderComplete     Kind = "order_complete"
	KindOrderNotFinished  Kind = "order_not_finished"
	KindPrepareNewOrder   Kind = "prepare_new_order"
	KindTakeMyBackup      Kind = "take_my_backup"
	KindRequestConnection Kind = "request_robot_leader_connection"
	KindScreenOrders      Kind = "give_me_this_screen_orders"
	KindOrderPrepared     Kind = "order_prepared"
	KindOrderAborted      Kind = "order_aborted"
)

// Envelope is the on-the-wire shape: a type discriminator plus whichever
// payload fields that type populates. Unpopulated fields are omitted on
// encode and ignored on decode, matching the existing inbound/outbound
// envelope convention used for websocket traffic in this codebase.
type Envelope struct {
	Type Kind `json:"type"`

	RobotID  int    `json:"robot_id,omitempty"`
	ScreenID int    `json:"screen_id,omitempty"`
	OrderID  string `json:"order_id,omitempty"`

	Token       *token.Flavor `json:"token,omitempty"`
	TokenBackup *token.Backup `json:"token_backup,omitempty"`

	Backup *BackupPayload `json:"backup,omitempty"`

	Order *order.Info `json:"order,omitempty"`

	AbortedFlavor flavor.ID `json:"aborted_flavor,omitempty"`

	Ballot *BallotPayload `json:"ballot,omitempty"`
}

// BackupPayload carries a LeaderBackup snapshot. It mirrors leader.Backup
// field for field without importing internal/leader; ringio converts
// between the two.
type BackupPayload struct {
	AvailableRobots []int              `json:"available_robots"`
	OrdersOnQueue   []order.Info       `json:"orders_on_queue"`
	RobotsOrders    map[int]order.Info `json:"robots_orders"`
	Screens         []int              `json:"screens"`
	OrdersToBeSent  []order.Waiting    `json:"orders_to_be_sent"`
	Tokens          []token.Flavor     `json:"tokens,omitempty"`
}

// BallotPayload carries one round's accumulated election ballots.
type BallotPayload struct {
	Origin  int           `json:"origin"`
	Ballots []BallotEntry `json:"ballots"`
}

// BallotEntry is one robot's candidacy within a ballot payload.
type BallotEntry struct {
	RobotID   int  `json:"robot_id"`
	HasBackup bool `json:"has_backup"`
}

// Encoder writes newline-delimited JSON envelopes to a connection's write
// half. Callers are expected to own a single Encoder per connection and
// serialize all writes through it, since the underlying writer is not
// itself safe for concurrent use.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "wire: marshal envelope")
	}
	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return errors.Wrap(err, "wire: write envelope")
	}
	return nil
}

// Decoder reads newline-delimited JSON envelopes from a connection's read
// half.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{scanner: scanner}
}

// Decode reads and parses the next newline-delimited envelope. It returns
// io.EOF when the connection is closed cleanly.
func (d *Decoder) Decode() (Envelope, error) {
	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			return Envelope{}, errors.Wrap(err, "wire: read envelope")
		}
		return Envelope{}, io.EOF
	}
	var env Envelope
	if err := json.Unmarshal(d.scanner.Bytes(), &env); err != nil {
		return Envelope{}, errors.Wrap(err, "wire: decode envelope")
	}
	return env, nil
}

// Role is the raw single-byte discriminator sent immediately after a TCP
// connection is established, before any JSON traffic, identifying what
// the new socket is for.
type Role byte

const (
	RoleNextRobot      Role = 'n'
	RolePrevRobot      Role = 'p'
	RoleLeaderAnnounce Role = 'r'
	RoleRobotRegister  Role = 'b'
	RoleScreenRegister Role = 's'
	RoleLeaderQuery    Role = 'q'
)

// WriteRole writes the single-byte role discriminator, and for
// RoleLeaderAnnounce the one raw byte identifying the announced leader.
func WriteRole(w io.Writer, role Role, leaderID byte) error {
	buf := []byte{byte(role)}
	if role == RoleLeaderAnnounce {
		buf = append(buf, leaderID)
	}
	_, err := w.Write(buf)
	return errors.Wrap(err, "wire: write role byte")
}

// ReadRole reads the single-byte role discriminator and, for
// RoleLeaderAnnounce, the leader id byte that follows it.
func ReadRole(r io.Reader) (Role, byte, error) {
	var header [1]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, errors.Wrap(err, "wire: read role byte")
	}
	role := Role(header[0])
	if role != RoleLeaderAnnounce {
		return role, 0, nil
	}
	var leaderID [1]byte
	if _, err := io.ReadFull(r, leaderID[:]); err != nil {
		return 0, 0, errors.Wrap(err, "wire: read leader id byte")
	}
	return role, leaderID[0], nil
}
