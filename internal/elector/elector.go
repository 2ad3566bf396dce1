// Package elector implements the leader-election ballot logic: a pure,
// side-effect-free state machine that the ring-connection layer drives by
// forwarding ballots around the ring and reporting when a full round has
// returned to its originator.
package elector

// Ballot is one candidacy entry accumulated as an election message
// circulates the ring. HasBackup distinguishes a robot that holds a valid
// replica of the leader's last backup from one that does not; a round
// with at least one valid backup holder must elect one of them.
type Ballot struct {
	RobotID   int
	HasBackup bool
}

// Election tracks one in-flight leader-election round, identified by the
// robot that started it.
type Election struct {
	Origin  int
	ballots []Ballot
}

// StartBallot begins a new election round originated by selfID. The
// originating robot always appends its own ballot first.
func StartBallot(selfID int, hasBackup bool) *Election {
	return &Election{
		Origin:  selfID,
		ballots: []Ballot{{RobotID: selfID, HasBackup: hasBackup}},
	}
}

// FromBallots reconstructs an in-flight Election from ballots already
// accumulated elsewhere (typically decoded off the wire), so a robot that
// did not originate the round can append to it and keep forwarding it.
func FromBallots(origin int, ballots []Ballot) *Election {
	return &Election{Origin: origin, ballots: append([]Ballot(nil), ballots...)}
}

// Append adds this robot's ballot to an in-flight round before forwarding
// it to the next robot in the ring.
func (e *Election) Append(robotID int, hasBackup bool) {
	e.ballots = append(e.ballots, Ballot{RobotID: robotID, HasBackup: hasBackup})
}

// RoundComplete reports whether the round has circulated back to its
// originator, i.e. every ring member (or at least the originator again)
// has cast a ballot.
func (e *Election) RoundComplete(selfID int) bool {
	return len(e.ballots) > 0 && selfID == e.Origin
}

// ChooseWinner applies the backup-validity correctness criterion: among
// all ballots, elect the highest-id robot that holds a valid backup. If no
// ballot claims a valid backup, the election falls back to self-voting —
// the originator elects itself rather than failing the round, since a
// cold ring has no backup to be valid in the first place.
func (e *Election) ChooseWinner() int {
	winner := -1
	for _, b := range e.ballots {
		if !b.HasBackup {
			continue
		}
		if winner == -1 || b.RobotID > winner {
			winner = b.RobotID
		}
	}
	if winner == -1 {
		return e.Origin
	}
	return winner
}

// Ballots exposes the accumulated ballots for diagnostics and tests.
func (e *Election) Ballots() []Ballot {
	return append([]Ballot(nil), e.ballots...)
}

// ValidateBackup reports whether robotID's ballot claims a valid backup.
// The claim carried in the ballot is taken as is; the backup's contents
// are not inspected. A robot with no ballot entry at all is reported as
// not holding a valid backup.
func ValidateBackup(ballots []Ballot, robotID int) bool {
	for _, b := range ballots {
		if b.RobotID == robotID {
			return b.HasBackup
		}
	}
	return false
}
