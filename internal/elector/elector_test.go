package elector

import "testing"

func TestStartBallotIncludesOrigin(t *testing.T) {
	e := StartBallot(3, true)
	if e.Origin != 3 {
		t.Fatalf("expected origin 3, got %d", e.Origin)
	}
	if len(e.Ballots()) != 1 || e.Ballots()[0].RobotID != 3 {
		t.Fatalf("expected originator's own ballot present, got %+v", e.Ballots())
	}
}

func TestRoundCompleteWhenBackAtOrigin(t *testing.T) {
	e := StartBallot(1, false)
	e.Append(2, false)
	e.Append(3, false)
	if e.RoundComplete(2) {
		t.Fatal("round should not be complete at a non-origin robot")
	}
	if !e.RoundComplete(1) {
		t.Fatal("round should be complete once it returns to the origin")
	}
}

func TestChooseWinnerPrefersHighestIDWithValidBackup(t *testing.T) {
	e := StartBallot(5, false)
	e.Append(2, true)
	e.Append(7, true)
	e.Append(1, false)
	if got := e.ChooseWinner(); got != 7 {
		t.Fatalf("expected highest-id valid-backup holder 7, got %d", got)
	}
}

func TestChooseWinnerFallsBackToSelfWhenNoValidBackup(t *testing.T) {
	e := StartBallot(4, false)
	e.Append(2, false)
	e.Append(6, false)
	if got := e.ChooseWinner(); got != 4 {
		t.Fatalf("expected origin self-vote fallback 4, got %d", got)
	}
}

func TestFromBallotsPreservesOriginAndEntries(t *testing.T) {
	want := []Ballot{{RobotID: 1, HasBackup: false}, {RobotID: 2, HasBackup: true}}
	e := FromBallots(1, want)
	if e.Origin != 1 {
		t.Fatalf("expected origin 1, got %d", e.Origin)
	}
	if len(e.Ballots()) != 2 || e.Ballots()[1].RobotID != 2 {
		t.Fatalf("expected reconstructed ballots preserved, got %+v", e.Ballots())
	}
	e.Append(3, true)
	if len(e.Ballots()) != 3 {
		t.Fatalf("expected appended ballot on top of the reconstructed set, got %+v", e.Ballots())
	}
}

func TestValidateBackupLooksUpClaimedRobot(t *testing.T) {
	e := StartBallot(1, false)
	e.Append(2, true)
	if !ValidateBackup(e.Ballots(), 2) {
		t.Fatal("expected robot 2's claimed backup to validate")
	}
	if ValidateBackup(e.Ballots(), 9) {
		t.Fatal("expected unknown robot to not validate")
	}
}
