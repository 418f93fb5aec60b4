package botstate

import "testing"

func TestDefaultState(t *testing.T) {
	s := New()
	if s.Phase != PhaseIdle {
		t.Fatalf("expected initial phase Idle, got %v", s.Phase)
	}
	if s.AlreadyDeployed(1) {
		t.Fatalf("fresh state should not be deployed")
	}
	if s.NeedsCheckpoint() {
		t.Fatalf("fresh state should not need checkpoint")
	}
}

func TestDeploymentTracking(t *testing.T) {
	s := New()
	s.RecordDeployment(5, 1_000_000)

	if !s.AlreadyDeployed(5) {
		t.Fatalf("expected already deployed for round 5")
	}
	if s.AlreadyDeployed(6) {
		t.Fatalf("round 6 should not be considered deployed")
	}
	if !s.NeedsCheckpoint() {
		t.Fatalf("expected needs checkpoint after deployment")
	}
	if s.RoundsParticipated != 1 {
		t.Fatalf("expected rounds_participated=1, got %d", s.RoundsParticipated)
	}
}

func TestCheckpointProcessing(t *testing.T) {
	s := New()
	s.InitStartingValues(0, 0)
	s.RecordDeployment(5, 1_000_000)
	s.StorePreCheckpoint(0, 0)
	s.ProcessCheckpoint(5, 500_000, 1_000)

	if s.NeedsCheckpoint() {
		t.Fatalf("expected needs_checkpoint false after processing")
	}
	if s.RoundsWon != 1 {
		t.Fatalf("expected rounds_won=1, got %d", s.RoundsWon)
	}
	if s.SolPnl() != 500_000 {
		t.Fatalf("expected sol pnl 500000, got %d", s.SolPnl())
	}
	if s.OrePnl() != 1_000 {
		t.Fatalf("expected ore pnl 1000, got %d", s.OrePnl())
	}
}

func TestNegativePnl(t *testing.T) {
	s := New()
	s.InitStartingValues(1_000_000, 100)
	s.CurrentClaimableSol = 500_000
	s.CurrentOre = 50

	if s.SolPnl() != -500_000 {
		t.Fatalf("expected -500000, got %d", s.SolPnl())
	}
	if s.OrePnl() != -50 {
		t.Fatalf("expected -50, got %d", s.OrePnl())
	}
}

func TestPauseResume(t *testing.T) {
	s := New()
	s.Pause()
	if s.Phase != PhasePaused || !s.IsPaused {
		t.Fatalf("expected paused phase")
	}
	s.Unpause()
	if s.Phase != PhaseLoading || s.IsPaused {
		t.Fatalf("expected loading phase after unpause")
	}
	if !s.TakeNeedsReload() {
		t.Fatalf("expected needs_reload true once")
	}
	if s.TakeNeedsReload() {
		t.Fatalf("needs_reload should be consumed")
	}
}
