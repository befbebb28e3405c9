package tactic

import (
	"errors"
	"testing"

	"github.com/park285/chess-insight/internal/pgn"
)

func testFrames(t *testing.T, n int) []string {
	t.Helper()
	line := []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Ba4", "Nf6", "O-O", "Be7", "Re1", "b5", "Bb3", "d6", "c3", "Na5"}
	fens, err := pgn.ReplayFENs("", line[:n])
	if err != nil {
		t.Fatalf("building frames: %v", err)
	}
	return fens
}

func TestArmDisarmRestoresBrowse(t *testing.T) {
	tr := New()
	frames := testFrames(t, 4)

	if err := tr.Arm(5, 2, frames); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := tr.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if v := tr.Snapshot(); v.Frame != 3 || v.State != Armed {
		t.Fatalf("snapshot after advances: %+v", v)
	}

	restored, err := tr.Disarm()
	if err != nil {
		t.Fatalf("Disarm: %v", err)
	}
	if restored != 5 {
		t.Fatalf("restored browse %d, want 5", restored)
	}
	if v := tr.Snapshot(); v.State != Idle || v.Frame != 0 {
		t.Fatalf("snapshot after disarm: %+v", v)
	}
}

func TestArmGuards(t *testing.T) {
	tr := New()
	if err := tr.Arm(0, 0, nil); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	frames := testFrames(t, 2)
	if err := tr.Arm(0, 0, frames); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := tr.Arm(0, 0, frames); !errors.Is(err, ErrAlreadyArmed) {
		t.Fatalf("expected ErrAlreadyArmed, got %v", err)
	}
}

func TestIdleGuards(t *testing.T) {
	tr := New()
	if err := tr.Advance(); !errors.Is(err, ErrNotArmed) {
		t.Fatalf("Advance: %v", err)
	}
	if err := tr.Play(); !errors.Is(err, ErrNotArmed) {
		t.Fatalf("Play: %v", err)
	}
	if _, err := tr.Disarm(); !errors.Is(err, ErrNotArmed) {
		t.Fatalf("Disarm: %v", err)
	}
	if _, err := tr.TryMove("e4"); !errors.Is(err, ErrNotArmed) {
		t.Fatalf("TryMove: %v", err)
	}
}

func TestFrameNavigationBounds(t *testing.T) {
	tr := New()
	frames := testFrames(t, 3)
	if err := tr.Arm(0, 0, frames); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	if err := tr.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if v := tr.Snapshot(); v.Frame != 0 {
		t.Fatalf("retreat below zero: %+v", v)
	}

	for i := 0; i < 10; i++ {
		if err := tr.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if v := tr.Snapshot(); v.Frame != len(frames)-1 {
		t.Fatalf("advance past end: frame %d, want %d", v.Frame, len(frames)-1)
	}

	if err := tr.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if v := tr.Snapshot(); v.Frame != 0 {
		t.Fatalf("rewind: %+v", v)
	}
}

func TestLookaheadCap(t *testing.T) {
	tr := New()
	frames := testFrames(t, 16)
	if err := tr.Arm(0, 0, frames); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	for i := 0; i < 20; i++ {
		if err := tr.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if v := tr.Snapshot(); v.Frame != maxLookahead || v.MaxFrame != maxLookahead {
		t.Fatalf("cap not enforced: %+v", v)
	}
}

func TestTryMoveScratchDoesNotTouchFrames(t *testing.T) {
	tr := New()
	frames := testFrames(t, 2)
	if err := tr.Arm(0, 0, frames); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	base := tr.Snapshot().FEN
	fen, err := tr.TryMove("Nf3")
	if err != nil {
		t.Fatalf("TryMove: %v", err)
	}
	if fen == base {
		t.Fatalf("scratch move did not change the position")
	}
	if v := tr.Snapshot(); !v.Custom || v.FEN != fen {
		t.Fatalf("snapshot not showing scratch: %+v", v)
	}

	// Any frame step discards the divergence.
	if err := tr.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if v := tr.Snapshot(); v.Custom || v.FEN != frames[1] {
		t.Fatalf("divergence survived frame step: %+v", v)
	}
}

func TestTryMoveRejectsIllegal(t *testing.T) {
	tr := New()
	if err := tr.Arm(0, 0, testFrames(t, 2)); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if _, err := tr.TryMove("Ke5"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
}

func TestPlayPause(t *testing.T) {
	tr := New()
	if err := tr.Arm(0, 0, testFrames(t, 4)); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if v := tr.Snapshot(); v.State != Playing {
		t.Fatalf("state after Play: %v", v.State)
	}
	// Play is idempotent while already playing.
	if err := tr.Play(); err != nil {
		t.Fatalf("second Play: %v", err)
	}
	if err := tr.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if v := tr.Snapshot(); v.State != Armed {
		t.Fatalf("state after Pause: %v", v.State)
	}
}
