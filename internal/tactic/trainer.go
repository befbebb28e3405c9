// Package tactic implements the principal-variation trainer: a small state
// machine that replays one ply's engine line frame by frame and lets the
// trainee probe alternate moves on a scratch board.
package tactic

import (
	"errors"
	"sync"
	"time"

	chesslib "github.com/corentings/chess/v2"

	"github.com/park285/chess-insight/internal/pgn"
)

var (
	ErrNotArmed     = errors.New("tactic trainer not armed")
	ErrAlreadyArmed = errors.New("tactic trainer already armed")
	ErrNoFrames     = errors.New("no pv frames for this ply")
	ErrInvalidMove  = errors.New("illegal move on tactic board")
)

const (
	// maxLookahead bounds how deep the PV is played out; the line is a
	// training aid, not a proof of mate.
	maxLookahead = 13
	// playInterval is the auto-advance cadence while Playing.
	playInterval = 800 * time.Millisecond
)

// State enumerates the trainer lifecycle.
type State int

const (
	Idle State = iota
	Armed
	Playing
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Playing:
		return "playing"
	default:
		return "idle"
	}
}

// Trainer owns the per-session tactic view. All methods are safe for
// concurrent use.
type Trainer struct {
	mu sync.Mutex

	state       State
	frames      []string
	frame       int
	ply         int
	savedBrowse int

	// scratch diverges the displayed position from the canonical frames
	// when the trainee tries an alternate move; it never mutates frames.
	scratchFEN string
	custom     bool

	stop chan struct{}
}

func New() *Trainer {
	return &Trainer{}
}

// Arm enters the Armed state for one ply, snapshotting the browsing index
// so Disarm can restore it exactly.
func (t *Trainer) Arm(browseIdx, ply int, frames []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Idle {
		return ErrAlreadyArmed
	}
	if len(frames) == 0 {
		return ErrNoFrames
	}

	t.state = Armed
	t.frames = append([]string(nil), frames...)
	t.frame = 0
	t.ply = ply
	t.savedBrowse = browseIdx
	t.scratchFEN = ""
	t.custom = false
	return nil
}

// Disarm leaves Armed/Playing, discards scratch state, and returns the
// browsing index captured by Arm.
func (t *Trainer) Disarm() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Idle {
		return 0, ErrNotArmed
	}
	t.stopPlaybackLocked()
	restored := t.savedBrowse
	t.state = Idle
	t.frames = nil
	t.frame = 0
	t.scratchFEN = ""
	t.custom = false
	return restored, nil
}

// Play starts auto-advancing frames on the fixed cadence. Advancing stops
// by itself at the lookahead cap or the end of the frame list.
func (t *Trainer) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Idle:
		return ErrNotArmed
	case Playing:
		return nil
	}

	t.state = Playing
	t.stop = make(chan struct{})
	go t.run(t.stop)
	return nil
}

// Pause halts auto-advance, returning to Armed at the current frame.
func (t *Trainer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Idle {
		return ErrNotArmed
	}
	t.stopPlaybackLocked()
	t.state = Armed
	return nil
}

func (t *Trainer) run(stop chan struct{}) {
	ticker := time.NewTicker(playInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !t.step() {
				return
			}
		}
	}
}

// step advances one frame; it returns false once the cap or the end of the
// line is reached, flipping the trainer back to Armed.
func (t *Trainer) step() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Playing {
		return false
	}
	if t.frame >= t.maxFrameLocked() {
		t.state = Armed
		t.stop = nil
		return false
	}
	t.frame++
	t.custom = false
	t.scratchFEN = ""
	return true
}

// Advance moves one frame forward manually.
func (t *Trainer) Advance() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Idle {
		return ErrNotArmed
	}
	if t.frame < t.maxFrameLocked() {
		t.frame++
	}
	t.custom = false
	t.scratchFEN = ""
	return nil
}

// Retreat moves one frame back manually.
func (t *Trainer) Retreat() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Idle {
		return ErrNotArmed
	}
	if t.frame > 0 {
		t.frame--
	}
	t.custom = false
	t.scratchFEN = ""
	return nil
}

// Rewind jumps back to the base frame.
func (t *Trainer) Rewind() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Idle {
		return ErrNotArmed
	}
	t.frame = 0
	t.custom = false
	t.scratchFEN = ""
	return nil
}

// TryMove plays an alternate move on the scratch board. The canonical
// frames are untouched; the divergence is discarded on any frame step or
// on Disarm.
func (t *Trainer) TryMove(token string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Idle {
		return "", ErrNotArmed
	}

	base := t.scratchFEN
	if base == "" {
		base = t.frames[t.frame]
	}
	game, err := pgn.NewGameAt(base)
	if err != nil {
		return "", ErrInvalidMove
	}
	if err := pgn.ApplyMove(game, token); err != nil {
		return "", ErrInvalidMove
	}
	t.scratchFEN = game.FEN()
	t.custom = true
	return t.scratchFEN, nil
}

// View is a snapshot of the trainer for presentation.
type View struct {
	State    State
	Ply      int
	Frame    int
	MaxFrame int
	FEN      string
	Custom   bool
}

// Snapshot returns the current display position: the scratch FEN when the
// trainee has diverged, otherwise the canonical frame.
func (t *Trainer) Snapshot() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := View{State: t.state, Ply: t.ply, Frame: t.frame, Custom: t.custom}
	if t.state == Idle {
		v.FEN = startFEN()
		return v
	}
	v.MaxFrame = t.maxFrameLocked()
	if t.custom && t.scratchFEN != "" {
		v.FEN = t.scratchFEN
	} else {
		v.FEN = t.frames[t.frame]
	}
	return v
}

func (t *Trainer) maxFrameLocked() int {
	max := len(t.frames) - 1
	if max > maxLookahead {
		max = maxLookahead
	}
	if max < 0 {
		max = 0
	}
	return max
}

func (t *Trainer) stopPlaybackLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func startFEN() string {
	return chesslib.NewGame().FEN()
}
