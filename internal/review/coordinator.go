package review

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/obslog"
)

var (
	ErrMovesTimeout  = errors.New("no move list arrived before the deadline")
	ErrResultTimeout = errors.New("no engine result arrived before the deadline")
)

const (
	// Deadlines match the legacy polling cadence the engine side was built
	// against (50ms probes for 10s, 500ms probes for the result). The
	// waits are channel-signaled now but the observable bounds are kept.
	defaultMovesWait  = 10 * time.Second
	defaultResultWait = 120 * time.Second
)

// Coordinator is the rendezvous between the HTTP flow that needs a graded
// report and the external engine that fetches positions and pushes
// evaluations out of band. Waits park on per-lane channels instead of
// polling and honor both the context and a hard deadline.
type Coordinator struct {
	movesWait  time.Duration
	resultWait time.Duration
	logger     *zap.Logger
}

// NewCoordinator builds a coordinator; zero durations pick the defaults.
func NewCoordinator(movesWait, resultWait time.Duration) *Coordinator {
	if movesWait <= 0 {
		movesWait = defaultMovesWait
	}
	if resultWait <= 0 {
		resultWait = defaultResultWait
	}
	return &Coordinator{
		movesWait:  movesWait,
		resultWait: resultWait,
		logger:     obslog.L().Named("coordinator"),
	}
}

// AwaitMoves blocks until the lane has a normalized move list, the engine's
// entry point when it shows up before the PGN finished normalizing. Returns
// the session's positions-after-each-ply on success.
func (c *Coordinator) AwaitMoves(ctx context.Context, s *Session, l Lane) ([]string, error) {
	deadline := time.NewTimer(c.movesWait)
	defer deadline.Stop()
	for {
		_, movesReady, _, _, hasMoves := s.laneState(l)
		if hasMoves {
			return s.Positions(l), nil
		}
		select {
		case <-movesReady:
			// A Replace landed; loop and re-read the lane.
		case <-deadline.C:
			return nil, ErrMovesTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// AwaitResult blocks until an engine payload for the given correlation id
// lands in the lane. A Replace that supersedes the correlation aborts the
// wait with ErrStaleResult so the caller never grades against a move list
// that no longer exists.
func (c *Coordinator) AwaitResult(ctx context.Context, s *Session, l Lane, correlation string) (*domain.EngineResult, error) {
	deadline := time.NewTimer(c.resultWait)
	defer deadline.Stop()
	for {
		current, _, ready, payload, _ := s.laneState(l)
		if current != correlation {
			return nil, ErrStaleResult
		}
		if payload != nil {
			return payload, nil
		}
		select {
		case <-ready:
			// Payload landed; loop to pick it up.
		case <-deadline.C:
			c.logger.Warn("engine result wait expired",
				zap.String("session", s.Identity()),
				zap.String("lane", l.String()),
				zap.Duration("waited", c.resultWait))
			return nil, ErrResultTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
