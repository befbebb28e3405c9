package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/analysis"
	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/obslog"
	"github.com/park285/chess-insight/internal/pgn"
	"github.com/park285/chess-insight/internal/service/cache"
	"github.com/park285/chess-insight/internal/statsink"
	"github.com/park285/chess-insight/internal/tactic"
)

var (
	ErrNoReport  = errors.New("no graded report for this session")
	ErrInvalidPV = errors.New("pv line is not playable from the given position")
)

const reportCacheTTL = 2 * time.Hour

// Options tunes the service; zero values pick defaults.
type Options struct {
	MovesWait     time.Duration
	ResultWait    time.Duration
	DefaultRating int
}

// Service is the front door of the review pipeline. It normalizes PGN,
// coordinates the rendezvous with the external engine, grades the finished
// evaluations and caches the report per session and lane.
type Service struct {
	store  *Store
	coord  *Coordinator
	cache  *cache.CacheService
	sink   statsink.Sink
	logger *zap.Logger

	defaultRating int
}

// NewService wires the pipeline. store is required; cacheSvc and sink may be
// nil, which disables the cross-restart report cache and the stats feed.
func NewService(store *Store, cacheSvc *cache.CacheService, sink statsink.Sink, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("review: store is required")
	}
	rating := opts.DefaultRating
	if rating <= 0 {
		rating = analysis.DefaultPlayerRating
	}
	return &Service{
		store:         store,
		coord:         NewCoordinator(opts.MovesWait, opts.ResultWait),
		cache:         cacheSvc,
		sink:          sink,
		logger:        obslog.L().Named("review"),
		defaultRating: rating,
	}, nil
}

// SubmitGame runs the principal-game flow end to end: normalize the PGN,
// publish the move list for the engine, wait for the evaluations and return
// the graded report. Re-submitting a PGN for the same identity atomically
// invalidates the previous report and any in-flight result.
func (s *Service) SubmitGame(ctx context.Context, identity, rawPGN string, ratings analysis.Ratings) (*analysis.Report, error) {
	return s.runGame(ctx, identity, LaneGame, analysis.ModeGame, rawPGN, ratings)
}

// SubmitUserGame is the side-lane variant of SubmitGame. It never touches
// the principal game's cached report.
func (s *Service) SubmitUserGame(ctx context.Context, identity, rawPGN string, ratings analysis.Ratings) (*analysis.Report, error) {
	return s.runGame(ctx, identity, LaneUser, analysis.ModeUserGame, rawPGN, ratings)
}

func (s *Service) runGame(ctx context.Context, identity string, l Lane, mode analysis.Mode, rawPGN string, ratings analysis.Ratings) (*analysis.Report, error) {
	game, err := pgn.Normalize(rawPGN)
	if err != nil {
		return nil, err
	}

	sess := s.store.GetOrCreate(identity)
	correlation := sess.Replace(l, rawPGN, "", game.Moves, game.FENs)
	s.logger.Info("game accepted",
		zap.String("session", sess.Identity()),
		zap.String("lane", l.String()),
		zap.String("correlation", correlation),
		zap.Int("moves", len(game.Moves)))

	payload, err := s.coord.AwaitResult(ctx, sess, l, correlation)
	if err != nil {
		return nil, err
	}

	report, err := analysis.Analyze(analysis.Input{
		Moves:   game.Moves,
		Results: payload.Results,
		RawPGN:  rawPGN,
		Ratings: s.fillRatings(ratings),
		Mode:    mode,
	})
	if err != nil {
		return nil, err
	}
	s.finishReport(ctx, sess, l, correlation, report)
	return report, nil
}

// AnalyzePV grades an arbitrary line played out from a FEN. The line must be
// fully legal; an unplayable token rejects the whole request.
func (s *Service) AnalyzePV(ctx context.Context, identity, fen string, moves []string) (*analysis.Report, error) {
	if len(moves) == 0 {
		return nil, ErrInvalidPV
	}
	fens, err := pgn.ReplayFENs(fen, moves)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPV, err)
	}

	sess := s.store.GetOrCreate(identity)
	correlation := sess.Replace(LanePV, "", fen, moves, fens)
	s.logger.Info("pv line accepted",
		zap.String("session", sess.Identity()),
		zap.String("correlation", correlation),
		zap.Int("moves", len(moves)))

	payload, err := s.coord.AwaitResult(ctx, sess, LanePV, correlation)
	if err != nil {
		return nil, err
	}

	report, err := analysis.Analyze(analysis.Input{
		Moves:    moves,
		Results:  payload.Results,
		StartFEN: fen,
		Ratings:  s.fillRatings(analysis.Ratings{}),
		Mode:     analysis.ModePV,
	})
	if err != nil {
		return nil, err
	}
	s.finishReport(ctx, sess, LanePV, correlation, report)
	return report, nil
}

// Positions returns the engine-facing position list without waiting.
func (s *Service) Positions(identity string, l Lane) []string {
	sess, ok := s.store.Get(identity)
	if !ok {
		return nil
	}
	return sess.Positions(l)
}

// PositionsWait blocks until the lane has a move list, bounded by the
// coordinator's moves deadline. The engine calls this when it races the
// PGN submission.
func (s *Service) PositionsWait(ctx context.Context, identity string, l Lane) ([]string, error) {
	sess := s.store.GetOrCreate(identity)
	return s.coord.AwaitMoves(ctx, sess, l)
}

// SubmitResults delivers an engine payload for the lane. Stale correlation
// ids are rejected, empty payloads too.
func (s *Service) SubmitResults(identity string, l Lane, payload *domain.EngineResult) error {
	if payload != nil && payload.CorrelationID == "" {
		// Engines predating correlation ids omit the field; their results
		// land on whatever generation is current.
		s.logger.Warn("results submitted without correlation id",
			zap.String("identity", identity),
			zap.String("lane", l.String()))
	}
	sess := s.store.GetOrCreate(identity)
	return sess.Submit(l, payload)
}

// CachedReport returns the lane's graded report, consulting the session
// first and the shared cache second.
func (s *Service) CachedReport(ctx context.Context, identity string, l Lane) (*analysis.Report, error) {
	if sess, ok := s.store.Get(identity); ok {
		if report := sess.Report(l); report != nil {
			return report, nil
		}
	}
	if s.cache != nil {
		var report analysis.Report
		hit, err := s.cache.Get(ctx, reportKey(identity, l), &report)
		if err != nil {
			s.logger.Warn("report cache read failed", zap.String("session", identity), zap.Error(err))
		} else if hit {
			return &report, nil
		}
	}
	return nil, ErrNoReport
}

// BrowsePly reports the ply the identity is viewing.
func (s *Service) BrowsePly(identity string) int {
	return s.store.GetOrCreate(identity).BrowsePly()
}

// SetBrowsePly moves the identity's viewing cursor.
func (s *Service) SetBrowsePly(identity string, ply int) {
	s.store.GetOrCreate(identity).SetBrowsePly(ply)
}

// ArmTactic arms the trainer with the PV frames graded at the given ply of
// the principal report.
func (s *Service) ArmTactic(identity string, ply int) (tactic.View, error) {
	sess, ok := s.store.Get(identity)
	if !ok {
		return tactic.View{}, ErrNoReport
	}
	report := sess.Report(LaneGame)
	if report == nil {
		return tactic.View{}, ErrNoReport
	}
	if ply < 0 || ply >= len(report.PVFrames) {
		return tactic.View{}, tactic.ErrNoFrames
	}
	if err := sess.Trainer().Arm(sess.BrowsePly(), ply, report.PVFrames[ply]); err != nil {
		return tactic.View{}, err
	}
	return sess.Trainer().Snapshot(), nil
}

// DisarmTactic stands the trainer down and restores the browse cursor.
func (s *Service) DisarmTactic(identity string) (tactic.View, error) {
	sess, ok := s.store.Get(identity)
	if !ok {
		return tactic.View{}, ErrNoReport
	}
	saved, err := sess.Trainer().Disarm()
	if err != nil {
		return tactic.View{}, err
	}
	sess.SetBrowsePly(saved)
	return sess.Trainer().Snapshot(), nil
}

// Tactic exposes the trainer for frame navigation and scratch moves.
func (s *Service) Tactic(identity string) (*tactic.Trainer, error) {
	sess, ok := s.store.Get(identity)
	if !ok {
		return nil, ErrNoReport
	}
	return sess.Trainer(), nil
}

// Close releases background workers.
func (s *Service) Close() {
	s.store.Close()
}

func (s *Service) fillRatings(r analysis.Ratings) analysis.Ratings {
	if r.White <= 0 {
		r.White = s.defaultRating
	}
	if r.Black <= 0 {
		r.Black = s.defaultRating
	}
	return r
}

// finishReport caches the report and, for the principal lane, feeds the
// stats sink. Loses the race against a concurrent Replace silently.
func (s *Service) finishReport(ctx context.Context, sess *Session, l Lane, correlation string, report *analysis.Report) {
	if !sess.SetReport(l, correlation, report) {
		s.logger.Info("report superseded before caching",
			zap.String("session", sess.Identity()),
			zap.String("lane", l.String()))
		return
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, reportKey(sess.Identity(), l), report, reportCacheTTL); err != nil {
			s.logger.Warn("report cache write failed", zap.String("session", sess.Identity()), zap.Error(err))
		}
	}
	if l == LaneGame && s.sink != nil {
		stats := statsFromReport(sess.Identity(), report)
		go func() {
			if err := s.sink.Record(context.Background(), stats); err != nil {
				s.logger.Warn("stats record failed", zap.String("session", stats.Identity), zap.Error(err))
			}
		}()
	}
}

func statsFromReport(identity string, r *analysis.Report) domain.GameStats {
	return domain.GameStats{
		Identity:      identity,
		ReportID:      r.ID,
		Opening:       r.Opening,
		Result:        r.Result,
		WhiteACPL:     r.WhiteACPL,
		BlackACPL:     r.BlackACPL,
		WhiteAccuracy: r.WhiteAccuracy,
		BlackAccuracy: r.BlackAccuracy,
		WhiteBlunders: r.WhiteGradeCounts[analysis.GradeBlunder],
		BlackBlunders: r.BlackGradeCounts[analysis.GradeBlunder],
		MoveCount:     len(r.Moves),
		GradedAt:      r.CreatedAt,
	}
}

func reportKey(identity string, l Lane) string {
	return "insight:report:" + normalizeIdentity(identity) + ":" + l.String()
}
