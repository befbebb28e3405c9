package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	chesslib "github.com/corentings/chess/v2"
	"github.com/google/uuid"

	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/pgn"
)

var (
	// ErrMisaligned marks engine results that do not correspond 1:1 with
	// the move list. The submission is not retryable without re-dispatch.
	ErrMisaligned = errors.New("engine results misaligned with move list")
	// ErrEngine marks a well-formed payload with a defective record that
	// cannot be degraded around (missing played-move evaluation).
	ErrEngine = errors.New("engine evaluation missing")
)

// Mode selects the grading variant.
type Mode int

const (
	// ModeGame grades the principal game fetched for the identity.
	ModeGame Mode = iota
	// ModeUserGame grades a user-submitted PGN, independent of the
	// principal game.
	ModeUserGame
	// ModePV grades a custom principal-variation line anchored at an
	// arbitrary FEN instead of the game start.
	ModePV
)

func (m Mode) String() string {
	switch m {
	case ModeUserGame:
		return "user"
	case ModePV:
		return "pv"
	default:
		return "game"
	}
}

const (
	accuracyK     = 0.005
	winProbK      = 0.00368
	lossClamp     = 1000
	mateValue     = 100000
	mateWinCP     = 10000
	maxPVFrames   = 13
	maxOpeningPly = 30

	// DefaultPlayerRating fills in when a submission carries no rating.
	DefaultPlayerRating = 1200
	derivedRatingBase   = 2800
	derivedRatingSlope  = 8
	derivedRatingFloor  = 400

	// Material a mover must give up, in pawn units, for a zero-loss move
	// to count as a sacrifice.
	sacrificeThreshold = 3
)

// Ratings carries the provided player ratings used to smooth the
// evaluation-derived estimate. Zero values fall back to a default.
type Ratings struct {
	White int
	Black int
}

// Input bundles everything the grader consumes. Moves and Results must be
// the same length; StartFEN is only honored in ModePV.
type Input struct {
	Moves    []string
	Results  []domain.PositionEval
	RawPGN   string
	StartFEN string
	Ratings  Ratings
	Mode     Mode
}

// Report is the graded outcome for one (moveList, results) pair. It is
// immutable once produced: re-grading identical inputs yields an identical
// report apart from ID and CreatedAt.
type Report struct {
	ID        string
	Mode      Mode
	StartFEN  string
	Moves     []string
	BestMoves []string
	Grades    []Grade
	Losses    []int
	// WinPercents is the per-ply White win probability in [0,100],
	// indexed by ply (evaluation after that ply's move).
	WinPercents []float64

	WhiteACPL     float64
	BlackACPL     float64
	WhiteAccuracy float64
	BlackAccuracy float64

	WhiteGradeCounts [GradeCount]int
	BlackGradeCounts [GradeCount]int

	WhiteRating int
	BlackRating int

	WhiteName string
	BlackName string
	Result    string

	// Openings lists the last recognized book name per ply prefix;
	// Opening is the resolved display name for the game.
	Openings []string
	Opening  string

	// PVFrames holds, per ply, the FEN snapshots of the engine's
	// principal variation from the position the mover faced: the base FEN
	// followed by up to maxPVFrames positions.
	PVFrames [][]string

	CreatedAt time.Time
}

// Analyze runs the full grading algorithm. It never returns a partially
// populated report: any failure yields a nil report.
func Analyze(in Input) (*Report, error) {
	if len(in.Results) != len(in.Moves) {
		return nil, fmt.Errorf("%w: %d results for %d moves", ErrMisaligned, len(in.Results), len(in.Moves))
	}
	if len(in.Moves) == 0 {
		return nil, fmt.Errorf("%w: no moves to grade", ErrMisaligned)
	}

	startFEN := ""
	if in.Mode == ModePV {
		startFEN = in.StartFEN
	}
	replay, err := newReplay(startFEN, in.Moves)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisaligned, err)
	}

	n := len(in.Moves)
	report := &Report{
		ID:          uuid.NewString(),
		Mode:        in.Mode,
		StartFEN:    startFEN,
		Moves:       append([]string(nil), in.Moves...),
		BestMoves:   make([]string, n),
		Grades:      make([]Grade, n),
		Losses:      make([]int, n),
		WinPercents: make([]float64, n),
		PVFrames:    make([][]string, n),
		CreatedAt:   time.Now(),
	}

	var whiteLoss, blackLoss float64
	var whitePlies, blackPlies int

	for i := 0; i < n; i++ {
		rec := in.Results[i]
		played, ok := scoreOf(rec.CP, rec.Mate)
		if !ok {
			return nil, fmt.Errorf("%w: ply %d has neither cp nor mate", ErrEngine, i)
		}

		whiteToMove := replay.whiteToMove(i)
		report.WinPercents[i] = WinPercent(played)
		report.BestMoves[i] = rec.Best
		report.PVFrames[i] = pvFrames(replay.fens[i], rec.PV)

		best, haveBest := scoreOf(rec.BestCP, rec.BestMate)
		if rec.Best == "" || !haveBest {
			// Degraded record: no suggestion to compare against, so the
			// ply carries no classification and no centipawn loss.
			report.Grades[i] = GradeNone
			continue
		}

		loss := best - played
		if !whiteToMove {
			loss = -loss
		}
		if loss < 0 {
			loss = 0
		}
		if loss > lossClamp {
			loss = lossClamp
		}
		report.Losses[i] = loss

		grade := classify(classifyInput{
			loss:        loss,
			whiteToMove: whiteToMove,
			bestMate:    rec.BestMate,
			playedMate:  rec.Mate,
			delivered:   i == n-1 && replay.checkmate,
			sacrifice:   replay.sacrifice(i, whiteToMove),
		})
		report.Grades[i] = grade

		if whiteToMove {
			whiteLoss += float64(loss)
			whitePlies++
			report.WhiteGradeCounts[grade]++
		} else {
			blackLoss += float64(loss)
			blackPlies++
			report.BlackGradeCounts[grade]++
		}
	}

	report.WhiteACPL = acpl(whiteLoss, whitePlies)
	report.BlackACPL = acpl(blackLoss, blackPlies)
	report.WhiteAccuracy = Accuracy(report.WhiteACPL)
	report.BlackAccuracy = Accuracy(report.BlackACPL)

	report.WhiteRating = estimateRating(in.Ratings.White, report.WhiteACPL)
	report.BlackRating = estimateRating(in.Ratings.Black, report.BlackACPL)

	report.WhiteName, report.BlackName = pgn.PlayerNames(in.RawPGN)
	report.Result = pgn.ResultTag(in.RawPGN)
	report.Openings = bookNames(replay.game)
	report.Opening = openingName(in.RawPGN, report.Openings)

	return report, nil
}

// Accuracy converts average centipawn loss to a percentage via exponential
// decay: zero loss is 100.00, and the value approaches 0 as loss grows.
func Accuracy(acpl float64) float64 {
	acc := 100 * math.Exp(-accuracyK*acpl)
	return math.Round(acc*100) / 100
}

// WinPercent maps a White-perspective score in centipawns onto a White win
// probability in [0,100] using a logistic transform.
func WinPercent(score int) float64 {
	if score > mateWinCP {
		score = mateWinCP
	}
	if score < -mateWinCP {
		score = -mateWinCP
	}
	p := 50 + 50*(2/(1+math.Exp(-winProbK*float64(score)))-1)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// scoreOf collapses a cp/mate pair into a single comparable score from
// White's perspective. Mate-in-N dominates any centipawn value; closer
// mates score higher.
func scoreOf(cp, mate *int) (int, bool) {
	if mate != nil {
		m := *mate
		switch {
		case m > 0:
			return mateValue - m, true
		case m < 0:
			return -(mateValue + m), true
		}
	}
	if cp != nil {
		return *cp, true
	}
	return 0, false
}

func acpl(total float64, plies int) float64 {
	if plies == 0 {
		return 0
	}
	return total / float64(plies)
}

// estimateRating blends the provided player rating with the
// evaluation-derived estimate and rounds to the nearest 50 to smooth
// single-game outliers.
func estimateRating(provided int, acpl float64) int {
	if provided <= 0 {
		provided = DefaultPlayerRating
	}
	derived := float64(derivedRatingBase) - derivedRatingSlope*acpl
	if derived < derivedRatingFloor {
		derived = derivedRatingFloor
	}
	blended := (0.5*float64(provided) + 0.5*derived) / 50
	return int(math.Round(blended)) * 50
}

type classifyInput struct {
	loss        int
	whiteToMove bool
	bestMate    *int
	playedMate  *int
	delivered   bool
	sacrifice   bool
}

// classify maps one ply onto the closed ten-grade set. Forced-mate cases
// are checked before the loss thresholds so a mate kept (or missed) is
// never mislabeled by its centipawn delta.
func classify(in classifyInput) Grade {
	hadMate := matesFor(in.bestMate, in.whiteToMove)
	keptMate := matesFor(in.playedMate, in.whiteToMove)

	switch {
	case in.delivered || keptMate:
		return GradeMate
	case hadMate:
		return GradeMiss
	case in.loss == 0 && in.sacrifice:
		return GradeBrilliant
	case in.loss == 0:
		return GradeBest
	case in.loss <= 20:
		return GradeGreat
	case in.loss <= 50:
		return GradeGood
	case in.loss <= 100:
		return GradeOkay
	case in.loss <= 150:
		return GradeInaccuracy
	case in.loss <= 300:
		return GradeMistake
	default:
		return GradeBlunder
	}
}

func matesFor(mate *int, whiteToMove bool) bool {
	if mate == nil || *mate == 0 {
		return false
	}
	if whiteToMove {
		return *mate > 0
	}
	return *mate < 0
}

// pvFrames renders the engine's principal variation from the base position
// as FEN snapshots: the base itself plus a bounded lookahead. Illegal PV
// moves truncate the frame list rather than failing the report.
func pvFrames(baseFEN string, pv []string) []string {
	frames := []string{baseFEN}
	if len(pv) == 0 {
		return frames
	}
	game, err := pgn.NewGameAt(baseFEN)
	if err != nil {
		return frames
	}
	for _, mv := range pv {
		if len(frames) > maxPVFrames {
			break
		}
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			break
		}
		frames = append(frames, game.FEN())
	}
	return frames
}

// bookNames walks the played line through the ECO book and records the last
// recognized opening title at each ply prefix.
func bookNames(game *chesslib.Game) []string {
	book := ecoBook()
	moves := game.Moves()
	names := make([]string, 0, len(moves))
	last := ""
	limit := len(moves)
	for i := 1; i <= limit; i++ {
		if i <= maxOpeningPly {
			if eco := book.Find(moves[:i]); eco != nil && eco.Title() != "" {
				last = eco.Title()
			}
		}
		names = append(names, last)
	}
	return names
}

// openingName prefers a chess.com ECOUrl header, falling back to the
// book's last recognized name along the played line.
func openingName(rawPGN string, names []string) string {
	if name := pgn.ECOURLName(rawPGN); name != "" {
		return name
	}
	for i := len(names) - 1; i >= 0; i-- {
		if names[i] != "" {
			return names[i]
		}
	}
	return ""
}
