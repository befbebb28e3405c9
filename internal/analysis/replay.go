package analysis

import (
	"sync"

	chesslib "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/park285/chess-insight/internal/pgn"
)

var (
	ecoOnce sync.Once
	eco     *opening.BookECO
)

func ecoBook() *opening.BookECO {
	ecoOnce.Do(func() { eco = opening.NewBookECO() })
	return eco
}

var pieceValues = map[chesslib.PieceType]int{
	chesslib.Pawn:   1,
	chesslib.Knight: 3,
	chesslib.Bishop: 3,
	chesslib.Rook:   5,
	chesslib.Queen:  9,
}

type materialScore struct {
	white int
	black int
}

// replay carries the validated game alongside the per-ply context the
// grader needs: FEN before each move, side to move, running material, and
// whether the final move delivered checkmate.
type replay struct {
	game      *chesslib.Game
	fens      []string
	turns     []bool // whiteToMove per ply
	material  []materialScore
	checkmate bool
}

func newReplay(startFEN string, moves []string) (*replay, error) {
	game, err := pgn.NewGameAt(startFEN)
	if err != nil {
		return nil, err
	}

	r := &replay{
		fens:     make([]string, 0, len(moves)+1),
		turns:    make([]bool, 0, len(moves)),
		material: make([]materialScore, 0, len(moves)+1),
	}
	r.fens = append(r.fens, game.FEN())
	r.material = append(r.material, materialOf(game.Position()))

	for _, mv := range moves {
		r.turns = append(r.turns, game.Position().Turn() == chesslib.White)
		if err := pgn.ApplyMove(game, mv); err != nil {
			return nil, err
		}
		r.fens = append(r.fens, game.FEN())
		r.material = append(r.material, materialOf(game.Position()))
	}

	r.game = game
	r.checkmate = game.Outcome() != chesslib.NoOutcome && game.Method() == chesslib.Checkmate
	return r, nil
}

func (r *replay) whiteToMove(ply int) bool {
	return r.turns[ply]
}

// sacrifice reports whether the move at ply gave up net material: by the
// time the opponent has replied, the mover is down at least
// sacrificeThreshold pawns relative to before the move, beyond anything
// captured back. The final ply has no reply and never qualifies.
func (r *replay) sacrifice(ply int, whiteToMove bool) bool {
	after := ply + 2
	if after >= len(r.material) {
		return false
	}
	before := r.material[ply]
	then := r.material[after]

	var moverDrop, oppDrop int
	if whiteToMove {
		moverDrop = before.white - then.white
		oppDrop = before.black - then.black
	} else {
		moverDrop = before.black - then.black
		oppDrop = before.white - then.white
	}
	return moverDrop-oppDrop >= sacrificeThreshold
}

func materialOf(position *chesslib.Position) materialScore {
	var score materialScore
	if position == nil {
		return score
	}
	board := position.Board()
	for file := chesslib.FileA; file <= chesslib.FileH; file++ {
		for rank := chesslib.Rank1; rank <= chesslib.Rank8; rank++ {
			piece := board.Piece(chesslib.NewSquare(file, rank))
			if piece == chesslib.NoPiece {
				continue
			}
			value := pieceValues[piece.Type()]
			if value == 0 {
				continue
			}
			if piece.Color() == chesslib.White {
				score.white += value
			} else {
				score.black += value
			}
		}
	}
	return score
}
