package pgn

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// ErrParse marks malformed or unloadable PGN input. Callers must not
// dispatch analysis for a submission that failed to normalize.
var ErrParse = errors.New("pgn parse failed")

var (
	commentRe     = regexp.MustCompile(`\{[^}]*\}`)
	inlineTagRe   = regexp.MustCompile(`\[%[^\]]*\]`)
	terminationRe = regexp.MustCompile(`(?im)\b(White|Black) (wins|resigns|abandons|checkmated|timeout|draws).*$`)
	glyphRe       = regexp.MustCompile(`[+#?!]+`)
	ecoURLRe      = regexp.MustCompile(`\[ECOUrl\s+"([^"]+)"\]`)
	whiteTagRe    = regexp.MustCompile(`\[White\s+"(.+?)"\]`)
	blackTagRe    = regexp.MustCompile(`\[Black\s+"(.+?)"\]`)
	resultTagRe   = regexp.MustCompile(`\[Result\s+"(.+?)"\]`)
)

// Game is the normalized outcome of a PGN submission.
type Game struct {
	// Moves holds the validated SAN main line with annotation glyphs
	// stripped ("Nf3+" becomes "Nf3").
	Moves []string
	// FENs holds the start position followed by one FEN per ply, so
	// len(FENs) == len(Moves)+1.
	FENs []string
}

// Clean strips comment blocks, inline evaluation/clock tags, termination
// narration, a single stray trailing quote, and surrounding whitespace.
// It is pure: the same input always yields the same output.
func Clean(raw string) string {
	cleaned := commentRe.ReplaceAllString(raw, "")
	cleaned = inlineTagRe.ReplaceAllString(cleaned, "")
	cleaned = terminationRe.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, "\r\n", "\n")
	cleaned = strings.TrimSuffix(cleaned, `"`)
	return strings.TrimSpace(cleaned)
}

// Normalize cleans raw PGN text and loads it into a rules-validating
// player. It fails with ErrParse when the cleaned text is not a legal game.
func Normalize(raw string) (*Game, error) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty input", ErrParse)
	}

	opt, err := chesslib.PGN(strings.NewReader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	game := chesslib.NewGame(opt)

	moves := game.Moves()
	positions := game.Positions()

	notation := chesslib.AlgebraicNotation{}
	san := make([]string, 0, len(moves))
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		token := glyphRe.ReplaceAllString(notation.Encode(positions[i], mv), "")
		san = append(san, token)
	}

	// Replay to collect the FEN after every ply. The replay doubles as a
	// legality check on the stripped tokens.
	fens, err := ReplayFENs("", san)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return &Game{Moves: san, FENs: fens}, nil
}

// ReplayFENs applies SAN moves (UCI accepted as fallback) from startFEN
// ("" or "startpos" means the initial position) and returns the starting FEN
// followed by the FEN after each ply.
func ReplayFENs(startFEN string, moves []string) ([]string, error) {
	game, err := NewGameAt(startFEN)
	if err != nil {
		return nil, err
	}

	fens := make([]string, 0, len(moves)+1)
	fens = append(fens, game.FEN())
	for _, mv := range moves {
		if err := ApplyMove(game, mv); err != nil {
			return nil, err
		}
		fens = append(fens, game.FEN())
	}
	return fens, nil
}

// NewGameAt builds a game anchored at the given FEN, or the initial
// position when fen is empty or "startpos".
func NewGameAt(fen string) (*chesslib.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return chesslib.NewGame(), nil
	}
	option, err := chesslib.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return chesslib.NewGame(option), nil
}

// ApplyMove pushes a SAN token onto the game, accepting lowercase UCI as a
// fallback for engine-originated lines.
func ApplyMove(game *chesslib.Game, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty move token")
	}
	if err := game.PushNotationMove(token, chesslib.AlgebraicNotation{}, nil); err == nil {
		return nil
	}
	if err := game.PushNotationMove(strings.ToLower(token), chesslib.UCINotation{}, nil); err != nil {
		return fmt.Errorf("apply move %q: %w", token, err)
	}
	return nil
}

// ECOURLName derives an opening name from a chess.com style ECOUrl header,
// returning "" when the header is absent or unusable.
func ECOURLName(rawPGN string) string {
	m := ecoURLRe.FindStringSubmatch(rawPGN)
	if m == nil {
		return ""
	}
	parts := strings.SplitN(m[1], "/openings/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	words := strings.Split(parts[1], "-")
	if len(words) > 6 {
		words = words[:6]
	}
	name := strings.Join(words, " ")
	if idx := strings.IndexFunc(name, func(r rune) bool { return r >= '0' && r <= '9' }); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), "...")
	if len(name) <= 3 {
		return ""
	}
	return strings.TrimSpace(name)
}

// PlayerNames extracts the White and Black header values from raw PGN text.
func PlayerNames(rawPGN string) (white, black string) {
	if m := whiteTagRe.FindStringSubmatch(rawPGN); m != nil {
		white = m[1]
	}
	if m := blackTagRe.FindStringSubmatch(rawPGN); m != nil {
		black = m[1]
	}
	return white, black
}

// ResultTag extracts the Result header value ("1-0", "0-1", "1/2-1/2"),
// or "" when absent.
func ResultTag(rawPGN string) string {
	if m := resultTagRe.FindStringSubmatch(rawPGN); m != nil {
		return m[1]
	}
	return ""
}
