package reviewdto

import (
	"time"

	"github.com/park285/chess-insight/internal/analysis"
)

// Report is the wire shape of a graded game review.
type Report struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	StartFEN    string    `json:"start_fen,omitempty"`
	Moves       []string  `json:"moves"`
	BestMoves   []string  `json:"best_moves"`
	Grades      []int     `json:"grades"`
	GradeNames  []string  `json:"grade_names"`
	Losses      []int     `json:"losses"`
	WinPercents []float64 `json:"win_percents"`

	WhiteACPL     float64 `json:"white_acpl"`
	BlackACPL     float64 `json:"black_acpl"`
	WhiteAccuracy float64 `json:"white_accuracy"`
	BlackAccuracy float64 `json:"black_accuracy"`

	WhiteGradeCounts []int `json:"white_grade_counts"`
	BlackGradeCounts []int `json:"black_grade_counts"`

	WhiteRating int `json:"white_rating"`
	BlackRating int `json:"black_rating"`

	WhiteName string `json:"white_name,omitempty"`
	BlackName string `json:"black_name,omitempty"`
	Result    string `json:"result,omitempty"`

	Openings []string `json:"openings,omitempty"`
	Opening  string   `json:"opening,omitempty"`

	PVFrames [][]string `json:"pv_frames,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FromReport converts a graded report into its wire shape.
func FromReport(r *analysis.Report) *Report {
	if r == nil {
		return nil
	}
	grades := make([]int, len(r.Grades))
	names := make([]string, len(r.Grades))
	for i, g := range r.Grades {
		grades[i] = int(g)
		names[i] = g.String()
	}
	return &Report{
		ID:               r.ID,
		Mode:             r.Mode.String(),
		StartFEN:         r.StartFEN,
		Moves:            r.Moves,
		BestMoves:        r.BestMoves,
		Grades:           grades,
		GradeNames:       names,
		Losses:           r.Losses,
		WinPercents:      r.WinPercents,
		WhiteACPL:        r.WhiteACPL,
		BlackACPL:        r.BlackACPL,
		WhiteAccuracy:    r.WhiteAccuracy,
		BlackAccuracy:    r.BlackAccuracy,
		WhiteGradeCounts: r.WhiteGradeCounts[:],
		BlackGradeCounts: r.BlackGradeCounts[:],
		WhiteRating:      r.WhiteRating,
		BlackRating:      r.BlackRating,
		WhiteName:        r.WhiteName,
		BlackName:        r.BlackName,
		Result:           r.Result,
		Openings:         r.Openings,
		Opening:          r.Opening,
		PVFrames:         r.PVFrames,
		CreatedAt:        r.CreatedAt,
	}
}
