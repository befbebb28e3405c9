package domain

import "time"

// PositionEval is one engine evaluation record, aligned 1:1 with a ply.
// Evaluations are centipawns from White's perspective. CP and Mate are
// pointers so "no value" is distinguishable from zero; at least one of the
// played-move pair must be present for grading to proceed.
type PositionEval struct {
	Ply      int      `json:"ply"`
	CP       *int     `json:"cp,omitempty"`
	Mate     *int     `json:"mate,omitempty"`
	Best     string   `json:"best,omitempty"`
	BestCP   *int     `json:"best_cp,omitempty"`
	BestMate *int     `json:"best_mate,omitempty"`
	PV       []string `json:"pv,omitempty"`
	Depth    int      `json:"depth,omitempty"`
}

// EngineResult is the payload the external evaluation engine posts back for
// a previously dispatched position list.
type EngineResult struct {
	CorrelationID string         `json:"correlation_id,omitempty"`
	Engine        string         `json:"engine,omitempty"`
	Results       []PositionEval `json:"results"`
	ReceivedAt    time.Time      `json:"-"`
}

// Ready reports whether the payload carries a non-empty results sequence.
// An empty sequence means the engine has not produced output yet.
func (r *EngineResult) Ready() bool {
	return r != nil && len(r.Results) > 0
}

// GameStats is the per-game artifact emitted for the external
// opening-statistics store after a report has been graded.
type GameStats struct {
	Identity      string
	ReportID      string
	Opening       string
	Result        string
	WhiteACPL     float64
	BlackACPL     float64
	WhiteAccuracy float64
	BlackAccuracy float64
	WhiteBlunders int
	BlackBlunders int
	MoveCount     int
	GradedAt      time.Time
}
