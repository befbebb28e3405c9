package reviewdto

import (
	"github.com/park285/chess-insight/internal/domain"
)

// SubmitPGNRequest asks for a full game review.
type SubmitPGNRequest struct {
	Identity    string `json:"identity"`
	PGN         string `json:"pgn"`
	WhiteRating int    `json:"white_rating,omitempty"`
	BlackRating int    `json:"black_rating,omitempty"`
}

// SubmitPVRequest asks for a review of an arbitrary line from a position.
type SubmitPVRequest struct {
	Identity string   `json:"identity"`
	FEN      string   `json:"fen"`
	Moves    []string `json:"moves"`
}

// PositionEval mirrors one engine evaluation on the wire. Pointer fields
// distinguish "absent" from zero.
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

// SubmitResultsRequest delivers the engine's evaluations for a dispatched
// move list.
type SubmitResultsRequest struct {
	Identity      string         `json:"identity"`
	Lane          string         `json:"lane,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Engine        string         `json:"engine,omitempty"`
	Results       []PositionEval `json:"results"`
}

// ToEngineResult converts the wire payload to its domain form.
func (r *SubmitResultsRequest) ToEngineResult() *domain.EngineResult {
	out := &domain.EngineResult{
		CorrelationID: r.CorrelationID,
		Engine:        r.Engine,
		Results:       make([]domain.PositionEval, len(r.Results)),
	}
	for i, e := range r.Results {
		out.Results[i] = domain.PositionEval{
			Ply:      e.Ply,
			CP:       e.CP,
			Mate:     e.Mate,
			Best:     e.Best,
			BestCP:   e.BestCP,
			BestMate: e.BestMate,
			PV:       append([]string(nil), e.PV...),
			Depth:    e.Depth,
		}
	}
	return out
}

// TacticRequest drives the trainer endpoints.
type TacticRequest struct {
	Identity string `json:"identity"`
	Ply      int    `json:"ply,omitempty"`
	Move     string `json:"move,omitempty"`
}

// TacticView is the wire shape of the trainer state.
type TacticView struct {
	State    string `json:"state"`
	Ply      int    `json:"ply"`
	Frame    int    `json:"frame"`
	MaxFrame int    `json:"max_frame"`
	FEN      string `json:"fen"`
	Custom   bool   `json:"custom"`
}

// PositionsResponse carries the engine-facing FEN list.
type PositionsResponse struct {
	Positions []string `json:"positions"`
}

// BrowseRequest moves the session's viewing cursor.
type BrowseRequest struct {
	Identity string `json:"identity"`
	Ply      int    `json:"ply"`
}

// BrowseResponse reports the cursor.
type BrowseResponse struct {
	Ply int `json:"ply"`
}
