// Package review exposes the review pipeline over HTTP. Routing is chi,
// bodies are JSON, and the engine-facing endpoints share the same router as
// the client-facing ones.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/analysis"
	"github.com/park285/chess-insight/internal/obslog"
	"github.com/park285/chess-insight/internal/pgn"
	svcreview "github.com/park285/chess-insight/internal/review"
	"github.com/park285/chess-insight/internal/tactic"
	"github.com/park285/chess-insight/pkg/reviewdto"
)

// Handler serves the review API.
type Handler struct {
	svc    *svcreview.Service
	logger *zap.Logger
}

func NewHandler(svc *svcreview.Service) *Handler {
	return &Handler{svc: svc, logger: obslog.L().Named("http")}
}

// Router builds the API route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/pgn", h.handleSubmitGame)
		r.Post("/pgn/user", h.handleSubmitUserGame)
		r.Post("/pv", h.handleSubmitPV)
		r.Post("/results", h.handleSubmitResults)
		r.Get("/positions", h.handlePositions)
		r.Get("/report", h.handleReport)

		r.Get("/browse", h.handleBrowseGet)
		r.Post("/browse", h.handleBrowseSet)

		r.Route("/tactic", func(r chi.Router) {
			r.Get("/", h.handleTacticView)
			r.Post("/arm", h.handleTacticArm)
			r.Post("/disarm", h.handleTacticDisarm)
			r.Post("/play", h.tacticOp(func(t *tactic.Trainer) error { return t.Play() }))
			r.Post("/pause", h.tacticOp(func(t *tactic.Trainer) error { return t.Pause() }))
			r.Post("/advance", h.tacticOp(func(t *tactic.Trainer) error { return t.Advance() }))
			r.Post("/retreat", h.tacticOp(func(t *tactic.Trainer) error { return t.Retreat() }))
			r.Post("/rewind", h.tacticOp(func(t *tactic.Trainer) error { return t.Rewind() }))
			r.Post("/move", h.handleTacticMove)
		})
	})
	return r
}

func (h *Handler) handleSubmitGame(w http.ResponseWriter, r *http.Request) {
	h.submitGame(w, r, h.svc.SubmitGame)
}

func (h *Handler) handleSubmitUserGame(w http.ResponseWriter, r *http.Request) {
	h.submitGame(w, r, h.svc.SubmitUserGame)
}

func (h *Handler) submitGame(w http.ResponseWriter, r *http.Request, run func(context.Context, string, string, analysis.Ratings) (*analysis.Report, error)) {
	var req reviewdto.SubmitPGNRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.PGN) == "" {
		h.writeError(w, http.StatusBadRequest, "pgn is required")
		return
	}
	report, err := run(r.Context(), req.Identity, req.PGN, analysis.Ratings{White: req.WhiteRating, Black: req.BlackRating})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reviewdto.FromReport(report))
}

func (h *Handler) handleSubmitPV(w http.ResponseWriter, r *http.Request) {
	var req reviewdto.SubmitPVRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	report, err := h.svc.AnalyzePV(r.Context(), req.Identity, req.FEN, req.Moves)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reviewdto.FromReport(report))
}

func (h *Handler) handleSubmitResults(w http.ResponseWriter, r *http.Request) {
	var req reviewdto.SubmitResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	lane := svcreview.ParseLane(req.Lane)
	if err := h.svc.SubmitResults(req.Identity, lane, req.ToEngineResult()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	lane := svcreview.ParseLane(r.URL.Query().Get("lane"))

	if r.URL.Query().Get("wait") == "true" {
		positions, err := h.svc.PositionsWait(r.Context(), identity, lane)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, reviewdto.PositionsResponse{Positions: positions})
		return
	}
	h.writeJSON(w, http.StatusOK, reviewdto.PositionsResponse{Positions: h.svc.Positions(identity, lane)})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	lane := svcreview.ParseLane(r.URL.Query().Get("lane"))
	report, err := h.svc.CachedReport(r.Context(), identity, lane)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reviewdto.FromReport(report))
}

func (h *Handler) handleBrowseGet(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	h.writeJSON(w, http.StatusOK, reviewdto.BrowseResponse{Ply: h.svc.BrowsePly(identity)})
}

func (h *Handler) handleBrowseSet(w http.ResponseWriter, r *http.Request) {
	var req reviewdto.BrowseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	h.svc.SetBrowsePly(req.Identity, req.Ply)
	h.writeJSON(w, http.StatusOK, reviewdto.BrowseResponse{Ply: h.svc.BrowsePly(req.Identity)})
}

func (h *Handler) handleTacticView(w http.ResponseWriter, r *http.Request) {
	trainer, err := h.svc.Tactic(r.URL.Query().Get("identity"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewDTO(trainer.Snapshot()))
}

func (h *Handler) handleTacticArm(w http.ResponseWriter, r *http.Request) {
	var req reviewdto.TacticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	view, err := h.svc.ArmTactic(req.Identity, req.Ply)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewDTO(view))
}

func (h *Handler) handleTacticDisarm(w http.ResponseWriter, r *http.Request) {
	var req reviewdto.TacticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	view, err := h.svc.DisarmTactic(req.Identity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewDTO(view))
}

func (h *Handler) handleTacticMove(w http.ResponseWriter, r *http.Request) {
	var req reviewdto.TacticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	trainer, err := h.svc.Tactic(req.Identity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if _, err := trainer.TryMove(req.Move); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewDTO(trainer.Snapshot()))
}

// tacticOp wraps the navigation endpoints that share the same request shape
// and only differ in the trainer method they call.
func (h *Handler) tacticOp(op func(*tactic.Trainer) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewdto.TacticRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
		trainer, err := h.svc.Tactic(req.Identity)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		if err := op(trainer); err != nil {
			h.writeDomainError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, viewDTO(trainer.Snapshot()))
	}
}

func viewDTO(v tactic.View) reviewdto.TacticView {
	return reviewdto.TacticView{
		State:    v.State.String(),
		Ply:      v.Ply,
		Frame:    v.Frame,
		MaxFrame: v.MaxFrame,
		FEN:      v.FEN,
		Custom:   v.Custom,
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pgn.ErrParse):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, svcreview.ErrInvalidPV), errors.Is(err, tactic.ErrInvalidMove):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analysis.ErrMisaligned), errors.Is(err, svcreview.ErrEmptyResult):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, svcreview.ErrStaleResult):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, svcreview.ErrNoReport):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tactic.ErrNotArmed), errors.Is(err, tactic.ErrAlreadyArmed), errors.Is(err, tactic.ErrNoFrames):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, svcreview.ErrMovesTimeout), errors.Is(err, svcreview.ErrResultTimeout):
		h.writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("response encode failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
