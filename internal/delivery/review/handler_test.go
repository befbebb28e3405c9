package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	svcreview "github.com/park285/chess-insight/internal/review"
	"github.com/park285/chess-insight/pkg/reviewdto"
)

const testPGN = `[White "alice"]
[Black "bob"]
[Result "1-0"]

1. e4 e5 2. Nf3 Nc6 1-0`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := svcreview.NewStore(0, 0)
	svc, err := svcreview.NewService(store, nil, nil, svcreview.Options{
		MovesWait:  time.Second,
		ResultWait: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	srv := httptest.NewServer(NewHandler(svc).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

// pumpEngine imitates the external engine against the HTTP surface: wait
// for positions, then post one evaluation per position.
func pumpEngine(t *testing.T, base, identity, lane string) {
	t.Helper()
	go func() {
		resp, err := http.Get(fmt.Sprintf("%s/v1/positions?identity=%s&lane=%s&wait=true", base, identity, lane))
		if err != nil || resp.StatusCode != http.StatusOK {
			return
		}
		var positions reviewdto.PositionsResponse
		err = json.NewDecoder(resp.Body).Decode(&positions)
		resp.Body.Close()
		if err != nil {
			return
		}
		zero := 0
		results := make([]reviewdto.PositionEval, len(positions.Positions))
		for i := range results {
			results[i] = reviewdto.PositionEval{Ply: i, CP: &zero, Best: "e4", BestCP: &zero}
		}
		raw, _ := json.Marshal(reviewdto.SubmitResultsRequest{
			Identity: identity,
			Lane:     lane,
			Results:  results,
		})
		r2, err := http.Post(base+"/v1/results", "application/json", bytes.NewReader(raw))
		if err == nil {
			r2.Body.Close()
		}
	}()
}

func TestSubmitGameOverHTTP(t *testing.T) {
	srv := testServer(t)
	pumpEngine(t, srv.URL, "u1", "game")

	resp := postJSON(t, srv.URL+"/v1/pgn", reviewdto.SubmitPGNRequest{
		Identity:    "u1",
		PGN:         testPGN,
		WhiteRating: 1500,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	report := decodeBody[reviewdto.Report](t, resp)
	if len(report.Moves) != 4 || report.WhiteName != "alice" {
		t.Fatalf("report: %+v", report)
	}
	if len(report.Grades) != 4 || len(report.WhiteGradeCounts) == 0 {
		t.Fatalf("grading fields missing: %+v", report)
	}

	// The report is now retrievable without re-analysis.
	r2, err := http.Get(srv.URL + "/v1/report?identity=u1")
	if err != nil {
		t.Fatalf("GET report: %v", err)
	}
	if r2.StatusCode != http.StatusOK {
		t.Fatalf("report status %d", r2.StatusCode)
	}
	cached := decodeBody[reviewdto.Report](t, r2)
	if cached.ID != report.ID {
		t.Fatalf("cached id diverged")
	}
}

func TestSubmitGameValidation(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/pgn", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed json: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/pgn", reviewdto.SubmitPGNRequest{Identity: "u", PGN: "  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank pgn: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/pgn", reviewdto.SubmitPGNRequest{Identity: "u", PGN: "1. zz xx"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unparseable pgn: status %d", resp.StatusCode)
	}
}

func TestResultsMisalignmentRejected(t *testing.T) {
	srv := testServer(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		zero := 0
		resp := postJSON(t, srv.URL+"/v1/results", reviewdto.SubmitResultsRequest{
			Identity: "u",
			Results:  []reviewdto.PositionEval{{Ply: 0, CP: &zero, Best: "e4", BestCP: &zero}},
		})
		resp.Body.Close()
	}()

	resp := postJSON(t, srv.URL+"/v1/pgn", reviewdto.SubmitPGNRequest{Identity: "u", PGN: testPGN})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("misaligned results: status %d", resp.StatusCode)
	}
}

func TestEmptyResultsRejected(t *testing.T) {
	srv := testServer(t)
	resp := postJSON(t, srv.URL+"/v1/results", reviewdto.SubmitResultsRequest{Identity: "u"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty results: status %d", resp.StatusCode)
	}
}

func TestReportNotFound(t *testing.T) {
	srv := testServer(t)
	resp, err := http.Get(srv.URL + "/v1/report?identity=nobody")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestPositionsWithoutWait(t *testing.T) {
	srv := testServer(t)
	resp, err := http.Get(srv.URL + "/v1/positions?identity=nobody")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	positions := decodeBody[reviewdto.PositionsResponse](t, resp)
	if len(positions.Positions) != 0 {
		t.Fatalf("positions for unknown identity: %v", positions.Positions)
	}
}

func TestBrowseRoundTrip(t *testing.T) {
	srv := testServer(t)

	resp := postJSON(t, srv.URL+"/v1/browse", reviewdto.BrowseRequest{Identity: "u", Ply: 7})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status %d", resp.StatusCode)
	}
	set := decodeBody[reviewdto.BrowseResponse](t, resp)
	if set.Ply != 7 {
		t.Fatalf("set ply %d", set.Ply)
	}

	r2, err := http.Get(srv.URL + "/v1/browse?identity=u")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	got := decodeBody[reviewdto.BrowseResponse](t, r2)
	if got.Ply != 7 {
		t.Fatalf("get ply %d", got.Ply)
	}
}

func TestTacticEndpoints(t *testing.T) {
	srv := testServer(t)
	pumpEngine(t, srv.URL, "u", "game")

	resp := postJSON(t, srv.URL+"/v1/pgn", reviewdto.SubmitPGNRequest{Identity: "u", PGN: testPGN})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d", resp.StatusCode)
	}

	// Navigation before arming is a state conflict.
	resp = postJSON(t, srv.URL+"/v1/tactic/advance", reviewdto.TacticRequest{Identity: "u"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("advance while idle: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/tactic/arm", reviewdto.TacticRequest{Identity: "u", Ply: 0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("arm status %d", resp.StatusCode)
	}
	view := decodeBody[reviewdto.TacticView](t, resp)
	if view.State != "armed" || view.FEN == "" {
		t.Fatalf("armed view: %+v", view)
	}

	resp = postJSON(t, srv.URL+"/v1/tactic/disarm", reviewdto.TacticRequest{Identity: "u"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disarm status %d", resp.StatusCode)
	}
	view = decodeBody[reviewdto.TacticView](t, resp)
	if view.State != "idle" {
		t.Fatalf("disarmed view: %+v", view)
	}
}
