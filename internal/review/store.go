package review

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/park285/chess-insight/internal/analysis"
	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/tactic"
)

var (
	ErrStaleResult = errors.New("engine result carries a stale correlation id")
	ErrEmptyResult = errors.New("engine result carries no evaluations")
)

// Lane selects one of the independent analysis slots a session owns. The
// principal game, a user-submitted PGN, and a custom PV line each get their
// own slot so concurrent submissions never cross-talk.
type Lane int

const (
	LaneGame Lane = iota
	LaneUser
	LanePV

	laneCount
)

func (l Lane) String() string {
	switch l {
	case LaneUser:
		return "user"
	case LanePV:
		return "pv"
	default:
		return "game"
	}
}

// ParseLane maps a wire token onto a Lane, defaulting to the principal game.
func ParseLane(s string) Lane {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return LaneUser
	case "pv":
		return LanePV
	default:
		return LaneGame
	}
}

// lane is one analysis slot: the normalized input, the rendezvous state for
// the out-of-band engine, and the graded report cache.
type lane struct {
	rawPGN   string
	moves    []string
	fens     []string
	startFEN string

	correlation string
	payload     *domain.EngineResult
	movesReady  chan struct{}
	ready       chan struct{}

	report *analysis.Report
}

// Session owns all pipeline state for one identity. Every mutation goes
// through the session mutex so "clear old caches, set new move list" is one
// atomic step.
type Session struct {
	mu sync.Mutex

	identity string
	lanes    [laneCount]lane
	trainer  *tactic.Trainer
	browse   int

	lastSeen time.Time
}

func newSession(identity string) *Session {
	s := &Session{
		identity: identity,
		trainer:  tactic.New(),
		lastSeen: time.Now(),
	}
	for i := range s.lanes {
		s.lanes[i].movesReady = make(chan struct{})
		s.lanes[i].ready = make(chan struct{})
	}
	return s
}

func (s *Session) Identity() string { return s.identity }

func (s *Session) Trainer() *tactic.Trainer { return s.trainer }

func (s *Session) touch() {
	s.lastSeen = time.Now()
}

// Replace installs a new move list for the lane and invalidates everything
// derived from the previous one in the same atomic step: the cached report
// is nulled, any pending rendezvous is detached, and a fresh correlation id
// is issued for the next dispatch.
func (s *Session) Replace(l Lane, rawPGN, startFEN string, moves, fens []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	ln := &s.lanes[l]
	ln.rawPGN = rawPGN
	ln.startFEN = startFEN
	ln.moves = append([]string(nil), moves...)
	ln.fens = append([]string(nil), fens...)
	ln.report = nil
	ln.payload = nil
	ln.correlation = uuid.NewString()

	prevReady := ln.ready
	ln.ready = make(chan struct{})
	select {
	case <-prevReady:
	default:
		close(prevReady)
	}

	prev := ln.movesReady
	ln.movesReady = make(chan struct{})
	if len(ln.moves) > 0 {
		close(ln.movesReady)
	}
	// Wake any waiter parked on the old generation; it will observe the
	// replacement and bail out.
	select {
	case <-prev:
	default:
		close(prev)
	}
	return ln.correlation
}

// Submit stores an engine payload in the lane's result slot and wakes the
// waiting flow. Payloads with a correlation id that does not match the
// current dispatch are discarded so late or duplicate results cannot
// overwrite a newer generation.
func (s *Session) Submit(l Lane, payload *domain.EngineResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	ln := &s.lanes[l]
	if payload == nil || !payload.Ready() {
		return ErrEmptyResult
	}
	if payload.CorrelationID != "" && payload.CorrelationID != ln.correlation {
		return ErrStaleResult
	}
	payload.ReceivedAt = time.Now()
	ln.payload = payload
	select {
	case <-ln.ready:
	default:
		close(ln.ready)
	}
	return nil
}

// Moves returns the lane's normalized move list.
func (s *Session) Moves(l Lane) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lanes[l].moves...)
}

// Positions returns the FEN after each ply, the list the external engine
// consumes. The starting position is excluded.
func (s *Session) Positions(l Lane) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	fens := s.lanes[l].fens
	if len(fens) <= 1 {
		return nil
	}
	return append([]string(nil), fens[1:]...)
}

// Report returns the cached graded report for the lane, or nil.
func (s *Session) Report(l Lane) *analysis.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lanes[l].report
}

// SetReport caches a graded report, but only when the lane still belongs
// to the generation that produced it; a concurrent Replace wins.
func (s *Session) SetReport(l Lane, correlation string, report *analysis.Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	ln := &s.lanes[l]
	if correlation != ln.correlation {
		return false
	}
	ln.report = report
	return true
}

// BrowsePly tracks the ply the identity is currently viewing; the tactic
// trainer snapshots it on arm.
func (s *Session) BrowsePly() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browse
}

func (s *Session) SetBrowsePly(ply int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if ply < 0 {
		ply = 0
	}
	s.browse = ply
}

// laneState snapshots the rendezvous handles under the session lock.
func (s *Session) laneState(l Lane) (correlation string, movesReady, ready <-chan struct{}, payload *domain.EngineResult, hasMoves bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ln := &s.lanes[l]
	return ln.correlation, ln.movesReady, ln.ready, ln.payload, len(ln.moves) > 0
}

// Store is the per-identity session container. Sessions are created lazily
// and evicted only by the TTL janitor; there is no explicit destroy.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl  time.Duration
	done chan struct{}
	wg   sync.WaitGroup
}

const (
	defaultSessionTTL   = 2 * time.Hour
	defaultSweepEvery   = 5 * time.Minute
	minSessionTTL       = time.Minute
	identityKeyFallback = "anonymous"
)

// NewStore builds a session store with a TTL eviction janitor. A ttl of 0
// picks the default; sweep 0 likewise.
func NewStore(ttl, sweep time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if ttl < minSessionTTL {
		ttl = minSessionTTL
	}
	if sweep <= 0 {
		sweep = defaultSweepEvery
	}
	st := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	st.wg.Add(1)
	go st.janitor(sweep)
	return st
}

// GetOrCreate returns the session for the identity, lazily initializing an
// empty one. Idempotent.
func (st *Store) GetOrCreate(identity string) *Session {
	key := normalizeIdentity(identity)
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[key]; ok {
		s.mu.Lock()
		s.touch()
		s.mu.Unlock()
		return s
	}
	s := newSession(key)
	st.sessions[key] = s
	return s
}

// Get returns the session if it exists.
func (st *Store) Get(identity string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[normalizeIdentity(identity)]
	return s, ok
}

// Len reports the live session count.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Close stops the janitor.
func (st *Store) Close() {
	select {
	case <-st.done:
	default:
		close(st.done)
	}
	st.wg.Wait()
}

func (st *Store) janitor(sweep time.Duration) {
	defer st.wg.Done()
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()
	for {
		select {
		case <-st.done:
			return
		case <-ticker.C:
			st.evictIdle()
		}
	}
}

func (st *Store) evictIdle() {
	cutoff := time.Now().Add(-st.ttl)
	st.mu.Lock()
	defer st.mu.Unlock()
	for key, s := range st.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(st.sessions, key)
		}
	}
}

func normalizeIdentity(identity string) string {
	key := strings.ToLower(strings.TrimSpace(identity))
	if key == "" {
		return identityKeyFallback
	}
	return key
}
