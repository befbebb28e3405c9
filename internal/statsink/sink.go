// Package statsink records per-game aggregate statistics for the opening
// and accuracy dashboards. The sink sits off the hot path; a slow or failed
// record never blocks a report.
package statsink

import (
	"context"
	"sync"

	"github.com/park285/chess-insight/internal/domain"
)

// Sink consumes finished game statistics.
type Sink interface {
	Record(ctx context.Context, stats domain.GameStats) error
}

// MemorySink keeps stats in memory, used in tests and when no database is
// configured.
type MemorySink struct {
	mu    sync.Mutex
	games []domain.GameStats
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Record(_ context.Context, stats domain.GameStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, stats)
	return nil
}

// Games returns a copy of everything recorded so far.
func (m *MemorySink) Games() []domain.GameStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.GameStats(nil), m.games...)
}
