// Package telemetry collects per-episode summary records for external
// logging and dashboarding. The core emits records; rendering them is
// someone else's problem.
package telemetry

import (
	"sync"

	"github.com/google/uuid"

	"chimera/game"
)

// EpisodeRecord is one episode's summary.
type EpisodeRecord struct {
	Session       uuid.UUID
	Episode       uint64
	Tactic        game.Tactic
	Won           bool
	TotalReward   float64
	Steps         int
	PolicyVersion uint64
}

type Collector interface {
	Record(EpisodeRecord)
	Records() []EpisodeRecord
}

type collector struct {
	mu      sync.Mutex
	records []EpisodeRecord
}

func NewCollector() Collector {
	return &collector{}
}

func (c *collector) Record(r EpisodeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
}

func (c *collector) Records() []EpisodeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EpisodeRecord, len(c.records))
	copy(out, c.records)
	return out
}

type dummyCollector struct{}

// NewDummyCollector returns a no-op collector for callers that do not
// want episode summaries retained.
func NewDummyCollector() Collector {
	return dummyCollector{}
}

func (dummyCollector) Record(EpisodeRecord) {}

func (dummyCollector) Records() []EpisodeRecord { return nil }
