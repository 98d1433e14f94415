package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/gigboard/gigboard/internal/models"
)

// Connector adapts one upstream provider's extraction stage to the
// pipeline. Implementations live outside this engine; they hand over
// normalized candidate records and never raw HTML/JSON.
type Connector interface {
	// SourceID returns the configured source this connector feeds.
	SourceID() string

	// Name returns a human-readable identifier for logs.
	Name() string

	// Fetch returns candidate events listed upstream since the given time.
	// Rate-limit failures should be wrapped with NewRateLimitError so the
	// pipeline backs off instead of failing the run.
	Fetch(ctx context.Context, since time.Time) ([]models.CandidateEvent, error)

	// HealthCheck verifies the connector can reach its provider.
	HealthCheck(ctx context.Context) error
}

// StaticConnector serves a fixed candidate list. Tests and local seeding
// use it in place of a real extraction stage.
type StaticConnector struct {
	mu         sync.Mutex
	sourceID   string
	name       string
	candidates []models.CandidateEvent
}

func NewStaticConnector(sourceID, name string, candidates []models.CandidateEvent) *StaticConnector {
	return &StaticConnector{sourceID: sourceID, name: name, candidates: candidates}
}

func (c *StaticConnector) SourceID() string { return c.sourceID }

func (c *StaticConnector) Name() string { return c.name }

func (c *StaticConnector) Fetch(ctx context.Context, since time.Time) ([]models.CandidateEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CandidateEvent, len(c.candidates))
	copy(out, c.candidates)
	return out, nil
}

func (c *StaticConnector) HealthCheck(ctx context.Context) error { return nil }

// SetCandidates replaces the served list.
func (c *StaticConnector) SetCandidates(candidates []models.CandidateEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = candidates
}
