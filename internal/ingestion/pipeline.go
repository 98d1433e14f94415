package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigboard/gigboard/internal/catalog"
	"github.com/gigboard/gigboard/internal/models"
)

// Observer receives per-candidate outcomes for metrics. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveOutcome(sourceID string, result models.OutcomeResult)
	ObserveRun(sourceID string, duration time.Duration)
}

// PipelineConfig holds tunables for the ingestion pipeline.
type PipelineConfig struct {
	PollInterval      time.Duration
	ConcurrentSources int // how many source pipelines fetch at once
	CandidateWorkers  int // per-source bounded pool for consolidation tasks
	RetryPolicy       RetryPolicy
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PollInterval:      15 * time.Minute,
		ConcurrentSources: 4,
		CandidateWorkers:  8,
		RetryPolicy:       DefaultRetryPolicy(),
	}
}

// Pipeline runs the independent per-source ingestion pipelines. Each cycle
// fetches candidates from every connector concurrently (bounded by
// ConcurrentSources) and drives each candidate through the consolidation
// engine on a bounded worker pool. All cross-task coordination happens in
// the relational store; the pipeline holds no global lock.
type Pipeline struct {
	connectors []Connector
	engine     *catalog.Engine
	runs       catalog.RunRepository
	observer   Observer
	logger     *slog.Logger
	config     PipelineConfig

	mu      sync.RWMutex
	running bool
}

func NewPipeline(
	connectors []Connector,
	engine *catalog.Engine,
	runs catalog.RunRepository,
	observer Observer,
	logger *slog.Logger,
	config PipelineConfig,
) *Pipeline {
	return &Pipeline{
		connectors: connectors,
		engine:     engine,
		runs:       runs,
		observer:   observer,
		logger:     logger,
		config:     config,
	}
}

// Start begins periodic ingestion and blocks until the context is done.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info("starting ingestion pipeline",
		"connectors", len(p.connectors),
		"poll_interval", p.config.PollInterval,
	)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline shutting down")
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle fetches and consolidates from all connectors once. Exposed for
// the manual-trigger API endpoint.
func (p *Pipeline) RunCycle(ctx context.Context) {
	since := time.Now().Add(-p.config.PollInterval * 2)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, p.config.ConcurrentSources)

	for _, connector := range p.connectors {
		wg.Add(1)
		go func(conn Connector) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if _, err := p.runSource(ctx, conn, since); err != nil {
				p.logger.Error("source run failed",
					"connector", conn.Name(),
					"error", err,
				)
			}
		}(connector)
	}

	wg.Wait()
}

// IngestBatch runs one ad-hoc batch of candidates for a push-style source
// through the same run bookkeeping as a polled connector.
func (p *Pipeline) IngestBatch(ctx context.Context, sourceID string, candidates []models.CandidateEvent) (models.Run, error) {
	conn := NewStaticConnector(sourceID, "push:"+sourceID, candidates)
	return p.runSource(ctx, conn, time.Time{})
}

// runSource executes one run for one connector: fetch with retry, then a
// bounded worker pool consolidating candidates and recording outcomes.
func (p *Pipeline) runSource(ctx context.Context, conn Connector, since time.Time) (models.Run, error) {
	start := time.Now()

	var candidates []models.CandidateEvent
	err := Retry(ctx, p.config.RetryPolicy, func() error {
		var fetchErr error
		candidates, fetchErr = conn.Fetch(ctx, since)
		if fetchErr != nil {
			return NewRetryableError(fetchErr)
		}
		return nil
	})
	if err != nil {
		return models.Run{}, fmt.Errorf("fetch from %s: %w", conn.Name(), err)
	}

	run := models.Run{
		ID:         uuid.NewString(),
		SourceID:   conn.SourceID(),
		StartedAt:  start,
		Candidates: len(candidates),
	}
	if err := p.runs.CreateRun(ctx, run); err != nil {
		return models.Run{}, fmt.Errorf("create run: %w", err)
	}

	var (
		counterMu sync.Mutex
		wg        sync.WaitGroup
	)
	work := make(chan *models.CandidateEvent)

	workers := p.config.CandidateWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for candidate := range work {
				resolution := p.processCandidate(ctx, run.ID, candidate)

				counterMu.Lock()
				switch resolution.Result {
				case models.OutcomeCreated:
					run.Created++
				case models.OutcomeConsolidated:
					run.Consolidated++
				case models.OutcomeSkipped:
					run.Skipped++
				case models.OutcomeFailed:
					run.Failed++
				}
				counterMu.Unlock()
			}
		}()
	}

feed:
	for i := range candidates {
		select {
		case <-ctx.Done():
			break feed
		case work <- &candidates[i]:
		}
	}
	close(work)
	wg.Wait()

	finished := time.Now()
	run.FinishedAt = &finished
	if err := p.runs.FinishRun(ctx, run); err != nil {
		p.logger.Error("failed to finish run", "run_id", run.ID, "error", err)
	}

	if p.observer != nil {
		p.observer.ObserveRun(conn.SourceID(), finished.Sub(start))
	}

	p.logger.Info("source run complete",
		"connector", conn.Name(),
		"candidates", run.Candidates,
		"created", run.Created,
		"consolidated", run.Consolidated,
		"skipped", run.Skipped,
		"failed", run.Failed,
		"duration_ms", finished.Sub(start).Milliseconds(),
	)
	return run, nil
}

// processCandidate drives one candidate through the engine, retrying
// rate-limit-classified failures and recording the terminal outcome. Skips
// are normal outcomes, logged at debug; failures are errors.
func (p *Pipeline) processCandidate(ctx context.Context, runID string, candidate *models.CandidateEvent) catalog.Resolution {
	var resolution catalog.Resolution

	err := Retry(ctx, p.config.RetryPolicy, func() error {
		var processErr error
		resolution, processErr = p.engine.Process(ctx, candidate)
		return processErr
	})
	if err != nil && resolution.Result != models.OutcomeFailed {
		resolution = catalog.Failed(resolution.ExternalID, err.Error())
	}

	if err != nil {
		p.logger.Error("candidate failed",
			"source_id", candidate.SourceID,
			"title", candidate.Title,
			"reason", resolution.Reason,
			"error", err,
		)
	}

	outcome := models.CandidateOutcome{
		ID:         uuid.NewString(),
		RunID:      runID,
		SourceID:   candidate.SourceID,
		ExternalID: resolution.ExternalID,
		Title:      candidate.Title,
		Result:     resolution.Result,
		Reason:     resolution.Reason,
		EventID:    resolution.EventID,
		CreatedAt:  time.Now(),
	}
	if recordErr := p.runs.RecordOutcome(ctx, outcome); recordErr != nil {
		p.logger.Error("failed to record outcome",
			"run_id", runID,
			"error", recordErr,
		)
	}

	if p.observer != nil {
		p.observer.ObserveOutcome(candidate.SourceID, resolution.Result)
	}
	return resolution
}

// IsRunning reports whether the pipeline loop is active.
func (p *Pipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// HealthCheck checks all connectors.
func (p *Pipeline) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error, len(p.connectors))
	for _, conn := range p.connectors {
		results[conn.Name()] = conn.HealthCheck(ctx)
	}
	return results
}
