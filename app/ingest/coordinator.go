package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/c3toronto/groups-sync/app/database"
	"github.com/c3toronto/groups-sync/app/groups"
	"github.com/c3toronto/groups-sync/app/planningcenter"
	"github.com/c3toronto/groups-sync/app/snapshot"
)

// Coordinator runs the fetch-transform-publish pipeline. Concurrent
// triggers collapse into the single in-flight run and share its result;
// a failed run leaves the previously published snapshot untouched.
type Coordinator struct {
	fetcher     FetcherInterface
	transformer *groups.Transformer
	classifier  *groups.Classifier
	store       SnapshotStoreInterface
	runRepo     database.RunRepository

	flight singleflight.Group

	mu         sync.Mutex
	state      State
	lastResult *Result
	lastError  error
}

func NewCoordinator(fetcher FetcherInterface, transformer *groups.Transformer, classifier *groups.Classifier, store SnapshotStoreInterface, runRepo database.RunRepository) *Coordinator {
	return &Coordinator{
		fetcher:     fetcher,
		transformer: transformer,
		classifier:  classifier,
		store:       store,
		runRepo:     runRepo,
		state:       StateIdle,
	}
}

// runTimeout bounds a single ingestion pass independently of any caller.
const runTimeout = 10 * time.Minute

// Run executes one ingestion pass, or joins the pass already in flight.
// The run is detached from the claiming caller's context; a trigger
// request disconnecting must not cancel a run other callers joined.
func (c *Coordinator) Run(ctx context.Context, trigger Trigger) (*Result, error) {
	v, err, shared := c.flight.Do("ingestion", func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runTimeout)
		defer cancel()
		return c.execute(runCtx, trigger)
	})
	if err != nil {
		return nil, err
	}

	result := v.(*Result)
	if shared {
		joined := *result
		joined.Shared = true
		return &joined, nil
	}
	return result, nil
}

// Bootstrap publishes an initial snapshot on startup when none exists
// yet, so the server never serves 404 after a fresh deploy.
func (c *Coordinator) Bootstrap(ctx context.Context) (*Result, error) {
	if c.store.Exists() {
		slog.Info("Snapshot already present, skipping bootstrap", "path", c.store.Path())
		return &Result{Trigger: TriggerBootstrap, SkippedExisting: true, SnapshotPath: c.store.Path()}, nil
	}
	return c.Run(ctx, TriggerBootstrap)
}

// State reports whether a run is currently in flight.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastOutcome returns the most recent completed run's result and error.
// Both are nil before the first run finishes.
func (c *Coordinator) LastOutcome() (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult, c.lastError
}

func (c *Coordinator) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *Coordinator) recordOutcome(result *Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.lastResult = result
	c.lastError = err
}

func (c *Coordinator) execute(ctx context.Context, trigger Trigger) (*Result, error) {
	runID := uuid.New().String()
	startedAt := time.Now()
	c.setState(StateRunning)

	slog.Info("Starting ingestion run", "run_id", runID, "trigger", trigger)
	c.insertRun(runID, trigger, startedAt)

	result, err := c.ingest(ctx, trigger)
	finishedAt := time.Now()

	if err != nil {
		slog.Error("Ingestion run failed", "run_id", runID, "trigger", trigger,
			"category", Categorize(err), "error", err)
		c.finishRun(runID, database.RunStatusFailed, result, err, startedAt, finishedAt)
		c.recordOutcome(nil, err)
		return nil, err
	}

	result.RunID = runID
	result.Trigger = trigger
	result.Duration = finishedAt.Sub(startedAt)

	slog.Info("Ingestion run complete", "run_id", runID, "trigger", trigger,
		"raw_groups", result.RawGroups, "public_groups", result.PublicGroups,
		"excluded_groups", result.ExcludedGroups, "failed_records", result.FailedRecords,
		"pages", result.Pages, "duration", result.Duration.Round(time.Millisecond))

	c.finishRun(runID, database.RunStatusSucceeded, result, nil, startedAt, finishedAt)
	c.recordOutcome(result, nil)
	return result, nil
}

func (c *Coordinator) ingest(ctx context.Context, trigger Trigger) (*Result, error) {
	if err := c.fetcher.CheckConnection(ctx); err != nil {
		return nil, err
	}

	fetched, err := c.fetcher.FetchAllGroups(ctx)
	if err != nil {
		return nil, err
	}

	pool := planningcenter.NewPool(fetched.Included)
	slog.Debug("Resolved relationship pool", "resources", pool.Size())

	result := &Result{RawGroups: len(fetched.Groups), Pages: fetched.Pages}

	publicList := make([]groups.Group, 0, len(fetched.Groups))
	for i := range fetched.Groups {
		raw := &fetched.Groups[i]

		group := c.transformer.Run(raw, pool)
		if group == nil {
			result.FailedRecords++
			continue
		}
		if !c.classifier.IsPublic(group, raw, pool) {
			result.ExcludedGroups++
			continue
		}
		publicList = append(publicList, *group)
	}
	result.PublicGroups = len(publicList)

	snap, err := c.store.Write(publicList, snapshot.SourcePlanningCenter)
	if err != nil {
		return result, err
	}
	result.SnapshotPath = c.store.Path()
	result.LastUpdated = snap.Metadata.LastUpdated
	result.Stats = buildStats(publicList)

	// The raw dump is a debugging artifact and never fails a run whose
	// snapshot is already published
	if trigger == TriggerWebhook {
		if err := c.store.WriteRaw(fetched); err != nil {
			slog.Warn("Failed to write raw dump", "error", err)
		}
	}

	return result, nil
}

func (c *Coordinator) insertRun(runID string, trigger Trigger, startedAt time.Time) {
	if c.runRepo == nil {
		return
	}
	err := c.runRepo.InsertRun(database.Run{
		ID:            runID,
		TriggerSource: string(trigger),
		Status:        database.RunStatusRunning,
		StartedAt:     startedAt,
	})
	if err != nil {
		slog.Warn("Failed to record run start", "run_id", runID, "error", err)
	}
}

func (c *Coordinator) finishRun(runID, status string, result *Result, runErr error, startedAt, finishedAt time.Time) {
	if c.runRepo == nil {
		return
	}

	run := database.Run{
		ID:         runID,
		Status:     status,
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
	}
	if result != nil {
		run.RawGroups = result.RawGroups
		run.PublicGroups = result.PublicGroups
		run.SkippedGroups = result.ExcludedGroups + result.FailedRecords
		run.Pages = result.Pages
	}
	if runErr != nil {
		run.Error = fmt.Sprintf("%s: %v", Categorize(runErr), runErr)
	}

	if err := c.runRepo.FinishRun(run); err != nil {
		slog.Warn("Failed to record run finish", "run_id", runID, "error", err)
	}
}
