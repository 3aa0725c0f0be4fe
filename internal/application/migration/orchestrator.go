package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/logger"
	"github.com/storeshift/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxFailureLines caps the per-item failure lines logged for one entity type
const maxFailureLines = 20

// maxHistory caps the runs returned by History
const maxHistory = 100

// Orchestrator runs at most one migration per process. A run moves every
// enabled entity type from the project's source to its destination in
// migration.MigrationOrder; per-item failures are counted, never fatal.
type Orchestrator struct {
	projects   ProjectLoader
	connectors ConnectorFactory
	runs       migration.MigrationRunRepository
	publisher  StatusPublisher
	archive    RunArchive
	recorder   ItemRecorder
	base       *zap.Logger
	logger     *zap.Logger // tee'd into the run log

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	status  migration.MigrationStatus
	wg      sync.WaitGroup
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithPublisher sets where status snapshots and log lines are sent
func WithPublisher(p StatusPublisher) OrchestratorOption {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithRunArchive uploads a report of every finished run
func WithRunArchive(a RunArchive) OrchestratorOption {
	return func(o *Orchestrator) { o.archive = a }
}

// WithItemRecorder records per-type item counters
func WithItemRecorder(r ItemRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// NewOrchestrator creates an idle orchestrator. Everything logged through
// its "migration" logger at info level or above is appended to the status
// log of the active run.
func NewOrchestrator(
	projects ProjectLoader,
	connectors ConnectorFactory,
	runs migration.MigrationRunRepository,
	base *zap.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		projects:   projects,
		connectors: connectors,
		runs:       runs,
		publisher:  nopPublisher{},
		base:       base.Named("orchestrator"),
		status:     migration.IdleStatus(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = base.Named("migration").WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, logger.NewSubscriberCore(zapcore.InfoLevel, o.appendLog))
	}))
	return o
}

// Status returns a snapshot of the current or last run
func (o *Orchestrator) Status() migration.MigrationStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.Snapshot()
}

// IsRunning reports whether a run is active
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Start begins a run in the background. It fails with
// migration.ErrConcurrencyConflict while another run is active and leaves
// that run untouched. The run outlives ctx's cancellation but keeps its values.
func (o *Orchestrator) Start(ctx context.Context, projectID uuid.UUID) error {
	runCtx, err := o.begin(context.WithoutCancel(ctx), projectID)
	if err != nil {
		return err
	}
	go func() {
		defer o.wg.Done()
		_ = o.execute(runCtx, projectID)
	}()
	return nil
}

// Run performs a run synchronously and returns its fatal error, if any
func (o *Orchestrator) Run(ctx context.Context, projectID uuid.UUID) error {
	runCtx, err := o.begin(ctx, projectID)
	if err != nil {
		return err
	}
	defer o.wg.Done()
	return o.execute(runCtx, projectID)
}

// Shutdown cancels the active run and waits for it to finish or ctx to end
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) begin(ctx context.Context, projectID uuid.UUID) (context.Context, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, migration.ErrConcurrencyConflict
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.cancel = cancel
	o.status = migration.NewRunningStatus(projectID, time.Now().UTC())
	snap := o.status.Snapshot()
	o.wg.Add(1)
	o.mu.Unlock()

	o.publisher.PublishStatus(snap)
	return runCtx, nil
}

// execute runs the migration and always returns the orchestrator to idle
func (o *Orchestrator) execute(ctx context.Context, projectID uuid.UUID) (err error) {
	log := o.logger.With(zap.String("project", projectID.String()))
	ctx, span := telemetry.StartSpan(ctx, "migration.run",
		telemetry.WithAttribute(telemetry.SpanAttrProjectID, projectID.String()))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("migration panicked: %v", r)
			log.Error("Migration panicked", zap.Any("panic", r))
			o.base.Debug("Panic stack", zap.Stack("stack"))
		}
		telemetry.RecordError(span, err)
		span.End()
		o.finish(ctx, projectID, err)
	}()

	err = o.process(ctx, projectID)
	totals := o.Status().Totals()
	if err != nil {
		log.Error("Migration failed", zap.Error(err), zap.Int("success", totals.Success), zap.Int("failed", totals.Failed))
		return err
	}
	log.Info("Migration completed", zap.Int("success", totals.Success), zap.Int("failed", totals.Failed))
	return nil
}

func (o *Orchestrator) process(ctx context.Context, projectID uuid.UUID) error {
	log := o.logger
	log.Info("Loading project")
	project, err := o.projects.Load(ctx, projectID)
	if err != nil {
		return err
	}
	if err := project.Ready(); err != nil {
		return err
	}

	src, err := o.connectors.NewSource(project.SourceKind, project.Source)
	if err != nil {
		return err
	}
	dst, err := o.connectors.NewDestination(project.DestKind, project.Destination)
	if err != nil {
		return err
	}

	log.Info("Connecting to source", zap.String("platform", project.SourceKind.DisplayName()))
	if err := src.Connect(ctx); err != nil {
		return err
	}
	defer src.Disconnect(context.WithoutCancel(ctx))
	log.Info("Connecting to destination", zap.String("platform", project.DestKind.DisplayName()))
	if err := dst.Connect(ctx); err != nil {
		return err
	}
	defer dst.Disconnect(context.WithoutCancel(ctx))

	for _, t := range migration.MigrationOrder {
		if err := ctx.Err(); err != nil {
			return err
		}
		mapping := project.Mapping(t)
		if !mapping.Enabled {
			log.Info("Skipping " + t.DisplayName() + ": disabled")
			continue
		}
		if err := o.migrateType(ctx, t, mapping, src, dst); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) migrateType(ctx context.Context, t migration.EntityType, mapping migration.EntityMapping, src migration.Source, dst migration.Destination) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "migration", t.String(),
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, t.String()))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	log := o.logger
	name := t.DisplayName()

	log.Info("Fetching " + name)
	entities, err := src.Fetch(ctx, t, nil)
	if err != nil {
		if errors.Is(err, migration.ErrEntityNotSupported) {
			log.Warn("Skipping "+name+": not supported by source", zap.Error(err))
			return nil
		}
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	log.Info("Fetched "+name, zap.Int("count", len(entities)))

	mapping.Apply(entities)

	var results []migration.ImportResult
	if t == migration.EntityStoreSettings {
		for _, e := range entities {
			settings, ok := e.(*migration.StoreSettings)
			if !ok {
				continue
			}
			res, err := dst.ImportStoreSettings(ctx, settings)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
	} else if len(entities) > 0 {
		results, err = dst.Import(ctx, t, entities)
		if err != nil {
			return err
		}
	}

	results = migration.CompleteResults(entities, results)
	migration.ApplyNewIDs(entities, results)
	counter := migration.Tally(results)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemCount, counter.Success,
		telemetry.SpanAttrFailedCount, counter.Failed,
	)
	o.setCounter(t, counter)
	if o.recorder != nil {
		o.recorder.RecordItems(ctx, t, counter)
	}

	logged := 0
	for _, r := range results {
		if r.Success {
			continue
		}
		if logged == maxFailureLines {
			log.Warn(fmt.Sprintf("Further %s failures omitted", name), zap.Int("omitted", counter.Failed-logged))
			break
		}
		log.Warn("Import failed", zap.String("entity_type", t.String()), zap.String("id", r.OriginalID), zap.String("error", r.Error))
		logged++
	}
	log.Info("Imported "+name, zap.Int("success", counter.Success), zap.Int("failed", counter.Failed))
	return nil
}

func (o *Orchestrator) setCounter(t migration.EntityType, c migration.EntityCounter) {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.status.Entities[t] = c
	snap := o.status.Snapshot()
	o.mu.Unlock()

	o.publisher.PublishStatus(snap)
}

// appendLog receives every line written through o.logger
func (o *Orchestrator) appendLog(entry zapcore.Entry, line string) {
	if entry.Level >= zapcore.WarnLevel {
		line = strings.ToUpper(entry.Level.String()) + " " + line
	}
	o.mu.Lock()
	if !o.running || o.status.ProjectID == nil {
		o.mu.Unlock()
		return
	}
	o.status.Logs = append(o.status.Logs, line)
	projectID := *o.status.ProjectID
	snap := o.status.Snapshot()
	o.mu.Unlock()

	o.publisher.PublishLog(projectID, line)
	o.publisher.PublishStatus(snap)
}

// finish returns to idle, then persists and archives the run
func (o *Orchestrator) finish(ctx context.Context, projectID uuid.UUID, runErr error) {
	o.mu.Lock()
	now := time.Now().UTC()
	o.status.IsRunning = false
	o.status.FinishedAt = &now
	if runErr != nil {
		o.status.Error = runErr.Error()
	}
	o.running = false
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	snap := o.status.Snapshot()
	o.mu.Unlock()

	o.publisher.PublishStatus(snap)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	run := migration.NewMigrationRun(projectID, snap, runErr)
	if o.runs != nil {
		if err := o.runs.Save(saveCtx, run); err != nil {
			o.base.Error("Failed to save migration run", zap.String("run_id", run.ID.String()), zap.Error(err))
		}
	}
	if o.archive != nil {
		location, err := o.archive.Archive(saveCtx, run)
		if err != nil {
			o.base.Warn("Failed to archive migration run", zap.String("run_id", run.ID.String()), zap.Error(err))
		} else {
			o.base.Info("Migration run archived", zap.String("run_id", run.ID.String()), zap.String("location", location))
		}
	}
}

// History returns the latest finished runs of a project, newest first
func (o *Orchestrator) History(ctx context.Context, projectID uuid.UUID, limit int) ([]RunResponse, error) {
	if o.runs == nil {
		return []RunResponse{}, nil
	}
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	runs, err := o.runs.ListByProject(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, ToRunResponse(r))
	}
	return out, nil
}
