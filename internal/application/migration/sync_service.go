package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	defaultSyncPageSize = 100
	defaultListPageSize = 50
	maxListPageSize     = 500
)

// SyncServiceConfig configures paging of the sync cache
type SyncServiceConfig struct {
	PageSize     int // source page size during a sync
	ListPageSize int // default page size when listing cached rows
}

// SyncService copies source collections into the local cache. Syncs of the
// same (project, entity type) pair are serialized; a concurrent call fails
// with migration.ErrSyncInProgress.
type SyncService struct {
	projects   ProjectLoader
	lister     migration.ProjectRepository
	connectors ConnectorFactory
	items      migration.SyncedItemRepository
	tables     TableWriter
	cfg        SyncServiceConfig
	logger     *zap.Logger

	mu     sync.Mutex
	active map[syncKey]struct{}
}

type syncKey struct {
	project uuid.UUID
	entity  migration.EntityType
}

// NewSyncService creates a new SyncService
func NewSyncService(
	projects ProjectLoader,
	lister migration.ProjectRepository,
	connectors ConnectorFactory,
	items migration.SyncedItemRepository,
	tables TableWriter,
	cfg SyncServiceConfig,
	logger *zap.Logger,
) *SyncService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultSyncPageSize
	}
	if cfg.ListPageSize <= 0 {
		cfg.ListPageSize = defaultListPageSize
	}
	return &SyncService{
		projects:   projects,
		lister:     lister,
		connectors: connectors,
		items:      items,
		tables:     tables,
		cfg:        cfg,
		logger:     logger.Named("sync"),
		active:     make(map[syncKey]struct{}),
	}
}

func (s *SyncService) tryLock(k syncKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[k]; busy {
		return false
	}
	s.active[k] = struct{}{}
	return true
}

func (s *SyncService) unlock(k syncKey) {
	s.mu.Lock()
	delete(s.active, k)
	s.mu.Unlock()
}

// Sync pages through the source collection of t and upserts every record in
// one transaction. onEvent (may be nil) receives status and progress events
// and exactly one terminal complete or error event. Returns the number of
// distinct records stored.
func (s *SyncService) Sync(ctx context.Context, projectID uuid.UUID, t migration.EntityType, onEvent func(migration.StreamEvent)) (int, error) {
	if !t.IsValid() {
		return 0, fmt.Errorf("%w: %q", migration.ErrInvalidEntityType, t)
	}
	key := syncKey{project: projectID, entity: t}
	if !s.tryLock(key) {
		return 0, migration.ErrSyncInProgress
	}
	defer s.unlock(key)

	emit := func(e migration.StreamEvent) {
		if onEvent != nil {
			onEvent(e)
		}
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "sync", t.String(),
		telemetry.WithAttribute(telemetry.SpanAttrProjectID, projectID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, t.String()),
	)
	defer span.End()

	log := s.logger.With(zap.String("project_id", projectID.String()), zap.String("entity_type", t.String()))
	start := time.Now()
	n, err := s.sync(ctx, projectID, t, emit)
	telemetry.SetAttributes(span, telemetry.SpanAttrItemCount, n)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("Sync failed", zap.Error(err))
		emit(migration.ErrorEvent(err.Error()))
		return 0, err
	}
	log.Info("Sync completed", zap.Int("count", n), zap.Duration("elapsed", time.Since(start)))
	emit(migration.CompleteEvent(fmt.Sprintf("Synced %d %s", n, t.DisplayName()), n))
	return n, nil
}

func (s *SyncService) sync(ctx context.Context, projectID uuid.UUID, t migration.EntityType, emit func(migration.StreamEvent)) (int, error) {
	emit(migration.StatusEvent("Loading project"))
	project, err := s.projects.Load(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if project.Source.IsZero() {
		return 0, &migration.MissingConnectionError{Role: migration.RoleSource}
	}

	src, err := s.connectors.NewSource(project.SourceKind, project.Source)
	if err != nil {
		return 0, err
	}
	emit(migration.StatusEvent("Connecting to " + project.SourceKind.DisplayName()))
	if err := src.Connect(ctx); err != nil {
		return 0, err
	}
	defer src.Disconnect(context.WithoutCancel(ctx))

	emit(migration.StatusEvent(fmt.Sprintf("Fetching %s", t.DisplayName())))
	now := time.Now().UTC()
	seen := make(map[string]int)
	var rows []migration.SyncedItem
	declared := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p, err := src.FetchPage(ctx, t, page, s.cfg.PageSize)
		if err != nil {
			return 0, err
		}
		if page == 1 {
			declared = p.DeclaredTotal
		}
		telemetry.AddEvent(telemetry.SpanFromContext(ctx), "page_fetched", telemetry.SpanAttrPage, page, "count", len(p.Items))
		if len(p.Items) == 0 {
			break
		}

		fresh := 0
		for _, e := range p.Items {
			rec := e.Base()
			payload, err := json.Marshal(rec.OriginalData)
			if err != nil {
				return 0, fmt.Errorf("encode %s %s: %w", t, rec.OriginalID, err)
			}
			row := migration.SyncedItem{
				ProjectID:  projectID,
				EntityType: t,
				OriginalID: rec.OriginalID,
				Payload:    payload,
				SyncedAt:   now,
			}
			// one row per key; an upsert may not touch the same row twice
			if i, dup := seen[rec.OriginalID]; dup {
				rows[i] = row
				continue
			}
			seen[rec.OriginalID] = len(rows)
			rows = append(rows, row)
			fresh++
		}
		if pct := migration.ProgressPercent(len(seen), declared); pct >= 0 {
			emit(migration.ProgressEvent(pct))
		}
		// A platform that ignores the page parameter repeats itself forever.
		if fresh == 0 {
			break
		}
	}

	emit(migration.StatusEvent(fmt.Sprintf("Saving %d %s", len(seen), t.DisplayName())))
	if err := s.items.UpsertBatch(ctx, rows); err != nil {
		return 0, fmt.Errorf("store %s: %w", t, err)
	}
	return len(seen), nil
}

// List returns a page of cached rows ordered by original id
func (s *SyncService) List(ctx context.Context, projectID uuid.UUID, t migration.EntityType, page, pageSize int) (*SyncedPage, error) {
	if !t.IsValid() {
		return nil, invalidInput(fmt.Errorf("%w: %q", migration.ErrInvalidEntityType, t))
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.cfg.ListPageSize
	}
	pageSize = min(pageSize, maxListPageSize)

	items, total, err := s.items.List(ctx, projectID, t, page, pageSize)
	if err != nil {
		return nil, err
	}
	out := &SyncedPage{Items: make([]SyncedItemResponse, 0, len(items)), Total: total, Page: page, PageSize: pageSize}
	for _, it := range items {
		out.Items = append(out.Items, SyncedItemResponse{OriginalID: it.OriginalID, Payload: it.Payload, SyncedAt: it.SyncedAt})
	}
	return out, nil
}

// Export writes every cached row of t as a spreadsheet. Columns are the
// union of payload keys in first-seen order; nested values are JSON.
func (s *SyncService) Export(ctx context.Context, projectID uuid.UUID, t migration.EntityType, w io.Writer) error {
	if !t.IsValid() {
		return invalidInput(fmt.Errorf("%w: %q", migration.ErrInvalidEntityType, t))
	}

	var payloads []*migration.Payload
	for page := 1; ; page++ {
		items, total, err := s.items.List(ctx, projectID, t, page, maxListPageSize)
		if err != nil {
			return err
		}
		for _, it := range items {
			p, err := migration.PayloadFromJSON(it.Payload)
			if err != nil {
				return fmt.Errorf("decode %s %s: %w", t, it.OriginalID, err)
			}
			payloads = append(payloads, p)
		}
		if len(items) == 0 || int64(page*maxListPageSize) >= total {
			break
		}
	}

	columns := []string{}
	index := map[string]int{}
	for _, p := range payloads {
		for _, k := range p.Keys() {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
	}
	rows := make([][]string, 0, len(payloads))
	for _, p := range payloads {
		row := make([]string, len(columns))
		p.Range(func(k string, v any) bool {
			row[index[k]] = cellValue(v)
			return true
		})
		rows = append(rows, row)
	}
	return s.tables.WriteTable(w, t.String(), columns, rows)
}

func cellValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// RefreshAll re-syncs every enabled entity type of every project with a
// configured source. Used by the scheduler; failures are logged per pair.
func (s *SyncService) RefreshAll(ctx context.Context) error {
	projects, err := s.lister.List(ctx)
	if err != nil {
		return err
	}
	var synced, failed int
	for _, p := range projects {
		project, err := s.projects.Load(ctx, p.ID)
		if err != nil {
			s.logger.Warn("Skipping project", zap.String("project_id", p.ID.String()), zap.Error(err))
			failed++
			continue
		}
		if project.Source.IsZero() {
			continue
		}
		for _, t := range migration.MigrationOrder {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !project.Mapping(t).Enabled {
				continue
			}
			_, err := s.Sync(ctx, project.ID, t, nil)
			switch {
			case err == nil:
				synced++
			case errors.Is(err, migration.ErrSyncInProgress), errors.Is(err, migration.ErrEntityNotSupported):
			default:
				failed++
			}
		}
	}
	s.logger.Info("Scheduled refresh finished", zap.Int("synced", synced), zap.Int("failed", failed))
	return nil
}
