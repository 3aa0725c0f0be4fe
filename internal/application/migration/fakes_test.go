package migration

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memProjects struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*migration.Project
}

func newMemProjects() *memProjects {
	return &memProjects{projects: map[uuid.UUID]*migration.Project{}}
}

func (r *memProjects) Save(_ context.Context, p *migration.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	cp.Source, cp.Destination = migration.ConnectionConfig{}, migration.ConnectionConfig{}
	cp.Mappings = map[migration.EntityType]migration.EntityMapping{}
	r.projects[p.ID] = &cp
	return nil
}

func (r *memProjects) FindByID(_ context.Context, id uuid.UUID) (*migration.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, migration.ErrProjectNotFound
	}
	cp := *p
	cp.Mappings = map[migration.EntityType]migration.EntityMapping{}
	return &cp, nil
}

func (r *memProjects) List(_ context.Context) ([]*migration.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*migration.Project, 0, len(r.projects))
	for _, p := range r.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memProjects) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return migration.ErrProjectNotFound
	}
	delete(r.projects, id)
	return nil
}

type memConnections struct {
	mu    sync.Mutex
	conns map[uuid.UUID]map[migration.Role]migration.StoredConnection
}

func newMemConnections() *memConnections {
	return &memConnections{conns: map[uuid.UUID]map[migration.Role]migration.StoredConnection{}}
}

func (r *memConnections) Upsert(_ context.Context, c migration.StoredConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[c.ProjectID] == nil {
		r.conns[c.ProjectID] = map[migration.Role]migration.StoredConnection{}
	}
	r.conns[c.ProjectID][c.Role] = c
	return nil
}

func (r *memConnections) FindByProject(_ context.Context, id uuid.UUID) ([]migration.StoredConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []migration.StoredConnection
	for _, c := range r.conns[id] {
		out = append(out, c)
	}
	return out, nil
}

type memMappings struct {
	mu       sync.Mutex
	mappings map[uuid.UUID]map[migration.EntityType]migration.EntityMapping
}

func newMemMappings() *memMappings {
	return &memMappings{mappings: map[uuid.UUID]map[migration.EntityType]migration.EntityMapping{}}
}

func (r *memMappings) Upsert(_ context.Context, id uuid.UUID, m migration.EntityMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mappings[id] == nil {
		r.mappings[id] = map[migration.EntityType]migration.EntityMapping{}
	}
	m.Fields = m.Fields.Clone()
	r.mappings[id][m.EntityType] = m
	return nil
}

func (r *memMappings) FindByProject(_ context.Context, id uuid.UUID) ([]migration.EntityMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []migration.EntityMapping
	for _, m := range r.mappings[id] {
		m.Fields = m.Fields.Clone()
		out = append(out, m)
	}
	return out, nil
}

type memSyncedItems struct {
	mu        sync.Mutex
	rows      map[string]migration.SyncedItem
	failNext  error
	batchSize []int
}

func newMemSyncedItems() *memSyncedItems {
	return &memSyncedItems{rows: map[string]migration.SyncedItem{}}
}

func syncedKey(id uuid.UUID, t migration.EntityType, originalID string) string {
	return fmt.Sprintf("%s|%s|%s", id, t, originalID)
}

func (r *memSyncedItems) UpsertBatch(_ context.Context, items []migration.SyncedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	r.batchSize = append(r.batchSize, len(items))
	for _, it := range items {
		r.rows[syncedKey(it.ProjectID, it.EntityType, it.OriginalID)] = it
	}
	return nil
}

func (r *memSyncedItems) all(id uuid.UUID, t migration.EntityType) []migration.SyncedItem {
	var out []migration.SyncedItem
	for _, it := range r.rows {
		if it.ProjectID == id && it.EntityType == t {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalID < out[j].OriginalID })
	return out
}

func (r *memSyncedItems) List(_ context.Context, id uuid.UUID, t migration.EntityType, page, pageSize int) ([]migration.SyncedItem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.all(id, t)
	start := min((page-1)*pageSize, len(all))
	end := min(start+pageSize, len(all))
	return all[start:end], int64(len(all)), nil
}

func (r *memSyncedItems) Count(_ context.Context, id uuid.UUID, t migration.EntityType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.all(id, t))), nil
}

// MockMigrationRunRepository is a mock implementation of MigrationRunRepository
type MockMigrationRunRepository struct {
	mock.Mock
}

func (m *MockMigrationRunRepository) Save(ctx context.Context, run *migration.MigrationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockMigrationRunRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*migration.MigrationRun, error) {
	args := m.Called(ctx, projectID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*migration.MigrationRun), args.Error(1)
}

// MockItemRecorder is a mock implementation of ItemRecorder
type MockItemRecorder struct {
	mock.Mock
}

func (m *MockItemRecorder) RecordItems(ctx context.Context, t migration.EntityType, c migration.EntityCounter) {
	m.Called(ctx, t, c)
}

// ---------------------------------------------------------------------------
// Connectors
// ---------------------------------------------------------------------------

func payload(pairs ...any) *migration.Payload {
	p := migration.NewPayload()
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Set(pairs[i].(string), pairs[i+1])
	}
	return p
}

// fakeConnector serves scripted payloads and records imports. Products
// without a name, typed or mapped, are rejected like a real store would.
type fakeConnector struct {
	kind migration.PlatformKind

	mu          sync.Mutex
	data        map[migration.EntityType][]*migration.Payload
	unsupported map[migration.EntityType]bool
	declared    map[migration.EntityType]int
	fetchErr    error
	connectErr  error
	gate        chan struct{}
	started     chan struct{}
	startOnce   sync.Once
	panicImport bool

	exportFields []string
	importFields []string

	imported     map[migration.EntityType][]migration.Entity
	disconnected int
}

func newFakeConnector(kind migration.PlatformKind) *fakeConnector {
	return &fakeConnector{
		kind:        kind,
		data:        map[migration.EntityType][]*migration.Payload{},
		unsupported: map[migration.EntityType]bool{},
		declared:    map[migration.EntityType]int{},
		imported:    map[migration.EntityType][]migration.Entity{},
		started:     make(chan struct{}),
	}
}

func (f *fakeConnector) Kind() migration.PlatformKind { return f.kind }

func (f *fakeConnector) Connect(context.Context) error { return f.connectErr }

func (f *fakeConnector) Disconnect(context.Context) error {
	f.mu.Lock()
	f.disconnected++
	f.mu.Unlock()
	return nil
}

func (f *fakeConnector) ExportFields(context.Context, migration.EntityType) []string {
	return f.exportFields
}

func (f *fakeConnector) ImportFields(context.Context, migration.EntityType) []string {
	return f.importFields
}

func (f *fakeConnector) wait(ctx context.Context) error {
	f.startOnce.Do(func() { close(f.started) })
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeConnector) entities(t migration.EntityType, payloads []*migration.Payload) []migration.Entity {
	out := make([]migration.Entity, 0, len(payloads))
	for _, p := range payloads {
		id, _ := p.Get("id")
		e, _ := migration.NewEntity(t, migration.Record{OriginalID: fmt.Sprint(id), OriginalData: p.Clone()})
		if prod, ok := e.(*migration.Product); ok {
			if name, ok := p.Get("name"); ok {
				prod.Name = fmt.Sprint(name)
			}
		}
		out = append(out, e)
	}
	return out
}

func (f *fakeConnector) Fetch(ctx context.Context, t migration.EntityType, onProgress migration.ProgressFunc) ([]migration.Entity, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.unsupported[t] {
		return nil, fmt.Errorf("%w: %s", migration.ErrEntityNotSupported, t)
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if onProgress != nil {
		onProgress(100)
	}
	return f.entities(t, f.data[t]), nil
}

func (f *fakeConnector) FetchPage(ctx context.Context, t migration.EntityType, page, perPage int) (migration.SourcePage, error) {
	if err := f.wait(ctx); err != nil {
		return migration.SourcePage{}, err
	}
	if f.unsupported[t] {
		return migration.SourcePage{}, fmt.Errorf("%w: %s", migration.ErrEntityNotSupported, t)
	}
	all := f.data[t]
	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))
	declared, ok := f.declared[t]
	if !ok {
		declared = len(all)
	}
	return migration.SourcePage{Items: f.entities(t, all[start:end]), DeclaredTotal: declared}, nil
}

func (f *fakeConnector) Import(ctx context.Context, t migration.EntityType, entities []migration.Entity) ([]migration.ImportResult, error) {
	if f.panicImport {
		panic("destination exploded")
	}
	results := make([]migration.ImportResult, 0, len(entities))
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		f.mu.Lock()
		f.imported[t] = append(f.imported[t], e)
		f.mu.Unlock()

		id := e.Base().OriginalID
		if prod, ok := e.(*migration.Product); ok && prod.Name == "" && !e.Base().MappedFields.Has("name") {
			results = append(results, migration.ImportFailed(id, &migration.ItemImportError{OriginalID: id, Err: fmt.Errorf("missing required field %q", "name")}))
			continue
		}
		results = append(results, migration.Imported(id, "new-"+id))
	}
	return results, nil
}

func (f *fakeConnector) ImportStoreSettings(_ context.Context, s *migration.StoreSettings) (migration.ImportResult, error) {
	f.mu.Lock()
	f.imported[migration.EntityStoreSettings] = append(f.imported[migration.EntityStoreSettings], s)
	f.mu.Unlock()
	return migration.Imported(s.OriginalID, "settings"), nil
}

type fakeFactory struct {
	source      *fakeConnector
	destination *fakeConnector
}

func (f *fakeFactory) NewSource(kind migration.PlatformKind, _ migration.ConnectionConfig) (migration.Source, error) {
	if !kind.IsValid() {
		return nil, migration.ErrUnsupportedPlatform
	}
	return f.source, nil
}

func (f *fakeFactory) NewDestination(kind migration.PlatformKind, _ migration.ConnectionConfig) (migration.Destination, error) {
	if !kind.IsValid() {
		return nil, migration.ErrUnsupportedPlatform
	}
	return f.destination, nil
}

// staticLoader returns a fixed project
type staticLoader struct {
	project *migration.Project
	err     error
}

func (l *staticLoader) Load(_ context.Context, id uuid.UUID) (*migration.Project, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.project == nil || l.project.ID != id {
		return nil, migration.ErrProjectNotFound
	}
	return l.project, nil
}

// recordingPublisher keeps everything published
type recordingPublisher struct {
	mu       sync.Mutex
	statuses []migration.MigrationStatus
	lines    []string
}

func (p *recordingPublisher) PublishStatus(s migration.MigrationStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, s)
}

func (p *recordingPublisher) PublishLog(_ uuid.UUID, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
}

func (p *recordingPublisher) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// capturingTable records what would be written to a spreadsheet
type capturingTable struct {
	sheet   string
	columns []string
	rows    [][]string
}

func (c *capturingTable) WriteTable(w io.Writer, sheet string, columns []string, rows [][]string) error {
	c.sheet, c.columns, c.rows = sheet, columns, rows
	_, err := w.Write([]byte("xlsx"))
	return err
}

// newReadyProject returns a project with both sides configured and every
// entity type except the given ones disabled.
func newReadyProject(enabled ...migration.EntityType) *migration.Project {
	p, _ := migration.NewProject("Test store", migration.PlatformWooCommerce, migration.PlatformShopify)
	p.Source = migration.ConnectionConfig{URL: "https://source.example.com", Auth: migration.Auth{Key: "ck", Secret: "cs"}}
	p.Destination = migration.ConnectionConfig{URL: "https://dest.example.com", Auth: migration.Auth{Token: "shpat"}}
	on := map[migration.EntityType]bool{}
	for _, t := range enabled {
		on[t] = true
	}
	for _, t := range migration.MigrationOrder {
		m := migration.DefaultMapping(t)
		m.Enabled = on[t]
		p.SetMapping(m)
	}
	return p
}
