package migration

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type syncFixture struct {
	project *migration.Project
	source  *fakeConnector
	items   *memSyncedItems
	tables  *capturingTable
	service *SyncService
}

func newSyncFixture(t *testing.T, cfg SyncServiceConfig) *syncFixture {
	t.Helper()
	f := &syncFixture{
		project: newReadyProject(migration.EntityProducts),
		source:  newFakeConnector(migration.PlatformWooCommerce),
		items:   newMemSyncedItems(),
		tables:  &capturingTable{},
	}
	projects := newMemProjects()
	require.NoError(t, projects.Save(context.Background(), f.project))
	f.service = NewSyncService(&staticLoader{project: f.project}, projects,
		&fakeFactory{source: f.source, destination: newFakeConnector(migration.PlatformShopify)},
		f.items, f.tables, cfg, zap.NewNop())
	return f
}

func products(n int) []*migration.Payload {
	out := make([]*migration.Payload, 0, n)
	for i := 1; i <= n; i++ {
		id := strconv.Itoa(i)
		out = append(out, payload("id", id, "name", "Product "+id))
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []migration.StreamEvent
}

func (l *eventLog) add(e migration.StreamEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) progress() []int {
	var out []int
	for _, e := range l.events {
		if e.Type == migration.StreamEventProgress && e.Progress != nil {
			out = append(out, *e.Progress)
		}
	}
	return out
}

func (l *eventLog) terminal() []migration.StreamEvent {
	var out []migration.StreamEvent
	for _, e := range l.events {
		if e.IsTerminal() {
			out = append(out, e)
		}
	}
	return out
}

func TestSyncService_PagesWithProgress(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{PageSize: 100})
	f.source.data[migration.EntityProducts] = products(250)
	events := &eventLog{}

	n, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, events.add)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, []int{40, 80, 100}, events.progress())

	terminal := events.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, migration.StreamEventComplete, terminal[0].Type)
	require.NotNil(t, terminal[0].Count)
	assert.Equal(t, 250, *terminal[0].Count)
	assert.Equal(t, "Synced 250 products", terminal[0].Message)
	assert.Equal(t, migration.StreamEventStatus, events.events[0].Type)
	assert.Equal(t, terminal[0], events.events[len(events.events)-1])

	assert.Equal(t, []int{250}, f.items.batchSize, "stored in one batch")
	page, err := f.service.List(context.Background(), f.project.ID, migration.EntityProducts, 3, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 250, page.Total)
	assert.Len(t, page.Items, 50)
}

func TestSyncService_UnknownTotalEmitsNoProgress(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{PageSize: 10})
	f.source.data[migration.EntityProducts] = products(25)
	f.source.declared[migration.EntityProducts] = 0
	events := &eventLog{}

	n, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, events.add)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Empty(t, events.progress())
}

func TestSyncService_StopsWhenPagesRepeat(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{PageSize: 2})
	// the second page repeats the first, as with a source that ignores paging
	f.source.data[migration.EntityProducts] = append(products(2), products(2)...)
	f.source.declared[migration.EntityProducts] = 0

	n, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, err := f.items.Count(context.Background(), f.project.ID, migration.EntityProducts)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.Equal(t, []int{2}, f.items.batchSize)
}

func TestSyncService_RejectsConcurrentSync(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{})
	f.source.data[migration.EntityProducts] = products(3)
	f.source.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, nil)
		done <- err
	}()
	<-f.source.started

	events := &eventLog{}
	_, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, events.add)
	assert.ErrorIs(t, err, migration.ErrSyncInProgress)
	assert.Empty(t, events.events, "rejected before any event")

	close(f.source.gate)
	require.NoError(t, <-done)

	// the lock is released afterwards
	_, err = f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, nil)
	assert.NoError(t, err)
}

func TestSyncService_StoreFailure(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{})
	f.source.data[migration.EntityProducts] = products(3)
	f.items.failNext = errors.New("disk full")
	events := &eventLog{}

	_, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, events.add)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	terminal := events.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, migration.StreamEventError, terminal[0].Type)
	count, _ := f.items.Count(context.Background(), f.project.ID, migration.EntityProducts)
	assert.Zero(t, count)
}

func TestSyncService_InvalidEntityType(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{})
	_, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityType("widgets"), nil)
	assert.ErrorIs(t, err, migration.ErrInvalidEntityType)

	_, err = f.service.List(context.Background(), f.project.ID, migration.EntityType("widgets"), 1, 10)
	assert.ErrorIs(t, err, migration.ErrInvalidEntityType)
}

func TestSyncService_ListClampsPageSize(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{ListPageSize: 20})
	f.source.data[migration.EntityProducts] = products(30)
	_, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, nil)
	require.NoError(t, err)

	page, err := f.service.List(context.Background(), f.project.ID, migration.EntityProducts, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Len(t, page.Items, 20)

	page, err = f.service.List(context.Background(), f.project.ID, migration.EntityProducts, 1, 10_000)
	require.NoError(t, err)
	assert.Equal(t, maxListPageSize, page.PageSize)
}

func TestSyncService_Export(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{})
	f.source.data[migration.EntityProducts] = []*migration.Payload{
		payload("id", "1", "name", "Mug", "on_sale", true),
		payload("id", "2", "sku", "TEE-1", "tags", []any{"cotton"}),
	}
	_, err := f.service.Sync(context.Background(), f.project.ID, migration.EntityProducts, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.service.Export(context.Background(), f.project.ID, migration.EntityProducts, &buf))
	assert.Equal(t, "xlsx", buf.String())
	assert.Equal(t, "products", f.tables.sheet)
	assert.Equal(t, []string{"id", "name", "on_sale", "sku", "tags"}, f.tables.columns)
	assert.Equal(t, [][]string{
		{"1", "Mug", "true", "", ""},
		{"2", "", "", "TEE-1", `["cotton"]`},
	}, f.tables.rows)
}

func TestSyncService_RefreshAll(t *testing.T) {
	f := newSyncFixture(t, SyncServiceConfig{})
	f.source.data[migration.EntityProducts] = products(4)

	require.NoError(t, f.service.RefreshAll(context.Background()))
	count, err := f.items.Count(context.Background(), f.project.ID, migration.EntityProducts)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
	count, _ = f.items.Count(context.Background(), f.project.ID, migration.EntityOrders)
	assert.Zero(t, count, "disabled types are not synced")
}
