package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// a single connection keeps the in-memory database alive across calls
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func newTestProject(t *testing.T, db *gorm.DB) *migration.Project {
	p, err := migration.NewProject("Shop move", migration.PlatformWooCommerce, migration.PlatformShopify)
	require.NoError(t, err)
	require.NoError(t, NewGormProjectRepository(db).Save(context.Background(), p))
	return p
}

func TestGormProjectRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormProjectRepository(db)
	ctx := context.Background()

	t.Run("saves and finds a project", func(t *testing.T) {
		p := newTestProject(t, db)

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Shop move", found.Name)
		assert.Equal(t, migration.PlatformWooCommerce, found.SourceKind)
		assert.Equal(t, migration.PlatformShopify, found.DestKind)
	})

	t.Run("save updates an existing row", func(t *testing.T) {
		p := newTestProject(t, db)
		p.Name = "Renamed"
		require.NoError(t, repo.Save(ctx, p))

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", found.Name)
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, migration.ErrProjectNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), migration.ErrProjectNotFound)
	})

	t.Run("delete removes children", func(t *testing.T) {
		p := newTestProject(t, db)
		require.NoError(t, NewGormConnectionConfigRepository(db).Upsert(ctx, migration.StoredConnection{
			ProjectID: p.ID, Role: migration.RoleSource, URL: "https://a.example", AuthBlob: "blob", UpdatedAt: time.Now(),
		}))
		require.NoError(t, NewGormSyncedItemRepository(db).UpsertBatch(ctx, []migration.SyncedItem{
			{ProjectID: p.ID, EntityType: migration.EntityProducts, OriginalID: "1", Payload: json.RawMessage(`{}`), SyncedAt: time.Now()},
		}))

		require.NoError(t, repo.Delete(ctx, p.ID))

		conns, err := NewGormConnectionConfigRepository(db).FindByProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, conns)
		n, err := NewGormSyncedItemRepository(db).Count(ctx, p.ID, migration.EntityProducts)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("lists projects", func(t *testing.T) {
		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, list)
	})
}

func TestGormConnectionConfigRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormConnectionConfigRepository(db)
	ctx := context.Background()
	p := newTestProject(t, db)

	conn := migration.StoredConnection{ProjectID: p.ID, Role: migration.RoleSource, URL: "https://old.example", AuthBlob: "one", UpdatedAt: time.Now()}
	require.NoError(t, repo.Upsert(ctx, conn))
	conn.URL = "https://new.example"
	conn.AuthBlob = "two"
	require.NoError(t, repo.Upsert(ctx, conn))
	require.NoError(t, repo.Upsert(ctx, migration.StoredConnection{ProjectID: p.ID, Role: migration.RoleDestination, URL: "https://dest.example", AuthBlob: "three", UpdatedAt: time.Now()}))

	conns, err := repo.FindByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	byRole := map[migration.Role]migration.StoredConnection{}
	for _, c := range conns {
		byRole[c.Role] = c
	}
	assert.Equal(t, "https://new.example", byRole[migration.RoleSource].URL)
	assert.Equal(t, "two", byRole[migration.RoleSource].AuthBlob)
	assert.Equal(t, "three", byRole[migration.RoleDestination].AuthBlob)
}

func TestGormEntityMappingRepository_PreservesFieldOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormEntityMappingRepository(db)
	ctx := context.Background()
	p := newTestProject(t, db)

	mapping := migration.EntityMapping{
		EntityType: migration.EntityProducts,
		Enabled:    false,
		Fields:     migration.FieldMapOf("title", "name", "price", "regular_price", "vendor", ""),
	}
	require.NoError(t, repo.Upsert(ctx, p.ID, mapping))

	mapping.Enabled = true
	require.NoError(t, repo.Upsert(ctx, p.ID, mapping))

	found, err := repo.FindByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Enabled)
	assert.Equal(t, []string{"title", "price", "vendor"}, found[0].Fields.Keys())
	v, ok := found[0].Fields.Get("price")
	assert.True(t, ok)
	assert.Equal(t, "regular_price", v)
}

func TestGormSyncedItemRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSyncedItemRepository(db)
	ctx := context.Background()
	p := newTestProject(t, db)

	item := func(id, name string) migration.SyncedItem {
		return migration.SyncedItem{
			ProjectID:  p.ID,
			EntityType: migration.EntityProducts,
			OriginalID: id,
			Payload:    json.RawMessage(fmt.Sprintf(`{"name":%q}`, name)),
			SyncedAt:   time.Now().UTC(),
		}
	}

	t.Run("upserts without duplicates", func(t *testing.T) {
		require.NoError(t, repo.UpsertBatch(ctx, []migration.SyncedItem{item("1", "a"), item("2", "b")}))
		require.NoError(t, repo.UpsertBatch(ctx, []migration.SyncedItem{item("2", "b2"), item("3", "c"), item("3", "c2")}))

		items, total, err := repo.List(ctx, p.ID, migration.EntityProducts, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 3)
		assert.JSONEq(t, `{"name":"b2"}`, string(items[1].Payload))
		assert.JSONEq(t, `{"name":"c2"}`, string(items[2].Payload))
	})

	t.Run("paginates", func(t *testing.T) {
		items, total, err := repo.List(ctx, p.ID, migration.EntityProducts, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 1)
		assert.Equal(t, "3", items[0].OriginalID)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.UpsertBatch(ctx, nil))
	})

	t.Run("other entity types are separate", func(t *testing.T) {
		n, err := repo.Count(ctx, p.ID, migration.EntityOrders)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGormSyncedItemRepository_FailedBatchKeepsSnapshot(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSyncedItemRepository(db)
	ctx := context.Background()
	p := newTestProject(t, db)

	batch := func(n int, name string) []migration.SyncedItem {
		items := make([]migration.SyncedItem, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, migration.SyncedItem{
				ProjectID:  p.ID,
				EntityType: migration.EntityProducts,
				OriginalID: fmt.Sprintf("%04d", i),
				Payload:    json.RawMessage(fmt.Sprintf(`{"name":%q}`, name)),
				SyncedAt:   time.Now().UTC(),
			})
		}
		return items
	}

	n := syncedItemBatchSize + 100
	require.NoError(t, repo.UpsertBatch(ctx, batch(n, "old")))

	// fail the second INSERT chunk of the next upsert
	chunks := 0
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:fail_second_chunk", func(tx *gorm.DB) {
		if tx.Statement.Table != "synced_items" {
			return
		}
		chunks++
		if chunks == 2 {
			_ = tx.AddError(errors.New("boom"))
		}
	}))

	err := repo.UpsertBatch(ctx, batch(n, "new"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 2, chunks)

	items, total, err := repo.List(ctx, p.ID, migration.EntityProducts, 1, n)
	require.NoError(t, err)
	assert.Equal(t, int64(n), total)
	require.Len(t, items, n)
	for _, item := range items {
		assert.JSONEq(t, `{"name":"old"}`, string(item.Payload), "item %s", item.OriginalID)
	}
}

func TestGormMigrationRunRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMigrationRunRepository(db)
	ctx := context.Background()
	p := newTestProject(t, db)

	status := migration.NewRunningStatus(p.ID, time.Now().Add(-time.Minute))
	status.Entities[migration.EntityProducts] = migration.EntityCounter{Success: 1, Failed: 1}
	status.Logs = append(status.Logs, "Products migrated: 1 ok, 1 failed")

	older := migration.NewMigrationRun(p.ID, status, nil)
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := migration.NewMigrationRun(p.ID, status, assert.AnError)
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	runs, err := repo.ListByProject(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, migration.RunFailed, runs[0].Outcome)
	assert.Equal(t, migration.EntityCounter{Success: 1, Failed: 1}, runs[0].Entities[migration.EntityProducts])
	assert.Equal(t, []string{"Products migrated: 1 ok, 1 failed"}, runs[0].Logs)
	assert.Equal(t, migration.RunCompleted, runs[1].Outcome)
}
