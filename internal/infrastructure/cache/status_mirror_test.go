package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStatusStore is a mock implementation of statusStore
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	return redis.NewIntResult(1, args.Error(0))
}

func (m *MockStatusStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return redis.NewStatusResult("OK", args.Error(0))
}

func decodeStatus(t *testing.T, v interface{}) migration.MigrationStatus {
	t.Helper()
	data, ok := v.([]byte)
	require.True(t, ok)
	var s migration.MigrationStatus
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestStatusMirror_Keys(t *testing.T) {
	m := NewStatusMirror(new(MockStatusStore), "", zap.NewNop())
	assert.Equal(t, "storeshift:status:last", m.LastKey())
	assert.Equal(t, "storeshift:status:abc", m.Channel("abc"))

	m = NewStatusMirror(new(MockStatusStore), "staging", zap.NewNop())
	assert.Equal(t, "staging:status:last", m.LastKey())
}

func TestStatusMirror_Mirror(t *testing.T) {
	store := new(MockStatusStore)
	m := NewStatusMirror(store, "", zap.NewNop())
	projectID := uuid.New()
	status := migration.NewRunningStatus(projectID, time.Now().UTC())
	status.Logs = append(status.Logs, "Fetching products")

	store.On("Set", mock.Anything, "storeshift:status:last", mock.Anything, time.Duration(0)).Return(nil)
	store.On("Publish", mock.Anything, "storeshift:status:"+projectID.String(), mock.Anything).Return(nil)

	require.NoError(t, m.Mirror(context.Background(), status))
	store.AssertExpectations(t)

	stored := decodeStatus(t, store.Calls[0].Arguments.Get(2))
	assert.True(t, stored.IsRunning)
	assert.Equal(t, []string{"Fetching products"}, stored.Logs)
}

func TestStatusMirror_IdleStatusIsNotPublished(t *testing.T) {
	store := new(MockStatusStore)
	m := NewStatusMirror(store, "", zap.NewNop())
	store.On("Set", mock.Anything, m.LastKey(), mock.Anything, time.Duration(0)).Return(nil)

	require.NoError(t, m.Mirror(context.Background(), migration.IdleStatus()))
	store.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatusMirror_SetFailure(t *testing.T) {
	store := new(MockStatusStore)
	m := NewStatusMirror(store, "", zap.NewNop())
	store.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("READONLY"))

	err := m.Mirror(context.Background(), migration.NewRunningStatus(uuid.New(), time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
	store.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatusMirror_RunFollowsHub(t *testing.T) {
	store := new(MockStatusStore)
	m := NewStatusMirror(store, "", zap.NewNop())
	hub := event.NewStatusHub()
	projectID := uuid.New()

	published := make(chan struct{}, 4)
	store.On("Set", mock.Anything, m.LastKey(), mock.Anything, time.Duration(0)).Return(nil)
	store.On("Publish", mock.Anything, m.Channel(projectID.String()), mock.Anything).
		Return(nil).
		Run(func(mock.Arguments) { published <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, hub)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.PublishLog(projectID, "ignored")
	hub.PublishStatus(migration.NewRunningStatus(projectID, time.Now()))

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("status was not mirrored")
	}

	cancel()
	<-done
	assert.Equal(t, 0, hub.SubscriberCount())
}
