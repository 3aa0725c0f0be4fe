package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storeshift/backend/internal/domain/migration"
	"github.com/storeshift/backend/internal/infrastructure/event"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "storeshift"

// statusStore is the subset of redis.Cmdable the mirror needs
type statusStore interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// StatusMirror copies migration status snapshots from the hub into Redis so
// other processes can watch a run. Every snapshot is published on
// "<prefix>:status:<project>" and the latest one stored under
// "<prefix>:status:last". Log lines are not mirrored; snapshots carry them.
type StatusMirror struct {
	store     statusStore
	keyPrefix string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewStatusMirror creates a mirror writing through client
func NewStatusMirror(client statusStore, keyPrefix string, logger *zap.Logger) *StatusMirror {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &StatusMirror{
		store:     client,
		keyPrefix: keyPrefix,
		timeout:   2 * time.Second,
		logger:    logger.Named("status-mirror"),
	}
}

// LastKey is the key holding the latest snapshot
func (m *StatusMirror) LastKey() string {
	return m.keyPrefix + ":status:last"
}

// Channel is the pub/sub channel of one project
func (m *StatusMirror) Channel(projectID string) string {
	return fmt.Sprintf("%s:status:%s", m.keyPrefix, projectID)
}

// Mirror writes one snapshot
func (m *StatusMirror) Mirror(ctx context.Context, status migration.MigrationStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := m.store.Set(ctx, m.LastKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}
	if status.ProjectID == nil {
		return nil
	}
	if err := m.store.Publish(ctx, m.Channel(status.ProjectID.String()), data).Err(); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

// Run subscribes to every project on hub and mirrors status messages until
// ctx is done. Redis errors are logged and the message skipped.
func (m *StatusMirror) Run(ctx context.Context, hub *event.StatusHub) {
	msgs, cancel := hub.Subscribe(nil)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.Type != event.MessageStatus || msg.Status == nil {
				continue
			}
			writeCtx, done := context.WithTimeout(ctx, m.timeout)
			if err := m.Mirror(writeCtx, *msg.Status); err != nil {
				m.logger.Warn("Failed to mirror migration status", zap.Error(err))
			}
			done()
		}
	}
}
