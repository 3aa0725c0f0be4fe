package migration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMigrationStatus_SnapshotIsDeepCopy(t *testing.T) {
	id := uuid.New()
	s := NewRunningStatus(id, time.Now())
	s.Logs = append(s.Logs, "first")
	s.Entities[EntityProducts] = EntityCounter{Success: 1}

	snap := s.Snapshot()
	s.Logs[0] = "changed"
	s.Entities[EntityProducts] = EntityCounter{Success: 5}
	*s.ProjectID = uuid.Nil

	assert.Equal(t, []string{"first"}, snap.Logs)
	assert.Equal(t, EntityCounter{Success: 1}, snap.Entities[EntityProducts])
	assert.True(t, snap.BelongsTo(id))
}

func TestMigrationStatus_Totals(t *testing.T) {
	s := IdleStatus()
	s.Entities[EntityProducts] = EntityCounter{Success: 3, Failed: 1}
	s.Entities[EntityOrders] = EntityCounter{Success: 2}

	assert.Equal(t, EntityCounter{Success: 5, Failed: 1}, s.Totals())
	assert.False(t, s.BelongsTo(uuid.New()))
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{100, 250, 40},
		{200, 250, 80},
		{250, 250, 100},
		{300, 250, 100},
		{1, 3, 33},
		{2, 3, 67},
		{0, 10, 0},
		{5, 0, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProgressPercent(tt.done, tt.total), "done=%d total=%d", tt.done, tt.total)
	}
}

func TestStreamEvent_IsTerminal(t *testing.T) {
	assert.False(t, ProgressEvent(10).IsTerminal())
	assert.False(t, StatusEvent("x").IsTerminal())
	assert.True(t, CompleteEvent("done", 3).IsTerminal())
	assert.True(t, ErrorEvent("boom").IsTerminal())
	assert.Equal(t, 3, *CompleteEvent("done", 3).Count)
}
