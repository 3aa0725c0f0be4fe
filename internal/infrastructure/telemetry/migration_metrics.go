package telemetry

import (
	"context"
	"errors"

	"github.com/storeshift/backend/internal/domain/migration"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor gets a nil meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// MigrationMetrics records per-item import outcomes of migration runs as
// storeshift.migration.items{entity_type, outcome}.
type MigrationMetrics struct {
	items *Counter
}

// NewMigrationMetrics creates the migration instruments on meter
func NewMigrationMetrics(meter metric.Meter) (*MigrationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	items, err := NewCounter(meter,
		"storeshift.migration.items",
		"Items processed by migration runs, by entity type and outcome",
		"{item}",
	)
	if err != nil {
		return nil, err
	}
	return &MigrationMetrics{items: items}, nil
}

// RecordItems adds one entity type's counters
func (m *MigrationMetrics) RecordItems(ctx context.Context, t migration.EntityType, c migration.EntityCounter) {
	if c.Success > 0 {
		m.items.Add(ctx, int64(c.Success), AttrEntityType.String(t.String()), AttrOutcome.String("success"))
	}
	if c.Failed > 0 {
		m.items.Add(ctx, int64(c.Failed), AttrEntityType.String(t.String()), AttrOutcome.String("failed"))
	}
}
