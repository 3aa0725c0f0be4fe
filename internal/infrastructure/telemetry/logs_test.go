package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// recordingProcessor keeps every emitted record in memory.
type recordingProcessor struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (p *recordingProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r.Clone())
	return nil
}

func (p *recordingProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool { return true }
func (p *recordingProcessor) Shutdown(context.Context) error                         { return nil }
func (p *recordingProcessor) ForceFlush(context.Context) error                       { return nil }

var _ sdklog.Processor = (*recordingProcessor)(nil)

func (p *recordingProcessor) bodies() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.records))
	for _, r := range p.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

func newRecordingProvider(t *testing.T) (*LoggerProvider, *recordingProcessor) {
	t.Helper()
	rec := &recordingProcessor{}
	lp := &LoggerProvider{
		provider: sdklog.NewLoggerProvider(sdklog.WithProcessor(rec)),
		logger:   zap.NewNop(),
		config:   LogsConfig{Enabled: true, ServiceName: "storeshift-test"},
	}
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	return lp, rec
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false, ServiceName: "storeshift-test"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestNewLoggerProvider_EnabledWithoutCollector(t *testing.T) {
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:19999",
		ServiceName:       "storeshift-test",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestNewZapOTELCore_DisabledIsNop(t *testing.T) {
	core := NewZapOTELCore(ZapBridgeConfig{ServiceName: "storeshift"})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))

	disabled := &LoggerProvider{logger: zap.NewNop()}
	core = NewZapOTELCore(ZapBridgeConfig{LoggerProvider: disabled})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestNewZapOTELCore_ForwardsEntries(t *testing.T) {
	lp, rec := newRecordingProvider(t)

	core := NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    "storeshift",
		LoggerProvider: lp,
		Level:          zapcore.DebugLevel,
	})
	logger := zap.New(core)
	logger.Info("Imported products", zap.Int("success", 3))
	logger.Debug("Fetched page")

	assert.Equal(t, []string{"Imported products", "Fetched page"}, rec.bodies())
	rec.mu.Lock()
	assert.Equal(t, log.SeverityInfo, rec.records[0].Severity())
	rec.mu.Unlock()
}

func TestNewZapOTELCore_LevelFilter(t *testing.T) {
	lp, rec := newRecordingProvider(t)

	core := NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    "storeshift",
		LoggerProvider: lp,
		Level:          zapcore.WarnLevel,
	})
	_, filtered := core.(*levelFilterCore)
	require.True(t, filtered)

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))

	logger := zap.New(core).With(zap.String("project_id", "p-1"))
	logger.Info("dropped")
	logger.Warn("Import failed")
	logger.Error("Migration failed")

	assert.Equal(t, []string{"Import failed", "Migration failed"}, rec.bodies())
}
