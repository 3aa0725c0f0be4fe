package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Subscriber receives every entry written through a SubscriberCore along
// with a single-line human readable rendering of it.
type Subscriber func(entry zapcore.Entry, line string)

// SubscriberCore is a zapcore.Core that renders entries to "msg key=value"
// lines and hands them to subscribers. Tee it with the primary core to
// mirror a logger's output into an in-memory log.
type SubscriberCore struct {
	zapcore.LevelEnabler
	fields      []zapcore.Field
	subscribers []Subscriber
}

// NewSubscriberCore creates a core delivering entries at or above level
func NewSubscriberCore(level zapcore.LevelEnabler, subscribers ...Subscriber) zapcore.Core {
	return &SubscriberCore{LevelEnabler: level, subscribers: subscribers}
}

// With implements zapcore.Core
func (c *SubscriberCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &SubscriberCore{LevelEnabler: c.LevelEnabler, fields: merged, subscribers: c.subscribers}
}

// Check implements zapcore.Core
func (c *SubscriberCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

// Write implements zapcore.Core
func (c *SubscriberCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	line := FormatLine(entry.Message, append(append([]zapcore.Field{}, c.fields...), fields...))
	for _, sub := range c.subscribers {
		sub(entry, line)
	}
	return nil
}

// Sync implements zapcore.Core
func (c *SubscriberCore) Sync() error { return nil }

// FormatLine renders msg followed by key=value pairs in key order
func FormatLine(msg string, fields []zapcore.Field) string {
	if len(fields) == 0 {
		return msg
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	return b.String()
}
