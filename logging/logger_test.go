package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder keeps every entry it receives.
type recorder struct {
	entries []entry
}

type entry struct {
	level string
	msg   string
	args  []any
}

func (r *recorder) Debug(msg string, args ...any) { r.entries = append(r.entries, entry{"debug", msg, args}) }
func (r *recorder) Info(msg string, args ...any)  { r.entries = append(r.entries, entry{"info", msg, args}) }
func (r *recorder) Warn(msg string, args ...any)  { r.entries = append(r.entries, entry{"warn", msg, args}) }
func (r *recorder) Error(msg string, args ...any) { r.entries = append(r.entries, entry{"error", msg, args}) }

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var e map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	return e
}

func TestStructuredLogger_ScopedAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})

	l.WithComponent("graph").WithThread("t-1").Info("graph.run.start", "max_steps", 25)

	e := decode(t, &buf)
	assert.Equal(t, "graph.run.start", e["msg"])
	assert.Equal(t, "graph", e["component"])
	assert.Equal(t, "t-1", e["thread_id"])
	assert.EqualValues(t, 25, e["max_steps"])
}

func TestStructuredLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})
	_ = parent.WithComponent("runner").WithThread("t")

	parent.Info("plain")
	assert.NotContains(t, buf.String(), "component")
	assert.NotContains(t, buf.String(), "thread_id")
}

func TestWithThread(t *testing.T) {
	var buf bytes.Buffer
	var l Logger = NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})
	WithThread(l, "t-1").Info("runner.turn.start")
	assert.Equal(t, "t-1", decode(t, &buf)["thread_id"])

	rec := &recorder{}
	scoped := WithThread(rec, "t-2")
	scoped.Warn("checkpoint.cache.get_failed", "error", "down")
	scoped.Info("again")
	require.Len(t, rec.entries, 2)
	assert.Equal(t, []any{"thread_id", "t-2", "error", "down"}, rec.entries[0].args)
	assert.Equal(t, []any{"thread_id", "t-2"}, rec.entries[1].args)

	assert.Equal(t, NoOpLogger{}, WithThread(nil, "t"))
	assert.Equal(t, NoOpLogger{}, With(NoOpLogger{}, "k", "v"))
}

func TestEventHelpers(t *testing.T) {
	rec := &recorder{}

	NodeStep(rec, "supervisor", 2, 3*time.Millisecond, nil)
	NodeStep(rec, "research", 3, time.Millisecond, errors.New("boom"))
	ModelCall(rec, "supervisor", "gpt", time.Millisecond, nil, "tool_calls", 1)
	ModelCall(rec, "supervisor", "gpt", time.Millisecond, errors.New("rate limited"))
	ToolCall(rec, "web_search", "c1", time.Millisecond, nil)
	ToolCall(rec, "web_search", "c2", time.Millisecond, errors.New("timeout"))
	Checkpoint(rec, "save", nil, "step", 1)
	Checkpoint(rec, "save", errors.New("disk full"))

	var got []string
	for _, e := range rec.entries {
		got = append(got, e.level+" "+e.msg)
	}
	assert.Equal(t, []string{
		"debug graph.step.complete",
		"error graph.step.failed",
		"debug model.call.complete",
		"error model.call.failed",
		"info tool.call.complete",
		"error tool.call.failed",
		"debug checkpoint.save",
		"error checkpoint.save.failed",
	}, got)

	assert.Equal(t, []any{"node", "supervisor", "step", 2, "duration_ms", int64(3)}, rec.entries[0].args)
	assert.Contains(t, rec.entries[3].args, "rate limited")
	assert.Equal(t, []any{"node", "supervisor", "model", "gpt", "duration_ms", int64(1), "tool_calls", 1}, rec.entries[2].args)
	assert.Equal(t, []any{"error", "disk full"}, rec.entries[7].args)
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: &buf})

	l.Info("ignored")
	Checkpoint(l, "save", nil)
	assert.Zero(t, buf.Len())

	ToolCall(l, "web_search", "c1", time.Millisecond, errors.New("timeout"))
	assert.Contains(t, buf.String(), "tool.call.failed")
	assert.Contains(t, buf.String(), "timeout")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerImplementations(t *testing.T) {
	var _ Logger = NoOpLogger{}
	var _ Logger = &StructuredLogger{}
	var _ Logger = scoped{}
}
