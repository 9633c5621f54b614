package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: level, Format: "json", Output: &buf})
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestStructuredLogger_ContextAttributes(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)

	l.WithComponent("orchestrator").WithRun("run-1", "req-1").WithContext("tenant", "acme").
		Info("Stage completed", "stage", 2)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "Stage completed", lines[0]["msg"])
	assert.Equal(t, "orchestrator", lines[0]["component"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "acme", lines[0]["tenant"])
	assert.Equal(t, float64(2), lines[0]["stage"])
}

func TestStructuredLogger_CloneIsolation(t *testing.T) {
	base, buf := newBufferLogger(LogLevelInfo)
	_ = base.WithContext("k", "v")

	base.Info("plain")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["k"]
	assert.False(t, ok)
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestStructuredLogger_Helpers(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)

	l.LogInvocation("research", "research", 2, time.Second, nil)
	l.LogInvocation("analysis", "analysis", 3, time.Second, errors.New("timeout"))
	l.LogStage(0, "gather", 2, 1, time.Second)
	l.LogRun("aborted", 2, time.Second, errors.New("strict abort"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "Invocation completed", lines[0]["msg"])
	assert.Equal(t, "Invocation failed", lines[1]["msg"])
	assert.Equal(t, "timeout", lines[1]["error"])
	assert.Equal(t, "Stage completed", lines[2]["msg"])
	assert.Equal(t, "Run aborted", lines[3]["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Info("ignored", "k", "v")
}
