package obs

import (
	"bytes"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   Debug,
		"INFO":    Info,
		"":        Info,
		" warn ":  Warn,
		"warning": Warn,
		"error":   Error,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestStdLogger_FiltersBelowMin(t *testing.T) {
	var buf bytes.Buffer
	l := StdLogger{L: log.New(&buf, "", 0), Min: Info, Pref: "zr"}

	l.Logf(Debug, "hidden %d", 1)
	l.Logf(Info, "shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "zr[INFO] shown 2")
}

func TestConsoleLogger_WritesMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "test", Info, true)

	l.Logf(Debug, "trace line")
	l.Logf(Info, "closing connection %s", "c-1")

	out := buf.String()
	assert.NotContains(t, out, "trace line")
	assert.Contains(t, out, "closing connection c-1")
}

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(&buf, "test", Debug, true)

	l.Logf(Warn, "value=%d", 7)

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, `"level":"WARN"`)
	assert.Contains(t, line, `"msg":"value=7"`)
	assert.Contains(t, line, `"app":"test"`)
}

func TestPromMeter_Counter(t *testing.T) {
	m := NewPromMeter("zeroguard", nil)

	m.Counter("zeroread_terminations_total", 1, Label{Key: "reason", Value: "timeout"})
	m.Counter("zeroread_terminations_total", 2, Label{Key: "reason", Value: "timeout"})
	// different label set is dropped rather than panicking
	m.Counter("zeroread_terminations_total", 5, Label{Key: "other", Value: "x"})
	m.Histogram("read_bytes", 10)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "zeroguard_zeroread_terminations_total" {
			continue
		}
		found = true
		require.Len(t, f.GetMetric(), 1)
		assert.Equal(t, 3.0, f.GetMetric()[0].GetCounter().GetValue())
	}
	assert.True(t, found)
}

func TestEnabled(t *testing.T) {
	cases := []struct {
		name  string
		l     Logger
		debug bool
		info  bool
	}{
		{"nil", nil, false, false},
		{"nop", NopLogger{}, false, false},
		{"std info", StdLogger{L: log.New(io.Discard, "", 0), Min: Info}, false, true},
		{"std without log", StdLogger{Min: Debug}, false, false},
		{"console info", NewConsoleLogger(io.Discard, "test", Info, true), false, true},
		{"console debug", NewConsoleLogger(io.Discard, "test", Debug, true), true, true},
		{"slog info", NewSlogLogger(io.Discard, "test", Info, true), false, true},
		{"slog debug", NewSlogLogger(io.Discard, "test", Debug, false), true, true},
		{"unknown logger", plainLogger{}, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.debug, Enabled(tc.l, Debug))
			assert.Equal(t, tc.info, Enabled(tc.l, Info))
		})
	}
}

type plainLogger struct{}

func (plainLogger) Logf(Level, string, ...interface{}) {}

func TestOrNop(t *testing.T) {
	assert.IsType(t, NopLogger{}, OrNop(nil))
	assert.IsType(t, NopMeter{}, MeterOrNop(nil))
}
