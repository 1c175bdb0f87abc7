package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"trace", LevelInfo, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if got != tt.want || (err == nil) != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestDefaultLoggerFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelWarn)
	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	l.Warn("shown %d", 3)
	l.Error("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("filtered lines leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("missing lines: %q", out)
	}

	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "[DEBUG] now visible") {
		t.Error("SetLevel did not lower the threshold")
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core), LevelInfo)

	l.Debug("dropped")
	l.Info("station %s", "plc-1")
	if logs.Len() != 1 {
		t.Fatalf("entries = %d, want 1", logs.Len())
	}
	if msg := logs.All()[0].Message; msg != "station plc-1" {
		t.Errorf("message = %q", msg)
	}

	l.SetLevel(LevelDebug)
	l.Debug("kept")
	if logs.Len() != 2 {
		t.Errorf("entries = %d, want 2", logs.Len())
	}
}

func TestLogrusLogger(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	l := NewLogrusLogger(base, "dcp")
	l.SetLevel(LevelWarn)

	l.Info("dropped")
	l.Warn("refused %d blocks", 2)
	if len(hook.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(hook.Entries))
	}
	e := hook.LastEntry()
	if e.Message != "refused 2 blocks" || e.Level != logrus.WarnLevel {
		t.Errorf("entry = %v %q", e.Level, e.Message)
	}
	if e.Data["component"] != "dcp" {
		t.Errorf("component = %v", e.Data["component"])
	}
}

func TestOrNoOp(t *testing.T) {
	if _, ok := OrNoOp(nil).(*NoOpLogger); !ok {
		t.Error("nil should map to NoOpLogger")
	}
	d := NewDefaultLogger(LevelInfo)
	if OrNoOp(d) != Logger(d) {
		t.Error("non-nil logger should be returned unchanged")
	}
}
