package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/inkbridge/inkbridge/internal/events"
)

func TestLogger_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Options{Console: &buf})

	l.Infof("submitted %d of %d", 1, 2)

	if !strings.Contains(buf.String(), "submitted 1 of 2") {
		t.Errorf("Expected console output to contain message, got %q", buf.String())
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkbridge.log")
	var buf bytes.Buffer
	l := NewLogger(Options{Console: &buf, File: path})

	l.Info().Str("item", "a.png").Msg("translated")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	if !strings.Contains(string(data), `"item":"a.png"`) {
		t.Errorf("Expected JSON field in log file, got %q", data)
	}
}

func TestLogger_ForwardsWarningsToEventBus(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLog)

	var buf bytes.Buffer
	l := NewLogger(Options{Console: &buf, EventBus: bus})
	l.Warnf("font %s not compatible", "Wild Words")

	select {
	case e := <-ch:
		le := e.(*events.LogEvent)
		if le.Level != events.WarnLevel {
			t.Errorf("Expected WARN level, got %s", le.Level)
		}
		if le.Message != "font Wild Words not compatible" {
			t.Errorf("Unexpected message %q", le.Message)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for forwarded log event")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_Install(t *testing.T) {
	saved := log.Logger
	defer func() { log.Logger = saved }()

	var first bytes.Buffer
	l := NewLogger(Options{Console: &first})
	l.Install()

	log.Info().Msg("from package code")
	if !strings.Contains(first.String(), "from package code") {
		t.Errorf("Expected global logger to write to console, got %q", first.String())
	}
}
