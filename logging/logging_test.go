package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

type memStore struct {
	entries []LogEntry
}

func (m *memStore) SaveLogEntry(_ context.Context, e LogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"WARN", slog.LevelWarn, true},
		{"Error", slog.LevelError, true},
		{" warning ", slog.LevelWarn, true},
		{"trace", slog.LevelDebug, true},
		{"info+2", slog.LevelInfo + 2, true},
		{"nonsense", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	if got := LevelOrInfo(nil); got != slog.LevelInfo {
		t.Errorf("LevelOrInfo(nil) = %v", got)
	}
	if got := LevelOrInfo(ptr("error")); got != slog.LevelError {
		t.Errorf("LevelOrInfo(error) = %v", got)
	}
}

func TestSQLiteHandlerKeepsModuleAndAttrs(t *testing.T) {
	store := &memStore{}
	logger := slog.New(NewSQLiteHandler(store, slog.LevelInfo, LogAttrFormatText)).With("module", "quote")

	logger.Debug("ignored")
	logger.Info("quote rejected", slog.String("field", "industry"))

	if len(store.entries) != 1 {
		t.Fatalf("got %d entries, wanted 1", len(store.entries))
	}
	e := store.entries[0]
	if e.Module != "quote" {
		t.Errorf("got module %q, wanted %q", e.Module, "quote")
	}
	if e.Attrs != "field=industry" {
		t.Errorf("got attrs %q, wanted %q", e.Attrs, "field=industry")
	}
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	var buf bytes.Buffer
	store := &memStore{}
	console := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewMultiHandler(console, NewSQLiteHandler(store, slog.LevelWarn, LogAttrFormatJSON)))

	logger.Debug("debug only on console")
	logger.Warn("warn everywhere", slog.Int("n", 1))

	if !strings.Contains(buf.String(), "debug only on console") {
		t.Errorf("console is missing debug record: %q", buf.String())
	}
	if len(store.entries) != 1 || store.entries[0].Attrs != `[{"n":"1"}]` {
		t.Errorf("unexpected store entries %+v", store.entries)
	}
}

func ptr(s string) *string { return &s }
