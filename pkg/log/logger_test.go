package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.err {
			t.Fatalf("ParseLevel(%q) err=%v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(NewWriterOutput(&buf)), WithLevel(DebugLevel))
	l.With(Component("subscriber")).Debug("event", Uint64("event_id", 7), Err(errors.New("boom")))

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if m["msg"] != "event" || m["component"] != "subscriber" || m["error"] != "boom" {
		t.Fatalf("unexpected entry: %v", m)
	}
	if m["event_id"].(float64) != 7 {
		t.Fatalf("event_id: %v", m["event_id"])
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(NewWriterOutput(&buf)), WithFormatter(&TextFormatter{DisableTimestamp: true}))
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info: %q", buf.String())
	}
	child := l.With(Str("k", "v"))
	l.SetLevel(DebugLevel)
	child.Debug("shown")
	if !strings.Contains(buf.String(), "DEBUG shown k=v") {
		t.Fatalf("child should share level: %q", buf.String())
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ApplyConfig(&Config{Level: "debug", Format: "json", Output: "null"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
}
