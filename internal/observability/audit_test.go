package observability

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAuditLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := NewAuditLogger(&AuditConfig{Enabled: true, OutputPath: path, SessionID: "s-1"})
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}

	l.Log(AuditEventSessionStart, true, "starting repair", map[string]any{"files": 4})
	l.LogDuration(AuditEventBuildRun, false, "build failed", 2*time.Second)
	l.LogError(AuditEventLLMError, "primary provider", os.ErrDeadlineExceeded)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].EventType != AuditEventSessionStart || !events[0].Success {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[0].SessionID != "s-1" {
		t.Errorf("SessionID = %q", events[0].SessionID)
	}
	if events[1].Duration != 2*time.Second {
		t.Errorf("Duration = %v", events[1].Duration)
	}
	if events[2].ErrorDetail == "" {
		t.Error("ErrorDetail empty")
	}
}

func TestAuditLoggerDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := NewAuditLogger(&AuditConfig{Enabled: false, OutputPath: path})
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	l.Log(AuditEventSessionStart, true, "ignored", nil)
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("disabled logger wrote %d bytes", len(data))
	}
}

func TestAuditLoggerGeneratesSessionID(t *testing.T) {
	l, err := NewAuditLogger(&AuditConfig{Enabled: true, OutputPath: "stderr"})
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	if l.SessionID() == "" {
		t.Error("SessionID empty")
	}
}
