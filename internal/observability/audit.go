package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventSessionStart AuditEventType = "session.start"
	AuditEventSessionEnd   AuditEventType = "session.end"
	AuditEventBuildRun     AuditEventType = "build.run"
	AuditEventQuickFix     AuditEventType = "quickfix.apply"
	AuditEventLLMRequest   AuditEventType = "llm.request"
	AuditEventLLMResponse  AuditEventType = "llm.response"
	AuditEventLLMError     AuditEventType = "llm.error"
	AuditEventFileRepair   AuditEventType = "file.repair"
	AuditEventMemoryRecall AuditEventType = "memory.recall"
	AuditEventMemoryRecord AuditEventType = "memory.record"
)

// AuditEvent is a single audit log entry.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	SessionID   string         `json:"session_id"`
	Success     bool           `json:"success"`
	Duration    time.Duration  `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditLogger writes audit events as JSON lines.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	closer    io.Closer
	sessionID string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates an audit logger. A disabled logger swallows all
// events, so call sites never need a nil check.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	var closer io.Closer
	switch config.OutputPath {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
		closer = f
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:    writer,
		closer:    closer,
		sessionID: sessionID,
		enabled:   config.Enabled,
	}, nil
}

// SessionID returns the logger's session identifier.
func (l *AuditLogger) SessionID() string {
	return l.sessionID
}

// Log writes one event. The timestamp and session ID are filled in here.
func (l *AuditLogger) Log(eventType AuditEventType, success bool, message string, details map[string]any) {
	if !l.enabled {
		return
	}
	l.write(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: l.sessionID,
		Success:   success,
		Message:   message,
		Details:   details,
	})
}

// LogError writes a failed event carrying the error text.
func (l *AuditLogger) LogError(eventType AuditEventType, message string, err error) {
	if !l.enabled {
		return
	}
	ev := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: l.sessionID,
		Message:   message,
	}
	if err != nil {
		ev.ErrorDetail = err.Error()
	}
	l.write(ev)
}

// LogDuration writes an event with an elapsed time.
func (l *AuditLogger) LogDuration(eventType AuditEventType, success bool, message string, d time.Duration) {
	if !l.enabled {
		return
	}
	l.write(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: l.sessionID,
		Success:   success,
		Message:   message,
		Duration:  d,
	})
}

func (l *AuditLogger) write(ev AuditEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Write(data)
	l.writer.Write([]byte("\n"))
}

// Close releases the underlying file, when one was opened.
func (l *AuditLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
