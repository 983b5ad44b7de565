// Package notify emails run summaries.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/inventory-smoke/internal/obs"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	// Send sends a message rendered from templateName.
	// Parameters:
	//   - to: recipient email address
	//   - templateName: name of the template (e.g., "run_summary")
	//   - data: template data (varies by template)
	Send(to, templateName string, data any) error
}

// Policies accepted by ShouldNotify.
const (
	PolicyFailure = "failure"
	PolicyAlways  = "always"
	PolicyNever   = "never"
)

// ShouldNotify applies a NOTIFY_ON policy to a run outcome.
func ShouldNotify(policy string, failed bool) bool {
	switch policy {
	case PolicyAlways:
		return true
	case PolicyFailure:
		return failed
	default:
		return false
	}
}

// NotifyRun sends the run summary to every recipient. A failed recipient
// does not stop the others.
func NotifyRun(n Notifier, recipients []string, data RunSummaryData) error {
	var all []error
	for _, to := range recipients {
		if err := n.Send(to, TemplateRunSummary, data); err != nil {
			all = append(all, fmt.Errorf("notify %s: %w", to, err))
		}
	}
	return errors.Join(all...)
}

// SentMessage represents a captured message for testing.
type SentMessage struct {
	To       string
	Template string
	Data     any
}

// MockNotifier captures messages and writes each one to a JSON outbox.
type MockNotifier struct {
	mu        sync.Mutex
	Messages  []SentMessage
	outboxDir string
	seq       uint64
}

// NewMockNotifier creates a mock notifier writing to MOCK_EMAIL_OUTBOX_DIR.
func NewMockNotifier() *MockNotifier {
	outboxDir := os.Getenv("MOCK_EMAIL_OUTBOX_DIR")
	if outboxDir == "" {
		outboxDir = filepath.Join(os.TempDir(), "inventory-smoke-mock-email-outbox")
	}
	return NewMockNotifierAt(outboxDir)
}

// NewMockNotifierAt creates a mock notifier writing to outboxDir.
// An empty outboxDir keeps messages in memory only.
func NewMockNotifierAt(outboxDir string) *MockNotifier {
	if outboxDir != "" {
		if err := os.MkdirAll(outboxDir, 0o755); err != nil {
			obs.Pkg("notify").Warn("outbox_dir_failed", "dir", outboxDir, "error", err)
			outboxDir = ""
		}
	}
	return &MockNotifier{
		Messages:  make([]SentMessage, 0),
		outboxDir: outboxDir,
	}
}

// Send captures the message instead of sending it.
func (m *MockNotifier) Send(to, templateName string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, SentMessage{
		To:       to,
		Template: templateName,
		Data:     data,
	})

	log := obs.Pkg("notify")
	event := outboxEvent{
		To:             to,
		Template:       templateName,
		SentAtUnixNano: time.Now().UnixNano(),
	}
	switch d := data.(type) {
	case RunSummaryData:
		log.Info("mock_email", "to", to, "template", templateName, "run_id", d.RunID, "passed", d.Passed, "failed", d.Failed+d.Errored)
		event.RunID = d.RunID
		event.Subject = runSummarySubject(d)
		event.Failures = d.Failures
	default:
		log.Info("mock_email", "to", to, "template", templateName)
		event.RawData = fmt.Sprintf("%+v", data)
	}

	return m.writeOutboxEvent(event)
}

// LastMessage returns the most recently captured message.
// Returns zero value if nothing has been sent.
func (m *MockNotifier) LastMessage() SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return SentMessage{}
	}
	return m.Messages[len(m.Messages)-1]
}

// Count returns the number of captured messages.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

type outboxEvent struct {
	Sequence       uint64   `json:"sequence"`
	To             string   `json:"to"`
	Template       string   `json:"template"`
	Subject        string   `json:"subject,omitempty"`
	RunID          string   `json:"run_id,omitempty"`
	Failures       []string `json:"failures,omitempty"`
	RawData        string   `json:"raw_data,omitempty"`
	SentAtUnixNano int64    `json:"sent_at_unix_nano"`
}

func (m *MockNotifier) writeOutboxEvent(event outboxEvent) error {
	if m.outboxDir == "" {
		return nil
	}

	m.seq++
	event.Sequence = m.seq

	fileName := fmt.Sprintf(
		"%020d-%020d-%s-%s.json",
		event.Sequence,
		event.SentAtUnixNano,
		sanitizeOutboxComponent(event.Template),
		sanitizeOutboxComponent(event.To),
	)
	finalPath := filepath.Join(m.outboxDir, fileName)
	tempPath := finalPath + ".tmp"

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write outbox temp file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename outbox file: %w", err)
	}
	return nil
}

var outboxSanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9._@-]+`)

func sanitizeOutboxComponent(input string) string {
	safe := strings.TrimSpace(input)
	if safe == "" {
		return "unknown"
	}
	return outboxSanitizePattern.ReplaceAllString(safe, "_")
}
