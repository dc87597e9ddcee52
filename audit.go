// audit.go: Audit trail for Morpheus data loading and rendering
//
// Every merge into a data context and every rendered or removed template
// can be recorded as an AuditEvent. Events are buffered in memory and
// flushed in batches, periodically and on Close, to a SQLite database or
// to a JSONL file. Each event carries a SHA-256 checksum over its content
// so later edits of the trail are detectable.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// Audit event names
const (
	AuditEventDataLoaded       = "data_loaded"
	AuditEventTemplateRendered = "template_rendered"
	AuditEventTemplateRemoved  = "template_removed"
	AuditEventFileChanged      = "file_changed"
)

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseAuditLevel converts a level name (case-insensitive) into an AuditLevel.
func ParseAuditLevel(name string) (AuditLevel, error) {
	switch strings.ToUpper(name) {
	case "", "INFO":
		return AuditInfo, nil
	case "WARN":
		return AuditWarn, nil
	case "CRITICAL":
		return AuditCritical, nil
	default:
		return AuditInfo, errors.New(ErrCodeInvalidAuditConfig,
			fmt.Sprintf("unknown audit level %q", name))
	}
}

// AuditEvent represents a single auditable event
type AuditEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	Level       AuditLevel        `json:"level"`
	Event       string            `json:"event"`
	Component   string            `json:"component"`
	Source      string            `json:"source,omitempty"`
	Target      string            `json:"target,omitempty"`
	ProcessID   int               `json:"process_id"`
	ProcessName string            `json:"process_name"`
	Context     map[string]string `json:"context,omitempty"`
	Checksum    string            `json:"checksum"`
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	OutputFile    string        `json:"output_file"`
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultAuditOutput is the SQLite database used when no output is set.
func DefaultAuditOutput() string {
	return filepath.Join(os.TempDir(), "morpheus", "audit.db")
}

// DefaultAuditConfig returns the default audit configuration. Auditing is
// disabled until explicitly enabled.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       false,
		OutputFile:    DefaultAuditOutput(),
		MinLevel:      AuditInfo,
		BufferSize:    100,
		FlushInterval: 5 * time.Second,
	}
}

// Validate checks the audit configuration.
func (c AuditConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BufferSize <= 0 {
		return errors.New(ErrCodeInvalidAuditConfig, "audit buffer size must be positive")
	}
	if c.FlushInterval < 0 {
		return errors.New(ErrCodeInvalidAuditConfig, "audit flush interval cannot be negative")
	}
	switch filepath.Ext(c.OutputFile) {
	case ".db", ".jsonl":
	default:
		return errors.New(ErrCodeInvalidAuditConfig,
			fmt.Sprintf("audit output %q must end in .db or .jsonl", c.OutputFile))
	}
	return nil
}

// AuditStats summarizes a stored audit trail.
type AuditStats struct {
	Backend       string           `json:"backend"`
	Output        string           `json:"output"`
	TotalEvents   int64            `json:"total_events"`
	EventsByName  map[string]int64 `json:"events_by_name"`
	EventsByLevel map[string]int64 `json:"events_by_level"`
	OldestEvent   *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent   *time.Time       `json:"newest_event,omitempty"`
	SizeBytes     int64            `json:"size_bytes"`
}

// EventNames returns the recorded event names in sorted order.
func (s *AuditStats) EventNames() []string {
	names := make([]string, 0, len(s.EventsByName))
	for name := range s.EventsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuditLogger buffers audit events and writes them to a backend.
// A nil *AuditLogger is valid and records nothing.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string
}

// NewAuditLogger creates an audit logger. A disabled configuration yields
// a logger that records nothing.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	logger := &AuditLogger{
		config:      config,
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: processName(),
	}
	if !config.Enabled {
		return logger, nil
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, err
	}
	logger.backend = backend
	logger.buffer = make([]AuditEvent, 0, config.BufferSize)

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Enabled reports whether events are recorded.
func (al *AuditLogger) Enabled() bool {
	return al != nil && al.backend != nil && al.config.Enabled
}

// Log records an audit event.
func (al *AuditLogger) Log(level AuditLevel, event, component, source, target string, context map[string]string) {
	if !al.Enabled() || level < al.config.MinLevel {
		return
	}

	auditEvent := AuditEvent{
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Event:       event,
		Component:   component,
		Source:      source,
		Target:      target,
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	auditEvent.Checksum = checksumEvent(auditEvent)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, auditEvent)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe() // retried on the next flush
	}
	al.bufferMu.Unlock()
}

// LogDataLoaded records a merge into a data context.
func (al *AuditLogger) LogDataLoaded(kind, origin string, format Format, keys int) {
	al.Log(AuditInfo, AuditEventDataLoaded, "context", origin, "", map[string]string{
		"kind":   kind,
		"format": format.String(),
		"keys":   fmt.Sprint(keys),
	})
}

// LogTemplateRendered records a rendered template.
func (al *AuditLogger) LogTemplateRendered(templatePath, outputPath string) {
	al.Log(AuditInfo, AuditEventTemplateRendered, "renderer", templatePath, outputPath, nil)
}

// LogTemplateRemoved records a template deleted after rendering.
func (al *AuditLogger) LogTemplateRemoved(templatePath string) {
	al.Log(AuditWarn, AuditEventTemplateRemoved, "renderer", templatePath, "", nil)
}

// LogFileChanged records a change seen by a Watcher.
func (al *AuditLogger) LogFileChanged(event ChangeEvent) {
	al.Log(AuditInfo, AuditEventFileChanged, "watcher", event.Path, "", map[string]string{
		"change": event.Kind(),
		"size":   fmt.Sprint(event.Size),
	})
}

// Flush immediately writes all buffered events
func (al *AuditLogger) Flush() error {
	if !al.Enabled() {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	return al.flushBufferUnsafe()
}

// Stats flushes pending events and summarizes the stored trail.
func (al *AuditLogger) Stats() (*AuditStats, error) {
	if !al.Enabled() {
		return nil, errors.New(ErrCodeAuditError, "audit logging is disabled")
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.Stats()
}

// Close stops the background flusher, writes pending events and releases
// the backend. It is safe to call more than once.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}

	var closeErr error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}
		if al.backend == nil {
			return
		}
		if err := al.Flush(); err != nil {
			closeErr = err
			return
		}
		if err := al.backend.Close(); err != nil {
			closeErr = errors.Wrap(err, ErrCodeAuditError, "failed to close audit backend")
		}
	})
	return closeErr
}

func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush() // retried on the next tick
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to the backend (caller must hold bufferMu).
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}

	if err := al.backend.Write(al.buffer); err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to write audit events")
	}

	al.buffer = al.buffer[:0]
	return nil
}

// checksumEvent hashes the event content for tamper detection.
func checksumEvent(event AuditEvent) string {
	keys := make([]string, 0, len(event.Context))
	for key := range event.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s:%s:%s:%s:%s",
		event.Timestamp.Format(time.RFC3339Nano),
		event.Level, event.Event, event.Component, event.Source, event.Target)
	for _, key := range keys {
		fmt.Fprintf(&b, ":%s=%s", key, event.Context[key])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}

// VerifyChecksum reports whether event still matches its checksum.
func VerifyChecksum(event AuditEvent) bool {
	return event.Checksum == checksumEvent(event)
}

func processName() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "morpheus"
}
