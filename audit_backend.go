// audit_backend.go: Storage backends for the Morpheus audit trail
//
// Two backends are available, selected by the output file extension:
//   - ".db": SQLite database (WAL mode), queryable with plain SQL
//   - ".jsonl": one JSON object per line, easy to ship to log pipelines
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditSchemaVersion is stored in schema_info.
const auditSchemaVersion = 1

// auditBackend persists batches of audit events.
type auditBackend interface {
	// Write persists a batch of events. Safe for concurrent use.
	Write(events []AuditEvent) error

	// Stats summarizes everything stored so far.
	Stats() (*AuditStats, error)

	// Close releases all resources. The backend must not be used afterwards.
	Close() error
}

// createAuditBackend selects the backend from the output file extension.
func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0750); err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to create audit output directory").
			WithContext("output", config.OutputFile)
	}

	if filepath.Ext(config.OutputFile) == ".jsonl" {
		return newJSONLBackend(config.OutputFile)
	}
	return newSQLiteBackend(config.OutputFile)
}

// sqliteAuditBackend stores events in a SQLite database.
type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

func newSQLiteBackend(dbPath string) (*sqliteAuditBackend, error) {
	// WAL keeps readers (audit stats) from blocking the writer.
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to open audit database").
			WithContext("output", dbPath)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to ping audit database").
			WithContext("output", dbPath)
	}

	backend := &sqliteAuditBackend{db: db, dbPath: dbPath}
	if err := backend.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := backend.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return backend, nil
}

func (s *sqliteAuditBackend) initializeSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_info (
			version INTEGER PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			level TEXT NOT NULL,
			event TEXT NOT NULL,
			component TEXT NOT NULL,
			source TEXT,
			target TEXT,
			process_id INTEGER,
			process_name TEXT,
			context TEXT,
			checksum TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_event ON audit_events(event)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp)`,
		fmt.Sprintf(`INSERT OR IGNORE INTO schema_info (version) VALUES (%d)`, auditSchemaVersion),
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return errors.Wrap(err, ErrCodeAuditError, "failed to initialize audit schema").
				WithContext("output", s.dbPath)
		}
	}
	return nil
}

func (s *sqliteAuditBackend) prepareStatements() error {
	stmt, err := s.db.Prepare(`
	INSERT INTO audit_events (
		timestamp, level, event, component, source, target,
		process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to prepare audit insert")
	}
	s.insertStmt = stmt
	return nil
}

// Write inserts the batch in a single transaction.
func (s *sqliteAuditBackend) Write(events []AuditEvent) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errors.New(ErrCodeAuditError, "audit database is closed")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to begin audit transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txStmt := tx.Stmt(s.insertStmt)
	defer func() {
		_ = txStmt.Close()
	}()

	for _, event := range events {
		if err = s.insertEvent(txStmt, event); err != nil {
			return errors.Wrap(err, ErrCodeAuditError, "failed to insert audit event").
				WithContext("event", event.Event)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to commit audit transaction")
	}
	return nil
}

func (s *sqliteAuditBackend) insertEvent(stmt *sql.Stmt, event AuditEvent) error {
	contextJSON := ""
	if len(event.Context) > 0 {
		data, err := json.Marshal(event.Context)
		if err != nil {
			return err
		}
		contextJSON = string(data)
	}

	_, err := stmt.Exec(
		event.Timestamp.Format(time.RFC3339Nano),
		event.Level.String(),
		event.Event,
		event.Component,
		event.Source,
		event.Target,
		event.ProcessID,
		event.ProcessName,
		contextJSON,
		event.Checksum,
	)
	return err
}

// Stats counts stored events by name and level.
func (s *sqliteAuditBackend) Stats() (*AuditStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(ErrCodeAuditError, "audit database is closed")
	}

	stats := &AuditStats{
		Backend:       "sqlite",
		Output:        s.dbPath,
		EventsByName:  make(map[string]int64),
		EventsByLevel: make(map[string]int64),
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&stats.TotalEvents); err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to count audit events")
	}
	if err := s.countBy("event", stats.EventsByName); err != nil {
		return nil, err
	}
	if err := s.countBy("level", stats.EventsByLevel); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullString
	err := s.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM audit_events").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to read audit time range")
	}
	stats.OldestEvent = parseStoredTime(oldest)
	stats.NewestEvent = parseStoredTime(newest)

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.SizeBytes = info.Size()
	}

	return stats, nil
}

// countBy fills counts grouped by a fixed column name.
func (s *sqliteAuditBackend) countBy(column string, counts map[string]int64) error {
	// #nosec G201 -- column is one of the literals passed by Stats
	rows, err := s.db.Query(fmt.Sprintf("SELECT %s, COUNT(*) FROM audit_events GROUP BY %s", column, column))
	if err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to group audit events")
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return errors.Wrap(err, ErrCodeAuditError, "failed to scan audit counts")
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to iterate audit counts")
	}
	return nil
}

func parseStoredTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

// Close checkpoints the WAL and closes the database. Safe to call twice.
func (s *sqliteAuditBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		errs = append(errs, err)
	}
	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.New(ErrCodeAuditError, fmt.Sprintf("errors closing audit database: %v", errs))
	}
	return nil
}

// jsonlAuditBackend appends one JSON object per event to a file.
type jsonlAuditBackend struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLBackend(path string) (*jsonlAuditBackend, error) {
	// #nosec G304 -- audit output path comes from configuration
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to open audit log").
			WithContext("output", path)
	}
	return &jsonlAuditBackend{file: file, path: path}, nil
}

// Write appends the batch and syncs the file.
func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return errors.New(ErrCodeAuditError, "audit log is closed")
	}

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return errors.Wrap(err, ErrCodeAuditError, "failed to encode audit event")
		}
		data = append(data, '\n')
		if _, err := j.file.Write(data); err != nil {
			return errors.Wrap(err, ErrCodeAuditError, "failed to append audit event")
		}
	}

	if err := j.file.Sync(); err != nil {
		return errors.Wrap(err, ErrCodeAuditError, "failed to sync audit log")
	}
	return nil
}

// Stats scans the whole file. Lines that do not decode are skipped.
func (j *jsonlAuditBackend) Stats() (*AuditStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	return readJSONLStats(j.path)
}

// readJSONLStats summarizes a JSONL audit log.
func readJSONLStats(path string) (*AuditStats, error) {
	stats := &AuditStats{
		Backend:       "jsonl",
		Output:        path,
		EventsByName:  make(map[string]int64),
		EventsByLevel: make(map[string]int64),
	}

	// #nosec G304 -- audit output path comes from configuration
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to open audit log").
			WithContext("output", path)
	}
	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		stats.TotalEvents++
		stats.EventsByName[event.Event]++
		stats.EventsByLevel[event.Level.String()]++

		ts := event.Timestamp
		if stats.OldestEvent == nil || ts.Before(*stats.OldestEvent) {
			stats.OldestEvent = &ts
		}
		if stats.NewestEvent == nil || ts.After(*stats.NewestEvent) {
			stats.NewestEvent = &ts
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeAuditError, "failed to scan audit log")
	}

	if info, err := file.Stat(); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// Close closes the file. Safe to call twice.
func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
