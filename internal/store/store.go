// Package store provides the durable keyed map backing the Segment Store:
// a SQLite table, one row per planned segment, with (run ID, segment
// index) as primary key. Get and UpdateStatus address rows by scratch
// path alone, so they do not distinguish runs that share a scratch path.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"parafetch/pkg/models"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database connection backing segment records.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type Store struct {
	conn *sql.DB
}

// SegmentStore is the interface the planner, scheduler and coordinator use
// to persist and observe segment state. Store is its concrete
// SQLite-backed implementation.
type SegmentStore interface {
	Put(record models.SegmentRecord) error
	Get(scratchPath string) (*models.SegmentRecord, error)
	UpdateStatus(scratchPath string, status models.SegmentStatus) error
	ListByRun(runID string) ([]models.SegmentRecord, error)
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (*Store, error) {
	connString := dbPath
	if dbPath != ":memory:" {
		connString = dbPath + "?_busy_timeout=30000&_journal_mode=WAL&_synchronous=NORMAL"
	}

	conn, err := sql.Open("sqlite", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment store: %w", err)
	}

	// SQLite doesn't handle concurrent writes well; the Segment Store is
	// written only from the Coordinator's planning and the Scheduler's
	// single event loop, so a single connection is enough.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &Store{conn: conn}

	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize segment store schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS segments (
		run_id        TEXT    NOT NULL,
		segment_index INTEGER NOT NULL,
		start_byte    INTEGER NOT NULL,
		end_byte      INTEGER NOT NULL,
		scratch_path  TEXT    NOT NULL,
		status        TEXT    NOT NULL,
		updated_at    DATETIME NOT NULL,
		PRIMARY KEY (run_id, segment_index)
	);

	CREATE INDEX IF NOT EXISTS idx_segments_scratch_path ON segments(scratch_path);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Put inserts or replaces a segment record. Writes commit before the call
// returns, so a crash cannot lose a completed-status record.
func (s *Store) Put(record models.SegmentRecord) error {
	query := `
	INSERT INTO segments (run_id, segment_index, start_byte, end_byte, scratch_path, status, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, segment_index) DO UPDATE SET
		start_byte = excluded.start_byte,
		end_byte = excluded.end_byte,
		scratch_path = excluded.scratch_path,
		status = excluded.status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.Exec(query,
		record.RunID, record.SegmentIndex, record.StartByte, record.EndByte,
		record.ScratchPath, record.Status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to put segment record: %w", err)
	}

	return nil
}

// Get retrieves a segment record by its scratch path.
func (s *Store) Get(scratchPath string) (*models.SegmentRecord, error) {
	query := `
	SELECT run_id, segment_index, start_byte, end_byte, scratch_path, status
	FROM segments WHERE scratch_path = ?
	`

	var record models.SegmentRecord
	err := s.conn.QueryRow(query, scratchPath).Scan(
		&record.RunID, &record.SegmentIndex, &record.StartByte,
		&record.EndByte, &record.ScratchPath, &record.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get segment record: %w", err)
	}

	return &record, nil
}

// UpdateStatus transitions the status of a segment record identified by
// its scratch path.
func (s *Store) UpdateStatus(scratchPath string, status models.SegmentStatus) error {
	query := `UPDATE segments SET status = ?, updated_at = ? WHERE scratch_path = ?`

	_, err := s.conn.Exec(query, status, time.Now(), scratchPath)
	if err != nil {
		return fmt.Errorf("failed to update segment status: %w", err)
	}

	return nil
}

// ListByRun retrieves every segment record for a run, ordered by segment
// index, so the Coordinator can decide which segments a resumed run may
// skip.
func (s *Store) ListByRun(runID string) ([]models.SegmentRecord, error) {
	query := `
	SELECT run_id, segment_index, start_byte, end_byte, scratch_path, status
	FROM segments WHERE run_id = ? ORDER BY segment_index ASC
	`

	rows, err := s.conn.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list segment records: %w", err)
	}
	defer rows.Close()

	var records []models.SegmentRecord
	for rows.Next() {
		var record models.SegmentRecord
		if err := rows.Scan(
			&record.RunID, &record.SegmentIndex, &record.StartByte,
			&record.EndByte, &record.ScratchPath, &record.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan segment record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}
