package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursesync/internal/database/migrations"
	"coursesync/internal/mirror"
	"coursesync/internal/model"
	"coursesync/internal/snapshot"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements mirror.SnapshotStore using SQLite.
// Subject trees are stored as encoded snapshot payloads; every load decodes
// a fresh tree.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ mirror.SnapshotStore = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens a SQLite database without touching its schema.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs the
// store relies on. The pool is limited to one connection: every connection to
// ":memory:" is a separate database, and a single writer avoids SQLITE_BUSY
// when subjects are saved concurrently.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// SQLite default is OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate applies all pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies that the schema is at the version this binary expects.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Sync run operations

func (s *SQLiteDatabase) CreateSyncRun(runID, operation, course string, startedAt time.Time) (*model.SyncRun, error) {
	res, err := s.db.Exec(
		`INSERT INTO sync_runs (run_id, operation, course, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		runID, operation, course, startedAt.UTC(), model.RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("creating sync run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading sync run id: %w", err)
	}
	return &model.SyncRun{
		ID:        id,
		RunID:     runID,
		Operation: operation,
		Course:    course,
		StartedAt: startedAt,
		Status:    model.RunStatusRunning,
	}, nil
}

func (s *SQLiteDatabase) FinishSyncRun(id int64, status string, finishedAt time.Time, downloaded, failed int64) error {
	res, err := s.db.Exec(
		`UPDATE sync_runs SET status = ?, finished_at = ?, downloaded = ?, failed = ? WHERE id = ?`,
		status, finishedAt.UTC(), downloaded, failed, id)
	if err != nil {
		return fmt.Errorf("finishing sync run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing sync run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync run not found: %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListSyncRuns(limit int) ([]*model.SyncRun, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, operation, course, started_at, finished_at, status, downloaded, failed
		 FROM sync_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.SyncRun
	for rows.Next() {
		var r model.SyncRun
		if err := rows.Scan(&r.ID, &r.RunID, &r.Operation, &r.Course, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Downloaded, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return runs, nil
}

// Snapshot operations

// SaveSubjectSnapshot assigns the next version for the subject inside a
// transaction, so concurrent saves of different subjects never collide and
// versions of one subject stay dense.
func (s *SQLiteDatabase) SaveSubjectSnapshot(recordID string, runID int64, subject *model.Subject, takenAt time.Time) (*model.SnapshotRecord, error) {
	payload, err := snapshot.MarshalSubjectIn(subject, snapshot.StoreLocation)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM subject_snapshots WHERE subject_id = ?`,
		subject.ID).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("computing snapshot version: %w", err)
	}

	record := &model.SnapshotRecord{
		ID:          recordID,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		Version:     version,
		SyncRunID:   sql.NullInt64{Int64: runID, Valid: runID != 0},
		TakenAt:     takenAt,
		Size:        subject.Size(),
		FileCount:   int64(subject.Documents.FullCount()),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subject_snapshots (id, subject_id, subject_name, version, sync_run_id, taken_at, size, file_count, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.SubjectID, record.SubjectName, record.Version, record.SyncRunID,
		takenAt.UTC(), record.Size, record.FileCount, payload)
	if err != nil {
		return nil, fmt.Errorf("inserting snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing snapshot: %w", err)
	}
	return record, nil
}

func (s *SQLiteDatabase) LatestSubjectSnapshot(subjectID string) (*model.Subject, *model.SnapshotRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, subject_id, subject_name, version, sync_run_id, taken_at, size, file_count, payload
		 FROM subject_snapshots WHERE subject_id = ? ORDER BY version DESC LIMIT 1`, subjectID)
	return scanSnapshot(row)
}

func (s *SQLiteDatabase) FindSubjectSnapshot(subjectID string, version int64) (*model.Subject, *model.SnapshotRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, subject_id, subject_name, version, sync_run_id, taken_at, size, file_count, payload
		 FROM subject_snapshots WHERE subject_id = ? AND version = ?`, subjectID, version)
	return scanSnapshot(row)
}

func (s *SQLiteDatabase) ListSubjectSnapshots(subjectID string) ([]*model.SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, subject_id, subject_name, version, sync_run_id, taken_at, size, file_count
		 FROM subject_snapshots WHERE subject_id = ? ORDER BY version ASC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var records []*model.SnapshotRecord
	for rows.Next() {
		var r model.SnapshotRecord
		if err := rows.Scan(&r.ID, &r.SubjectID, &r.SubjectName, &r.Version, &r.SyncRunID, &r.TakenAt, &r.Size, &r.FileCount); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return records, nil
}

func scanSnapshot(row *sql.Row) (*model.Subject, *model.SnapshotRecord, error) {
	var r model.SnapshotRecord
	var payload []byte
	err := row.Scan(&r.ID, &r.SubjectID, &r.SubjectName, &r.Version, &r.SyncRunID, &r.TakenAt, &r.Size, &r.FileCount, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil // Not found
		}
		return nil, nil, fmt.Errorf("reading snapshot: %w", err)
	}

	subject, err := snapshot.UnmarshalSubject(payload, snapshot.Options{Location: snapshot.StoreLocation})
	if err != nil {
		return nil, nil, fmt.Errorf("decoding snapshot %s v%d: %w", r.SubjectID, r.Version, err)
	}
	return subject, &r, nil
}
