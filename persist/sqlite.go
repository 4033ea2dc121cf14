package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore keeps the snapshot history of every run in one table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Entry describes a stored snapshot without its payload.
type Entry struct {
	RunID   string
	Tick    int
	SavedAt time.Time
}

// OpenSQLite opens or creates the snapshot database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "lifesim.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		run_id   TEXT    NOT NULL,
		tick     INTEGER NOT NULL,
		saved_at INTEGER NOT NULL,
		payload  BLOB    NOT NULL,
		PRIMARY KEY (run_id, tick)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Save implements Sink. A snapshot for an existing (run, tick) replaces it.
func (s *SQLiteStore) Save(ctx context.Context, snap *WorldSnapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots(run_id, tick, saved_at, payload) VALUES(?,?,?,?)
		 ON CONFLICT(run_id, tick) DO UPDATE SET saved_at=excluded.saved_at, payload=excluded.payload`,
		snap.RunID, snap.Tick, time.Now().UnixMilli(), data); err != nil {
		return fmt.Errorf("insert snapshot %s@%d: %w", snap.RunID, snap.Tick, err)
	}
	return nil
}

// Latest returns the highest-tick snapshot of runID, or of the most recently
// saved run when runID is empty.
func (s *SQLiteStore) Latest(ctx context.Context, runID string) (*WorldSnapshot, error) {
	var row *sql.Row
	if runID == "" {
		row = s.db.QueryRowContext(ctx,
			`SELECT payload FROM snapshots ORDER BY saved_at DESC, tick DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT payload FROM snapshots WHERE run_id = ? ORDER BY tick DESC LIMIT 1`, runID)
	}
	return scanSnapshot(row)
}

// Load returns the snapshot of runID at tick.
func (s *SQLiteStore) Load(ctx context.Context, runID string, tick int) (*WorldSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE run_id = ? AND tick = ?`, runID, tick)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*WorldSnapshot, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return Decode(payload)
}

// List returns the stored snapshots of runID in tick order. An empty runID
// lists every run.
func (s *SQLiteStore) List(ctx context.Context, runID string) ([]Entry, error) {
	query := `SELECT run_id, tick, saved_at FROM snapshots ORDER BY run_id, tick`
	var args []any
	if runID != "" {
		query = `SELECT run_id, tick, saved_at FROM snapshots WHERE run_id = ? ORDER BY tick`
		args = append(args, runID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var savedAt int64
		if err := rows.Scan(&e.RunID, &e.Tick, &savedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.SavedAt = time.UnixMilli(savedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep snapshots of runID and deletes the rest.
func (s *SQLiteStore) Prune(ctx context.Context, runID string, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE run_id = ? AND tick NOT IN (
			SELECT tick FROM snapshots WHERE run_id = ? ORDER BY tick DESC LIMIT ?)`,
		runID, runID, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
