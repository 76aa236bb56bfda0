package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/threadtracker/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "threadtracker.db"

// storedTimeLayout is fixed-width so stored times sort as text.
const storedTimeLayout = "2006-01-02 15:04:05.000000000"

// ErrDatabaseNotFound is returned by Open when the database must exist but does not.
var ErrDatabaseNotFound = errors.New("database not found")

// HistoryDB stores tracking runs in SQLite.
type HistoryDB struct {
	db *sql.DB

	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// Otherwise a missing database is ErrDatabaseNotFound.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a new file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per tracking run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		board TEXT NOT NULL,
		user_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		outcome TEXT,
		owed INTEGER DEFAULT 0,
		completed INTEGER DEFAULT 0,
		locked INTEGER DEFAULT 0,
		sentinels INTEGER DEFAULT 0,
		error TEXT,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_user ON runs(board, user_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Results pages fetched during a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		page_index INTEGER NOT NULL,
		url TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		records INTEGER NOT NULL,
		UNIQUE(run_id, page_index)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run with its pages and returns the new run id.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.Run) (int64, error) {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run: %w", err)
	}
	s := run.Summary()

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (board, user_id, started_at, outcome, owed, completed, locked, sentinels, error, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Board,
		run.UserID,
		run.StartedAt.UTC().Format(storedTimeLayout),
		string(run.Outcome),
		s.Owed,
		s.Completed,
		s.Locked,
		s.Sentinels,
		run.ErrorMessage,
		string(runJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for _, p := range run.Pages {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO pages (run_id, page_index, url, row_count, records)
		VALUES (?, ?, ?, ?, ?)
		`, id, p.Index, p.URL, p.RowCount, p.Records)
		if err != nil {
			return 0, fmt.Errorf("failed to save page %d: %w", p.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// LatestRun returns the most recent run for a user on a board,
// or nil if there is none.
func (hdb *HistoryDB) LatestRun(ctx context.Context, board, userID string) (*model.Run, error) {
	runs, err := hdb.RecentRuns(ctx, board, userID, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// RecentRuns returns up to limit runs for a user on a board, newest first.
func (hdb *HistoryDB) RecentRuns(ctx context.Context, board, userID string, limit int) ([]*model.Run, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT run_json FROM runs
	WHERE board = ? AND user_id = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, board, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run, err := decodeRun(runJSON)
		if err != nil {
			continue // Skip malformed runs
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// RunByID returns a run by its database id, or nil if there is none.
func (hdb *HistoryDB) RunByID(ctx context.Context, id int64) (*model.Run, error) {
	var runJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeRun(runJSON)
}

func decodeRun(runJSON string) (*model.Run, error) {
	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	if run.Containers == nil {
		run.Containers = model.NewBoard()
	}
	return &run, nil
}

// RunMetadata summarizes a stored run without loading it.
type RunMetadata struct {
	ID        int64
	Board     string
	UserID    string
	StartedAt time.Time
	Outcome   model.Outcome
	Owed      int
	Completed int
	Locked    int
	Sentinels int
	Error     string
}

// RunHistory returns metadata for every run of a user on a board, newest first.
func (hdb *HistoryDB) RunHistory(ctx context.Context, board, userID string) ([]RunMetadata, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT id, board, user_id, started_at, outcome, owed, completed, locked, sentinels, error
	FROM runs
	WHERE board = ? AND user_id = ?
	ORDER BY started_at DESC, id DESC
	`, board, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var outcome, errMsg sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.Board,
			&meta.UserID,
			&startedAt,
			&outcome,
			&meta.Owed,
			&meta.Completed,
			&meta.Locked,
			&meta.Sentinels,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.Outcome = model.Outcome(outcome.String)
		meta.Error = errMsg.String
		results = append(results, meta)
	}

	return results, rows.Err()
}

// TrackedUser is a board and user pair with stored runs.
type TrackedUser struct {
	Board   string
	UserID  string
	Runs    int
	LastRun time.Time
}

// ListUsers returns every tracked user, ordered by board then user id.
func (hdb *HistoryDB) ListUsers(ctx context.Context) ([]TrackedUser, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT board, user_id, COUNT(*), MAX(started_at)
	FROM runs
	GROUP BY board, user_id
	ORDER BY board, user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []TrackedUser
	for rows.Next() {
		var u TrackedUser
		var lastRun string
		if err := rows.Scan(&u.Board, &u.UserID, &u.Runs, &lastRun); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.LastRun = parseTimestamp(lastRun)
		users = append(users, u)
	}

	return users, rows.Err()
}

// RunPages returns the results pages stored for a run, in page order.
func (hdb *HistoryDB) RunPages(ctx context.Context, runID int64) ([]model.SearchPage, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT page_index, url, row_count, records
	FROM pages
	WHERE run_id = ?
	ORDER BY page_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []model.SearchPage
	for rows.Next() {
		var p model.SearchPage
		if err := rows.Scan(&p.Index, &p.URL, &p.RowCount, &p.Records); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedTimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

// parseTimestamp parses a stored UTC timestamp.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
