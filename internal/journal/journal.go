// Package journal persists deploy progress so an interrupted deploy resumes after its last
// committed batch.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/db"
	"github.com/openmined/sitesync/internal/scan"
)

const DefaultFileName = "journal.db"

const schema = `
CREATE TABLE IF NOT EXISTS deploy_progress (
    plan_id TEXT NOT NULL,
    batch_index INTEGER NOT NULL,
    kind TEXT NOT NULL,
    ops INTEGER NOT NULL,
    run_id TEXT NOT NULL,
    committed_at TEXT NOT NULL, -- RFC3339
    PRIMARY KEY (plan_id, batch_index)
);

CREATE INDEX IF NOT EXISTS idx_progress_plan ON deploy_progress(plan_id);

CREATE TABLE IF NOT EXISTS pending_sites (
    name TEXT PRIMARY KEY,
    site_id TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_hashes (
    path TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    mod_time INTEGER NOT NULL, -- unix nanoseconds
    hash TEXT NOT NULL
);
`

var ErrNotOpen = errors.New("journal: not open")

// Entry is one committed batch.
type Entry struct {
	PlanID      string    `json:"plan_id"`
	BatchIndex  int       `json:"batch_index"`
	Kind        string    `json:"kind"`
	Ops         int       `json:"ops"`
	RunID       string    `json:"run_id"`
	CommittedAt time.Time `json:"committed_at"`
}

type dbEntry struct {
	PlanID      string `db:"plan_id"`
	BatchIndex  int    `db:"batch_index"`
	Kind        string `db:"kind"`
	Ops         int    `db:"ops"`
	RunID       string `db:"run_id"`
	CommittedAt string `db:"committed_at"`
}

type dbFileHash struct {
	Path    string `db:"path"`
	Size    int64  `db:"size"`
	ModTime int64  `db:"mod_time"`
	Hash    string `db:"hash"`
}

// Journal records committed batches per plan in sqlite. It implements batch.Checkpoint.
type Journal struct {
	db     *sqlx.DB
	dbPath string
	runID  string
}

var _ batch.Checkpoint = (*Journal)(nil)

// New creates a journal at dbPath. Use db.MemoryPath for a throwaway journal.
// Commits are tagged with runID; a random one is generated if it is empty.
func New(dbPath, runID string) *Journal {
	if runID == "" {
		runID = uuid.New().String()
	}
	return &Journal{
		dbPath: dbPath,
		runID:  runID,
	}
}

func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	conn, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("init journal schema: %w", err)
	}

	j.db = conn
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return ErrNotOpen
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// RunID identifies this process's commits
func (j *Journal) RunID() string {
	return j.runID
}

func (j *Journal) LastCommitted(ctx context.Context, planID string) (int, error) {
	if j.db == nil {
		return -1, ErrNotOpen
	}

	var last sql.NullInt64
	err := j.db.GetContext(ctx, &last, "SELECT MAX(batch_index) FROM deploy_progress WHERE plan_id = ?", planID)
	if err != nil {
		return -1, fmt.Errorf("query last committed for %s: %w", planID, err)
	}
	if !last.Valid {
		return -1, nil
	}
	return int(last.Int64), nil
}

func (j *Journal) Commit(ctx context.Context, planID string, b *batch.Batch) error {
	if j.db == nil {
		return ErrNotOpen
	}

	row := dbEntry{
		PlanID:      planID,
		BatchIndex:  b.Index,
		Kind:        string(b.Kind),
		Ops:         b.Len(),
		RunID:       j.runID,
		CommittedAt: time.Now().UTC().Format(time.RFC3339),
	}

	query := `INSERT OR REPLACE INTO deploy_progress (plan_id, batch_index, kind, ops, run_id, committed_at)
	          VALUES (:plan_id, :batch_index, :kind, :ops, :run_id, :committed_at)`
	if _, err := j.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("record batch %d of %s: %w", b.Index, planID, err)
	}
	return nil
}

// Entries returns the committed batches of planID in index order.
func (j *Journal) Entries(ctx context.Context, planID string) ([]*Entry, error) {
	if j.db == nil {
		return nil, ErrNotOpen
	}

	var rows []dbEntry
	err := j.db.SelectContext(ctx, &rows, `SELECT plan_id, batch_index, kind, ops, run_id, committed_at
		FROM deploy_progress WHERE plan_id = ? ORDER BY batch_index`, planID)
	if err != nil {
		return nil, fmt.Errorf("query entries for %s: %w", planID, err)
	}

	entries := make([]*Entry, 0, len(rows))
	for _, r := range rows {
		at, err := time.Parse(time.RFC3339, r.CommittedAt)
		if err != nil {
			return nil, fmt.Errorf("parse committed_at for batch %d: %w", r.BatchIndex, err)
		}
		entries = append(entries, &Entry{
			PlanID:      r.PlanID,
			BatchIndex:  r.BatchIndex,
			Kind:        r.Kind,
			Ops:         r.Ops,
			RunID:       r.RunID,
			CommittedAt: at,
		})
	}
	return entries, nil
}

// Clear forgets planID once its manifest has been saved.
func (j *Journal) Clear(ctx context.Context, planID string) error {
	if j.db == nil {
		return ErrNotOpen
	}

	res, err := j.db.ExecContext(ctx, "DELETE FROM deploy_progress WHERE plan_id = ?", planID)
	if err != nil {
		return fmt.Errorf("clear %s: %w", planID, err)
	}
	n, _ := res.RowsAffected()
	slog.Debug("journal cleared", "plan", planID, "rows", n)
	return nil
}

// Prune drops progress of plans other than keep. A new plan means the site changed
// underneath an interrupted deploy, so its old progress can never be resumed.
func (j *Journal) Prune(ctx context.Context, keep string) (int64, error) {
	if j.db == nil {
		return 0, ErrNotOpen
	}

	res, err := j.db.ExecContext(ctx, "DELETE FROM deploy_progress WHERE plan_id != ?", keep)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

// PendingSite returns the site created for name by a deploy that has not saved its manifest
// yet, or "" if there is none.
func (j *Journal) PendingSite(ctx context.Context, name string) (string, error) {
	if j.db == nil {
		return "", ErrNotOpen
	}

	var siteID string
	err := j.db.GetContext(ctx, &siteID, "SELECT site_id FROM pending_sites WHERE name = ?", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query pending site %s: %w", name, err)
	}
	return siteID, nil
}

// SetPendingSite remembers a freshly created site until the first manifest is saved.
func (j *Journal) SetPendingSite(ctx context.Context, name, siteID string) error {
	if j.db == nil {
		return ErrNotOpen
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO pending_sites (name, site_id, created_at) VALUES (?, ?, ?)",
		name, siteID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record pending site %s: %w", name, err)
	}
	return nil
}

func (j *Journal) ClearPendingSite(ctx context.Context, name string) error {
	if j.db == nil {
		return ErrNotOpen
	}

	if _, err := j.db.ExecContext(ctx, "DELETE FROM pending_sites WHERE name = ?", name); err != nil {
		return fmt.Errorf("clear pending site %s: %w", name, err)
	}
	return nil
}

// FileHashes returns the file hashes saved by the last scan.
func (j *Journal) FileHashes(ctx context.Context) ([]*scan.HashRecord, error) {
	if j.db == nil {
		return nil, ErrNotOpen
	}

	var rows []dbFileHash
	if err := j.db.SelectContext(ctx, &rows, "SELECT path, size, mod_time, hash FROM file_hashes ORDER BY path"); err != nil {
		return nil, fmt.Errorf("query file hashes: %w", err)
	}

	records := make([]*scan.HashRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, &scan.HashRecord{
			Path:    r.Path,
			Size:    r.Size,
			ModTime: time.Unix(0, r.ModTime),
			Hash:    r.Hash,
		})
	}
	return records, nil
}

// SaveFileHashes replaces the saved file hashes with records.
func (j *Journal) SaveFileHashes(ctx context.Context, records []*scan.HashRecord) (err error) {
	if j.db == nil {
		return ErrNotOpen
	}

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin file hashes: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM file_hashes"); err != nil {
		return fmt.Errorf("clear file hashes: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, "INSERT INTO file_hashes (path, size, mod_time, hash) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare file hashes: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err = stmt.ExecContext(ctx, r.Path, r.Size, r.ModTime.UnixNano(), r.Hash); err != nil {
			return fmt.Errorf("save file hash %s: %w", r.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit file hashes: %w", err)
	}
	slog.Debug("journal saved file hashes", "files", len(records))
	return nil
}
