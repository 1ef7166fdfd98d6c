// Package sqlite keeps analysis history in a local file, for single-node
// installs without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

// Open opens (and creates) the database file and the history table.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := NewHistoryRepository(db).Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type HistoryRepository struct{ db *sql.DB }

func NewHistoryRepository(db *sql.DB) *HistoryRepository { return &HistoryRepository{db: db} }

// created_at is unix milliseconds
const schema = `
CREATE TABLE IF NOT EXISTS stock_analyses (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	session_id  TEXT NOT NULL DEFAULT '',
	provider    TEXT NOT NULL,
	status      TEXT NOT NULL,
	old_input   TEXT NOT NULL,
	new_input   TEXT NOT NULL,
	result_json TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_analyses_tenant_created ON stock_analyses(tenant_id, created_at);`

func (r *HistoryRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *HistoryRepository) Save(ctx context.Context, a *audit.AnalysisRecord) error {
	const q = `
INSERT INTO stock_analyses
  (id, tenant_id, session_id, provider, status, old_input, new_input, result_json, error, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  status = excluded.status,
  result_json = excluded.result_json,
  error = excluded.error,
  duration_ms = excluded.duration_ms`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.TenantID, a.SessionID, a.Provider, a.Status,
		a.OldInput, a.NewInput, a.Result, a.Error, a.DurationMS, createdAt.UnixMilli(),
	)
	return err
}

const columns = `id, tenant_id, session_id, provider, status, old_input, new_input, result_json, error, duration_ms, created_at`

func scanRecord(row interface{ Scan(...any) error }) (*audit.AnalysisRecord, error) {
	var (
		a       audit.AnalysisRecord
		created int64
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.SessionID, &a.Provider, &a.Status,
		&a.OldInput, &a.NewInput, &a.Result, &a.Error, &a.DurationMS, &created); err != nil {
		return nil, err
	}
	a.CreatedAt = time.UnixMilli(created).UTC()
	return &a, nil
}

func (r *HistoryRepository) Get(ctx context.Context, tenant string, id audit.RecordID) (*audit.AnalysisRecord, error) {
	q := `SELECT ` + columns + ` FROM stock_analyses WHERE tenant_id=? AND id=? LIMIT 1`
	a, err := scanRecord(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrRecordNotFound
	}
	return a, err
}

func (r *HistoryRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*audit.AnalysisRecord, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	q := `SELECT ` + columns + ` FROM stock_analyses WHERE tenant_id=?
ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*audit.AnalysisRecord
	for rows.Next() {
		a, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *HistoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stock_analyses WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *HistoryRepository) Count(ctx context.Context, tenant string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_analyses WHERE tenant_id=?`, tenant).Scan(&n)
	return n, err
}
