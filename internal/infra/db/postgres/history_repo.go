package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

type HistoryRepository struct{ db *sql.DB }

func NewHistoryRepository(db *sql.DB) *HistoryRepository { return &HistoryRepository{db: db} }

const schema = `
CREATE TABLE IF NOT EXISTS stock_analyses (
  id          TEXT PRIMARY KEY,
  tenant_id   TEXT        NOT NULL,
  session_id  TEXT        NOT NULL DEFAULT '',
  provider    TEXT        NOT NULL,
  status      TEXT        NOT NULL,
  old_input   TEXT        NOT NULL,
  new_input   TEXT        NOT NULL,
  result_json JSONB       NOT NULL,
  error       TEXT        NOT NULL DEFAULT '',
  duration_ms BIGINT      NOT NULL DEFAULT 0,
  created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_analyses_tenant_created ON stock_analyses (tenant_id, created_at DESC);`

func (r *HistoryRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save insert/update analysis record
func (r *HistoryRepository) Save(ctx context.Context, a *audit.AnalysisRecord) error {
	const q = `
INSERT INTO stock_analyses
  (id, tenant_id, session_id, provider, status, old_input, new_input, result_json, error, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  result_json = EXCLUDED.result_json,
  error = EXCLUDED.error,
  duration_ms = EXCLUDED.duration_ms;`

	result := a.Result
	if strings.TrimSpace(result) == "" {
		result = "{}"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), a.SessionID, stringOrDash(a.Provider), stringOrDash(string(a.Status)),
		a.OldInput, a.NewInput, result, a.Error, a.DurationMS, createdAt,
	)
	return err
}

const columns = `id, tenant_id, session_id, provider, status, old_input, new_input, result_json::text, error, duration_ms, created_at`

func scanRecord(row interface{ Scan(...any) error }) (*audit.AnalysisRecord, error) {
	var a audit.AnalysisRecord
	if err := row.Scan(&a.ID, &a.TenantID, &a.SessionID, &a.Provider, &a.Status,
		&a.OldInput, &a.NewInput, &a.Result, &a.Error, &a.DurationMS, &a.CreatedAt); err != nil {
		return nil, err
	}
	if a.Result == "{}" {
		a.Result = ""
	}
	return &a, nil
}

// Get by ID + Tenant
func (r *HistoryRepository) Get(ctx context.Context, tenant string, id audit.RecordID) (*audit.AnalysisRecord, error) {
	q := `SELECT ` + columns + ` FROM stock_analyses WHERE tenant_id=$1 AND id=$2 LIMIT 1`
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
	offset := (page - 1) * pageSize

	q := `SELECT ` + columns + ` FROM stock_analyses WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM stock_analyses WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *HistoryRepository) Count(ctx context.Context, tenant string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_analyses WHERE tenant_id=$1`, tenant).Scan(&n)
	return n, err
}
