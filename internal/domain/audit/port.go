package audit

import (
	"context"
	"time"
)

// Analyzer sends both reports plus the fixed instructions to a generation
// service and returns its raw JSON text.
type Analyzer interface {
	Generate(ctx context.Context, old, current ReportInput) (string, error)
	Name() string
}

// HistoryRepository port for persisting and querying analysis runs.
// Get returns ErrRecordNotFound for unknown ids; DeleteBefore backs retention.
type HistoryRepository interface {
	Save(ctx context.Context, rec *AnalysisRecord) error
	Get(ctx context.Context, tenant string, id RecordID) (*AnalysisRecord, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*AnalysisRecord, error)
	Count(ctx context.Context, tenant string) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ArtifactStore port for archiving exported documents
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}
