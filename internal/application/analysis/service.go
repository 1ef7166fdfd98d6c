package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/stockaudit/internal/application"
	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

// Service implements the analysis use case: one call to the generation
// service per comparison, strict parsing, local rules and history.
// Safe for concurrent use.
type Service struct {
	Analyzer audit.Analyzer
	// History is optional; nil disables recording.
	History audit.HistoryRepository
	Clock   application.Clock
	Logger  *zap.Logger
	// LocalRules re-derives classifications with audit.Reconcile.
	LocalRules bool
	// Location is the zone "today" is evaluated in; nil means UTC.
	Location *time.Location
}

// AnalyzeCommand is one comparison request.
type AnalyzeCommand struct {
	TenantID  string
	SessionID string
	Mode      audit.Mode
	Old       audit.ReportInput
	Current   audit.ReportInput
}

// Outcome of a successful run.
type Outcome struct {
	RecordID audit.RecordID
	Result   *audit.AnalysisResult
	// Reclassified counts details whose classification the local rules changed.
	Reclassified int
	DurationMS   int64
}

// Analyze validates the pair, calls the analyzer once and returns a complete
// result. Validation failures match audit.ErrInvalidInput and never reach the
// analyzer; every other failure is an *audit.AnalysisError.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (Outcome, error) {
	if err := audit.ValidatePair(cmd.Mode, cmd.Old, cmd.Current); err != nil {
		return Outcome{}, err
	}

	start := s.Clock.Now()
	id := audit.RecordID(uuid.New().String())
	log := s.logger().With(
		zap.String("tenant", cmd.TenantID),
		zap.String("session", cmd.SessionID),
		zap.String("record", string(id)),
		zap.String("provider", s.Analyzer.Name()),
	)

	res, err := s.run(ctx, cmd)
	dur := s.Clock.Now().Sub(start).Milliseconds()

	rec := &audit.AnalysisRecord{
		ID:         id,
		TenantID:   cmd.TenantID,
		SessionID:  cmd.SessionID,
		Provider:   s.Analyzer.Name(),
		OldInput:   cmd.Old.Describe(),
		NewInput:   cmd.Current.Describe(),
		DurationMS: dur,
		CreatedAt:  start,
	}

	if err != nil {
		rec.Status = audit.RecordError
		rec.Error = err.Error()
		log.Warn("analysis failed", zap.Error(err), zap.Int64("duration_ms", dur))
		s.record(ctx, log, rec)
		return Outcome{RecordID: id, DurationMS: dur}, err
	}

	reclassified := 0
	if s.LocalRules {
		reclassified = audit.Reconcile(res, s.today(start))
	}
	audit.AssignIDs(res.Details)

	rec.Status = audit.RecordSuccess
	if b, mErr := json.Marshal(res); mErr == nil {
		rec.Result = string(b)
	}
	log.Info("analysis done",
		zap.Int("details", len(res.Details)),
		zap.Int("inconsistencies", res.InconsistenciesFound),
		zap.Int("reclassified", reclassified),
		zap.Int64("duration_ms", dur),
	)
	s.record(ctx, log, rec)

	return Outcome{RecordID: id, Result: res, Reclassified: reclassified, DurationMS: dur}, nil
}

func (s *Service) run(ctx context.Context, cmd AnalyzeCommand) (*audit.AnalysisResult, error) {
	raw, err := s.Analyzer.Generate(ctx, cmd.Old, cmd.Current)
	if err != nil {
		return nil, &audit.AnalysisError{Op: "generate", Err: err}
	}
	res, err := Parse(raw)
	if err != nil {
		return nil, &audit.AnalysisError{Op: "parse", Err: err}
	}
	return res, nil
}

// record never fails the analysis; history is best effort.
func (s *Service) record(ctx context.Context, log *zap.Logger, rec *audit.AnalysisRecord) {
	if s.History == nil {
		return
	}
	// request bisa sudah di-cancel, history tetap disimpan
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.History.Save(ctx, rec); err != nil {
		log.Error("save analysis record", zap.Error(err))
	}
}

// Get returns one stored analysis.
func (s *Service) Get(ctx context.Context, tenant string, id audit.RecordID) (*audit.AnalysisRecord, error) {
	if s.History == nil {
		return nil, ErrHistoryDisabled
	}
	rec, err := s.History.Get(ctx, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return rec, nil
}

// List pages through stored analyses, newest first.
func (s *Service) List(ctx context.Context, tenant string, page, pageSize int) (audit.Page, error) {
	if s.History == nil {
		return audit.Page{}, ErrHistoryDisabled
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	data, err := s.History.Paginate(ctx, tenant, page, pageSize)
	if err != nil {
		return audit.Page{}, fmt.Errorf("list analyses: %w", err)
	}
	total, err := s.History.Count(ctx, tenant)
	if err != nil {
		return audit.Page{}, fmt.Errorf("count analyses: %w", err)
	}
	return audit.NewPage(data, page, pageSize, total), nil
}

// Purge deletes records older than retention.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if s.History == nil {
		return 0, ErrHistoryDisabled
	}
	cutoff := s.Clock.Now().Add(-retention)
	n, err := s.History.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge analyses before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	s.logger().Info("analysis history purged", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// ErrHistoryDisabled is returned by history queries when no database is configured.
var ErrHistoryDisabled = errors.New("analysis history is disabled")

func (s *Service) today(now time.Time) time.Time {
	if s.Location != nil {
		now = now.In(s.Location)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
