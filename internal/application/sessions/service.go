package sessions

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/stockaudit/internal/application"
	"github.com/bryanwahyu/stockaudit/internal/application/analysis"
	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
	"github.com/bryanwahyu/stockaudit/internal/render"
)

// ErrNotFound: unknown, expired or foreign session.
var ErrNotFound = errors.New("session not found")

// Analyzer is the analysis use case as seen by sessions.
type Analyzer interface {
	Analyze(ctx context.Context, cmd analysis.AnalyzeCommand) (analysis.Outcome, error)
}

// Notifier posts share text to a team channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Service drives per-session state through session.Reduce. Every session has
// its own lock; the lock is not held while the analyzer runs, the processing
// status keeps a second analysis out.
type Service struct {
	Store    *Store
	Analysis Analyzer
	// Artifacts is optional; exports are archived when set.
	Artifacts audit.ArtifactStore
	// Notifier is optional; Share posts only when set and asked to.
	Notifier    Notifier
	Snapshotter render.Snapshotter
	Options     render.Options
	Clock       application.Clock
	Logger      *zap.Logger
}

// Create opens an idle session for the tenant.
func (s *Service) Create(ctx context.Context, tenant string) (StateView, error) {
	now := s.Clock.Now()
	e := &entry{
		id:      uuid.New().String(),
		tenant:  tenant,
		state:   session.New(),
		created: now,
		updated: now,
	}
	s.Store.add(e)
	s.logger().Debug("session created", zap.String("tenant", tenant), zap.String("session", e.id))
	return viewOf(e), nil
}

func (s *Service) Get(ctx context.Context, tenant, id string) (StateView, error) {
	e, err := s.entry(tenant, id)
	if err != nil {
		return StateView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return viewOf(e), nil
}

func (s *Service) Delete(ctx context.Context, tenant, id string) error {
	if !s.Store.remove(tenant, id) {
		return ErrNotFound
	}
	return nil
}

// AnalyzeCommand carries one report pair for a session.
type AnalyzeCommand struct {
	Mode    audit.Mode
	Old     audit.ReportInput
	Current audit.ReportInput
}

// Analyze runs one comparison for the session. Invalid input is refused
// before the state changes; a session already processing gets session.ErrBusy.
// A failed analysis leaves the session in the error status and returns the
// *audit.AnalysisError alongside the updated view.
func (s *Service) Analyze(ctx context.Context, tenant, id string, cmd AnalyzeCommand) (StateView, error) {
	if err := audit.ValidatePair(cmd.Mode, cmd.Old, cmd.Current); err != nil {
		return StateView{}, err
	}
	e, err := s.entry(tenant, id)
	if err != nil {
		return StateView{}, err
	}
	if _, err := s.apply(e, session.Action{Type: session.ActionAnalysisStarted}); err != nil {
		return StateView{}, err
	}

	out, runErr := s.Analysis.Analyze(ctx, analysis.AnalyzeCommand{
		TenantID:  tenant,
		SessionID: id,
		Mode:      cmd.Mode,
		Old:       cmd.Old,
		Current:   cmd.Current,
	})

	next := session.Action{Type: session.ActionAnalysisSucceeded, Result: out.Result}
	if runErr != nil {
		next = session.Action{Type: session.ActionAnalysisFailed, Error: audit.UserMessage}
		if !errors.Is(runErr, audit.ErrAnalysis) {
			// ctx errors and the like still surface as one analysis failure
			runErr = &audit.AnalysisError{Op: "service", Err: runErr}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := session.Reduce(e.state, next)
	if err != nil {
		return viewOf(e), err
	}
	e.state = st
	e.record = out.RecordID
	e.updated = s.Clock.Now()
	return viewOf(e), runErr
}

// Dispatch applies one client action. Analysis lifecycle actions are refused.
func (s *Service) Dispatch(ctx context.Context, tenant, id string, a session.Action) (StateView, error) {
	if !a.External() {
		return StateView{}, fmt.Errorf("%w: %s is internal", session.ErrBadAction, a.Type)
	}
	e, err := s.entry(tenant, id)
	if err != nil {
		return StateView{}, err
	}
	return s.apply(e, a)
}

// Overrides adjust the default render options per request.
type Overrides struct {
	IncludeNotes     *bool
	IncludeQuestions *bool
	Author           string
}

// Export renders one artifact of the session's current state and archives it
// when an artifact store is configured. Archive failures are only logged.
func (s *Service) Export(ctx context.Context, tenant, id string, kind render.Kind, ov Overrides) (render.Document, error) {
	e, st, err := s.snapshot(tenant, id)
	if err != nil {
		return render.Document{}, err
	}
	doc, err := render.Render(ctx, kind, st, s.options(ov), s.Snapshotter)
	if err != nil {
		return render.Document{}, err
	}

	if s.Artifacts != nil {
		key := path.Join(tenant, e.id, doc.Name)
		url, putErr := s.Artifacts.Put(ctx, key, doc.ContentType, doc.Body)
		if putErr != nil {
			s.logger().Warn("archive export", zap.String("key", key), zap.Error(putErr))
		} else {
			doc.URL = url
		}
	}
	s.logger().Info("export rendered",
		zap.String("tenant", tenant),
		zap.String("session", id),
		zap.String("kind", string(kind)),
		zap.Int("items", doc.Items),
		zap.Int("bytes", len(doc.Body)),
	)
	return doc, nil
}

// Share renders a share message; notify also posts it to the team channel.
func (s *Service) Share(ctx context.Context, tenant, id string, v render.Variant, ov Overrides, notify bool) (render.Share, error) {
	_, st, err := s.snapshot(tenant, id)
	if err != nil {
		return render.Share{}, err
	}
	sh, err := render.ShareText(v, st, s.options(ov))
	if err != nil {
		return render.Share{}, err
	}
	if notify && s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, sh.Text); err != nil {
			return sh, fmt.Errorf("notify: %w", err)
		}
	}
	return sh, nil
}

// View renders an HTML view of the session.
func (s *Service) View(ctx context.Context, tenant, id string, v render.View, ov Overrides) ([]byte, error) {
	_, st, err := s.snapshot(tenant, id)
	if err != nil {
		return nil, err
	}
	return render.HTML(v, st, s.options(ov))
}

func (s *Service) entry(tenant, id string) (*entry, error) {
	e, ok := s.Store.get(tenant, id)
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *Service) apply(e *entry, a session.Action) (StateView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := session.Reduce(e.state, a)
	if err != nil {
		return StateView{}, err
	}
	e.state = st
	e.updated = s.Clock.Now()
	return viewOf(e), nil
}

// snapshot copies the state out under the lock; states are never mutated in
// place so rendering can run unlocked.
func (s *Service) snapshot(tenant, id string) (*entry, session.State, error) {
	e, err := s.entry(tenant, id)
	if err != nil {
		return nil, session.State{}, err
	}
	e.mu.Lock()
	st := e.state
	e.mu.Unlock()
	return e, st, nil
}

func (s *Service) options(ov Overrides) render.Options {
	o := s.Options
	if ov.IncludeNotes != nil {
		o.IncludeNotes = *ov.IncludeNotes
	}
	if ov.IncludeQuestions != nil {
		o.IncludeQuestions = *ov.IncludeQuestions
	}
	if ov.Author != "" {
		o.Author = ov.Author
	}
	o.GeneratedAt = s.Clock.Now()
	return o
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
