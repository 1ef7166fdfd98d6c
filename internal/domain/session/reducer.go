package session

import (
	"errors"
	"fmt"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

var (
	// ErrBusy: an analysis is already in flight for this session.
	ErrBusy = errors.New("analysis already in progress")
	// ErrNoResult: the action needs an analysis result and there is none.
	ErrNoResult = errors.New("no analysis result")
	// ErrUnknownDetail: the detail id is not part of the current result.
	ErrUnknownDetail = errors.New("unknown detail")
	// ErrBadAction: malformed or unsupported action.
	ErrBadAction = errors.New("invalid action")
)

// ActionType enumerates what Reduce understands.
type ActionType string

const (
	ActionAnalysisStarted     ActionType = "analysis_started"
	ActionAnalysisSucceeded   ActionType = "analysis_succeeded"
	ActionAnalysisFailed      ActionType = "analysis_failed"
	ActionReset               ActionType = "reset"
	ActionShowView            ActionType = "show_view"
	ActionToggleItem          ActionType = "toggle_item"
	ActionToggleAll           ActionType = "toggle_all"
	ActionSetAnswer           ActionType = "set_answer"
	ActionToggleQuestion      ActionType = "toggle_question"
	ActionToggleAllQuestions  ActionType = "toggle_all_questions"
	ActionToggleNote          ActionType = "toggle_note"
	ActionSubmitInvestigation ActionType = "submit_investigation"
)

// Scope picks which selection a toggle applies to.
type Scope string

const (
	ScopeDashboard     Scope = "dashboard"
	ScopeInvestigation Scope = "investigation"
)

// Action is a single state transition. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType     `json:"type"`
	Scope    Scope          `json:"scope,omitempty"`
	ID       audit.DetailID `json:"id,omitempty"`
	Question QuestionKey    `json:"question,omitempty"`
	// Answer nil clears the answer.
	Answer *bool                 `json:"answer,omitempty"`
	Note   Note                  `json:"note,omitempty"`
	View   View                  `json:"view,omitempty"`
	Result *audit.AnalysisResult `json:"-"`
	Error  string                `json:"-"`
}

// External reports whether clients may dispatch the action directly. The
// analysis lifecycle actions are reserved for the analysis use case.
func (a Action) External() bool {
	switch a.Type {
	case ActionAnalysisStarted, ActionAnalysisSucceeded, ActionAnalysisFailed:
		return false
	}
	return true
}

// Reduce applies a to s and returns the next state. s is never modified; on
// error the returned state is s unchanged.
func Reduce(s State, a Action) (State, error) {
	switch a.Type {
	case ActionAnalysisStarted:
		if s.Status == StatusProcessing {
			return s, ErrBusy
		}
		next := s.clone()
		next.Status = StatusProcessing
		next.Error = ""
		next.Result = nil
		next.Selection = nil
		next.Investigation = Investigation{}
		return next, nil

	case ActionAnalysisSucceeded:
		if a.Result == nil {
			return s, fmt.Errorf("%w: missing result", ErrBadAction)
		}
		res := a.Result.Clone()
		ids := res.IDs()
		return State{
			Status:    StatusSuccess,
			View:      ViewDashboard,
			Result:    res,
			Selection: SelectAll(ids),
			Investigation: Investigation{
				Selection: SelectAll(ids),
			},
		}, nil

	case ActionAnalysisFailed:
		return State{
			Status: StatusError,
			View:   ViewUpload,
			Error:  a.Error,
		}, nil

	case ActionReset:
		if s.Status == StatusProcessing {
			return s, ErrBusy
		}
		return New(), nil

	case ActionShowView:
		if !a.View.Valid() {
			return s, fmt.Errorf("%w: view %q", ErrBadAction, a.View)
		}
		if a.View != ViewUpload && s.Result == nil {
			return s, ErrNoResult
		}
		next := s.clone()
		next.View = a.View
		return next, nil

	case ActionToggleItem:
		if err := s.checkDetail(a.ID); err != nil {
			return s, err
		}
		next := s.clone()
		switch a.Scope {
		case ScopeDashboard, "":
			next.Selection = s.Selection.Toggle(a.ID)
		case ScopeInvestigation:
			next.Investigation.Selection = s.Investigation.Selection.Toggle(a.ID)
		default:
			return s, fmt.Errorf("%w: scope %q", ErrBadAction, a.Scope)
		}
		return next, nil

	case ActionToggleAll:
		if s.Result == nil {
			return s, ErrNoResult
		}
		next := s.clone()
		ids := s.IDs()
		switch a.Scope {
		case ScopeDashboard, "":
			next.Selection = s.Selection.ToggleAll(ids)
		case ScopeInvestigation:
			next.Investigation.Selection = s.Investigation.Selection.ToggleAll(ids)
		default:
			return s, fmt.Errorf("%w: scope %q", ErrBadAction, a.Scope)
		}
		return next, nil

	case ActionSetAnswer:
		if !ValidQuestion(a.Question) {
			return s, fmt.Errorf("%w: question %q", ErrBadAction, a.Question)
		}
		if err := s.checkDetail(a.ID); err != nil {
			return s, err
		}
		next := s.clone()
		ann := s.Investigation.Annotation(a.ID).withAnswer(a.Question, a.Answer)
		next.Investigation = next.Investigation.with(a.ID, ann)
		return next, nil

	case ActionToggleQuestion:
		if !ValidQuestion(a.Question) {
			return s, fmt.Errorf("%w: question %q", ErrBadAction, a.Question)
		}
		if err := s.checkDetail(a.ID); err != nil {
			return s, err
		}
		next := s.clone()
		ann := s.Investigation.Annotation(a.ID).withQuestionToggled(a.Question)
		next.Investigation = next.Investigation.with(a.ID, ann)
		return next, nil

	case ActionToggleAllQuestions:
		if err := s.checkDetail(a.ID); err != nil {
			return s, err
		}
		next := s.clone()
		ann := s.Investigation.Annotation(a.ID).withAllQuestionsToggled()
		next.Investigation = next.Investigation.with(a.ID, ann)
		return next, nil

	case ActionToggleNote:
		if !a.Note.Valid() {
			return s, fmt.Errorf("%w: note %q", ErrBadAction, a.Note)
		}
		if err := s.checkDetail(a.ID); err != nil {
			return s, err
		}
		next := s.clone()
		ann := s.Investigation.Annotation(a.ID).withNoteToggled(a.Note)
		next.Investigation = next.Investigation.with(a.ID, ann)
		return next, nil

	case ActionSubmitInvestigation:
		if s.Result == nil {
			return s, ErrNoResult
		}
		// progress is advisory, submission is never blocked
		next := s.clone()
		next.Investigation.Submitted = true
		return next, nil
	}
	return s, fmt.Errorf("%w: type %q", ErrBadAction, a.Type)
}

func (s State) checkDetail(id audit.DetailID) error {
	if s.Result == nil {
		return ErrNoResult
	}
	if _, ok := s.Result.Detail(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDetail, id)
	}
	return nil
}
