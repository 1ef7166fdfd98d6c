package session

import "github.com/bryanwahyu/stockaudit/internal/domain/audit"

// Status of the analysis workflow.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// View is the screen the session is on.
type View string

const (
	ViewUpload        View = "upload"
	ViewDashboard     View = "dashboard"
	ViewQuestionnaire View = "questionnaire"
)

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	switch v {
	case ViewUpload, ViewDashboard, ViewQuestionnaire:
		return true
	}
	return false
}

// Investigation is the questionnaire side of a session. It has its own
// selection, independent of the dashboard one.
type Investigation struct {
	Selection   Selection
	Annotations map[audit.DetailID]Annotation
	Submitted   bool
}

// Annotation returns the annotation for id; absent ids yield the zero value.
func (inv Investigation) Annotation(id audit.DetailID) Annotation {
	return inv.Annotations[id]
}

// Answered counts details with at least one answer. Advisory only.
func (inv Investigation) Answered() int {
	n := 0
	for _, a := range inv.Annotations {
		if a.Answered() {
			n++
		}
	}
	return n
}

func (inv Investigation) clone() Investigation {
	c := Investigation{
		Selection: inv.Selection.Clone(),
		Submitted: inv.Submitted,
	}
	if len(inv.Annotations) > 0 {
		c.Annotations = make(map[audit.DetailID]Annotation, len(inv.Annotations))
		for id, a := range inv.Annotations {
			c.Annotations[id] = a
		}
	}
	return c
}

func (inv Investigation) with(id audit.DetailID, a Annotation) Investigation {
	c := inv.clone()
	if c.Annotations == nil {
		c.Annotations = map[audit.DetailID]Annotation{}
	}
	c.Annotations[id] = a
	return c
}

// State is the whole per-session application state. Values are treated as
// immutable; Reduce always returns a fresh copy.
type State struct {
	Status        Status
	View          View
	Result        *audit.AnalysisResult
	Error         string
	Selection     Selection
	Investigation Investigation
}

// New returns the initial state.
func New() State {
	return State{Status: StatusIdle, View: ViewUpload}
}

// IDs returns detail ids in result order.
func (s State) IDs() []audit.DetailID {
	return s.Result.IDs()
}

// SelectionFor returns the selection of the given scope.
func (s State) SelectionFor(scope Scope) Selection {
	if scope == ScopeInvestigation {
		return s.Investigation.Selection
	}
	return s.Selection
}

// SelectedDetails returns the selected details of a scope in result order.
func (s State) SelectedDetails(scope Scope) []audit.InconsistencyDetail {
	if s.Result == nil {
		return nil
	}
	sel := s.SelectionFor(scope)
	out := make([]audit.InconsistencyDetail, 0, len(sel))
	for _, d := range s.Result.Details {
		if sel.Has(d.ID) {
			out = append(out, d)
		}
	}
	return out
}

func (s State) clone() State {
	c := s
	c.Selection = s.Selection.Clone()
	c.Investigation = s.Investigation.clone()
	return c
}
