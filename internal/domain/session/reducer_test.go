package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
)

func sampleResult(n int) *audit.AnalysisResult {
	names := []string{"Arroz 5kg", "Feijão 1kg", "Leite 1L", "Café 500g"}
	r := &audit.AnalysisResult{Summary: "ok", TotalProductsChecked: n}
	for i := 0; i < n; i++ {
		r.Details = append(r.Details, audit.InconsistencyDetail{
			ProductName: names[i%len(names)],
			IssueType:   audit.IssueDateDivergence,
			Severity:    audit.SeverityMedium,
		})
	}
	audit.AssignIDs(r.Details)
	return r
}

func dispatch(t *testing.T, s State, actions ...Action) State {
	t.Helper()
	for _, a := range actions {
		var err error
		s, err = Reduce(s, a)
		require.NoError(t, err, "%s", a.Type)
	}
	return s
}

func loaded(t *testing.T, n int) State {
	return dispatch(t, New(),
		Action{Type: ActionAnalysisStarted},
		Action{Type: ActionAnalysisSucceeded, Result: sampleResult(n)},
	)
}

func TestAnalysisLifecycle(t *testing.T) {
	s := dispatch(t, New(), Action{Type: ActionAnalysisStarted})
	assert.Equal(t, StatusProcessing, s.Status)

	_, err := Reduce(s, Action{Type: ActionAnalysisStarted})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = Reduce(s, Action{Type: ActionReset})
	assert.ErrorIs(t, err, ErrBusy)

	ok := dispatch(t, s, Action{Type: ActionAnalysisSucceeded, Result: sampleResult(2)})
	assert.Equal(t, StatusSuccess, ok.Status)
	assert.NotNil(t, ok.Result)
	assert.Empty(t, ok.Error)
	assert.Equal(t, ViewDashboard, ok.View)

	failed := dispatch(t, s, Action{Type: ActionAnalysisFailed, Error: audit.UserMessage})
	assert.Equal(t, StatusError, failed.Status)
	assert.Nil(t, failed.Result)
	assert.Equal(t, audit.UserMessage, failed.Error)

	// a new run never shows the previous result
	again := dispatch(t, ok, Action{Type: ActionAnalysisStarted})
	assert.Nil(t, again.Result)
	assert.Empty(t, again.Selection)
}

func TestSelectionStartsFull(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		s := loaded(t, n)
		assert.Len(t, s.Selection, n)
		assert.Len(t, s.Investigation.Selection, n)
		for _, id := range s.IDs() {
			assert.True(t, s.Selection.Has(id))
			assert.True(t, s.Investigation.Selection.Has(id))
		}
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	s := loaded(t, 3)
	id := s.IDs()[1]
	for _, scope := range []Scope{ScopeDashboard, ScopeInvestigation} {
		before := s.SelectionFor(scope)
		once := dispatch(t, s, Action{Type: ActionToggleItem, Scope: scope, ID: id})
		assert.False(t, once.SelectionFor(scope).Has(id))
		twice := dispatch(t, once, Action{Type: ActionToggleItem, Scope: scope, ID: id})
		assert.Equal(t, before, twice.SelectionFor(scope))
	}
	// the input state is never modified
	assert.True(t, s.Selection.Has(id))
}

func TestToggleAllIsItsOwnInverse(t *testing.T) {
	s := loaded(t, 3)
	none := dispatch(t, s, Action{Type: ActionToggleAll})
	assert.Empty(t, none.Selection)
	all := dispatch(t, none, Action{Type: ActionToggleAll})
	assert.Len(t, all.Selection, 3)

	// partial selection goes to full
	partial := dispatch(t, s, Action{Type: ActionToggleItem, ID: s.IDs()[0]}, Action{Type: ActionToggleAll})
	assert.Len(t, partial.Selection, 3)

	// scopes are independent
	inv := dispatch(t, s, Action{Type: ActionToggleAll, Scope: ScopeInvestigation})
	assert.Empty(t, inv.Investigation.Selection)
	assert.Len(t, inv.Selection, 3)
}

func TestToggleErrors(t *testing.T) {
	_, err := Reduce(New(), Action{Type: ActionToggleAll})
	assert.ErrorIs(t, err, ErrNoResult)

	s := loaded(t, 1)
	_, err = Reduce(s, Action{Type: ActionToggleItem, ID: "nope"})
	assert.ErrorIs(t, err, ErrUnknownDetail)
	_, err = Reduce(s, Action{Type: ActionToggleItem, ID: s.IDs()[0], Scope: "elsewhere"})
	assert.ErrorIs(t, err, ErrBadAction)
	_, err = Reduce(s, Action{Type: "dance"})
	assert.ErrorIs(t, err, ErrBadAction)
	_, err = Reduce(s, Action{Type: ActionShowView, View: "kanban"})
	assert.ErrorIs(t, err, ErrBadAction)
	_, err = Reduce(New(), Action{Type: ActionShowView, View: ViewQuestionnaire})
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSetAnswerTriState(t *testing.T) {
	s := loaded(t, 2)
	id := s.IDs()[0]
	yes, no := true, false

	s = dispatch(t, s, Action{Type: ActionSetAnswer, ID: id, Question: HasExpired, Answer: &yes})
	v, ok := s.Investigation.Annotation(id).Answer(HasExpired)
	assert.True(t, ok)
	assert.True(t, v)
	assert.Equal(t, 1, s.Investigation.Answered())

	s = dispatch(t, s, Action{Type: ActionSetAnswer, ID: id, Question: HasExpired, Answer: &no})
	v, ok = s.Investigation.Annotation(id).Answer(HasExpired)
	assert.True(t, ok)
	assert.False(t, v)

	s = dispatch(t, s, Action{Type: ActionSetAnswer, ID: id, Question: HasExpired})
	_, ok = s.Investigation.Annotation(id).Answer(HasExpired)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Investigation.Answered())

	_, err := Reduce(s, Action{Type: ActionSetAnswer, ID: id, Question: "isHappy", Answer: &yes})
	assert.True(t, errors.Is(err, ErrBadAction))
}

func TestConclusionFollowsFixedOrder(t *testing.T) {
	s := loaded(t, 1)
	id := s.IDs()[0]
	yes, no := true, false

	// toggled in reverse order on purpose
	s = dispatch(t, s,
		Action{Type: ActionToggleQuestion, ID: id, Question: WasRemovedFromSalesArea},
		Action{Type: ActionToggleQuestion, ID: id, Question: InSalesArea},
		Action{Type: ActionToggleQuestion, ID: id, Question: HasExpired},
		Action{Type: ActionToggleQuestion, ID: id, Question: WasSold},
		Action{Type: ActionSetAnswer, ID: id, Question: WasRemovedFromSalesArea, Answer: &yes},
		Action{Type: ActionSetAnswer, ID: id, Question: InSalesArea, Answer: &no},
		Action{Type: ActionSetAnswer, ID: id, Question: HasExpired, Answer: &yes},
		Action{Type: ActionSetAnswer, ID: id, Question: IsOnOffer, Answer: &yes},
	)

	var keys []QuestionKey
	for _, q := range s.Investigation.Annotation(id).Conclusion() {
		keys = append(keys, q.Key)
	}
	// wasSold is selected but unanswered, isOnOffer answered but not selected
	assert.Equal(t, []QuestionKey{HasExpired, WasRemovedFromSalesArea}, keys)
}

func TestConclusionSkipsUnselectedQuestion(t *testing.T) {
	s := loaded(t, 2)
	id := s.IDs()[0]
	yes := true
	s = dispatch(t, s, Action{Type: ActionSetAnswer, ID: id, Question: WasSold, Answer: &yes})

	for _, q := range s.Investigation.Annotation(id).Conclusion() {
		assert.NotEqual(t, "Foi Vendido", q.Finding)
	}
	assert.Empty(t, s.Investigation.Annotation(id).Conclusion())
}

func TestToggleAllQuestions(t *testing.T) {
	s := loaded(t, 1)
	id := s.IDs()[0]

	s = dispatch(t, s, Action{Type: ActionToggleQuestion, ID: id, Question: IsOnOffer})
	s = dispatch(t, s, Action{Type: ActionToggleAllQuestions, ID: id})
	assert.Len(t, s.Investigation.Annotation(id).SelectedQuestions(), len(Questions))

	s = dispatch(t, s, Action{Type: ActionToggleAllQuestions, ID: id})
	assert.Empty(t, s.Investigation.Annotation(id).SelectedQuestions())
}

func TestNotesAreOrdered(t *testing.T) {
	s := loaded(t, 1)
	id := s.IDs()[0]
	s = dispatch(t, s,
		Action{Type: ActionToggleNote, ID: id, Note: NoteDateWeight},
		Action{Type: ActionToggleNote, ID: id, Note: NoteNotRelated},
		Action{Type: ActionToggleNote, ID: id, Note: NoteWeight},
		Action{Type: ActionToggleNote, ID: id, Note: NoteWeight},
	)
	assert.Equal(t, []Note{NoteNotRelated, NoteDateWeight}, s.Investigation.Annotation(id).SelectedNotes())
	assert.Equal(t, "Inconsistência Data e Peso", NoteDateWeight.Compact())

	_, err := Reduce(s, Action{Type: ActionToggleNote, ID: id, Note: "qualquer coisa"})
	assert.ErrorIs(t, err, ErrBadAction)
}

func TestSubmitIsNeverBlocked(t *testing.T) {
	s := loaded(t, 3)
	assert.Equal(t, 0, s.Investigation.Answered())
	s = dispatch(t, s, Action{Type: ActionSubmitInvestigation})
	assert.True(t, s.Investigation.Submitted)
}

func TestSelectedDetailsUseResultOrder(t *testing.T) {
	s := loaded(t, 4)
	ids := s.IDs()
	s = dispatch(t, s,
		Action{Type: ActionToggleAll},
		Action{Type: ActionToggleItem, ID: ids[3]},
		Action{Type: ActionToggleItem, ID: ids[0]},
	)
	got := s.SelectedDetails(ScopeDashboard)
	require.Len(t, got, 2)
	assert.Equal(t, ids[0], got[0].ID)
	assert.Equal(t, ids[3], got[1].ID)
	assert.Equal(t, []audit.DetailID{ids[0], ids[3]}, s.Selection.Ordered(ids))
}
