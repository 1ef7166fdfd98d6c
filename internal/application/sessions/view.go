package sessions

import (
	"time"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
)

// StateView is the JSON shape of a session. Selections are listed in result
// order.
type StateView struct {
	ID            string                `json:"id"`
	Status        session.Status        `json:"status"`
	View          session.View          `json:"view"`
	Error         string                `json:"error,omitempty"`
	RecordID      audit.RecordID        `json:"analysis_id,omitempty"`
	Result        *audit.AnalysisResult `json:"result,omitempty"`
	Selection     []audit.DetailID      `json:"selection"`
	Investigation InvestigationView     `json:"investigation"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type InvestigationView struct {
	Selection   []audit.DetailID                      `json:"selection"`
	Annotations map[audit.DetailID]session.Annotation `json:"annotations,omitempty"`
	Submitted   bool                                  `json:"submitted"`
	Answered    int                                   `json:"answered"`
	Total       int                                   `json:"total"`
}

// viewOf must be called with e.mu held.
func viewOf(e *entry) StateView {
	st := e.state
	ids := st.IDs()
	total := 0
	if st.Result != nil {
		total = len(st.Result.Details)
	}
	return StateView{
		ID:        e.id,
		Status:    st.Status,
		View:      st.View,
		Error:     st.Error,
		RecordID:  e.record,
		Result:    st.Result,
		Selection: st.Selection.Ordered(ids),
		Investigation: InvestigationView{
			Selection:   st.Investigation.Selection.Ordered(ids),
			Annotations: st.Investigation.Annotations,
			Submitted:   st.Investigation.Submitted,
			Answered:    st.Investigation.Answered(),
			Total:       total,
		},
		CreatedAt: e.created,
		UpdatedAt: e.updated,
	}
}
